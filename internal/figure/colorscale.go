package figure

import (
	"sort"
	"strings"
)

// Continuous colorscales, five stops each, low to high. Stops feed the
// chart's visual map gradient directly.
var continuousScales = map[string][]string{
	"viridis": {"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"},
	"cividis": {"#00224e", "#35456c", "#666970", "#a69d75", "#fee838"},
	"plasma":  {"#0d0887", "#7e03a8", "#cc4778", "#f89540", "#f0f921"},
	"magma":   {"#000004", "#51127c", "#b73779", "#fc8961", "#fcfdbf"},
	"blues":   {"#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"},
	"reds":    {"#fff5f0", "#fcbba1", "#fb6a4a", "#cb181d", "#67000d"},
	"greens":  {"#f7fcf5", "#c7e9c0", "#74c476", "#238b45", "#00441b"},
}

// qualitativePalette colors categorical values (e.g. election winners) in
// first-seen order, cycling when exhausted.
var qualitativePalette = []string{
	"#636efa", "#ef553b", "#00cc96", "#ab63fa", "#ffa15a",
	"#19d3f3", "#ff6692", "#b6e880", "#ff97ff", "#fecb52",
}

// ScaleStops resolves a named continuous colorscale, case-insensitively.
func ScaleStops(name string) ([]string, bool) {
	stops, ok := continuousScales[strings.ToLower(strings.TrimSpace(name))]
	return stops, ok
}

// ScaleNames lists the available continuous scales, sorted for stable error
// messages.
func ScaleNames() []string {
	names := make([]string, 0, len(continuousScales))
	for name := range continuousScales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryColor returns the palette color for the i-th distinct category.
func CategoryColor(i int) string {
	if i < 0 {
		i = 0
	}
	return qualitativePalette[i%len(qualitativePalette)]
}
