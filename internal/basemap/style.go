// Package basemap classifies background styles and manages the access
// token required by the gated ones.
package basemap

import "strings"

// Styles that render without any credential.
var freeStyles = map[string]struct{}{
	"open-street-map":  {},
	"carto-positron":   {},
	"carto-darkmatter": {},
	"stamen-terrain":   {},
	"stamen-toner":     {},
	"white-bg":         {},
}

// Styles served by the commercial tile provider; these need a token.
var tokenStyles = map[string]struct{}{
	"basic":             {},
	"streets":           {},
	"outdoors":          {},
	"light":             {},
	"dark":              {},
	"satellite":         {},
	"satellite-streets": {},
}

func normalizeStyle(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StyleKnown reports whether the style name is recognized.
func StyleKnown(name string) bool {
	s := normalizeStyle(name)
	if _, ok := freeStyles[s]; ok {
		return true
	}
	_, ok := tokenStyles[s]
	return ok
}

// StyleNeedsToken reports whether the style requires an access token.
func StyleNeedsToken(name string) bool {
	_, ok := tokenStyles[normalizeStyle(name)]
	return ok
}

// BackgroundColor maps a style to the page background used behind the
// regions. The service draws regions only; the style picks the canvas tone
// the upstream tiles would have given.
func BackgroundColor(name string) string {
	switch normalizeStyle(name) {
	case "carto-darkmatter", "dark", "satellite", "satellite-streets":
		return "#1a1a2e"
	case "white-bg":
		return "#ffffff"
	default:
		return "#eef1f4"
	}
}
