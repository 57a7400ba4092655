package choropleth

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"choromap/internal/basemap"
	"choromap/internal/dataset"
	"choromap/internal/figure"
	"choromap/internal/geo"
)

const (
	registeredMapName = "choromap-regions"
	chartElementID    = "choromap"
)

// Input bundles everything Render needs. Spec must already be normalized.
type Input struct {
	Spec     figure.Spec
	Geometry *geo.FeatureCollection
	Table    *dataset.Table
	IDKey    string
	Token    string
}

// Result is the rendered document plus the resolved view and join stats.
type Result struct {
	HTML      []byte
	Join      *JoinResult
	CenterLat float64
	CenterLon float64
	Zoom      float64
}

// Render joins the inputs and builds a self-contained HTML document. The
// raw GeoJSON is registered client-side so geometry passes through
// unmodified.
func Render(input Input) (*Result, error) {
	spec := input.Spec
	if basemap.StyleNeedsToken(spec.Style) && strings.TrimSpace(input.Token) == "" {
		return nil, fmt.Errorf("style %q requires an access token", spec.Style)
	}
	join, err := Join(input.Geometry, input.Table, input.IDKey, spec.LocationsColumn, spec.ValueColumn)
	if err != nil {
		return nil, err
	}

	centerLat, centerLon, fitZoom, err := resolveView(spec, input.Geometry)
	if err != nil {
		return nil, err
	}
	// The chart zoom is a scale relative to the fitted view: requesting the
	// fit zoom gives 1.0, each extra level doubles it.
	scale := 1.0
	zoom := fitZoom
	if spec.Zoom != nil {
		zoom = *spec.Zoom
		scale = math.Exp2(zoom - fitZoom)
	}

	m := charts.NewMap()
	m.RegisterMapType(registeredMapName)
	numeric := input.Table.NumericColumn(join.ValueColumn)
	globalOpts := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			ChartID:         chartElementID,
			Width:           fmt.Sprintf("%dpx", spec.Width),
			Height:          fmt.Sprintf("%dpx", spec.Height),
			BackgroundColor: basemap.BackgroundColor(spec.Style),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    spec.Title,
			Subtitle: fmt.Sprintf("%s by %s", join.ValueColumn, describeKey(input.IDKey)),
			Left:     "left",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
	}
	if numeric {
		vm, err := continuousVisualMap(spec, input.Table, join.ValueColumn)
		if err != nil {
			return nil, err
		}
		globalOpts = append(globalOpts, charts.WithVisualMapOpts(vm))
	} else {
		globalOpts = append(globalOpts, charts.WithVisualMapOpts(categoricalVisualMap(input.Table, join.ValueColumn)))
	}
	m.SetGlobalOptions(globalOpts...)

	data, err := seriesData(join, input.Table)
	if err != nil {
		return nil, err
	}
	m.AddSeries(join.ValueColumn, data,
		charts.WithItemStyleOpts(opts.ItemStyle{
			Opacity:     opts.Float(float32(*spec.Opacity)),
			BorderColor: "#ffffff",
		}),
	)

	// The series options expose no map view knobs, and the geometry must be
	// registered before the option is applied. Both go through one injected
	// patch: register the map, set roam/center/zoom (plus margins and piece
	// labels) on the option, then re-apply it.
	var categoryLabels []string
	if !numeric {
		categoryLabels = input.Table.DistinctValues(join.ValueColumn)
	}
	m.AddJSFuncs(optionPatch(input.Geometry.Raw(), spec.Margins, categoryLabels, centerLat, centerLon, scale))

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(m)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return &Result{
		HTML:      buf.Bytes(),
		Join:      join,
		CenterLat: centerLat,
		CenterLon: centerLon,
		Zoom:      zoom,
	}, nil
}

func resolveView(spec figure.Spec, fc *geo.FeatureCollection) (lat, lon, fitZoom float64, err error) {
	bounds, boundsErr := fc.ComputeBounds()
	if spec.Center != nil {
		lat, lon = spec.Center.Lat, spec.Center.Lon
	} else {
		if boundsErr != nil {
			return 0, 0, 0, fmt.Errorf("center not given and geometry bounds unavailable: %w", boundsErr)
		}
		lat, lon = bounds.Center()
	}
	if boundsErr == nil {
		fitZoom = bounds.Zoom()
	} else {
		fitZoom = 3
	}
	return lat, lon, fitZoom, nil
}

func seriesData(join *JoinResult, t *dataset.Table) ([]opts.MapData, error) {
	numeric := t.NumericColumn(join.ValueColumn)
	var categories map[string]int
	if !numeric {
		categories = categoryIndex(t, join.ValueColumn)
	}
	data := make([]opts.MapData, 0, len(join.Regions))
	for _, region := range join.Regions {
		if numeric {
			val, _ := region.Value.Num.Float64()
			data = append(data, opts.MapData{Name: region.ID, Value: val})
			continue
		}
		idx, ok := categories[region.Value.Text]
		if !ok {
			// Empty cells still render, outside every piece.
			data = append(data, opts.MapData{Name: region.ID})
			continue
		}
		data = append(data, opts.MapData{Name: region.ID, Value: float64(idx)})
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("join produced no renderable regions")
	}
	return data, nil
}

func continuousVisualMap(spec figure.Spec, t *dataset.Table, column string) (opts.VisualMap, error) {
	stops, ok := figure.ScaleStops(spec.Colorscale)
	if !ok {
		return opts.VisualMap{}, fmt.Errorf("unknown colorscale %q", spec.Colorscale)
	}
	var lo, hi float64
	if spec.RangeMin != nil && spec.RangeMax != nil {
		lo, hi = *spec.RangeMin, *spec.RangeMax
	} else {
		min, max, err := t.NumericRange(column)
		if err != nil {
			return opts.VisualMap{}, err
		}
		lo, _ = min.Float64()
		hi, _ = max.Float64()
		if spec.RangeMin != nil {
			lo = *spec.RangeMin
		}
		if spec.RangeMax != nil {
			hi = *spec.RangeMax
		}
	}
	return opts.VisualMap{
		Calculable: opts.Bool(true),
		Min:        float32(lo),
		Max:        float32(hi),
		Text:       []string{"High", "Low"},
		InRange:    &opts.VisualMapInRange{Color: stops},
	}, nil
}

// categoricalVisualMap encodes each distinct value as an index and colors
// it through half-open unit pieces around that index. Piece labels are not
// part of the option struct; optionPatch writes them in.
func categoricalVisualMap(t *dataset.Table, column string) opts.VisualMap {
	values := t.DistinctValues(column)
	pieces := make([]opts.Piece, 0, len(values))
	for i := range values {
		pieces = append(pieces, opts.Piece{
			Min:   float32(i) - 0.5,
			Max:   float32(i) + 0.5,
			Color: figure.CategoryColor(i),
		})
	}
	return opts.VisualMap{
		Type:   "piecewise",
		Pieces: pieces,
	}
}

// optionPatch builds the script that registers the raw geometry, writes the
// view and label fields the option struct cannot carry, and re-applies the
// option.
func optionPatch(rawGeoJSON []byte, margins *figure.Margins, categoryLabels []string, centerLat, centerLon, scale float64) string {
	var patch strings.Builder
	fmt.Fprintf(&patch, "echarts.registerMap(%q, %s);\n", registeredMapName, rawGeoJSON)
	fmt.Fprintf(&patch, "option_%s.series[0].roam = true;\n", chartElementID)
	fmt.Fprintf(&patch, "option_%s.series[0].center = [%g, %g];\n", chartElementID, centerLon, centerLat)
	fmt.Fprintf(&patch, "option_%s.series[0].zoom = %g;\n", chartElementID, scale)
	if margins != nil && (margins.L > 0 || margins.R > 0 || margins.T > 0 || margins.B > 0) {
		fmt.Fprintf(&patch, "option_%s.series[0].left = %d;\n", chartElementID, margins.L)
		fmt.Fprintf(&patch, "option_%s.series[0].right = %d;\n", chartElementID, margins.R)
		fmt.Fprintf(&patch, "option_%s.series[0].top = %d;\n", chartElementID, margins.T)
		fmt.Fprintf(&patch, "option_%s.series[0].bottom = %d;\n", chartElementID, margins.B)
	}
	for i, label := range categoryLabels {
		fmt.Fprintf(&patch, "option_%s.visualMap.pieces[%d].label = %q;\n", chartElementID, i, label)
	}
	fmt.Fprintf(&patch, "goecharts_%s.setOption(option_%s);", chartElementID, chartElementID)
	return patch.String()
}

func categoryIndex(t *dataset.Table, column string) map[string]int {
	values := t.DistinctValues(column)
	index := make(map[string]int, len(values))
	for i, val := range values {
		index[val] = i
	}
	return index
}

func describeKey(idKey string) string {
	idKey = strings.TrimSpace(idKey)
	if idKey == "" {
		return "id"
	}
	return idKey
}
