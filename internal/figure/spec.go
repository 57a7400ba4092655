// Package figure defines the renderable figure specification: which
// geometry and data sources to join, how to match them, and how the result
// is colored and framed.
package figure

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LatLon is a geographic center point.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Margins mirror the l/r/t/b margin block of the upstream plotting call.
type Margins struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// Spec describes one choropleth figure. Center, zoom and range are
// pointers: nil means "infer from the data".
type Spec struct {
	GeometrySource string `json:"geometry_source"`
	DataSource     string `json:"data_source"`

	// FeatureIDKey overrides the geometry source's configured identifier
	// path, e.g. "properties.district". Empty keeps the source default.
	FeatureIDKey string `json:"featureidkey,omitempty"`

	// LocationsColumn overrides the table's configured identifier column
	// for this figure only. Empty keeps the source default.
	LocationsColumn string `json:"locations_column,omitempty"`

	ValueColumn string   `json:"value_column"`
	Colorscale  string   `json:"colorscale,omitempty"`
	RangeMin    *float64 `json:"range_min,omitempty"`
	RangeMax    *float64 `json:"range_max,omitempty"`

	Title   string   `json:"title,omitempty"`
	Center  *LatLon  `json:"center,omitempty"`
	Zoom    *float64 `json:"zoom,omitempty"`
	Style   string   `json:"style,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	Margins *Margins `json:"margins,omitempty"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
}

// Normalize trims identifiers and fills render defaults that did not come
// with the request.
func (s *Spec) Normalize(defaultColorscale, defaultStyle string, defaultOpacity float64, defaultWidth, defaultHeight int) {
	s.GeometrySource = strings.TrimSpace(s.GeometrySource)
	s.DataSource = strings.TrimSpace(s.DataSource)
	s.FeatureIDKey = strings.TrimSpace(s.FeatureIDKey)
	s.LocationsColumn = strings.TrimSpace(s.LocationsColumn)
	s.ValueColumn = strings.TrimSpace(s.ValueColumn)
	if strings.TrimSpace(s.Colorscale) == "" {
		s.Colorscale = defaultColorscale
	}
	if strings.TrimSpace(s.Style) == "" {
		s.Style = defaultStyle
	}
	if s.Opacity == nil {
		op := defaultOpacity
		s.Opacity = &op
	}
	if s.Width <= 0 {
		s.Width = defaultWidth
	}
	if s.Height <= 0 {
		s.Height = defaultHeight
	}
	if s.Margins == nil {
		s.Margins = &Margins{}
	}
}

// EncodeJSON serializes the spec for persistence.
func (s *Spec) EncodeJSON() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding figure spec failed: %w", err)
	}
	return data, nil
}

// DecodeSpec restores a persisted spec.
func DecodeSpec(data []byte) (*Spec, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding figure spec failed: %w", err)
	}
	return &s, nil
}

// Status values for persisted figures.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Record is a persisted figure: the spec, the render outcome and the join
// statistics reported to the caller.
type Record struct {
	ID     string `json:"id"`
	Spec   Spec   `json:"spec"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	MatchedRegions    int `json:"matched_regions"`
	UnmatchedFeatures int `json:"unmatched_features"`
	UnmatchedRows     int `json:"unmatched_rows"`

	HTMLSize  int    `json:"html_size"`
	PNGPath   string `json:"png_path,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}
