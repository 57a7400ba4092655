// Package geo models the subset of GeoJSON the renderer consumes: a
// feature collection whose features carry an identifier either as a
// top-level id or under a dotted path such as properties.district.
package geo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FeatureCollection holds decoded features plus the original document so
// geometry can be forwarded verbatim to the chart layer.
type FeatureCollection struct {
	Type     string
	Features []Feature

	raw []byte
}

// Feature is a single geographic feature. Geometry coordinates stay raw;
// only bounds extraction interprets them.
type Feature struct {
	ID         json.RawMessage
	Properties map[string]any
	Geometry   Geometry

	raw []byte
}

type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type featureEnvelope struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id"`
	Properties map[string]any  `json:"properties"`
	Geometry   Geometry        `json:"geometry"`
}

type collectionEnvelope struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// Decode parses a GeoJSON document. The document must be a
// FeatureCollection; anything else is rejected.
func Decode(data []byte) (*FeatureCollection, error) {
	var env collectionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("geojson decode failed: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(env.Type), "FeatureCollection") {
		return nil, fmt.Errorf("geojson root type must be FeatureCollection, got %q", env.Type)
	}
	fc := &FeatureCollection{Type: "FeatureCollection", raw: data}
	fc.Features = make([]Feature, 0, len(env.Features))
	for i, rawFeature := range env.Features {
		var fe featureEnvelope
		if err := json.Unmarshal(rawFeature, &fe); err != nil {
			return nil, fmt.Errorf("geojson feature #%d decode failed: %w", i, err)
		}
		fc.Features = append(fc.Features, Feature{
			ID:         fe.ID,
			Properties: fe.Properties,
			Geometry:   fe.Geometry,
			raw:        rawFeature,
		})
	}
	return fc, nil
}

// Raw returns the original document bytes.
func (fc *FeatureCollection) Raw() []byte {
	if fc == nil {
		return nil
	}
	return fc.raw
}

// Len reports the number of features.
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}
