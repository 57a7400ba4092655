package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// Bounds is a WGS84 bounding box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

func emptyBounds() Bounds {
	return Bounds{
		MinLat: math.MaxFloat64, MaxLat: -math.MaxFloat64,
		MinLon: math.MaxFloat64, MaxLon: -math.MaxFloat64,
	}
}

func (b Bounds) valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b Bounds) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Zoom estimates a web-mercator zoom level that fits the box, clamped to
// [1, 12]. Derived from the 360°-per-tile-row relationship at zoom 0.
func (b Bounds) Zoom() float64 {
	lonSpan := b.MaxLon - b.MinLon
	latSpan := (b.MaxLat - b.MinLat) * 2 // latitude degrees render taller than longitude
	span := math.Max(lonSpan, latSpan)
	if span <= 0 {
		return 12
	}
	zoom := math.Log2(360 / span)
	if zoom < 1 {
		return 1
	}
	if zoom > 12 {
		return 12
	}
	return math.Round(zoom*10) / 10
}

// ComputeBounds walks Polygon and MultiPolygon geometries and accumulates
// the collection's bounding box. Other geometry types are skipped; an error
// is returned only when no positions were found at all.
func (fc *FeatureCollection) ComputeBounds() (Bounds, error) {
	bounds := emptyBounds()
	found := false
	for i := range fc.Features {
		g := fc.Features[i].Geometry
		switch g.Type {
		case "Polygon":
			var rings [][][]float64
			if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
				continue
			}
			if accumulateRings(&bounds, rings) {
				found = true
			}
		case "MultiPolygon":
			var polys [][][][]float64
			if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
				continue
			}
			for _, rings := range polys {
				if accumulateRings(&bounds, rings) {
					found = true
				}
			}
		case "Point":
			var pos []float64
			if err := json.Unmarshal(g.Coordinates, &pos); err != nil {
				continue
			}
			if accumulatePosition(&bounds, pos) {
				found = true
			}
		}
	}
	if !found || !bounds.valid() {
		return Bounds{}, fmt.Errorf("no polygon coordinates found in collection")
	}
	return bounds, nil
}

func accumulateRings(b *Bounds, rings [][][]float64) bool {
	found := false
	for _, ring := range rings {
		for _, pos := range ring {
			if accumulatePosition(b, pos) {
				found = true
			}
		}
	}
	return found
}

// GeoJSON positions are [lon, lat].
func accumulatePosition(b *Bounds, pos []float64) bool {
	if len(pos) < 2 {
		return false
	}
	lon, lat := pos[0], pos[1]
	if lon < b.MinLon {
		b.MinLon = lon
	}
	if lon > b.MaxLon {
		b.MaxLon = lon
	}
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	return true
}
