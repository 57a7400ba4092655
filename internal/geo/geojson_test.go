package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countiesDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "06037",
     "properties": {"NAME": "Los Angeles"},
     "geometry": {"type": "Polygon", "coordinates": [[[-118.9,33.7],[-117.6,33.7],[-117.6,34.8],[-118.9,34.8],[-118.9,33.7]]]}},
    {"type": "Feature", "id": "01001",
     "properties": {"NAME": "Autauga"},
     "geometry": {"type": "Polygon", "coordinates": [[[-86.9,32.3],[-86.4,32.3],[-86.4,32.7],[-86.9,32.7],[-86.9,32.3]]]}}
  ]
}`

const districtsDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"district": "101-Bois-de-Liesse"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-73.9,45.4],[-73.8,45.4],[-73.8,45.5],[-73.9,45.5],[-73.9,45.4]]]]}},
    {"type": "Feature",
     "properties": {"district": "102-Cap-Saint-Jacques"},
     "geometry": {"type": "Polygon", "coordinates": [[[-74.0,45.4],[-73.9,45.4],[-73.9,45.5],[-74.0,45.5],[-74.0,45.4]]]}}
  ]
}`

func TestDecode(t *testing.T) {
	fc, err := Decode([]byte(countiesDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, fc.Len())
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	assert.Equal(t, []byte(countiesDoc), fc.Raw())
}

func TestDecodeRejectsNonCollection(t *testing.T) {
	_, err := Decode([]byte(`{"type": "Feature", "geometry": null}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestIdentifierTopLevel(t *testing.T) {
	fc, err := Decode([]byte(countiesDoc))
	require.NoError(t, err)

	id, ok := fc.Features[0].Identifier("id")
	require.True(t, ok)
	// Leading zeros must survive.
	assert.Equal(t, "06037", id)

	id, ok = fc.Features[1].Identifier("")
	require.True(t, ok)
	assert.Equal(t, "01001", id)
}

func TestIdentifierNumericID(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":42,"properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}]}`
	fc, err := Decode([]byte(doc))
	require.NoError(t, err)
	id, ok := fc.Features[0].Identifier("id")
	require.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestIdentifierDottedPath(t *testing.T) {
	fc, err := Decode([]byte(districtsDoc))
	require.NoError(t, err)

	id, ok := fc.Features[0].Identifier("properties.district")
	require.True(t, ok)
	assert.Equal(t, "101-Bois-de-Liesse", id)

	// Missing top-level id, default key fails.
	_, ok = fc.Features[0].Identifier("id")
	assert.False(t, ok)

	// Unknown path fails.
	_, ok = fc.Features[0].Identifier("properties.nope")
	assert.False(t, ok)
}

func TestIdentifierIndex(t *testing.T) {
	fc, err := Decode([]byte(countiesDoc))
	require.NoError(t, err)

	index, missing, err := fc.IdentifierIndex("id")
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Equal(t, 0, index["06037"])
	assert.Equal(t, 1, index["01001"])
}

func TestIdentifierIndexMissing(t *testing.T) {
	fc, err := Decode([]byte(districtsDoc))
	require.NoError(t, err)

	index, missing, err := fc.IdentifierIndex("id")
	require.NoError(t, err)
	assert.Empty(t, index)
	assert.Len(t, missing, 2)
}

func TestComputeBounds(t *testing.T) {
	fc, err := Decode([]byte(countiesDoc))
	require.NoError(t, err)

	bounds, err := fc.ComputeBounds()
	require.NoError(t, err)
	assert.InDelta(t, -118.9, bounds.MinLon, 1e-9)
	assert.InDelta(t, -86.4, bounds.MaxLon, 1e-9)
	assert.InDelta(t, 32.3, bounds.MinLat, 1e-9)
	assert.InDelta(t, 34.8, bounds.MaxLat, 1e-9)

	lat, lon := bounds.Center()
	assert.InDelta(t, 33.55, lat, 1e-9)
	assert.InDelta(t, -102.65, lon, 1e-9)

	zoom := bounds.Zoom()
	assert.GreaterOrEqual(t, zoom, 1.0)
	assert.LessOrEqual(t, zoom, 12.0)
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, ValidateDocument([]byte(countiesDoc)))
	assert.NoError(t, ValidateDocument([]byte(districtsDoc)))

	assert.Error(t, ValidateDocument([]byte(`{"type":"FeatureCollection"}`)))
	assert.Error(t, ValidateDocument([]byte(`{"features":[]}`)))
	assert.Error(t, ValidateDocument([]byte(`[]`)))
}
