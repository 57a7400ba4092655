package geo

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// featureCollectionSchema checks the structural shape before decoding:
// root type, features array, per-feature geometry with type+coordinates.
const featureCollectionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "features"],
  "properties": {
    "type": {"const": "FeatureCollection"},
    "features": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "geometry"],
        "properties": {
          "type": {"const": "Feature"},
          "id": {"type": ["string", "number"]},
          "properties": {"type": ["object", "null"]},
          "geometry": {
            "type": ["object", "null"],
            "required": ["type", "coordinates"],
            "properties": {
              "type": {"type": "string"},
              "coordinates": {"type": "array"}
            }
          }
        }
      }
    }
  }
}`

var collectionSchema = jsonschema.MustCompileString("featurecollection.json", featureCollectionSchema)

// ValidateDocument reports whether data is a structurally sound
// FeatureCollection. Decode still performs its own checks; this gives a
// precise schema error for API callers.
func ValidateDocument(data []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("geojson is not valid JSON: %w", err)
	}
	if err := collectionSchema.Validate(doc); err != nil {
		return fmt.Errorf("geojson schema check failed: %w", err)
	}
	return nil
}
