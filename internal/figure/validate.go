package figure

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const requestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["geometry_source", "data_source", "value_column"],
  "properties": {
    "geometry_source": {"type": "string", "minLength": 1},
    "data_source": {"type": "string", "minLength": 1},
    "featureidkey": {"type": "string"},
    "locations_column": {"type": "string"},
    "value_column": {"type": "string", "minLength": 1},
    "colorscale": {"type": "string"},
    "range_min": {"type": "number"},
    "range_max": {"type": "number"},
    "title": {"type": "string"},
    "center": {
      "type": "object",
      "required": ["lat", "lon"],
      "properties": {
        "lat": {"type": "number", "minimum": -90, "maximum": 90},
        "lon": {"type": "number", "minimum": -180, "maximum": 180}
      }
    },
    "zoom": {"type": "number", "minimum": 0, "maximum": 22},
    "style": {"type": "string"},
    "opacity": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
    "margins": {
      "type": "object",
      "properties": {
        "l": {"type": "integer", "minimum": 0},
        "r": {"type": "integer", "minimum": 0},
        "t": {"type": "integer", "minimum": 0},
        "b": {"type": "integer", "minimum": 0}
      }
    },
    "width": {"type": "integer", "minimum": 0},
    "height": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": false
}`

var compiledRequestSchema = jsonschema.MustCompileString("figure_request.json", requestSchema)

// ValidateRequest checks a raw figure request against the schema and, when
// both bounds are present, that range_min < range_max. Returns the decoded
// spec on success.
func ValidateRequest(raw []byte) (*Spec, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("request is not valid JSON: %w", err)
	}
	if err := compiledRequestSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("request schema check failed: %w", err)
	}
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("request decode failed: %w", err)
	}
	if spec.RangeMin != nil && spec.RangeMax != nil && *spec.RangeMin >= *spec.RangeMax {
		return nil, fmt.Errorf("range_min must be less than range_max")
	}
	if spec.Colorscale != "" {
		if _, ok := ScaleStops(spec.Colorscale); !ok {
			return nil, fmt.Errorf("unknown colorscale %q (available: %v)", spec.Colorscale, ScaleNames())
		}
	}
	return &spec, nil
}
