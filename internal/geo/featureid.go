package geo

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Identifier resolves a feature's matching key. idKey "id" (or empty) reads
// the top-level id; any other value is treated as a dotted path into the
// feature document, e.g. "properties.district". Identifiers are always
// returned as strings so numeric codes keep their exact text (a FIPS code
// of "06037" never collapses to 6037).
func (f *Feature) Identifier(idKey string) (string, bool) {
	idKey = strings.TrimSpace(idKey)
	if idKey == "" || idKey == "id" {
		return topLevelID(f.ID)
	}
	res := gjson.GetBytes(f.raw, idKey)
	if !res.Exists() {
		return "", false
	}
	id := strings.TrimSpace(res.String())
	return id, id != ""
}

func topLevelID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	res := gjson.ParseBytes(raw)
	switch res.Type {
	case gjson.String, gjson.Number:
		id := strings.TrimSpace(res.String())
		return id, id != ""
	default:
		return "", false
	}
}

// IdentifierIndex maps every resolvable identifier to its feature index.
// On duplicates the first feature wins; features without an identifier are
// returned separately by index.
func (fc *FeatureCollection) IdentifierIndex(idKey string) (map[string]int, []int, error) {
	if fc == nil {
		return nil, nil, fmt.Errorf("nil feature collection")
	}
	index := make(map[string]int, len(fc.Features))
	var missing []int
	for i := range fc.Features {
		id, ok := fc.Features[i].Identifier(idKey)
		if !ok {
			missing = append(missing, i)
			continue
		}
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = i
	}
	return index, missing, nil
}
