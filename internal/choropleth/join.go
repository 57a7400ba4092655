// Package choropleth joins a feature collection with a table on a shared
// identifier and renders the colored result.
package choropleth

import (
	"fmt"
	"sort"
	"strings"

	"choromap/internal/dataset"
	"choromap/internal/geo"
)

// Region is one feature matched to one row.
type Region struct {
	ID           string
	Value        dataset.Value
	FeatureIndex int
}

// JoinResult carries the matched regions plus everything that failed to
// match, so callers can see exactly which ids fell through.
type JoinResult struct {
	Regions             []Region
	UnmatchedFeatureIDs []string
	UnmatchedRowIDs     []string
	FeaturesWithoutID   int
	ValueColumn         string
}

// Join matches features to rows. idKey resolves each feature's identifier
// (top-level id or dotted path); rows are keyed by the table's identifier
// column, or by locationsColumn when one is given. Matching is exact string
// equality.
func Join(fc *geo.FeatureCollection, t *dataset.Table, idKey, locationsColumn, valueColumn string) (*JoinResult, error) {
	if fc == nil || fc.Len() == 0 {
		return nil, fmt.Errorf("geometry has no features")
	}
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("table has no rows")
	}
	column, ok := t.ColumnName(valueColumn)
	if !ok {
		return nil, fmt.Errorf("value column %q not found (columns: %v)", valueColumn, t.Columns)
	}
	lookup, keyColumn, err := rowLookup(t, locationsColumn)
	if err != nil {
		return nil, err
	}

	result := &JoinResult{ValueColumn: column}
	matchedRows := make(map[string]struct{}, t.Len())
	for i := range fc.Features {
		id, ok := fc.Features[i].Identifier(idKey)
		if !ok {
			result.FeaturesWithoutID++
			continue
		}
		row, found := lookup(id)
		if !found {
			result.UnmatchedFeatureIDs = append(result.UnmatchedFeatureIDs, id)
			continue
		}
		matchedRows[row.ID] = struct{}{}
		result.Regions = append(result.Regions, Region{
			ID:           id,
			Value:        row.Cells[column],
			FeatureIndex: i,
		})
	}
	for _, row := range t.Rows() {
		if _, ok := matchedRows[row.ID]; !ok {
			result.UnmatchedRowIDs = append(result.UnmatchedRowIDs, row.ID)
		}
	}
	sort.Strings(result.UnmatchedFeatureIDs)
	sort.Strings(result.UnmatchedRowIDs)
	if len(result.Regions) == 0 {
		return nil, fmt.Errorf("no feature identifier matched any row (idkey=%q, id column=%q)", idKey, keyColumn)
	}
	return result, nil
}

// rowLookup keys rows by the table's identifier column, or re-keys by a
// per-figure locations column. Duplicate keys: last row wins, like decode.
func rowLookup(t *dataset.Table, locationsColumn string) (func(string) (dataset.Row, bool), string, error) {
	locationsColumn = strings.TrimSpace(locationsColumn)
	if locationsColumn == "" || strings.EqualFold(locationsColumn, t.IDColumn) {
		return t.Lookup, t.IDColumn, nil
	}
	column, ok := t.ColumnName(locationsColumn)
	if !ok {
		return nil, "", fmt.Errorf("locations column %q not found (columns: %v)", locationsColumn, t.Columns)
	}
	index := make(map[string]int, t.Len())
	rows := t.Rows()
	for i, row := range rows {
		key := strings.TrimSpace(row.Cells[column].Text)
		if key == "" {
			continue
		}
		index[key] = i
	}
	return func(id string) (dataset.Row, bool) {
		i, ok := index[strings.TrimSpace(id)]
		if !ok {
			return dataset.Row{}, false
		}
		return rows[i], true
	}, column, nil
}
