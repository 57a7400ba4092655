// Package dataset materializes delimited or JSON tabular payloads into an
// in-memory table keyed by an identifier column.
package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Value is one cell. Numeric cells keep both the exact decimal and the
// original text; identifiers always stay text so leading zeros survive.
type Value struct {
	Text    string
	Num     decimal.Decimal
	Numeric bool
}

// Row is one record keyed by its identifier.
type Row struct {
	ID    string
	Cells map[string]Value
}

// Table is an ordered set of rows plus a lookup index over the identifier
// column. Duplicate identifiers: the last row wins.
type Table struct {
	Columns  []string
	IDColumn string

	rows  []Row
	index map[string]int
}

// DecodeCSV parses a CSV payload with a header row. idColumn is matched
// case-insensitively against the header.
func DecodeCSV(data []byte, idColumn string) (*Table, error) {
	idColumn = strings.TrimSpace(idColumn)
	if idColumn == "" {
		return nil, fmt.Errorf("id column is required")
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv decode failed: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv payload is empty")
	}
	header := records[0]
	idIdx := -1
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		columns[i] = name
		if strings.EqualFold(name, idColumn) {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("id column %q not found in header %v", idColumn, columns)
	}
	t := &Table{
		Columns:  columns,
		IDColumn: columns[idIdx],
		index:    make(map[string]int, len(records)-1),
	}
	for lineNo, rec := range records[1:] {
		if len(rec) != len(columns) {
			return nil, fmt.Errorf("csv row %d has %d fields, header has %d", lineNo+2, len(rec), len(columns))
		}
		id := strings.TrimSpace(rec[idIdx])
		if id == "" {
			continue
		}
		row := Row{ID: id, Cells: make(map[string]Value, len(columns))}
		for i, cell := range rec {
			row.Cells[columns[i]] = parseCell(cell)
		}
		t.append(row)
	}
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("csv payload has no rows with identifier %q", idColumn)
	}
	return t, nil
}

// DecodeJSONRows parses an array of flat JSON objects into a table. Column
// order follows first appearance across rows.
func DecodeJSONRows(data []byte, idColumn string) (*Table, error) {
	idColumn = strings.TrimSpace(idColumn)
	if idColumn == "" {
		return nil, fmt.Errorf("id column is required")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("json rows decode failed: %w", err)
	}
	t := &Table{IDColumn: idColumn, index: make(map[string]int, len(objects))}
	seenCols := make(map[string]struct{})
	for i, obj := range objects {
		rawID, ok := obj[idColumn]
		if !ok {
			return nil, fmt.Errorf("json row %d missing id field %q", i, idColumn)
		}
		id := strings.TrimSpace(fmt.Sprint(rawID))
		if id == "" {
			continue
		}
		row := Row{ID: id, Cells: make(map[string]Value, len(obj))}
		for name, val := range obj {
			if _, seen := seenCols[name]; !seen {
				seenCols[name] = struct{}{}
				t.Columns = append(t.Columns, name)
			}
			row.Cells[name] = parseJSONCell(val)
		}
		t.append(row)
	}
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("json payload has no usable rows")
	}
	return t, nil
}

func parseCell(text string) Value {
	text = strings.TrimSpace(text)
	if text == "" {
		return Value{}
	}
	if num, err := decimal.NewFromString(text); err == nil {
		return Value{Text: text, Num: num, Numeric: true}
	}
	return Value{Text: text}
}

func parseJSONCell(val any) Value {
	switch v := val.(type) {
	case nil:
		return Value{}
	case json.Number:
		if num, err := decimal.NewFromString(v.String()); err == nil {
			return Value{Text: v.String(), Num: num, Numeric: true}
		}
		return Value{Text: v.String()}
	case bool:
		return Value{Text: fmt.Sprintf("%v", v)}
	case string:
		return parseCell(v)
	default:
		return Value{Text: fmt.Sprint(v)}
	}
}

func (t *Table) append(row Row) {
	if prev, dup := t.index[row.ID]; dup {
		t.rows[prev] = row
		return
	}
	t.index[row.ID] = len(t.rows)
	t.rows = append(t.rows, row)
}

// Len reports the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns the rows in input order.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	return t.rows
}

// Lookup finds the row with the given identifier.
func (t *Table) Lookup(id string) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	idx, ok := t.index[strings.TrimSpace(id)]
	if !ok {
		return Row{}, false
	}
	return t.rows[idx], true
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// ColumnName resolves the canonical (header-cased) name for a column.
func (t *Table) ColumnName(name string) (string, bool) {
	for _, col := range t.Columns {
		if strings.EqualFold(col, name) {
			return col, true
		}
	}
	return "", false
}

// NumericColumn reports whether every non-empty cell of the column parses
// as a number, and that at least one such cell exists.
func (t *Table) NumericColumn(name string) bool {
	col, ok := t.ColumnName(name)
	if !ok {
		return false
	}
	found := false
	for _, row := range t.rows {
		cell, ok := row.Cells[col]
		if !ok || cell.Text == "" {
			continue
		}
		if !cell.Numeric {
			return false
		}
		found = true
	}
	return found
}

// NumericRange returns the min and max of a numeric column.
func (t *Table) NumericRange(name string) (min, max decimal.Decimal, err error) {
	col, ok := t.ColumnName(name)
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("column %q not found", name)
	}
	found := false
	for _, row := range t.rows {
		cell, ok := row.Cells[col]
		if !ok || !cell.Numeric {
			continue
		}
		if !found {
			min, max = cell.Num, cell.Num
			found = true
			continue
		}
		if cell.Num.LessThan(min) {
			min = cell.Num
		}
		if cell.Num.GreaterThan(max) {
			max = cell.Num
		}
	}
	if !found {
		return decimal.Zero, decimal.Zero, fmt.Errorf("column %q has no numeric values", name)
	}
	return min, max, nil
}

// DistinctValues lists the distinct cell texts of a column in first-seen
// order, for categorical coloring.
func (t *Table) DistinctValues(name string) []string {
	col, ok := t.ColumnName(name)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, row := range t.rows {
		cell, ok := row.Cells[col]
		if !ok || cell.Text == "" {
			continue
		}
		if _, dup := seen[cell.Text]; dup {
			continue
		}
		seen[cell.Text] = struct{}{}
		out = append(out, cell.Text)
	}
	return out
}
