package dataset

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unempCSV = "fips,unemp\n01001,5.3\n01003,5.4\n06037,4.7\n"

func TestDecodeCSV(t *testing.T) {
	tbl, err := DecodeCSV([]byte(unempCSV), "fips")
	require.NoError(t, err)
	assert.Equal(t, []string{"fips", "unemp"}, tbl.Columns)
	assert.Equal(t, "fips", tbl.IDColumn)
	assert.Equal(t, 3, tbl.Len())

	// Identifiers keep their exact text.
	row, ok := tbl.Lookup("06037")
	require.True(t, ok)
	assert.Equal(t, "06037", row.ID)
	assert.True(t, row.Cells["unemp"].Numeric)
	assert.True(t, row.Cells["unemp"].Num.Equal(decimal.NewFromFloat(4.7)))

	_, ok = tbl.Lookup("6037")
	assert.False(t, ok)
}

func TestDecodeCSVIDColumnCaseInsensitive(t *testing.T) {
	tbl, err := DecodeCSV([]byte("FIPS,unemp\n01001,5.3\n"), "fips")
	require.NoError(t, err)
	assert.Equal(t, "FIPS", tbl.IDColumn)
	_, ok := tbl.Lookup("01001")
	assert.True(t, ok)
}

func TestDecodeCSVErrors(t *testing.T) {
	t.Run("missing id column", func(t *testing.T) {
		_, err := DecodeCSV([]byte(unempCSV), "district")
		assert.ErrorContains(t, err, "district")
	})
	t.Run("empty payload", func(t *testing.T) {
		_, err := DecodeCSV([]byte(""), "fips")
		assert.Error(t, err)
	})
	t.Run("ragged row", func(t *testing.T) {
		_, err := DecodeCSV([]byte("fips,unemp\n01001\n"), "fips")
		assert.Error(t, err)
	})
	t.Run("only empty ids", func(t *testing.T) {
		_, err := DecodeCSV([]byte("fips,unemp\n,5.3\n"), "fips")
		assert.Error(t, err)
	})
}

func TestDecodeCSVDuplicateIDLastWins(t *testing.T) {
	tbl, err := DecodeCSV([]byte("fips,unemp\n01001,5.3\n01001,9.9\n"), "fips")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	row, _ := tbl.Lookup("01001")
	assert.Equal(t, "9.9", row.Cells["unemp"].Text)
}

func TestDecodeJSONRows(t *testing.T) {
	payload := `[
	  {"district": "101-Bois-de-Liesse", "winner": "Coderre", "total": 4896},
	  {"district": "102-Cap-Saint-Jacques", "winner": "Bergeron", "total": 5077}
	]`
	tbl, err := DecodeJSONRows([]byte(payload), "district")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.HasColumn("winner"))

	row, ok := tbl.Lookup("102-Cap-Saint-Jacques")
	require.True(t, ok)
	assert.Equal(t, "Bergeron", row.Cells["winner"].Text)
	assert.False(t, row.Cells["winner"].Numeric)
	assert.True(t, row.Cells["total"].Numeric)
}

func TestDecodeJSONRowsMissingID(t *testing.T) {
	_, err := DecodeJSONRows([]byte(`[{"winner": "Coderre"}]`), "district")
	assert.ErrorContains(t, err, "district")
}

func TestNumericColumn(t *testing.T) {
	csv := "id,rate,winner\na,1.5,Coderre\nb,2.5,Bergeron\nc,,Joly\n"
	tbl, err := DecodeCSV([]byte(csv), "id")
	require.NoError(t, err)

	// Empty cells do not break numeric detection.
	assert.True(t, tbl.NumericColumn("rate"))
	assert.False(t, tbl.NumericColumn("winner"))
	assert.False(t, tbl.NumericColumn("missing"))
}

func TestNumericRange(t *testing.T) {
	tbl, err := DecodeCSV([]byte(unempCSV), "fips")
	require.NoError(t, err)

	min, max, err := tbl.NumericRange("unemp")
	require.NoError(t, err)
	assert.True(t, min.Equal(decimal.NewFromFloat(4.7)))
	assert.True(t, max.Equal(decimal.NewFromFloat(5.4)))

	_, _, err = tbl.NumericRange("fips")
	assert.NoError(t, err) // fips cells parse as numbers too

	_, _, err = tbl.NumericRange("missing")
	assert.Error(t, err)
}

func TestDistinctValues(t *testing.T) {
	csv := "district,winner\na,Coderre\nb,Bergeron\nc,Coderre\nd,Joly\n"
	tbl, err := DecodeCSV([]byte(csv), "district")
	require.NoError(t, err)

	assert.Equal(t, []string{"Coderre", "Bergeron", "Joly"}, tbl.DistinctValues("winner"))
	assert.Nil(t, tbl.DistinctValues("missing"))
}

func TestColumnName(t *testing.T) {
	tbl, err := DecodeCSV([]byte(unempCSV), "fips")
	require.NoError(t, err)

	name, ok := tbl.ColumnName("UNEMP")
	require.True(t, ok)
	assert.Equal(t, "unemp", name)

	_, ok = tbl.ColumnName("nope")
	assert.False(t, ok)
}
