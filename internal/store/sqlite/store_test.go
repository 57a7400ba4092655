package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"choromap/internal/figure"
)

func newTestStore(t *testing.T) *FigureStore {
	t.Helper()
	store, err := NewFigureStore(filepath.Join(t.TempDir(), "figures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(id string) figure.Record {
	spec := figure.Spec{
		GeometrySource: "us-counties",
		DataSource:     "us-county-unemployment",
		ValueColumn:    "unemp",
	}
	spec.Normalize("Viridis", "carto-positron", 0.8, 1000, 700)
	return figure.Record{
		ID:             id,
		Spec:           spec,
		Status:         figure.StatusDone,
		MatchedRegions: 3,
	}
}

func TestInsertGetHTML(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("fig-1")
	html := []byte("<html>map</html>")
	require.NoError(t, store.Insert(ctx, rec, html))

	got, err := store.Get(ctx, "fig-1")
	require.NoError(t, err)
	assert.Equal(t, figure.StatusDone, got.Status)
	assert.Equal(t, "us-counties", got.Spec.GeometrySource)
	assert.Equal(t, 3, got.MatchedRegions)
	assert.NotZero(t, got.CreatedAt)

	body, err := store.HTML(ctx, "fig-1")
	require.NoError(t, err)
	assert.Equal(t, html, body)
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("fig-2")
	require.NoError(t, store.Insert(ctx, rec, nil))

	rec.PNGPath = "data/db/png/fig-2.png"
	require.NoError(t, store.Update(ctx, rec))

	got, err := store.Get(ctx, "fig-2")
	require.NoError(t, err)
	assert.Equal(t, "data/db/png/fig-2.png", got.PNGPath)

	missing := sampleRecord("fig-404")
	assert.ErrorIs(t, store.Update(ctx, missing), gorm.ErrRecordNotFound)
}

func TestListPagingAndStatusFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		rec := sampleRecord(id)
		rec.CreatedAt = int64(1000 + i)
		if id == "c" {
			rec.Status = figure.StatusFailed
			rec.Error = "join produced no matches"
		}
		require.NoError(t, store.Insert(ctx, rec, []byte("<html/>")))
	}

	records, total, err := store.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, records, 3)
	// Newest first, HTML omitted from listings.
	assert.Equal(t, "c", records[0].ID)
	assert.Zero(t, records[0].HTMLSize)

	records, total, err = store.List(ctx, ListQuery{Status: figure.StatusFailed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "join produced no matches", records[0].Error)

	records, _, err = store.List(ctx, ListQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)
}
