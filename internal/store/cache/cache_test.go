package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PayloadStore {
	t.Helper()
	store, err := NewPayloadStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fetched := time.Now().Add(-time.Minute).Truncate(time.Second)
	err := store.Put(ctx, &Payload{
		Name:        "counties",
		URL:         "https://example.test/counties.json",
		Kind:        "geojson",
		ContentType: "application/json",
		ETag:        `"v1"`,
		Body:        []byte(`{"type":"FeatureCollection","features":[]}`),
		FetchedAt:   fetched,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "counties")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "geojson", got.Kind)
	assert.Equal(t, `"v1"`, got.ETag)
	assert.Equal(t, fetched.Unix(), got.FetchedAt.Unix())
	assert.NotEmpty(t, got.Body)
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPutUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Payload{Name: "src", URL: "u", Kind: "table", Body: []byte("a")}))
	require.NoError(t, store.Put(ctx, &Payload{Name: "src", URL: "u", Kind: "table", Body: []byte("bb")}))

	got, err := store.Get(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, []byte("bb"), got.Body)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Size)
}

func TestPutRequiresName(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Put(context.Background(), &Payload{Body: []byte("x")}))
	assert.Error(t, store.Put(context.Background(), nil))
}
