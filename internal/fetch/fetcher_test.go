package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choromap/internal/config"
	"choromap/internal/store/cache"
)

const testGeoJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","id":"06037","properties":{},
   "geometry":{"type":"Polygon","coordinates":[[[-118.9,33.7],[-117.6,33.7],[-117.6,34.8],[-118.9,33.7]]]}}]}`

const testCSV = "fips,unemp\n06037,4.7\n"

type countingHandler struct {
	mu      sync.Mutex
	hits    map[string]int
	etag    string
	geojson string
	csv     string
}

func newCountingHandler() *countingHandler {
	return &countingHandler{hits: map[string]int{}, geojson: testGeoJSON, csv: testCSV}
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.hits[r.URL.Path]++
	h.mu.Unlock()
	switch r.URL.Path {
	case "/counties.json":
		if h.etag != "" {
			if r.Header.Get("If-None-Match") == h.etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", h.etag)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(h.geojson))
	case "/unemp.csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(h.csv))
	case "/broken.json":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"not":"geojson"}`))
	default:
		http.NotFound(w, r)
	}
}

func (h *countingHandler) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func testSources(baseURL string) []config.SourceConfig {
	return []config.SourceConfig{
		{Name: "counties", URL: baseURL + "/counties.json", Kind: "geojson", IDKey: "id"},
		{Name: "unemp", URL: baseURL + "/unemp.csv", Kind: "table", IDColumn: "fips"},
	}
}

func TestWarmupAndDecode(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	svc := NewService(testSources(srv.URL), nil, time.Hour)
	require.NoError(t, svc.Warmup(context.Background()))

	fc, err := svc.Geometry(context.Background(), "counties")
	require.NoError(t, err)
	assert.Equal(t, 1, fc.Len())

	tbl, err := svc.Table(context.Background(), "unemp")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	// Decoded values are memoized; no extra fetches.
	_, err = svc.Geometry(context.Background(), "counties")
	require.NoError(t, err)
	assert.Equal(t, 1, handler.count("/counties.json"))

	statuses := svc.List()
	require.Len(t, statuses, 2)
	assert.Equal(t, "counties", statuses[0].Name)
	assert.Empty(t, statuses[0].Error)
	assert.False(t, statuses[0].FetchedAt.IsZero())
}

func TestKindMismatch(t *testing.T) {
	srv := httptest.NewServer(newCountingHandler())
	defer srv.Close()

	svc := NewService(testSources(srv.URL), nil, time.Hour)

	_, err := svc.Geometry(context.Background(), "unemp")
	assert.ErrorContains(t, err, "not geojson")

	_, err = svc.Table(context.Background(), "counties")
	assert.ErrorContains(t, err, "not table")

	_, err = svc.Geometry(context.Background(), "nope")
	assert.ErrorContains(t, err, "unknown source")
}

func TestRefreshNotModified(t *testing.T) {
	handler := newCountingHandler()
	handler.etag = `"v1"`
	srv := httptest.NewServer(handler)
	defer srv.Close()

	svc := NewService(testSources(srv.URL)[:1], nil, time.Hour)
	require.NoError(t, svc.Refresh(context.Background(), "counties"))
	require.NoError(t, svc.Refresh(context.Background(), "counties"))

	// Second fetch got a 304 and kept the body.
	assert.Equal(t, 2, handler.count("/counties.json"))
	fc, err := svc.Geometry(context.Background(), "counties")
	require.NoError(t, err)
	assert.Equal(t, 1, fc.Len())
}

func TestInvalidPayloadKeepsLastGood(t *testing.T) {
	handler := newCountingHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	svc := NewService(testSources(srv.URL)[:1], nil, time.Hour)
	require.NoError(t, svc.Refresh(context.Background(), "counties"))

	handler.mu.Lock()
	handler.geojson = `{"type":"Oops"}`
	handler.mu.Unlock()

	err := svc.Refresh(context.Background(), "counties")
	assert.Error(t, err)

	// Previous payload still serves.
	fc, err := svc.Geometry(context.Background(), "counties")
	require.NoError(t, err)
	assert.Equal(t, 1, fc.Len())

	statuses := svc.List()
	assert.NotEmpty(t, statuses[0].Error)
}

func TestFetchFailureSetsBackoff(t *testing.T) {
	sources := []config.SourceConfig{
		{Name: "broken", URL: "http://127.0.0.1:1/nope.json", Kind: "geojson", IDKey: "id"},
	}
	svc := NewService(sources, nil, time.Hour)
	err := svc.Refresh(context.Background(), "broken")
	require.Error(t, err)

	statuses := svc.List()
	assert.NotEmpty(t, statuses[0].Error)
	assert.True(t, statuses[0].NextRefresh.After(time.Now()))
}

func TestWarmupFromCache(t *testing.T) {
	srv := httptest.NewServer(newCountingHandler())
	defer srv.Close()

	store, err := cache.NewPayloadStore(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	defer store.Close()

	sources := testSources(srv.URL)
	svc := NewService(sources, store, time.Hour)
	require.NoError(t, svc.Warmup(context.Background()))

	// A second service over the same cache restores without fetching.
	svc2 := NewService(sources, store, time.Hour)
	require.NoError(t, svc2.Warmup(context.Background()))

	statuses := svc2.List()
	for _, st := range statuses {
		assert.True(t, st.FromCache, "source %s should come from cache", st.Name)
	}
}

func TestJSONRowsContentType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rows.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"district":"101","winner":"Coderre"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources := []config.SourceConfig{
		{Name: "rows", URL: srv.URL + "/rows.json", Kind: "table", IDColumn: "district"},
	}
	svc := NewService(sources, nil, time.Hour)
	tbl, err := svc.Table(context.Background(), "rows")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	row, ok := tbl.Lookup("101")
	require.True(t, ok)
	assert.Equal(t, "Coderre", row.Cells["winner"].Text)
}
