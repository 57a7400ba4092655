// Package fetch pulls remote GeoJSON and tabular sources over HTTP, keeps
// the last good payload in memory and in the persistent cache, and decodes
// on demand.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"choromap/internal/config"
	"choromap/internal/dataset"
	"choromap/internal/geo"
	"choromap/internal/logger"
	"choromap/internal/store/cache"

	"golang.org/x/sync/errgroup"
)

const (
	fetchTimeout      = 30 * time.Second
	fetchErrorBackoff = 2 * time.Minute
	maxPayloadBytes   = 64 << 20 // the county GeoJSON alone is ~3MB
)

// PayloadCache is the persistence the service writes through. A nil cache
// disables persistence.
type PayloadCache interface {
	Get(ctx context.Context, name string) (*cache.Payload, error)
	Put(ctx context.Context, p *cache.Payload) error
}

// Status summarizes one source for the API.
type Status struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Kind        string    `json:"kind"`
	IDKey       string    `json:"id_key,omitempty"`
	IDColumn    string    `json:"id_column,omitempty"`
	Size        int       `json:"size"`
	FetchedAt   time.Time `json:"fetched_at"`
	NextRefresh time.Time `json:"next_refresh"`
	FromCache   bool      `json:"from_cache"`
	Error       string    `json:"error,omitempty"`
}

type sourceEntry struct {
	cfg config.SourceConfig

	mu          sync.RWMutex
	body        []byte
	contentType string
	etag        string
	fetchedAt   time.Time
	nextRefresh time.Time
	fromCache   bool
	lastErr     string
	geometry    *geo.FeatureCollection
	table       *dataset.Table

	refreshMu sync.Mutex
}

// Service owns all configured sources.
type Service struct {
	client *http.Client
	cache  PayloadCache
	ttl    time.Duration

	entries map[string]*sourceEntry
	order   []string
}

// NewService builds a fetch service over the configured sources. ttl is how
// long a payload is considered fresh.
func NewService(sources []config.SourceConfig, payloads PayloadCache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	s := &Service{
		client:  &http.Client{Timeout: fetchTimeout},
		cache:   payloads,
		ttl:     ttl,
		entries: make(map[string]*sourceEntry, len(sources)),
	}
	for _, cfg := range sources {
		key := strings.ToLower(cfg.Name)
		if _, dup := s.entries[key]; dup {
			continue
		}
		s.entries[key] = &sourceEntry{cfg: cfg}
		s.order = append(s.order, key)
	}
	return s
}

// Warmup restores payloads from the persistent cache and fetches whatever
// is missing or stale, concurrently across sources.
func (s *Service) Warmup(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, key := range s.order {
		entry := s.entries[key]
		group.Go(func() error {
			s.loadFromCache(gctx, entry)
			if err := s.refreshIfStale(gctx, entry); err != nil {
				// Keep serving the cached payload; warmup only fails when a
				// source has nothing at all.
				entry.mu.RLock()
				empty := len(entry.body) == 0
				entry.mu.RUnlock()
				if empty {
					return fmt.Errorf("source %s: %w", entry.cfg.Name, err)
				}
				logger.Warnf("[fetch] source %s refresh failed, serving cached payload: %v", entry.cfg.Name, err)
			}
			return nil
		})
	}
	return group.Wait()
}

// RefreshStale re-fetches every source past its freshness window. Used by
// the scheduler; individual failures are logged, not fatal.
func (s *Service) RefreshStale(ctx context.Context) {
	for _, key := range s.order {
		entry := s.entries[key]
		if err := s.refreshIfStale(ctx, entry); err != nil {
			logger.Warnf("[fetch] scheduled refresh failed source=%s err=%v", entry.cfg.Name, err)
		}
	}
}

// Refresh force-fetches one source by name.
func (s *Service) Refresh(ctx context.Context, name string) error {
	entry, err := s.entry(name)
	if err != nil {
		return err
	}
	entry.refreshMu.Lock()
	defer entry.refreshMu.Unlock()
	return s.refresh(ctx, entry)
}

// Geometry returns the decoded feature collection for a geojson source,
// fetching first when nothing is loaded yet.
func (s *Service) Geometry(ctx context.Context, name string) (*geo.FeatureCollection, error) {
	entry, err := s.entry(name)
	if err != nil {
		return nil, err
	}
	if entry.cfg.Kind != "geojson" {
		return nil, fmt.Errorf("source %s is %q, not geojson", entry.cfg.Name, entry.cfg.Kind)
	}
	if err := s.ensureLoaded(ctx, entry); err != nil {
		return nil, err
	}
	entry.mu.RLock()
	fc := entry.geometry
	body := entry.body
	entry.mu.RUnlock()
	if fc != nil {
		return fc, nil
	}
	fc, err = geo.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", entry.cfg.Name, err)
	}
	entry.mu.Lock()
	entry.geometry = fc
	entry.mu.Unlock()
	return fc, nil
}

// Table returns the decoded table for a table source.
func (s *Service) Table(ctx context.Context, name string) (*dataset.Table, error) {
	entry, err := s.entry(name)
	if err != nil {
		return nil, err
	}
	if entry.cfg.Kind != "table" {
		return nil, fmt.Errorf("source %s is %q, not table", entry.cfg.Name, entry.cfg.Kind)
	}
	if err := s.ensureLoaded(ctx, entry); err != nil {
		return nil, err
	}
	entry.mu.RLock()
	t := entry.table
	body := entry.body
	contentType := entry.contentType
	entry.mu.RUnlock()
	if t != nil {
		return t, nil
	}
	t, err = decodeTable(body, contentType, entry.cfg.IDColumn)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", entry.cfg.Name, err)
	}
	entry.mu.Lock()
	entry.table = t
	entry.mu.Unlock()
	return t, nil
}

// IDKey resolves the feature identifier path configured for a geojson
// source.
func (s *Service) IDKey(name string) (string, error) {
	entry, err := s.entry(name)
	if err != nil {
		return "", err
	}
	return entry.cfg.IDKey, nil
}

// List reports the status of every source in config order.
func (s *Service) List() []Status {
	out := make([]Status, 0, len(s.order))
	for _, key := range s.order {
		entry := s.entries[key]
		entry.mu.RLock()
		out = append(out, Status{
			Name:        entry.cfg.Name,
			URL:         entry.cfg.URL,
			Kind:        entry.cfg.Kind,
			IDKey:       entry.cfg.IDKey,
			IDColumn:    entry.cfg.IDColumn,
			Size:        len(entry.body),
			FetchedAt:   entry.fetchedAt,
			NextRefresh: entry.nextRefresh,
			FromCache:   entry.fromCache,
			Error:       entry.lastErr,
		})
		entry.mu.RUnlock()
	}
	return out
}

func (s *Service) entry(name string) (*sourceEntry, error) {
	entry, ok := s.entries[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return entry, nil
}

func (s *Service) ensureLoaded(ctx context.Context, entry *sourceEntry) error {
	entry.mu.RLock()
	loaded := len(entry.body) > 0
	entry.mu.RUnlock()
	if loaded {
		return nil
	}
	s.loadFromCache(ctx, entry)
	entry.mu.RLock()
	loaded = len(entry.body) > 0
	entry.mu.RUnlock()
	if loaded {
		return nil
	}
	entry.refreshMu.Lock()
	defer entry.refreshMu.Unlock()
	entry.mu.RLock()
	loaded = len(entry.body) > 0
	entry.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.refresh(ctx, entry)
}

func (s *Service) loadFromCache(ctx context.Context, entry *sourceEntry) {
	if s.cache == nil {
		return
	}
	entry.mu.RLock()
	loaded := len(entry.body) > 0
	entry.mu.RUnlock()
	if loaded {
		return
	}
	cached, err := s.cache.Get(ctx, entry.cfg.Name)
	if err != nil {
		logger.Warnf("[fetch] cache read failed source=%s err=%v", entry.cfg.Name, err)
		return
	}
	if cached == nil || len(cached.Body) == 0 {
		return
	}
	entry.mu.Lock()
	entry.body = cached.Body
	entry.contentType = cached.ContentType
	entry.etag = cached.ETag
	entry.fetchedAt = cached.FetchedAt
	entry.nextRefresh = cached.FetchedAt.Add(s.ttl)
	entry.fromCache = true
	entry.geometry = nil
	entry.table = nil
	entry.mu.Unlock()
	logger.Debugf("[fetch] cache hit source=%s size=%d age=%s", entry.cfg.Name, len(cached.Body), time.Since(cached.FetchedAt).Truncate(time.Second))
}

func (s *Service) refreshIfStale(ctx context.Context, entry *sourceEntry) error {
	now := time.Now()
	entry.mu.RLock()
	next := entry.nextRefresh
	loaded := len(entry.body) > 0
	entry.mu.RUnlock()
	if loaded && !next.IsZero() && now.Before(next) {
		return nil
	}

	entry.refreshMu.Lock()
	defer entry.refreshMu.Unlock()

	entry.mu.RLock()
	next = entry.nextRefresh
	loaded = len(entry.body) > 0
	entry.mu.RUnlock()
	if loaded && !next.IsZero() && now.Before(next) {
		return nil
	}
	return s.refresh(ctx, entry)
}

func (s *Service) refresh(ctx context.Context, entry *sourceEntry) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.cfg.URL, nil)
	if err != nil {
		s.setError(entry, err)
		return err
	}
	req.Header.Set("Accept", "application/json, text/csv, */*")
	entry.mu.RLock()
	etag := entry.etag
	entry.mu.RUnlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.setError(entry, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		now := time.Now()
		entry.mu.Lock()
		entry.fetchedAt = now
		entry.nextRefresh = now.Add(s.ttl)
		entry.lastErr = ""
		entry.mu.Unlock()
		logger.Debugf("[fetch] source %s not modified", entry.cfg.Name)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		s.setError(entry, err)
		return err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		s.setError(entry, err)
		return err
	}
	if len(body) > maxPayloadBytes {
		err := fmt.Errorf("payload exceeds %d bytes", maxPayloadBytes)
		s.setError(entry, err)
		return err
	}
	contentType := resp.Header.Get("Content-Type")

	// Reject payloads that do not parse before they replace a good one.
	if err := validatePayload(entry.cfg, body, contentType); err != nil {
		s.setError(entry, err)
		return err
	}

	now := time.Now()
	entry.mu.Lock()
	entry.body = body
	entry.contentType = contentType
	entry.etag = resp.Header.Get("ETag")
	entry.fetchedAt = now
	entry.nextRefresh = now.Add(s.ttl)
	entry.fromCache = false
	entry.lastErr = ""
	entry.geometry = nil
	entry.table = nil
	entry.mu.Unlock()

	if s.cache != nil {
		put := &cache.Payload{
			Name:        entry.cfg.Name,
			URL:         entry.cfg.URL,
			Kind:        entry.cfg.Kind,
			ContentType: contentType,
			ETag:        resp.Header.Get("ETag"),
			Body:        body,
			FetchedAt:   now,
		}
		if err := s.cache.Put(ctx, put); err != nil {
			logger.Warnf("[fetch] cache write failed source=%s err=%v", entry.cfg.Name, err)
		}
	}
	logger.Infof("[fetch] source %s fetched size=%d status=%d", entry.cfg.Name, len(body), resp.StatusCode)
	return nil
}

func (s *Service) setError(entry *sourceEntry, err error) {
	now := time.Now()
	entry.mu.Lock()
	entry.lastErr = err.Error()
	entry.nextRefresh = now.Add(fetchErrorBackoff)
	entry.mu.Unlock()
}

func validatePayload(cfg config.SourceConfig, body []byte, contentType string) error {
	switch cfg.Kind {
	case "geojson":
		return geo.ValidateDocument(body)
	case "table":
		_, err := decodeTable(body, contentType, cfg.IDColumn)
		return err
	default:
		return fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func decodeTable(body []byte, contentType, idColumn string) (*dataset.Table, error) {
	lead := bytes.TrimLeft(body, " \t\r\n")
	if strings.Contains(strings.ToLower(contentType), "json") || (len(lead) > 0 && lead[0] == '[') {
		return dataset.DecodeJSONRows(body, idColumn)
	}
	return dataset.DecodeCSV(body, idColumn)
}
