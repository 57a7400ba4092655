// Package cache persists fetched source payloads so restarts and refresh
// backoffs can serve the last good body without touching the network.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Payload is one cached HTTP body plus the headers needed for revalidation.
type Payload struct {
	Name        string
	URL         string
	Kind        string
	ContentType string
	ETag        string
	Body        []byte
	FetchedAt   time.Time
}

// PayloadStore keeps payloads in a single SQLite table keyed by source name.
type PayloadStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewPayloadStore opens (and migrates) the payload cache at path.
func NewPayloadStore(path string) (*PayloadStore, error) {
	if path == "" {
		return nil, fmt.Errorf("payload cache path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PayloadStore{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS source_payloads (
		name         TEXT PRIMARY KEY,
		url          TEXT NOT NULL,
		kind         TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		etag         TEXT NOT NULL DEFAULT '',
		body         BLOB NOT NULL,
		fetched_at   INTEGER NOT NULL
	)`
	_, err := db.Exec(ddl)
	return err
}

// Close releases the database handle.
func (s *PayloadStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached payload for a source, or nil when absent.
func (s *PayloadStore) Get(ctx context.Context, name string) (*Payload, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("payload cache not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT name, url, kind, content_type, etag, body, fetched_at FROM source_payloads WHERE name = ?`, name)
	var p Payload
	var fetchedAt int64
	if err := row.Scan(&p.Name, &p.URL, &p.Kind, &p.ContentType, &p.ETag, &p.Body, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return &p, nil
}

// Put upserts a payload.
func (s *PayloadStore) Put(ctx context.Context, p *Payload) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("payload cache not initialized")
	}
	if p == nil || p.Name == "" {
		return fmt.Errorf("payload requires a source name")
	}
	fetchedAt := p.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_payloads (name, url, kind, content_type, etag, body, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			url = excluded.url,
			kind = excluded.kind,
			content_type = excluded.content_type,
			etag = excluded.etag,
			body = excluded.body,
			fetched_at = excluded.fetched_at`,
		p.Name, p.URL, p.Kind, p.ContentType, p.ETag, p.Body, fetchedAt.Unix())
	return err
}

// Entry summarizes a cached payload without its body.
type Entry struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// List enumerates cache entries ordered by name.
func (s *PayloadStore) List(ctx context.Context) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("payload cache not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, url, kind, content_type, LENGTH(body), fetched_at FROM source_payloads ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var fetchedAt int64
		if err := rows.Scan(&e.Name, &e.URL, &e.Kind, &e.ContentType, &e.Size, &fetchedAt); err != nil {
			return nil, err
		}
		e.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
