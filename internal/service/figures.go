// Package service coordinates the figure lifecycle: validate the request,
// pull the sources, render, persist, and export on demand.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"choromap/internal/basemap"
	"choromap/internal/choropleth"
	"choromap/internal/config"
	"choromap/internal/fetch"
	"choromap/internal/figure"
	"choromap/internal/logger"
	"choromap/internal/store/sqlite"
)

// ErrNotFound marks lookups for figures that do not exist.
var ErrNotFound = errors.New("figure not found")

// Figures renders and persists choropleth figures.
type Figures struct {
	sources *fetch.Service
	store   *sqlite.FigureStore
	tokens  *basemap.TokenProvider
	render  config.RenderConfig
	style   string
	pngDir  string
}

// NewFigures wires the figure service. pngDir receives lazily exported
// screenshots; it is created on first export.
func NewFigures(sources *fetch.Service, store *sqlite.FigureStore, tokens *basemap.TokenProvider, cfg *config.Config) *Figures {
	return &Figures{
		sources: sources,
		store:   store,
		tokens:  tokens,
		render:  cfg.Render,
		style:   cfg.Basemap.Style,
		pngDir:  filepath.Join(filepath.Dir(cfg.Store.FiguresPath), "png"),
	}
}

// Create validates the raw request, renders the figure synchronously and
// persists the outcome. Failed renders are persisted too so the history
// shows what was attempted.
func (f *Figures) Create(ctx context.Context, raw []byte) (figure.Record, error) {
	spec, err := figure.ValidateRequest(raw)
	if err != nil {
		return figure.Record{}, err
	}
	spec.Normalize(f.render.Colorscale, f.style, f.render.Opacity, f.render.Width, f.render.Height)
	if !basemap.StyleKnown(spec.Style) {
		return figure.Record{}, fmt.Errorf("unknown style %q", spec.Style)
	}

	rec := figure.Record{
		ID:        uuid.NewString(),
		Spec:      *spec,
		Status:    figure.StatusPending,
		CreatedAt: time.Now().Unix(),
	}

	result, err := f.renderSpec(ctx, spec)
	if err != nil {
		rec.Status = figure.StatusFailed
		rec.Error = err.Error()
		if insertErr := f.store.Insert(ctx, rec, nil); insertErr != nil {
			logger.Errorf("[figure] persisting failed figure %s: %v", rec.ID, insertErr)
		}
		return rec, err
	}

	rec.Status = figure.StatusDone
	rec.MatchedRegions = len(result.Join.Regions)
	rec.UnmatchedFeatures = len(result.Join.UnmatchedFeatureIDs) + result.Join.FeaturesWithoutID
	rec.UnmatchedRows = len(result.Join.UnmatchedRowIDs)
	rec.HTMLSize = len(result.HTML)
	if err := f.store.Insert(ctx, rec, result.HTML); err != nil {
		return figure.Record{}, fmt.Errorf("persisting figure %s: %w", rec.ID, err)
	}
	logger.Infof("[figure] rendered id=%s regions=%d unmatched_features=%d unmatched_rows=%d html=%dB",
		rec.ID, rec.MatchedRegions, rec.UnmatchedFeatures, rec.UnmatchedRows, rec.HTMLSize)
	return rec, nil
}

func (f *Figures) renderSpec(ctx context.Context, spec *figure.Spec) (*choropleth.Result, error) {
	geometry, err := f.sources.Geometry(ctx, spec.GeometrySource)
	if err != nil {
		return nil, err
	}
	table, err := f.sources.Table(ctx, spec.DataSource)
	if err != nil {
		return nil, err
	}
	idKey := spec.FeatureIDKey
	if idKey == "" {
		idKey, err = f.sources.IDKey(spec.GeometrySource)
		if err != nil {
			return nil, err
		}
	}
	var token string
	if basemap.StyleNeedsToken(spec.Style) {
		token, err = f.tokens.Require(spec.Style)
		if err != nil {
			return nil, err
		}
	}
	return choropleth.Render(choropleth.Input{
		Spec:     *spec,
		Geometry: geometry,
		Table:    table,
		IDKey:    idKey,
		Token:    token,
	})
}

// Get loads one persisted figure.
func (f *Figures) Get(ctx context.Context, id string) (figure.Record, error) {
	rec, err := f.store.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return figure.Record{}, ErrNotFound
	}
	return rec, err
}

// HTML loads the rendered document of a finished figure.
func (f *Figures) HTML(ctx context.Context, id string) ([]byte, error) {
	html, err := f.store.HTML(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(html) == 0 {
		return nil, fmt.Errorf("figure %s has no rendered document", id)
	}
	return html, nil
}

// List pages the persisted figures, newest first.
func (f *Figures) List(ctx context.Context, q sqlite.ListQuery) ([]figure.Record, int64, error) {
	return f.store.List(ctx, q)
}

// PNG exports a figure as a screenshot, lazily on first call. The exported
// file is kept beside the database and reused afterwards.
func (f *Figures) PNG(ctx context.Context, id string) ([]byte, error) {
	rec, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != figure.StatusDone {
		return nil, fmt.Errorf("figure %s is %s, nothing to export", id, rec.Status)
	}
	if rec.PNGPath != "" {
		if data, err := os.ReadFile(rec.PNGPath); err == nil && len(data) > 0 {
			return data, nil
		}
		// Stale path, fall through and re-export.
	}

	html, err := f.HTML(ctx, id)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(f.render.PNGTimeoutSeconds) * time.Second
	png, err := choropleth.RenderHTMLToPNG(ctx, html, rec.Spec.Width, rec.Spec.Height, timeout)
	if err != nil {
		return nil, fmt.Errorf("png export failed for %s: %w", id, err)
	}

	if err := os.MkdirAll(f.pngDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(f.pngDir, fmt.Sprintf("%s.png", strings.ToLower(id)))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return nil, err
	}
	rec.PNGPath = path
	if err := f.store.Update(ctx, rec); err != nil {
		logger.Warnf("[figure] png path update failed id=%s err=%v", id, err)
	}
	logger.Infof("[figure] png exported id=%s size=%dB path=%s", id, len(png), path)
	return png, nil
}
