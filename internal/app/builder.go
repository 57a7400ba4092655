package app

import (
	"context"
	"fmt"
	"time"

	"choromap/internal/basemap"
	"choromap/internal/config"
	"choromap/internal/fetch"
	"choromap/internal/logger"
	"choromap/internal/service"
	"choromap/internal/store/cache"
	"choromap/internal/store/sqlite"
	apihttp "choromap/internal/transport/http"
)

// AppBuilder assembles the App. Constructor funcs are fields so tests can
// swap stores and servers without touching the wiring.
type AppBuilder struct {
	cfg *config.Config

	payloadStoreFn func(string) (*cache.PayloadStore, error)
	figureStoreFn  func(string) (*sqlite.FigureStore, error)
	serverFn       func(apihttp.ServerConfig) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		payloadStoreFn: cache.NewPayloadStore,
		figureStoreFn:  sqlite.NewFigureStore,
		serverFn:       apihttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithFigureStore overrides the figure store constructor (tests).
func WithFigureStore(fn func(string) (*sqlite.FigureStore, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.figureStoreFn = fn }
}

// WithPayloadStore overrides the payload cache constructor (tests).
func WithPayloadStore(fn func(string) (*cache.PayloadStore, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.payloadStoreFn = fn }
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	payloads, err := b.payloadStoreFn(cfg.Store.CachePath)
	if err != nil {
		return nil, fmt.Errorf("payload cache init failed: %w", err)
	}
	figures, err := b.figureStoreFn(cfg.Store.FiguresPath)
	if err != nil {
		payloads.Close()
		return nil, fmt.Errorf("figure store init failed: %w", err)
	}

	ttl := time.Duration(cfg.Refresh.IntervalMinutes) * time.Minute
	sources := fetch.NewService(cfg.Sources, payloads, ttl)
	tokens := basemap.NewTokenProvider(cfg.Basemap.TokenPath)
	figureSvc := service.NewFigures(sources, figures, tokens, cfg)

	server, err := b.serverFn(apihttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Sources: sources,
		Figures: figureSvc,
	})
	if err != nil {
		figures.Close()
		payloads.Close()
		return nil, fmt.Errorf("http server init failed: %w", err)
	}

	logger.Infof("✓ loaded %d sources, figures db=%s cache db=%s", len(cfg.Sources), cfg.Store.FiguresPath, cfg.Store.CachePath)
	return &App{
		cfg:      cfg,
		sources:  sources,
		figures:  figures,
		payloads: payloads,
		tokens:   tokens,
		server:   server,
	}, nil
}
