// Package app wires the service layers together and runs them.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"choromap/internal/basemap"
	"choromap/internal/config"
	"choromap/internal/fetch"
	"choromap/internal/logger"
	"choromap/internal/scheduler"
	"choromap/internal/store/cache"
	"choromap/internal/store/sqlite"
	apihttp "choromap/internal/transport/http"
)

// App holds the running services: source fetcher, figure store, token
// watcher and the HTTP API.
type App struct {
	cfg      *config.Config
	sources  *fetch.Service
	figures  *sqlite.FigureStore
	payloads *cache.PayloadStore
	tokens   *basemap.TokenProvider
	server   *apihttp.Server
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run warms the sources and serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	if err := a.sources.Warmup(ctx); err != nil {
		return fmt.Errorf("source warmup failed: %w", err)
	}
	logger.Infof("✓ %d sources ready, serving on %s", len(a.sources.List()), a.server.Addr())

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		interval := time.Duration(a.cfg.Refresh.IntervalMinutes) * time.Minute
		sched := scheduler.NewAlignedScheduler(ctx, interval)
		sched.RunImmediately = a.cfg.Refresh.OnStart
		sched.Start(func() { a.sources.RefreshStale(ctx) })
		return nil
	})

	group.Go(func() error {
		return a.tokens.Watch(ctx)
	})

	return group.Wait()
}

func (a *App) close() {
	if a.figures != nil {
		if err := a.figures.Close(); err != nil {
			logger.Warnf("figure store close failed: %v", err)
		}
	}
	if a.payloads != nil {
		if err := a.payloads.Close(); err != nil {
			logger.Warnf("payload cache close failed: %v", err)
		}
	}
}
