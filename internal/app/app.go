package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"papertrade/internal/config"
	"papertrade/internal/logger"
	"papertrade/internal/scheduler"
	"papertrade/internal/store"
)

// App owns application-level orchestration: config in, dependencies built,
// HTTP server and scheduler loop running side by side.
type App struct {
	cfg      *config.Config
	store    store.Store
	pipeline *scheduler.Pipeline
	server   interface {
		Start(ctx context.Context) error
	}
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run starts the HTTP server and the aligned scheduler loop and blocks until
// ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.store.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		tick := scheduler.NewAlignedScheduler(ctx, a.cfg.Scheduler.IntervalDuration(), a.cfg.Scheduler.Offset())
		tick.RunImmediately = a.cfg.Scheduler.RunImmediately
		tick.Start(func() {
			if _, err := a.pipeline.RunCycle(ctx); err != nil {
				logger.Errorf("app: scheduler cycle failed: %v", err)
			}
		})
		return nil
	})

	return group.Wait()
}

// Pipeline exposes the cycle pipeline (for operational tooling and tests).
func (a *App) Pipeline() *scheduler.Pipeline {
	if a == nil {
		return nil
	}
	return a.pipeline
}
