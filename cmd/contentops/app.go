package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"contentops/internal/adapter/cache"
	"contentops/internal/adapter/notify"
	"contentops/internal/adapter/store"
	"contentops/internal/adapter/vendor"
	"contentops/internal/domain"
	"contentops/internal/infra/config"
	"contentops/internal/infra/logger"
	"contentops/internal/infra/metrics"
	"contentops/internal/infra/tracer"
	"contentops/internal/usecase/agents"
	"contentops/internal/usecase/alerting"
	"contentops/internal/usecase/eventbus"
	"contentops/internal/usecase/orchestrator"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	store    *store.Store
	cache    domain.Cache
	notifier *notify.Slack
	vendors  *vendor.Set
	bus      *eventbus.Bus
	orch     *orchestrator.Orchestrator
	alerts   *alerting.Engine

	closers []func() error
}

// loadConfig reads the file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newApp builds the graph in dependency order. On error everything opened
// so far is released.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.closers = append(a.closers, logCloser)

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() error { return tracerShutdown(context.Background()) })

	a.metrics = metrics.New(cfg.Alerting.Window)

	if cfg.Store.Driver == "" || cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	switch cfg.Cache.Backend {
	case "", "memory":
		a.cache = cache.NewMemory()
	case "redis":
		r, err := cache.DialRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		a.cache = r
		a.closers = append(a.closers, r.Close)
	default:
		return nil, fmt.Errorf("cache: unsupported backend %q", cfg.Cache.Backend)
	}

	a.notifier = notify.NewSlack(cfg.Notify, a.cache, logger.Component(log, "notify"), a.metrics)

	a.vendors = vendor.NewSet(cfg.Vendors, vendor.Deps{
		Loader:  cache.NewLoader(a.cache, cfg.Cache.DefaultTTL, logger.Component(log, "cache")),
		Metrics: a.metrics,
		Logger:  log,
	})
	a.closers = append(a.closers, a.vendors.Close)

	a.bus = eventbus.New(logger.Component(log, "eventbus"))
	a.closers = append(a.closers, func() error { a.bus.Close(); return nil })

	a.orch = orchestrator.New(st, logger.Component(log, "orchestrator"),
		orchestrator.WithEventBus(a.bus),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithExecutionTimeout(cfg.Orchestrator.ExecutionTimeout),
	)
	if err := agents.RegisterAll(a.orch, agents.Deps{
		Store:     st,
		Video:     a.vendors.Video,
		Search:    a.vendors.Search,
		Analytics: a.vendors.Analytics,
		Text:      a.vendors.Text,
		Notifier:  a.notifier,
		Cache:     a.cache,
		Logger:    logger.Component(log, "agents"),
	}); err != nil {
		return nil, fmt.Errorf("register agents: %w", err)
	}

	if cfg.Alerting.Enabled {
		a.alerts = alerting.New(cfg.Alerting, a.notifier, a.metrics, log)
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
