// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/acuervo/catalog-mirror/internal/api"
	"github.com/acuervo/catalog-mirror/internal/config"
	"github.com/acuervo/catalog-mirror/internal/logging"
	"github.com/acuervo/catalog-mirror/internal/progress"
	"github.com/acuervo/catalog-mirror/internal/progress/sinks"
	"github.com/acuervo/catalog-mirror/internal/storage"
	"github.com/acuervo/catalog-mirror/internal/storage/local"
	"github.com/acuervo/catalog-mirror/internal/storage/memory"
	"github.com/acuervo/catalog-mirror/internal/storage/postgres"
	"github.com/acuervo/catalog-mirror/internal/store"
)

// App holds the shared, long-lived services for the importer: logger,
// document backend, progress hub with its sinks, and the optional ops
// server. It is initialized once at startup and passed to the commands
// that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	backend  storage.Backend
	registry *prometheus.Registry
	hub      *progress.Hub
	runStore *postgres.RunStore
	ops      *http.Server
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Backend exposes the configured document backend.
func (a *App) Backend() storage.Backend {
	return a.backend
}

// Hub returns the progress hub events should be emitted into.
func (a *App) Hub() *progress.Hub {
	return a.hub
}

// Runs returns the run history repository, or nil when Postgres is not
// configured.
func (a *App) Runs() store.RunRepository {
	if a.runStore == nil {
		return nil
	}
	return a.runStore
}

// New creates and initializes an App from the configuration. It fails fast
// when any critical service cannot be built.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	switch cfg.Storage.Provider {
	case "local":
		backend, err := local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize local storage: %w", err)
		}
		logger.Info("using local storage", zap.String("base_dir", cfg.Storage.BaseDir))
		a.backend = backend
	case "memory":
		logger.Info("using in-memory storage, documents are discarded on exit")
		a.backend = memory.New()
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("register progress metrics: %w", err)
	}
	hubSinks := []progress.Sink{sinks.NewLogSink(logger), promSink}

	if cfg.Progress.PostgresDSN != "" {
		runStore, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{DSN: cfg.Progress.PostgresDSN})
		if err != nil {
			return nil, fmt.Errorf("initialize run history store: %w", err)
		}
		logger.Info("run history persisted to postgres")
		a.runStore = runStore
		hubSinks = append(hubSinks, sinks.NewStoreSink(runStore, logger))
	}

	a.hub = progress.NewHub(progress.Config{Logger: logger}, hubSinks...)

	if cfg.Server.Port > 0 {
		srv := api.NewServer(a.registry, a.Runs(), logger)
		a.ops = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("ops server listening", zap.Int("port", cfg.Server.Port))
			if err := a.ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	return a, nil
}

// Close gracefully shuts down the services in the container: the ops server
// first, then the hub so buffered events flush into the sinks, then the
// downstream stores, and finally the logger.
func (a *App) Close(ctx context.Context) {
	if a.ops != nil {
		if err := a.ops.Shutdown(ctx); err != nil {
			a.logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.runStore != nil {
		a.runStore.Close()
	}
	// Best-effort flush; stderr sync errors are expected on some platforms.
	_ = a.logger.Sync()
}
