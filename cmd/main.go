package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/diarisk/internal/adapters/http/api"
	"github.com/okian/diarisk/internal/adapters/http/swagger"
	"github.com/okian/diarisk/internal/adapters/repository"
	app "github.com/okian/diarisk/internal/app"
	"github.com/okian/diarisk/internal/config"
	"github.com/okian/diarisk/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	svc, err := newService(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	go reloadOnHangup(ctx, svc, log)

	srv := newHTTPServer(ctx, cfg, svc)

	// Start the HTTP server
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// newService builds and starts the prediction service described by cfg.
// The history store is closed by Service.Stop, or here when Start fails.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(logger.Named("service")),
		app.WithModelDir(cfg.ModelDir),
		app.WithLoadTimeout(cfg.LoadTimeout()),
		app.WithBatchWorkers(cfg.BatchWorkers),
		app.WithBatchQueueSize(cfg.BatchQueueSize),
		app.WithMaxBatchSize(cfg.MaxBatchSize),
	}

	var store repository.Store
	if cfg.HistoryPath != "" {
		s, err := repository.OpenSQLite(cfg.HistoryPath, repository.WithMaxRecords(cfg.HistoryLimit))
		if err != nil {
			return nil, fmt.Errorf("open history %s: %w", cfg.HistoryPath, err)
		}
		store = s
	} else {
		store = repository.NewMemoryStore(repository.WithMaxRecords(cfg.HistoryLimit))
	}
	opts = append(opts, app.WithHistory(store))

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// newHTTPServer registers the API and docs routes for svc.
func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	api.NewServer(svc, api.WithMaxHistoryLimit(cfg.MaxHistoryLimit)).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// reloadOnHangup swaps in the artifact from disk on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, svc *app.Service, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			info, err := svc.Reload(ctx)
			if err != nil {
				log.Error(ctx, "model reload failed, keeping current model", logger.Error(err))
				continue
			}
			log.Info(ctx, "model reloaded", logger.String("model_type", info.ModelType))
		}
	}
}
