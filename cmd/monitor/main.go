package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/driftwatch-systems/driftwatch/internal/analysis"
	"github.com/driftwatch-systems/driftwatch/internal/archive"
	"github.com/driftwatch-systems/driftwatch/internal/config"
	"github.com/driftwatch-systems/driftwatch/internal/dispatch"
	"github.com/driftwatch-systems/driftwatch/internal/handlers"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/middleware"
	"github.com/driftwatch-systems/driftwatch/internal/notify"
	"github.com/driftwatch-systems/driftwatch/internal/reconcile"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
	"github.com/driftwatch-systems/driftwatch/internal/server"
	"github.com/driftwatch-systems/driftwatch/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)
	logger = logger.With(logging.Service("monitor"))

	// Storage: Postgres when a URL is configured, in-memory otherwise.
	var store repository.Store
	var pg *repository.PostgresRepository
	if cfg.Database.URL != "" {
		logger.Info("running database migrations")
		m, err := migrate.New("file://"+cfg.Database.MigrationsPath, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to initialize migrations", logging.Error(err))
			os.Exit(1)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			logger.Error("failed to run migrations", logging.Error(err))
			os.Exit(1)
		}

		pg, err = repository.NewPostgresRepository(context.Background(), cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to postgres", logging.Error(err))
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
		logger.Info("using postgres storage")
	} else {
		store = repository.NewMemoryRepository()
		logger.Warn("no database url configured, using in-memory storage")
	}

	// Dedupe registry: Redis fast path when enabled.
	var registry dispatch.DedupeRegistry = &dispatch.NoOpRegistry{}
	if cfg.Redis.Enabled {
		registry, err = dispatch.NewRedisRegistry(cfg.Redis.URL, cfg.Redis.DedupeWindow)
		if err != nil {
			logger.Error("failed to connect to redis", logging.Error(err))
			os.Exit(1)
		}
		logger.Info("redis dedupe registry enabled")
	}
	defer registry.Close()

	// Operator notifications over NATS.
	var notifier dispatch.Notifier = dispatch.NoOpNotifier{}
	if cfg.NATS.Enabled {
		pub, err := notify.NewPublisher(cfg.NATS.URL, logger)
		if err != nil {
			logger.Error("failed to connect to nats", logging.Error(err))
			os.Exit(1)
		}
		defer pub.Close()
		notifier = pub
		logger.Info("nats notifications enabled")
	}

	thresholds := analysis.DefaultThresholds()
	if cfg.Analysis.ThresholdsPath != "" {
		thresholds, err = analysis.LoadThresholds(cfg.Analysis.ThresholdsPath)
		if err != nil {
			logger.Error("failed to load analysis thresholds", logging.Error(err))
			os.Exit(1)
		}
	}
	suite := analysis.NewBuiltinSuite(thresholds)

	// Optional OpenSearch write-through for reports.
	dispatchStores := dispatch.Stores{
		Predictions: store,
		Feedback:    store,
		Reports:     store,
		Jobs:        store,
	}
	if cfg.OpenSearch.Enabled {
		arc, err := archive.New(archive.Config{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.OpenSearch.IndexPrefix,
		}, store, logger)
		if err != nil {
			logger.Error("failed to create opensearch archive", logging.Error(err))
			os.Exit(1)
		}
		if err := arc.Ping(context.Background()); err != nil {
			logger.Warn("opensearch unreachable, archive writes will be retried per report", logging.Error(err))
		}
		dispatchStores.Reports = arc
		logger.Info("opensearch report archive enabled")
	}

	dispatcher := dispatch.New(dispatch.Config{
		Workers:     cfg.Dispatch.Workers,
		QueueSize:   cfg.Dispatch.QueueSize,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseBackoff: cfg.Dispatch.BaseBackoff,
		MaxBackoff:  cfg.Dispatch.MaxBackoff,
		JobTimeout:  cfg.Dispatch.JobTimeout,
	}, dispatchStores, registry, suite, notifier, logger)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if err := dispatcher.Start(runCtx); err != nil {
		logger.Error("failed to start dispatcher", logging.Error(err))
		os.Exit(1)
	}
	defer dispatcher.Stop()

	if cfg.Reconcile.Enabled {
		sweeper := reconcile.New(store, dispatcher, cfg.Reconcile.Interval, logger)
		sweeper.Start(runCtx)
		defer sweeper.Stop()
	}

	monitor := service.New(store, dispatcher, cfg.Database.OpTimeout, logger)

	components := func() map[string]string {
		status := map[string]string{"storage": "ok", "dispatcher": "ok"}
		if pg != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := pg.Ping(ctx); err != nil {
				status["storage"] = err.Error()
			}
		}
		return status
	}

	handler := handlers.NewHandler(monitor, logger, components)
	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	router := server.NewRouter(handler, auth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("monitor service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", logging.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", logging.Error(err))
	}
	logger.Info("monitor service stopped")
}
