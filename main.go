package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/luzparatodos-am/localidades-backend/internal/auth"
	"github.com/luzparatodos-am/localidades-backend/internal/basin"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/db"
	"github.com/luzparatodos-am/localidades-backend/internal/events"
	"github.com/luzparatodos-am/localidades-backend/internal/ingest"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
	"github.com/luzparatodos-am/localidades-backend/internal/server"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	d, err := db.Connect(cfg, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := localidades.Migrate(d); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := auth.Migrate(d); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	catalog, err := basin.Load(cfg.BasinCatalog)
	if err != nil {
		logger.Error("failed to load basin catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("basin catalog loaded", "version", catalog.Version, "basins", len(catalog.Basins))

	store := localidades.NewStore(d)
	runner := ingest.NewRunner(store, catalog, logger, metrics)

	var publisher *events.Publisher
	if cfg.ChangeFeedEnabled() {
		publisher = events.NewPublisher(cfg, logger)
		runner.WithPublisher(publisher)
		logger.Info("change feed enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("change feed disabled")
	}

	clock := clockwork.NewRealClock()
	sessions := auth.NewStore(d)
	handler := server.NewRouter(server.Deps{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Ready:      db.Readiness{DB: d},
		Localities: localidades.NewAPI(store, logger),
		Auth:       auth.NewHandlers(sessions, cfg, clock, logger),
		Sessions:   sessions,
		Runner:     runner,
		Clock:      clock,
	})
	srv := server.New(cfg.HTTPAddr, handler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if sqlDB, err := d.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("shutdown complete")
}
