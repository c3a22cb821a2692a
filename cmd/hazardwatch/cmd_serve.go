package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/coastal-hazard-watch/internal/adapter/http"
	"github.com/couchcryptid/coastal-hazard-watch/internal/config"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hazard watch service: analysis loop plus HTTP API",
	Long: `Starts the periodic analysis loop over every monitored location and the
HTTP API serving predictions, locations, health, readiness, and metrics.
The loop also runs on demand via POST /api/v1/analysis/run.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	svc, err := buildServices(cfg, logger, metrics)
	if err != nil {
		return err
	}

	srv := httpadapter.NewServer(
		cfg.HTTPAddr,
		svc.store,
		svc.orchestrator,
		readiness{store: svc.store, orchestrator: svc.orchestrator},
		svc.locations,
		logger,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	go func() {
		if err := svc.orchestrator.Run(ctx); err != nil {
			logger.Error("analysis loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	svc.close(logger)

	logger.Info("shutdown complete")
	return nil
}
