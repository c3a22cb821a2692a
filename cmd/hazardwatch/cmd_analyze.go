package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/coastal-hazard-watch/internal/config"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis cycle over every monitored location and exit",
	Long: `Fetches current conditions, runs the pattern detectors over each
location's stored history, persists the resulting predictions, and prints
the latest prediction per location. Useful for cron-style scheduling and
for inspecting what the service would predict right now.`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
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
	defer svc.close(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.orchestrator.RunCycle(ctx)

	predictions, err := svc.store.LatestPredictions(ctx)
	if err != nil {
		return fmt.Errorf("read predictions back: %w", err)
	}
	for _, p := range predictions {
		logger.Info("latest prediction",
			"location_id", p.LocationID,
			"hazard", p.Hazard,
			"severity", p.Severity,
			"confidence", p.Confidence,
			"method", p.Method,
			"early_warning", p.EarlyWarning)
	}

	return nil
}
