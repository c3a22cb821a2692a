package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/coastal-hazard-watch/internal/adapter/classifier"
	"github.com/couchcryptid/coastal-hazard-watch/internal/adapter/kafka"
	"github.com/couchcryptid/coastal-hazard-watch/internal/adapter/marine"
	"github.com/couchcryptid/coastal-hazard-watch/internal/analysis"
	"github.com/couchcryptid/coastal-hazard-watch/internal/config"
	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
	"github.com/couchcryptid/coastal-hazard-watch/internal/pipeline"
	"github.com/couchcryptid/coastal-hazard-watch/internal/store/postgres"
	"github.com/couchcryptid/coastal-hazard-watch/internal/store/sqlite"
)

// dataStore is the full persistence surface the commands wire together.
// Both store backends satisfy it.
type dataStore interface {
	analysis.ObservationSource
	pipeline.Store
	LatestPredictions(ctx context.Context) ([]domain.Prediction, error)
	RecentPredictions(ctx context.Context, limit int) ([]domain.Prediction, error)
	PredictionsForLocation(ctx context.Context, locationID string, limit int) ([]domain.Prediction, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// openStore selects Postgres when DATABASE_URL is set, otherwise the
// embedded SQLite database.
func openStore(cfg *config.Config, logger *slog.Logger) (dataStore, error) {
	if cfg.DatabaseURL != "" {
		st, err := postgres.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	}

	st, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	logger.Info("using embedded sqlite store", "path", cfg.SQLitePath)
	return st, nil
}

// services holds everything a command needs once wiring is done.
type services struct {
	store        dataStore
	orchestrator *pipeline.Orchestrator
	notifier     *kafka.Notifier
	locations    []domain.Location
}

// buildServices wires the store, adapters, and orchestrator from config.
func buildServices(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*services, error) {
	locations, err := config.LoadLocations(cfg.LocationsFile)
	if err != nil {
		return nil, err
	}
	logger.Info("monitoring locations", "count", len(locations), "file", cfg.LocationsFile)

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var labeler pipeline.LabelClassifier
	if cfg.ClassifierEnabled {
		client := classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout, metrics, logger)
		labeler = classifier.NewCachedClassifier(client, cfg.ClassifierCacheSize, metrics)
		metrics.ClassifierEnabled.Set(1)
		logger.Info("hazard label classifier enabled",
			"url", cfg.ClassifierURL,
			"cache_size", cfg.ClassifierCacheSize,
			"timeout", cfg.ClassifierTimeout)
	} else {
		logger.Info("hazard label classifier disabled, severity comes from rules alone")
	}

	fetcher := marine.NewClient(cfg.MarineBaseURL, cfg.MarineTimeout, metrics, logger)
	notifier := kafka.NewNotifier(cfg, logger)

	orchestrator := pipeline.New(pipeline.Deps{
		Store:      st,
		Sequences:  analysis.NewSequenceBuilder(st, cfg.LookbackWindow, logger),
		Fetcher:    fetcher,
		Classifier: labeler,
		Dispatcher: notifier,
		Locations:  locations,
		Logger:     logger,
		Metrics:    metrics,

		Interval:       cfg.AnalysisInterval,
		WorkerCount:    cfg.WorkerCount,
		FetchRateLimit: cfg.FetchRateLimit,
	})

	return &services{
		store:        st,
		orchestrator: orchestrator,
		notifier:     notifier,
		locations:    locations,
	}, nil
}

func (s *services) close(logger *slog.Logger) {
	if err := s.notifier.Close(); err != nil {
		logger.Error("kafka notifier close error", "error", err)
	}
	if err := s.store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}
}

// readiness gates /readyz on both the store and the analysis loop.
type readiness struct {
	store        dataStore
	orchestrator *pipeline.Orchestrator
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	if err := r.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return r.orchestrator.CheckReadiness(ctx)
}
