// Package pipeline runs the periodic hazard analysis cycle: fetch current
// conditions for every monitored location, run the pattern detectors over
// each location's history, fuse the verdicts into predictions, and request
// notification dispatch for the dangerous ones.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/coastal-hazard-watch/internal/analysis"
	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/fusion"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

// Severity floors from raw current conditions. The fused verdict is never
// allowed below these, whatever the classifier thought.
const (
	floorWaveHigh     = 2.5
	floorWaveCritical = 4.0
	floorWindHigh     = 15.0
	floorWindCritical = 25.0
)

// Store is the slice of persistence the analysis cycle writes through.
type Store interface {
	AppendObservations(ctx context.Context, observations []domain.Observation) (int, error)
	SavePrediction(ctx context.Context, p domain.Prediction) error
}

// ConditionsFetcher pulls the current sea state for one location.
type ConditionsFetcher interface {
	CurrentConditions(ctx context.Context, loc domain.Location) (domain.Observation, error)
}

// LabelClassifier scores candidate hazard labels for a conditions description.
type LabelClassifier interface {
	Classify(ctx context.Context, description string, labels []string) (domain.LabelClassification, error)
}

// Dispatcher publishes notification dispatch requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.DispatchRequest) error
}

// Deps bundles the orchestrator's collaborators and tuning. Fetcher and
// Classifier may be nil; the cycle then analyzes stored history without
// label scores.
type Deps struct {
	Store      Store
	Sequences  *analysis.SequenceBuilder
	Fetcher    ConditionsFetcher
	Classifier LabelClassifier
	Dispatcher Dispatcher
	Locations  []domain.Location
	Logger     *slog.Logger
	Metrics    *observability.Metrics

	Interval       time.Duration
	WorkerCount    int
	FetchRateLimit float64
}

// Orchestrator drives the analysis cycle on a fixed interval and on demand.
type Orchestrator struct {
	store      Store
	sequences  *analysis.SequenceBuilder
	fetcher    ConditionsFetcher
	classifier LabelClassifier
	dispatcher Dispatcher
	locations  []domain.Location
	logger     *slog.Logger
	metrics    *observability.Metrics

	interval   time.Duration
	workers    int
	fetchLimit *rate.Limiter

	ready   atomic.Bool
	running atomic.Bool
}

// New creates an Orchestrator. Non-positive tuning values fall back to
// defaults (15m interval, 4 workers, unthrottled fetches).
func New(deps Deps) *Orchestrator {
	if deps.Interval <= 0 {
		deps.Interval = 15 * time.Minute
	}
	if deps.WorkerCount <= 0 {
		deps.WorkerCount = 4
	}
	limit := rate.Inf
	if deps.FetchRateLimit > 0 {
		limit = rate.Limit(deps.FetchRateLimit)
	}

	return &Orchestrator{
		store:      deps.Store,
		sequences:  deps.Sequences,
		fetcher:    deps.Fetcher,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		locations:  deps.Locations,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		interval:   deps.Interval,
		workers:    deps.WorkerCount,
		fetchLimit: rate.NewLimiter(limit, 1),
	}
}

// CheckReadiness returns nil once at least one analysis cycle has completed,
// or an error describing why the service is not yet ready.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no analysis cycle has completed yet")
	}
	return nil
}

// Run executes analysis cycles until the context is cancelled. The first
// cycle starts immediately, later ones on the configured interval.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("analysis loop started",
		"interval", o.interval,
		"locations", len(o.locations),
		"workers", o.workers)
	o.metrics.AnalysisRunning.Set(1)
	defer o.metrics.AnalysisRunning.Set(0)

	o.RunCycle(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("analysis loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

// RunCycle analyzes every monitored location once. Overlapping calls
// coalesce: when a cycle is already in flight the call reports false and
// does nothing.
func (o *Orchestrator) RunCycle(ctx context.Context) bool {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Debug("analysis cycle already in flight, skipping")
		return false
	}
	defer o.running.Store(false)

	o.analyzeAll(ctx)
	return true
}

// TriggerCycle starts one analysis cycle in the background, for the manual
// run endpoint. It reports false when a cycle is already in flight.
func (o *Orchestrator) TriggerCycle() bool {
	if !o.running.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer o.running.Store(false)
		o.analyzeAll(context.Background())
	}()
	return true
}

func (o *Orchestrator) analyzeAll(ctx context.Context) {
	start := time.Now()
	o.logger.Info("analysis cycle started", "locations", len(o.locations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, loc := range o.locations {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			o.analyzeLocation(ctx, loc)
			return nil
		})
	}
	_ = g.Wait() // workers isolate their own failures

	o.metrics.AnalysisCycles.Inc()
	o.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	o.ready.Store(true)
	o.logger.Info("analysis cycle complete",
		"locations", len(o.locations),
		"duration_ms", time.Since(start).Milliseconds())
}

// analyzeLocation runs one location through the full pass. Every stage
// failure logs, counts, and degrades; a location never aborts the cycle.
func (o *Orchestrator) analyzeLocation(ctx context.Context, loc domain.Location) {
	start := time.Now()
	defer func() {
		o.metrics.LocationDuration.Observe(time.Since(start).Seconds())
		o.metrics.LocationsAnalyzed.Inc()
	}()

	logger := o.logger.With("location_id", loc.ID)

	o.fetchAndStore(ctx, loc, logger)

	seq := o.sequences.Build(ctx, loc)
	if len(seq) == 0 {
		logger.Debug("no observations in window, skipping location")
		return
	}

	warning := analysis.Arbitrate(seq)
	for hazard, result := range warning.AllResults {
		o.metrics.DetectorConfidence.WithLabelValues(string(hazard)).Observe(result.Confidence)
	}

	conditions := analysis.SnapshotConditions(seq)
	labels := o.classify(ctx, warning, conditions, logger)

	result := fusion.Fuse(fusion.Input{
		Labels:          labels,
		Conditions:      conditions,
		HasNumeric:      hasNumericReading(seq),
		WaveHeightTrend: analysis.Trend(seq, domain.FieldWaveHeight),
		WindSpeedTrend:  analysis.Trend(seq, domain.FieldWindSpeed),
		Warning:         warning,
	})

	createdAt := domain.Now()
	prediction := domain.Prediction{
		ID:                domain.GeneratePredictionID(loc.ID, result.Hazard, createdAt),
		LocationID:        loc.ID,
		LocationName:      loc.Name,
		Latitude:          loc.Latitude,
		Longitude:         loc.Longitude,
		Hazard:            result.Hazard,
		Severity:          applyConditionRules(result.Severity, conditions),
		Confidence:        result.Confidence,
		Method:            result.Method,
		TimeToHazardHours: result.TimeToHazardHours,
		EarlyWarning:      result.EarlyWarning,
		Indicators:        result.Indicators,
		Reason:            result.Reason,
		Conditions:        conditions,
		LabelScores:       result.Labels,
		CreatedAt:         createdAt,
	}

	if err := o.store.SavePrediction(ctx, prediction); err != nil {
		o.metrics.LocationFailures.WithLabelValues("persist").Inc()
		logger.Error("save prediction failed", "error", err, "prediction_id", prediction.ID)
		return
	}
	o.metrics.PredictionsCreated.WithLabelValues(string(prediction.Method), string(prediction.Severity)).Inc()
	if prediction.EarlyWarning {
		o.metrics.EarlyWarnings.Inc()
	}

	logger.Info("prediction recorded",
		"prediction_id", prediction.ID,
		"hazard", prediction.Hazard,
		"severity", prediction.Severity,
		"confidence", prediction.Confidence,
		"method", prediction.Method,
		"early_warning", prediction.EarlyWarning)

	o.maybeDispatch(ctx, prediction, logger)
}

// fetchAndStore pulls current conditions and appends them to the store.
// Failures leave the location analyzing its stored history.
func (o *Orchestrator) fetchAndStore(ctx context.Context, loc domain.Location, logger *slog.Logger) {
	if o.fetcher == nil {
		return
	}
	if err := o.fetchLimit.Wait(ctx); err != nil {
		return
	}

	obs, err := o.fetcher.CurrentConditions(ctx, loc)
	if err != nil {
		o.metrics.LocationFailures.WithLabelValues("fetch").Inc()
		logger.Warn("conditions fetch failed, analyzing stored history only", "error", err)
		return
	}

	added, err := o.store.AppendObservations(ctx, []domain.Observation{obs})
	if err != nil {
		o.metrics.LocationFailures.WithLabelValues("store").Inc()
		logger.Warn("observation append failed", "error", err)
		return
	}
	o.metrics.ObservationsStored.Add(float64(added))
}

// classify asks the label classifier for scores. Skipped entirely when a
// pattern early warning already decided the pass, or when no classifier is
// configured.
func (o *Orchestrator) classify(ctx context.Context, warning domain.EarlyWarning, conditions domain.ConditionsSnapshot, logger *slog.Logger) map[string]float64 {
	if o.classifier == nil || warning.EarlyWarning {
		return nil
	}

	verdict, err := o.classifier.Classify(ctx, conditions.Describe(), domain.ClassifierLabels())
	if err != nil {
		o.metrics.LocationFailures.WithLabelValues("classify").Inc()
		logger.Warn("classification failed, continuing without label scores", "error", err)
		return nil
	}
	return verdict.Scores
}

// maybeDispatch requests notification delivery for early warnings and
// critical predictions.
func (o *Orchestrator) maybeDispatch(ctx context.Context, p domain.Prediction, logger *slog.Logger) {
	if !p.EarlyWarning && p.Severity != domain.SeverityCritical {
		return
	}

	req := domain.NewDispatchRequest(p)
	if err := o.dispatcher.Dispatch(ctx, req); err != nil {
		o.metrics.LocationFailures.WithLabelValues("dispatch").Inc()
		o.metrics.DispatchRequests.WithLabelValues(string(req.Priority), "error").Inc()
		logger.Error("notification dispatch failed", "error", err, "dispatch_id", req.ID)
		return
	}
	o.metrics.DispatchRequests.WithLabelValues(string(req.Priority), "success").Inc()
	logger.Info("notification dispatch requested",
		"dispatch_id", req.ID,
		"priority", req.Priority,
		"hazard", p.Hazard)
}

// applyConditionRules floors severity from the latest raw readings. It only
// ever raises the fused verdict.
func applyConditionRules(s domain.Severity, c domain.ConditionsSnapshot) domain.Severity {
	switch {
	case c.WaveHeight >= floorWaveCritical || c.WindSpeed >= floorWindCritical:
		return domain.MaxSeverity(s, domain.SeverityCritical)
	case c.WaveHeight >= floorWaveHigh || c.WindSpeed >= floorWindHigh:
		return domain.MaxSeverity(s, domain.SeverityHigh)
	default:
		return s
	}
}

// hasNumericReading reports whether any severity-override field carries a
// real reading anywhere in the sequence. A present zero still counts; calm
// water is a measurement, not an absence.
func hasNumericReading(seq []domain.Observation) bool {
	for _, field := range []string{domain.FieldWaveHeight, domain.FieldWindSpeed, domain.FieldCurrentSpeed} {
		if _, ok := analysis.Latest(seq, field); ok {
			return true
		}
	}
	return false
}
