package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// hazard analysis service.
type Metrics struct {
	AnalysisRunning   prometheus.Gauge
	AnalysisCycles    prometheus.Counter
	CycleDuration     prometheus.Histogram
	LocationsAnalyzed prometheus.Counter
	LocationDuration  prometheus.Histogram
	LocationFailures  *prometheus.CounterVec // labels: stage={fetch,store,classify,persist,dispatch}

	PredictionsCreated *prometheus.CounterVec   // labels: method, severity
	EarlyWarnings      prometheus.Counter
	DispatchRequests   *prometheus.CounterVec   // labels: priority={normal,critical}, outcome={success,error}
	ObservationsStored prometheus.Counter
	DetectorConfidence *prometheus.HistogramVec // label: hazard

	// Classifier bridge metrics.
	ClassifierRequests    *prometheus.CounterVec // labels: outcome={success,error,fallback}
	ClassifierCache       *prometheus.CounterVec // labels: result={hit,miss}
	ClassifierAPIDuration prometheus.Histogram
	ClassifierEnabled     prometheus.Gauge

	// Marine data fetch metrics.
	MarineRequests    *prometheus.CounterVec // labels: outcome={success,error}
	MarineAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysisRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_watch",
			Name:      "analysis_running",
			Help:      "1 when the analysis loop is active, 0 when shut down.",
		}),
		AnalysisCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "analysis_cycles_total",
			Help:      "Total completed analysis cycles across all locations.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_watch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete analysis cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LocationsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "locations_analyzed_total",
			Help:      "Total per-location analysis passes.",
		}),
		LocationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_watch",
			Name:      "location_duration_seconds",
			Help:      "Duration of one location's fetch-analyze-persist pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "location_failures_total",
			Help:      "Per-location failures by stage; a failed stage skips that location only.",
		}, []string{"stage"}),
		PredictionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "predictions_created_total",
			Help:      "Predictions persisted, by method and severity.",
		}, []string{"method", "severity"}),
		EarlyWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "early_warnings_total",
			Help:      "Predictions carrying more than two hours of lead time.",
		}),
		DispatchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "dispatch_requests_total",
			Help:      "Notification dispatch requests by priority and outcome.",
		}, []string{"priority", "outcome"}),
		ObservationsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "observations_stored_total",
			Help:      "Observations appended to the store.",
		}),
		DetectorConfidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_watch",
			Name:      "detector_confidence",
			Help:      "Per-detector confidence distribution, by hazard.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
		}, []string{"hazard"}),
		ClassifierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "classifier_requests_total",
			Help:      "Hazard label classification attempts by outcome.",
		}, []string{"outcome"}),
		ClassifierCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "classifier_cache_total",
			Help:      "Classifier cache lookups by result.",
		}, []string{"result"}),
		ClassifierAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_watch",
			Name:      "classifier_api_duration_seconds",
			Help:      "Classifier service request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ClassifierEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_watch",
			Name:      "classifier_enabled",
			Help:      "1 when the label classifier is enabled, 0 otherwise.",
		}),
		MarineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_watch",
			Name:      "marine_requests_total",
			Help:      "Marine condition fetches by outcome.",
		}, []string{"outcome"}),
		MarineAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_watch",
			Name:      "marine_api_duration_seconds",
			Help:      "Marine data API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}

	prometheus.MustRegister(
		m.AnalysisRunning,
		m.AnalysisCycles,
		m.CycleDuration,
		m.LocationsAnalyzed,
		m.LocationDuration,
		m.LocationFailures,
		m.PredictionsCreated,
		m.EarlyWarnings,
		m.DispatchRequests,
		m.ObservationsStored,
		m.DetectorConfidence,
		m.ClassifierRequests,
		m.ClassifierCache,
		m.ClassifierAPIDuration,
		m.ClassifierEnabled,
		m.MarineRequests,
		m.MarineAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AnalysisRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hazard_watch", Name: "analysis_running"}),
		AnalysisCycles:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "analysis_cycles_total"}),
		CycleDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hazard_watch", Name: "cycle_duration_seconds"}),
		LocationsAnalyzed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "locations_analyzed_total"}),
		LocationDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hazard_watch", Name: "location_duration_seconds"}),
		LocationFailures:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "location_failures_total"}, []string{"stage"}),
		PredictionsCreated:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "predictions_created_total"}, []string{"method", "severity"}),
		EarlyWarnings:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "early_warnings_total"}),
		DispatchRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "dispatch_requests_total"}, []string{"priority", "outcome"}),
		ObservationsStored:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "observations_stored_total"}),
		DetectorConfidence:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "hazard_watch", Name: "detector_confidence"}, []string{"hazard"}),
		ClassifierRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "classifier_requests_total"}, []string{"outcome"}),
		ClassifierCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "classifier_cache_total"}, []string{"result"}),
		ClassifierAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hazard_watch", Name: "classifier_api_duration_seconds"}),
		ClassifierEnabled:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hazard_watch", Name: "classifier_enabled"}),
		MarineRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_watch", Name: "marine_requests_total"}, []string{"outcome"}),
		MarineAPIDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hazard_watch", Name: "marine_api_duration_seconds"}),
	}
}
