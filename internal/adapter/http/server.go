// Package http exposes the hazard watch API: prediction queries, monitored
// locations, manual analysis triggering, and the health, readiness, and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

const (
	defaultPredictionLimit = 50
	maxPredictionLimit     = 500
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// PredictionReader serves stored predictions for the API endpoints.
type PredictionReader interface {
	LatestPredictions(ctx context.Context) ([]domain.Prediction, error)
	RecentPredictions(ctx context.Context, limit int) ([]domain.Prediction, error)
	PredictionsForLocation(ctx context.Context, locationID string, limit int) ([]domain.Prediction, error)
}

// AnalysisRunner starts an analysis cycle on demand. TriggerCycle returns
// false when a cycle is already in flight.
type AnalysisRunner interface {
	TriggerCycle() bool
}

// Server wraps the standard library HTTP server with routing and lifecycle
// management.
type Server struct {
	httpServer  *http.Server
	predictions PredictionReader
	runner      AnalysisRunner
	locations   []domain.Location
	logger      *slog.Logger
}

// NewServer creates an HTTP server listening on addr with the API and
// operational routes registered.
func NewServer(
	addr string,
	predictions PredictionReader,
	runner AnalysisRunner,
	ready ReadinessChecker,
	locations []domain.Location,
	logger *slog.Logger,
) *Server {
	router := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		predictions: predictions,
		runner:      runner,
		locations:   locations,
		logger:      logger,
	}

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.HandleFunc("/readyz", s.handleReady(ready)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/api/v1/locations", s.handleLocations).Methods("GET")
	router.HandleFunc("/api/v1/predictions", s.handlePredictions).Methods("GET")
	router.HandleFunc("/api/v1/predictions/latest", s.handleLatestPredictions).Methods("GET")
	router.HandleFunc("/api/v1/analysis/run", s.handleAnalysisRun).Methods("POST")

	return s
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP dispatches requests to the underlying router. Exposed for
// testing handlers without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(ready ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ready.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, locationsResponse{
		Locations: s.locations,
		Count:     len(s.locations),
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit := defaultPredictionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPredictionLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer between 1 and 500",
			})
			return
		}
		limit = n
	}

	var (
		predictions []domain.Prediction
		err         error
	)
	if locationID := r.URL.Query().Get("location"); locationID != "" {
		predictions, err = s.predictions.PredictionsForLocation(r.Context(), locationID, limit)
	} else {
		predictions, err = s.predictions.RecentPredictions(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("prediction query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "prediction query failed"})
		return
	}

	writeJSON(w, http.StatusOK, predictionsResponse{
		Predictions: nonNil(predictions),
		Count:       len(predictions),
	})
}

func (s *Server) handleLatestPredictions(w http.ResponseWriter, r *http.Request) {
	predictions, err := s.predictions.LatestPredictions(r.Context())
	if err != nil {
		s.logger.Error("latest prediction query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "prediction query failed"})
		return
	}

	writeJSON(w, http.StatusOK, predictionsResponse{
		Predictions: nonNil(predictions),
		Count:       len(predictions),
	})
}

func (s *Server) handleAnalysisRun(w http.ResponseWriter, _ *http.Request) {
	if !s.runner.TriggerCycle() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "analysis cycle already running"})
		return
	}

	s.logger.Info("analysis cycle triggered via API")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}

// nonNil keeps empty result sets encoding as [] instead of null.
func nonNil(predictions []domain.Prediction) []domain.Prediction {
	if predictions == nil {
		return []domain.Prediction{}
	}
	return predictions
}

type predictionsResponse struct {
	Predictions []domain.Prediction `json:"predictions"`
	Count       int                 `json:"count"`
}

type locationsResponse struct {
	Locations []domain.Location `json:"locations"`
	Count     int               `json:"count"`
}
