package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/coastal-hazard-watch/internal/adapter/http"
	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockPredictionReader struct {
	latestFn      func(ctx context.Context) ([]domain.Prediction, error)
	recentFn      func(ctx context.Context, limit int) ([]domain.Prediction, error)
	forLocationFn func(ctx context.Context, locationID string, limit int) ([]domain.Prediction, error)
}

func (m *mockPredictionReader) LatestPredictions(ctx context.Context) ([]domain.Prediction, error) {
	if m.latestFn == nil {
		return nil, nil
	}
	return m.latestFn(ctx)
}

func (m *mockPredictionReader) RecentPredictions(ctx context.Context, limit int) ([]domain.Prediction, error) {
	if m.recentFn == nil {
		return nil, nil
	}
	return m.recentFn(ctx, limit)
}

func (m *mockPredictionReader) PredictionsForLocation(ctx context.Context, locationID string, limit int) ([]domain.Prediction, error) {
	if m.forLocationFn == nil {
		return nil, nil
	}
	return m.forLocationFn(ctx, locationID, limit)
}

type mockRunner struct {
	accepted bool
	calls    int
}

func (m *mockRunner) TriggerCycle() bool {
	m.calls++
	return m.accepted
}

type serverDeps struct {
	predictions *mockPredictionReader
	runner      *mockRunner
	ready       *mockReadiness
	locations   []domain.Location
}

func newTestServer(deps serverDeps) *httpadapter.Server {
	if deps.predictions == nil {
		deps.predictions = &mockPredictionReader{}
	}
	if deps.runner == nil {
		deps.runner = &mockRunner{accepted: true}
	}
	if deps.ready == nil {
		deps.ready = &mockReadiness{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", deps.predictions, deps.runner, deps.ready, deps.locations, logger)
}

func testPrediction(id, locationID string) domain.Prediction {
	return domain.Prediction{
		ID:                id,
		LocationID:        locationID,
		Hazard:            domain.HazardHighWaves,
		Severity:          domain.SeverityHigh,
		Confidence:        0.8,
		Method:            domain.MethodPatternEarlyWarning,
		TimeToHazardHours: 6,
		EarlyWarning:      true,
		Indicators:        []string{"rising_wave_trend"},
		CreatedAt:         time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func doRequest(srv *httpadapter.Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(serverDeps{})

	rec := doRequest(srv, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(serverDeps{ready: &mockReadiness{}})

	rec := doRequest(srv, http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(serverDeps{ready: &mockReadiness{err: fmt.Errorf("not ready yet")}})

	rec := doRequest(srv, http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(serverDeps{})

	rec := doRequest(srv, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLocationsEndpoint(t *testing.T) {
	locations := []domain.Location{
		{ID: "loc-miami-beach", Name: "Miami Beach", Latitude: 25.79, Longitude: -80.13},
		{ID: "loc-galveston", Name: "Galveston", Latitude: 29.27, Longitude: -94.83},
	}
	srv := newTestServer(serverDeps{locations: locations})

	rec := doRequest(srv, http.MethodGet, "/api/v1/locations")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Locations []domain.Location `json:"locations"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, locations, body.Locations)
}

func TestPredictionsUsesDefaultLimit(t *testing.T) {
	var gotLimit int
	reader := &mockPredictionReader{
		recentFn: func(_ context.Context, limit int) ([]domain.Prediction, error) {
			gotLimit = limit
			return []domain.Prediction{testPrediction("prd-11aa22bb", "loc-miami-beach")}, nil
		},
	}
	srv := newTestServer(serverDeps{predictions: reader})

	rec := doRequest(srv, http.MethodGet, "/api/v1/predictions")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, gotLimit)

	var body struct {
		Predictions []domain.Prediction `json:"predictions"`
		Count       int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "prd-11aa22bb", body.Predictions[0].ID)
}

func TestPredictionsForLocation(t *testing.T) {
	var gotLocation string
	var gotLimit int
	reader := &mockPredictionReader{
		forLocationFn: func(_ context.Context, locationID string, limit int) ([]domain.Prediction, error) {
			gotLocation = locationID
			gotLimit = limit
			return []domain.Prediction{testPrediction("prd-11aa22bb", locationID)}, nil
		},
	}
	srv := newTestServer(serverDeps{predictions: reader})

	rec := doRequest(srv, http.MethodGet, "/api/v1/predictions?location=loc-galveston&limit=10")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loc-galveston", gotLocation)
	assert.Equal(t, 10, gotLimit)
}

func TestPredictionsRejectsBadLimit(t *testing.T) {
	srv := newTestServer(serverDeps{})

	for _, target := range []string{
		"/api/v1/predictions?limit=0",
		"/api/v1/predictions?limit=501",
		"/api/v1/predictions?limit=abc",
	} {
		rec := doRequest(srv, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
	}
}

func TestPredictionsQueryErrorReturns500(t *testing.T) {
	reader := &mockPredictionReader{
		recentFn: func(_ context.Context, _ int) ([]domain.Prediction, error) {
			return nil, fmt.Errorf("database gone")
		},
	}
	srv := newTestServer(serverDeps{predictions: reader})

	rec := doRequest(srv, http.MethodGet, "/api/v1/predictions")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPredictionsEmptyEncodesAsArray(t *testing.T) {
	srv := newTestServer(serverDeps{})

	rec := doRequest(srv, http.MethodGet, "/api/v1/predictions")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"predictions":[]`)
}

func TestLatestPredictions(t *testing.T) {
	reader := &mockPredictionReader{
		latestFn: func(_ context.Context) ([]domain.Prediction, error) {
			return []domain.Prediction{
				testPrediction("prd-11aa22bb", "loc-galveston"),
				testPrediction("prd-33cc44dd", "loc-miami-beach"),
			}, nil
		},
	}
	srv := newTestServer(serverDeps{predictions: reader})

	rec := doRequest(srv, http.MethodGet, "/api/v1/predictions/latest")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Predictions []domain.Prediction `json:"predictions"`
		Count       int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestAnalysisRunAccepted(t *testing.T) {
	runner := &mockRunner{accepted: true}
	srv := newTestServer(serverDeps{runner: runner})

	rec := doRequest(srv, http.MethodPost, "/api/v1/analysis/run")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, runner.calls)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body["status"])
}

func TestAnalysisRunConflictWhenBusy(t *testing.T) {
	runner := &mockRunner{accepted: false}
	srv := newTestServer(serverDeps{runner: runner})

	rec := doRequest(srv, http.MethodPost, "/api/v1/analysis/run")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnalysisRunRejectsGet(t *testing.T) {
	srv := newTestServer(serverDeps{})

	rec := doRequest(srv, http.MethodGet, "/api/v1/analysis/run")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
