package classifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

const roughDescription = "Coastal conditions: wave height 3.2 m, wind speed 14.0 m/s, current speed 0.8 m/s."

func testClient(serviceURL string) *Client {
	return &Client{
		serviceURL: serviceURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Classify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/classify", r.URL.Path)

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, roughDescription, req.Text)
		assert.Equal(t, domain.ClassifierLabels(), req.Labels)

		resp := classifyResponse{
			Labels: []string{"high_waves", "storm", "coastal_flooding"},
			Scores: []float64{0.61, 0.25, 0.14},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.Classify(context.Background(), roughDescription, domain.ClassifierLabels())
	require.NoError(t, err)

	assert.False(t, got.Fallback)
	assert.Equal(t, map[string]float64{
		"high_waves":       0.61,
		"storm":            0.25,
		"coastal_flooding": 0.14,
	}, got.Scores)
}

func TestClient_Classify_FallbackOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	desc := "Coastal conditions: wave height 5.2 m, wind speed 20.0 m/s, current speed 1.2 m/s."
	got, err := c.Classify(context.Background(), desc, domain.ClassifierLabels())
	require.NoError(t, err)

	assert.True(t, got.Fallback)
	assert.InDelta(t, 0.4, got.Scores["critical"], 1e-9)
	assert.InDelta(t, 0.1, got.Scores["high_waves"], 1e-9)
}

func TestClient_Classify_FallbackOnUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	c := testClient(srv.URL)
	desc := "Coastal conditions: wave height 1.0 m, wind speed 4.0 m/s, current speed 0.2 m/s."
	got, err := c.Classify(context.Background(), desc, domain.ClassifierLabels())
	require.NoError(t, err)

	assert.True(t, got.Fallback)
	require.Len(t, got.Scores, 7)
	for label, score := range got.Scores {
		assert.InDelta(t, 1.0/7.0, score, 1e-9, "label %s", label)
	}
}

func TestClient_Classify_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte("{not json"))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Classify(context.Background(), roughDescription, domain.ClassifierLabels())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Classify_LengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := classifyResponse{Labels: []string{"storm", "high_waves"}, Scores: []float64{0.9}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Classify(context.Background(), roughDescription, domain.ClassifierLabels())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 labels but 1 scores")
}

func TestFallbackScores(t *testing.T) {
	labels := domain.ClassifierLabels()

	tests := []struct {
		name        string
		description string
		primary     string
	}{
		{
			name:        "extreme waves read as critical",
			description: "Coastal conditions: wave height 4.5 m, wind speed 10.0 m/s, current speed 0.9 m/s.",
			primary:     "critical",
		},
		{
			name:        "elevated waves",
			description: "Coastal conditions: wave height 3.0 m, wind speed 8.0 m/s, current speed 0.4 m/s.",
			primary:     "high_waves",
		},
		{
			name:        "strong wind without waves",
			description: "Coastal conditions: wave height 1.2 m, wind speed 16.0 m/s, current speed 0.3 m/s.",
			primary:     "storm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := fallbackScores(tt.description, labels)
			require.Len(t, scores, len(labels))

			assert.InDelta(t, 0.4, scores[tt.primary], 1e-9)

			sum := 0.0
			for _, v := range scores {
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		})
	}

	t.Run("calm spreads uniformly", func(t *testing.T) {
		scores := fallbackScores(
			"Coastal conditions: wave height 0.8 m, wind speed 3.0 m/s, current speed 0.1 m/s.", labels)
		require.Len(t, scores, len(labels))
		for label, score := range scores {
			assert.InDelta(t, 1.0/float64(len(labels)), score, 1e-9, "label %s", label)
		}
	})

	t.Run("threshold boundary stays below", func(t *testing.T) {
		scores := fallbackScores(
			"Coastal conditions: wave height 4.0 m, wind speed 5.0 m/s, current speed 0.5 m/s.", labels)
		assert.InDelta(t, 0.4, scores["high_waves"], 1e-9)
		assert.InDelta(t, 0.1, scores["critical"], 1e-9)
	})

	t.Run("no labels", func(t *testing.T) {
		assert.Nil(t, fallbackScores(roughDescription, nil))
	})
}
