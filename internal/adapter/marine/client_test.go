package marine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

var miami = domain.Location{
	ID:        "loc-miami-beach",
	Name:      "Miami Beach",
	Latitude:  25.79,
	Longitude: -80.13,
}

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func f(v float64) *float64 { return &v }

func TestClient_CurrentConditions_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "25.7900", q.Get("latitude"))
		assert.Equal(t, "-80.1300", q.Get("longitude"))
		assert.Contains(t, q.Get("current"), "wave_height")
		assert.Contains(t, q.Get("current"), "surface_pressure")
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Equal(t, "UTC", q.Get("timezone"))

		resp := response{
			Current: current{
				Time:           "2026-03-14T10:00",
				WaveHeight:     f(2.4),
				CurrentSpeed:   f(0.6),
				SeaSurfaceTemp: f(28.9),
				WindSpeed:      f(11.5),
				WindDirection:  f(120),
				Pressure:       f(1009.2),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.CurrentConditions(context.Background(), miami)
	require.NoError(t, err)

	assert.Equal(t, "loc-miami-beach", obs.LocationID)
	assert.Equal(t, 25.79, obs.Latitude)
	assert.Equal(t, -80.13, obs.Longitude)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), obs.Timestamp)
	assert.Regexp(t, `^obs-[0-9a-f]+$`, obs.ID)

	require.NotNil(t, obs.WaveHeight)
	assert.Equal(t, 2.4, *obs.WaveHeight)
	require.NotNil(t, obs.CurrentSpeed)
	assert.Equal(t, 0.6, *obs.CurrentSpeed)
	require.NotNil(t, obs.WindSpeed)
	assert.Equal(t, 11.5, *obs.WindSpeed)
	require.NotNil(t, obs.Pressure)
	assert.Equal(t, 1009.2, *obs.Pressure)
	assert.False(t, obs.TsunamiWarning)
	assert.False(t, obs.CycloneActive)
}

func TestClient_CurrentConditions_PartialReadings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := response{
			Current: current{
				Time:       "2026-03-14T10:00",
				WaveHeight: f(1.1),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.CurrentConditions(context.Background(), miami)
	require.NoError(t, err)

	require.NotNil(t, obs.WaveHeight)
	assert.Equal(t, 1.1, *obs.WaveHeight)
	assert.Nil(t, obs.WindSpeed)
	assert.Nil(t, obs.WindDirection)
	assert.Nil(t, obs.CurrentSpeed)
	assert.Nil(t, obs.SeaSurfaceTemp)
	assert.Nil(t, obs.Pressure)
}

func TestClient_CurrentConditions_TimeFallback(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	defer domain.SetClock(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := response{
			Current: current{WaveHeight: f(1.0)},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.CurrentConditions(context.Background(), miami)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC), obs.Timestamp)
}

func TestClient_CurrentConditions_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.CurrentConditions(context.Background(), miami)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestClient_CurrentConditions_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte("{not json"))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.CurrentConditions(context.Background(), miami)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestObservationTime(t *testing.T) {
	tests := []struct {
		name string
		time string
		want time.Time
	}{
		{
			name: "iso minutes",
			time: "2026-03-14T10:00",
			want: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "rfc3339",
			time: "2026-03-14T10:00:30Z",
			want: time.Date(2026, 3, 14, 10, 0, 30, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := current{Time: tt.time}.observationTime()
			assert.Equal(t, tt.want, got)
		})
	}
}
