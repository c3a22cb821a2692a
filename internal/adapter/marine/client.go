// Package marine fetches current sea-state readings from an
// Open-Meteo-compatible marine weather API.
package marine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

// currentVariables is the set of readings requested per fetch. Variables
// the upstream does not serve come back null and stay absent on the
// observation.
const currentVariables = "wave_height,ocean_current_velocity,sea_surface_temperature," +
	"wind_speed_10m,wind_direction_10m,surface_pressure"

// Client fetches current conditions for configured locations.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a marine conditions client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// CurrentConditions fetches the latest readings for a location and
// normalizes them into an observation.
func (c *Client) CurrentConditions(ctx context.Context, loc domain.Location) (domain.Observation, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(loc.Latitude, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(loc.Longitude, 'f', 4, 64)},
		"current":         {currentVariables},
		"wind_speed_unit": {"ms"},
		"timezone":        {"UTC"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.MarineAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.MarineRequests.WithLabelValues("error").Inc()
		return domain.Observation{}, fmt.Errorf("marine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.metrics.MarineRequests.WithLabelValues("error").Inc()
		return domain.Observation{}, fmt.Errorf("marine API error: status %d: %s", resp.StatusCode, body)
	}

	var marineResp response
	if err := json.NewDecoder(resp.Body).Decode(&marineResp); err != nil {
		c.metrics.MarineRequests.WithLabelValues("error").Inc()
		return domain.Observation{}, fmt.Errorf("decode response: %w", err)
	}

	c.metrics.MarineRequests.WithLabelValues("success").Inc()

	return domain.NormalizeObservation(domain.RawObservation{
		LocationID:     loc.ID,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		Timestamp:      marineResp.Current.observationTime(),
		WaveHeight:     marineResp.Current.WaveHeight,
		WindSpeed:      marineResp.Current.WindSpeed,
		WindDirection:  marineResp.Current.WindDirection,
		CurrentSpeed:   marineResp.Current.CurrentSpeed,
		SeaSurfaceTemp: marineResp.Current.SeaSurfaceTemp,
		Pressure:       marineResp.Current.Pressure,
	}), nil
}

// Open-Meteo marine API response types.

type response struct {
	Current current `json:"current"`
}

type current struct {
	Time           string   `json:"time"`
	WaveHeight     *float64 `json:"wave_height"`
	CurrentSpeed   *float64 `json:"ocean_current_velocity"`
	SeaSurfaceTemp *float64 `json:"sea_surface_temperature"`
	WindSpeed      *float64 `json:"wind_speed_10m"`
	WindDirection  *float64 `json:"wind_direction_10m"`
	Pressure       *float64 `json:"surface_pressure"`
}

// observationTime parses the reported reading time. A missing or
// malformed time falls back to the clock; current conditions are
// effectively now either way.
func (c current) observationTime() time.Time {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if ts, err := time.Parse(layout, c.Time); err == nil {
			return ts.UTC()
		}
	}
	return domain.Now()
}
