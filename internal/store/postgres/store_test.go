package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

func TestObservationRowToDomain(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	row := observationRow{
		ID:             "obs-1",
		LocationID:     "loc-a",
		Latitude:       25.79,
		Longitude:      -80.13,
		Timestamp:      ts,
		WaveHeight:     sql.NullFloat64{Float64: 2.5, Valid: true},
		WindSpeed:      sql.NullFloat64{Float64: 10, Valid: true},
		Pressure:       sql.NullFloat64{},
		TsunamiWarning: true,
		IngestedAt:     ts.Add(time.Minute),
	}

	obs := row.toDomain()

	assert.Equal(t, "obs-1", obs.ID)
	assert.Equal(t, "loc-a", obs.LocationID)
	assert.InDelta(t, 25.79, obs.Latitude, 1e-9)
	assert.InDelta(t, -80.13, obs.Longitude, 1e-9)
	assert.Equal(t, ts, obs.Timestamp)
	require.NotNil(t, obs.WaveHeight)
	assert.InDelta(t, 2.5, *obs.WaveHeight, 1e-9)
	require.NotNil(t, obs.WindSpeed)
	assert.InDelta(t, 10, *obs.WindSpeed, 1e-9)
	assert.Nil(t, obs.Pressure)
	assert.Nil(t, obs.CurrentSpeed)
	assert.Nil(t, obs.SeaSurfaceTemp)
	assert.Nil(t, obs.WindDirection)
	assert.True(t, obs.TsunamiWarning)
	assert.False(t, obs.CycloneActive)
	assert.Equal(t, ts.Add(time.Minute), obs.IngestedAt)
}

func TestPredictionRowToDomain(t *testing.T) {
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("full row", func(t *testing.T) {
		row := predictionRow{
			ID:                "prd-1",
			LocationID:        "loc-a",
			LocationName:      "Miami Beach",
			Latitude:          25.79,
			Longitude:         -80.13,
			Hazard:            "high_waves",
			Severity:          "high",
			Confidence:        0.8,
			Method:            "pattern_early_warning",
			TimeToHazardHours: 6,
			EarlyWarning:      true,
			Indicators:        []byte(`["rising_wave_trend","dangerous_projected_height"]`),
			Reason:            "wave height trending upward",
			Conditions:        []byte(`{"wave_height":3.8,"wind_speed":12}`),
			LabelScores:       []byte(`{"high_waves":0.7,"coastal_flooding":0.3}`),
			CreatedAt:         ts,
		}

		p, err := row.toDomain()
		require.NoError(t, err)

		assert.Equal(t, "Miami Beach", p.LocationName)
		assert.InDelta(t, 25.79, p.Latitude, 1e-9)
		assert.InDelta(t, -80.13, p.Longitude, 1e-9)
		assert.Equal(t, domain.HazardHighWaves, p.Hazard)
		assert.Equal(t, domain.SeverityHigh, p.Severity)
		assert.Equal(t, domain.MethodPatternEarlyWarning, p.Method)
		assert.True(t, p.EarlyWarning)
		assert.Equal(t, []string{"rising_wave_trend", "dangerous_projected_height"}, p.Indicators)
		assert.InDelta(t, 3.8, p.Conditions.WaveHeight, 1e-9)
		assert.InDelta(t, 12, p.Conditions.WindSpeed, 1e-9)
		assert.Equal(t, map[string]float64{"high_waves": 0.7, "coastal_flooding": 0.3}, p.LabelScores)
	})

	t.Run("empty json columns", func(t *testing.T) {
		row := predictionRow{ID: "prd-2", CreatedAt: ts}

		p, err := row.toDomain()
		require.NoError(t, err)

		assert.Nil(t, p.Indicators)
		assert.Nil(t, p.LabelScores)
		assert.Zero(t, p.Conditions)
	})

	t.Run("malformed json", func(t *testing.T) {
		row := predictionRow{ID: "prd-3", Indicators: []byte(`{not json`)}

		_, err := row.toDomain()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "indicators")
	})
}

func TestPredictionsFromRows(t *testing.T) {
	rows := []predictionRow{
		{ID: "prd-1", LabelScores: []byte(`{"storm":0.9}`)},
		{ID: "prd-2", Indicators: []byte(`broken`)},
	}

	_, err := predictionsFromRows(rows)
	require.Error(t, err)

	got, err := predictionsFromRows(rows[:1])
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]float64{"storm": 0.9}, got[0].LabelScores)
}

func TestNullableFloat(t *testing.T) {
	assert.Nil(t, nullableFloat(sql.NullFloat64{}))

	got := nullableFloat(sql.NullFloat64{Float64: 1.5, Valid: true})
	require.NotNil(t, got)
	assert.InDelta(t, 1.5, *got, 1e-9)
}
