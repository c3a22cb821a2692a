package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Canonical field names used by trend extraction, detector evidence, and the
// store layer. Alias spellings are resolved to these at normalization and do
// not appear past the ingest boundary.
const (
	FieldWaveHeight     = "waveHeight"
	FieldWindSpeed      = "windSpeed"
	FieldWindDirection  = "windDirection"
	FieldCurrentSpeed   = "currentSpeed"
	FieldSeaSurfaceTemp = "seaSurfaceTemp"
	FieldPressure       = "pressure"
)

// Observation is a normalized sea-state snapshot for one location.
// Immutable once recorded. Nil numeric fields mean the reading was absent.
type Observation struct {
	ID             string    `json:"id"`
	LocationID     string    `json:"location_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp"`
	WaveHeight     *float64  `json:"wave_height,omitempty"`
	WindSpeed      *float64  `json:"wind_speed,omitempty"`
	WindDirection  *float64  `json:"wind_direction,omitempty"`
	CurrentSpeed   *float64  `json:"current_speed,omitempty"`
	SeaSurfaceTemp *float64  `json:"sea_surface_temp,omitempty"`
	Pressure       *float64  `json:"pressure,omitempty"`
	TsunamiWarning bool      `json:"tsunami_warning"`
	CycloneActive  bool      `json:"cyclone_active"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// Field returns the value of a canonical numeric field and whether it was
// present. All analysis access goes through here so absence handling lives
// in one place.
func (o Observation) Field(name string) (float64, bool) {
	var p *float64
	switch name {
	case FieldWaveHeight:
		p = o.WaveHeight
	case FieldWindSpeed:
		p = o.WindSpeed
	case FieldWindDirection:
		p = o.WindDirection
	case FieldCurrentSpeed:
		p = o.CurrentSpeed
	case FieldSeaSurfaceTemp:
		p = o.SeaSurfaceTemp
	case FieldPressure:
		p = o.Pressure
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// RawObservation is the wire form accepted from collectors. Each numeric
// reading has a column per known spelling; NormalizeObservation picks the
// canonical one, preferring the long form when a payload carries both.
type RawObservation struct {
	LocationID string    `json:"locationId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`

	WaveHeight     *float64 `json:"waveHeight"`
	HS             *float64 `json:"hs"`
	WindSpeed      *float64 `json:"windSpeed"`
	WS             *float64 `json:"ws"`
	WindDirection  *float64 `json:"windDirection"`
	CurrentSpeed   *float64 `json:"currentSpeed"`
	CS             *float64 `json:"cs"`
	SeaSurfaceTemp *float64 `json:"seaSurfaceTemp"`
	SST            *float64 `json:"sst"`
	Pressure       *float64 `json:"pressure"`
	Pres           *float64 `json:"pres"`

	TsunamiWarning bool `json:"tsunamiWarningActive"`
	CycloneActive  bool `json:"cycloneActive"`
}

// ParseRawObservation deserializes a collector payload and normalizes it.
func ParseRawObservation(data []byte) (Observation, error) {
	var raw RawObservation
	if err := json.Unmarshal(data, &raw); err != nil {
		return Observation{}, fmt.Errorf("parse raw observation: %w", err)
	}
	if raw.LocationID == "" {
		return Observation{}, fmt.Errorf("parse raw observation: missing locationId")
	}
	if raw.Timestamp.IsZero() {
		return Observation{}, fmt.Errorf("parse raw observation: missing timestamp")
	}
	return NormalizeObservation(raw), nil
}

// NormalizeObservation resolves field aliases and stamps the record with a
// deterministic ID and ingest time. This is the single place alias spellings
// are interpreted.
func NormalizeObservation(raw RawObservation) Observation {
	return Observation{
		ID:             generateObservationID(raw.LocationID, raw.Latitude, raw.Longitude, raw.Timestamp),
		LocationID:     raw.LocationID,
		Latitude:       raw.Latitude,
		Longitude:      raw.Longitude,
		Timestamp:      raw.Timestamp.UTC(),
		WaveHeight:     firstPresent(raw.WaveHeight, raw.HS),
		WindSpeed:      firstPresent(raw.WindSpeed, raw.WS),
		WindDirection:  firstPresent(raw.WindDirection),
		CurrentSpeed:   firstPresent(raw.CurrentSpeed, raw.CS),
		SeaSurfaceTemp: firstPresent(raw.SeaSurfaceTemp, raw.SST),
		Pressure:       firstPresent(raw.Pressure, raw.Pres),
		TsunamiWarning: raw.TsunamiWarning,
		CycloneActive:  raw.CycloneActive,
		IngestedAt:     clock.Now(),
	}
}

// firstPresent returns a copy of the first non-nil value. Copying detaches
// the result from the decoded payload.
func firstPresent(ptrs ...*float64) *float64 {
	for _, p := range ptrs {
		if p != nil {
			v := *p
			return &v
		}
	}
	return nil
}

// generateObservationID produces a deterministic ID from the reading's key
// fields. Replaying the same reading yields the same ID, which the stores
// rely on for idempotent appends.
func generateObservationID(locationID string, lat, lon float64, ts time.Time) string {
	input := fmt.Sprintf("%s|%.4f|%.4f|%s", locationID, lat, lon, ts.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "obs-" + hex.EncodeToString(hash[:8])
}

// Float returns a pointer to v. Convenience for building observations and
// snapshots in callers and tests.
func Float(v float64) *float64 { return &v }
