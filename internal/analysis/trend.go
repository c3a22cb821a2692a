package analysis

import (
	"math"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

// FieldValues extracts every present reading of a canonical field from the
// sequence, oldest first. Absent readings are skipped, not zero-filled.
func FieldValues(seq []domain.Observation, field string) []float64 {
	values := make([]float64, 0, len(seq))
	for _, obs := range seq {
		if v, ok := obs.Field(field); ok {
			values = append(values, v)
		}
	}
	return values
}

// Slope returns the ordinary-least-squares slope of values against their
// index. Fewer than two values yields 0, as does any non-finite result.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return slope
}

// Trend is the slope of a field across the whole sequence.
func Trend(seq []domain.Observation, field string) float64 {
	return Slope(FieldValues(seq, field))
}

// RecentTrend is the slope of a field over the trailing n present readings.
func RecentTrend(seq []domain.Observation, field string, n int) float64 {
	values := FieldValues(seq, field)
	if len(values) > n {
		values = values[len(values)-n:]
	}
	return Slope(values)
}

// Latest returns the most recent present reading of a field, scanning from
// the newest observation back.
func Latest(seq []domain.Observation, field string) (float64, bool) {
	for i := len(seq) - 1; i >= 0; i-- {
		if v, ok := seq[i].Field(field); ok {
			return v, true
		}
	}
	return 0, false
}

// SnapshotConditions collapses a sequence into the most recent reading per
// field, for prediction records and classifier input. Fields with no
// reading anywhere in the window stay zero.
func SnapshotConditions(seq []domain.Observation) domain.ConditionsSnapshot {
	var snap domain.ConditionsSnapshot
	if v, ok := Latest(seq, domain.FieldWaveHeight); ok {
		snap.WaveHeight = v
	}
	if v, ok := Latest(seq, domain.FieldWindSpeed); ok {
		snap.WindSpeed = v
	}
	if v, ok := Latest(seq, domain.FieldCurrentSpeed); ok {
		snap.CurrentSpeed = v
	}
	if v, ok := Latest(seq, domain.FieldSeaSurfaceTemp); ok {
		snap.SeaSurfaceTemp = v
	}
	if v, ok := Latest(seq, domain.FieldPressure); ok {
		snap.Pressure = v
	}
	return snap
}
