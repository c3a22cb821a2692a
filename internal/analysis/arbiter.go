package analysis

import (
	"math"
	"sort"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

const (
	// SignificanceThreshold is the confidence a detector must clear before
	// its result can become the dominant pattern.
	SignificanceThreshold = 0.6

	// EarlyWarningLeadHours separates early warnings from alerts about
	// conditions already underway.
	EarlyWarningLeadHours = 2.0

	// Lead-time clamp bounds in hours.
	minTimeToHazardHours = 1
	maxTimeToHazardHours = 48
)

// Arbitrate runs every registered detector over the sequence and selects
// the dominant pattern by confidence, registry order breaking ties.
// Sub-threshold results stay in AllResults for diagnostics, never dropped.
func Arbitrate(seq []domain.Observation) domain.EarlyWarning {
	detectors := Detectors()
	all := make(map[domain.HazardType]domain.PatternResult, len(detectors))
	significant := make([]domain.PatternResult, 0, len(detectors))

	for _, d := range detectors {
		result := d.Detect(seq)
		all[result.Hazard] = result
		if result.Confidence > SignificanceThreshold {
			significant = append(significant, result)
		}
	}

	if len(significant) == 0 {
		return domain.EarlyWarning{AllResults: all}
	}

	sort.SliceStable(significant, func(i, j int) bool {
		return significant[i].Confidence > significant[j].Confidence
	})
	dominant := significant[0]
	lead := timeToHazard(dominant)

	return domain.EarlyWarning{
		HasPattern:        true,
		Hazard:            dominant.Hazard,
		Confidence:        dominant.Confidence,
		Severity:          dominant.Severity,
		TimeToHazardHours: lead,
		EarlyWarning:      lead > EarlyWarningLeadHours,
		Dominant:          dominant,
		AllResults:        all,
	}
}

// timeToHazard estimates lead time in hours. When the dominant pattern
// carries a wave projection, the estimate is how many samples the current
// trend needs to reach the projected height, read as hours and clamped to
// [1, 48]. Otherwise it falls back to confidence tiers.
func timeToHazard(result domain.PatternResult) float64 {
	predicted, okPredicted := result.Evidence[EvidencePredictedWaveHeight]
	current, okCurrent := result.Evidence[EvidenceWaveHeight]
	trend, okTrend := result.Evidence[EvidenceWaveHeightTrend]
	if okPredicted && okCurrent && okTrend && trend > 0 {
		hours := (predicted - current) / trend
		if !math.IsNaN(hours) && !math.IsInf(hours, 0) {
			return clamp(hours, minTimeToHazardHours, maxTimeToHazardHours)
		}
	}

	switch {
	case result.Confidence > 0.8:
		return 6
	case result.Confidence > 0.7:
		return 12
	default:
		return 24
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
