package analysis

import (
	"math"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

// Evidence keys shared between detectors, the arbiter, and diagnostics.
const (
	EvidenceWaveHeight          = "waveHeight"
	EvidenceWaveHeightTrend     = "waveHeightTrend"
	EvidencePredictedWaveHeight = "predictedWaveHeight"
	EvidenceWaveHeightDelta     = "waveHeightDelta"
	EvidenceCurrentSpeedDelta   = "currentSpeedDelta"
	EvidenceWindSpeed           = "windSpeed"
	EvidenceWindSpeedTrend      = "windSpeedTrend"
	EvidencePressure            = "pressure"
	EvidencePressureTrend       = "pressureTrend"
)

// ReasonInsufficientData is reported when a sequence is too short for a
// detector's rules.
const ReasonInsufficientData = "insufficient data"

// HazardDetector evaluates one hazard's precursor rules against a sequence.
// Implementations are pure: no storage, no clock, no shared state.
type HazardDetector interface {
	Hazard() domain.HazardType
	MinPoints() int
	Detect(seq []domain.Observation) domain.PatternResult
}

// Detectors returns the fixed detector registry. Order matters: the arbiter
// breaks confidence ties in favor of earlier entries.
func Detectors() []HazardDetector {
	return []HazardDetector{
		TsunamiDetector{},
		CycloneDetector{},
		HighWaveDetector{},
		StormSurgeDetector{},
		FloodingDetector{},
	}
}

func insufficientData(hazard domain.HazardType) domain.PatternResult {
	return domain.PatternResult{
		Hazard:   hazard,
		Severity: domain.SeverityLow,
		Reason:   ReasonInsufficientData,
	}
}

func noPattern(hazard domain.HazardType, reason string) domain.PatternResult {
	return domain.PatternResult{
		Hazard:   hazard,
		Severity: domain.SeverityLow,
		Reason:   reason,
	}
}

// latestDelta returns the change of a field between the two newest
// observations. Both readings must be present.
func latestDelta(seq []domain.Observation, field string) (float64, bool) {
	if len(seq) < 2 {
		return 0, false
	}
	newest, okNewest := seq[len(seq)-1].Field(field)
	previous, okPrevious := seq[len(seq)-2].Field(field)
	if !okNewest || !okPrevious {
		return 0, false
	}
	return newest - previous, true
}

// TsunamiDetector watches for official warnings and for the abrupt
// wave/current jumps that precede one.
type TsunamiDetector struct{}

func (TsunamiDetector) Hazard() domain.HazardType { return domain.HazardTsunami }

func (TsunamiDetector) MinPoints() int { return 2 }

func (d TsunamiDetector) Detect(seq []domain.Observation) domain.PatternResult {
	if len(seq) < d.MinPoints() {
		return insufficientData(d.Hazard())
	}

	if seq[len(seq)-1].TsunamiWarning {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.95,
			Severity:   domain.SeverityCritical,
			Indicators: []string{"tsunami_warning_active"},
			Reason:     "official tsunami warning in effect",
		}
	}

	waveDelta, okWave := latestDelta(seq, domain.FieldWaveHeight)
	currentDelta, okCurrent := latestDelta(seq, domain.FieldCurrentSpeed)
	if okWave && okCurrent && math.Abs(waveDelta) > 1.5 && math.Abs(currentDelta) > 0.8 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.75,
			Severity:   domain.SeverityCritical,
			Indicators: []string{"rapid_wave_change", "rapid_current_change"},
			Reason:     "abrupt wave height and current speed shift between consecutive readings",
			Evidence: map[string]float64{
				EvidenceWaveHeightDelta:   waveDelta,
				EvidenceCurrentSpeedDelta: currentDelta,
			},
		}
	}

	trend := RecentTrend(seq, domain.FieldWaveHeight, 6)
	wave, okHeight := Latest(seq, domain.FieldWaveHeight)
	if trend > 0.3 && okHeight && wave > 2.0 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.65,
			Severity:   domain.SeverityHigh,
			Indicators: []string{"rising_wave_trend", "elevated_wave_height"},
			Reason:     "sustained wave growth across recent readings with elevated seas",
			Evidence: map[string]float64{
				EvidenceWaveHeight:      wave,
				EvidenceWaveHeightTrend: trend,
			},
		}
	}

	return noPattern(d.Hazard(), "no tsunami precursors detected")
}

// CycloneDetector watches pressure and wind for the deepening signature of
// an approaching system.
type CycloneDetector struct{}

func (CycloneDetector) Hazard() domain.HazardType { return domain.HazardCyclone }

func (CycloneDetector) MinPoints() int { return 4 }

func (d CycloneDetector) Detect(seq []domain.Observation) domain.PatternResult {
	if len(seq) < d.MinPoints() {
		return insufficientData(d.Hazard())
	}

	if seq[len(seq)-1].CycloneActive {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.95,
			Severity:   domain.SeverityCritical,
			Indicators: []string{"cyclone_active"},
			Reason:     "active cyclone flagged by upstream feed",
		}
	}

	pressureTrend := Trend(seq, domain.FieldPressure)
	windTrend := Trend(seq, domain.FieldWindSpeed)
	pressure, okPressure := Latest(seq, domain.FieldPressure)
	wind, okWind := Latest(seq, domain.FieldWindSpeed)

	if okPressure && pressureTrend < -0.5 && windTrend > 1.0 && pressure < 1005 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.85,
			Severity:   domain.SeverityCritical,
			Indicators: []string{"falling_pressure", "strengthening_wind", "low_pressure"},
			Reason:     "pressure falling fast with strengthening wind at low pressure",
			Evidence: map[string]float64{
				EvidencePressure:       pressure,
				EvidencePressureTrend:  pressureTrend,
				EvidenceWindSpeedTrend: windTrend,
			},
		}
	}

	if okWind && windTrend > 2.0 && wind > 15 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.70,
			Severity:   domain.SeverityHigh,
			Indicators: []string{"strengthening_wind", "high_wind_speed"},
			Reason:     "wind strengthening quickly at already high speed",
			Evidence: map[string]float64{
				EvidenceWindSpeed:      wind,
				EvidenceWindSpeedTrend: windTrend,
			},
		}
	}

	if okPressure && pressure < 1000 && windTrend > 0.5 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.65,
			Severity:   domain.SeverityHigh,
			Indicators: []string{"low_pressure", "strengthening_wind"},
			Reason:     "very low pressure with building wind",
			Evidence: map[string]float64{
				EvidencePressure:       pressure,
				EvidenceWindSpeedTrend: windTrend,
			},
		}
	}

	return noPattern(d.Hazard(), "no cyclone precursors detected")
}

// waveProjectionSamples is how far ahead wave growth is extrapolated. The
// arbiter divides the projection back out, so this also sets the nominal
// lead time for projection-based warnings.
const waveProjectionSamples = 6

// HighWaveDetector projects wave growth forward and separately flags
// wind-driven seas that have not peaked yet.
type HighWaveDetector struct{}

func (HighWaveDetector) Hazard() domain.HazardType { return domain.HazardHighWaves }

func (HighWaveDetector) MinPoints() int { return 3 }

func (d HighWaveDetector) Detect(seq []domain.Observation) domain.PatternResult {
	if len(seq) < d.MinPoints() {
		return insufficientData(d.Hazard())
	}

	trend := Trend(seq, domain.FieldWaveHeight)
	wave, okWave := Latest(seq, domain.FieldWaveHeight)

	if okWave && trend > 0.2 && wave > 2.5 {
		projected := wave + trend*waveProjectionSamples
		evidence := map[string]float64{
			EvidenceWaveHeight:          wave,
			EvidenceWaveHeightTrend:     trend,
			EvidencePredictedWaveHeight: projected,
		}
		switch {
		case projected > 4.0:
			return domain.PatternResult{
				Hazard:     d.Hazard(),
				Confidence: 0.80,
				Severity:   domain.SeverityCritical,
				Indicators: []string{"rising_wave_trend", "dangerous_projected_height"},
				Reason:     "wave growth projects past four metres",
				Evidence:   evidence,
			}
		case projected > 3.0:
			return domain.PatternResult{
				Hazard:     d.Hazard(),
				Confidence: 0.70,
				Severity:   domain.SeverityHigh,
				Indicators: []string{"rising_wave_trend", "elevated_projected_height"},
				Reason:     "wave growth projects past three metres",
				Evidence:   evidence,
			}
		}
	}

	wind, okWind := Latest(seq, domain.FieldWindSpeed)
	windTrend := Trend(seq, domain.FieldWindSpeed)
	if okWind && okWave && wind > 18 && wave > 2.0 && windTrend > 0.5 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.75,
			Severity:   domain.SeverityHigh,
			Indicators: []string{"high_wind_speed", "elevated_wave_height", "strengthening_wind"},
			Reason:     "strong and strengthening wind over already rough seas",
			Evidence: map[string]float64{
				EvidenceWindSpeed:      wind,
				EvidenceWaveHeight:     wave,
				EvidenceWindSpeedTrend: windTrend,
			},
		}
	}

	return noPattern(d.Hazard(), "no high-wave precursors detected")
}

// StormSurgeDetector pairs storm-force wind with falling low pressure, the
// setup that pushes water onshore.
type StormSurgeDetector struct{}

func (StormSurgeDetector) Hazard() domain.HazardType { return domain.HazardStormSurge }

func (StormSurgeDetector) MinPoints() int { return 3 }

func (d StormSurgeDetector) Detect(seq []domain.Observation) domain.PatternResult {
	if len(seq) < d.MinPoints() {
		return insufficientData(d.Hazard())
	}

	wind, okWind := Latest(seq, domain.FieldWindSpeed)
	pressure, okPressure := Latest(seq, domain.FieldPressure)
	pressureTrend := Trend(seq, domain.FieldPressure)

	if okWind && okPressure && wind > 20 && pressureTrend < -0.3 && pressure < 1005 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.80,
			Severity:   domain.SeverityCritical,
			Indicators: []string{"high_wind_speed", "falling_pressure", "low_pressure"},
			Reason:     "storm-force wind with falling low pressure",
			Evidence: map[string]float64{
				EvidenceWindSpeed:     wind,
				EvidencePressure:      pressure,
				EvidencePressureTrend: pressureTrend,
			},
		}
	}

	return noPattern(d.Hazard(), "no storm-surge precursors detected")
}

// FloodingDetector flags seas that are already high and not receding.
type FloodingDetector struct{}

func (FloodingDetector) Hazard() domain.HazardType { return domain.HazardCoastalFlooding }

func (FloodingDetector) MinPoints() int { return 3 }

func (d FloodingDetector) Detect(seq []domain.Observation) domain.PatternResult {
	if len(seq) < d.MinPoints() {
		return insufficientData(d.Hazard())
	}

	wave, okWave := Latest(seq, domain.FieldWaveHeight)
	trend := Trend(seq, domain.FieldWaveHeight)

	if okWave && wave > 3.0 && trend >= 0 {
		return domain.PatternResult{
			Hazard:     d.Hazard(),
			Confidence: 0.70,
			Severity:   domain.SeverityHigh,
			Indicators: []string{"elevated_wave_height", "non_receding_seas"},
			Reason:     "high seas holding or still building",
			Evidence: map[string]float64{
				EvidenceWaveHeight:      wave,
				EvidenceWaveHeightTrend: trend,
			},
		}
	}

	return noPattern(d.Hazard(), "no flooding precursors detected")
}
