// Package fusion merges classifier label distributions, deterministic
// numeric-threshold overrides, and pattern-trend context into one severity
// judgment per location. Physical measurements always dominate the
// classifier when present, and a pattern-based early warning from the
// arbiter outranks both.
package fusion

import (
	"sort"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

const (
	// labelScoreFloor drops labels the classifier barely believes in.
	labelScoreFloor = 0.15
	// maxRetainedLabels bounds how many labels survive filtering.
	maxRetainedLabels = 3

	// baselineConfidence stands in when no classifier signal survived.
	baselineConfidence = 0.5

	// Trend escalation bounds, units per sample. Only low and medium are
	// eligible, and the higher tier demands a steeper trend.
	escalateLowWaveTrend    = 0.5
	escalateLowWindTrend    = 3.0
	escalateMediumWaveTrend = 0.7
	escalateMediumWindTrend = 4.0

	escalationConfidenceStep = 0.1
	maxEscalatedConfidence   = 0.95
)

// Boost rules tying label plausibility to measured conditions.
const (
	highWavesBoost       = 1.3
	highWavesBoostHeight = 3.5
	criticalBoost        = 1.5
	criticalBoostHeight  = 5.0
	stormBoost           = 1.2
	stormBoostWind       = 15.0
)

// Input carries everything one location's fusion pass needs.
type Input struct {
	// Labels holds raw classifier scores per label. Nil or empty means
	// the classifier produced nothing usable this pass.
	Labels map[string]float64
	// Conditions is the latest reading per field. Zeros are ambiguous on
	// their own, so HasNumeric tracks real presence.
	Conditions domain.ConditionsSnapshot
	// HasNumeric reports whether any override field (wave height, wind
	// speed, current speed) was actually observed.
	HasNumeric bool
	// WaveHeightTrend and WindSpeedTrend are slope context from the
	// analysis pass.
	WaveHeightTrend float64
	WindSpeedTrend  float64
	// Warning is the arbiter verdict for the same location and pass.
	Warning domain.EarlyWarning
}

// Result is the fused judgment the orchestrator turns into a Prediction.
type Result struct {
	Hazard            domain.HazardType
	Severity          domain.Severity
	Confidence        float64
	Method            domain.PredictionMethod
	TimeToHazardHours float64
	EarlyWarning      bool
	Indicators        []string
	Reason            string
	Labels            map[string]float64
}

// Fuse produces the final severity judgment. Precedence: a pattern-based
// early warning wins outright; otherwise numeric thresholds override the
// classifier's severity guess whenever real measurements exist, and
// accelerating trends may then nudge severity one tier up.
func Fuse(in Input) Result {
	if in.Warning.EarlyWarning {
		return Result{
			Hazard:            in.Warning.Hazard,
			Severity:          in.Warning.Severity,
			Confidence:        in.Warning.Confidence,
			Method:            domain.MethodPatternEarlyWarning,
			TimeToHazardHours: in.Warning.TimeToHazardHours,
			EarlyWarning:      true,
			Indicators:        in.Warning.Dominant.Indicators,
			Reason:            in.Warning.Dominant.Reason,
		}
	}

	labels := RetainLabels(BoostLabels(in.Labels, in.Conditions))

	hazard, severity, confidence := classifierVerdict(labels)
	method := domain.MethodRuleBased
	reason := "threshold rules over current conditions"
	if len(labels) > 0 {
		method = domain.MethodFused
		reason = "classifier labels fused with numeric thresholds"
	}

	if in.HasNumeric {
		severity = OverrideSeverity(in.Conditions)
	}
	if hazard == "" {
		hazard = ruleHazard(in.Conditions)
	}

	var indicators []string
	if escalated, ok := escalate(severity, in.WaveHeightTrend, in.WindSpeedTrend); ok {
		severity = escalated
		confidence += escalationConfidenceStep
		if confidence > maxEscalatedConfidence {
			confidence = maxEscalatedConfidence
		}
		indicators = append(indicators, "accelerating_trend")
	}

	return Result{
		Hazard:     hazard,
		Severity:   severity,
		Confidence: confidence,
		Method:     method,
		Indicators: indicators,
		Reason:     reason,
		Labels:     labels,
	}
}

// BoostLabels scales label scores that current conditions corroborate, then
// renormalizes the distribution to sum to one.
func BoostLabels(labels map[string]float64, c domain.ConditionsSnapshot) map[string]float64 {
	if len(labels) == 0 {
		return nil
	}

	boosted := make(map[string]float64, len(labels))
	for label, score := range labels {
		switch label {
		case string(domain.HazardHighWaves):
			if c.WaveHeight > highWavesBoostHeight {
				score *= highWavesBoost
			}
		case domain.LabelCritical:
			if c.WaveHeight > criticalBoostHeight {
				score *= criticalBoost
			}
		case string(domain.HazardStorm):
			if c.WindSpeed > stormBoostWind {
				score *= stormBoost
			}
		}
		boosted[label] = score
	}

	var sum float64
	for _, score := range boosted {
		sum += score
	}
	if sum <= 0 {
		return boosted
	}
	for label := range boosted {
		boosted[label] /= sum
	}
	return boosted
}

// RetainLabels keeps the strongest labels above the score floor, at most
// maxRetainedLabels of them.
func RetainLabels(labels map[string]float64) map[string]float64 {
	if len(labels) == 0 {
		return nil
	}

	retained := make(map[string]float64, maxRetainedLabels)
	for _, ls := range rankLabels(labels) {
		if ls.score <= labelScoreFloor {
			break
		}
		retained[ls.label] = ls.score
		if len(retained) == maxRetainedLabels {
			break
		}
	}
	if len(retained) == 0 {
		return nil
	}
	return retained
}

// OverrideSeverity maps instantaneous measurements to severity, first match
// wins. The classifier is only authoritative when no measurements exist.
func OverrideSeverity(c domain.ConditionsSnapshot) domain.Severity {
	switch {
	case c.WaveHeight > 4.0 || c.WindSpeed > 25:
		return domain.SeverityCritical
	case c.WaveHeight > 3.0 || c.WindSpeed > 18 || c.CurrentSpeed > 1.5:
		return domain.SeverityHigh
	case c.WaveHeight > 2.0 || c.WindSpeed > 12 || c.CurrentSpeed > 1.0:
		return domain.SeverityMedium
	case c.WaveHeight > 1.0 || c.WindSpeed > 7 || c.CurrentSpeed > 0.5:
		return domain.SeverityLow
	default:
		return domain.SeverityLow
	}
}

type labelScore struct {
	label string
	score float64
}

// rankLabels orders labels by score descending, label ascending on ties so
// map iteration order never leaks into results.
func rankLabels(labels map[string]float64) []labelScore {
	ranked := make([]labelScore, 0, len(labels))
	for label, score := range labels {
		ranked = append(ranked, labelScore{label: label, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].label < ranked[j].label
	})
	return ranked
}

// classifierVerdict derives the classifier-only guess: hazard from the best
// hazard-mapped label, severity from the top label, confidence from its
// score.
func classifierVerdict(labels map[string]float64) (domain.HazardType, domain.Severity, float64) {
	if len(labels) == 0 {
		return "", domain.SeverityLow, baselineConfidence
	}

	ranked := rankLabels(labels)

	var hazard domain.HazardType
	for _, ls := range ranked {
		if h, ok := domain.HazardFromLabel(ls.label); ok {
			hazard = h
			break
		}
	}

	return hazard, severityForLabel(ranked[0].label), ranked[0].score
}

// severityForLabel is the classifier's rough severity guess per label,
// applied only in the absence of numeric context.
func severityForLabel(label string) domain.Severity {
	if label == domain.LabelCritical {
		return domain.SeverityCritical
	}
	h, ok := domain.HazardFromLabel(label)
	if !ok {
		return domain.SeverityLow
	}
	switch h {
	case domain.HazardTsunami, domain.HazardCyclone, domain.HazardStormSurge:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// ruleHazard names the hazard a rule-based prediction concerns when the
// classifier offered nothing: whichever measurement sits closest to its
// warning threshold, waves winning ties.
func ruleHazard(c domain.ConditionsSnapshot) domain.HazardType {
	waveRatio := c.WaveHeight / 2.5
	windRatio := c.WindSpeed / 15.0
	currentRatio := c.CurrentSpeed / 1.5

	switch {
	case waveRatio >= windRatio && waveRatio >= currentRatio:
		return domain.HazardHighWaves
	case windRatio >= currentRatio:
		return domain.HazardStorm
	default:
		return domain.HazardCoastalFlooding
	}
}

// escalate nudges severity one tier when trends show acceleration.
func escalate(s domain.Severity, waveTrend, windTrend float64) (domain.Severity, bool) {
	switch s {
	case domain.SeverityLow:
		if waveTrend > escalateLowWaveTrend || windTrend > escalateLowWindTrend {
			return domain.EscalateSeverity(s), true
		}
	case domain.SeverityMedium:
		if waveTrend > escalateMediumWaveTrend || windTrend > escalateMediumWindTrend {
			return domain.EscalateSeverity(s), true
		}
	}
	return s, false
}
