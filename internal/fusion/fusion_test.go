package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

func TestOverrideSeverityMonotonic(t *testing.T) {
	waves := []float64{0.5, 1.5, 2.5, 3.5, 4.5}
	want := []domain.Severity{
		domain.SeverityLow,
		domain.SeverityLow,
		domain.SeverityMedium,
		domain.SeverityHigh,
		domain.SeverityCritical,
	}

	prevRank := 0
	for i, wave := range waves {
		got := OverrideSeverity(domain.ConditionsSnapshot{WaveHeight: wave})

		assert.Equal(t, want[i], got, "waveHeight=%.1f", wave)
		assert.GreaterOrEqual(t, got.Rank(), prevRank, "severity must not decrease as waves grow")
		prevRank = got.Rank()
	}
}

func TestOverrideSeverityWindAndCurrent(t *testing.T) {
	tests := []struct {
		name string
		cond domain.ConditionsSnapshot
		want domain.Severity
	}{
		{name: "hurricane-force wind", cond: domain.ConditionsSnapshot{WindSpeed: 26}, want: domain.SeverityCritical},
		{name: "gale wind", cond: domain.ConditionsSnapshot{WindSpeed: 19}, want: domain.SeverityHigh},
		{name: "strong current", cond: domain.ConditionsSnapshot{CurrentSpeed: 1.6}, want: domain.SeverityHigh},
		{name: "moderate current", cond: domain.ConditionsSnapshot{CurrentSpeed: 1.1}, want: domain.SeverityMedium},
		{name: "light breeze", cond: domain.ConditionsSnapshot{WindSpeed: 5}, want: domain.SeverityLow},
		{name: "nothing measured", cond: domain.ConditionsSnapshot{}, want: domain.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverrideSeverity(tt.cond))
		})
	}
}

func TestFuseNumericOverrideSupersedesClassifier(t *testing.T) {
	cond := domain.ConditionsSnapshot{WaveHeight: 4.5, WindSpeed: 10}

	t.Run("without classifier input", func(t *testing.T) {
		result := Fuse(Input{Conditions: cond, HasNumeric: true})

		assert.Equal(t, domain.SeverityCritical, result.Severity)
		assert.Equal(t, domain.MethodRuleBased, result.Method)
		assert.InDelta(t, baselineConfidence, result.Confidence, 1e-9)
	})

	t.Run("classifier disagreement is ignored for severity", func(t *testing.T) {
		result := Fuse(Input{
			Labels:     map[string]float64{string(domain.HazardStorm): 0.9},
			Conditions: cond,
			HasNumeric: true,
		})

		assert.Equal(t, domain.SeverityCritical, result.Severity)
		assert.Equal(t, domain.MethodFused, result.Method)
		assert.Equal(t, domain.HazardStorm, result.Hazard, "labels still name the hazard")
	})
}

func TestFuseCalmConditions(t *testing.T) {
	result := Fuse(Input{
		Conditions: domain.ConditionsSnapshot{WaveHeight: 0.3, WindSpeed: 2},
		HasNumeric: true,
	})

	assert.Equal(t, domain.SeverityLow, result.Severity)
	assert.Equal(t, domain.MethodRuleBased, result.Method)
	assert.False(t, result.EarlyWarning)
	assert.NotEmpty(t, result.Hazard)
}

func TestFuseEarlyWarningPrecedence(t *testing.T) {
	warning := domain.EarlyWarning{
		HasPattern:        true,
		Hazard:            domain.HazardTsunami,
		Confidence:        0.95,
		Severity:          domain.SeverityCritical,
		TimeToHazardHours: 6,
		EarlyWarning:      true,
		Dominant: domain.PatternResult{
			Hazard:     domain.HazardTsunami,
			Indicators: []string{"tsunami_warning_active"},
			Reason:     "official tsunami warning in effect",
		},
	}

	// Calm instantaneous conditions and a contradicting classifier must
	// not dilute the pattern verdict.
	result := Fuse(Input{
		Labels:     map[string]float64{string(domain.HazardStorm): 0.9},
		Conditions: domain.ConditionsSnapshot{WaveHeight: 0.5},
		HasNumeric: true,
		Warning:    warning,
	})

	assert.Equal(t, domain.MethodPatternEarlyWarning, result.Method)
	assert.Equal(t, domain.HazardTsunami, result.Hazard)
	assert.Equal(t, domain.SeverityCritical, result.Severity)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.InDelta(t, 6.0, result.TimeToHazardHours, 1e-9)
	assert.True(t, result.EarlyWarning)
	assert.Contains(t, result.Indicators, "tsunami_warning_active")
}

func TestFusePatternWithoutLeadTimeDoesNotPreempt(t *testing.T) {
	warning := domain.EarlyWarning{
		HasPattern:   true,
		Hazard:       domain.HazardCoastalFlooding,
		Confidence:   0.70,
		Severity:     domain.SeverityHigh,
		EarlyWarning: false,
	}

	result := Fuse(Input{
		Conditions: domain.ConditionsSnapshot{WaveHeight: 0.5},
		HasNumeric: true,
		Warning:    warning,
	})

	assert.Equal(t, domain.MethodRuleBased, result.Method)
	assert.Equal(t, domain.SeverityLow, result.Severity)
}

func TestFuseClassifierOnly(t *testing.T) {
	result := Fuse(Input{
		Labels: map[string]float64{
			string(domain.HazardCyclone):         0.6,
			string(domain.HazardStorm):           0.3,
			string(domain.HazardHighWaves):       0.05,
			string(domain.HazardCoastalFlooding): 0.05,
		},
	})

	assert.Equal(t, domain.HazardCyclone, result.Hazard)
	assert.Equal(t, domain.SeverityHigh, result.Severity, "cyclone label guesses high")
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, domain.MethodFused, result.Method)

	require.Len(t, result.Labels, 2, "weak labels filtered out")
	assert.Contains(t, result.Labels, string(domain.HazardCyclone))
	assert.Contains(t, result.Labels, string(domain.HazardStorm))
}

func TestFuseCriticalLabelSeverityGuess(t *testing.T) {
	result := Fuse(Input{
		Labels: map[string]float64{
			domain.LabelCritical:         0.5,
			string(domain.HazardTsunami): 0.3,
			string(domain.HazardStorm):   0.2,
		},
	})

	assert.Equal(t, domain.SeverityCritical, result.Severity)
	assert.Equal(t, domain.HazardTsunami, result.Hazard, "hazard comes from the best hazard label")
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestBoostLabels(t *testing.T) {
	t.Run("high seas amplify the high_waves label", func(t *testing.T) {
		labels := map[string]float64{
			string(domain.HazardHighWaves): 0.4,
			string(domain.HazardStorm):     0.6,
		}

		boosted := BoostLabels(labels, domain.ConditionsSnapshot{WaveHeight: 4.0})

		// 0.4*1.3 = 0.52 against storm's 0.6, renormalized over 1.12.
		assert.InDelta(t, 0.52/1.12, boosted[string(domain.HazardHighWaves)], 1e-9)
		assert.InDelta(t, 0.60/1.12, boosted[string(domain.HazardStorm)], 1e-9)

		var sum float64
		for _, s := range boosted {
			sum += s
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	})

	t.Run("extreme seas amplify the critical cue", func(t *testing.T) {
		labels := map[string]float64{
			domain.LabelCritical:           0.5,
			string(domain.HazardHighWaves): 0.5,
		}

		boosted := BoostLabels(labels, domain.ConditionsSnapshot{WaveHeight: 5.5})

		// Both labels boosted: critical 0.75, high_waves 0.65.
		assert.Greater(t, boosted[domain.LabelCritical], boosted[string(domain.HazardHighWaves)])
	})

	t.Run("strong wind amplifies the storm label", func(t *testing.T) {
		labels := map[string]float64{
			string(domain.HazardStorm):   0.5,
			string(domain.HazardCyclone): 0.5,
		}

		boosted := BoostLabels(labels, domain.ConditionsSnapshot{WindSpeed: 16})

		assert.Greater(t, boosted[string(domain.HazardStorm)], boosted[string(domain.HazardCyclone)])
	})

	t.Run("calm conditions leave the distribution alone", func(t *testing.T) {
		labels := map[string]float64{
			string(domain.HazardStorm):     0.7,
			string(domain.HazardHighWaves): 0.3,
		}

		boosted := BoostLabels(labels, domain.ConditionsSnapshot{})

		assert.InDelta(t, 0.7, boosted[string(domain.HazardStorm)], 1e-9)
		assert.InDelta(t, 0.3, boosted[string(domain.HazardHighWaves)], 1e-9)
	})

	t.Run("nil input stays nil", func(t *testing.T) {
		assert.Nil(t, BoostLabels(nil, domain.ConditionsSnapshot{WaveHeight: 6}))
	})
}

func TestRetainLabels(t *testing.T) {
	t.Run("drops labels at or below the floor", func(t *testing.T) {
		retained := RetainLabels(map[string]float64{
			"a": 0.5,
			"b": 0.15,
			"c": 0.10,
		})

		require.Len(t, retained, 1)
		assert.Contains(t, retained, "a")
	})

	t.Run("caps at three labels", func(t *testing.T) {
		retained := RetainLabels(map[string]float64{
			"a": 0.30,
			"b": 0.25,
			"c": 0.20,
			"d": 0.17,
			"e": 0.16,
		})

		require.Len(t, retained, 3)
		assert.Contains(t, retained, "a")
		assert.Contains(t, retained, "b")
		assert.Contains(t, retained, "c")
	})

	t.Run("nothing above the floor yields nil", func(t *testing.T) {
		assert.Nil(t, RetainLabels(map[string]float64{"a": 0.1, "b": 0.05}))
	})
}

func TestFuseTrendEscalation(t *testing.T) {
	t.Run("rising waves lift low to medium", func(t *testing.T) {
		result := Fuse(Input{
			Conditions:      domain.ConditionsSnapshot{WaveHeight: 0.5},
			HasNumeric:      true,
			WaveHeightTrend: 0.6,
		})

		assert.Equal(t, domain.SeverityMedium, result.Severity)
		assert.InDelta(t, 0.6, result.Confidence, 1e-9, "escalation rewards confidence")
		assert.Contains(t, result.Indicators, "accelerating_trend")
	})

	t.Run("strengthening wind lifts medium to high", func(t *testing.T) {
		result := Fuse(Input{
			Conditions:     domain.ConditionsSnapshot{WaveHeight: 2.5},
			HasNumeric:     true,
			WindSpeedTrend: 4.5,
		})

		assert.Equal(t, domain.SeverityHigh, result.Severity)
	})

	t.Run("medium needs the steeper bound", func(t *testing.T) {
		result := Fuse(Input{
			Conditions:      domain.ConditionsSnapshot{WaveHeight: 2.5},
			HasNumeric:      true,
			WaveHeightTrend: 0.6,
		})

		assert.Equal(t, domain.SeverityMedium, result.Severity, "0.6 clears the low bound only")
		assert.NotContains(t, result.Indicators, "accelerating_trend")
	})

	t.Run("high is never escalated by trend", func(t *testing.T) {
		result := Fuse(Input{
			Conditions:      domain.ConditionsSnapshot{WaveHeight: 3.5},
			HasNumeric:      true,
			WaveHeightTrend: 5.0,
			WindSpeedTrend:  9.0,
		})

		assert.Equal(t, domain.SeverityHigh, result.Severity)
	})

	t.Run("escalated confidence caps at 0.95", func(t *testing.T) {
		result := Fuse(Input{
			Labels:          map[string]float64{string(domain.HazardStorm): 0.9},
			WaveHeightTrend: 0.8,
		})

		// Renormalization drives the lone label to 1.0; storm guesses
		// medium, the trend lifts it to high, and the reward hits the cap.
		assert.Equal(t, domain.SeverityHigh, result.Severity)
		assert.InDelta(t, maxEscalatedConfidence, result.Confidence, 1e-9)
	})
}

func TestFuseConfidenceBounds(t *testing.T) {
	inputs := []Input{
		{},
		{Conditions: domain.ConditionsSnapshot{WaveHeight: 6, WindSpeed: 30}, HasNumeric: true},
		{Labels: map[string]float64{domain.LabelCritical: 0.99}, WaveHeightTrend: 2},
		{Labels: map[string]float64{string(domain.HazardStorm): 0.01}},
		{Warning: domain.EarlyWarning{EarlyWarning: true, HasPattern: true, Confidence: 0.95}},
	}

	for _, in := range inputs {
		result := Fuse(in)
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 1.0)
	}
}
