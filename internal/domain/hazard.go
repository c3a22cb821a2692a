package domain

// HazardType identifies one coastal hazard category.
type HazardType string

const (
	HazardTsunami         HazardType = "tsunami"
	HazardCyclone         HazardType = "cyclone"
	HazardHighWaves       HazardType = "high_waves"
	HazardStormSurge      HazardType = "storm_surge"
	HazardCoastalFlooding HazardType = "coastal_flooding"

	// HazardStorm covers wind-driven conditions that trip the rule table or
	// the classifier without matching a more specific pattern.
	HazardStorm HazardType = "storm"
)

// LabelCritical is the severity cue the classifier can emit alongside hazard
// labels. It never maps to a HazardType.
const LabelCritical = "critical"

// ClassifierLabels returns the candidate label set sent to the zero-shot
// hazard classifier. "critical" is a severity cue, not a hazard: the upstream
// ensemble emits it when a report reads as an emergency regardless of type,
// and the fusion layer boosts it on extreme wave heights.
func ClassifierLabels() []string {
	return []string{
		string(HazardTsunami),
		string(HazardCyclone),
		string(HazardHighWaves),
		string(HazardStormSurge),
		string(HazardCoastalFlooding),
		string(HazardStorm),
		LabelCritical,
	}
}

// HazardFromLabel maps a classifier label back to a HazardType. Labels that
// are not hazards ("critical") return false.
func HazardFromLabel(label string) (HazardType, bool) {
	switch HazardType(label) {
	case HazardTsunami, HazardCyclone, HazardHighWaves, HazardStormSurge, HazardCoastalFlooding, HazardStorm:
		return HazardType(label), true
	default:
		return "", false
	}
}

// LabelClassification is a classifier verdict over candidate hazard labels.
// Fallback marks scores produced by the local heuristic instead of the
// classification service.
type LabelClassification struct {
	Scores   map[string]float64 `json:"scores"`
	Fallback bool               `json:"fallback,omitempty"`
}

// PatternResult is the output of a single pattern detector over one
// observation sequence. Evidence holds the numeric context the detector
// based its decision on, keyed by canonical field name (plus derived keys
// such as predictedWaveHeight).
type PatternResult struct {
	Hazard     HazardType         `json:"hazard_type"`
	Confidence float64            `json:"confidence"`
	Severity   Severity           `json:"severity"`
	Indicators []string           `json:"indicators,omitempty"`
	Reason     string             `json:"reason"`
	Evidence   map[string]float64 `json:"evidence,omitempty"`
}

// EarlyWarning is the arbiter's verdict across all detectors for one
// location. AllResults always carries every detector's output, including the
// insignificant ones, for diagnostics.
//
// Invariant: EarlyWarning is true only when HasPattern is true and
// TimeToHazardHours exceeds 2; shorter lead times are immediate alerts, not
// early warnings.
type EarlyWarning struct {
	HasPattern        bool                         `json:"has_pattern"`
	Hazard            HazardType                   `json:"hazard_type,omitempty"`
	Confidence        float64                      `json:"confidence"`
	Severity          Severity                     `json:"severity,omitempty"`
	TimeToHazardHours float64                      `json:"time_to_hazard_hours,omitempty"`
	EarlyWarning      bool                         `json:"early_warning"`
	Dominant          PatternResult                `json:"dominant,omitempty"`
	AllResults        map[HazardType]PatternResult `json:"all_results,omitempty"`
}
