package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// PredictionMethod records which path produced a prediction.
type PredictionMethod string

const (
	// MethodRuleBased marks predictions derived from threshold rules alone.
	MethodRuleBased PredictionMethod = "rule_based"
	// MethodPatternEarlyWarning marks predictions driven by a detected
	// pattern with enough lead time to act on.
	MethodPatternEarlyWarning PredictionMethod = "pattern_early_warning"
	// MethodFused marks predictions that blended pattern analysis with
	// classifier label scores.
	MethodFused PredictionMethod = "fused"
)

// ConditionsSnapshot captures the most recent reading per field at the time
// a prediction was made. Zero values mean the field had no recent reading.
type ConditionsSnapshot struct {
	WaveHeight     float64 `json:"wave_height"`
	WindSpeed      float64 `json:"wind_speed"`
	CurrentSpeed   float64 `json:"current_speed"`
	SeaSurfaceTemp float64 `json:"sea_surface_temp"`
	Pressure       float64 `json:"pressure"`
}

// Describe renders the snapshot as a short sentence for label classification.
func (c ConditionsSnapshot) Describe() string {
	parts := []string{
		fmt.Sprintf("wave height %.1f m", c.WaveHeight),
		fmt.Sprintf("wind speed %.1f m/s", c.WindSpeed),
		fmt.Sprintf("current speed %.1f m/s", c.CurrentSpeed),
	}
	if c.Pressure > 0 {
		parts = append(parts, fmt.Sprintf("pressure %.1f hPa", c.Pressure))
	}
	if c.SeaSurfaceTemp > 0 {
		parts = append(parts, fmt.Sprintf("sea surface temperature %.1f C", c.SeaSurfaceTemp))
	}
	return "Coastal conditions: " + strings.Join(parts, ", ") + "."
}

// Prediction is the fused assessment for one location at one analysis pass.
// It carries the site's name and coordinates so dispatch payloads stand on
// their own without a registry lookup downstream.
type Prediction struct {
	ID                string             `json:"id"`
	LocationID        string             `json:"location_id"`
	LocationName      string             `json:"location_name,omitempty"`
	Latitude          float64            `json:"latitude"`
	Longitude         float64            `json:"longitude"`
	Hazard            HazardType         `json:"hazard"`
	Severity          Severity           `json:"severity"`
	Confidence        float64            `json:"confidence"`
	Method            PredictionMethod   `json:"method"`
	TimeToHazardHours float64            `json:"time_to_hazard_hours,omitempty"`
	EarlyWarning      bool               `json:"early_warning"`
	Indicators        []string           `json:"indicators,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	Conditions        ConditionsSnapshot `json:"conditions"`
	LabelScores       map[string]float64 `json:"label_scores,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// GeneratePredictionID produces a deterministic ID so a rerun of the same
// analysis pass upserts rather than duplicates.
func GeneratePredictionID(locationID string, hazard HazardType, createdAt time.Time) string {
	input := fmt.Sprintf("%s|%s|%s", locationID, hazard, createdAt.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "prd-" + hex.EncodeToString(hash[:8])
}

// Priority is the delivery class attached to a dispatch request.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityCritical Priority = "critical"
)

// PriorityForSeverity maps prediction severity to dispatch priority.
// Only critical predictions jump the queue.
func PriorityForSeverity(s Severity) Priority {
	if s == SeverityCritical {
		return PriorityCritical
	}
	return PriorityNormal
}

// DispatchRequest asks the notification service to alert subscribers near a
// location about a prediction.
type DispatchRequest struct {
	ID          string     `json:"id"`
	LocationID  string     `json:"location_id"`
	Priority    Priority   `json:"priority"`
	Prediction  Prediction `json:"prediction"`
	RequestedAt time.Time  `json:"requested_at"`
}

// NewDispatchRequest builds a dispatch for a prediction. The request ID is
// derived from the prediction ID so replays stay idempotent downstream.
func NewDispatchRequest(p Prediction) DispatchRequest {
	hash := sha256.Sum256([]byte(p.ID))
	return DispatchRequest{
		ID:          "dsp-" + hex.EncodeToString(hash[:8]),
		LocationID:  p.LocationID,
		Priority:    PriorityForSeverity(p.Severity),
		Prediction:  p,
		RequestedAt: clock.Now(),
	}
}

// Location is a monitored coastal site.
type Location struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}
