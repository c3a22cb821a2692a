package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/coastal-hazard-watch/internal/analysis"
	"github.com/couchcryptid/coastal-hazard-watch/internal/config"
	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

var validateFlags struct {
	locationsFile string
}

var validateCmd = &cobra.Command{
	Use:   "validate <observations.ndjson>",
	Short: "Check an observation export for problems before ingesting it",
	Long: `Validates a newline-delimited JSON observation export in five phases:
payload parsing, reading plausibility, replay safety (duplicate IDs must
carry identical readings), coverage against the monitored location registry,
and a detector sweep over each location's history. Exits non-zero when any
phase fails.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.locationsFile, "locations", "locations.yaml", "Monitored location registry to validate against")
}

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// parsedLine pairs an accepted observation with its source line for
// error reporting in later phases.
type parsedLine struct {
	lineNum     int
	observation domain.Observation
}

func runValidate(_ *cobra.Command, args []string) error {
	fmt.Printf("=== Observation Export Validation: %s ===\n\n", args[0])

	locations, err := config.LoadLocations(validateFlags.locationsFile)
	if err != nil {
		return err
	}

	lines, parsePhase, err := loadObservations(args[0])
	if err != nil {
		return err
	}

	phases := []*phase{
		parsePhase,
		validateReadings(lines),
		validateReplaySafety(lines),
		validateCoverage(lines, locations),
		validateDetectorSweep(lines),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-38s %s\n", p.name, status)
	}
	fmt.Printf("\nObservations: %d parsed, %d locations in registry\n", len(lines), len(locations))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if !allPassed {
		return errors.New("validation failed")
	}
	fmt.Println("\nAll validations passed.")
	return nil
}

func loadObservations(path string) ([]parsedLine, *phase, error) {
	p := &phase{name: "Phase 1: Payload parsing"}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	var lines []parsedLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		obs, err := domain.ParseRawObservation(raw)
		if err != nil {
			p.errorf("line %d: %v", lineNum, err)
			continue
		}
		lines = append(lines, parsedLine{lineNum: lineNum, observation: obs})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read export: %w", err)
	}
	if lineNum == 0 {
		return nil, nil, fmt.Errorf("export %s is empty", path)
	}

	return lines, p, nil
}

// validateReadings checks every accepted observation for physically
// implausible values.
func validateReadings(lines []parsedLine) *phase {
	p := &phase{name: "Phase 2: Reading plausibility"}
	horizon := domain.Now().Add(time.Hour)

	for _, l := range lines {
		o := l.observation
		if o.Latitude < -90 || o.Latitude > 90 {
			p.errorf("line %d: latitude %.4f out of range", l.lineNum, o.Latitude)
		}
		if o.Longitude < -180 || o.Longitude > 180 {
			p.errorf("line %d: longitude %.4f out of range", l.lineNum, o.Longitude)
		}
		if o.Timestamp.After(horizon) {
			p.errorf("line %d: timestamp %s is in the future", l.lineNum, o.Timestamp.Format(time.RFC3339))
		}

		for _, field := range []string{domain.FieldWaveHeight, domain.FieldWindSpeed, domain.FieldCurrentSpeed} {
			if v, ok := o.Field(field); ok && v < 0 {
				p.errorf("line %d: %s %.2f is negative", l.lineNum, field, v)
			}
		}
		if v, ok := o.Field(domain.FieldPressure); ok && (v < 870 || v > 1085) {
			p.errorf("line %d: pressure %.1f hPa outside recorded extremes", l.lineNum, v)
		}
		if v, ok := o.Field(domain.FieldWindDirection); ok && (v < 0 || v >= 360) {
			p.errorf("line %d: wind direction %.1f outside [0, 360)", l.lineNum, v)
		}
	}

	return p
}

// validateReplaySafety confirms duplicate IDs are true replays. The stores
// keep the first row for an ID and silently drop the rest, so a duplicate
// with different readings would lose data on ingest.
func validateReplaySafety(lines []parsedLine) *phase {
	p := &phase{name: "Phase 3: Replay safety"}

	firstSeen := make(map[string]parsedLine, len(lines))
	var replays int

	for _, l := range lines {
		prev, seen := firstSeen[l.observation.ID]
		if !seen {
			firstSeen[l.observation.ID] = l
			continue
		}
		if observationPayloadEqual(prev.observation, l.observation) {
			replays++
			continue
		}
		p.errorf("line %d: id %s conflicts with line %d; same key, different readings",
			l.lineNum, l.observation.ID, prev.lineNum)
	}

	if replays > 0 {
		fmt.Printf("  Note: %d exact replay line(s); the store ignores these on ingest\n", replays)
	}
	return p
}

// observationPayloadEqual compares everything the ID does not already pin
// down. IngestedAt is stamped at parse time and excluded.
func observationPayloadEqual(a, b domain.Observation) bool {
	a.IngestedAt = time.Time{}
	b.IngestedAt = time.Time{}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(aj, bj)
}

// validateCoverage cross-checks the export against the monitored location
// registry: unknown location IDs and readings far outside their site's
// bounding box are both ingest mistakes.
func validateCoverage(lines []parsedLine, locations []domain.Location) *phase {
	p := &phase{name: "Phase 4: Location coverage"}

	boxes := make(map[string]domain.Box, len(locations))
	for _, loc := range locations {
		boxes[loc.ID] = domain.BoxAround(loc.Latitude, loc.Longitude, analysis.LocationTolerance)
	}

	counts := make(map[string]int, len(locations))
	for _, l := range lines {
		o := l.observation
		box, known := boxes[o.LocationID]
		if !known {
			p.errorf("line %d: location %q is not in the registry", l.lineNum, o.LocationID)
			continue
		}
		if !box.Contains(o.Latitude, o.Longitude) {
			p.errorf("line %d: coordinates (%.4f, %.4f) outside the monitored box for %s",
				l.lineNum, o.Latitude, o.Longitude, o.LocationID)
		}
		counts[o.LocationID]++
	}

	for _, loc := range locations {
		fmt.Printf("  %-28s %d observation(s)\n", loc.ID, counts[loc.ID])
	}
	return p
}

// validateDetectorSweep replays the arbiter over each location's history.
// Detector output must keep its contract on real exports too: confidence
// finite and in [0, 1], a valid severity on every significant result, and
// more lead than the early-warning floor whenever that flag is set.
func validateDetectorSweep(lines []parsedLine) *phase {
	p := &phase{name: "Phase 5: Detector sweep"}

	sequences := make(map[string][]domain.Observation)
	for _, l := range lines {
		id := l.observation.LocationID
		sequences[id] = append(sequences[id], l.observation)
	}

	ids := make([]string, 0, len(sequences))
	for id := range sequences {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var patterns int
	for _, id := range ids {
		seq := sequences[id]
		sort.Slice(seq, func(i, j int) bool { return seq[i].Timestamp.Before(seq[j].Timestamp) })

		warning := analysis.Arbitrate(seq)
		for _, d := range analysis.Detectors() {
			result := warning.AllResults[d.Hazard()]
			if math.IsNaN(result.Confidence) || result.Confidence < 0 || result.Confidence > 1 {
				p.errorf("%s: %s confidence %v outside [0, 1]", id, d.Hazard(), result.Confidence)
				continue
			}
			if result.Confidence > analysis.SignificanceThreshold && !result.Severity.Valid() {
				p.errorf("%s: %s fired at %.2f without a valid severity", id, d.Hazard(), result.Confidence)
			}
		}
		if warning.EarlyWarning && warning.TimeToHazardHours <= analysis.EarlyWarningLeadHours {
			p.errorf("%s: early warning with only %.1fh of lead", id, warning.TimeToHazardHours)
		}

		if warning.HasPattern {
			patterns++
			fmt.Printf("  %-28s %s %.2f (%s, %.0fh lead)\n",
				id, warning.Hazard, warning.Confidence, warning.Severity, warning.TimeToHazardHours)
		}
	}

	if patterns == 0 {
		fmt.Println("  No hazard patterns in this export")
	}
	return p
}
