package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/coastal-hazard-watch/internal/config"
	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

var seedFlags struct {
	hours   int
	profile string
	at      string
	out     string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with deterministic synthetic observation history",
	Long: `Generates hourly synthetic observations for every monitored location and
appends them through the normal ingest path, so IDs, normalization, and
idempotent dedup behave exactly as they do for live data. Re-running seed
with the same anchor time adds no rows.

Profiles:
  calm               gentle swell, light wind, steady pressure
  building-storm     waves and wind climbing fast enough to trip the
                     high-wave early warning
  tsunami-precursor  flat water until a sudden wave and current jump in
                     the last two readings
  mixed              rotates the profiles across locations (default)`,
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedFlags.hours, "hours", 24, "Hours of hourly history per location")
	f.StringVar(&seedFlags.profile, "profile", "mixed", "Condition profile: calm, building-storm, tsunami-precursor, or mixed")
	f.StringVar(&seedFlags.at, "at", "", "Anchor time for the newest observation (RFC3339). Default: current hour")
	f.StringVar(&seedFlags.out, "out", "", "Also write the generated observations as NDJSON to this path")
}

var seedProfiles = []string{"calm", "building-storm", "tsunami-precursor"}

func runSeed(cmd *cobra.Command, _ []string) error {
	if seedFlags.hours < 2 {
		return fmt.Errorf("--hours must be at least 2, got %d", seedFlags.hours)
	}
	if err := validProfile(seedFlags.profile); err != nil {
		return err
	}

	anchor := time.Now().UTC().Truncate(time.Hour)
	if seedFlags.at != "" {
		parsed, err := time.Parse(time.RFC3339, seedFlags.at)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		anchor = parsed.UTC()
	}

	// Freeze the clock at the anchor so generated timestamps, IDs, and
	// ingest times are reproducible for a given --at.
	domain.SetClock(clockwork.NewFakeClockAt(anchor))
	defer domain.SetClock(nil)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	locations, err := config.LoadLocations(cfg.LocationsFile)
	if err != nil {
		return err
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	var allRaw []domain.RawObservation
	var total, added int

	for i, loc := range locations {
		profile := seedFlags.profile
		if profile == "mixed" {
			profile = seedProfiles[i%len(seedProfiles)]
		}

		raws := generateProfile(loc, profile, seedFlags.hours, anchor)
		observations := make([]domain.Observation, len(raws))
		for j, raw := range raws {
			observations[j] = domain.NormalizeObservation(raw)
		}

		n, err := st.AppendObservations(ctx, observations)
		if err != nil {
			return fmt.Errorf("seed %s: %w", loc.ID, err)
		}

		total += len(observations)
		added += n
		logger.Info("seeded location",
			"location_id", loc.ID,
			"profile", profile,
			"observations", len(observations),
			"new", n)

		allRaw = append(allRaw, raws...)
	}

	logger.Info("seed complete",
		"locations", len(locations),
		"observations", total,
		"new", added,
		"duplicates", total-added,
		"anchor", anchor.Format(time.RFC3339))

	if seedFlags.out != "" {
		if err := writeNDJSON(seedFlags.out, allRaw); err != nil {
			return fmt.Errorf("write NDJSON: %w", err)
		}
		logger.Info("wrote observation export", "path", seedFlags.out, "lines", len(allRaw))
	}

	return nil
}

func validProfile(name string) error {
	if name == "mixed" {
		return nil
	}
	for _, p := range seedProfiles {
		if name == p {
			return nil
		}
	}
	return fmt.Errorf("unknown profile %q (want calm, building-storm, tsunami-precursor, or mixed)", name)
}

// generateProfile builds an hourly series ending at the anchor time. All
// shapes are closed-form in the sample index, so the same inputs always
// produce the same readings.
func generateProfile(loc domain.Location, profile string, hours int, anchor time.Time) []domain.RawObservation {
	raws := make([]domain.RawObservation, hours)
	for i := range raws {
		ts := anchor.Add(-time.Duration(hours-1-i) * time.Hour)
		raw := domain.RawObservation{
			LocationID: loc.ID,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			Timestamp:  ts,
		}

		switch profile {
		case "building-storm":
			step := float64(i)
			raw.WaveHeight = domain.Float(0.8 + 0.235*step)
			raw.WindSpeed = domain.Float(6.0 + 0.5*step)
			raw.CurrentSpeed = domain.Float(0.4 + 0.02*step)
			raw.Pressure = domain.Float(1015.0 - 0.55*step)
			raw.SeaSurfaceTemp = domain.Float(26.0)
		case "tsunami-precursor":
			raw.WaveHeight = domain.Float(0.5)
			raw.CurrentSpeed = domain.Float(0.3)
			raw.WindSpeed = domain.Float(4.0)
			raw.Pressure = domain.Float(1013.0)
			raw.SeaSurfaceTemp = domain.Float(24.0)
			if i >= hours-2 {
				jump := float64(i - (hours - 2) + 1)
				raw.WaveHeight = domain.Float(0.5 + 1.7*jump)
				raw.CurrentSpeed = domain.Float(0.3 + 1.1*jump)
			}
		default: // calm
			wiggle := math.Sin(float64(i) * 0.7)
			raw.WaveHeight = domain.Float(0.4 + 0.1*wiggle)
			raw.WindSpeed = domain.Float(3.0 + 0.5*wiggle)
			raw.CurrentSpeed = domain.Float(0.2)
			raw.Pressure = domain.Float(1012.0)
			raw.SeaSurfaceTemp = domain.Float(22.0)
		}

		raws[i] = raw
	}

	return raws
}

func writeNDJSON(path string, raws []domain.RawObservation) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	for _, raw := range raws {
		line, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
