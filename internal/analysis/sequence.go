package analysis

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

const (
	// DefaultLookback bounds how far back observations are considered.
	DefaultLookback = 24 * time.Hour
	// LocationTolerance is the half-width in degrees of the bounding box
	// used to match observations to a monitored site.
	LocationTolerance = 0.5
	// maxFallbackObservations caps the unfiltered fallback query so one
	// busy site cannot flood a sparse one's analysis.
	maxFallbackObservations = 200
)

// ObservationSource is the slice of the observation store the builder needs.
type ObservationSource interface {
	ObservationsInBox(ctx context.Context, box domain.Box, since time.Time) ([]domain.Observation, error)
	RecentObservations(ctx context.Context, since time.Time, limit int) ([]domain.Observation, error)
}

// SequenceBuilder assembles the ordered per-location observation history a
// detector pass runs on.
type SequenceBuilder struct {
	source   ObservationSource
	lookback time.Duration
	logger   *slog.Logger
}

// NewSequenceBuilder creates a builder over the given source. A
// non-positive lookback falls back to DefaultLookback.
func NewSequenceBuilder(source ObservationSource, lookback time.Duration, logger *slog.Logger) *SequenceBuilder {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &SequenceBuilder{
		source:   source,
		lookback: lookback,
		logger:   logger,
	}
}

// Build returns the location's observations inside the lookback window,
// oldest first. When the bounding-box query matches nothing, it falls back
// to all recent observations as degraded, non-local context. Storage errors
// degrade to an empty sequence so the pass reports insufficient data
// instead of aborting.
func (b *SequenceBuilder) Build(ctx context.Context, loc domain.Location) []domain.Observation {
	since := domain.Now().Add(-b.lookback)
	box := domain.BoxAround(loc.Latitude, loc.Longitude, LocationTolerance)

	seq, err := b.source.ObservationsInBox(ctx, box, since)
	if err != nil {
		b.logger.Warn("observation query failed, analyzing empty sequence",
			"location_id", loc.ID,
			"error", err)
		return nil
	}

	if len(seq) == 0 {
		seq, err = b.source.RecentObservations(ctx, since, maxFallbackObservations)
		if err != nil {
			b.logger.Warn("fallback observation query failed, analyzing empty sequence",
				"location_id", loc.ID,
				"error", err)
			return nil
		}
		if len(seq) > 0 {
			b.logger.Debug("no local observations, using recent unfiltered context",
				"location_id", loc.ID,
				"count", len(seq))
		}
	}

	sort.SliceStable(seq, func(i, j int) bool {
		return seq[i].Timestamp.Before(seq[j].Timestamp)
	})
	return seq
}
