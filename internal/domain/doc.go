// Package domain models coastal ocean/weather observations and the hazard
// predictions derived from them.
//
// # Observations
//
// An Observation is a single timestamped snapshot of sea state at one
// monitored location. Upstream collectors disagree on field names: buoy
// feeds use oceanographic shorthand (hs, ws, cs, sst, pres) while the
// station API spells fields out (waveHeight, windSpeed, currentSpeed,
// seaSurfaceTemp, pressure). Both spellings are accepted on the wire via
// [RawObservation]; [NormalizeObservation] resolves them once, so everything
// downstream of the ingest boundary sees one canonical schema.
//
// Units are fixed at normalization:
//
//	waveHeight      metres (significant wave height)
//	windSpeed       metres per second
//	windDirection   degrees true
//	currentSpeed    metres per second (surface current)
//	seaSurfaceTemp  degrees Celsius
//	pressure        hectopascals (mean sea-level)
//
// Numeric fields are pointers: a nil field means the sensor reported
// nothing, which is evidence of absence, never a zero reading. Analysis
// code must skip nil fields rather than treat them as 0.
//
// # Severity
//
// The four-level scale (low, medium, high, critical) is totally ordered and
// shared by detectors, the fusion classifier, and persisted predictions.
// Comparisons go through [Severity.Rank]; never compare the strings.
//
// # ID Generation
//
// Observation IDs are deterministic SHA-256 hashes of
// locationId|lat|lon|timestamp. The same reading always produces the same
// ID, so replayed ingests are idempotent (ON CONFLICT DO NOTHING / INSERT
// OR IGNORE downstream). Prediction IDs additionally hash the creation
// timestamp: re-analysis of unchanged data appends a new, consistent row
// rather than overwriting history.
package domain
