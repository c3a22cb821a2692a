// Package analysis implements the hazard pattern engine: trend estimation
// over observation sequences, five independent precursor detectors, and the
// arbiter that selects the dominant early-warning signal.
//
// Everything in this package is pure computation over already-fetched data.
// Detectors take an ordered sequence and return a PatternResult without
// touching storage or the network, so they can run for many locations in
// parallel with no coordination. The only I/O lives in SequenceBuilder,
// which assembles the per-location input and degrades to an empty sequence
// on storage errors rather than failing the analysis pass.
//
// Trend slopes are computed against sample index, not wall-clock time. Two
// readings ten hours apart weigh the same as two readings ten minutes
// apart, so a trend is "units per sample" and the time-to-hazard estimate
// inherits that assumption. Collectors report on a fixed cadence, which
// keeps the simplification honest; irregular feeds would distort it.
package analysis
