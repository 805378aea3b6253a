// Package metrics provides Prometheus instrumentation for smoothy.
//
// All metrics are prefixed with "smoothy_" and registered through promauto
// at package init. They are exposed by the separate metrics server started
// from the serve command.
//
// # Metric Categories
//
// HTTP: request counts, durations, in-flight gauge and recovered panics.
//
// Jobs: accepted and finished jobs per mode and outcome, wall time, slot
// wait time, upload sizes and probed media durations.
//
// External tool: per-pass ffmpeg durations and results, ffprobe latency,
// and the number of process groups killed on timeout or cancellation.
//
// Workspace: cleanup results and retries, directories swept at startup, and
// gauges sampled by Collector for bytes and job directories currently held.
//
// InitializeMetrics pre-populates label combinations so dashboards see every
// series from the first scrape.
package metrics
