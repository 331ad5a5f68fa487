// Package metrics implements the in-process counter and histogram primitives
// behind the root package's MetricID/Metrics aliases.
//
// # Components
//
//   - [Metrics] — padded atomic counter array plus one latency histogram.
//   - [Snapshot] — point-in-time deep copy for export.
//
// # What this package must NOT do
//
//   - Export anything network-facing; exporters belong to callers.
//   - Be imported outside the aerc module.
package metrics
