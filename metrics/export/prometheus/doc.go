// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewExporter] accepts an [authcore.Engine] and exposes an [http.Handler]
// that renders all engine counters and histograms. Counter names are
// prefixed authcore_*_total; the single histogram is
// authcore_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the
//     Handler themselves.
//   - Mutate engine state.
package prometheus
