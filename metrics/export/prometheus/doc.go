// Package prometheus provides Prometheus collectors for gatehouse metrics.
//
// [NewPrometheusExporter] accepts a [gatehouse.Engine] and exposes an [http.Handler]
// that renders all gatehouse counters and histograms in Prometheus text exposition
// format. Counter names are prefixed gatehouse_*_total; the single histogram is
// gatehouse_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
