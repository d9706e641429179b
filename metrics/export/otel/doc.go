// Package otel binds portalauth metrics to OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per counter and
// Int64ObservableGauge instruments for the latency histogram's cumulative
// buckets. A single callback reads one snapshot per collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate service state.
package otel
