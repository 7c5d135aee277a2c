// Package otel binds goAccount counters to OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine metric. A
// single callback reads [goAccount.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
