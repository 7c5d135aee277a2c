// Package prometheus exports goAccount counters through client_golang.
//
// [Collector] implements prometheus.Collector and emits one goaccount_*_total
// counter per engine metric plus the audit drop count. [NewRegistry] places it
// in a private registry and [Handler] serves that registry on /metrics.
//
// # What this package must NOT do
//
//   - Register into the global default registry.
//   - Mutate engine state.
package prometheus
