// Package middleware exposes gin middleware built on top of goAccount.Engine.
//
// # Handlers
//
//   - [Guard] verifies a Bearer access token and stores its claims on the
//     gin context.
//   - [RequireRole] admits only callers whose token carries one of the roles.
//   - [RateLimit] runs Engine admission control per client key and writes
//     X-RateLimit-* headers.
//   - [ClientContext] attaches the caller's IP to the request context so the
//     Engine can record it in audit events.
//   - [RequestID], [Logger] and [HTTPMetrics] cover request correlation,
//     access logging and Prometheus request instrumentation.
//
// # What this package must NOT do
//
//   - Create tokens or touch stores; everything goes through the Engine.
//   - Decide rate-limit policy (capacity and refill live in goAccount.Config).
package middleware
