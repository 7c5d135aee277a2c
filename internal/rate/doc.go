// Package rate implements per-client admission control.
//
// Two backends satisfy [Limiter]:
//
//   - [TokenBucket]: process-local buckets with capacity C, refilled by R
//     tokens at the end of each fixed interval. Buckets are created lazily and
//     evicted after IdleTTL without traffic.
//   - [RedisWindow]: fixed-window counters (INCR + EXPIRE on first hit) shared
//     by every process that talks to the same Redis. Keys are `<prefix><client>`.
//
// # What this package must NOT do
//
//   - Decide what a client key is (the transport layer derives it).
//   - Run background goroutines; eviction piggybacks on admission calls.
//   - Be imported outside the goAccount module.
package rate
