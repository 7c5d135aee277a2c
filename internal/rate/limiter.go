package rate

import (
	"context"
	"fmt"
	"time"
)

// Config holds the admission limits shared by both backends.
type Config struct {
	// Capacity is the bucket size C (burst).
	Capacity int
	// RefillTokens is R, added once per RefillInterval.
	RefillTokens int
	// RefillInterval is the fixed refill window.
	RefillInterval time.Duration
	// IdleTTL evicts in-memory buckets that saw no traffic for this long.
	IdleTTL time.Duration
	// RedisPrefix namespaces RedisWindow keys.
	RedisPrefix string
}

// DefaultConfig admits 100 requests per minute per client.
func DefaultConfig() Config {
	return Config{
		Capacity:       100,
		RefillTokens:   100,
		RefillInterval: time.Minute,
		IdleTTL:        10 * time.Minute,
		RedisPrefix:    "rl:",
	}
}

// Validate checks the limits. IdleTTL must cover a full refill from empty, so
// an evicted bucket is always indistinguishable from a fresh one.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be > 0", ErrInvalidConfig)
	}
	if c.RefillTokens <= 0 {
		return fmt.Errorf("%w: refill tokens must be > 0", ErrInvalidConfig)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be > 0", ErrInvalidConfig)
	}
	if c.IdleTTL < c.fullRefill() {
		return fmt.Errorf("%w: idle ttl must be >= %s", ErrInvalidConfig, c.fullRefill())
	}
	return nil
}

func (c Config) fullRefill() time.Duration {
	intervals := (c.Capacity + c.RefillTokens - 1) / c.RefillTokens
	return time.Duration(intervals) * c.RefillInterval
}

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the next refill (or window reset) happens.
	ResetAt time.Time
}

// RetryAfter is the wait until ResetAt, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter consumes one unit of budget for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
