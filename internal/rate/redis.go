package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is a fixed-window counter shared through Redis. A window admits
// Capacity requests; the counter key expires RefillInterval after the first hit.
type RedisWindow struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewRedisWindow creates a Redis-backed [Limiter].
func NewRedisWindow(client redis.UniversalClient, cfg Config, now func() time.Time) (*RedisWindow, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &RedisWindow{redis: client, config: cfg, now: now}, nil
}

func (w *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	k := w.config.RedisPrefix + key
	count, ttl, err := w.incrementWithTTL(ctx, k, w.config.RefillInterval)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Allowed: count <= int64(w.config.Capacity),
		Limit:   w.config.Capacity,
		ResetAt: w.now().Add(ttl),
	}
	if remaining := int64(w.config.Capacity) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	return d, nil
}

func (w *RedisWindow) incrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return count, window, nil
	}

	ttl, err := w.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		// Key lost its TTL (e.g. a crash between INCR and EXPIRE); restore it.
		if err := w.redis.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = window
	}
	return count, ttl, nil
}
