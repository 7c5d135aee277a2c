package rate

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	evicted    bool
}

// TokenBucket is an in-process registry of per-key token buckets. Consumption
// on one key is serialized by that bucket's mutex; different keys never
// contend beyond the registry lookup.
type TokenBucket struct {
	cfg Config
	now func() time.Time

	mu        sync.RWMutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewTokenBucket builds a registry. A nil now uses time.Now.
func NewTokenBucket(cfg Config, now func() time.Time) (*TokenBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &TokenBucket{
		cfg:       cfg,
		now:       now,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
	}, nil
}

// Allow attempts to take one token for key.
func (tb *TokenBucket) Allow(_ context.Context, key string) (Decision, error) {
	now := tb.now()
	tb.maybeSweep(now)

	for {
		b := tb.lookup(key, now)

		b.mu.Lock()
		if b.evicted {
			// Lost a race with the sweeper; the registry already forgot this bucket.
			b.mu.Unlock()
			continue
		}
		d := tb.take(b, now)
		b.mu.Unlock()
		return d, nil
	}
}

// Len reports the number of live buckets.
func (tb *TokenBucket) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return len(tb.buckets)
}

func (tb *TokenBucket) lookup(key string, now time.Time) *bucket {
	tb.mu.RLock()
	b, ok := tb.buckets[key]
	tb.mu.RUnlock()
	if ok {
		return b
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	if b, ok = tb.buckets[key]; ok {
		return b
	}
	b = &bucket{tokens: tb.cfg.Capacity, lastRefill: now, lastSeen: now}
	tb.buckets[key] = b
	return b
}

// take must be called with b.mu held.
func (tb *TokenBucket) take(b *bucket, now time.Time) Decision {
	if elapsed := now.Sub(b.lastRefill); elapsed >= tb.cfg.RefillInterval {
		intervals := int(elapsed / tb.cfg.RefillInterval)
		b.tokens += intervals * tb.cfg.RefillTokens
		if b.tokens > tb.cfg.Capacity || b.tokens < 0 {
			b.tokens = tb.cfg.Capacity
		}
		b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * tb.cfg.RefillInterval)
	}
	b.lastSeen = now

	d := Decision{
		Limit:   tb.cfg.Capacity,
		ResetAt: b.lastRefill.Add(tb.cfg.RefillInterval),
	}
	if b.tokens > 0 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = b.tokens
	return d
}

// maybeSweep evicts idle buckets at most once per refill interval.
func (tb *TokenBucket) maybeSweep(now time.Time) {
	tb.mu.RLock()
	due := now.Sub(tb.lastSweep) >= tb.cfg.RefillInterval
	tb.mu.RUnlock()
	if !due {
		return
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	if now.Sub(tb.lastSweep) < tb.cfg.RefillInterval {
		return
	}
	tb.lastSweep = now

	for key, b := range tb.buckets {
		b.mu.Lock()
		if now.Sub(b.lastSeen) >= tb.cfg.IdleTTL {
			b.evicted = true
			delete(tb.buckets, key)
		}
		b.mu.Unlock()
	}
}
