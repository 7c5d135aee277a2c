package goAccount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdmitAllowsCapacityThenRecovers(t *testing.T) {
	cfg := testConfig()
	core, logs := observer.New(zapcore.WarnLevel)
	env := newTestEnvWithLogger(t, cfg, zap.New(core))
	ctx := context.Background()

	for i := 0; i < cfg.RateLimit.Capacity; i++ {
		if err := env.engine.Admit(ctx, "198.51.100.1"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := env.engine.Admit(ctx, "198.51.100.1"); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if err := env.engine.Admit(ctx, "198.51.100.2"); err != nil {
		t.Fatalf("other clients are independent: %v", err)
	}

	if logs.FilterMessage("rate limit exceeded").Len() != 1 {
		t.Fatalf("expected one warn log, got %d", logs.Len())
	}

	env.clock.Advance(cfg.RateLimit.RefillInterval)
	if err := env.engine.Admit(ctx, "198.51.100.1"); err != nil {
		t.Fatalf("expected recovery after refill interval: %v", err)
	}
}

func TestLoginLeavesAdmissionToCaller(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Capacity = 1
	cfg.RateLimit.RefillTokens = 1
	env := newTestEnv(t, cfg)
	env.register(t)

	ctx := WithClientIP(context.Background(), "198.51.100.9")
	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, testEmail, testPassword); err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
	}
	if err := env.engine.Admit(ctx, "198.51.100.9"); err != nil {
		t.Fatalf("logins must not spend the client's tokens: %v", err)
	}
	if err := env.engine.Admit(ctx, "198.51.100.9"); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestAdmitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	env := newTestEnv(t, cfg)

	for i := 0; i < cfg.RateLimit.Capacity*2; i++ {
		if err := env.engine.Admit(context.Background(), "k"); err != nil {
			t.Fatalf("disabled limiter rejected: %v", err)
		}
	}
}

func TestAdmitFailsOpenOnBackendError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.RateLimit.Backend = "redis"
	core, logs := observer.New(zapcore.ErrorLevel)
	env := newTestEnvWithLogger(t, cfg, zap.New(core), func(b *Builder) { b.WithRedis(rdb) })

	if err := env.engine.Admit(context.Background(), "k"); err != nil {
		t.Fatalf("redis admit: %v", err)
	}

	mr.Close()
	if err := env.engine.Admit(context.Background(), "k"); err != nil {
		t.Fatalf("backend failure must admit, got %v", err)
	}
	if logs.FilterMessage("rate limiter unavailable, admitting request").Len() != 1 {
		t.Fatal("expected an error log for the backend failure")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRateLimitBackendError]; got != 1 {
		t.Fatalf("expected backend error metric 1, got %d", got)
	}
}

func TestAdmitDecisionExposesRetryAfter(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Capacity = 1
	cfg.RateLimit.RefillTokens = 1
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	if _, err := env.engine.AdmitDecision(ctx, "k"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	decision, err := env.engine.AdmitDecision(ctx, "k")
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if got := decision.RetryAfter(env.clock.Now()); got != time.Minute {
		t.Fatalf("expected retry after 1m, got %s", got)
	}
}

type stubLimiter struct{ calls int }

func (s *stubLimiter) Allow(context.Context, string) (rate.Decision, error) {
	s.calls++
	return rate.Decision{Allowed: true, Limit: 1, Remaining: 1}, nil
}

func TestWithLimiterOverridesBackend(t *testing.T) {
	stub := &stubLimiter{}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithLimiter(stub) })

	_ = env.engine.Admit(context.Background(), "k")
	if stub.calls != 1 {
		t.Fatalf("expected custom limiter to be used, got %d calls", stub.calls)
	}
}
