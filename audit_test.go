package goAccount

import (
	"context"
	"strings"
	"testing"
	"time"
)

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *captureSink) collect(n int, within time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, n)
	timeout := time.After(within)
	for len(events) < n {
		select {
		case ev := <-s.events:
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func auditConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false
	return cfg
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := newCaptureSink(8)
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	env.register(t)
	env.login(t)

	if got := sink.collect(1, 50*time.Millisecond); len(got) != 0 {
		t.Fatalf("expected no events with audit disabled, got %d", len(got))
	}
}

func TestAuditLoginFailureCarriesIPAndCode(t *testing.T) {
	sink := newCaptureSink(8)
	env := newTestEnv(t, auditConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	id := env.register(t)

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = env.engine.Login(ctx, testEmail, "super-secret-password")

	for _, ev := range sink.collect(2, 2*time.Second) {
		if ev.Kind != auditEventLoginFailure {
			continue
		}
		if ev.ClientIP != "198.51.100.33" {
			t.Fatalf("expected IP 198.51.100.33, got %q", ev.ClientIP)
		}
		if ev.AccountID != id || ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Reason != string(auditErrInvalidCredentials) {
			t.Fatalf("expected %q, got %q", auditErrInvalidCredentials, ev.Reason)
		}
		if ev.Attrs["email"] != "a***@x.com" {
			t.Fatalf("email must be masked, got %q", ev.Attrs["email"])
		}
		return
	}
	t.Fatal("login failure event not received")
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := newCaptureSink(32)
	env := newTestEnv(t, auditConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	id := env.register(t)
	ctx := context.Background()

	refresh := env.login(t).Session.RefreshToken
	rotated, err := env.engine.Refresh(ctx, refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	_, codes := env.enableTwoFactor(t, id)

	acct, _ := env.engine.GetAccount(ctx, id)
	needles := []string{testPassword, refresh, rotated.RefreshToken, rotated.AccessToken, acct.PasswordHash, acct.TwoFactorSecret, codes[0]}

	events := sink.collect(8, 2*time.Second)
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Reason, needle) {
				t.Fatalf("secret leaked in error of %s", ev.Kind)
			}
			for k, v := range ev.Attrs {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("secret leaked in metadata of %s", ev.Kind)
				}
			}
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{&LockedError{Remaining: time.Minute}, auditErrAccountLocked},
		{ErrTwoFactorAttemptsExceeded, auditErrAttemptsExceeded},
		{ErrInvalid2FACode, auditErrInvalid2FA},
		{ErrTokenRevoked, auditErrTokenRevoked},
		{ErrRateLimitExceeded, auditErrRateLimited},
		{internalError("op", context.DeadlineExceeded), auditErrInternal},
	}
	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
