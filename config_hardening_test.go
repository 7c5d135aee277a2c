package goAccount

import (
	"testing"

	"github.com/MrEthical07/goAccount/store/memory"
)

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("01234567890123456789012345678901")

	env := newTestEnv(t, cfg)

	before := env.engine.config.JWT.PrivateKey[0]
	cfg.JWT.PrivateKey[0] = 'X'

	if env.engine.config.JWT.PrivateKey[0] != before {
		t.Fatal("engine config key mutated from external config after build")
	}
}

func TestBuilderRequiresStores(t *testing.T) {
	stores := memory.New()

	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without stores")
	}

	_, err := New().
		WithConfig(testConfig()).
		WithAccountStore(stores.Accounts).
		WithRefreshTokenStore(stores.RefreshTokens).
		WithBackupCodeStore(stores.BackupCodes).
		Build()
	if err == nil {
		t.Fatal("expected error without verification token store")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.Threshold = 0

	stores := memory.New()
	_, err := New().
		WithConfig(cfg).
		WithAccountStore(stores.Accounts).
		WithRefreshTokenStore(stores.RefreshTokens).
		WithBackupCodeStore(stores.BackupCodes).
		WithVerificationTokenStore(stores.VerificationTokens).
		Build()
	if err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestBuilderRedisBackendRequiresClient(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Backend = "redis"

	stores := memory.New()
	_, err := New().
		WithConfig(cfg).
		WithAccountStore(stores.Accounts).
		WithRefreshTokenStore(stores.RefreshTokens).
		WithBackupCodeStore(stores.BackupCodes).
		WithVerificationTokenStore(stores.VerificationTokens).
		Build()
	if err == nil {
		t.Fatal("expected error for redis backend without client")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	stores := memory.New()
	b := New().
		WithConfig(testConfig()).
		WithAccountStore(stores.Accounts).
		WithRefreshTokenStore(stores.RefreshTokens).
		WithBackupCodeStore(stores.BackupCodes).
		WithVerificationTokenStore(stores.VerificationTokens)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"a@x.com":           "a***@x.com",
		"alice@example.com": "ali***@example.com",
		"":                  "",
		"no-at-sign":        "***",
	}
	for in, want := range tests {
		if got := maskEmail(in); got != want {
			t.Fatalf("maskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
