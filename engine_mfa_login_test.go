package goAccount

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/internal"
)

func TestScenarioRegisterLoginEnableTwoFactor(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	acct, err := env.engine.Register(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.TwoFactorEnabled || acct.FailedAttempts != 0 || acct.Role != DefaultConfig().Account.DefaultRole {
		t.Fatalf("unexpected fresh account %+v", acct)
	}

	first := env.login(t)
	if first.TwoFactorRequired || first.Session == nil {
		t.Fatalf("expected full session before 2FA, got %+v", first)
	}

	secret, codes := env.enableTwoFactor(t, acct.ID)
	if len(codes) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(codes))
	}
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		seen[c] = struct{}{}
	}
	if len(seen) != 10 {
		t.Fatal("backup codes must be distinct")
	}

	second := env.login(t)
	if !second.TwoFactorRequired || second.Session != nil || second.ChallengeToken == "" {
		t.Fatalf("expected challenge without tokens, got %+v", second)
	}

	session, err := env.engine.VerifyTwoFactor(ctx, second.ChallengeToken, env.currentCode(t, secret))
	if err != nil {
		t.Fatalf("VerifyTwoFactor: %v", err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("expected full tokens after second factor")
	}

	claims, err := env.engine.AccessTokens().ParseAccess(session.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != acct.ID || claims.Email != testEmail {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := env.engine.VerifyTwoFactor(ctx, second.ChallengeToken, env.currentCode(t, secret)); !errors.Is(err, ErrInvalid2FACode) {
		t.Fatalf("challenge must be single use, got %v", err)
	}
}

func TestVerifyTwoFactorWithBackupCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.register(t)
	_, codes := env.enableTwoFactor(t, id)
	ctx := context.Background()

	res := env.login(t)
	if _, err := env.engine.VerifyTwoFactor(ctx, res.ChallengeToken, codes[0]); err != nil {
		t.Fatalf("backup code should complete login: %v", err)
	}

	res = env.login(t)
	if _, err := env.engine.VerifyTwoFactor(ctx, res.ChallengeToken, codes[0]); !errors.Is(err, ErrInvalid2FACode) {
		t.Fatalf("used backup code must fail, got %v", err)
	}
	if n, _ := env.engine.RemainingBackupCodes(ctx, id); n != 9 {
		t.Fatalf("expected 9 remaining codes, got %d", n)
	}
}

func TestVerifyTwoFactorConcurrentBackupCodesSpendOne(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.register(t)
	_, codes := env.enableTwoFactor(t, id)
	ctx := context.Background()

	res := env.login(t)

	const racers = 4
	var (
		wg       sync.WaitGroup
		sessions atomic.Int32
	)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := env.engine.VerifyTwoFactor(ctx, res.ChallengeToken, codes[i]); err != nil {
				errs[i] = err
				return
			}
			sessions.Add(1)
		}(i)
	}
	wg.Wait()

	if sessions.Load() != 1 {
		t.Fatalf("expected one session, got %d (errs=%v)", sessions.Load(), errs)
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrInvalid2FACode) {
			t.Fatalf("losers must see ErrInvalid2FACode, got %v", err)
		}
	}
	if n, _ := env.engine.RemainingBackupCodes(ctx, id); n != len(codes)-1 {
		t.Fatalf("expected exactly one code spent, %d of %d remain", n, len(codes))
	}
}

func TestVerifyTwoFactorFailureDoesNotTouchLockout(t *testing.T) {
	cfg := testConfig()
	cfg.TwoFactor.MaxChallengeAttempts = 100
	env := newTestEnv(t, cfg)
	id := env.register(t)
	env.enableTwoFactor(t, id)
	ctx := context.Background()

	res := env.login(t)
	for i := 0; i < cfg.Lockout.Threshold+2; i++ {
		if _, err := env.engine.VerifyTwoFactor(ctx, res.ChallengeToken, "000000"); !errors.Is(err, ErrInvalid2FACode) {
			t.Fatalf("expected ErrInvalid2FACode, got %v", err)
		}
	}

	acct, _ := env.stores.Accounts.FindByID(ctx, id)
	if acct.FailedAttempts != 0 || acct.LockedUntil != nil {
		t.Fatalf("2FA failures must not change lockout state: %+v", acct)
	}
}

func TestVerifyTwoFactorBurnsChallengeAfterMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.TwoFactor.MaxChallengeAttempts = 3
	env := newTestEnv(t, cfg)
	id := env.register(t)
	secret, _ := env.enableTwoFactor(t, id)
	ctx := context.Background()

	res := env.login(t)
	for i := 1; i < cfg.TwoFactor.MaxChallengeAttempts; i++ {
		_, err := env.engine.VerifyTwoFactor(ctx, res.ChallengeToken, "000000")
		if !errors.Is(err, ErrInvalid2FACode) || errors.Is(err, ErrTwoFactorAttemptsExceeded) {
			t.Fatalf("attempt %d: expected plain ErrInvalid2FACode, got %v", i, err)
		}
	}

	_, err := env.engine.VerifyTwoFactor(ctx, res.ChallengeToken, "000000")
	if !errors.Is(err, ErrTwoFactorAttemptsExceeded) || !errors.Is(err, ErrInvalid2FACode) {
		t.Fatalf("expected burned challenge, got %v", err)
	}

	if _, err := env.engine.VerifyTwoFactor(ctx, res.ChallengeToken, env.currentCode(t, secret)); !errors.Is(err, ErrInvalid2FACode) {
		t.Fatalf("burned challenge must not accept a valid code, got %v", err)
	}
}

func TestVerifyTwoFactorExpiredChallenge(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(t, cfg)
	id := env.register(t)
	secret, _ := env.enableTwoFactor(t, id)

	res := env.login(t)
	env.clock.Advance(cfg.TwoFactor.ChallengeTTL + time.Second)

	_, err := env.engine.VerifyTwoFactor(context.Background(), res.ChallengeToken, env.currentCode(t, secret))
	if !errors.Is(err, ErrInvalid2FACode) {
		t.Fatalf("expected ErrInvalid2FACode for expired challenge, got %v", err)
	}
}

func TestVerifyTwoFactorRejectsOtherTokenTypes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t)
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, testEmail); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if _, err := env.engine.VerifyTwoFactor(ctx, env.notifier.resetToken(testEmail), "000000"); !errors.Is(err, ErrInvalid2FACode) {
		t.Fatalf("reset token must not work as a challenge, got %v", err)
	}
	if _, err := env.engine.VerifyTwoFactor(ctx, "", "000000"); !errors.Is(err, ErrInvalid2FACode) {
		t.Fatalf("empty challenge: %v", err)
	}
}

func TestChallengeTokenStoredHashed(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.register(t)
	env.enableTwoFactor(t, id)
	ctx := context.Background()

	res := env.login(t)
	if _, err := env.stores.VerificationTokens.Find(ctx, res.ChallengeToken); err == nil {
		t.Fatal("plaintext challenge must not be a store key")
	}
	if _, err := env.stores.VerificationTokens.Find(ctx, internal.HashToken(res.ChallengeToken)); err != nil {
		t.Fatalf("hashed challenge missing: %v", err)
	}
}
