package goAccount

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/model"
	"go.uber.org/zap"
)

// Login checks a password and returns either a full session or, for accounts
// with 2FA enabled, a challenge token for [Engine.VerifyTwoFactor].
//
// Unknown email and wrong password both return ErrInvalidCredentials. A
// locked account returns a *LockedError. Reaching the failure threshold locks
// the account for the configured duration and resets the counter.
//
// Login does not consult the rate limiter. HTTP callers get admission from
// middleware.RateLimit; other callers should call [Engine.Admit] first.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	acct, err := e.authenticatePassword(ctx, email, plaintext)
	if err != nil {
		return nil, err
	}

	if e.config.Verification.RequireVerifiedEmail && !acct.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, ErrEmailNotVerified, nil)
		return nil, ErrEmailNotVerified
	}

	if acct.TwoFactorEnabled {
		return e.issueChallenge(ctx, acct)
	}

	session, err := e.issueSession(ctx, acct)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, acct.ID, nil, nil)
	e.logger.Debug("login succeeded", zap.String("account_id", acct.ID))
	return &LoginResult{Session: session}, nil
}

// authenticatePassword runs the lockout state machine under the account lock
// and returns the account on a correct password.
func (e *Engine) authenticatePassword(ctx context.Context, email, plaintext string) (*model.Account, error) {
	email = strings.TrimSpace(email)

	found, err := e.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		// Same cost as a wrong password.
		_, _ = e.hasher.Verify(ctx, plaintext, e.dummyHash)
		e.rejectLogin(ctx, "", email, "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, internalError("find account", err)
	}

	unlock := e.locks.Lock(found.ID)
	defer unlock()

	// Re-read under the lock so counters reflect concurrent attempts.
	acct, err := e.loadAccount(ctx, found.ID, ErrInvalidCredentials)
	if err != nil {
		return nil, err
	}

	now := e.now()
	acct.ClearExpiredLock(now)

	if acct.State(now) == model.AccountLocked {
		remaining := acct.LockRemaining(now)
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, ErrAccountLocked, nil)
		e.logger.Info("login rejected: account locked",
			zap.String("account_id", acct.ID),
			zap.Duration("remaining", remaining),
		)
		return nil, &LockedError{Remaining: remaining}
	}

	ok, err := e.hasher.Verify(ctx, plaintext, acct.PasswordHash)
	if err != nil {
		return nil, internalError("verify password", err)
	}

	if !ok {
		locked := acct.RecordLoginFailure(now, e.config.Lockout.Threshold, e.config.Lockout.Duration)
		if err := e.saveAccount(ctx, acct); err != nil {
			return nil, err
		}
		if locked {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, auditEventAccountLocked, true, acct.ID, nil, func() map[string]string {
				return map[string]string{"duration": e.config.Lockout.Duration.String()}
			})
			e.logger.Info("account locked after repeated failures",
				zap.String("account_id", acct.ID),
				zap.Duration("duration", e.config.Lockout.Duration),
			)
		}
		e.rejectLogin(ctx, acct.ID, email, "wrong_password")
		return nil, ErrInvalidCredentials
	}

	acct.RecordLoginSuccess()
	e.maybeUpgradeHash(ctx, acct, plaintext)
	if err := e.saveAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (e *Engine) rejectLogin(ctx context.Context, accountID, email, reason string) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": maskEmail(email)}
	})
	e.logger.Debug("login rejected",
		zap.String("email", maskEmail(email)),
		zap.String("reason", reason),
	)
}

// maybeUpgradeHash rehashes with current parameters when the stored digest
// is legacy (bcrypt) or weaker than configured. Failures are logged only.
func (e *Engine) maybeUpgradeHash(ctx context.Context, acct *model.Account, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	checker, ok := e.hasher.(upgradeChecker)
	if !ok {
		return
	}
	needs, err := checker.NeedsUpgrade(acct.PasswordHash)
	if err != nil || !needs {
		return
	}

	digest, err := e.hasher.Hash(ctx, plaintext)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("account_id", acct.ID), zap.Error(err))
		return
	}
	acct.PasswordHash = digest
	e.metricInc(MetricPasswordRehash)
}

func (e *Engine) issueChallenge(ctx context.Context, acct *model.Account) (*LoginResult, error) {
	if e.verification == nil {
		return nil, ErrEngineNotReady
	}

	plaintext, hash, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	now := e.now()
	ttl := e.config.TwoFactor.ChallengeTTL
	if err := e.verification.Save(ctx, &model.VerificationToken{
		Token:     hash,
		AccountID: acct.ID,
		Type:      model.TokenTwoFactorChallenge,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return nil, internalError("store challenge", err)
	}

	e.metricInc(MetricTwoFactorRequired)
	e.emitAudit(ctx, auditEventTwoFactorRequired, true, acct.ID, nil, nil)
	return &LoginResult{
		TwoFactorRequired: true,
		ChallengeToken:    plaintext,
		ChallengeTTL:      ttl,
	}, nil
}

// VerifyTwoFactor completes a challenged login with a TOTP code or, failing
// that, an unused backup code. Wrong codes do not touch the password lockout
// counters; each challenge tolerates MaxChallengeAttempts wrong codes before
// it is burned with ErrTwoFactorAttemptsExceeded.
func (e *Engine) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.verification == nil {
		return nil, ErrEngineNotReady
	}
	if challengeToken == "" {
		return nil, ErrInvalid2FACode
	}

	hash := internal.HashToken(challengeToken)
	challenge, err := e.verification.Find(ctx, hash)
	if errors.Is(err, model.ErrNotFound) {
		e.rejectTwoFactor(ctx, "")
		return nil, ErrInvalid2FACode
	}
	if err != nil {
		return nil, internalError("find challenge", err)
	}
	if !challenge.Usable(model.TokenTwoFactorChallenge, e.now()) {
		e.rejectTwoFactor(ctx, challenge.AccountID)
		return nil, ErrInvalid2FACode
	}

	acct, err := e.verifyChallengeCode(ctx, challenge, code)
	if err != nil {
		return nil, err
	}

	session, err := e.issueSession(ctx, acct)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventTwoFactorSuccess, true, acct.ID, nil, nil)
	return session, nil
}

func (e *Engine) verifyChallengeCode(ctx context.Context, challenge *model.VerificationToken, code string) (*model.Account, error) {
	unlock := e.locks.Lock(challenge.AccountID)
	defer unlock()

	// A concurrent verify may have redeemed or burned the challenge while we
	// waited for the lock. Check again before spending a backup code.
	current, err := e.verification.Find(ctx, challenge.Token)
	if errors.Is(err, model.ErrNotFound) {
		e.rejectTwoFactor(ctx, challenge.AccountID)
		return nil, ErrInvalid2FACode
	}
	if err != nil {
		return nil, internalError("find challenge", err)
	}
	if !current.Usable(model.TokenTwoFactorChallenge, e.now()) {
		e.rejectTwoFactor(ctx, challenge.AccountID)
		return nil, ErrInvalid2FACode
	}

	acct, err := e.loadAccount(ctx, challenge.AccountID, ErrInvalid2FACode)
	if err != nil {
		return nil, err
	}

	ok := acct.TwoFactorEnabled && e.totp.Verify(acct.TwoFactorSecret, code, e.now())
	if !ok && acct.TwoFactorEnabled {
		ok, err = e.consumeBackupCode(ctx, acct.ID, code)
		if err != nil {
			return nil, err
		}
	}

	if !ok {
		attempts, err := e.verification.RecordFailure(ctx, challenge.Token, e.config.TwoFactor.MaxChallengeAttempts)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, internalError("record challenge failure", err)
		}
		if errors.Is(err, model.ErrNotFound) || attempts >= e.config.TwoFactor.MaxChallengeAttempts {
			e.metricInc(MetricTwoFactorChallengeBurned)
			e.emitAudit(ctx, auditEventTwoFactorBurned, false, acct.ID, ErrTwoFactorAttemptsExceeded, nil)
			e.logger.Info("two-factor challenge burned", zap.String("account_id", acct.ID))
			return nil, ErrTwoFactorAttemptsExceeded
		}
		e.rejectTwoFactor(ctx, acct.ID)
		return nil, ErrInvalid2FACode
	}

	consumed, err := e.verification.Consume(ctx, challenge.Token, e.now())
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalid2FACode
	}
	if err != nil {
		return nil, internalError("consume challenge", err)
	}
	if !consumed {
		return nil, ErrInvalid2FACode
	}
	return acct, nil
}

func (e *Engine) rejectTwoFactor(ctx context.Context, accountID string) {
	e.metricInc(MetricTwoFactorFailure)
	e.emitAudit(ctx, auditEventTwoFactorFailure, false, accountID, ErrInvalid2FACode, nil)
}

// Refresh exchanges a refresh token for a new session. The presented token
// is replaced, so it cannot be used twice.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	token, acct, err := e.verifyRefreshToken(ctx, refreshToken)
	if err != nil {
		e.rejectRefresh(ctx, err)
		return nil, err
	}

	unlock := e.locks.Lock(acct.ID)
	// A concurrent refresh may have rotated the token since verification.
	current, err := e.refresh.FindByHash(ctx, token.TokenHash)
	if errors.Is(err, model.ErrNotFound) {
		unlock()
		e.rejectRefresh(ctx, ErrTokenNotFound)
		return nil, ErrTokenNotFound
	}
	if err != nil {
		unlock()
		return nil, internalError("find refresh token", err)
	}
	if err := e.checkRefreshState(ctx, current); err != nil {
		unlock()
		e.rejectRefresh(ctx, err)
		return nil, err
	}
	rotated, err := e.replaceRefreshToken(ctx, acct.ID)
	unlock()
	if err != nil {
		return nil, err
	}

	session, err := e.newSession(acct, rotated)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, acct.ID, nil, nil)
	return session, nil
}

func (e *Engine) rejectRefresh(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		e.metricInc(MetricRefreshExpired)
	case errors.Is(err, ErrTokenRevoked):
		e.metricInc(MetricRefreshRevoked)
	case errors.Is(err, ErrInternal):
		return
	default:
		e.metricInc(MetricRefreshFailure)
	}
	e.emitAudit(ctx, auditEventRefreshInvalid, false, "", err, nil)
}

// Logout revokes a refresh token. Unknown or already revoked tokens succeed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	accountID, err := e.revokeRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	if accountID != "" {
		e.emitAudit(ctx, auditEventLogout, true, accountID, nil, nil)
	}
	return nil
}

// LogoutAll deletes every refresh token of the account.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.loadAccount(ctx, accountID, ErrResourceNotFound); err != nil {
		return err
	}

	unlock := e.locks.Lock(accountID)
	err := e.revokeAllRefreshTokens(ctx, accountID)
	unlock()
	if err != nil {
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, nil, nil)
	return nil
}
