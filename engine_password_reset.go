package goAccount

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/model"
	"go.uber.org/zap"
)

// RequestPasswordReset issues a reset token and hands it to the Notifier.
// Unknown emails return nil so the endpoint does not enumerate accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.verification == nil || e.notifier == nil {
		return ErrEngineNotReady
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		e.logger.Debug("password reset requested for unknown email", zap.String("email", maskEmail(email)))
		return nil
	}
	if err != nil {
		return internalError("find account", err)
	}

	plaintext, err := e.issueVerificationToken(ctx, acct.ID, model.TokenPasswordReset, e.config.Verification.ResetTTL)
	if err != nil {
		return err
	}
	if err := e.notifier.SendPasswordReset(ctx, acct.Email, plaintext); err != nil {
		return internalError("send password reset", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, acct.ID, nil, nil)
	return nil
}

// ResetPassword redeems a reset token, sets the new password, clears any
// lock and revokes every refresh token of the account.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.verification == nil {
		return ErrEngineNotReady
	}

	vt, err := e.peekVerificationToken(ctx, token, model.TokenPasswordReset)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(vt.AccountID)
	defer unlock()

	acct, err := e.loadAccount(ctx, vt.AccountID, ErrVerificationTokenInvalid)
	if err != nil {
		return err
	}
	// Policy and hashing run before redemption so a rejected password does
	// not burn the token.
	if err := e.checkPasswordPolicy(newPassword, acct.Email); err != nil {
		return err
	}
	digest, err := e.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	if _, err := e.redeemVerificationToken(ctx, token, model.TokenPasswordReset); err != nil {
		return err
	}

	acct.PasswordHash = digest
	acct.RecordLoginSuccess()
	if err := e.saveAccount(ctx, acct); err != nil {
		return err
	}
	if err := e.revokeAllRefreshTokens(ctx, acct.ID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, acct.ID, nil, nil)
	e.logger.Info("password reset", zap.String("account_id", acct.ID))
	return nil
}

// PurgeExpiredVerificationTokens deletes expired challenge, verification and
// reset tokens and returns how many were removed.
func (e *Engine) PurgeExpiredVerificationTokens(ctx context.Context) (int, error) {
	if e == nil || e.verification == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.verification.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, internalError("purge verification tokens", err)
	}
	if n > 0 {
		e.logger.Debug("purged expired verification tokens", zap.Int("count", n))
	}
	return n, nil
}
