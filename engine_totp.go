package goAccount

import (
	"context"

	"go.uber.org/zap"
)

// SetupTwoFactor stores a fresh pending TOTP secret on the account and returns
// it with its provisioning URI and QR code. Calling it again before
// [Engine.EnableTwoFactor] replaces the pending secret.
func (e *Engine) SetupTwoFactor(ctx context.Context, accountID string) (*TwoFactorSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(accountID)
	defer unlock()

	acct, err := e.loadAccount(ctx, accountID, ErrResourceNotFound)
	if err != nil {
		return nil, err
	}
	if acct.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, internalError("generate totp secret", err)
	}
	payload, err := e.totp.ProvisioningPayload(acct.Email, secret)
	if err != nil {
		return nil, internalError("render totp payload", err)
	}

	acct.BeginTwoFactorSetup(secret)
	if err := e.saveAccount(ctx, acct); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTwoFactorSetup, true, acct.ID, nil, nil)
	return &TwoFactorSetup{
		Secret: payload.Secret,
		URI:    payload.URI,
		QRCode: payload.QRCode,
	}, nil
}

// EnableTwoFactor confirms the pending secret with a current code, enables
// 2FA and returns a fresh batch of backup codes. The codes are returned only
// here; the store keeps hashes.
func (e *Engine) EnableTwoFactor(ctx context.Context, accountID, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.backupCodes == nil {
		return nil, ErrEngineNotReady
	}

	unlock := e.locks.Lock(accountID)
	defer unlock()

	acct, err := e.loadAccount(ctx, accountID, ErrResourceNotFound)
	if err != nil {
		return nil, err
	}
	if acct.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if !acct.HasPendingTwoFactor() || !e.totp.Verify(acct.TwoFactorSecret, code, e.now()) {
		e.rejectTwoFactor(ctx, acct.ID)
		return nil, ErrInvalid2FACode
	}

	codes, err := e.replaceBackupCodes(ctx, acct.ID)
	if err != nil {
		return nil, err
	}

	acct.EnableTwoFactor()
	if err := e.saveAccount(ctx, acct); err != nil {
		return nil, err
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, acct.ID, nil, nil)
	e.logger.Info("two-factor enabled", zap.String("account_id", acct.ID))
	return codes, nil
}

// DisableTwoFactor requires 2FA to be enabled and a valid current TOTP code.
// It clears the secret and deletes every backup code. On an account without
// 2FA it fails with ErrInvalid2FACode like a wrong code would.
func (e *Engine) DisableTwoFactor(ctx context.Context, accountID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.backupCodes == nil {
		return ErrEngineNotReady
	}

	unlock := e.locks.Lock(accountID)
	defer unlock()

	acct, err := e.loadAccount(ctx, accountID, ErrResourceNotFound)
	if err != nil {
		return err
	}
	if !acct.TwoFactorEnabled || !e.totp.Verify(acct.TwoFactorSecret, code, e.now()) {
		e.rejectTwoFactor(ctx, acct.ID)
		return ErrInvalid2FACode
	}

	acct.DisableTwoFactor()
	if err := e.saveAccount(ctx, acct); err != nil {
		return err
	}
	if err := e.backupCodes.DeleteByAccount(ctx, acct.ID); err != nil {
		return internalError("delete backup codes", err)
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, acct.ID, nil, nil)
	e.logger.Info("two-factor disabled", zap.String("account_id", acct.ID))
	return nil
}
