package goAccount

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/model"
	"github.com/google/uuid"
)

// RegenerateBackupCodes deletes the account's codes and returns a new batch.
// It requires 2FA to be enabled.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID string) ([]string, error) {
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
	if !acct.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	return e.replaceBackupCodes(ctx, acct.ID)
}

// UseBackupCode consumes candidate if it matches one of the account's unused
// codes. It returns true exactly once per code.
func (e *Engine) UseBackupCode(ctx context.Context, accountID, candidate string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if e.backupCodes == nil {
		return false, ErrEngineNotReady
	}
	return e.consumeBackupCode(ctx, accountID, candidate)
}

// RemainingBackupCodes counts the account's unused codes.
func (e *Engine) RemainingBackupCodes(ctx context.Context, accountID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.backupCodes == nil {
		return 0, ErrEngineNotReady
	}
	if _, err := e.loadAccount(ctx, accountID, ErrResourceNotFound); err != nil {
		return 0, err
	}

	n, err := e.backupCodes.CountUnused(ctx, accountID)
	if err != nil {
		return 0, internalError("count backup codes", err)
	}
	return n, nil
}

// replaceBackupCodes requires the caller to hold the account lock.
func (e *Engine) replaceBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	plain := make([]string, 0, model.BackupCodeBatchSize)
	records := make([]*model.BackupCode, 0, model.BackupCodeBatchSize)

	for i := 0; i < model.BackupCodeBatchSize; i++ {
		raw, err := internal.NewBackupCode(internal.BackupCodeLength, nil)
		if err != nil {
			return nil, internalError("generate backup code", err)
		}
		digest, err := e.hasher.Hash(ctx, internal.CanonicalizeBackupCode(raw))
		if err != nil {
			return nil, internalError("hash backup code", err)
		}
		records = append(records, &model.BackupCode{
			ID:        uuid.NewString(),
			AccountID: accountID,
			CodeHash:  digest,
		})
		plain = append(plain, internal.FormatBackupCode(raw))
	}

	if err := e.backupCodes.ReplaceForAccount(ctx, accountID, records); err != nil {
		return nil, internalError("store backup codes", err)
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, accountID, nil, nil)
	return plain, nil
}

// consumeBackupCode scans the unused codes with the password hasher's
// constant-time verify and marks the first match used. The store's
// conditional MarkUsed decides races between concurrent consumers.
func (e *Engine) consumeBackupCode(ctx context.Context, accountID, candidate string) (bool, error) {
	canonical := internal.CanonicalizeBackupCode(candidate)
	if len(canonical) != internal.BackupCodeLength {
		e.metricInc(MetricBackupCodeFailed)
		return false, nil
	}

	codes, err := e.backupCodes.ListUnused(ctx, accountID)
	if err != nil {
		return false, internalError("list backup codes", err)
	}

	for _, code := range codes {
		match, err := e.hasher.Verify(ctx, canonical, code.CodeHash)
		if err != nil {
			return false, internalError("verify backup code", err)
		}
		if !match {
			continue
		}

		won, err := e.backupCodes.MarkUsed(ctx, code.ID, e.now())
		if errors.Is(err, model.ErrNotFound) {
			won = false
		} else if err != nil {
			return false, internalError("mark backup code used", err)
		}
		if !won {
			break
		}

		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, accountID, nil, nil)
		return true, nil
	}

	e.metricInc(MetricBackupCodeFailed)
	return false, nil
}
