package goAccount

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Register creates an account with the default role, zero failure counter
// and 2FA disabled. An existing email yields ErrDuplicateResource.
func (e *Engine) Register(ctx context.Context, email, plaintext string) (*model.Account, error) {
	return e.createAccount(ctx, email, plaintext, e.config.Account.DefaultRole)
}

// CreateAccount is Register with an explicit role, for administrators.
// Unknown roles yield ErrInvalidRole.
func (e *Engine) CreateAccount(ctx context.Context, email, plaintext string, role model.Role) (*model.Account, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	return e.createAccount(ctx, email, plaintext, role)
}

// EnsureAdmin creates an admin account unless one already exists. It reports
// whether an account was created.
func (e *Engine) EnsureAdmin(ctx context.Context, email, plaintext string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	exists, err := e.accounts.ExistsByRole(ctx, model.RoleAdmin)
	if err != nil {
		return false, internalError("check admin", err)
	}
	if exists {
		return false, nil
	}

	acct, err := e.createAccount(ctx, email, plaintext, model.RoleAdmin)
	if err != nil {
		return false, err
	}
	e.logger.Info("bootstrap admin created", zap.String("account_id", acct.ID))
	return true, nil
}

func (e *Engine) createAccount(ctx context.Context, email, plaintext string, role model.Role) (*model.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := e.checkPasswordPolicy(plaintext, email); err != nil {
		return nil, err
	}

	if _, err := e.accounts.FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return nil, ErrDuplicateResource
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, internalError("find account", err)
	}

	digest, err := e.hashPassword(ctx, plaintext)
	if err != nil {
		return nil, err
	}

	now := e.now()
	acct := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: digest,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The pre-check races with concurrent registrations; the store's unique
	// constraint is authoritative.
	if err := e.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrDuplicateResource
		}
		return nil, internalError("create account", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, acct.ID, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})
	e.logger.Debug("account registered",
		zap.String("account_id", acct.ID),
		zap.String("email", maskEmail(email)),
	)
	return acct, nil
}

// GetAccount loads one account.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadAccount(ctx, accountID, ErrResourceNotFound)
}

// ListAccounts pages through accounts. limit is capped at Account.ListLimit.
func (e *Engine) ListAccounts(ctx context.Context, offset, limit int) ([]*model.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > e.config.Account.ListLimit {
		limit = e.config.Account.ListLimit
	}

	accounts, err := e.accounts.List(ctx, offset, limit)
	if err != nil {
		return nil, internalError("list accounts", err)
	}
	return accounts, nil
}

// UpdateAccount applies the non-nil fields of update. A new email must be
// unique and resets EmailVerified; a new password revokes all refresh tokens.
func (e *Engine) UpdateAccount(ctx context.Context, accountID string, update AccountUpdate) (*model.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(accountID)
	defer unlock()

	acct, err := e.loadAccount(ctx, accountID, ErrResourceNotFound)
	if err != nil {
		return nil, err
	}

	if update.CurrentPassword != nil {
		ok, err := e.hasher.Verify(ctx, *update.CurrentPassword, acct.PasswordHash)
		if err != nil {
			return nil, internalError("verify password", err)
		}
		if !ok {
			return nil, ErrInvalidCredentials
		}
	}

	if update.Email != nil {
		email, err := normalizeEmail(*update.Email)
		if err != nil {
			return nil, err
		}
		if email != acct.Email {
			other, err := e.accounts.FindByEmail(ctx, email)
			switch {
			case err == nil && other.ID != acct.ID:
				return nil, ErrDuplicateResource
			case err != nil && !errors.Is(err, model.ErrNotFound):
				return nil, internalError("find account", err)
			}
			acct.Email = email
			acct.EmailVerified = false
			acct.EmailVerifiedAt = nil
		}
	}

	if update.Role != nil {
		if !update.Role.Valid() {
			return nil, ErrInvalidRole
		}
		acct.Role = *update.Role
	}

	passwordChanged := false
	if update.Password != nil {
		if err := e.checkPasswordPolicy(*update.Password, acct.Email); err != nil {
			return nil, err
		}
		digest, err := e.hashPassword(ctx, *update.Password)
		if err != nil {
			return nil, err
		}
		acct.PasswordHash = digest
		passwordChanged = true
	}

	if err := e.saveAccount(ctx, acct); err != nil {
		return nil, err
	}
	if passwordChanged {
		if err := e.revokeAllRefreshTokens(ctx, acct.ID); err != nil {
			return nil, err
		}
	}

	e.emitAudit(ctx, auditEventAccountUpdated, true, acct.ID, nil, func() map[string]string {
		return map[string]string{
			"email_changed":    boolString(update.Email != nil),
			"role_changed":     boolString(update.Role != nil),
			"password_changed": boolString(passwordChanged),
		}
	})
	return acct, nil
}

// DeleteAccount removes the account and everything it owns: refresh tokens,
// backup codes and verification tokens.
func (e *Engine) DeleteAccount(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	unlock := e.locks.Lock(accountID)
	defer unlock()

	if _, err := e.loadAccount(ctx, accountID, ErrResourceNotFound); err != nil {
		return err
	}

	if err := e.revokeAllRefreshTokens(ctx, accountID); err != nil {
		return err
	}
	if e.backupCodes != nil {
		if err := e.backupCodes.DeleteByAccount(ctx, accountID); err != nil {
			return internalError("delete backup codes", err)
		}
	}
	if e.verification != nil {
		if err := e.verification.DeleteByAccount(ctx, accountID, ""); err != nil {
			return internalError("delete verification tokens", err)
		}
	}

	err := e.accounts.Delete(ctx, accountID)
	if errors.Is(err, model.ErrNotFound) {
		return ErrResourceNotFound
	}
	if err != nil {
		return internalError("delete account", err)
	}

	e.emitAudit(ctx, auditEventAccountDeleted, true, accountID, nil, nil)
	e.logger.Info("account deleted", zap.String("account_id", accountID))
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
