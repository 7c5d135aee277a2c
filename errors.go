package goAccount

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateResource is returned when an email is already registered.
	ErrDuplicateResource = errors.New("resource already exists")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is matched by [*LockedError].
	ErrAccountLocked = errors.New("account locked")
	// ErrTwoFactorRequired signals that a login needs a second factor. Login
	// reports it through LoginResult rather than as an error; handlers use it
	// for response mapping.
	ErrTwoFactorRequired = errors.New("two-factor authentication required")
	// ErrInvalid2FACode is returned for a wrong TOTP or backup code, a missing
	// pending secret, or 2FA not being enabled.
	ErrInvalid2FACode = errors.New("invalid two-factor code")
	// ErrTwoFactorAttemptsExceeded burns a login challenge. It also matches ErrInvalid2FACode.
	ErrTwoFactorAttemptsExceeded = fmt.Errorf("%w: challenge attempts exceeded", ErrInvalid2FACode)
	// ErrTwoFactorAlreadyEnabled rejects setup on an account that already has 2FA.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	// ErrTwoFactorNotEnabled rejects backup-code regeneration without 2FA.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrTokenExpired is returned for an expired refresh token (which is deleted).
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for a revoked, unexpired refresh token.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenNotFound is returned for an unknown refresh token.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenInvalid is returned for a malformed or unverifiable access token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRateLimitExceeded is returned by Admit when a client is out of budget.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrResourceNotFound is returned by account CRUD for unknown IDs.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrPasswordPolicy is returned when a new password violates length or strength rules.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidEmail is returned for a syntactically invalid email.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidRole is returned for an unknown role name.
	ErrInvalidRole = errors.New("invalid role")
	// ErrEmailNotVerified is returned by Login when verified email is required.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrVerificationTokenInvalid covers unknown, used, expired or mistyped verification tokens.
	ErrVerificationTokenInvalid = errors.New("verification token invalid")
	// ErrPermissionDenied is returned by the HTTP layer for role checks.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEngineNotReady is returned when a required collaborator is missing.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInternal wraps unexpected collaborator failures (store down, hasher error).
	ErrInternal = errors.New("internal error")
)

// LockedError reports an active lock and how long it still holds.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %s", e.Remaining.Round(time.Second))
}

// Is makes errors.Is(err, ErrAccountLocked) succeed.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
