package model

import "time"

// Role is the coarse authorization role carried by an account.
type Role string

const (
	RoleUser    Role = "ROLE_USER"
	RoleAdmin   Role = "ROLE_ADMIN"
	RoleManager Role = "ROLE_MANAGER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleManager:
		return true
	default:
		return false
	}
}

// ParseRole resolves a role name, accepting the bare form ("ADMIN") as well as
// the prefixed one ("ROLE_ADMIN").
func ParseRole(name string) (Role, bool) {
	r := Role(name)
	if r.Valid() {
		return r, true
	}
	r = Role("ROLE_" + name)
	return r, r.Valid()
}

// AccountState is the lockout state of an account at a given instant.
type AccountState uint8

const (
	AccountNormal AccountState = iota
	AccountLocked
)

func (s AccountState) String() string {
	if s == AccountLocked {
		return "locked"
	}
	return "normal"
}

// Account is the root identity record.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role

	FailedAttempts int
	LockedUntil    *time.Time

	TwoFactorEnabled bool
	// TwoFactorSecret is base32 encoded. It is set while setup is pending and
	// while 2FA is enabled; empty otherwise.
	TwoFactorSecret string

	EmailVerified   bool
	EmailVerifiedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// State returns Locked while LockedUntil is in the future.
func (a *Account) State(now time.Time) AccountState {
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return AccountLocked
	}
	return AccountNormal
}

// LockRemaining is the time left on an active lock, or zero.
func (a *Account) LockRemaining(now time.Time) time.Duration {
	if a.State(now) != AccountLocked {
		return 0
	}
	return a.LockedUntil.Sub(now)
}

// ClearExpiredLock drops a lock whose deadline has passed. It reports whether
// the account changed.
func (a *Account) ClearExpiredLock(now time.Time) bool {
	if a.LockedUntil == nil || now.Before(*a.LockedUntil) {
		return false
	}
	a.LockedUntil = nil
	a.FailedAttempts = 0
	return true
}

// RecordLoginFailure increments the failure counter. When the counter reaches
// threshold the account is locked until now+lockFor and the counter resets.
// It reports whether this failure caused a lock.
func (a *Account) RecordLoginFailure(now time.Time, threshold int, lockFor time.Duration) bool {
	a.FailedAttempts++
	if threshold > 0 && a.FailedAttempts >= threshold {
		until := now.Add(lockFor)
		a.LockedUntil = &until
		a.FailedAttempts = 0
		return true
	}
	return false
}

// RecordLoginSuccess resets the failure counter and any lock.
func (a *Account) RecordLoginSuccess() {
	a.FailedAttempts = 0
	a.LockedUntil = nil
}

// BeginTwoFactorSetup stores a pending secret. Any earlier pending secret is
// overwritten. It has no effect on an account that already has 2FA enabled.
func (a *Account) BeginTwoFactorSetup(secret string) {
	if a.TwoFactorEnabled {
		return
	}
	a.TwoFactorSecret = secret
}

// HasPendingTwoFactor reports whether a setup secret awaits confirmation.
func (a *Account) HasPendingTwoFactor() bool {
	return !a.TwoFactorEnabled && a.TwoFactorSecret != ""
}

// EnableTwoFactor promotes the pending secret.
func (a *Account) EnableTwoFactor() {
	a.TwoFactorEnabled = true
}

// DisableTwoFactor clears the secret and the enabled flag.
func (a *Account) DisableTwoFactor() {
	a.TwoFactorEnabled = false
	a.TwoFactorSecret = ""
}

// MarkEmailVerified flags the email as confirmed.
func (a *Account) MarkEmailVerified(now time.Time) {
	a.EmailVerified = true
	a.EmailVerifiedAt = &now
}

// Clone returns a deep copy so stores never share pointers with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		out.LockedUntil = &t
	}
	if a.EmailVerifiedAt != nil {
		t := *a.EmailVerifiedAt
		out.EmailVerifiedAt = &t
	}
	return &out
}
