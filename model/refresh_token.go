package model

import "time"

// RefreshTokenState is derived from the revoked flag and expiry.
type RefreshTokenState uint8

const (
	RefreshActive RefreshTokenState = iota
	RefreshRevoked
	RefreshExpired
)

func (s RefreshTokenState) String() string {
	switch s {
	case RefreshRevoked:
		return "revoked"
	case RefreshExpired:
		return "expired"
	default:
		return "active"
	}
}

// RefreshToken is an opaque long-lived credential. Only TokenHash is persisted;
// Token carries the plaintext and is populated on creation only.
type RefreshToken struct {
	ID        string
	AccountID string
	Token     string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// State returns Expired before Revoked: an expired token is always reported
// as expired so that verification can delete it.
func (t *RefreshToken) State(now time.Time) RefreshTokenState {
	if !now.Before(t.ExpiresAt) {
		return RefreshExpired
	}
	if t.Revoked {
		return RefreshRevoked
	}
	return RefreshActive
}

// Revoke marks the token revoked. Repeated calls are no-ops.
func (t *RefreshToken) Revoke() {
	t.Revoked = true
}
