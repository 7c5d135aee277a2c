package model

import "time"

// TokenType tags what a VerificationToken authorizes.
type TokenType string

const (
	TokenTwoFactorChallenge TokenType = "TWO_FACTOR_CHALLENGE"
	TokenEmailVerification  TokenType = "EMAIL_VERIFICATION"
	TokenPasswordReset      TokenType = "PASSWORD_RESET"
)

// VerificationToken is a short-lived, single-use continuation token. For the
// 2FA challenge it records that the caller already proved password knowledge.
//
// Token is the hash of the value handed to the caller; stores key on it.
type VerificationToken struct {
	Token     string
	AccountID string
	Type      TokenType
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	Attempts  int
	CreatedAt time.Time
}

// Usable reports whether the token can still be redeemed for typ.
func (v *VerificationToken) Usable(typ TokenType, now time.Time) bool {
	return v.Type == typ && !v.Used && now.Before(v.ExpiresAt)
}

// Consume marks the token used.
func (v *VerificationToken) Consume(now time.Time) {
	v.Used = true
	v.UsedAt = &now
}
