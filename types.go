package goAccount

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccount/model"
)

// AccountStore persists accounts. Implementations must enforce email
// uniqueness and report a collision as model.ErrDuplicate, and report
// missing rows as model.ErrNotFound.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	Create(ctx context.Context, account *model.Account) error
	Save(ctx context.Context, account *model.Account) error
	Delete(ctx context.Context, id string) error
	ExistsByRole(ctx context.Context, role model.Role) (bool, error)
	List(ctx context.Context, offset, limit int) ([]*model.Account, error)
}

// RefreshTokenStore persists refresh tokens keyed by TokenHash.
type RefreshTokenStore interface {
	// ReplaceForAccount deletes every token of token.AccountID and inserts
	// token, atomically with respect to other calls for the same account.
	ReplaceForAccount(ctx context.Context, token *model.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// Revoke sets the revoked flag. Unknown hashes return model.ErrNotFound.
	Revoke(ctx context.Context, tokenHash string) error
	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

// BackupCodeStore persists hashed backup codes.
type BackupCodeStore interface {
	// ReplaceForAccount deletes all codes of accountID and inserts codes.
	ReplaceForAccount(ctx context.Context, accountID string, codes []*model.BackupCode) error
	ListUnused(ctx context.Context, accountID string) ([]*model.BackupCode, error)
	// MarkUsed flips used=false to used=true. It returns false when the code
	// was already used, so two concurrent consumers cannot both win.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	CountUnused(ctx context.Context, accountID string) (int, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}

// VerificationTokenStore persists continuation tokens (2FA challenge, email
// verification, password reset) keyed by the hashed token value.
type VerificationTokenStore interface {
	Save(ctx context.Context, token *model.VerificationToken) error
	Find(ctx context.Context, tokenHash string) (*model.VerificationToken, error)
	// Consume marks the token used. It returns false if it was already used.
	Consume(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	// RecordFailure increments the attempt counter and deletes the token once
	// it reaches maxAttempts. It returns the new count.
	RecordFailure(ctx context.Context, tokenHash string, maxAttempts int) (int, error)
	// DeleteByAccount removes tokens of typ for accountID; an empty typ removes all.
	DeleteByAccount(ctx context.Context, accountID string, typ model.TokenType) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Hasher is the password hashing collaborator. password.Pool implements it.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

type upgradeChecker interface {
	NeedsUpgrade(digest string) (bool, error)
}

// Clock is the time source. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Notifier delivers verification and reset tokens out of band (email).
type Notifier interface {
	SendEmailVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Session is a full authentication result.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is the access-token lifetime.
	ExpiresIn time.Duration
	Account   *model.Account
}

// LoginResult is either a full Session or a second-factor challenge, never both.
type LoginResult struct {
	Session *Session

	TwoFactorRequired bool
	// ChallengeToken is scoped to VerifyTwoFactor only.
	ChallengeToken string
	ChallengeTTL   time.Duration
}

// TwoFactorSetup is returned once by SetupTwoFactor.
type TwoFactorSetup struct {
	Secret string
	URI    string
	// QRCode is a PNG data URI of URI.
	QRCode string
}

// AccountUpdate carries optional changes; nil fields are left untouched.
type AccountUpdate struct {
	Email    *string
	Password *string
	Role     *model.Role

	// CurrentPassword, when set, must match the stored password before any
	// field changes. Self-service password changes set it.
	CurrentPassword *string
}
