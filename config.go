package goAccount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/model"
)

// Config is the complete Engine configuration. Start from [DefaultConfig] and
// override fields; [Builder.Build] calls Validate.
type Config struct {
	JWT          JWTConfig
	Refresh      RefreshConfig
	Lockout      LockoutConfig
	TwoFactor    TwoFactorConfig
	RateLimit    RateLimitConfig
	Password     PasswordConfig
	Verification VerificationConfig
	Account      AccountConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKENS
====================================
*/

// JWTConfig configures access tokens.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// RefreshConfig configures opaque refresh tokens.
type RefreshConfig struct {
	TTL time.Duration
}

/*
====================================
LOGIN HARDENING
====================================
*/

// LockoutConfig controls the failed-password lock.
type LockoutConfig struct {
	// Threshold is the number of consecutive failures that locks the account.
	Threshold int
	Duration  time.Duration
}

// TwoFactorConfig controls TOTP and the login challenge.
type TwoFactorConfig struct {
	Issuer string
	Digits int
	Period int
	Skew   int
	// ChallengeTTL bounds how long a password-verified login may wait for its second factor.
	ChallengeTTL time.Duration
	// MaxChallengeAttempts burns a challenge after this many wrong codes.
	MaxChallengeAttempts int
}

// RateLimitConfig controls per-client admission.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	IdleTTL        time.Duration
	// Backend is "memory" (default) or "redis". Redis requires Builder.WithRedis.
	Backend     string
	RedisPrefix string
}

// PasswordConfig holds hashing cost and password policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// PoolSize bounds concurrent hash computations; 0 uses GOMAXPROCS.
	PoolSize int

	MinLength int
	MaxLength int
	// MinStrength is the minimum zxcvbn score (0-4); 0 disables the check.
	MinStrength    int
	UpgradeOnLogin bool
}

// VerificationConfig controls email verification and password reset tokens.
type VerificationConfig struct {
	EmailTTL             time.Duration
	ResetTTL             time.Duration
	RequireVerifiedEmail bool
}

// AccountConfig holds account defaults.
type AccountConfig struct {
	DefaultRole model.Role
	// ListLimit caps ListAccounts page size.
	ListLimit int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns production-leaning defaults. JWT key material must
// still be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "goaccount",
			Leeway:        30 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:               "goAccount",
			Digits:               6,
			Period:               30,
			Skew:                 1,
			ChallengeTTL:         5 * time.Minute,
			MaxChallengeAttempts: 5,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			Capacity:       100,
			RefillTokens:   100,
			RefillInterval: time.Minute,
			IdleTTL:        10 * time.Minute,
			Backend:        "memory",
			RedisPrefix:    "rl:",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      6,
			MaxLength:      100,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			EmailTTL: 24 * time.Hour,
			ResetTTL: time.Hour,
		},
		Account: AccountConfig{
			DefaultRole: model.RoleUser,
			ListLimit:   100,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks every section and joins all violations.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		fail("JWT AccessTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			fail("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			fail("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		fail("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.Refresh.TTL <= 0 {
		fail("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		fail("Refresh TTL must exceed JWT AccessTTL")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		fail("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		fail("Lockout Duration must be > 0")
	}

	// Two factor
	if strings.TrimSpace(c.TwoFactor.Issuer) == "" {
		fail("TwoFactor Issuer must be set")
	}
	if c.TwoFactor.Digits < 6 || c.TwoFactor.Digits > 8 {
		fail("TwoFactor Digits must be between 6 and 8")
	}
	if c.TwoFactor.Period <= 0 {
		fail("TwoFactor Period must be > 0")
	}
	if c.TwoFactor.Skew < 0 || c.TwoFactor.Skew > 3 {
		fail("TwoFactor Skew must be between 0 and 3")
	}
	if c.TwoFactor.ChallengeTTL <= 0 {
		fail("TwoFactor ChallengeTTL must be > 0")
	}
	if c.TwoFactor.MaxChallengeAttempts <= 0 {
		fail("TwoFactor MaxChallengeAttempts must be > 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Capacity <= 0 || c.RateLimit.RefillTokens <= 0 || c.RateLimit.RefillInterval <= 0 {
			fail("RateLimit Capacity, RefillTokens and RefillInterval must be > 0")
		}
		switch c.RateLimit.Backend {
		case "", "memory", "redis":
		default:
			fail("RateLimit Backend must be 'memory' or 'redis'")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		fail("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		fail("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		fail("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		fail("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		fail("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		fail("Password MinLength must be >= 1 and <= MaxLength")
	}
	if c.Password.MinStrength < 0 || c.Password.MinStrength > 4 {
		fail("Password MinStrength must be between 0 and 4")
	}

	// Verification
	if c.Verification.EmailTTL <= 0 || c.Verification.ResetTTL <= 0 {
		fail("Verification EmailTTL and ResetTTL must be > 0")
	}

	if !c.Account.DefaultRole.Valid() {
		fail("Account DefaultRole %q is not a known role", c.Account.DefaultRole)
	}
	if c.Account.ListLimit <= 0 {
		fail("Account ListLimit must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		fail("Audit BufferSize must be > 0")
	}

	return errors.Join(errs...)
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
