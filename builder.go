package goAccount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goAccount/internal/audit"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/password"
	"github.com/MrEthical07/goAccount/totp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// dummyPassword feeds the hash verified for unknown emails.
const dummyPassword = "goaccount-timing-equalizer"

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	logger *zap.Logger
	clock  Clock
	redis  redis.UniversalClient

	accounts     AccountStore
	refresh      RefreshTokenStore
	backupCodes  BackupCodeStore
	verification VerificationTokenStore

	hasher    Hasher
	limiter   rate.Limiter
	notifier  Notifier
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the time source used for lockout, token expiry, TOTP and
// rate limiting.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithRedis supplies the client for RateLimit.Backend "redis".
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	return b
}

func (b *Builder) WithRefreshTokenStore(s RefreshTokenStore) *Builder {
	b.refresh = s
	return b
}

func (b *Builder) WithBackupCodeStore(s BackupCodeStore) *Builder {
	b.backupCodes = s
	return b
}

func (b *Builder) WithVerificationTokenStore(s VerificationTokenStore) *Builder {
	b.verification = s
	return b
}

// WithHasher replaces the default argon2id pool.
func (b *Builder) WithHasher(h Hasher) *Builder {
	b.hasher = h
	return b
}

// WithLimiter replaces the limiter selected by RateLimit.Backend.
func (b *Builder) WithLimiter(l rate.Limiter) *Builder {
	b.limiter = l
	return b
}

// WithNotifier sets the email collaborator. The default logs tokens at debug
// level and is only suitable for development.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the Engine. A Builder can only
// be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.refresh == nil {
		return nil, errors.New("refresh token store required")
	}
	if b.backupCodes == nil {
		return nil, errors.New("backup code store required")
	}
	if b.verification == nil {
		return nil, errors.New("verification token store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = ClockFunc(time.Now)
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger.Named("goaccount"),
		clock:        clock,
		accounts:     b.accounts,
		refresh:      b.refresh,
		backupCodes:  b.backupCodes,
		verification: b.verification,
		notifier:     b.notifier,
		metrics:      NewMetrics(cfg.Metrics),
	}

	// -------- PASSWORD HASHER --------
	engine.hasher = b.hasher
	if engine.hasher == nil {
		a2, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		engine.hasher = password.NewPool(a2, cfg.Password.PoolSize)
	}
	dummy, err := engine.hasher.Hash(context.Background(), dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	engine.dummyHash = dummy

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           clock.Now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	te, err := totp.New(totp.Config{
		Issuer:    cfg.TwoFactor.Issuer,
		Digits:    cfg.TwoFactor.Digits,
		Period:    cfg.TwoFactor.Period,
		Algorithm: "SHA1",
		Skew:      cfg.TwoFactor.Skew,
	})
	if err != nil {
		return nil, err
	}
	engine.totp = te

	// -------- RATE LIMIT --------
	engine.limiter = b.limiter
	if engine.limiter == nil && cfg.RateLimit.Enabled {
		limiter, err := b.buildLimiter(cfg.RateLimit, clock)
		if err != nil {
			return nil, err
		}
		engine.limiter = limiter
	}

	// -------- COLLABORATORS --------
	if engine.notifier == nil {
		engine.notifier = newLogNotifier(engine.logger)
	}
	overflow := internalaudit.Block
	if cfg.Audit.DropIfFull {
		overflow = internalaudit.Drop
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:  cfg.Audit.Enabled,
		Queue:    cfg.Audit.BufferSize,
		Overflow: overflow,
	}, b.auditSink)

	b.built = true

	return engine, nil
}

func (b *Builder) buildLimiter(cfg RateLimitConfig, clock Clock) (rate.Limiter, error) {
	rc := rate.Config{
		Capacity:       cfg.Capacity,
		RefillTokens:   cfg.RefillTokens,
		RefillInterval: cfg.RefillInterval,
		IdleTTL:        cfg.IdleTTL,
		RedisPrefix:    cfg.RedisPrefix,
	}

	switch cfg.Backend {
	case "redis":
		if b.redis == nil {
			return nil, errors.New("RateLimit Backend redis requires redis client")
		}
		return rate.NewRedisWindow(b.redis, rc, clock.Now)
	default:
		return rate.NewTokenBucket(rc, clock.Now)
	}
}
