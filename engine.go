package goAccount

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/goAccount/internal"
	internalaudit "github.com/MrEthical07/goAccount/internal/audit"
	"github.com/MrEthical07/goAccount/internal/keylock"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/model"
	"github.com/MrEthical07/goAccount/password"
	"github.com/MrEthical07/goAccount/totp"
	"go.uber.org/zap"
)

// Engine is the authentication and account lifecycle orchestrator. Build one
// with [New]; it is safe for concurrent use.
type Engine struct {
	config Config
	logger *zap.Logger
	clock  Clock

	accounts     AccountStore
	refresh      RefreshTokenStore
	backupCodes  BackupCodeStore
	verification VerificationTokenStore

	hasher     Hasher
	jwtManager *jwt.Manager
	totp       *totp.Engine
	limiter    rate.Limiter
	notifier   Notifier

	// locks serializes state transitions per account ID.
	locks keylock.Map

	metrics *Metrics
	audit   *internalaudit.Dispatcher

	// dummyHash is verified against when the email is unknown so both
	// rejection paths cost one hash verification.
	dummyHash string
}

// Close flushes the audit dispatcher. The Engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	_ = e.logger.Sync()
}

// AuditDropped is the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AccessTokens exposes the access-token manager so transport layers can
// verify bearer tokens without a store lookup.
func (e *Engine) AccessTokens() *jwt.Manager {
	return e.jwtManager
}

// Admit consumes one unit of clientKey's request budget. It returns
// ErrRateLimitExceeded when the budget is exhausted. Limiter backend failures
// are logged and the request is admitted.
func (e *Engine) Admit(ctx context.Context, clientKey string) error {
	_, err := e.AdmitDecision(ctx, clientKey)
	return err
}

// AdmitDecision is Admit plus the limiter decision, for callers that set
// rate-limit response headers.
func (e *Engine) AdmitDecision(ctx context.Context, clientKey string) (rate.Decision, error) {
	if e.limiter == nil {
		return rate.Decision{Allowed: true}, nil
	}

	decision, err := e.limiter.Allow(ctx, clientKey)
	if err != nil {
		e.metricInc(MetricRateLimitBackendError)
		e.logger.Error("rate limiter unavailable, admitting request",
			zap.String("client", clientKey),
			zap.Error(err),
		)
		return rate.Decision{Allowed: true}, nil
	}
	if !decision.Allowed {
		e.metricInc(MetricRateLimitHit)
		e.logger.Warn("rate limit exceeded",
			zap.String("client", clientKey),
			zap.Int("limit", decision.Limit),
			zap.Duration("retry_after", decision.RetryAfter(e.now())),
		)
		e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", ErrRateLimitExceeded, func() map[string]string {
			return map[string]string{"client": clientKey}
		})
		return decision, ErrRateLimitExceeded
	}
	return decision, nil
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.accounts == nil || e.refresh == nil || e.hasher == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	return nil
}

// loadAccount maps a missing row to notFound and anything else to ErrInternal.
func (e *Engine) loadAccount(ctx context.Context, id string, notFound error) (*model.Account, error) {
	if id == "" {
		return nil, notFound
	}
	acct, err := e.accounts.FindByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, internalError("find account", err)
	}
	return acct, nil
}

func (e *Engine) saveAccount(ctx context.Context, acct *model.Account) error {
	acct.UpdatedAt = e.now()
	err := e.accounts.Save(ctx, acct)
	if errors.Is(err, model.ErrDuplicate) {
		return ErrDuplicateResource
	}
	if err != nil {
		return internalError("save account", err)
	}
	return nil
}

// issueSession mints an access token and rotates the account's refresh token.
func (e *Engine) issueSession(ctx context.Context, acct *model.Account) (*Session, error) {
	refresh, err := e.createRefreshToken(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	return e.newSession(acct, refresh)
}

func (e *Engine) newSession(acct *model.Account, refresh *model.RefreshToken) (*Session, error) {
	access, err := e.jwtManager.CreateAccess(jwt.Subject{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      string(acct.Role),
	})
	if err != nil {
		return nil, internalError("sign access token", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    e.jwtManager.TTL(),
		Account:      acct,
	}, nil
}

func (e *Engine) hashPassword(ctx context.Context, plaintext string) (string, error) {
	digest, err := e.hasher.Hash(ctx, plaintext)
	if err != nil {
		if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
			return "", ErrPasswordPolicy
		}
		return "", internalError("hash password", err)
	}
	return digest, nil
}

// checkPasswordPolicy enforces length bounds and, when configured, a minimum
// zxcvbn score computed with the email as a user input.
func (e *Engine) checkPasswordPolicy(plaintext, email string) error {
	n := utf8.RuneCountInString(plaintext)
	if n < e.config.Password.MinLength || n > e.config.Password.MaxLength {
		return ErrPasswordPolicy
	}
	if e.config.Password.MinStrength > 0 {
		if password.Strength(plaintext, email) < e.config.Password.MinStrength {
			return ErrPasswordPolicy
		}
	}
	return nil
}

// normalizeEmail trims surrounding space and validates the address. Case is
// preserved; emails compare exactly as stored.
func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

var emailMaskPattern = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// maskEmail keeps the first three characters of the local part.
func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	if !emailMaskPattern.MatchString(email) {
		return "***"
	}
	return emailMaskPattern.ReplaceAllString(email, "${1}***${2}")
}

func newTokenValue() (plaintext, hash string, err error) {
	plaintext, err = internal.NewOpaqueToken()
	if err != nil {
		return "", "", internalError("generate token", err)
	}
	return plaintext, internal.HashToken(plaintext), nil
}
