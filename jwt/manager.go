package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	ErrUnknownKey      = errors.New("jwt: unknown or missing key id")
	ErrSubjectMissing  = errors.New("jwt: token subject missing")
	ErrIssuedInFuture  = errors.New("jwt: token issued too far in the future")
	ErrCannotSign      = errors.New("jwt: manager has no signing key")
	errEmptySubjectArg = errors.New("jwt: access token subject is required")
)

// Config configures access-token minting and verification.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration

	// KeyID is written into the kid header of minted tokens. VerifyKeys,
	// when set, is the complete set of keys accepted by kid.
	KeyID      string
	VerifyKeys map[string][]byte

	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Manager mints and verifies stateless access tokens.
type Manager struct {
	ttl    time.Duration
	kid    string
	now    func() time.Time
	method jwt.SigningMethod
	sign   any
	keys   keyring
	parser *jwt.Parser

	issuer       string
	audience     string
	maxFutureIAT time.Duration
}

// Subject is the identity encoded into an access token.
type Subject struct {
	AccountID string
	Email     string
	Role      string
}

// AccessClaims is the JWT payload. RegisteredClaims.Subject holds the account ID.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// keyring resolves the verification key for a token header. When byKid is
// populated the kid header is mandatory; otherwise fallback is used.
type keyring struct {
	byKid    map[string]any
	fallback any
}

func (k keyring) lookup(t *jwt.Token) (any, error) {
	if len(k.byKid) == 0 {
		return k.fallback, nil
	}
	kid, _ := t.Header["kid"].(string)
	key, ok := k.byKid[kid]
	if !ok {
		return nil, ErrUnknownKey
	}
	return key, nil
}

// NewManager validates cfg and resolves key material once so that parsing
// never decodes keys on the hot path.
func NewManager(cfg Config) (*Manager, error) {
	switch {
	case cfg.AccessTTL <= 0:
		return nil, errors.New("jwt: access ttl must be positive")
	case cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute:
		return nil, errors.New("jwt: leeway must be within [0, 2m]")
	case cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour:
		return nil, errors.New("jwt: max future iat must be within [0, 24h]")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		ttl:          cfg.AccessTTL,
		kid:          strings.TrimSpace(cfg.KeyID),
		now:          cfg.Now,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		maxFutureIAT: cfg.MaxFutureIAT,
	}

	var (
		decode        func([]byte) (any, error)
		defaultVerify any
	)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("jwt: hs256 requires a private key of at least 32 bytes")
		}
		m.method = jwt.SigningMethodHS256
		m.sign = cfg.PrivateKey
		defaultVerify = cfg.PrivateKey
		decode = func(b []byte) (any, error) { return b, nil }
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		decode = func(b []byte) (any, error) { return parseEdPublicKey(b) }
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.sign = priv
			defaultVerify = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			defaultVerify = pub
		}
		if defaultVerify == nil && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("jwt: ed25519 requires a public key or verify keys")
		}
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}

	switch {
	case len(cfg.VerifyKeys) > 0:
		m.keys.byKid = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("jwt: verify keys contain an empty kid")
			}
			key, err := decode(raw)
			if err != nil {
				return nil, fmt.Errorf("jwt: verify key %q: %w", kid, err)
			}
			m.keys.byKid[kid] = key
		}
		if m.kid != "" {
			if _, ok := m.keys.byKid[m.kid]; !ok {
				return nil, errors.New("jwt: KeyID is not present in VerifyKeys")
			}
		}
	case m.kid != "":
		m.keys.byKid = map[string]any{m.kid: defaultVerify}
	default:
		m.keys.fallback = defaultVerify
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.RequireIAT {
		opts = append(opts, jwt.WithIssuedAt())
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)

	return m, nil
}

// TTL is the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateAccess signs a token for sub valid for TTL.
func (m *Manager) CreateAccess(sub Subject) (string, error) {
	if sub.AccountID == "" {
		return "", errEmptySubjectArg
	}
	if m.sign == nil {
		return "", ErrCannotSign
	}

	now := m.now()
	claims := AccessClaims{
		Email: sub.Email,
		Role:  sub.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.AccountID,
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.kid != "" {
		token.Header["kid"] = m.kid
	}
	return token.SignedString(m.sign)
}

// ParseAccess verifies signature, expiry, issuer and audience without any
// store lookup.
func (m *Manager) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := m.parser.ParseWithClaims(raw, claims, m.keys.lookup)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrSubjectMissing
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.now().Add(m.maxFutureIAT)) {
		return nil, ErrIssuedInFuture
	}
	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 private key type")
	}
	return priv, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 public key type")
	}
	return pub, nil
}
