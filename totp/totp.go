package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

var (
	// ErrInvalidSecret is returned when a secret is empty or not base32.
	ErrInvalidSecret = errors.New("invalid totp secret")
	// ErrInvalidConfig is returned by New for unusable parameters.
	ErrInvalidConfig = errors.New("invalid totp configuration")
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config holds TOTP parameters.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	// Skew is the number of adjacent time steps accepted on each side.
	Skew int
	// QRSize is the PNG edge length in pixels.
	QRSize int
}

// DefaultConfig returns the parameters every mainstream authenticator app
// supports: SHA1, 6 digits, 30 second period, one step of skew.
func DefaultConfig() Config {
	return Config{
		Issuer:    "goAccount",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
		QRSize:    256,
	}
}

// Engine generates and verifies TOTP codes.
type Engine struct {
	config Config
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if _, err := hmacFunc(cfg.Algorithm); err != nil {
		return nil, err
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, fmt.Errorf("%w: digits must be between 6 and 8", ErrInvalidConfig)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: period must be > 0", ErrInvalidConfig)
	}
	if cfg.Skew < 0 || cfg.Skew > 3 {
		return nil, fmt.Errorf("%w: skew must be between 0 and 3", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidConfig)
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}
	return &Engine{config: cfg}, nil
}

// GenerateSecret returns 160 random bits as unpadded base32.
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI for label (usually the account email).
func (e *Engine) ProvisionURI(label, secret string) string {
	issuer := e.config.Issuer
	path := url.PathEscape(issuer + ":" + label)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(e.config.Period))
	v.Set("digits", strconv.Itoa(e.config.Digits))
	v.Set("algorithm", strings.ToUpper(e.config.Algorithm))

	return "otpauth://totp/" + path + "?" + v.Encode()
}

// Verify reports whether code matches secret at now within the skew window.
// Malformed codes and undecodable secrets never verify.
func (e *Engine) Verify(secret, code string, now time.Time) bool {
	raw, err := decodeSecret(secret)
	if err != nil {
		return false
	}
	ok, _, err := e.verifyRaw(raw, code, now)
	return err == nil && ok
}

// Code returns the code for secret at now.
func (e *Engine) Code(secret string, now time.Time) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotpCode(raw, now.Unix()/int64(e.config.Period), e.config.Digits, e.config.Algorithm)
}

func (e *Engine) verifyRaw(secret []byte, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != e.config.Digits || !isNumeric(trimmed) {
		return false, 0, nil
	}
	if len(secret) == 0 {
		return false, 0, ErrInvalidSecret
	}

	baseCounter := now.Unix() / int64(e.config.Period)
	for step := -e.config.Skew; step <= e.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, e.config.Digits, e.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}

	return false, 0, nil
}

func decodeSecret(secret string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	cleaned = strings.TrimRight(cleaned, "=")
	if cleaned == "" {
		return nil, ErrInvalidSecret
	}
	raw, err := secretEncoding.DecodeString(cleaned)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidConfig, algorithm)
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
