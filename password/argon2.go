package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Cost floors. Digests below them are rejected as malformed rather than
// verified, so a tampered row cannot downgrade the work factor.
const (
	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	maxPassBytes = 1024
)

// Config holds argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig is 64 MiB, 3 passes, 2 lanes.
func DefaultConfig() Config {
	return Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password: memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTime:
		return fmt.Errorf("password: time must be >= %d", minTime)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("password: parallelism must be >= %d", minParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password: salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password: key length must be >= %d", minKeyLength)
	}
	return nil
}

// digest is a decoded argon2id PHC string:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// salt and key use unpadded standard base64.
type digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

var b64 = base64.RawStdEncoding

func (d digest) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, d.memory, d.time, d.parallelism,
		b64.EncodeToString(d.salt), b64.EncodeToString(d.key))
}

func (d digest) derive(password string) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, uint32(len(d.key)))
}

func parseDigest(encoded string) (digest, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return digest{}, ErrMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return digest{}, fmt.Errorf("%w: unsupported argon2 version %q", ErrMalformedDigest, fields[2])
	}

	var d digest
	if n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &d.parallelism); err != nil || n != 3 {
		return digest{}, fmt.Errorf("%w: bad parameters %q", ErrMalformedDigest, fields[3])
	}
	if d.memory < minMemoryKB || d.time < minTime || d.parallelism < minParallelism {
		return digest{}, fmt.Errorf("%w: parameters below floor", ErrMalformedDigest)
	}

	var err error
	if d.salt, err = b64.DecodeString(strings.TrimRight(fields[4], "=")); err != nil || len(d.salt) < int(minSaltLength) {
		return digest{}, fmt.Errorf("%w: bad salt", ErrMalformedDigest)
	}
	if d.key, err = b64.DecodeString(strings.TrimRight(fields[5], "=")); err != nil || len(d.key) == 0 {
		return digest{}, fmt.Errorf("%w: bad key", ErrMalformedDigest)
	}
	return d, nil
}

// Argon2 hashes with argon2id and verifies argon2id or legacy bcrypt digests.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg against the minimum cost floor.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns a PHC-encoded argon2id digest. Length policy belongs to the
// caller; Hash only rejects empty and absurdly long input. Bytes are used as
// given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrEmptyPassword
	case len(password) > maxPassBytes:
		return "", ErrPasswordTooLong
	}

	d := digest{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
		key:         make([]byte, a.cfg.KeyLength),
	}
	if _, err := rand.Read(d.salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}
	d.key = d.derive(password)
	return d.String(), nil
}

// Verify compares password against encoded in constant time. Digests with a
// bcrypt prefix are checked with bcrypt.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return verifyBcrypt(password, encoded)
	}
	d, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}
	if len(password) > maxPassBytes {
		return false, nil
	}
	return subtle.ConstantTimeCompare(d.derive(password), d.key) == 1, nil
}

// NeedsUpgrade reports whether encoded is a bcrypt digest or was produced
// with cheaper parameters than the current config.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return true, nil
	}
	d, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}
	weaker := d.memory < a.cfg.Memory ||
		d.time < a.cfg.Time ||
		d.parallelism < a.cfg.Parallelism ||
		uint32(len(d.key)) != a.cfg.KeyLength
	return weaker, nil
}
