package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const (
	// BackupCodeAlphabet omits 0/O and 1/I so codes survive being read
	// aloud. Its length is 32, so masking a random byte to 5 bits picks a
	// symbol without modulo bias.
	BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	BackupCodeLength   = 8

	opaqueTokenBytes = 32
)

// NewOpaqueToken returns 32 random bytes, base64url without padding.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the storage key for an opaque token: hex SHA-256. Stores
// never see the plaintext value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewBackupCode reads length bytes from src (crypto/rand when nil) and maps
// each onto BackupCodeAlphabet.
func NewBackupCode(length int, src io.Reader) (string, error) {
	if length <= 0 {
		return "", errors.New("backup code length must be positive")
	}
	if src == nil {
		src = rand.Reader
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("read backup code entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = BackupCodeAlphabet[b&31]
	}
	return string(buf), nil
}

// FormatBackupCode splits a code of eight or more characters in half with
// a dash: ABCD-EFGH.
func FormatBackupCode(code string) string {
	if len(code) < 8 {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode upper-cases and drops dashes and whitespace, so
// "abcd efgh" and "ABCD-EFGH" compare equal.
func CanonicalizeBackupCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
}
