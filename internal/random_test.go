package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewOpaqueTokenIsUniqueAndURLSafe(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		tok, err := NewOpaqueToken()
		if err != nil {
			t.Fatalf("NewOpaqueToken: %v", err)
		}
		if len(tok) != 43 {
			t.Fatalf("expected 43 chars, got %d", len(tok))
		}
		if strings.ContainsAny(tok, "+/=") {
			t.Fatalf("token not url-safe: %q", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatal("duplicate token")
		}
		seen[tok] = struct{}{}
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("hash not deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("distinct inputs collided")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatal("expected hex sha256")
	}
}

func TestBackupCodeFormatting(t *testing.T) {
	code, err := NewBackupCode(BackupCodeLength, nil)
	if err != nil {
		t.Fatalf("NewBackupCode: %v", err)
	}
	for _, r := range code {
		if !strings.ContainsRune(BackupCodeAlphabet, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}

	formatted := FormatBackupCode(code)
	if len(formatted) != 9 || formatted[4] != '-' {
		t.Fatalf("unexpected format %q", formatted)
	}
	if got := CanonicalizeBackupCode(" " + strings.ToLower(formatted) + " "); got != code {
		t.Fatalf("canonical %q != %q", got, code)
	}
}

func TestNewBackupCodeMapsEntropy(t *testing.T) {
	cases := []struct {
		src  []byte
		want string
	}{
		{[]byte{0, 0, 0, 0}, "AAAA"},
		{[]byte{31, 63, 255, 32}, "999A"},
		{[]byte{8, 23, 24, 25}, "JZ23"},
	}
	for _, tc := range cases {
		code, err := NewBackupCode(len(tc.src), bytes.NewReader(tc.src))
		if err != nil {
			t.Fatalf("NewBackupCode: %v", err)
		}
		if code != tc.want {
			t.Fatalf("NewBackupCode(%v) = %q, want %q", tc.src, code, tc.want)
		}
	}

	if _, err := NewBackupCode(0, nil); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := NewBackupCode(4, bytes.NewReader([]byte{1, 2})); err == nil {
		t.Fatal("expected error for short entropy source")
	}
}

// FuzzCanonicalizeBackupCode checks canonicalization never leaves separators
// behind and is stable on its own output for ASCII input.
func FuzzCanonicalizeBackupCode(f *testing.F) {
	f.Add("ABCD-EFGH")
	f.Add(" abcd efgh ")
	f.Add("")
	f.Add("----")

	f.Fuzz(func(t *testing.T, input string) {
		once := CanonicalizeBackupCode(input)
		if isPrintableASCII(input) && CanonicalizeBackupCode(once) != once {
			t.Fatalf("not idempotent for %q", input)
		}
		if strings.ContainsAny(once, "- ") {
			t.Fatalf("separator left in %q", once)
		}
	})
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
