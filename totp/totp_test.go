package totp

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"
)

type rfcVector struct {
	ts   int64
	code string
}

func rfcEngine(t *testing.T, algorithm string) *Engine {
	t.Helper()
	e, err := New(Config{Issuer: "goAccount", Digits: 8, Period: 30, Algorithm: algorithm, Skew: 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func checkVectors(t *testing.T, e *Engine, secret []byte, cases []rfcVector) {
	t.Helper()
	for _, tc := range cases {
		ok, _, err := e.verifyRaw(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("%s vector failed at t=%d, ok=%v err=%v", e.config.Algorithm, tc.ts, ok, err)
		}
	}
}

func TestRFC6238VectorsSHA1(t *testing.T) {
	checkVectors(t, rfcEngine(t, "SHA1"), []byte("12345678901234567890"), []rfcVector{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	})
}

func TestRFC6238VectorsSHA256(t *testing.T) {
	checkVectors(t, rfcEngine(t, "SHA256"), []byte("12345678901234567890123456789012"), []rfcVector{
		{59, "46119246"},
		{1111111109, "68084774"},
		{1111111111, "67062674"},
		{1234567890, "91819424"},
		{2000000000, "90698825"},
		{20000000000, "77737706"},
	})
}

func TestRFC6238VectorsSHA512(t *testing.T) {
	checkVectors(t, rfcEngine(t, "SHA512"), []byte("1234567890123456789012345678901234567890123456789012345678901234"), []rfcVector{
		{59, "90693936"},
		{1111111109, "25091201"},
		{1111111111, "99943326"},
		{1234567890, "93441116"},
		{2000000000, "38618901"},
		{20000000000, "47863826"},
	})
}

func TestGeneratedCodeRoundTrip(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(secret) != 32 || strings.Contains(secret, "=") {
		t.Fatalf("unexpected secret shape %q", secret)
	}

	now := time.Unix(1_700_000_000, 0)
	code, err := e.Code(secret, now)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if !e.Verify(secret, code, now) {
		t.Fatal("expected current code to verify")
	}
	if !e.Verify(strings.ToLower(secret), code, now) {
		t.Fatal("expected lower-case secret to verify")
	}

	unrelated := "000000"
	if unrelated == code {
		unrelated = "111111"
	}
	if e.Verify(secret, unrelated, now) {
		t.Fatal("unrelated code verified")
	}
}

func TestSkewWindow(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	secret, _ := e.GenerateSecret()
	now := time.Unix(1_700_000_010, 0)

	prev, _ := e.Code(secret, now.Add(-30*time.Second))
	next, _ := e.Code(secret, now.Add(30*time.Second))
	stale, _ := e.Code(secret, now.Add(-90*time.Second))

	if !e.Verify(secret, prev, now) || !e.Verify(secret, next, now) {
		t.Fatal("adjacent steps must be accepted")
	}
	current, _ := e.Code(secret, now)
	if stale != current && stale != prev && stale != next && e.Verify(secret, stale, now) {
		t.Fatal("code three steps old must be rejected")
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	e, _ := New(DefaultConfig())
	secret, _ := e.GenerateSecret()
	now := time.Now()

	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		if e.Verify(secret, code, now) {
			t.Fatalf("malformed code %q verified", code)
		}
	}
	if e.Verify("not base32!", "123456", now) {
		t.Fatal("invalid secret verified")
	}
	if e.Verify("", "123456", now) {
		t.Fatal("empty secret verified")
	}
}

func TestProvisioningPayload(t *testing.T) {
	e, _ := New(DefaultConfig())
	secret, _ := e.GenerateSecret()

	p, err := e.ProvisioningPayload("a@x.com", secret)
	if err != nil {
		t.Fatalf("ProvisioningPayload: %v", err)
	}

	u, err := url.Parse(p.URI)
	if err != nil {
		t.Fatalf("parse uri: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected uri %q", p.URI)
	}
	q := u.Query()
	if q.Get("secret") != secret || q.Get("algorithm") != "SHA1" || q.Get("digits") != "6" || q.Get("period") != "30" {
		t.Fatalf("unexpected query %v", q)
	}
	if !strings.Contains(u.Path, "goAccount:a@x.com") {
		t.Fatalf("unexpected label %q", u.Path)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(p.QRCode, prefix) {
		t.Fatalf("unexpected qr payload prefix")
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(p.QRCode, prefix))
	if err != nil {
		t.Fatalf("decode qr: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("qr payload is not a PNG")
	}

	if _, err := e.ProvisioningPayload("a@x.com", "!!"); err == nil {
		t.Fatal("expected invalid secret to be rejected")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	bad := []Config{
		{Issuer: "x", Digits: 4, Period: 30},
		{Issuer: "x", Digits: 6, Period: 0},
		{Issuer: "x", Digits: 6, Period: 30, Algorithm: "MD5"},
		{Issuer: "", Digits: 6, Period: 30},
		{Issuer: "x", Digits: 6, Period: 30, Skew: 9},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
