package smtp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"go.uber.org/zap/zaptest"
)

type captureSender struct {
	sent    []*email.Email
	timeout time.Duration
	err     error
}

func (c *captureSender) Send(e *email.Email, timeout time.Duration) error {
	c.sent = append(c.sent, e)
	c.timeout = timeout
	return c.err
}

func testConfig() Config {
	return Config{
		Host:        "smtp.example.com",
		Port:        587,
		From:        "accounts@example.com",
		SendTimeout: 5 * time.Second,
		VerifyURL:   "https://app.example.com/verify?lang=en",
		ResetURL:    "https://app.example.com/reset",
	}
}

func TestSendEmailVerificationBuildsMessage(t *testing.T) {
	cs := &captureSender{}
	m := newMailer(testConfig(), cs, nil, zaptest.NewLogger(t))

	if err := m.SendEmailVerification(context.Background(), "user@example.com", "tok-123"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(cs.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(cs.sent))
	}
	e := cs.sent[0]
	if e.From != "accounts@example.com" || len(e.To) != 1 || e.To[0] != "user@example.com" {
		t.Fatalf("unexpected envelope: from=%q to=%v", e.From, e.To)
	}
	if e.Subject != "Confirm your email address" {
		t.Fatalf("unexpected subject %q", e.Subject)
	}
	link := "https://app.example.com/verify?lang=en&token=tok-123"
	if !strings.Contains(string(e.Text), link) {
		t.Fatalf("text part missing link:\n%s", e.Text)
	}
	if !strings.Contains(string(e.HTML), "token=tok-123") {
		t.Fatalf("html part missing token:\n%s", e.HTML)
	}
	if cs.timeout != 5*time.Second {
		t.Fatalf("expected configured timeout, got %v", cs.timeout)
	}
}

func TestSendPasswordResetUsesResetURL(t *testing.T) {
	cs := &captureSender{}
	m := newMailer(testConfig(), cs, nil, nil)

	if err := m.SendPasswordReset(context.Background(), "user@example.com", "r1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(string(cs.sent[0].Text), "https://app.example.com/reset?token=r1") {
		t.Fatalf("unexpected body:\n%s", cs.sent[0].Text)
	}
}

func TestSendHonoursContext(t *testing.T) {
	cs := &captureSender{}
	m := newMailer(testConfig(), cs, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.SendPasswordReset(ctx, "user@example.com", "r1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(cs.sent) != 0 {
		t.Fatal("nothing should be sent after cancellation")
	}

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.SendPasswordReset(ctx, "user@example.com", "r1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if cs.timeout > time.Second {
		t.Fatalf("timeout should be capped by the deadline, got %v", cs.timeout)
	}
}

func TestSendWrapsTransportError(t *testing.T) {
	boom := errors.New("relay down")
	m := newMailer(testConfig(), &captureSender{err: boom}, nil, nil)

	if err := m.SendEmailVerification(context.Background(), "user@example.com", "t"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.From = ""
	cfg.ResetURL = "not a url"
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected validation error")
	}

	m, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Close()
}
