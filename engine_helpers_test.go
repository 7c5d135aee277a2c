package goAccount

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/store/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const (
	testEmail    = "a@x.com"
	testPassword = "pw123456"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureNotifier struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{
		verification: make(map[string]string),
		reset:        make(map[string]string),
	}
}

func (n *captureNotifier) SendEmailVerification(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification[email] = token
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[email] = token
	return nil
}

func (n *captureNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[email]
}

func (n *captureNotifier) verificationToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verification[email]
}

// testConfig keeps argon2 cheap so scenario tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine   *Engine
	clock    *fakeClock
	stores   *memory.Stores
	notifier *captureNotifier
}

func newTestEnv(t *testing.T, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, cfg, zaptest.NewLogger(t), opts...)
}

func newTestEnvWithLogger(t *testing.T, cfg Config, logger *zap.Logger, opts ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:    newFakeClock(),
		stores:   memory.New(),
		notifier: newCaptureNotifier(),
	}

	b := New().
		WithConfig(cfg).
		WithLogger(logger).
		WithClock(env.clock).
		WithAccountStore(env.stores.Accounts).
		WithRefreshTokenStore(env.stores.RefreshTokens).
		WithBackupCodeStore(env.stores.BackupCodes).
		WithVerificationTokenStore(env.stores.VerificationTokens).
		WithNotifier(env.notifier)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

func (env *testEnv) register(t *testing.T) string {
	t.Helper()
	acct, err := env.engine.Register(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return acct.ID
}

func (env *testEnv) login(t *testing.T) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return res
}

func (env *testEnv) currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := env.engine.totp.Code(secret, env.clock.Now())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	return code
}

// enableTwoFactor runs setup and enable, returning the secret and backup codes.
func (env *testEnv) enableTwoFactor(t *testing.T, accountID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.engine.SetupTwoFactor(ctx, accountID)
	if err != nil {
		t.Fatalf("SetupTwoFactor: %v", err)
	}
	codes, err := env.engine.EnableTwoFactor(ctx, accountID, env.currentCode(t, setup.Secret))
	if err != nil {
		t.Fatalf("EnableTwoFactor: %v", err)
	}
	return setup.Secret, codes
}
