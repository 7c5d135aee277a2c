package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"net"
	gosmtp "net/smtp"
	"net/url"
	"strconv"
	"text/template"
	"time"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	goAccount "github.com/MrEthical07/goAccount"
)

// Config describes the SMTP relay and the links placed in messages.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	Connections        int
	SendTimeout        time.Duration
	InsecureSkipVerify bool

	// VerifyURL and ResetURL receive the token as the "token" query parameter.
	VerifyURL string
	ResetURL  string
}

func (c Config) validate() error {
	var errs []error
	if c.Host == "" || c.Port <= 0 {
		errs = append(errs, errors.New("smtp host and port are required"))
	}
	if c.From == "" {
		errs = append(errs, errors.New("smtp from address is required"))
	}
	for name, raw := range map[string]string{"verify": c.VerifyURL, "reset": c.ResetURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			errs = append(errs, fmt.Errorf("smtp %s url: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

type sender interface {
	Send(e *email.Email, timeout time.Duration) error
}

// Mailer implements goAccount.Notifier.
type Mailer struct {
	cfg    Config
	pool   sender
	close  func()
	logger *zap.Logger
}

var _ goAccount.Notifier = (*Mailer)(nil)

// New opens a connection pool to the relay. Connections are dialled lazily
// on first send.
func New(cfg Config, logger *zap.Logger) (*Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Connections <= 0 {
		cfg.Connections = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	var auth gosmtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		auth = gosmtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	pool, err := email.NewPool(
		net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		cfg.Connections,
		auth,
		&tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.InsecureSkipVerify},
	)
	if err != nil {
		return nil, fmt.Errorf("smtp pool: %w", err)
	}
	return newMailer(cfg, pool, pool.Close, logger), nil
}

func newMailer(cfg Config, pool sender, closeFn func(), logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, pool: pool, close: closeFn, logger: logger.Named("smtp")}
}

// Close releases pooled connections.
func (m *Mailer) Close() {
	if m.close != nil {
		m.close()
	}
}

func (m *Mailer) SendEmailVerification(ctx context.Context, to, token string) error {
	return m.send(ctx, to, verificationMessage, m.cfg.VerifyURL, token)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	return m.send(ctx, to, resetMessage, m.cfg.ResetURL, token)
}

func (m *Mailer) send(ctx context.Context, to string, msg message, base, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	link, err := withToken(base, token)
	if err != nil {
		return err
	}
	text, html, err := msg.render(link)
	if err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = msg.subject
	e.Text = text
	e.HTML = html

	timeout := m.cfg.SendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := m.pool.Send(e, timeout); err != nil {
		m.logger.Warn("send failed", zap.String("subject", msg.subject), zap.Error(err))
		return fmt.Errorf("send %q: %w", msg.subject, err)
	}
	return nil
}

func withToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type message struct {
	subject string
	text    *template.Template
	html    *htmltemplate.Template
}

func (m message) render(link string) (text, html []byte, err error) {
	data := struct{ Link string }{Link: link}

	var tb, hb bytes.Buffer
	if err := m.text.Execute(&tb, data); err != nil {
		return nil, nil, err
	}
	if err := m.html.Execute(&hb, data); err != nil {
		return nil, nil, err
	}
	return tb.Bytes(), hb.Bytes(), nil
}

var (
	verificationMessage = message{
		subject: "Confirm your email address",
		text: template.Must(template.New("verify.txt").Parse(
			"Confirm your email address by opening the link below.\n\n{{.Link}}\n\nIf you did not create an account, ignore this message.\n")),
		html: htmltemplate.Must(htmltemplate.New("verify.html").Parse(
			`<p>Confirm your email address by opening the link below.</p><p><a href="{{.Link}}">{{.Link}}</a></p><p>If you did not create an account, ignore this message.</p>`)),
	}
	resetMessage = message{
		subject: "Reset your password",
		text: template.Must(template.New("reset.txt").Parse(
			"A password reset was requested for your account.\n\n{{.Link}}\n\nIf this was not you, ignore this message.\n")),
		html: htmltemplate.Must(htmltemplate.New("reset.html").Parse(
			`<p>A password reset was requested for your account.</p><p><a href="{{.Link}}">{{.Link}}</a></p><p>If this was not you, ignore this message.</p>`)),
	}
)
