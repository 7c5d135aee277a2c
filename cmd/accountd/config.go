package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/model"
	"github.com/MrEthical07/goAccount/notify/smtp"
)

type appConfig struct {
	App       appSettings       `mapstructure:"app"`
	Store     storeSettings     `mapstructure:"store"`
	Postgres  postgresSettings  `mapstructure:"postgres"`
	Redis     redisSettings     `mapstructure:"redis"`
	JWT       jwtSettings       `mapstructure:"jwt"`
	Lockout   lockoutSettings   `mapstructure:"lockout"`
	TwoFactor twoFactorSettings `mapstructure:"two_factor"`
	RateLimit rateLimitSettings `mapstructure:"rate_limit"`
	Argon2    argon2Settings    `mapstructure:"argon2"`
	Password  passwordSettings  `mapstructure:"password"`
	Tokens    tokenSettings     `mapstructure:"tokens"`
	Admin     adminSettings     `mapstructure:"admin"`
	Audit     auditSettings     `mapstructure:"audit"`
	Log       logSettings       `mapstructure:"log"`
	SMTP      smtpSettings      `mapstructure:"smtp"`
}

type appSettings struct {
	Env             string        `mapstructure:"env"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PurgeInterval   time.Duration `mapstructure:"purge_interval"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// storeSettings selects the persistence backend: "memory" or "postgres".
type storeSettings struct {
	Driver string `mapstructure:"driver"`
}

type postgresSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ApplySchema     bool          `mapstructure:"apply_schema"`
}

type redisSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
}

type jwtSettings struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type lockoutSettings struct {
	Threshold int           `mapstructure:"threshold"`
	Duration  time.Duration `mapstructure:"duration"`
}

type twoFactorSettings struct {
	Issuer       string        `mapstructure:"issuer"`
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type rateLimitSettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	Backend        string        `mapstructure:"backend"`
	Capacity       int           `mapstructure:"capacity"`
	RefillTokens   int           `mapstructure:"refill_tokens"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

type argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type passwordSettings struct {
	MinLength   int `mapstructure:"min_length"`
	MaxLength   int `mapstructure:"max_length"`
	MinStrength int `mapstructure:"min_strength"`
}

type tokenSettings struct {
	EmailVerificationTTL time.Duration `mapstructure:"email_verification_ttl"`
	PasswordResetTTL     time.Duration `mapstructure:"password_reset_ttl"`
	RequireVerifiedEmail bool          `mapstructure:"require_verified_email"`
}

// adminSettings seeds the first administrator when no admin exists.
type adminSettings struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type auditSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// logSettings adds a rotating file next to stderr when File is set.
type logSettings struct {
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type smtpSettings struct {
	Enabled            bool          `mapstructure:"enabled"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	From               string        `mapstructure:"from"`
	Connections        int           `mapstructure:"connections"`
	SendTimeout        time.Duration `mapstructure:"send_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	VerifyURL          string        `mapstructure:"verify_url"`
	ResetURL           string        `mapstructure:"reset_url"`
}

var configKeys = []string{
	"app.env",
	"app.host",
	"app.port",
	"app.shutdown_timeout",
	"app.purge_interval",
	"app.allow_origins",
	"app.trusted_proxies",
	"store.driver",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.apply_schema",
	"redis.enabled",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.prefix",
	"jwt.secret",
	"jwt.issuer",
	"jwt.audience",
	"jwt.access_token_ttl",
	"jwt.refresh_token_ttl",
	"lockout.threshold",
	"lockout.duration",
	"two_factor.issuer",
	"two_factor.challenge_ttl",
	"two_factor.max_attempts",
	"rate_limit.enabled",
	"rate_limit.backend",
	"rate_limit.capacity",
	"rate_limit.refill_tokens",
	"rate_limit.refill_interval",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"password.min_length",
	"password.max_length",
	"password.min_strength",
	"tokens.email_verification_ttl",
	"tokens.password_reset_ttl",
	"tokens.require_verified_email",
	"admin.email",
	"admin.password",
	"audit.enabled",
	"log.file",
	"log.max_size",
	"log.max_age",
	"log.max_backups",
	"log.compress",
	"smtp.enabled",
	"smtp.host",
	"smtp.port",
	"smtp.username",
	"smtp.password",
	"smtp.from",
	"smtp.connections",
	"smtp.send_timeout",
	"smtp.insecure_skip_verify",
	"smtp.verify_url",
	"smtp.reset_url",
}

// loadConfig reads defaults, then the optional YAML file, then ACCOUNTD_*
// environment variables.
func loadConfig(file string) (*appConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ACCOUNTD")

	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	for _, key := range configKeys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "ACCOUNTD_"+envKey); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.Store.Driver {
	case "memory", "postgres":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.RateLimit.Backend == "redis" && !cfg.Redis.Enabled {
		return nil, fmt.Errorf("rate_limit.backend redis requires redis.enabled")
	}
	if cfg.SMTP.Enabled && (cfg.SMTP.Host == "" || cfg.SMTP.From == "") {
		return nil, fmt.Errorf("smtp.enabled requires smtp.host and smtp.from")
	}
	for _, proxy := range cfg.App.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return nil, fmt.Errorf("app.trusted_proxies: %q is neither an IP nor a CIDR", proxy)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_timeout", "10s")
	v.SetDefault("app.purge_interval", "10m")
	v.SetDefault("app.allow_origins", []string{})
	v.SetDefault("app.trusted_proxies", []string{})

	v.SetDefault("store.driver", "memory")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "accountd")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "accountd")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.apply_schema", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.prefix", "acct:")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "goaccount")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("lockout.threshold", 5)
	v.SetDefault("lockout.duration", "15m")

	v.SetDefault("two_factor.issuer", "goAccount")
	v.SetDefault("two_factor.challenge_ttl", "5m")
	v.SetDefault("two_factor.max_attempts", 5)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.capacity", 100)
	v.SetDefault("rate_limit.refill_tokens", 100)
	v.SetDefault("rate_limit.refill_interval", "1m")

	v.SetDefault("argon2.memory", 65536)
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 2)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.max_length", 100)
	v.SetDefault("password.min_strength", 0)

	v.SetDefault("tokens.email_verification_ttl", "24h")
	v.SetDefault("tokens.password_reset_ttl", "1h")
	v.SetDefault("tokens.require_verified_email", false)

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("audit.enabled", true)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.compress", true)

	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.connections", 4)
	v.SetDefault("smtp.send_timeout", "10s")
	v.SetDefault("smtp.insecure_skip_verify", false)
	v.SetDefault("smtp.verify_url", "")
	v.SetDefault("smtp.reset_url", "")
}

// engineConfig maps the service settings onto the library configuration.
func (c *appConfig) engineConfig() goAccount.Config {
	cfg := goAccount.DefaultConfig()

	cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	cfg.JWT.AccessTTL = c.JWT.AccessTokenTTL
	cfg.Refresh.TTL = c.JWT.RefreshTokenTTL

	cfg.Lockout.Threshold = c.Lockout.Threshold
	cfg.Lockout.Duration = c.Lockout.Duration

	cfg.TwoFactor.Issuer = c.TwoFactor.Issuer
	cfg.TwoFactor.ChallengeTTL = c.TwoFactor.ChallengeTTL
	cfg.TwoFactor.MaxChallengeAttempts = c.TwoFactor.MaxAttempts

	cfg.RateLimit.Enabled = c.RateLimit.Enabled
	cfg.RateLimit.Backend = c.RateLimit.Backend
	cfg.RateLimit.Capacity = c.RateLimit.Capacity
	cfg.RateLimit.RefillTokens = c.RateLimit.RefillTokens
	cfg.RateLimit.RefillInterval = c.RateLimit.RefillInterval
	cfg.RateLimit.RedisPrefix = c.Redis.Prefix + "rl:"

	cfg.Password.Memory = c.Argon2.Memory
	cfg.Password.Time = c.Argon2.Iterations
	cfg.Password.Parallelism = c.Argon2.Parallelism
	cfg.Password.SaltLength = c.Argon2.SaltLength
	cfg.Password.KeyLength = c.Argon2.KeyLength
	cfg.Password.MinLength = c.Password.MinLength
	cfg.Password.MaxLength = c.Password.MaxLength
	cfg.Password.MinStrength = c.Password.MinStrength

	cfg.Verification.EmailTTL = c.Tokens.EmailVerificationTTL
	cfg.Verification.ResetTTL = c.Tokens.PasswordResetTTL
	cfg.Verification.RequireVerifiedEmail = c.Tokens.RequireVerifiedEmail

	cfg.Account.DefaultRole = model.RoleUser
	cfg.Audit.Enabled = c.Audit.Enabled

	return cfg
}

func (c *appConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *smtpSettings) mailerConfig() smtp.Config {
	return smtp.Config{
		Host:               c.Host,
		Port:               c.Port,
		Username:           c.Username,
		Password:           c.Password,
		From:               c.From,
		Connections:        c.Connections,
		SendTimeout:        c.SendTimeout,
		InsecureSkipVerify: c.InsecureSkipVerify,
		VerifyURL:          c.VerifyURL,
		ResetURL:           c.ResetURL,
	}
}

func (c *postgresSettings) dsn() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}
