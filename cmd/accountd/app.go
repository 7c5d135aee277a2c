package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/httpapi"
	promexport "github.com/MrEthical07/goAccount/metrics/export/prometheus"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/notify/smtp"
	"github.com/MrEthical07/goAccount/store/memory"
	"github.com/MrEthical07/goAccount/store/postgres"
	redisstore "github.com/MrEthical07/goAccount/store/redis"
)

type app struct {
	cfg    *appConfig
	logger *zap.Logger
	engine *goAccount.Engine
	server *http.Server
	pool   *pgxpool.Pool
	redis  *redis.Client
	mailer *smtp.Mailer
}

func newApp(ctx context.Context, cfg *appConfig, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	health := map[string]httpapi.HealthCheck{}
	builder := goAccount.New().
		WithConfig(cfg.engineConfig()).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goAccount.NewZapSink(logger.Named("audit")))
	}

	switch cfg.Store.Driver {
	case "postgres":
		pool, err := newPostgresPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		if cfg.Postgres.ApplySchema {
			if err := postgres.Schema(ctx, pool); err != nil {
				return nil, err
			}
		}
		stores := postgres.New(pool)
		builder = builder.
			WithAccountStore(stores.Accounts).
			WithRefreshTokenStore(stores.RefreshTokens).
			WithBackupCodeStore(stores.BackupCodes).
			WithVerificationTokenStore(stores.VerificationTokens)
		health["postgres"] = pool.Ping
	default:
		stores := memory.New()
		builder = builder.
			WithAccountStore(stores.Accounts).
			WithRefreshTokenStore(stores.RefreshTokens).
			WithBackupCodeStore(stores.BackupCodes).
			WithVerificationTokenStore(stores.VerificationTokens)
		logger.Warn("using in-memory stores; data is lost on restart")
	}

	if cfg.Redis.Enabled {
		client, err := newRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		a.redis = client
		builder = builder.
			WithRedis(client).
			WithVerificationTokenStore(redisstore.NewVerificationTokens(client, cfg.Redis.Prefix+"vt:", nil))
		health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	if cfg.SMTP.Enabled {
		mailer, err := smtp.New(cfg.SMTP.mailerConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("smtp mailer: %w", err)
		}
		a.mailer = mailer
		builder = builder.WithNotifier(mailer)
	}

	engine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine

	if cfg.Admin.Email != "" {
		if _, err := engine.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			return nil, fmt.Errorf("ensure admin: %w", err)
		}
	}

	reg, err := promexport.NewRegistry(promexport.NewCollector(engine))
	if err != nil {
		return nil, fmt.Errorf("metrics registry: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	router := httpapi.Router(engine, httpapi.Options{
		Logger:         logger,
		Metrics:        promexport.Handler(reg),
		Health:         health,
		HTTPMetrics:    httpMetrics,
		AllowOrigins:   cfg.App.AllowOrigins,
		TrustedProxies: cfg.App.TrustedProxies,
	})

	a.server = &http.Server{
		Addr:              cfg.addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (a *app) run(ctx context.Context) error {
	defer a.close()

	go a.purgeLoop(ctx)

	a.logger.Info("starting accountd",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", a.server.Addr),
		zap.String("store", a.cfg.Store.Driver),
		zap.Bool("redis", a.cfg.Redis.Enabled),
		zap.Bool("smtp", a.cfg.SMTP.Enabled),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("accountd stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// purgeLoop removes expired verification, reset and challenge tokens.
func (a *app) purgeLoop(ctx context.Context) {
	if a.cfg.App.PurgeInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.App.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.engine.PurgeExpiredVerificationTokens(ctx)
			if err != nil {
				a.logger.Warn("purge expired tokens failed", zap.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired tokens", zap.Int("count", n))
			}
		}
	}
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.mailer != nil {
		a.mailer.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func newPostgresPool(ctx context.Context, cfg postgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	log.Info("connected to postgres",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return pool, nil
}

func newRedisClient(ctx context.Context, cfg redisSettings, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("connected to redis",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("db", cfg.DB),
	)
	return client, nil
}
