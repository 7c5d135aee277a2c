package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/model"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options configures Router.
type Options struct {
	Logger *zap.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health checks run by /healthz, keyed by dependency name.
	Health map[string]HealthCheck
	// AllowOrigins enables CORS for these origins when non-empty.
	AllowOrigins []string
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty trusts none, so rate-limit keys are the peer address.
	TrustedProxies []string
	// HTTPMetrics instruments every request when set.
	HTTPMetrics *middleware.HTTPMetrics
	// Now is the clock used for rate-limit headers.
	Now func() time.Time
}

// Handler serves the account API.
type Handler struct {
	engine *goAccount.Engine
	logger *zap.Logger
}

func New(engine *goAccount.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger.Named("http")}
}

// Router builds the gin engine with every route mounted.
func Router(engine *goAccount.Engine, opts Options) *gin.Engine {
	h := New(engine, opts.Logger)

	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		h.logger.Error("invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(), middleware.Logger(opts.Logger))
	r.Use(opts.HTTPMetrics.Handler())
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Content-Length", "X-Request-ID"},
			ExposeHeaders:    []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(middleware.ClientContext())

	r.GET("/healthz", healthz(opts.Health))
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api/v1/users")
	api.Use(middleware.RateLimit(engine, nil, opts.Now))
	h.Register(api)
	return r
}

// Register mounts the account routes on g.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", h.logout)
	g.POST("/2fa/verify", h.verifyTwoFactor)
	g.POST("/verify-email/request", h.requestEmailVerification)
	g.POST("/verify-email", h.verifyEmail)
	g.POST("/password-reset/request", h.requestPasswordReset)
	g.POST("/password-reset", h.resetPassword)

	authed := g.Group("")
	authed.Use(middleware.Guard(h.engine.AccessTokens()))
	authed.GET("/me", h.me)
	authed.POST("/logout-all", h.logoutAll)
	authed.POST("/2fa/setup", h.setupTwoFactor)
	authed.POST("/2fa/enable", h.enableTwoFactor)
	authed.POST("/2fa/disable", h.disableTwoFactor)
	authed.POST("/2fa/backup-codes", h.regenerateBackupCodes)
	authed.GET("/2fa/backup-codes", h.remainingBackupCodes)
	authed.GET("/:id", h.getAccount)
	authed.PUT("/:id", h.updateAccount)

	admin := authed.Group("")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.GET("", h.listAccounts)
	admin.POST("", h.createAccount)
	admin.DELETE("/:id", h.deleteAccount)
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
	}
}

// caller is the authenticated account ID and role from the access token.
func caller(c *gin.Context) (string, model.Role) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return "", ""
	}
	return claims.Subject, model.Role(claims.Role)
}

// selfOrAdmin guards per-account routes.
func selfOrAdmin(c *gin.Context, accountID string) bool {
	id, role := caller(c)
	return id == accountID || role == model.RoleAdmin
}
