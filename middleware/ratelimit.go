package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/internal/rate"
)

const (
	rateLimitProblemType  = "about:blank#rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// Admitter is the admission control surface of the Engine.
type Admitter interface {
	AdmitDecision(ctx context.Context, clientKey string) (rate.Decision, error)
}

// KeyFunc extracts the rate-limit key of a request.
type KeyFunc func(*gin.Context) string

// ProblemDetails is an RFC 9457 payload for throttled requests.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit admits each request through admitter keyed by key (ClientKey when
// nil). Rejected requests get 429 with Retry-After.
func RateLimit(admitter Admitter, key KeyFunc, now func() time.Time) gin.HandlerFunc {
	if key == nil {
		key = ClientKey
	}
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		if admitter == nil {
			c.Next()
			return
		}

		decision, err := admitter.AdmitDecision(c.Request.Context(), key(c))
		if decision.Limit > 0 {
			applyHeaders(c, decision, now())
		}
		if errors.Is(err, goAccount.ErrRateLimitExceeded) {
			respondRateLimited(c, decision, now())
			return
		}
		c.Next()
	}
}

func applyHeaders(c *gin.Context, d rate.Decision, now time.Time) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(retrySeconds(d, now)))
	}
}

func respondRateLimited(c *gin.Context, d rate.Decision, now time.Time) {
	seconds := retrySeconds(d, now)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
	})
}

func retrySeconds(d rate.Decision, now time.Time) int {
	return int(math.Ceil(d.RetryAfter(now).Seconds()))
}

// ClientKey is gin's ClientIP. X-Forwarded-For is only honoured when the
// peer is listed in the engine's trusted proxies (gin.Engine.SetTrustedProxies).
func ClientKey(c *gin.Context) string {
	return c.ClientIP()
}

// ClientContext stores ClientKey on the request context for audit events.
func ClientContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := goAccount.WithClientIP(c.Request.Context(), ClientKey(c))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
