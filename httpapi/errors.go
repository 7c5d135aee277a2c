package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	goAccount "github.com/MrEthical07/goAccount"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type errorCase struct {
	err     error
	status  int
	message string
}

// Ordered: the first errors.Is match wins. ErrTwoFactorAttemptsExceeded
// wraps ErrInvalid2FACode, so it comes first.
var errorCases = []errorCase{
	{goAccount.ErrDuplicateResource, http.StatusConflict, "resource already exists"},
	{goAccount.ErrTwoFactorAlreadyEnabled, http.StatusConflict, "two-factor authentication already enabled"},
	{goAccount.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{goAccount.ErrTwoFactorAttemptsExceeded, http.StatusUnauthorized, "too many attempts, log in again"},
	{goAccount.ErrInvalid2FACode, http.StatusUnauthorized, "invalid two-factor code"},
	{goAccount.ErrTokenExpired, http.StatusGone, "token expired"},
	{goAccount.ErrTokenRevoked, http.StatusUnauthorized, "token revoked"},
	{goAccount.ErrTokenNotFound, http.StatusUnauthorized, "invalid token"},
	{goAccount.ErrTokenInvalid, http.StatusUnauthorized, "invalid token"},
	{goAccount.ErrVerificationTokenInvalid, http.StatusBadRequest, "invalid or expired token"},
	{goAccount.ErrPasswordPolicy, http.StatusBadRequest, "password does not meet policy"},
	{goAccount.ErrInvalidEmail, http.StatusBadRequest, "invalid email"},
	{goAccount.ErrInvalidRole, http.StatusBadRequest, "invalid role"},
	{goAccount.ErrTwoFactorNotEnabled, http.StatusBadRequest, "two-factor authentication not enabled"},
	{goAccount.ErrEmailNotVerified, http.StatusForbidden, "email not verified"},
	{goAccount.ErrPermissionDenied, http.StatusForbidden, "permission denied"},
	{goAccount.ErrResourceNotFound, http.StatusNotFound, "resource not found"},
	{goAccount.ErrRateLimitExceeded, http.StatusTooManyRequests, "too many requests"},
	{goAccount.ErrEngineNotReady, http.StatusServiceUnavailable, "service unavailable"},
}

// statusFor resolves err to a status and public message.
func statusFor(err error) (int, string) {
	var locked *goAccount.LockedError
	if errors.As(err, &locked) {
		return http.StatusLocked, "account locked"
	}
	for _, ec := range errorCases {
		if errors.Is(err, ec.err) {
			return ec.status, ec.message
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	body := ErrorResponse{Error: message}

	var locked *goAccount.LockedError
	if errors.As(err, &locked) {
		body.RetryAfter = int(math.Ceil(locked.Remaining.Seconds()))
		c.Header("Retry-After", strconv.Itoa(body.RetryAfter))
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: message})
}
