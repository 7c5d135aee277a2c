package rate

import "errors"

var (
	// ErrRateLimited is returned by callers that turn a rejected Decision into an error.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidConfig is returned by constructors for unusable limits.
	ErrInvalidConfig = errors.New("invalid rate limit configuration")
)
