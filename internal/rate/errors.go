package rate

import "errors"

var (
	// ErrRateLimited marks a counter that crossed its caller-imposed budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
