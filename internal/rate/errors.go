package rate

import "errors"

var (
	// ErrRateLimited is returned when a throttle's budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps failures of the backing KV cache.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)
