package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter exceeds its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures from the counter backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
