package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long the caller should wait before retrying.
	// Zero means unknown.
	RetryAfter time.Duration
}

// Store counts requests per key. Allow must count and decide in one atomic step
// so that concurrent bursts from the same key are never undercounted.
type Store interface {
	Allow(ctx context.Context, key string) (Result, error)
}
