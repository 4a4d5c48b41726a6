package ratelimiter

import (
	"context"
	"time"
)

// Store keeps bucket state.
type Store interface {
	// ConsumeTokens refills the bucket, takes tokens from it and returns what is
	// left. A negative remainder means the request is denied; the debt is kept
	// so a caller hammering the endpoint stays denied.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset drops the state of key.
	Reset(ctx context.Context, key string) error
}
