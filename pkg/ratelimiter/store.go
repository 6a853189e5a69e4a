package ratelimiter

import (
	"context"
	"time"
)

// Store is the persistence backend for token buckets. Implementations must
// apply the refill and the consumption atomically per key.
type Store interface {
	// ConsumeTokens takes tokens from the bucket for key, creating it at
	// full capacity on first use. A negative remaining count means the
	// request must be denied; resetAt is when tokens next become available.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset drops all limiter state for the key.
	Reset(ctx context.Context, key string) error
}
