package ratelimiter

import "time"

// Result reports the outcome of a single rate limit check.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left after this check
	ResetAt   time.Time // when the next refill lands
}

// Allowed reports whether the checked request may proceed.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns the wait before a retry can succeed, or 0 when the
// request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Config shapes the token bucket.
type Config struct {
	Capacity       int           // maximum tokens held, which is also the burst limit
	RefillRate     int           // tokens added per interval
	RefillInterval time.Duration // refill cadence
}
