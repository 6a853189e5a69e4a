// Package ratelimiter implements token bucket rate limiting over pluggable
// storage backends. MemoryStore suits tests and single-instance runs;
// RedisStore shares state across instances and survives restarts.
//
// Usage:
//
//	store := ratelimiter.NewRedisStore(redisClient, "poemgen")
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//	    Capacity:       10,
//	    RefillRate:     10,
//	    RefillInterval: 24 * time.Hour,
//	})
//
//	r.Use(ratelimiter.Middleware(limiter, ratelimiter.ByClientIP, nil))
package ratelimiter
