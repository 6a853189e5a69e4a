package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript implements the token bucket refill-and-consume step
// atomically on the Redis side. State is a hash of {tokens, last_refill_ms}
// with a TTL so abandoned buckets expire on their own.
//
// KEYS[1] bucket key
// ARGV[1] tokens to consume
// ARGV[2] capacity
// ARGV[3] refill rate
// ARGV[4] refill interval in ms
// ARGV[5] now in ms
// ARGV[6] key TTL in ms
//
// Returns {remaining, last_refill_ms}.
var consumeScript = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

local consume = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local now = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now
end

local max_intervals = math.floor(capacity / rate) + 1
local elapsed_intervals = math.floor((now - last_refill) / interval)
if elapsed_intervals > max_intervals then
  elapsed_intervals = max_intervals
end

if elapsed_intervals > 0 then
  tokens = math.min(tokens + elapsed_intervals * rate, capacity)
  last_refill = now
end

tokens = tokens - consume

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('PEXPIRE', KEYS[1], ttl)

return {tokens, last_refill}
`)

// RedisStore implements Store on Redis so limits survive restarts and are
// shared across instances. All consume operations run as a single Lua
// script, so concurrent requests against one key never double-spend.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store. Keys are stored under the
// given prefix, "ratelimit" when empty.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (rs *RedisStore) key(key string) string {
	return rs.keyPrefix + ":" + key
}

// ConsumeTokens attempts to consume tokens from the bucket.
func (rs *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	now := time.Now()
	// Keep state around for two full refill cycles past the last access.
	ttl := 2 * config.RefillInterval

	res, err := consumeScript.Run(ctx, rs.client, []string{rs.key(key)},
		tokens,
		config.Capacity,
		config.RefillRate,
		config.RefillInterval.Milliseconds(),
		now.UnixMilli(),
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, ErrStoreUnavailable
	}

	remaining := int(res[0])
	resetAt := time.UnixMilli(res[1]).Add(config.RefillInterval)

	return remaining, resetAt, nil
}

// Reset clears the rate limit state for the given key.
func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.key(key)).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
