package ratelimiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript refills and debits a bucket stored as a hash in one round trip.
// KEYS[1] bucket; ARGV: capacity, refill rate, interval ms, tokens, now ms, ttl ms.
// Returns {remaining, last_refill_ms}.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local tokens = tonumber(ARGV[4])
local now = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

local state = redis.call("HMGET", KEYS[1], "tokens", "last_refill")
local current = tonumber(state[1])
local last = tonumber(state[2])
if current == nil or last == nil then
	current = capacity
	last = now
end

local intervals = math.floor((now - last) / interval)
local cap = math.floor(capacity / rate) + 1
if intervals > cap then
	intervals = cap
end
if intervals > 0 then
	current = math.min(current + intervals * rate, capacity)
	last = now
end

current = current - tokens
redis.call("HSET", KEYS[1], "tokens", current, "last_refill", last)
redis.call("PEXPIRE", KEYS[1], ttl)
return {current, last}
`)

// RedisStore shares buckets between instances through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisKeyPrefix sets the key namespace. Default "ratelimit:".
func WithRedisKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore panics if client is nil.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	if client == nil {
		panic("ratelimiter: redis client is required")
	}
	s := &RedisStore{client: client, prefix: "ratelimit:", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	// A bucket idle long enough to refill completely carries no state worth keeping.
	fullRefill := config.RefillInterval * time.Duration(config.Capacity/config.RefillRate+1)

	vals, err := consumeScript.Run(ctx, s.client, []string{s.prefix + key},
		config.Capacity,
		config.RefillRate,
		config.RefillInterval.Milliseconds(),
		tokens,
		s.now().UnixMilli(),
		fullRefill.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}

	lastRefill := time.UnixMilli(vals[1])
	return int(vals[0]), lastRefill.Add(config.RefillInterval), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
