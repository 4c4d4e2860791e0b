package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills by whole intervals, takes one token when available and
// returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'refilled_ms')
local tokens = tonumber(state[1])
local refilled = tonumber(state[2])
if tokens == nil or refilled == nil then
	tokens = capacity
	refilled = now_ms
end

local elapsed = math.max(0, now_ms - refilled)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals)
	refilled = refilled + intervals * interval_ms
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - refilled))
end

redis.call('HMSET', key, 'tokens', tokens, 'refilled_ms', refilled)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

// RedisLimiter shares buckets across instances through Redis.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	cfg    Config
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisLimiter builds a limiter storing buckets under prefix.
func NewRedisLimiter(client redis.Scripter, prefix string, cfg Config) *RedisLimiter {
	cfg = cfg.normalized()
	// a bucket untouched for a full refill cycle is back at capacity and can expire
	ttl := time.Duration(cfg.Capacity)*cfg.Refill + time.Second
	return &RedisLimiter{client: client, prefix: prefix, cfg: cfg, ttl: ttl, now: time.Now}
}

// Allow takes a token for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.client == nil {
		return Decision{}, fmt.Errorf("redis limiter: no client")
	}
	args := []interface{}{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.Refill.Milliseconds(),
		int64((l.ttl + time.Second - 1) / time.Second),
	}
	vals, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + key}, args...).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis limiter: %w", err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("redis limiter: unexpected script result %v", vals)
	}
	return Decision{
		Allowed:    asInt64(vals[0]) == 1,
		Limit:      l.cfg.Capacity,
		Remaining:  int(asInt64(vals[1])),
		RetryAfter: time.Duration(asInt64(vals[2])) * time.Millisecond,
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
