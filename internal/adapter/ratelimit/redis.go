package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and starts the window on the first
// hit, returning {count, ttl_ms}. Running it as a script keeps incr-and-check atomic.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore implements a fixed-window counter shared by every instance of the service.
type RedisStore struct {
	client redis.Scripter
	rule   Rule
	prefix string
}

// NewRedisStore creates a Redis-backed store. Keys are namespaced with "ratelimit:".
func NewRedisStore(client redis.Scripter, rule Rule) *RedisStore {
	return &RedisStore{client: client, rule: rule, prefix: "ratelimit:"}
}

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, key string) (Result, error) {
	res := Result{Limit: s.rule.Requests}

	vals, err := fixedWindowScript.Run(ctx, s.client, []string{s.prefix + key}, s.rule.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return res, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return res, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}

	count, ttl := vals[0], time.Duration(vals[1])*time.Millisecond
	if count > int64(s.rule.Requests) {
		res.RetryAfter = ttl
		return res, nil
	}

	res.Allowed = true
	res.Remaining = s.rule.Requests - int(count)
	return res, nil
}
