package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meowerlab/meower/core"
)

// fixedWindowScript counts a hit and starts the window on the first one.
// It returns the count and the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisStore is a fixed window counter shared by every process using the same redis
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	window time.Duration
	max    int
}

func NewRedisStore(rdb *redis.Client, prefix string, window time.Duration, max int) *RedisStore {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "meower:ratelimit"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, window: window, max: max}
}

// Allow implements core.RateLimiter
func (s *RedisStore) Allow(ctx context.Context, identity string) (core.RateLimitDecision, error) {
	key := s.prefix + ":" + identity

	result, err := fixedWindowScript.Run(ctx, s.rdb, []string{key}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return core.RateLimitDecision{}, err
	}
	if len(result) != 2 {
		return core.RateLimitDecision{}, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	count, ttl := result[0], result[1]
	if count <= int64(s.max) {
		return core.RateLimitDecision{Allowed: true}, nil
	}

	retryAfter := time.Duration(ttl) * time.Millisecond
	if ttl < 0 {
		retryAfter = s.window
	}
	return core.RateLimitDecision{Allowed: false, RetryAfter: retryAfter}, nil
}
