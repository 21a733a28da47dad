package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimiter is a fixed-window Limiter shared by every instance that
// points at the same Redis.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	prefix string
}

func NewRedisRateLimiter(rdb redis.Scripter, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "eventpilot:rl"
	}
	return &RedisRateLimiter{rdb: rdb, prefix: prefix}
}

func (rl *RedisRateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = time.Minute.Milliseconds()
	}
	res, err := fixedWindowScript.Run(ctx, rl.rdb, []string{rl.prefix + ":" + key}, ms).Result()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}

	var count int64
	switch v := res.(type) {
	case int64:
		count = v
	case string:
		count, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, fmt.Errorf("redis rate limit: %w", err)
		}
	default:
		return false, fmt.Errorf("redis rate limit: unexpected result type %T", res)
	}
	return count <= int64(limit), nil
}
