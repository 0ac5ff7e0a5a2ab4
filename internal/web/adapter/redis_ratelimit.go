package adapter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	redisclient "github.com/challengehub/web/internal/redis"
	"github.com/challengehub/web/internal/web/app"
)

// rateLimitKeyPrefix namespaces throttle counters. Key pattern: ratelimit:{key}.
const rateLimitKeyPrefix = "ratelimit:"

// rateLimitScript atomically increments a counter and sets its TTL on the
// first write only, giving a fixed window that starts at the first attempt.
const rateLimitScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

var _ app.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter implements fixed-window counting backed by Redis.
// Redis errors are returned with a denial; callers treat them as closed.
type RedisRateLimiter struct {
	cmd redisclient.Cmdable
}

// NewRedisRateLimiter creates a RedisRateLimiter that uses cmd for Redis operations.
func NewRedisRateLimiter(cmd redisclient.Cmdable) *RedisRateLimiter {
	return &RedisRateLimiter{cmd: cmd}
}

// CheckAndIncrement counts one attempt for key and reports whether the count
// is still within limit for the current window. Windows shorter than a
// second are rounded up to one second.
func (r *RedisRateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.ratelimit.check")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVAL"),
	)

	seconds := int(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	count, err := r.cmd.Eval(ctx, rateLimitScript, []string{rateLimitKeyPrefix + key}, seconds).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("rate limit check %q: %w", key, err)
	}

	return count <= int64(limit), nil
}
