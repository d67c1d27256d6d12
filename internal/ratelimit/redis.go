package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	redisclient "github.com/aelexs/phone-verify-service/internal/redis"
)

// incrementScript atomically increments a counter and sets its TTL on the
// first write. This avoids a MULTI/EXEC round trip and the need for
// EXPIRE ... NX (Redis 7.0+): checking count == 1 is equivalent and works
// against any Redis version go-redis supports.
const incrementScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

// RedisEngine implements Engine against Redis. All methods fail closed:
// a Redis error is surfaced to the caller rather than defaulting to allow.
type RedisEngine struct {
	cmd redisclient.Cmdable
}

// NewRedisEngine creates a RedisEngine that uses cmd for Redis operations.
func NewRedisEngine(cmd redisclient.Cmdable) *RedisEngine {
	return &RedisEngine{cmd: cmd}
}

// Allow implements Engine.
func (e *RedisEngine) Allow(ctx context.Context, rule Rule, key string) (Decision, error) {
	ctx, span := tracer.Start(ctx, "redis.ratelimit.allow")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVAL"),
		attribute.String("ratelimit.rule", rule.Name),
	)

	windowSeconds := int(rule.Window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	count, err := e.cmd.Eval(ctx, incrementScript, []string{key}, windowSeconds).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Decision{}, fmt.Errorf("ratelimit: check %q: %w", key, err)
	}

	allowed := count <= int64(rule.Limit)
	remaining := int(int64(rule.Limit) - count)
	if remaining < 0 {
		remaining = 0
	}

	decision := Decision{Allowed: allowed, Remaining: remaining}
	if !allowed {
		ttl, ttlErr := e.cmd.PTTL(ctx, key).Result()
		if ttlErr == nil && ttl > 0 {
			decision.RetryAfter = ttl
		} else {
			decision.RetryAfter = rule.Window
		}
	}
	return decision, nil
}
