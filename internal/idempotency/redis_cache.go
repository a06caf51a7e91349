package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript atomically claims an idempotency key: it sets the key to
// "pending" only if absent, returning 1 on a fresh claim and 0 if
// another worker already holds it. Mirrors the token-bucket Lua pattern
// used for rate limiting elsewhere in this stack, applied here to a
// single-slot claim instead of a bucket of tokens.
var claimScript = redis.NewScript(`
local key = KEYS[1]
local ttl = tonumber(ARGV[1])
if redis.call("EXISTS", key) == 1 then
    return 0
end
redis.call("SET", key, "pending", "EX", ttl)
return 1
`)

// RedisCache is an optional shared cache tier in front of the SQLite
// idempotency table. A caller may choose to "wait on the
// lock" instead; in a multi-process deployment sharing one workspace over a
// network filesystem, this cache lets peers short-circuit without a
// round trip to SQLite). It never replaces the Execution Store as the
// source of truth — on any Redis error, callers must fall back to
// Manager.Check against the store.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing client. prefix namespaces keys, e.g.
// "lonelycat:idem:".
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// TryClaim attempts to claim executionID for this process. ok is true
// only if this call won the claim.
func (c *RedisCache) TryClaim(ctx context.Context, executionID string, ttl time.Duration) (bool, error) {
	res, err := claimScript.Run(ctx, c.client, []string{c.prefix + executionID}, int(ttl.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: redis claim: %w", err)
	}
	won, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("idempotency: unexpected redis script result %T", res)
	}
	return won == 1, nil
}

// Release clears a claim, e.g. after the execution reaches a terminal
// state and the SQLite record becomes the durable answer.
func (c *RedisCache) Release(ctx context.Context, executionID string) error {
	if err := c.client.Del(ctx, c.prefix+executionID).Err(); err != nil {
		return fmt.Errorf("idempotency: redis release: %w", err)
	}
	return nil
}
