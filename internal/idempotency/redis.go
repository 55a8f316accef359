package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard backs the acquire-once primitive with SET NX PX, which is
// atomic across every process sharing the Redis instance.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisGuard(rdb *redis.Client, prefix string) *RedisGuard {
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisGuard{rdb: rdb, prefix: prefix}
}

func (g *RedisGuard) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return g.rdb.SetNX(ctx, g.prefix+":"+key, "1", ttl).Result()
}
