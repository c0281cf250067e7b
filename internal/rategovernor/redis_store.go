package rategovernor

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore adapts a go-redis client to SharedStore, so circuit breaker
// failure tallies are observable across process instances. Optional: pass
// nil to NewRegistry for single-process deployments.
type RedisStore struct {
	c *goredis.Client
}

// NewRedisStore builds a RedisStore from a go-redis client.
func NewRedisStore(c *goredis.Client) *RedisStore {
	return &RedisStore{c: c}
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.c.Incr(ctx, key).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.c.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.c.Del(ctx, keys...).Err()
}
