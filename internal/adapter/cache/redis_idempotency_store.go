package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore guards order placement per (user, Idempotency-Key).
// The lock key is taken with SETNX; the resulting order id is remembered
// separately so a replay can return it.
type RedisIdempotencyStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisIdempotencyStore(rdb redis.Cmdable, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl}
}

func lockKey(scope, key string) string   { return "idemp:" + scope + ":" + key }
func resultKey(scope, key string) string { return "idemp:map:" + scope + ":" + key }

func (s *RedisIdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, lockKey(scope, key), "1", s.ttl).Result()
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, resultKey(scope, key), value, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, resultKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Release drops the lock after a failed attempt so the client may retry with the same key.
func (s *RedisIdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, lockKey(scope, key)).Err()
}

var _ usecase.IdempotencyStore = (*RedisIdempotencyStore)(nil)
