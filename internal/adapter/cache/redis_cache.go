package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisOrderCache is a read-through cache of full order documents under order:<id>.
type RedisOrderCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisOrderCache(rdb redis.Cmdable, ttl time.Duration) *RedisOrderCache {
	return &RedisOrderCache{rdb: rdb, ttl: ttl}
}

func orderKey(id string) string { return "order:" + id }

func (r *RedisOrderCache) Get(ctx context.Context, id string) (*domain.Order, bool, error) {
	raw, err := r.rdb.Get(ctx, orderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var o domain.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, false, fmt.Errorf("decode cached order %s: %w", id, err)
	}
	return &o, true, nil
}

func (r *RedisOrderCache) Set(ctx context.Context, o *domain.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, orderKey(o.ID), raw, r.ttl).Err()
}

func (r *RedisOrderCache) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, orderKey(id)).Err()
}

var _ usecase.OrderCache = (*RedisOrderCache)(nil)
