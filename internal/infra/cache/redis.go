package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

const opTimeout = 3 * time.Second

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш. Все ключи получают префикс prefix.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Once выполняет функцию, если ключ ещё не задан. При ошибке fn ключ снимается,
// чтобы повторная доставка могла выполнить fn снова.
func (c *RedisCache) Once(key string, ttl time.Duration, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	start := time.Now()
	ok, err := c.client.SetNX(ctx, c.key(key), "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", "cache", start, err)
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		delCtx, delCancel := context.WithTimeout(context.Background(), opTimeout)
		defer delCancel()
		_ = c.client.Del(delCtx, c.key(key)).Err()
		return err
	}
	return nil
}
