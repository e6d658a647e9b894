package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

// RedisRecent хранит недавно открытых авторов списком Redis: свежий слева.
type RedisRecent struct {
	client *redis.Client
	key    string
	limit  int
}

var _ domain.RecentCreators = (*RedisRecent)(nil)

// NewRedisRecent создаёт список с ограничением длины.
func NewRedisRecent(client *redis.Client, key string, limit int) *RedisRecent {
	if limit <= 0 {
		limit = 5
	}
	return &RedisRecent{client: client, key: key, limit: limit}
}

// Touch поднимает автора в начало списка и обрезает хвост.
func (r *RedisRecent) Touch(ctx context.Context, creatorID string) error {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil
	}
	start := time.Now()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, r.key, 0, creatorID)
		pipe.LPush(ctx, r.key, creatorID)
		pipe.LTrim(ctx, r.key, 0, int64(r.limit-1))
		return nil
	})
	metrics.ObserveNetworkRequest("redis", "touch", "recent", start, err)
	if err != nil {
		return fmt.Errorf("touch recent: %w", err)
	}
	return nil
}

// List возвращает авторов от последнего открытого к первому.
func (r *RedisRecent) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := r.client.LRange(ctx, r.key, 0, int64(r.limit-1)).Result()
	metrics.ObserveNetworkRequest("redis", "list", "recent", start, err)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return ids, nil
}

// Clear очищает список.
func (r *RedisRecent) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
