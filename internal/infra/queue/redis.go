package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

// RedisPlaybackQueue реализует очередь событий на базе Redis lists.
// Полученное событие переносится в список processing и остаётся там до ack.
type RedisPlaybackQueue struct {
	client     *redis.Client
	key        string
	processing string
}

var _ domain.PlaybackQueue = (*RedisPlaybackQueue)(nil)

// NewRedisPlaybackQueue создаёт очередь по указанному ключу.
func NewRedisPlaybackQueue(client *redis.Client, key string) *RedisPlaybackQueue {
	return &RedisPlaybackQueue{client: client, key: key, processing: key + ":processing"}
}

// Enqueue публикует событие в очередь.
func (q *RedisPlaybackQueue) Enqueue(ctx context.Context, event domain.PlaybackEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "publish", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие из очереди.
func (q *RedisPlaybackQueue) Receive(ctx context.Context) (domain.PlaybackEvent, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.PlaybackEvent{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.PlaybackEvent{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.PlaybackEvent{}, nil, err
		}
		event, err := decodeEvent([]byte(raw))
		if err != nil {
			_ = q.client.LRem(context.Background(), q.processing, 1, raw).Err()
			return domain.PlaybackEvent{}, nil, err
		}
		return event, q.ackFunc(raw), nil
	}
}

func (q *RedisPlaybackQueue) ackFunc(raw string) domain.AckFunc {
	return func(success bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.processing, 1, raw)
			if !success {
				pipe.RPush(ctx, q.key, raw)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ack event: %w", err)
		}
		return nil
	}
}

func encodeEvent(event domain.PlaybackEvent) ([]byte, error) {
	if event.CreatorID == "" {
		return nil, errors.New("event without creator")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}

func decodeEvent(payload []byte) (domain.PlaybackEvent, error) {
	var event domain.PlaybackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.PlaybackEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}
