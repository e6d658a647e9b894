package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

// RabbitPlaybackQueue реализует очередь событий поверх AMQP.
type RabbitPlaybackQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	deliveries <-chan amqp.Delivery
}

var _ domain.PlaybackQueue = (*RabbitPlaybackQueue)(nil)

// NewRabbitPlaybackQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitPlaybackQueue(amqpURL, queue string) (*RabbitPlaybackQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitPlaybackQueue{conn: conn, queue: queue, publishCh: ch}, nil
}

// Enqueue публикует событие в очередь.
func (q *RabbitPlaybackQueue) Enqueue(ctx context.Context, event domain.PlaybackEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	start := time.Now()
	err = q.publishCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие из очереди.
func (q *RabbitPlaybackQueue) Receive(ctx context.Context) (domain.PlaybackEvent, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.PlaybackEvent{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.PlaybackEvent{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				q.resetConsumer()
				return domain.PlaybackEvent{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			event, err := decodeEvent(d.Body)
			if err != nil {
				_ = d.Nack(false, false)
				return domain.PlaybackEvent{}, nil, err
			}
			return event, deliveryAck(d), nil
		}
	}
}

func (q *RabbitPlaybackQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.consumeCh = ch
	q.deliveries = deliveries
	return deliveries, nil
}

func (q *RabbitPlaybackQueue) resetConsumer() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumeCh != nil {
		_ = q.consumeCh.Close()
	}
	q.consumeCh = nil
	q.deliveries = nil
}

// Close закрывает соединение с брокером.
func (q *RabbitPlaybackQueue) Close() error {
	q.resetConsumer()
	return q.conn.Close()
}

func deliveryAck(d amqp.Delivery) domain.AckFunc {
	return func(success bool) error {
		if success {
			return d.Ack(false)
		}
		return d.Nack(false, true)
	}
}
