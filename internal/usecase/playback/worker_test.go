package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"creator-feed/internal/domain"
)

type memCache struct {
	mu   sync.Mutex
	keys map[string]struct{}
	fail error
}

func (c *memCache) Once(key string, _ time.Duration, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	if c.keys == nil {
		c.keys = map[string]struct{}{}
	}
	if _, ok := c.keys[key]; ok {
		return nil
	}
	c.keys[key] = struct{}{}
	if err := fn(); err != nil {
		delete(c.keys, key)
		return err
	}
	return nil
}

func TestWorkerHandlesEachEventOnce(t *testing.T) {
	q := &memQueue{}
	svc, scheduler, _ := newTestPlayer(t, q)
	worker := NewWorker(q, &memCache{}, svc, time.Minute, zerolog.Nop())

	skip := domain.NewPlaybackEvent("c1", "", domain.PlaybackCauseSkip)
	q.events = []domain.PlaybackEvent{
		skip,
		skip,
		{CreatorID: "c1", Cause: domain.PlaybackCauseSkip},
		{ID: "bad", Cause: domain.PlaybackCauseSkip},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.acks) == 4
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, []bool{true, true, true, true}, q.acks)
	require.Equal(t, 13, scheduler.Len("c1"), "повтор события не должен снимать второй ролик")
}

func TestWorkerRequeuesOnCacheFailure(t *testing.T) {
	q := &memQueue{}
	svc, scheduler, _ := newTestPlayer(t, q)
	worker := NewWorker(q, &memCache{fail: errors.New("redis down")}, svc, time.Minute, zerolog.Nop())

	var acked []bool
	ok := worker.handle(context.Background(), domain.NewPlaybackEvent("c1", "", domain.PlaybackCauseEnded), func(success bool) error {
		acked = append(acked, success)
		return nil
	})

	require.False(t, ok)
	require.Equal(t, []bool{false}, acked)
	require.Equal(t, 14, scheduler.Len("c1"))
}

func TestWorkerWithoutCache(t *testing.T) {
	svc, scheduler, _ := newTestPlayer(t, nil)
	worker := NewWorker(nil, nil, svc, 0, zerolog.Nop())

	ok := worker.handle(context.Background(), domain.NewPlaybackEvent("c1", "s1", domain.PlaybackCauseEnded), nil)

	require.True(t, ok)
	require.Equal(t, 13, scheduler.Len("c1"))
}
