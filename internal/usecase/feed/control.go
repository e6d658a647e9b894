package feed

import (
	"context"

	"creator-feed/internal/domain"
)

// Control даёт доступ к планировщику через domain.FeedControl в том же процессе.
type Control struct {
	scheduler *Scheduler
}

var _ domain.FeedControl = (*Control)(nil)

// NewControl создаёт адаптер.
func NewControl(s *Scheduler) *Control {
	return &Control{scheduler: s}
}

// Ingest создаёт ленту или подмешивает в неё свежие данные.
func (c *Control) Ingest(_ context.Context, data domain.CreatorData) error {
	c.scheduler.Ingest(data)
	return nil
}

// RemoveFeed удаляет ленту автора.
func (c *Control) RemoveFeed(_ context.Context, creatorID string) error {
	c.scheduler.Remove(creatorID)
	return nil
}

// ClearFeeds удаляет все ленты.
func (c *Control) ClearFeeds(_ context.Context) error {
	c.scheduler.Clear()
	return nil
}
