package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlaybackCause описывает источник события воспроизведения.
type PlaybackCause string

const (
	// PlaybackCauseEnded — ролик досмотрен до конца.
	PlaybackCauseEnded PlaybackCause = "ended"
	// PlaybackCauseTimer — сработал таймер автопереключения.
	PlaybackCauseTimer PlaybackCause = "timer"
	// PlaybackCauseSkip — пользователь пропустил ролик.
	PlaybackCauseSkip PlaybackCause = "skip"
)

// PlaybackEvent сигнализирует, что текущий ролик автора нужно сменить.
type PlaybackEvent struct {
	ID         string        `json:"event_id"`
	CreatorID  string        `json:"creator_id"`
	VideoID    string        `json:"video_id,omitempty"`
	Cause      PlaybackCause `json:"cause"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewPlaybackEvent создаёт событие с новым идентификатором.
func NewPlaybackEvent(creatorID, videoID string, cause PlaybackCause) PlaybackEvent {
	return PlaybackEvent{
		ID:         uuid.NewString(),
		CreatorID:  creatorID,
		VideoID:    videoID,
		Cause:      cause,
		OccurredAt: time.Now().UTC(),
	}
}

// PlaybackQueue описывает очередь событий воспроизведения.
type PlaybackQueue interface {
	Enqueue(ctx context.Context, event PlaybackEvent) error
	Receive(ctx context.Context) (PlaybackEvent, AckFunc, error)
}

// AckFunc подтверждает успешную обработку или запрашивает повтор доставки события.
type AckFunc func(success bool) error
