package playback

import (
	"fmt"
	"time"

	"creator-feed/internal/domain"
	"creator-feed/internal/usecase/feed"
)

// Slot — ролик очереди с ожидаемым временем старта.
type Slot struct {
	Position int           `json:"position"`
	Video    domain.Video  `json:"video"`
	StartsIn time.Duration `json:"starts_in"`
	StartsAt time.Time     `json:"starts_at"`
	Label    string        `json:"label"`
}

// Playback — состояние воспроизведения автора.
type Playback struct {
	CreatorID string        `json:"creator_id"`
	Surface   Surface       `json:"surface"`
	Active    bool          `json:"active"`
	Period    time.Duration `json:"period"`
	Slots     []Slot        `json:"slots"`
}

// QueueView — ближайшие ролики автора вместе с состоянием ленты.
type QueueView struct {
	Playback
	QueueLength int        `json:"queue_length"`
	State       feed.State `json:"state"`
}

// NextView — снятый с очереди ролик и новое состояние.
type NextView struct {
	Video    domain.Video `json:"video"`
	Playback Playback     `json:"playback"`
}

// Current возвращает текущий ролик, если он есть.
func (p Playback) Current() (domain.Video, bool) {
	if len(p.Slots) == 0 {
		return domain.Video{}, false
	}
	return p.Slots[0].Video, true
}

// BuildSlots расставляет ролики по времени: позиция i стартует через i периодов.
func BuildSlots(videos []domain.Video, period time.Duration, now time.Time) []Slot {
	out := make([]Slot, 0, len(videos))
	for i, v := range videos {
		in := time.Duration(i) * period
		at := now.Add(in)
		out = append(out, Slot{
			Position: i,
			Video:    v,
			StartsIn: in,
			StartsAt: at,
			Label:    slotLabel(i, in, now, at),
		})
	}
	return out
}

func slotLabel(pos int, in time.Duration, now, at time.Time) string {
	if pos == 0 {
		return "Сейчас · " + now.Format("15:04")
	}
	return fmt.Sprintf("%s (через %d мин)", at.Format("15:04"), int(in.Minutes()))
}
