package feed

import (
	"sort"

	"creator-feed/internal/domain"
)

// State — состояние ленты.
type State string

const (
	// StateActive — в очереди есть ролики.
	StateActive State = "active"
	// StateDrained — очередь пуста, но в пуле остались непросмотренные ролики.
	StateDrained State = "drained"
	// StateExhausted — очередь пуста и всё просмотрено; следующий ConsumeNext сбросит историю.
	StateExhausted State = "exhausted"
	// StateEmpty — источник не дал автору ни одного ролика.
	StateEmpty State = "empty"
)

// Block — снимок блока ленты.
type Block struct {
	Category   domain.Category `json:"category"`
	TargetSize int             `json:"target_size"`
	Videos     []domain.Video  `json:"videos"`
}

// Feed — снимок ленты автора. Изменения снимка не влияют на планировщик.
type Feed struct {
	CreatorID   string  `json:"creator_id"`
	CreatorName string  `json:"creator_name"`
	Blocks      []Block `json:"blocks"`
	PoolSize    int     `json:"pool_size"`
	Played      int     `json:"played"`
	State       State   `json:"state"`
}

// Queue возвращает очередь целиком: блоки в фиксированном порядке.
func (f Feed) Queue() []domain.Video {
	var out []domain.Video
	for _, b := range f.Blocks {
		out = append(out, b.Videos...)
	}
	return out
}

// Len возвращает длину очереди.
func (f Feed) Len() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Videos)
	}
	return n
}

func (f *creatorFeed) state() State {
	switch {
	case f.queueLen() > 0:
		return StateActive
	case len(f.pools.ids()) == 0:
		return StateEmpty
	case f.unplayed() > 0:
		return StateDrained
	default:
		return StateExhausted
	}
}

func (f *creatorFeed) snapshot() Feed {
	out := Feed{
		CreatorID:   f.creatorID,
		CreatorName: f.creatorName,
		Blocks:      make([]Block, 0, len(f.blocks)),
		PoolSize:    len(f.pools.ids()),
		Played:      len(f.played),
		State:       f.state(),
	}
	for _, b := range f.blocks {
		out.Blocks = append(out.Blocks, Block{
			Category:   b.category,
			TargetSize: b.target,
			Videos:     append([]domain.Video{}, b.videos...),
		})
	}
	return out
}

// VideoBrief — короткое описание ролика для отладки.
type VideoBrief struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Category domain.Category `json:"category"`
}

// BlockStats описывает заполненность блока.
type BlockStats struct {
	Index       int             `json:"index"`
	Category    domain.Category `json:"category"`
	TargetSize  int             `json:"target_size"`
	CurrentSize int             `json:"current_size"`
	Head        []VideoBrief    `json:"head"`
}

// FeedStats — отладочная статистика ленты.
type FeedStats struct {
	CreatorName          string       `json:"creator_name"`
	State                State        `json:"state"`
	TotalQueueLength     int          `json:"total_queue_length"`
	TotalVideosAvailable int          `json:"total_videos_available"`
	PlayedVideosCount    int          `json:"played_videos_count"`
	Blocks               []BlockStats `json:"blocks"`
	NextVideos           []VideoBrief `json:"next_videos"`
	PlayedVideoIDs       []string     `json:"played_video_ids"`
}

// Stats возвращает отладочную статистику ленты автора.
func (s *Scheduler) Stats(creatorID string) (FeedStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[creatorID]
	if !ok {
		return FeedStats{}, false
	}
	stats := FeedStats{
		CreatorName:          f.creatorName,
		State:                f.state(),
		TotalQueueLength:     f.queueLen(),
		TotalVideosAvailable: len(f.pools.ids()),
		PlayedVideosCount:    len(f.played),
		Blocks:               make([]BlockStats, 0, len(f.blocks)),
		NextVideos:           briefs(f.head(PreviewSize)),
		PlayedVideoIDs:       make([]string, 0, len(f.played)),
	}
	for i, b := range f.blocks {
		head := b.videos
		if len(head) > 2 {
			head = head[:2]
		}
		stats.Blocks = append(stats.Blocks, BlockStats{
			Index:       i,
			Category:    b.category,
			TargetSize:  b.target,
			CurrentSize: len(b.videos),
			Head:        briefs(head),
		})
	}
	for id := range f.played {
		stats.PlayedVideoIDs = append(stats.PlayedVideoIDs, id)
	}
	sort.Strings(stats.PlayedVideoIDs)
	return stats, true
}

func briefs(videos []domain.Video) []VideoBrief {
	out := make([]VideoBrief, 0, len(videos))
	for _, v := range videos {
		out = append(out, VideoBrief{ID: v.ID, Title: v.Title, Category: v.Category})
	}
	return out
}
