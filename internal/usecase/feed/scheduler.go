// Package feed строит и поддерживает очереди роликов для авторов.
//
// Лента автора состоит из трёх блоков (shorts, videos, vods), истории
// просмотренных роликов и исходного пула по категориям. Очередь — это
// конкатенация блоков в фиксированном порядке; отдельно она не хранится.
package feed

import (
	"sync"

	"github.com/rs/zerolog"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

type creatorFeed struct {
	creatorID   string
	creatorName string
	blocks      [len(blockConfig)]block
	pools       pools
	played      idSet
}

// Scheduler хранит ленты авторов в памяти процесса.
// Все методы безопасны для параллельного вызова.
type Scheduler struct {
	mu    sync.Mutex
	feeds map[string]*creatorFeed
	log   zerolog.Logger
}

// NewScheduler создаёт пустой планировщик.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		feeds: make(map[string]*creatorFeed),
		log:   log,
	}
}

// GetOrCreate возвращает ленту автора, создавая её при первом обращении.
// Существующая лента не перестраивается по новым данным; для этого есть Update.
func (s *Scheduler) GetOrCreate(data domain.CreatorData) (Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.feeds[data.Creator.ID]; ok {
		return f.snapshot(), false
	}
	return s.create(data).snapshot(), true
}

// Ingest создаёт ленту или подмешивает в неё данные под одной блокировкой,
// так что параллельные первые загрузки одного автора не теряются.
// added — число роликов, которых раньше не было в пуле.
func (s *Scheduler) Ingest(data domain.CreatorData) (snapshot Feed, created bool, added int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.feeds[data.Creator.ID]; ok {
		added = s.update(f, data)
		return f.snapshot(), false, added
	}
	f := s.create(data)
	return f.snapshot(), true, len(f.pools.ids())
}

func (s *Scheduler) create(data domain.CreatorData) *creatorFeed {
	id := data.Creator.ID
	f := &creatorFeed{
		creatorID:   id,
		creatorName: data.Creator.Name,
		pools:       newPools(data),
		played:      make(idSet),
	}
	for i, cfg := range blockConfig {
		f.blocks[i] = block{category: cfg.category, target: cfg.target}
	}
	f.buildAll()
	s.feeds[id] = f
	metrics.FeedsActive.Set(float64(len(s.feeds)))

	s.log.Info().Str("creator", id).Str("name", f.creatorName).Int("queue", f.queueLen()).Int("pool", len(f.pools.ids())).Msg("feed: лента создана")
	return f
}

// Preview возвращает первые PreviewSize роликов очереди, не меняя её.
func (s *Scheduler) Preview(creatorID string) []domain.Video {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[creatorID]
	if !ok {
		return []domain.Video{}
	}
	return f.head(PreviewSize)
}

// Len возвращает длину очереди автора.
func (s *Scheduler) Len(creatorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[creatorID]
	if !ok {
		return 0
	}
	return f.queueLen()
}

// ConsumeNext снимает первый ролик очереди и отмечает его просмотренным.
// Опустевший блок сразу перестраивается. Если очередь пуста и весь пул
// просмотрен, история сбрасывается целиком и попытка повторяется один раз.
// false означает, что роликов нет.
func (s *Scheduler) ConsumeNext(creatorID string) (domain.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[creatorID]
	if !ok {
		return domain.Video{}, false
	}
	return s.consume(f, true)
}

func (s *Scheduler) consume(f *creatorFeed, allowReset bool) (domain.Video, bool) {
	for i := range f.blocks {
		b := &f.blocks[i]
		if len(b.videos) == 0 {
			continue
		}
		v := b.videos[0]
		b.videos = append([]domain.Video(nil), b.videos[1:]...)
		f.played.add(v.ID)
		metrics.FeedVideosConsumed.WithLabelValues(string(b.category)).Inc()
		s.log.Debug().Str("creator", f.creatorID).Str("video", v.ID).Str("category", string(b.category)).Int("left", len(b.videos)).Int("played", len(f.played)).Msg("feed: ролик снят с очереди")
		if len(b.videos) == 0 {
			s.regenerate(f, i)
		}
		return v, true
	}

	if len(f.pools.ids()) == 0 {
		return domain.Video{}, false
	}
	if left := f.unplayed(); left > 0 {
		s.log.Warn().Str("creator", f.creatorID).Int("unplayed", left).Msg("feed: очередь временно пуста")
		return domain.Video{}, false
	}
	if !allowReset {
		return domain.Video{}, false
	}
	s.log.Info().Str("creator", f.creatorID).Int("played", len(f.played)).Msg("feed: всё просмотрено, полный сброс истории")
	f.played = make(idSet)
	f.buildAll()
	metrics.FeedFullResets.Inc()
	return s.consume(f, false)
}

// Update подмешивает свежие данные источника в существующую ленту.
// Непустые блоки не трогаются; пустые перестраиваются, только если очередь
// опустилась до LowWaterMark. Возвращает число действительно новых роликов.
func (s *Scheduler) Update(data domain.CreatorData) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[data.Creator.ID]
	if !ok {
		return 0
	}
	return s.update(f, data)
}

func (s *Scheduler) update(f *creatorFeed, data domain.CreatorData) int {
	known := f.pools.ids()
	fresh := newPools(data)
	added := 0
	for id := range fresh.ids() {
		if !known.has(id) {
			added++
		}
	}
	f.pools = fresh
	if data.Creator.Name != "" {
		f.creatorName = data.Creator.Name
	}
	if f.queueLen() <= LowWaterMark {
		for i := range f.blocks {
			if len(f.blocks[i].videos) == 0 {
				s.regenerate(f, i)
			}
		}
	}
	s.log.Info().Str("creator", f.creatorID).Int("new", added).Int("pool", len(fresh.ids())).Int("queue", f.queueLen()).Msg("feed: данные обновлены")
	return added
}

// ForceRefresh перестраивает все блоки по порядку; каждый блок не берёт
// ролики, уже разложенные в этом проходе.
func (s *Scheduler) ForceRefresh(creatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.feeds[creatorID]; ok {
		s.refresh(f)
	}
}

func (s *Scheduler) refresh(f *creatorFeed) {
	for i := range f.blocks {
		f.blocks[i].videos = nil
	}
	for i := range f.blocks {
		s.regenerate(f, i)
	}
	s.log.Info().Str("creator", f.creatorID).Int("queue", f.queueLen()).Msg("feed: очередь перестроена")
}

// ResetHistory очищает историю просмотров и перестраивает очередь.
func (s *Scheduler) ResetHistory(creatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[creatorID]
	if !ok {
		return
	}
	f.played = make(idSet)
	s.log.Info().Str("creator", creatorID).Msg("feed: история просмотров очищена")
	s.refresh(f)
}

// Remove удаляет ленту автора.
func (s *Scheduler) Remove(creatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.feeds, creatorID)
	metrics.FeedsActive.Set(float64(len(s.feeds)))
	s.log.Info().Str("creator", creatorID).Msg("feed: лента удалена")
}

// Clear удаляет все ленты.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feeds = make(map[string]*creatorFeed)
	metrics.FeedsActive.Set(0)
	s.log.Info().Msg("feed: все ленты удалены")
}

// Feed возвращает снимок ленты автора.
func (s *Scheduler) Feed(creatorID string) (Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[creatorID]
	if !ok {
		return Feed{}, false
	}
	return f.snapshot(), true
}

func (f *creatorFeed) queueLen() int {
	n := 0
	for _, b := range f.blocks {
		n += len(b.videos)
	}
	return n
}

func (f *creatorFeed) head(limit int) []domain.Video {
	out := make([]domain.Video, 0, limit)
	for _, b := range f.blocks {
		for _, v := range b.videos {
			if len(out) == limit {
				return out
			}
			out = append(out, v)
		}
	}
	return out
}
