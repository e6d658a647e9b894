// Package playback ведёт сессии автопроигрывания поверх лент авторов.
//
// Текущий ролик сессии — голова очереди; он снимается с ленты, когда ролик
// досмотрен, пропущен или сработал таймер. Таймеры живут здесь, а не в ленте.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

var (
	// ErrNothingToPlay возвращается, если у автора пустая очередь.
	ErrNothingToPlay = errors.New("нет роликов для воспроизведения")
	// ErrInvalidEvent — событие нельзя обработать ни сейчас, ни при повторе.
	ErrInvalidEvent = errors.New("некорректное событие воспроизведения")
)

// Surface — клиент, на котором идёт воспроизведение.
type Surface string

const (
	SurfaceWeb    Surface = "web"
	SurfaceMobile Surface = "mobile"
)

// ParseSurface приводит строку к Surface; неизвестное значение даёт web.
func ParseSurface(raw string) Surface {
	if Surface(raw) == SurfaceMobile {
		return SurfaceMobile
	}
	return SurfaceWeb
}

// Feeds — то, что сервису нужно от планировщика лент.
type Feeds interface {
	Preview(creatorID string) []domain.Video
	ConsumeNext(creatorID string) (domain.Video, bool)
}

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

type session struct {
	surface Surface
	current string
	timer   stopper
	gen     uint64
}

// Service управляет сессиями автопроигрывания.
type Service struct {
	feeds   Feeds
	events  domain.PlaybackQueue
	periods map[Surface]time.Duration
	log     zerolog.Logger

	now   func() time.Time
	after afterFunc

	mu       sync.Mutex
	sessions map[string]*session
	gen      uint64
}

// NewService создаёт сервис. Если events задан, срабатывание таймера
// публикуется в очередь событий; иначе лента продвигается сразу.
func NewService(feeds Feeds, events domain.PlaybackQueue, webPeriod, mobilePeriod time.Duration, log zerolog.Logger) *Service {
	return &Service{
		feeds:  feeds,
		events: events,
		periods: map[Surface]time.Duration{
			SurfaceWeb:    webPeriod,
			SurfaceMobile: mobilePeriod,
		},
		log:      log,
		now:      time.Now,
		after:    realAfterFunc,
		sessions: make(map[string]*session),
	}
}

// Period возвращает интервал автопереключения для клиента.
func (s *Service) Period(surface Surface) time.Duration {
	return s.periods[ParseSurface(string(surface))]
}

// Start запускает автопроигрывание автора. Повторный Start перезапускает сессию.
func (s *Service) Start(creatorID string, surface Surface) (Playback, error) {
	surface = ParseSurface(string(surface))

	s.mu.Lock()
	defer s.mu.Unlock()

	preview := s.feeds.Preview(creatorID)
	if len(preview) == 0 {
		s.stopLocked(creatorID)
		return Playback{}, ErrNothingToPlay
	}
	sess, ok := s.sessions[creatorID]
	if !ok {
		sess = &session{}
		s.sessions[creatorID] = sess
		metrics.AutoplaySessions.Set(float64(len(s.sessions)))
	}
	sess.surface = surface
	sess.current = preview[0].ID
	s.armLocked(creatorID, sess)

	s.log.Info().Str("creator", creatorID).Str("surface", string(surface)).Str("video", sess.current).Msg("playback: сессия запущена")
	return s.playbackLocked(creatorID, preview), nil
}

// Advance снимает текущий ролик с ленты. Если очередь ещё не пуста, таймер
// взводится для следующего ролика; иначе сессия закрывается.
// false означает, что снимать было нечего.
func (s *Service) Advance(creatorID string) (domain.Video, Playback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.advanceLocked(creatorID)
}

func (s *Service) advanceLocked(creatorID string) (domain.Video, Playback, bool) {
	finished, ok := s.feeds.ConsumeNext(creatorID)
	preview := s.feeds.Preview(creatorID)

	if sess, active := s.sessions[creatorID]; active {
		if len(preview) == 0 {
			s.stopLocked(creatorID)
			s.log.Info().Str("creator", creatorID).Msg("playback: очередь пуста, сессия закрыта")
		} else {
			sess.current = preview[0].ID
			s.armLocked(creatorID, sess)
		}
	}
	if ok {
		s.log.Debug().Str("creator", creatorID).Str("finished", finished.ID).Msg("playback: ролик завершён")
	}
	return finished, s.playbackLocked(creatorID, preview), ok
}

// HandleEvent применяет событие воспроизведения. Событие о ролике, который
// уже не текущий, считается устаревшим и пропускается (false, nil).
func (s *Service) HandleEvent(event domain.PlaybackEvent) (bool, error) {
	if event.CreatorID == "" {
		return false, fmt.Errorf("%w: пустой автор", ErrInvalidEvent)
	}
	switch event.Cause {
	case domain.PlaybackCauseEnded, domain.PlaybackCauseTimer, domain.PlaybackCauseSkip:
	default:
		return false, fmt.Errorf("%w: причина %q", ErrInvalidEvent, event.Cause)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, active := s.sessions[event.CreatorID]
	switch {
	case active && event.VideoID != "" && event.VideoID != sess.current:
		return false, nil
	case !active && event.Cause == domain.PlaybackCauseTimer:
		return false, nil
	case !active && event.VideoID != "":
		preview := s.feeds.Preview(event.CreatorID)
		if len(preview) == 0 || preview[0].ID != event.VideoID {
			return false, nil
		}
	}
	_, _, ok := s.advanceLocked(event.CreatorID)
	return ok, nil
}

// Restart заново отсчитывает период для текущего ролика, не трогая ленту.
func (s *Service) Restart(creatorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[creatorID]
	if !ok {
		return false
	}
	s.armLocked(creatorID, sess)
	return true
}

// Stop закрывает сессию автора.
func (s *Service) Stop(creatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(creatorID)
}

// StopAll закрывает все сессии; используется при остановке процесса.
func (s *Service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.sessions {
		s.stopLocked(id)
	}
}

// Queue возвращает ближайшие ролики с расписанием. Без активной сессии
// расписание считается для web.
func (s *Service) Queue(creatorID string) Playback {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playbackLocked(creatorID, s.feeds.Preview(creatorID))
}

func (s *Service) stopLocked(creatorID string) {
	sess, ok := s.sessions[creatorID]
	if !ok {
		return
	}
	if sess.timer != nil {
		sess.timer.Stop()
	}
	delete(s.sessions, creatorID)
	metrics.AutoplaySessions.Set(float64(len(s.sessions)))
}

func (s *Service) armLocked(creatorID string, sess *session) {
	if sess.timer != nil {
		sess.timer.Stop()
	}
	s.gen++
	gen := s.gen
	sess.gen = gen
	sess.timer = s.after(s.Period(sess.surface), func() { s.fire(creatorID, gen) })
}

func (s *Service) fire(creatorID string, gen uint64) {
	s.mu.Lock()
	sess, ok := s.sessions[creatorID]
	if !ok || sess.gen != gen {
		s.mu.Unlock()
		return
	}
	videoID := sess.current
	if s.events == nil {
		s.advanceLocked(creatorID)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event := domain.NewPlaybackEvent(creatorID, videoID, domain.PlaybackCauseTimer)
	if err := s.events.Enqueue(ctx, event); err != nil {
		s.log.Error().Err(err).Str("creator", creatorID).Msg("playback: не удалось отправить событие таймера, переключаем сразу")
		if _, err := s.HandleEvent(event); err != nil {
			s.log.Error().Err(err).Str("creator", creatorID).Str("video", videoID).Msg("playback: событие таймера не применено")
		}
	}
}

func (s *Service) playbackLocked(creatorID string, preview []domain.Video) Playback {
	out := Playback{CreatorID: creatorID, Surface: SurfaceWeb}
	if sess, ok := s.sessions[creatorID]; ok {
		out.Active = true
		out.Surface = sess.surface
	}
	out.Period = s.Period(out.Surface)
	out.Slots = BuildSlots(preview, out.Period, s.now())
	return out
}
