package playback

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

// Worker читает события воспроизведения из очереди и продвигает ленты.
type Worker struct {
	log      zerolog.Logger
	queue    domain.PlaybackQueue
	cache    domain.Cache
	player   *Service
	dedupTTL time.Duration
}

// NewWorker создаёт обработчик. cache может быть nil: тогда повторы не отсекаются.
func NewWorker(queue domain.PlaybackQueue, cache domain.Cache, player *Service, dedupTTL time.Duration, log zerolog.Logger) *Worker {
	if dedupTTL <= 0 {
		dedupTTL = time.Hour
	}
	return &Worker{log: log, queue: queue, cache: cache, player: player, dedupTTL: dedupTTL}
}

// Run обрабатывает события до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().Msg("player: запуск обработки очереди")
	for {
		event, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				w.log.Info().Msg("player: остановлен")
				return
			}
			w.log.Error().Err(err).Msg("player: ошибка чтения очереди")
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		if !w.handle(ctx, event, ack) && !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

// handle возвращает false, если событие возвращено в очередь.
func (w *Worker) handle(_ context.Context, event domain.PlaybackEvent, ack domain.AckFunc) bool {
	eventLog := w.log.With().
		Str("event_id", event.ID).
		Str("creator", event.CreatorID).
		Str("video", event.VideoID).
		Str("cause", string(event.Cause)).
		Logger()

	if event.ID == "" {
		eventLog.Error().Msg("player: событие без идентификатора, подтверждаем и пропускаем")
		w.ack(eventLog, ack, true)
		return true
	}

	applied := false
	process := func() error {
		var err error
		applied, err = w.player.HandleEvent(event)
		return err
	}
	var err error
	if w.cache != nil {
		err = w.cache.Once("playback:"+event.ID, w.dedupTTL, process)
	} else {
		err = process()
	}
	metrics.ObservePlaybackEvent(string(event.Cause), err)

	switch {
	case errors.Is(err, ErrInvalidEvent):
		eventLog.Error().Err(err).Msg("player: событие отброшено")
		w.ack(eventLog, ack, true)
		return true
	case err != nil:
		eventLog.Warn().Err(err).Msg("player: событие не обработано, повторим позже")
		w.ack(eventLog, ack, false)
		return false
	}
	if applied {
		eventLog.Debug().Msg("player: лента продвинута")
	} else {
		eventLog.Debug().Msg("player: событие устарело или уже обработано")
	}
	w.ack(eventLog, ack, true)
	return true
}

func (w *Worker) ack(log zerolog.Logger, ack domain.AckFunc, success bool) {
	if ack == nil {
		return
	}
	if err := ack(success); err != nil {
		log.Error().Err(err).Bool("success", success).Msg("player: не удалось подтвердить событие")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
