package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"creator-feed/internal/domain"
	"creator-feed/internal/usecase/feed"
	"creator-feed/internal/usecase/playback"
)

// Коды ошибок API.
const (
	CodeBadRequest    = "bad_request"
	CodeFeedNotFound  = "feed_not_found"
	CodeNothingToPlay = "nothing_to_play"
	CodeInternal      = "internal"
)

// Scheduler — операции планировщика лент, которые отдаёт API.
type Scheduler interface {
	Ingest(data domain.CreatorData) (feed.Feed, bool, int)
	Feed(creatorID string) (feed.Feed, bool)
	ForceRefresh(creatorID string)
	ResetHistory(creatorID string)
	Remove(creatorID string)
	Clear()
	Stats(creatorID string) (feed.FeedStats, bool)
}

// Player — автопроигрывание.
type Player interface {
	Start(creatorID string, surface playback.Surface) (playback.Playback, error)
	Advance(creatorID string) (domain.Video, playback.Playback, bool)
	HandleEvent(event domain.PlaybackEvent) (bool, error)
	Queue(creatorID string) playback.Playback
	Stop(creatorID string)
	StopAll()
}

// Recent — недавно открытые авторы.
type Recent interface {
	Touch(ctx context.Context, creatorID string) error
	Recent(ctx context.Context) ([]domain.Creator, error)
	ClearRecent(ctx context.Context) error
}

// Store сохраняет ролики до того, как они попадут в ленту.
type Store interface {
	Save(ctx context.Context, data domain.CreatorData) (domain.CreatorData, error)
}

// FeedAPI обслуживает /api/v1.
type FeedAPI struct {
	feeds  Scheduler
	player Player
	events domain.PlaybackQueue
	recent Recent
	store  Store
	log    zerolog.Logger
}

// NewFeedAPI создаёт обработчики. events, recent и store могут быть nil.
func NewFeedAPI(feeds Scheduler, player Player, events domain.PlaybackQueue, recent Recent, store Store, log zerolog.Logger) *FeedAPI {
	return &FeedAPI{feeds: feeds, player: player, events: events, recent: recent, store: store, log: log}
}

// Mount регистрирует маршруты.
func (a *FeedAPI) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/feeds", func(r chi.Router) {
			r.Delete("/", a.clearFeeds)
			r.Route("/{creatorID}", func(r chi.Router) {
				r.Put("/", a.ingest)
				r.Delete("/", a.removeFeed)
				r.Get("/queue", a.queue)
				r.Post("/play", a.play)
				r.Post("/stop", a.stop)
				r.Post("/next", a.next)
				r.Post("/ended", a.ended)
				r.Post("/refresh", a.refresh)
				r.Post("/reset", a.reset)
				r.Get("/stats", a.stats)
			})
		})
		r.Get("/creators/recent", a.listRecent)
		r.Delete("/creators/recent", a.clearRecent)
		r.Post("/creators/{creatorID}/touch", a.touch)
	})
}

// IngestResponse — ответ на PUT /feeds/{creatorID}.
type IngestResponse struct {
	Created     bool       `json:"created"`
	Added       int        `json:"added"`
	QueueLength int        `json:"queue_length"`
	State       feed.State `json:"state"`
}

func (a *FeedAPI) ingest(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "creatorID")
	defer r.Body.Close()
	var data domain.CreatorData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if data.Creator.ID != "" && data.Creator.ID != creatorID {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "creator id mismatch")
		return
	}
	data.Creator.ID = creatorID

	if a.store != nil {
		saved, err := a.store.Save(r.Context(), data)
		if err != nil {
			a.internal(w, err, "save")
			return
		}
		data = saved
	}
	snapshot, created, added := a.feeds.Ingest(data)
	resp := IngestResponse{
		Created:     created,
		Added:       added,
		QueueLength: snapshot.Len(),
		State:       snapshot.State,
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (a *FeedAPI) queue(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "creatorID")
	snapshot, _ := a.feeds.Feed(creatorID)
	resp := playback.QueueView{Playback: a.player.Queue(creatorID), QueueLength: snapshot.Len(), State: snapshot.State}
	if resp.State == "" {
		resp.State = feed.StateEmpty
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *FeedAPI) play(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "creatorID")
	p, err := a.player.Start(creatorID, playback.ParseSurface(r.URL.Query().Get("surface")))
	if errors.Is(err, playback.ErrNothingToPlay) {
		writeError(w, http.StatusConflict, CodeNothingToPlay, err.Error())
		return
	}
	if err != nil {
		a.internal(w, err, "play")
		return
	}
	if a.recent != nil {
		if err := a.recent.Touch(r.Context(), creatorID); err != nil {
			a.log.Warn().Err(err).Str("creator", creatorID).Msg("api: не удалось обновить недавних")
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *FeedAPI) stop(w http.ResponseWriter, r *http.Request) {
	a.player.Stop(chi.URLParam(r, "creatorID"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *FeedAPI) next(w http.ResponseWriter, r *http.Request) {
	video, p, ok := a.player.Advance(chi.URLParam(r, "creatorID"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, playback.NextView{Video: video, Playback: p})
}

// EndedRequest сообщает о завершении или пропуске ролика.
type EndedRequest struct {
	VideoID string               `json:"video_id"`
	Cause   domain.PlaybackCause `json:"cause"`
}

func (a *FeedAPI) ended(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "creatorID")
	req := EndedRequest{Cause: domain.PlaybackCauseEnded}
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
			return
		}
	}
	if req.Cause == "" {
		req.Cause = domain.PlaybackCauseEnded
	}
	if req.Cause != domain.PlaybackCauseEnded && req.Cause != domain.PlaybackCauseSkip {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "cause must be ended or skip")
		return
	}
	event := domain.NewPlaybackEvent(creatorID, strings.TrimSpace(req.VideoID), req.Cause)
	if a.events != nil {
		if err := a.events.Enqueue(r.Context(), event); err != nil {
			a.internal(w, err, "enqueue")
			return
		}
	} else if _, err := a.player.HandleEvent(event); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"event_id": event.ID})
}

func (a *FeedAPI) refresh(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "creatorID")
	if !a.exists(w, creatorID) {
		return
	}
	a.feeds.ForceRefresh(creatorID)
	a.writeFeed(w, creatorID)
}

func (a *FeedAPI) reset(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "creatorID")
	if !a.exists(w, creatorID) {
		return
	}
	a.feeds.ResetHistory(creatorID)
	a.writeFeed(w, creatorID)
}

func (a *FeedAPI) stats(w http.ResponseWriter, r *http.Request) {
	stats, ok := a.feeds.Stats(chi.URLParam(r, "creatorID"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeFeedNotFound, "feed not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *FeedAPI) removeFeed(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "creatorID")
	a.player.Stop(creatorID)
	a.feeds.Remove(creatorID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *FeedAPI) clearFeeds(w http.ResponseWriter, r *http.Request) {
	a.player.StopAll()
	a.feeds.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (a *FeedAPI) listRecent(w http.ResponseWriter, r *http.Request) {
	if a.recent == nil {
		writeJSON(w, http.StatusOK, []domain.Creator{})
		return
	}
	creators, err := a.recent.Recent(r.Context())
	if err != nil {
		a.internal(w, err, "recent")
		return
	}
	writeJSON(w, http.StatusOK, creators)
}

func (a *FeedAPI) clearRecent(w http.ResponseWriter, r *http.Request) {
	if a.recent != nil {
		if err := a.recent.ClearRecent(r.Context()); err != nil {
			a.internal(w, err, "clear_recent")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *FeedAPI) touch(w http.ResponseWriter, r *http.Request) {
	if a.recent != nil {
		if err := a.recent.Touch(r.Context(), chi.URLParam(r, "creatorID")); err != nil {
			a.internal(w, err, "touch")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *FeedAPI) exists(w http.ResponseWriter, creatorID string) bool {
	if _, ok := a.feeds.Feed(creatorID); !ok {
		writeError(w, http.StatusNotFound, CodeFeedNotFound, "feed not found")
		return false
	}
	return true
}

func (a *FeedAPI) writeFeed(w http.ResponseWriter, creatorID string) {
	snapshot, _ := a.feeds.Feed(creatorID)
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *FeedAPI) internal(w http.ResponseWriter, err error, op string) {
	a.log.Error().Err(err).Str("op", op).Msg("api: внутренняя ошибка")
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
