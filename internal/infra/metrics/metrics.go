package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FeedsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feeds_active",
		Help: "Количество лент в памяти процесса",
	})
	FeedVideosConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_videos_consumed_total",
		Help: "Ролики, снятые с очереди, по блоку",
	}, []string{"category"})
	FeedBlockRegenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_block_regenerations_total",
		Help: "Перестроения блоков по категории и результату",
	}, []string{"category", "outcome"})
	FeedFullResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_full_resets_total",
		Help: "Полные сбросы истории просмотров",
	})

	PlaybackEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_events_total",
		Help: "Обработанные события воспроизведения",
	}, []string{"cause", "status"})
	AutoplaySessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autoplay_sessions",
		Help: "Активные сессии автопроигрывания",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FeedsActive,
		FeedVideosConsumed,
		FeedBlockRegenerations,
		FeedFullResets,
		PlaybackEventsTotal,
		AutoplaySessions,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveBlockRegeneration учитывает перестроение блока.
func ObserveBlockRegeneration(category, outcome string) {
	FeedBlockRegenerations.WithLabelValues(category, outcome).Inc()
}

// ObservePlaybackEvent учитывает обработанное событие воспроизведения.
func ObservePlaybackEvent(cause string, err error) {
	if cause == "" {
		cause = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	PlaybackEventsTotal.WithLabelValues(cause, status).Inc()
}
