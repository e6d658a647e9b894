package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"creator-feed/internal/adapters/repo"
	"creator-feed/internal/domain"
	"creator-feed/internal/infra/cache"
	"creator-feed/internal/infra/config"
	"creator-feed/internal/infra/db"
	httpinfra "creator-feed/internal/infra/http"
	applog "creator-feed/internal/infra/log"
	"creator-feed/internal/infra/metrics"
	"creator-feed/internal/infra/queue"
	"creator-feed/internal/usecase/creators"
	"creator-feed/internal/usecase/feed"
	"creator-feed/internal/usecase/playback"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := feed.NewScheduler(applog.Component(logger, "feed"))

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	var events domain.PlaybackQueue
	switch cfg.Playback.Backend {
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			logger.Fatal().Msg("api: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		rabbit, err := queue.NewRabbitPlaybackQueue(cfg.RabbitURL, cfg.Playback.QueueKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		events = rabbit
	case "redis":
		if rdb != nil {
			events = queue.NewRedisPlaybackQueue(rdb, cfg.Playback.QueueKey)
		} else {
			logger.Warn().Msg("api: REDIS_ADDR не задан, события применяются без очереди")
		}
	case "", "none":
	default:
		logger.Fatal().Str("backend", cfg.Playback.Backend).Msg("api: неизвестная очередь событий")
	}

	player := playback.NewService(scheduler, events, cfg.Playback.Period, cfg.Playback.MobilePeriod, applog.Component(logger, "player"))
	defer player.StopAll()

	if events != nil {
		var dedup domain.Cache
		if rdb != nil {
			dedup = cache.NewRedis(rdb, "feed")
		}
		worker := playback.NewWorker(events, dedup, player, cfg.Playback.EventDedupTTL, applog.Component(logger, "player"))
		go worker.Run(ctx)
	}

	var (
		recent httpinfra.Recent
		store  httpinfra.Store
	)
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к БД")
		}
		defer pool.Close()
		repoAdapter := repo.NewPostgres(pool)
		if err := repoAdapter.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось подготовить схему")
		}
		var recentStore domain.RecentCreators
		if rdb != nil {
			recentStore = cache.NewRedisRecent(rdb, "feed:recent_creators", cfg.Limits.RecentCreators)
		}
		creatorService := creators.NewService(repoAdapter, repoAdapter, feed.NewControl(scheduler), recentStore, cfg.Limits.FreeCreators, cfg.Limits.VideosPerPool, applog.Component(logger, "creators"))
		recent = creatorService
		store = creatorService

		warmCtx, cancel := context.WithTimeout(ctx, time.Minute)
		synced, err := creatorService.SyncAll(warmCtx)
		cancel()
		if err != nil {
			logger.Error().Err(err).Int("synced", synced).Msg("api: ленты восстановлены не полностью")
		} else {
			logger.Info().Int("synced", synced).Msg("api: ленты восстановлены из БД")
		}
	}

	srv := httpinfra.NewServer(applog.Component(logger, "http"))
	httpinfra.NewFeedAPI(scheduler, player, events, recent, store, applog.Component(logger, "api")).Mount(srv.Router)

	if cfg.MetricsAddr != "" && cfg.MetricsAddr != fmt.Sprintf(":%d", cfg.Port) {
		metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
