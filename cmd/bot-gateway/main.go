package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"creator-feed/internal/adapters/bot"
	"creator-feed/internal/adapters/feedclient"
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
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "bot-gateway")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось подготовить схему")
	}

	feeds, err := feedclient.New(cfg.FeedAPIURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("некорректный FEED_API_URL")
	}

	var (
		recentStore domain.RecentCreators
		events      domain.PlaybackQueue
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		recentStore = cache.NewRedisRecent(rdb, "feed:recent_creators", cfg.Limits.RecentCreators)
		if cfg.Playback.Backend == "redis" {
			events = queue.NewRedisPlaybackQueue(rdb, cfg.Playback.QueueKey)
		}
	}
	if cfg.Playback.Backend == "rabbitmq" && cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitPlaybackQueue(cfg.RabbitURL, cfg.Playback.QueueKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		events = rabbit
	}

	creatorService := creators.NewService(repoAdapter, repoAdapter, feeds, recentStore, cfg.Limits.FreeCreators, cfg.Limits.VideosPerPool, applog.Component(logger, "creators"))

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	h := bot.NewHandler(botAPI, applog.Component(logger, "bot"), creatorService, feeds, events, cfg.Limits.FreeCreators)

	if cfg.Telegram.WebhookURL == "" {
		logger.Info().Msg("бот-гейтвей: TG_WEBHOOK_URL не задан, работаем через long polling")
		updates := botAPI.GetUpdatesChan(tgbotapi.NewUpdate(0))
		for {
			select {
			case <-ctx.Done():
				botAPI.StopReceivingUpdates()
				logger.Info().Msg("остановка бота")
				return
			case upd := <-updates:
				h.HandleUpdate(ctx, upd)
			}
		}
	}

	webhook, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("некорректный TG_WEBHOOK_URL")
	}
	if _, err := botAPI.Request(webhook); err != nil {
		logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
	}

	srv := httpinfra.NewServer(applog.Component(logger, "http"))
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		logger.Info().Msg("бот-гейтвей запущен")
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
