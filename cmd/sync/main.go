package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"creator-feed/internal/adapters/feedclient"
	"creator-feed/internal/adapters/repo"
	"creator-feed/internal/infra/config"
	"creator-feed/internal/infra/db"
	applog "creator-feed/internal/infra/log"
	"creator-feed/internal/infra/metrics"
	"creator-feed/internal/usecase/creators"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "sync")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("sync: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	feeds, err := feedclient.New(cfg.FeedAPIURL, feedclient.WithTimeout(30*time.Second))
	if err != nil {
		logger.Fatal().Err(err).Msg("sync: некорректный FEED_API_URL")
	}
	creatorService := creators.NewService(repoAdapter, repoAdapter, feeds, nil, cfg.Limits.FreeCreators, cfg.Limits.VideosPerPool, applog.Component(logger, "creators"))

	interval := cfg.Sync.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info().Dur("interval", interval).Msg("sync: старт")
	for {
		synced, err := creatorService.SyncAll(ctx)
		if err != nil {
			logger.Error().Err(err).Int("synced", synced).Msg("sync: не все ленты обновлены")
		} else {
			logger.Debug().Int("synced", synced).Msg("sync: ленты обновлены")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("sync: остановка")
			return
		case <-ticker.C:
		}
	}
}
