package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	FeedAPIURL string `envconfig:"FEED_API_URL" default:"http://localhost:8080"`

	Limits struct {
		FreeCreators   int `envconfig:"FREE_CREATORS_LIMIT" default:"20"`
		RecentCreators int `envconfig:"RECENT_CREATORS_LIMIT" default:"5"`
		VideosPerPool  int `envconfig:"VIDEOS_PER_CATEGORY" default:"50"`
	} `envconfig:""`

	Playback struct {
		Backend       string        `envconfig:"PLAYBACK_BACKEND" default:"redis"`
		QueueKey      string        `envconfig:"PLAYBACK_QUEUE_KEY" default:"playback_events"`
		Period        time.Duration `envconfig:"AUTOPLAY_PERIOD" default:"10m"`
		MobilePeriod  time.Duration `envconfig:"AUTOPLAY_PERIOD_MOBILE" default:"5m"`
		EventDedupTTL time.Duration `envconfig:"EVENT_DEDUP_TTL" default:"1h"`
	} `envconfig:""`

	Sync struct {
		Interval time.Duration `envconfig:"SYNC_INTERVAL" default:"1m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг из окружения и возвращает ошибку вместо выхода.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
