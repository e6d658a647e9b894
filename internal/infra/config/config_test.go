package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.AppEnv)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 5, cfg.Limits.RecentCreators)
	require.Equal(t, "redis", cfg.Playback.Backend)
	require.Equal(t, 10*time.Minute, cfg.Playback.Period)
	require.Equal(t, 5*time.Minute, cfg.Playback.MobilePeriod)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("AUTOPLAY_PERIOD", "90s")
	t.Setenv("PLAYBACK_BACKEND", "rabbitmq")
	t.Setenv("FREE_CREATORS_LIMIT", "3")

	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.Playback.Period)
	require.Equal(t, "rabbitmq", cfg.Playback.Backend)
	require.Equal(t, 3, cfg.Limits.FreeCreators)
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "soon")

	_, err := Parse()
	require.Error(t, err)
}
