package feedclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"creator-feed/internal/domain"
	feedapi "creator-feed/internal/infra/http"
	"creator-feed/internal/usecase/feed"
	"creator-feed/internal/usecase/playback"
)

func newTestClient(t *testing.T) (*Client, *feed.Scheduler) {
	t.Helper()
	scheduler := feed.NewScheduler(zerolog.Nop())
	player := playback.NewService(scheduler, nil, time.Hour, time.Hour, zerolog.Nop())
	t.Cleanup(player.StopAll)

	srv := feedapi.NewServer(zerolog.Nop())
	feedapi.NewFeedAPI(scheduler, player, nil, nil, nil, zerolog.Nop()).Mount(srv.Router)
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)

	client, err := New(ts.URL, WithTimeout(2*time.Second))
	require.NoError(t, err)
	return client, scheduler
}

func creatorData(id string, shorts int) domain.CreatorData {
	data := domain.CreatorData{Creator: domain.Creator{ID: id, Name: "Creator " + id}}
	for i := 1; i <= shorts; i++ {
		data.Shorts = append(data.Shorts, domain.Video{ID: fmt.Sprintf("%s-s%d", id, i), Category: domain.CategoryShorts})
	}
	return data
}

func TestIngestAndQueue(t *testing.T) {
	client, scheduler := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Ingest(ctx, creatorData("@alpha", 3)))
	require.Equal(t, 3, scheduler.Len("@alpha"))

	queue, err := client.Queue(ctx, "@alpha")
	require.NoError(t, err)
	require.Equal(t, 3, queue.QueueLength)
	require.Equal(t, "@alpha-s1", queue.Slots[0].Video.ID)
	require.False(t, queue.Active)
}

func TestIngestRequiresCreatorID(t *testing.T) {
	client, _ := newTestClient(t)

	require.Error(t, client.Ingest(context.Background(), domain.CreatorData{}))
}

func TestNextAndEnded(t *testing.T) {
	client, scheduler := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Ingest(ctx, creatorData("@alpha", 3)))

	next, ok, err := client.Next(ctx, "@alpha")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "@alpha-s1", next.Video.ID)

	eventID, err := client.Ended(ctx, "@alpha", "", domain.PlaybackCauseSkip)
	require.NoError(t, err)
	require.NotEmpty(t, eventID)
	require.Equal(t, 1, scheduler.Len("@alpha"))

	_, ok, err = client.Next(ctx, "@ghost")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPlayMapsNothingToPlay(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Ingest(ctx, creatorData("@alpha", 2)))

	p, err := client.Play(ctx, "@alpha", playback.SurfaceMobile)
	require.NoError(t, err)
	require.True(t, p.Active)
	require.Equal(t, playback.SurfaceMobile, p.Surface)
	require.NoError(t, client.Stop(ctx, "@alpha"))

	_, err = client.Play(ctx, "@ghost", playback.SurfaceWeb)
	require.ErrorIs(t, err, playback.ErrNothingToPlay)
}

func TestRefreshResetStatsMapNotFound(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Ingest(ctx, creatorData("@alpha", 12)))

	refreshed, err := client.Refresh(ctx, "@alpha")
	require.NoError(t, err)
	require.Equal(t, 10, refreshed.Len())

	reset, err := client.Reset(ctx, "@alpha")
	require.NoError(t, err)
	require.Zero(t, reset.Played)

	stats, err := client.Stats(ctx, "@alpha")
	require.NoError(t, err)
	require.Equal(t, "Creator @alpha", stats.CreatorName)

	_, err = client.Refresh(ctx, "@ghost")
	require.ErrorIs(t, err, domain.ErrFeedNotFound)
	_, err = client.Stats(ctx, "@ghost")
	require.ErrorIs(t, err, domain.ErrFeedNotFound)
}

func TestRemoveAndClearFeeds(t *testing.T) {
	client, scheduler := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Ingest(ctx, creatorData("@alpha", 1)))
	require.NoError(t, client.Ingest(ctx, creatorData("@beta", 1)))

	require.NoError(t, client.RemoveFeed(ctx, "@alpha"))
	_, ok := scheduler.Feed("@alpha")
	require.False(t, ok)

	require.NoError(t, client.ClearFeeds(ctx))
	_, ok = scheduler.Feed("@beta")
	require.False(t, ok)
}

func TestRecentWithoutStoreIsEmpty(t *testing.T) {
	client, _ := newTestClient(t)

	creators, err := client.Recent(context.Background())
	require.NoError(t, err)
	require.Empty(t, creators)
	require.NoError(t, client.Touch(context.Background(), "@alpha"))
	require.NoError(t, client.ClearRecent(context.Background()))
}

func TestPlainTextErrorIsWrapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)
	client, err := New(ts.URL + "/base/")
	require.NoError(t, err)

	_, err = client.Queue(context.Background(), "@alpha")
	require.ErrorContains(t, err, "status=502")
	require.ErrorContains(t, err, "upstream exploded")
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
