package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"creator-feed/internal/domain"
	"creator-feed/internal/usecase/creators"
	"creator-feed/internal/usecase/feed"
	"creator-feed/internal/usecase/playback"
)

type fakeBot struct {
	sent      []tgbotapi.MessageConfig
	callbacks int
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.callbacks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) last() tgbotapi.MessageConfig {
	return b.sent[len(b.sent)-1]
}

type stubCreators struct {
	known     map[string]domain.Creator
	followErr error
	wiped     bool
	removed   []string
}

func (s *stubCreators) Follow(_ context.Context, input, name string) (domain.Creator, error) {
	if s.followErr != nil {
		return domain.Creator{}, s.followErr
	}
	c := domain.Creator{ID: input, Name: name}
	s.known[input] = c
	return c, nil
}

func (s *stubCreators) List(context.Context, int, int) ([]domain.Creator, error) {
	var out []domain.Creator
	for _, c := range s.known {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubCreators) Get(_ context.Context, input string) (domain.Creator, error) {
	c, ok := s.known[input]
	if !ok {
		return domain.Creator{}, domain.ErrCreatorNotFound
	}
	return c, nil
}

func (s *stubCreators) Unfollow(_ context.Context, id string) error {
	s.removed = append(s.removed, id)
	delete(s.known, id)
	return nil
}

func (s *stubCreators) WipeAll(context.Context) error {
	s.wiped = true
	return nil
}

type stubFeeds struct {
	queue   playback.QueueView
	ended   []domain.PlaybackEvent
	touched []string
	cleared bool
}

func (f *stubFeeds) Queue(context.Context, string) (playback.QueueView, error) {
	return f.queue, nil
}

func (f *stubFeeds) Play(_ context.Context, id string, surface playback.Surface) (playback.Playback, error) {
	if len(f.queue.Slots) == 0 {
		return playback.Playback{}, playback.ErrNothingToPlay
	}
	p := f.queue.Playback
	p.Active, p.Surface = true, surface
	return p, nil
}

func (f *stubFeeds) Stop(context.Context, string) error { return nil }

func (f *stubFeeds) Ended(_ context.Context, id, videoID string, cause domain.PlaybackCause) (string, error) {
	f.ended = append(f.ended, domain.PlaybackEvent{CreatorID: id, VideoID: videoID, Cause: cause})
	return "e1", nil
}

func (f *stubFeeds) Refresh(context.Context, string) (feed.Feed, error) {
	return feed.Feed{}, domain.ErrFeedNotFound
}

func (f *stubFeeds) Reset(context.Context, string) (feed.Feed, error) {
	return feed.Feed{Blocks: []feed.Block{{Videos: make([]domain.Video, 3)}}}, nil
}

func (f *stubFeeds) Stats(context.Context, string) (feed.FeedStats, error) {
	return feed.FeedStats{CreatorName: "Alpha", State: feed.StateActive}, nil
}

func (f *stubFeeds) Recent(context.Context) ([]domain.Creator, error) { return nil, nil }

func (f *stubFeeds) ClearRecent(context.Context) error {
	f.cleared = true
	f.touched = nil
	return nil
}

func (f *stubFeeds) Touch(_ context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

type stubEvents struct {
	events []domain.PlaybackEvent
	fail   error
}

func (q *stubEvents) Enqueue(_ context.Context, e domain.PlaybackEvent) error {
	if q.fail != nil {
		return q.fail
	}
	q.events = append(q.events, e)
	return nil
}

func (q *stubEvents) Receive(ctx context.Context) (domain.PlaybackEvent, domain.AckFunc, error) {
	return domain.PlaybackEvent{}, nil, errors.New("not implemented")
}

type fixture struct {
	handler  *Handler
	bot      *fakeBot
	creators *stubCreators
	feeds    *stubFeeds
}

func newFixture(events domain.PlaybackQueue) *fixture {
	bot := &fakeBot{}
	cs := &stubCreators{known: map[string]domain.Creator{"@alpha": {ID: "@alpha", Name: "Alpha"}}}
	fs := &stubFeeds{queue: playback.QueueView{Playback: playback.Playback{
		CreatorID: "@alpha",
		Slots: playback.BuildSlots([]domain.Video{
			{ID: "s1", Title: "First", Category: domain.CategoryShorts},
			{ID: "s2", Title: "Second", Category: domain.CategoryShorts},
		}, 10*time.Minute, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	}}}
	return &fixture{
		handler:  NewHandler(bot, zerolog.Nop(), cs, fs, events, 0),
		bot:      bot,
		creators: cs,
		feeds:    fs,
	}
}

func (f *fixture) send(text string) tgbotapi.MessageConfig {
	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 42},
	}})
	return f.bot.last()
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		in, cmd, args string
	}{
		{"/follow @alpha Alpha Show", "/follow", "@alpha Alpha Show"},
		{"/queue@creator_feed_bot  @alpha ", "/queue", "@alpha"},
		{"/LIST", "/list", ""},
		{"hello", "", "hello"},
	}
	for _, tc := range cases {
		cmd, args := splitCommand(tc.in)
		if cmd != tc.cmd || args != tc.args {
			t.Fatalf("%q: ожидали (%q, %q), получили (%q, %q)", tc.in, tc.cmd, tc.args, cmd, args)
		}
	}
}

func TestQueueSendsHTMLAndTouchesRecent(t *testing.T) {
	f := newFixture(nil)

	msg := f.send("/queue @alpha")

	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("ожидали HTML, получили %q", msg.ParseMode)
	}
	if !strings.Contains(msg.Text, "Сейчас · 12:00") || !strings.Contains(msg.Text, "<b>Alpha</b>") {
		t.Fatalf("неожиданный текст очереди: %s", msg.Text)
	}
	if len(f.feeds.touched) != 1 || f.feeds.touched[0] != "@alpha" {
		t.Fatalf("ожидали отметку в недавних, получили %v", f.feeds.touched)
	}
}

func TestQueueUnknownCreator(t *testing.T) {
	f := newFixture(nil)

	msg := f.send("/queue @ghost")

	if !strings.Contains(msg.Text, "не найден") {
		t.Fatalf("ожидали сообщение об отсутствии автора: %s", msg.Text)
	}
}

func TestNextEnqueuesSkipForCurrentVideo(t *testing.T) {
	events := &stubEvents{}
	f := newFixture(events)

	msg := f.send("/next @alpha")

	if len(events.events) != 1 {
		t.Fatalf("ожидали одно событие, получили %d", len(events.events))
	}
	e := events.events[0]
	if e.CreatorID != "@alpha" || e.VideoID != "s1" || e.Cause != domain.PlaybackCauseSkip {
		t.Fatalf("неожиданное событие: %+v", e)
	}
	if !strings.Contains(msg.Text, "Пропущено: First") || !strings.Contains(msg.Text, "Дальше: Second") {
		t.Fatalf("неожиданный ответ: %s", msg.Text)
	}
	if len(f.feeds.ended) != 0 {
		t.Fatalf("API не должен вызываться, если очередь доступна")
	}
}

func TestNextFallsBackToAPI(t *testing.T) {
	f := newFixture(&stubEvents{fail: errors.New("redis down")})

	f.send("/next @alpha")

	if len(f.feeds.ended) != 1 || f.feeds.ended[0].VideoID != "s1" {
		t.Fatalf("ожидали пропуск через API, получили %+v", f.feeds.ended)
	}
}

func TestPlayWithEmptyQueue(t *testing.T) {
	f := newFixture(nil)
	f.feeds.queue = playback.QueueView{}

	msg := f.send("/play @alpha")

	if !strings.Contains(msg.Text, "Очередь пуста") {
		t.Fatalf("ожидали сообщение о пустой очереди: %s", msg.Text)
	}
}

func TestFollowLimit(t *testing.T) {
	f := newFixture(nil)
	f.creators.followErr = creators.ErrCreatorLimit

	msg := f.send("/follow @beta")

	if !strings.Contains(msg.Text, "лимит") {
		t.Fatalf("ожидали сообщение о лимите: %s", msg.Text)
	}
}

func TestRefreshAndResetReplies(t *testing.T) {
	f := newFixture(nil)

	if msg := f.send("/refresh @alpha"); !strings.Contains(msg.Text, "Лента ещё не создана") {
		t.Fatalf("неожиданный ответ: %s", msg.Text)
	}
	if msg := f.send("/reset @alpha"); !strings.Contains(msg.Text, "в очереди 3 роликов") {
		t.Fatalf("неожиданный ответ: %s", msg.Text)
	}
}

func TestClearRecent(t *testing.T) {
	f := newFixture(nil)
	f.send("/queue @alpha")

	msg := f.send("/clear_recent")

	if !f.feeds.cleared || len(f.feeds.touched) != 0 {
		t.Fatalf("ожидали очистку недавних, получили %v", f.feeds.touched)
	}
	if !strings.Contains(msg.Text, "очищен") {
		t.Fatalf("неожиданный ответ: %s", msg.Text)
	}
}

func TestClearDataRequiresConfirmation(t *testing.T) {
	f := newFixture(nil)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.handler.now = func() time.Time { return now }

	f.send("/clear_data_confirm")
	if f.creators.wiped {
		t.Fatalf("данные не должны удаляться без запроса")
	}

	f.send("/clear_data")
	now = now.Add(6 * time.Minute)
	f.send("/clear_data_confirm")
	if f.creators.wiped {
		t.Fatalf("просроченное подтверждение не должно срабатывать")
	}

	f.send("/clear_data")
	f.send("/clear_data_confirm")
	if !f.creators.wiped {
		t.Fatalf("ожидали удаление данных")
	}
}

func TestCallbackUnfollow(t *testing.T) {
	f := newFixture(nil)

	f.handler.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    "unfollow:@alpha",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
	}})

	if f.bot.callbacks != 1 {
		t.Fatalf("ожидали ответ на callback")
	}
	if len(f.creators.removed) != 1 || f.creators.removed[0] != "@alpha" {
		t.Fatalf("ожидали отписку от @alpha, получили %v", f.creators.removed)
	}
}

func TestFormatStats(t *testing.T) {
	text := formatStats(feed.FeedStats{
		CreatorName:       "Alpha",
		State:             feed.StateDrained,
		PlayedVideosCount: 5,
		Blocks: []feed.BlockStats{
			{Index: 0, Category: domain.CategoryShorts, TargetSize: 10, CurrentSize: 0},
		},
		NextVideos: []feed.VideoBrief{{ID: "v9"}},
	})

	for _, want := range []string{"📊 Alpha", "Состояние: drained", "просмотрено: 5", "Блок 0 · shorts: 0/10", "1. v9"} {
		if !strings.Contains(text, want) {
			t.Fatalf("ожидали %q в:\n%s", want, text)
		}
	}
}
