package creators

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"creator-feed/internal/domain"
	"creator-feed/internal/usecase/feed"
)

type stubRepo struct {
	creators map[string]domain.Creator
	videos   map[string][]domain.Video
	order    []string
}

func newStubRepo() *stubRepo {
	return &stubRepo{creators: map[string]domain.Creator{}, videos: map[string][]domain.Video{}}
}

func (s *stubRepo) UpsertCreator(_ context.Context, c domain.Creator) (domain.Creator, error) {
	if _, ok := s.creators[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.creators[c.ID] = c
	return c, nil
}

func (s *stubRepo) GetCreator(_ context.Context, id string) (domain.Creator, error) {
	c, ok := s.creators[id]
	if !ok {
		return domain.Creator{}, domain.ErrCreatorNotFound
	}
	return c, nil
}

func (s *stubRepo) ListCreators(_ context.Context, limit, offset int) ([]domain.Creator, error) {
	var out []domain.Creator
	for i := offset; i < len(s.order) && len(out) < limit; i++ {
		out = append(out, s.creators[s.order[i]])
	}
	return out, nil
}

func (s *stubRepo) CountCreators(context.Context) (int, error) { return len(s.creators), nil }

func (s *stubRepo) DeleteCreator(_ context.Context, id string) error {
	if _, ok := s.creators[id]; !ok {
		return domain.ErrCreatorNotFound
	}
	delete(s.creators, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubRepo) DeleteAll(context.Context) error {
	s.creators = map[string]domain.Creator{}
	s.videos = map[string][]domain.Video{}
	s.order = nil
	return nil
}

func (s *stubRepo) SaveVideos(_ context.Context, id string, videos []domain.Video) error {
	s.videos[id] = append(s.videos[id], videos...)
	return nil
}

func (s *stubRepo) LoadCreatorData(_ context.Context, c domain.Creator, _ int) (domain.CreatorData, error) {
	data := domain.CreatorData{Creator: c}
	for _, v := range s.videos[c.ID] {
		switch v.Category {
		case domain.CategoryShorts:
			data.Shorts = append(data.Shorts, v)
		case domain.CategoryVideos:
			data.Videos = append(data.Videos, v)
		case domain.CategoryVODs:
			data.VODs = append(data.VODs, v)
		}
	}
	return data, nil
}

type stubFeeds struct {
	ingested []domain.CreatorData
	removed  []string
	cleared  int
	fail     error
}

func (f *stubFeeds) Ingest(_ context.Context, data domain.CreatorData) error {
	if f.fail != nil {
		return f.fail
	}
	f.ingested = append(f.ingested, data)
	return nil
}

func (f *stubFeeds) RemoveFeed(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *stubFeeds) ClearFeeds(context.Context) error {
	f.cleared++
	return nil
}

type stubRecent struct {
	ids []string
}

func (r *stubRecent) Touch(_ context.Context, id string) error {
	out := []string{id}
	for _, v := range r.ids {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) > 5 {
		out = out[:5]
	}
	r.ids = out
	return nil
}

func (r *stubRecent) List(context.Context) ([]string, error) { return r.ids, nil }
func (r *stubRecent) Clear(context.Context) error           { r.ids = nil; return nil }

func newTestService(limit int) (*Service, *stubRepo, *stubFeeds, *stubRecent) {
	repo := newStubRepo()
	feeds := &stubFeeds{}
	recent := &stubRecent{}
	return NewService(repo, repo, feeds, recent, limit, 10, zerolog.Nop()), repo, feeds, recent
}

func TestParseHandle(t *testing.T) {
	cases := map[string]string{
		"@MrBeast":                      "@mrbeast",
		"  @some_creator ":              "@some_creator",
		"https://www.youtube.com/@Linus": "@linus",
		"youtube.com/@veritasium/":      "@veritasium",
		"https://youtube.com/channel/UCX6OQ3DkcsbYNE6H8uQQuVA": "UCX6OQ3DkcsbYNE6H8uQQuVA",
		"UCX6OQ3DkcsbYNE6H8uQQuVA":      "UCX6OQ3DkcsbYNE6H8uQQuVA",
		"@ab":                           "",
		"https://t.me/channel":          "",
		"":                              "",
	}
	for input, expected := range cases {
		key, err := ParseHandle(input)
		if expected == "" {
			if !errors.Is(err, ErrHandleInvalid) {
				t.Fatalf("ожидали ErrHandleInvalid для %q, получили %v", input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", input, err)
		}
		if key != expected {
			t.Fatalf("для %q ожидали %s, получили %s", input, expected, key)
		}
	}
}

func TestFollowRespectsLimit(t *testing.T) {
	svc, repo, feeds, _ := newTestService(2)
	ctx := context.Background()
	for _, id := range []string{"@first", "@second", "@third"} {
		repo.videos[id] = []domain.Video{{ID: id + "-v1", Category: domain.CategoryVideos}}
	}

	if _, err := svc.Follow(ctx, "@first", "First"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.Follow(ctx, "@second", ""); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.Follow(ctx, "@first", ""); err != nil {
		t.Fatalf("повторная подписка не должна упираться в лимит: %v", err)
	}
	if _, err := svc.Follow(ctx, "@third", ""); !errors.Is(err, ErrCreatorLimit) {
		t.Fatalf("ожидали ErrCreatorLimit, получили %v", err)
	}
	if len(feeds.ingested) != 2 {
		t.Fatalf("ожидали 2 ленты, получили %d", len(feeds.ingested))
	}
	if feeds.ingested[1].Creator.Name != "@second" {
		t.Fatalf("без имени автор называется по ключу, получили %q", feeds.ingested[1].Creator.Name)
	}
}

func TestIngestStoresVideosAndFeedsScheduler(t *testing.T) {
	svc, repo, feeds, _ := newTestService(0)
	ctx := context.Background()
	if _, err := svc.Follow(ctx, "@creator", "Creator"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	data := domain.CreatorData{
		Creator: domain.Creator{ID: "@creator"},
		Shorts:  []domain.Video{{ID: "s1"}},
		Videos:  []domain.Video{{ID: "v1", Category: domain.CategoryVideos}},
	}
	if err := svc.Ingest(ctx, data); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	stored := repo.videos["@creator"]
	if len(stored) != 2 || stored[0].Category != domain.CategoryShorts {
		t.Fatalf("ролики не сохранены с категорией: %+v", stored)
	}
	last := feeds.ingested[len(feeds.ingested)-1]
	if last.Creator.Name != "Creator" || last.Total() != 2 {
		t.Fatalf("лента получила не те данные: %+v", last)
	}
}

func TestIngestRegistersUnknownCreator(t *testing.T) {
	svc, repo, feeds, _ := newTestService(1)
	ctx := context.Background()
	_, _ = svc.Follow(ctx, "@busy", "")

	data := domain.CreatorData{
		Creator: domain.Creator{ID: "@fresh"},
		Shorts:  []domain.Video{{ID: "s1"}},
	}
	if err := svc.Ingest(ctx, data); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	c, ok := repo.creators["@fresh"]
	if !ok || c.Name != "@fresh" || c.Handle != "@fresh" {
		t.Fatalf("автор не зарегистрирован: %+v", c)
	}
	if len(repo.videos["@fresh"]) != 1 || len(feeds.ingested) != 1 {
		t.Fatalf("ролики не дошли до БД и ленты: videos=%v ingested=%d", repo.videos["@fresh"], len(feeds.ingested))
	}

	if err := svc.Ingest(ctx, domain.CreatorData{}); err == nil {
		t.Fatalf("ожидали ошибку для пустого идентификатора")
	}
}

func TestSyncKeepsIngestedPool(t *testing.T) {
	repo := newStubRepo()
	scheduler := feed.NewScheduler(zerolog.Nop())
	svc := NewService(repo, repo, feed.NewControl(scheduler), nil, 0, 10, zerolog.Nop())
	ctx := context.Background()
	if _, err := svc.Follow(ctx, "@someone", "Someone"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := scheduler.Feed("@someone"); ok {
		t.Fatalf("без роликов лента не должна создаваться")
	}

	data := domain.CreatorData{Creator: domain.Creator{ID: "@someone"}}
	for i := 1; i <= 5; i++ {
		data.Videos = append(data.Videos, domain.Video{ID: fmt.Sprintf("v%d", i), Category: domain.CategoryVideos})
	}
	if err := svc.Ingest(ctx, data); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	before, _ := scheduler.Feed("@someone")

	if _, err := svc.SyncAll(ctx); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	after, _ := scheduler.Feed("@someone")
	if after.PoolSize != before.PoolSize || after.PoolSize != 5 {
		t.Fatalf("синхронизация изменила пул: было %d, стало %d", before.PoolSize, after.PoolSize)
	}

	consumed := 0
	for i := 0; i < 5; i++ {
		if _, ok := scheduler.ConsumeNext("@someone"); ok {
			consumed++
		}
	}
	if consumed != 5 {
		t.Fatalf("ожидали 5 роликов, получили %d", consumed)
	}
}

func TestSyncSkipsCreatorsWithoutStoredVideos(t *testing.T) {
	repo := newStubRepo()
	scheduler := feed.NewScheduler(zerolog.Nop())
	control := feed.NewControl(scheduler)
	svc := NewService(repo, repo, control, nil, 0, 10, zerolog.Nop())
	ctx := context.Background()
	_, _ = svc.Follow(ctx, "@live", "")

	// лента пришла мимо БД
	_ = control.Ingest(ctx, domain.CreatorData{
		Creator: domain.Creator{ID: "@live"},
		Shorts:  []domain.Video{{ID: "s1", Category: domain.CategoryShorts}, {ID: "s2", Category: domain.CategoryShorts}},
	})

	synced, err := svc.SyncAll(ctx)
	if err != nil || synced != 0 {
		t.Fatalf("ожидали 0 синхронизаций без ошибок, получили %d, %v", synced, err)
	}
	snapshot, _ := scheduler.Feed("@live")
	if snapshot.PoolSize != 2 || snapshot.Len() != 2 {
		t.Fatalf("пул ленты затёрт: pool=%d len=%d", snapshot.PoolSize, snapshot.Len())
	}
}

func TestUnfollowRemovesFeed(t *testing.T) {
	svc, repo, feeds, _ := newTestService(0)
	ctx := context.Background()
	_, _ = svc.Follow(ctx, "@gone", "")

	if err := svc.Unfollow(ctx, "@gone"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := repo.creators["@gone"]; ok {
		t.Fatalf("автор должен быть удалён")
	}
	if len(feeds.removed) != 1 || feeds.removed[0] != "@gone" {
		t.Fatalf("лента не удалена: %v", feeds.removed)
	}
	if err := svc.Unfollow(ctx, "@gone"); !errors.Is(err, domain.ErrCreatorNotFound) {
		t.Fatalf("ожидали ErrCreatorNotFound, получили %v", err)
	}
}

func TestWipeAll(t *testing.T) {
	svc, repo, feeds, recent := newTestService(0)
	ctx := context.Background()
	_, _ = svc.Follow(ctx, "@one", "")
	_ = svc.Touch(ctx, "@one")

	if err := svc.WipeAll(ctx); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.creators) != 0 || feeds.cleared != 1 || len(recent.ids) != 0 {
		t.Fatalf("данные не очищены: creators=%d cleared=%d recent=%v", len(repo.creators), feeds.cleared, recent.ids)
	}
}

func TestSyncAllContinuesAfterFailure(t *testing.T) {
	svc, repo, feeds, _ := newTestService(0)
	ctx := context.Background()
	_, _ = svc.Follow(ctx, "@one", "")
	_, _ = svc.Follow(ctx, "@two", "")
	_, _ = svc.Follow(ctx, "@empty", "")
	repo.videos["@one"] = []domain.Video{{ID: "a", Category: domain.CategoryShorts}}
	repo.videos["@two"] = []domain.Video{{ID: "b", Category: domain.CategoryVODs}}
	feeds.ingested = nil

	synced, err := svc.SyncAll(ctx)
	if err != nil || synced != 2 {
		t.Fatalf("ожидали 2 синхронизации без ошибок, получили %d, %v", synced, err)
	}

	feeds.fail = errors.New("api down")
	synced, err = svc.SyncAll(ctx)
	if err == nil || synced != 0 {
		t.Fatalf("ожидали ошибку и 0 синхронизаций, получили %d, %v", synced, err)
	}
}

func TestRecentKeepsUnknownIDs(t *testing.T) {
	svc, _, _, _ := newTestService(0)
	ctx := context.Background()
	_, _ = svc.Follow(ctx, "@known", "Known")
	for _, id := range []string{"@known", "@deleted", "@known"} {
		_ = svc.Touch(ctx, id)
	}

	recent, err := svc.Recent(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var got []string
	for _, c := range recent {
		got = append(got, c.ID+"/"+c.Name)
	}
	expected := []string{"@known/Known", "@deleted/"}
	if len(got) != len(expected) || got[0] != expected[0] || got[1] != expected[1] {
		t.Fatalf("ожидали %v, получили %v", expected, got)
	}
}

func TestClearRecent(t *testing.T) {
	svc, _, _, _ := newTestService(0)
	ctx := context.Background()
	_ = svc.Touch(ctx, "@known")

	if err := svc.ClearRecent(ctx); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	recent, err := svc.Recent(ctx)
	if err != nil || len(recent) != 0 {
		t.Fatalf("ожидали пустой список, получили %v, %v", recent, err)
	}
}
