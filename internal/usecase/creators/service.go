package creators

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"creator-feed/internal/domain"
)

var (
	ErrCreatorLimit  = errors.New("превышен лимит авторов")
	ErrHandleInvalid = errors.New("некорректный адрес автора")
)

var (
	handleRegex  = regexp.MustCompile(`(?i)^(?:https?://)?(?:(?:www|m)\.)?(?:youtube\.com/)?@([a-z0-9._-]{3,30})/?$`)
	channelRegex = regexp.MustCompile(`(?i)^(?:https?://)?(?:(?:www|m)\.)?youtube\.com/channel/(UC[a-z0-9_-]{22})/?$`)
	rawIDRegex   = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
)

const pageSize = 100

// Service управляет авторами, на которых подписан пользователь.
type Service struct {
	repo        domain.CreatorRepo
	videos      domain.VideoRepo
	feeds       domain.FeedControl
	recent      domain.RecentCreators
	limit       int
	perCategory int
	log         zerolog.Logger
}

// NewService создаёт сервис авторов. limit <= 0 снимает ограничение.
func NewService(repo domain.CreatorRepo, videos domain.VideoRepo, feeds domain.FeedControl, recent domain.RecentCreators, limit, perCategory int, log zerolog.Logger) *Service {
	if perCategory <= 0 {
		perCategory = 50
	}
	return &Service{repo: repo, videos: videos, feeds: feeds, recent: recent, limit: limit, perCategory: perCategory, log: log}
}

// ParseHandle приводит ввод пользователя к ключу автора:
// "@handle" в нижнем регистре или идентификатор канала "UC...".
func ParseHandle(input string) (string, error) {
	trim := strings.TrimSpace(input)
	if rawIDRegex.MatchString(trim) {
		return trim, nil
	}
	if m := channelRegex.FindStringSubmatch(trim); len(m) == 2 {
		return "UC" + m[1][2:], nil
	}
	if m := handleRegex.FindStringSubmatch(trim); len(m) == 2 {
		return "@" + strings.ToLower(m[1]), nil
	}
	return "", ErrHandleInvalid
}

// Follow подписывает на автора и передаёт в ленту его сохранённые ролики, если они есть.
// Повторная подписка на того же автора лимит не расходует.
func (s *Service) Follow(ctx context.Context, input, name string) (domain.Creator, error) {
	key, err := ParseHandle(input)
	if err != nil {
		return domain.Creator{}, err
	}
	existing, err := s.repo.GetCreator(ctx, key)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, domain.ErrCreatorNotFound):
		return domain.Creator{}, fmt.Errorf("получение автора: %w", err)
	}
	count, err := s.repo.CountCreators(ctx)
	if err != nil {
		return domain.Creator{}, fmt.Errorf("подсчёт авторов: %w", err)
	}
	if s.limit > 0 && count >= s.limit {
		return domain.Creator{}, ErrCreatorLimit
	}
	creator := domain.Creator{ID: key, Name: strings.TrimSpace(name)}
	if strings.HasPrefix(key, "@") {
		creator.Handle = key
	}
	if creator.Name == "" {
		creator.Name = key
	}
	saved, err := s.repo.UpsertCreator(ctx, creator)
	if err != nil {
		return domain.Creator{}, fmt.Errorf("сохранение автора: %w", err)
	}
	if _, err := s.push(ctx, saved); err != nil {
		return saved, err
	}
	s.log.Info().Str("creator", saved.ID).Msg("creators: подписка оформлена")
	return saved, nil
}

// List возвращает авторов в порядке подписки.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Creator, error) {
	return s.repo.ListCreators(ctx, limit, offset)
}

// Get возвращает автора по ключу или вводу пользователя.
func (s *Service) Get(ctx context.Context, input string) (domain.Creator, error) {
	key, err := ParseHandle(input)
	if err != nil {
		key = strings.TrimSpace(input)
	}
	return s.repo.GetCreator(ctx, key)
}

// Unfollow удаляет автора и его ленту.
func (s *Service) Unfollow(ctx context.Context, creatorID string) error {
	if err := s.repo.DeleteCreator(ctx, creatorID); err != nil {
		return fmt.Errorf("удаление автора: %w", err)
	}
	if err := s.feeds.RemoveFeed(ctx, creatorID); err != nil {
		return fmt.Errorf("удаление ленты: %w", err)
	}
	s.log.Info().Str("creator", creatorID).Msg("creators: подписка удалена")
	return nil
}

// WipeAll удаляет все данные: авторов, ролики, ленты и недавние.
func (s *Service) WipeAll(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("очистка БД: %w", err)
	}
	if err := s.feeds.ClearFeeds(ctx); err != nil {
		return fmt.Errorf("очистка лент: %w", err)
	}
	if s.recent != nil {
		if err := s.recent.Clear(ctx); err != nil {
			return fmt.Errorf("очистка недавних: %w", err)
		}
	}
	s.log.Warn().Msg("creators: все данные удалены")
	return nil
}

// Save сохраняет свежие ролики автора и возвращает данные, готовые для ленты:
// с категориями и именем из БД. Неизвестный автор регистрируется без учёта лимита.
func (s *Service) Save(ctx context.Context, data domain.CreatorData) (domain.CreatorData, error) {
	if strings.TrimSpace(data.Creator.ID) == "" {
		return domain.CreatorData{}, errors.New("пустой идентификатор автора")
	}
	creator, err := s.repo.GetCreator(ctx, data.Creator.ID)
	switch {
	case errors.Is(err, domain.ErrCreatorNotFound):
		creator = data.Creator
		if strings.TrimSpace(creator.Name) == "" {
			creator.Name = creator.ID
		}
		if strings.HasPrefix(creator.ID, "@") {
			creator.Handle = creator.ID
		}
		if creator, err = s.repo.UpsertCreator(ctx, creator); err != nil {
			return domain.CreatorData{}, fmt.Errorf("сохранение автора: %w", err)
		}
		s.log.Info().Str("creator", creator.ID).Msg("creators: автор добавлен источником")
	case err != nil:
		return domain.CreatorData{}, fmt.Errorf("получение автора: %w", err)
	}
	for _, c := range domain.Categories {
		pool := data.Pool(c)
		for i := range pool {
			if pool[i].Category == "" {
				pool[i].Category = c
			}
		}
		if err := s.videos.SaveVideos(ctx, creator.ID, pool); err != nil {
			return domain.CreatorData{}, fmt.Errorf("сохранение роликов %s: %w", c, err)
		}
	}
	if data.Creator.Name == "" {
		data.Creator.Name = creator.Name
	}
	return data, nil
}

// Ingest сохраняет свежие ролики автора и передаёт их в ленту.
func (s *Service) Ingest(ctx context.Context, data domain.CreatorData) error {
	data, err := s.Save(ctx, data)
	if err != nil {
		return err
	}
	if err := s.feeds.Ingest(ctx, data); err != nil {
		return fmt.Errorf("обновление ленты: %w", err)
	}
	s.log.Debug().Str("creator", data.Creator.ID).Int("videos", data.Total()).Msg("creators: ролики приняты")
	return nil
}

// SyncAll передаёт сохранённые ролики всех авторов в ленты.
// Авторы без сохранённых роликов пропускаются. Ошибка одного автора не
// останавливает остальных; возвращается число переданных лент.
func (s *Service) SyncAll(ctx context.Context) (int, error) {
	synced := 0
	var errs []error
	for offset := 0; ; offset += pageSize {
		page, err := s.repo.ListCreators(ctx, pageSize, offset)
		if err != nil {
			return synced, fmt.Errorf("список авторов: %w", err)
		}
		for _, creator := range page {
			if err := ctx.Err(); err != nil {
				return synced, err
			}
			pushed, err := s.push(ctx, creator)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if pushed {
				synced++
			}
		}
		if len(page) < pageSize {
			break
		}
	}
	return synced, errors.Join(errs...)
}

// push передаёт сохранённые ролики автора в ленту. Пустой набор не
// передаётся: Update с ним затёр бы пул уже живой ленты.
func (s *Service) push(ctx context.Context, creator domain.Creator) (bool, error) {
	data, err := s.videos.LoadCreatorData(ctx, creator, s.perCategory)
	if err != nil {
		return false, fmt.Errorf("ролики автора %s: %w", creator.ID, err)
	}
	if data.Total() == 0 {
		s.log.Debug().Str("creator", creator.ID).Msg("creators: сохранённых роликов нет, лента не трогается")
		return false, nil
	}
	if err := s.feeds.Ingest(ctx, data); err != nil {
		return false, fmt.Errorf("лента автора %s: %w", creator.ID, err)
	}
	return true, nil
}

// Touch отмечает, что пользователь открыл автора.
func (s *Service) Touch(ctx context.Context, creatorID string) error {
	if s.recent == nil {
		return nil
	}
	return s.recent.Touch(ctx, creatorID)
}

// Recent возвращает недавно открытых авторов, свежий первым.
// Удалённые из БД авторы возвращаются только с идентификатором.
func (s *Service) Recent(ctx context.Context) ([]domain.Creator, error) {
	if s.recent == nil {
		return []domain.Creator{}, nil
	}
	ids, err := s.recent.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Creator, 0, len(ids))
	for _, id := range ids {
		c, err := s.repo.GetCreator(ctx, id)
		switch {
		case err == nil:
			out = append(out, c)
		case errors.Is(err, domain.ErrCreatorNotFound):
			out = append(out, domain.Creator{ID: id})
		default:
			return nil, err
		}
	}
	return out, nil
}

// ClearRecent очищает список недавних.
func (s *Service) ClearRecent(ctx context.Context) error {
	if s.recent == nil {
		return nil
	}
	return s.recent.Clear(ctx)
}
