package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCreatorNotFound возвращается, если автор не найден.
	ErrCreatorNotFound = errors.New("creator not found")
	// ErrFeedNotFound возвращается, если для автора нет ленты.
	ErrFeedNotFound = errors.New("feed not found")
)

// CreatorRepo управляет подписками на авторов.
type CreatorRepo interface {
	UpsertCreator(ctx context.Context, creator Creator) (Creator, error)
	GetCreator(ctx context.Context, creatorID string) (Creator, error)
	ListCreators(ctx context.Context, limit, offset int) ([]Creator, error)
	CountCreators(ctx context.Context) (int, error)
	DeleteCreator(ctx context.Context, creatorID string) error
	DeleteAll(ctx context.Context) error
}

// VideoRepo хранит ролики авторов.
type VideoRepo interface {
	SaveVideos(ctx context.Context, creatorID string, videos []Video) error
	// LoadCreatorData возвращает ролики автора по категориям, от новых к старым.
	LoadCreatorData(ctx context.Context, creator Creator, perCategory int) (CreatorData, error)
}

// FeedControl управляет лентами — локально или через HTTP API.
type FeedControl interface {
	Ingest(ctx context.Context, data CreatorData) error
	RemoveFeed(ctx context.Context, creatorID string) error
	ClearFeeds(ctx context.Context) error
}

// RecentCreators хранит недавно открытые авторы (самый свежий первым).
type RecentCreators interface {
	Touch(ctx context.Context, creatorID string) error
	List(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Cache выполняет действие не чаще одного раза за ttl.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
}
