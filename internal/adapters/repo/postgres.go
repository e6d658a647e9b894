package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.CreatorRepo = (*Postgres)(nil)
	_ domain.VideoRepo   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	for _, stmt := range schema {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
		if err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// UpsertCreator сохраняет автора. Пустые поля не затирают сохранённые значения.
func (p *Postgres) UpsertCreator(ctx context.Context, creator domain.Creator) (domain.Creator, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var out domain.Creator
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO creators (id, handle, name, thumbnail_url)
VALUES ($1,$2,$3,$4)
ON CONFLICT(id) DO UPDATE SET
	handle=COALESCE(NULLIF(EXCLUDED.handle, ''), creators.handle),
	name=COALESCE(NULLIF(EXCLUDED.name, ''), creators.name),
	thumbnail_url=COALESCE(NULLIF(EXCLUDED.thumbnail_url, ''), creators.thumbnail_url)
RETURNING id, handle, name, thumbnail_url, added_at
`, creator.ID, creator.Handle, creator.Name, creator.ThumbnailURL).Scan(&out.ID, &out.Handle, &out.Name, &out.ThumbnailURL, &out.AddedAt)
	metrics.ObserveNetworkRequest("postgres", "creators_upsert", "creators", start, err)
	return out, err
}

// GetCreator возвращает автора по идентификатору.
func (p *Postgres) GetCreator(ctx context.Context, creatorID string) (domain.Creator, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var c domain.Creator
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id, handle, name, thumbnail_url, added_at FROM creators WHERE id=$1`, creatorID).
		Scan(&c.ID, &c.Handle, &c.Name, &c.ThumbnailURL, &c.AddedAt)
	metrics.ObserveNetworkRequest("postgres", "creators_get", "creators", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Creator{}, domain.ErrCreatorNotFound
	}
	return c, err
}

// ListCreators возвращает авторов в порядке добавления.
func (p *Postgres) ListCreators(ctx context.Context, limit, offset int) ([]domain.Creator, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, handle, name, thumbnail_url, added_at
FROM creators
ORDER BY added_at, id
LIMIT $1 OFFSET $2
`, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "creators_list", "creators", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var creators []domain.Creator
	for rows.Next() {
		var c domain.Creator
		if err := rows.Scan(&c.ID, &c.Handle, &c.Name, &c.ThumbnailURL, &c.AddedAt); err != nil {
			return nil, err
		}
		creators = append(creators, c)
	}
	return creators, rows.Err()
}

// CountCreators считает авторов.
func (p *Postgres) CountCreators(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM creators`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "creators_count", "creators", start, err)
	return count, err
}

// DeleteCreator удаляет автора вместе с роликами.
func (p *Postgres) DeleteCreator(ctx context.Context, creatorID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM creators WHERE id=$1`, creatorID)
	metrics.ObserveNetworkRequest("postgres", "creators_delete", "creators", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCreatorNotFound
	}
	return nil
}

// DeleteAll удаляет всех авторов и ролики.
func (p *Postgres) DeleteAll(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `TRUNCATE videos, creators`)
	metrics.ObserveNetworkRequest("postgres", "creators_truncate", "creators", start, err)
	return err
}

// SaveVideos сохраняет ролики автора одной пачкой.
func (p *Postgres) SaveVideos(ctx context.Context, creatorID string, videos []domain.Video) error {
	if len(videos) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, v := range videos {
		if strings.TrimSpace(v.ID) == "" || !v.Category.Valid() {
			continue
		}
		batch.Queue(`
INSERT INTO videos (id, creator_id, title, thumbnail_url, published_at, category)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT(id) DO UPDATE SET title=EXCLUDED.title, thumbnail_url=EXCLUDED.thumbnail_url, category=EXCLUDED.category
`, v.ID, creatorID, v.Title, v.ThumbnailURL, v.PublishedAt.UTC(), string(v.Category))
	}
	if batch.Len() == 0 {
		return nil
	}
	start := time.Now()
	err := p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "videos_upsert_batch", "videos", start, err)
	if err != nil {
		return fmt.Errorf("save videos: %w", err)
	}
	return nil
}

// LoadCreatorData возвращает не больше perCategory свежих роликов каждой категории.
func (p *Postgres) LoadCreatorData(ctx context.Context, creator domain.Creator, perCategory int) (domain.CreatorData, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, title, thumbnail_url, published_at, category
FROM (
	SELECT v.*, ROW_NUMBER() OVER (PARTITION BY category ORDER BY published_at DESC, id) AS rn
	FROM videos v
	WHERE creator_id=$1
) ranked
WHERE rn <= $2
ORDER BY category, published_at DESC, id
`, creator.ID, perCategory)
	metrics.ObserveNetworkRequest("postgres", "videos_load_creator", "videos", start, err)
	if err != nil {
		return domain.CreatorData{}, err
	}
	defer rows.Close()

	data := domain.CreatorData{Creator: creator}
	for rows.Next() {
		var (
			v   domain.Video
			cat string
		)
		if err := rows.Scan(&v.ID, &v.Title, &v.ThumbnailURL, &v.PublishedAt, &cat); err != nil {
			return domain.CreatorData{}, err
		}
		category, ok := domain.ParseCategory(cat)
		if !ok {
			continue
		}
		v.Category = category
		switch v.Category {
		case domain.CategoryShorts:
			data.Shorts = append(data.Shorts, v)
		case domain.CategoryVideos:
			data.Videos = append(data.Videos, v)
		case domain.CategoryVODs:
			data.VODs = append(data.VODs, v)
		}
	}
	return data, rows.Err()
}
