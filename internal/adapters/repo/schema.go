package repo

// schema применяется при старте; каждый оператор идемпотентен.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS creators (
		id            TEXT PRIMARY KEY,
		handle        TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		added_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS videos (
		id            TEXT PRIMARY KEY,
		creator_id    TEXT NOT NULL REFERENCES creators(id) ON DELETE CASCADE,
		title         TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		published_at  TIMESTAMPTZ NOT NULL,
		category      TEXT NOT NULL CHECK (category IN ('shorts', 'videos', 'vods'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_videos_creator_category ON videos(creator_id, category, published_at DESC)`,
}
