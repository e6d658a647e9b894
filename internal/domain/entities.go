package domain

import "time"

// Category описывает тип контента автора.
type Category string

const (
	// CategoryShorts — короткие вертикальные ролики.
	CategoryShorts Category = "shorts"
	// CategoryVideos — обычные загрузки.
	CategoryVideos Category = "videos"
	// CategoryVODs — длинные записи трансляций.
	CategoryVODs Category = "vods"
)

// Categories перечисляет категории в порядке блоков ленты.
var Categories = [...]Category{CategoryShorts, CategoryVideos, CategoryVODs}

// Valid сообщает, известна ли категория.
func (c Category) Valid() bool {
	switch c {
	case CategoryShorts, CategoryVideos, CategoryVODs:
		return true
	}
	return false
}

// ParseCategory приводит строку к категории.
func ParseCategory(raw string) (Category, bool) {
	c := Category(raw)
	return c, c.Valid()
}

// Video представляет ролик автора. После получения из источника не изменяется.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url"`
	PublishedAt  time.Time `json:"published_at"`
	Category     Category  `json:"category"`
}

// Creator описывает автора, на которого подписан пользователь.
type Creator struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle,omitempty"`
	Name         string    `json:"name"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	AddedAt      time.Time `json:"added_at"`
}

// CreatorData — данные автора, разложенные по категориям.
// Каждый список упорядочен от новых к старым так, как его отдал источник.
type CreatorData struct {
	Creator Creator `json:"creator"`
	Shorts  []Video `json:"shorts"`
	Videos  []Video `json:"videos"`
	VODs    []Video `json:"vods"`
}

// Pool возвращает список роликов указанной категории.
func (d CreatorData) Pool(c Category) []Video {
	switch c {
	case CategoryShorts:
		return d.Shorts
	case CategoryVideos:
		return d.Videos
	case CategoryVODs:
		return d.VODs
	}
	return nil
}

// Total возвращает общее количество роликов во всех категориях.
func (d CreatorData) Total() int {
	return len(d.Shorts) + len(d.Videos) + len(d.VODs)
}
