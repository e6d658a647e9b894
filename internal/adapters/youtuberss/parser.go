// Package youtuberss разбирает Atom-ленту канала YouTube
// (https://www.youtube.com/feeds/videos.xml?channel_id=...) в данные автора.
// Сеть здесь не используется: ленту передают готовым потоком.
package youtuberss

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"creator-feed/internal/domain"
)

// ErrNoChannel — в ленте нет идентификатора канала.
var ErrNoChannel = errors.New("youtuberss: не найден идентификатор канала")

// Parse читает ленту и раскладывает ролики по категориям, новые первыми.
// Ролик со ссылкой /shorts/ попадает в shorts, остальные — в videos:
// признака записи трансляции в ленте нет.
func Parse(r io.Reader) (domain.CreatorData, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return domain.CreatorData{}, fmt.Errorf("youtuberss: разбор ленты: %w", err)
	}
	channelID := extValue(parsed.Extensions, "yt", "channelId")
	if channelID == "" {
		channelID = channelFromLink(parsed.Link)
	}
	if channelID == "" {
		return domain.CreatorData{}, ErrNoChannel
	}

	data := domain.CreatorData{Creator: domain.Creator{
		ID:   channelID,
		Name: strings.TrimSpace(parsed.Title),
	}}
	if data.Creator.Name == "" && parsed.Author != nil {
		data.Creator.Name = parsed.Author.Name
	}

	items := append([]*gofeed.Item(nil), parsed.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return published(items[i]).After(published(items[j]))
	})
	for _, item := range items {
		v, ok := toVideo(item)
		if !ok {
			continue
		}
		switch v.Category {
		case domain.CategoryShorts:
			data.Shorts = append(data.Shorts, v)
		default:
			data.Videos = append(data.Videos, v)
		}
	}
	return data, nil
}

func toVideo(item *gofeed.Item) (domain.Video, bool) {
	id := extValue(item.Extensions, "yt", "videoId")
	if id == "" {
		id = videoFromLink(item.Link)
	}
	if id == "" {
		return domain.Video{}, false
	}
	v := domain.Video{
		ID:          id,
		Title:       strings.TrimSpace(item.Title),
		PublishedAt: published(item),
		Category:    domain.CategoryVideos,
	}
	if strings.Contains(item.Link, "/shorts/") {
		v.Category = domain.CategoryShorts
	}
	v.ThumbnailURL = thumbnail(item)
	return v, true
}

func published(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func thumbnail(item *gofeed.Item) string {
	for _, group := range item.Extensions["media"]["group"] {
		for _, thumb := range group.Children["thumbnail"] {
			if u := thumb.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

func extValue(exts ext.Extensions, prefix, name string) string {
	for _, e := range exts[prefix][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

func channelFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("channel_id"); id != "" {
		return id
	}
	if rest, ok := strings.CutPrefix(u.Path, "/channel/"); ok {
		return strings.Trim(rest, "/")
	}
	return ""
}

func videoFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("v"); id != "" {
		return id
	}
	if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
		return strings.Trim(rest, "/")
	}
	return ""
}
