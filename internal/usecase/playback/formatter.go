package playback

import (
	"fmt"
	"html"
	"strings"

	"creator-feed/internal/domain"
)

var categoryBadges = map[domain.Category]string{
	domain.CategoryShorts: "SHORTS",
	domain.CategoryVideos: "VIDEO",
	domain.CategoryVODs:   "VOD",
}

// WatchURL возвращает ссылку на ролик.
func WatchURL(v domain.Video) string {
	if v.Category == domain.CategoryShorts {
		return "https://www.youtube.com/shorts/" + v.ID
	}
	return "https://www.youtube.com/watch?v=" + v.ID
}

// FormatQueue формирует HTML-представление очереди автора для отправки пользователю.
func FormatQueue(creatorName string, p Playback) string {
	name := strings.TrimSpace(creatorName)
	if name == "" {
		name = p.CreatorID
	}
	var builder strings.Builder
	builder.WriteString("📺 <b>" + escapeHTML(name) + "</b>")
	if p.Active {
		builder.WriteString(" · автопроигрывание")
		if p.Period > 0 {
			builder.WriteString(fmt.Sprintf(", каждые %d мин", int(p.Period.Minutes())))
		}
	}
	if len(p.Slots) == 0 {
		builder.WriteString("\n\nОчередь пуста. Попробуйте /refresh или /reset.")
		return builder.String()
	}
	for _, slot := range p.Slots {
		title := strings.TrimSpace(slot.Video.Title)
		if title == "" {
			title = slot.Video.ID
		}
		badge := categoryBadges[slot.Video.Category]
		if badge == "" {
			badge = "VIDEO"
		}
		builder.WriteString(fmt.Sprintf("\n\n%d. <a href=\"%s\">%s</a>\n<i>%s</i> · %s",
			slot.Position+1,
			html.EscapeString(WatchURL(slot.Video)),
			escapeHTML(title),
			escapeHTML(slot.Label),
			badge,
		))
	}
	return builder.String()
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
