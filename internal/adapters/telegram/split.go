// Package telegram содержит общие помощники для сообщений бота.
package telegram

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit — максимальная длина сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage делит текст на части не длиннее лимита Telegram.
// Карточки роликов разделены пустой строкой, поэтому сначала режем между
// абзацами, потом по строкам; строку без переводов режем по символам.
func SplitMessage(text string) []string {
	return splitLimit(text, MessageLimit)
}

func splitLimit(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
		}
		cur.Reset()
		curLen = 0
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Trim(para, "\n")
		if para == "" {
			continue
		}
		for _, piece := range fitLines(para, limit) {
			n := utf8.RuneCountInString(piece)
			if curLen > 0 && curLen+2+n > limit {
				flush()
			}
			if curLen > 0 {
				cur.WriteString("\n\n")
				curLen += 2
			}
			cur.WriteString(piece)
			curLen += n
		}
	}
	flush()
	return parts
}

// fitLines режет абзац длиннее limit по строкам.
func fitLines(para string, limit int) []string {
	if utf8.RuneCountInString(para) <= limit {
		return []string{para}
	}
	var out []string
	var cur strings.Builder
	curLen := 0
	for _, line := range strings.Split(para, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			if curLen > 0 {
				out = append(out, cur.String())
				cur.Reset()
				curLen = 0
			}
			out = append(out, string(runes[:limit]))
			runes = runes[limit:]
		}
		if curLen > 0 && curLen+1+len(runes) > limit {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(string(runes))
		curLen += len(runes)
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}
