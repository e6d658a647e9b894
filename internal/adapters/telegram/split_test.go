package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitKeepsParagraphsTogether(t *testing.T) {
	parts := splitLimit("aaaa\n\nbbbb\n\ncccc", 10)

	want := []string{"aaaa\n\nbbbb", "cccc"}
	if strings.Join(parts, "|") != strings.Join(want, "|") {
		t.Fatalf("ожидали %q, получили %q", want, parts)
	}
}

func TestSplitLongParagraphByLines(t *testing.T) {
	parts := splitLimit("one\ntwo\nthree", 8)

	want := []string{"one\ntwo", "three"}
	if strings.Join(parts, "|") != strings.Join(want, "|") {
		t.Fatalf("ожидали %q, получили %q", want, parts)
	}
}

func TestSplitCutsLongLineByRunes(t *testing.T) {
	parts := splitLimit("абвгдежзий", 4)

	want := []string{"абвг", "дежз", "ий"}
	if strings.Join(parts, "|") != strings.Join(want, "|") {
		t.Fatalf("ожидали %q, получили %q", want, parts)
	}
}

func TestSplitMessageRespectsLimit(t *testing.T) {
	var cards []string
	for i := 0; i < 200; i++ {
		cards = append(cards, "<a href=\"https://www.youtube.com/watch?v=x\">Заголовок ролика</a>\n<i>12:00 (через 10 мин)</i> · VIDEO")
	}
	parts := SplitMessage(strings.Join(cards, "\n\n"))
	if len(parts) < 2 {
		t.Fatalf("ожидали несколько частей, получили %d", len(parts))
	}
	for i, part := range parts {
		if n := utf8.RuneCountInString(part); n > MessageLimit {
			t.Fatalf("часть %d длиннее лимита: %d", i, n)
		}
		if !strings.HasPrefix(part, "<a href") || !strings.HasSuffix(part, "VIDEO") {
			t.Fatalf("часть %d разрезала карточку: %q", i, part)
		}
	}
}

func TestSplitMessageShortText(t *testing.T) {
	parts := SplitMessage("  hello world \n")
	if len(parts) != 1 || parts[0] != "hello world" {
		t.Fatalf("ожидали одну часть, получили %q", parts)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("ожидали пустой результат, получили %d частей", len(parts))
	}
}
