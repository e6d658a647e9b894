package domain

import "testing"

func TestParseCategory(t *testing.T) {
	for _, raw := range []string{"shorts", "videos", "vods"} {
		if c, ok := ParseCategory(raw); !ok || string(c) != raw {
			t.Fatalf("%q: ожидали известную категорию, получили %q, %v", raw, c, ok)
		}
	}
	if _, ok := ParseCategory("streams"); ok {
		t.Fatalf("неизвестная категория не должна проходить")
	}
}
