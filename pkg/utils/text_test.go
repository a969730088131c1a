package utils

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if got := Truncate("hello world", 5); got != "hello…" {
		t.Errorf("got %s", got)
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestTruncate_countsRunes(t *testing.T) {
	s := strings.Repeat("é", 200)
	if got := Truncate(s, 200); got != s {
		t.Error("exactly maxLen runes should not be truncated")
	}
	got := Truncate(s+"é", 200)
	if !strings.HasSuffix(got, Ellipsis) {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, Ellipsis))); n != 200 {
		t.Errorf("kept %d runes, want 200", n)
	}
}
