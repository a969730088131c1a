// Package utils provides shared utilities for text and logging.
package utils

import "unicode/utf8"

// Ellipsis is appended to truncated text.
const Ellipsis = "…"

// Truncate returns s cut to maxLen runes, with Ellipsis appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + Ellipsis
}
