package common

import "unicode/utf8"

// Truncate clips s to at most max bytes without splitting a multibyte
// rune. Persisted snippets and prompt text must stay valid UTF-8.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
