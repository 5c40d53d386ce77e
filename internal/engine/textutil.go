package engine

import (
	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent strings used across HTTP clients and the audio decoder.
const (
	UserAgentBot    = "GoBilisum/1.0"
	UserAgentChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	BilibiliReferer = "https://www.bilibili.com/"
)

// Ellipsis marks text that was cut short.
const Ellipsis = "..."

// TruncateChars keeps the first n runes of s and appends Ellipsis when s was longer.
// The boolean reports whether truncation happened.
func TruncateChars(s string, n int) (string, bool) {
	if n <= 0 {
		return s, false
	}
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]) + Ellipsis, true
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// TruncateAtWord truncates a string to maxLen runes at a word boundary.
func TruncateAtWord(s string, maxLen int) string {
	return strutil.TruncateAtWord(s, maxLen)
}
