// Package stringutil provides helpers for single-line text output.
package stringutil

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis flattens s to one line and shortens it to at most maxRunes runes,
// ending in "..." when something was cut. With maxRunes <= 3 the result is cut
// without the ellipsis; a negative maxRunes yields "".
func Ellipsis(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")

	if maxRunes < 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
