package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// CleanFileName replaces characters that are unsafe in file names.
func CleanFileName(input string) string {
	cleaned := unsafeChars.ReplaceAllString(input, "_")

	cleaned = strings.TrimSpace(cleaned)

	return cleaned
}

// Excerpt truncates s to at most max runes for use in warnings and error
// messages, collapsing interior whitespace.
func Excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
