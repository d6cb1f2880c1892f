package middleware

import (
	"strings"
	"unicode/utf8"
)

const sessionIDVisible = 4

// MaskSessionID keeps a short prefix of a preview session id for log correlation.
// The hidden tail is capped so the mask does not leak the id length.
func MaskSessionID(id string) string {
	id = strings.TrimSpace(id)
	if utf8.RuneCountInString(id) <= sessionIDVisible {
		return strings.Repeat("*", sessionIDVisible)
	}
	r := []rune(id)
	return string(r[:sessionIDVisible]) + "***"
}
