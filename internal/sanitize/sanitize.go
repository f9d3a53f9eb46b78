// Package sanitize normalizes and bounds raw chat input.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength bounds a chat message in characters.
const DefaultMaxLength = 500

// zeroWidthJoiner is the one format rune kept: emoji sequences need it.
const zeroWidthJoiner = '\u200d'

func strip(r rune) bool {
	if unicode.IsControl(r) {
		return true
	}
	return unicode.Is(unicode.Cf, r) && r != zeroWidthJoiner
}

// Input strips control and invisible format characters, trims surrounding
// whitespace and truncates to maxLength characters. Text is NFC-normalized first so a
// precomposed and a decomposed accent count the same. It never fails;
// blank input yields "".
func Input(raw string, maxLength int) string {
	if raw == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	s := norm.NFC.String(strings.ToValidUTF8(raw, ""))
	s = strings.Map(func(r rune) rune {
		if strip(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > maxLength {
		s = strings.TrimSpace(string(runes[:maxLength]))
	}
	return s
}
