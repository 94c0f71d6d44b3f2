package stt

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FilterTranscript returns the trimmed NFC transcript, or "" when it contains
// a character outside Latin letters, digits, whitespace and basic punctuation.
// Whisper tends to emit CJK, Cyrillic or symbol runs on silence and line noise.
func FilterTranscript(text string) string {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return ""
	}
	hasWordChar, afterLatin := false, false
	for _, r := range text {
		latin := unicode.Is(unicode.Latin, r)
		switch {
		case latin:
			hasWordChar = true
		case unicode.Is(unicode.Mn, r) && afterLatin:
			// a combining accent with no precomposed form
			latin = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			hasWordChar = true
		case unicode.IsSpace(r):
		case strings.ContainsRune(allowedPunctuation, r):
		default:
			return ""
		}
		afterLatin = latin
	}
	if !hasWordChar {
		return ""
	}
	return text
}

const allowedPunctuation = ".,;:¿?¡!'\"-()…«»"
