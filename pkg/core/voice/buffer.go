// Package voice splits reply text into speakable segments.
package voice

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxSegmentChars bounds one synthesized segment.
const DefaultMaxSegmentChars = 120

const ellipsis = "…"

// SentenceBuffer accumulates text and extracts complete sentences.
type SentenceBuffer struct {
	buffer strings.Builder
}

// NewSentenceBuffer creates a new sentence buffer.
func NewSentenceBuffer() *SentenceBuffer {
	return &SentenceBuffer{}
}

// Add adds text to the buffer and returns any complete sentences.
func (b *SentenceBuffer) Add(text string) []string {
	b.buffer.WriteString(text)

	content := b.buffer.String()
	var sentences []string

	lastEnd := 0
	for i := 0; i < len(content); i++ {
		end, ok := sentenceEndAt(content, i)
		if !ok {
			continue
		}
		sentence := strings.TrimSpace(content[lastEnd:end])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		lastEnd = end
		i = end - 1
	}

	// Keep remainder in buffer
	if lastEnd > 0 {
		b.buffer.Reset()
		b.buffer.WriteString(content[lastEnd:])
	}

	return sentences
}

// Flush returns any remaining text and clears the buffer.
func (b *SentenceBuffer) Flush() string {
	result := strings.TrimSpace(b.buffer.String())
	b.buffer.Reset()
	return result
}

// Pending returns the current pending text without clearing.
func (b *SentenceBuffer) Pending() string {
	return b.buffer.String()
}

// SplitSentences splits text on sentence boundaries. Trailing text without
// terminal punctuation is returned as the last sentence.
func SplitSentences(text string) []string {
	b := NewSentenceBuffer()
	out := b.Add(text)
	if rest := b.Flush(); rest != "" {
		out = append(out, rest)
	}
	return out
}

// FirstSentences keeps the first n sentences of text. It reports whether
// anything was dropped.
func FirstSentences(text string, n int) (string, bool) {
	sentences := SplitSentences(text)
	if n <= 0 || len(sentences) <= n {
		return strings.Join(sentences, " "), false
	}
	return strings.Join(sentences[:n], " "), true
}

// SplitSegments splits text into sentences and further splits any sentence
// longer than maxChars on comma boundaries. Empty segments are dropped.
func SplitSegments(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxSegmentChars
	}
	var segments []string
	for _, s := range SplitSentences(text) {
		if utf8.RuneCountInString(s) <= maxChars {
			segments = append(segments, s)
			continue
		}
		segments = append(segments, splitClauses(s, maxChars)...)
	}
	return segments
}

// splitClauses packs comma-separated clauses into pieces of at most maxChars.
// A single clause over budget is split on spaces.
func splitClauses(s string, maxChars int) []string {
	var (
		out []string
		cur string
	)
	flush := func() {
		if c := strings.TrimSpace(cur); c != "" {
			out = append(out, c)
		}
		cur = ""
	}

	for _, clause := range splitKeep(s, ',') {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		if utf8.RuneCountInString(clause) > maxChars {
			flush()
			out = append(out, splitWords(clause, maxChars)...)
			continue
		}
		candidate := clause
		if cur != "" {
			candidate = cur + " " + clause
		}
		if utf8.RuneCountInString(candidate) > maxChars {
			flush()
			cur = clause
			continue
		}
		cur = candidate
	}
	flush()
	return out
}

func splitWords(s string, maxChars int) []string {
	var (
		out []string
		cur string
	)
	for _, w := range strings.Fields(s) {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if cur != "" && utf8.RuneCountInString(candidate) > maxChars {
			out = append(out, cur)
			cur = w
			continue
		}
		cur = candidate
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// splitKeep splits s after each sep, keeping sep on the left piece.
func splitKeep(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// sentenceEndAt reports whether a sentence ends at byte i and returns the
// index just past its terminal punctuation.
func sentenceEndAt(s string, i int) (int, bool) {
	end := -1
	switch {
	case s[i] == '!' || s[i] == '?':
		end = i + 1
	case strings.HasPrefix(s[i:], ellipsis):
		end = i + len(ellipsis)
	case s[i] == '.':
		if isAbbreviation(s, i) {
			return 0, false
		}
		end = i + 1
		// "..." ends once
		for end < len(s) && s[end] == '.' {
			end++
		}
	default:
		return 0, false
	}

	// Check there's whitespace or end of string after
	if end < len(s) && !isSpace(s[end]) {
		return 0, false
	}
	return end, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

// isAbbreviation checks if the period at position i is likely an abbreviation.
func isAbbreviation(s string, i int) bool {
	if i < 1 {
		return false
	}

	commonAbbreviations := []string{
		"Sr.", "Sra.", "Srta.", "Dr.", "Dra.", "Lic.", "Ing.",
		"Av.", "Jr.", "Nro.", "Núm.",
		"Dpto.", "Of.", "Ud.", "Uds.", "etc.", "aprox.",
		"a.m.", "p.m.", "S.A.", "S.A.C.",
	}

	// Get the word ending at i (including the period)
	start := i
	for start > 0 && !isSpace(s[start-1]) {
		start--
	}
	word := s[start : i+1]

	for _, abbr := range commonAbbreviations {
		if strings.EqualFold(word, abbr) {
			return true
		}
	}

	// Single uppercase letter followed by period (initials)
	if s[i-1] >= 'A' && s[i-1] <= 'Z' {
		if i < 2 || isSpace(s[i-2]) {
			return true
		}
	}

	return false
}
