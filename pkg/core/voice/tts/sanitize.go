package tts

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("tts: empty text")

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Sanitize rewrites text into something a synthesizer reads well: URLs become
// "el portal del empleado", "RRHH" is spelled out and whitespace is collapsed.
func Sanitize(text string) string {
	text = urlPattern.ReplaceAllString(text, "el portal del empleado")
	text = strings.ReplaceAll(text, "RRHH", "recursos humanos")
	return strings.Join(strings.Fields(text), " ")
}

// SanitizingProvider sanitizes text before delegating. Text that sanitizes to
// nothing is not sent.
type SanitizingProvider struct {
	Provider
}

// WithSanitizer wraps p.
func WithSanitizer(p Provider) *SanitizingProvider {
	return &SanitizingProvider{Provider: p}
}

// Synthesize implements Provider.
func (s *SanitizingProvider) Synthesize(ctx context.Context, text string) (*Synthesis, error) {
	clean := Sanitize(text)
	if clean == "" {
		return nil, ErrEmptyText
	}
	return s.Provider.Synthesize(ctx, clean)
}
