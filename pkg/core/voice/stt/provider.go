// Package stt provides speech-to-text functionality.
package stt

import (
	"context"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts a WAV utterance to text.
	Transcribe(ctx context.Context, wav []byte, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Language string // ISO language code (default: "es")
	Task     string // "transcribe" or "translate" (default: "transcribe")
}

// Transcript is the result of transcription.
type Transcript struct {
	Text     string // Full transcribed text
	Language string // Detected or specified language
}

func (o TranscribeOptions) withDefaults() TranscribeOptions {
	if o.Language == "" {
		o.Language = "es"
	}
	if o.Task == "" {
		o.Task = "transcribe"
	}
	return o
}
