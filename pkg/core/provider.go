package core

import (
	"context"

	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

// Provider generates the assistant's next turn from a system instruction and
// the ordered conversation so far.
type Provider interface {
	// Name returns the provider identifier (e.g., "ollama", "gemini").
	Name() string

	// Generate returns the reply text. An empty reply is reported as an error.
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}

// GenerateRequest is one reply-generation call.
type GenerateRequest struct {
	System   string
	Messages []types.Message

	// Generation options; zero means provider default.
	Temperature float64
	MaxTokens   int
	ContextSize int
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req *GenerateRequest) (string, error)

// Name implements Provider.
func (f ProviderFunc) Name() string { return "func" }

// Generate implements Provider.
func (f ProviderFunc) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	return f(ctx, req)
}
