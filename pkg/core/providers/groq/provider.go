// Package groq implements the Groq API provider.
// Groq uses an OpenAI-compatible API, so this provider wraps the OpenAI provider
// with a different base URL and default model.
package groq

import (
	"context"
	"net/http"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/providers/openai"
)

const (
	// DefaultBaseURL is the Groq API endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is a small model fast enough for phone turns.
	DefaultModel = "llama-3.1-8b-instant"
)

// Provider implements the Groq API using the OpenAI-compatible client.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	inner      *openai.Provider
}

// New creates a new Groq provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	p.inner = openai.New(apiKey,
		openai.WithName("groq"),
		openai.WithBaseURL(p.baseURL),
		openai.WithHTTPClient(p.httpClient),
		openai.WithModel(p.model),
	)
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "groq"
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

// Generate implements core.Provider.
func (p *Provider) Generate(ctx context.Context, req *core.GenerateRequest) (string, error) {
	return p.inner.Generate(ctx, req)
}

var _ core.Provider = (*Provider)(nil)
