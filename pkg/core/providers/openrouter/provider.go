// Package openrouter implements the OpenRouter API provider.
// OpenRouter is an OpenAI-compatible API that routes across many model providers.
package openrouter

import (
	"context"
	"net/http"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/providers/openai"
)

const (
	// DefaultBaseURL is the OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "meta-llama/llama-3.1-8b-instruct"
)

// Provider implements the OpenRouter API using an OpenAI-compatible interface.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	siteURL    string
	siteName   string
	inner      *openai.Provider
}

// New creates a new OpenRouter provider.
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
		openai.WithName("openrouter"),
		openai.WithBaseURL(p.baseURL),
		openai.WithHTTPClient(p.httpClient),
		openai.WithModel(p.model),
		openai.WithExtraHeader("HTTP-Referer", p.siteURL),
		openai.WithExtraHeader("X-Title", p.siteName),
	)
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openrouter"
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
