package openai

import (
	"net/http"
	"strings"
)

// Option configures the OpenAI-compatible provider.
type Option func(*Provider)

// MaxTokensField controls which max tokens field is sent for chat completions.
type MaxTokensField string

const (
	// MaxTokensFieldMaxTokens uses "max_tokens".
	MaxTokensFieldMaxTokens MaxTokensField = "max_tokens"
	// MaxTokensFieldMaxCompletionTokens uses "max_completion_tokens".
	MaxTokensFieldMaxCompletionTokens MaxTokensField = "max_completion_tokens"
)

// WithBaseURL sets a custom base URL (for compatible servers or testing).
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithName overrides the provider identifier reported in errors and logs.
func WithName(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.name = name
		}
	}
}

// WithMaxTokensField sets which max tokens field name to emit.
func WithMaxTokensField(field MaxTokensField) Option {
	return func(p *Provider) {
		if field != MaxTokensFieldMaxTokens && field != MaxTokensFieldMaxCompletionTokens {
			return
		}
		p.maxTokensField = field
	}
}

// WithExtraHeader sets one additional request header.
func WithExtraHeader(key, value string) Option {
	return func(p *Provider) {
		if key == "" || value == "" {
			return
		}
		if p.extraHeaders == nil {
			p.extraHeaders = make(map[string]string)
		}
		p.extraHeaders[key] = value
	}
}
