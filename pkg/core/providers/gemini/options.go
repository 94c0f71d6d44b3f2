package gemini

import "net/http"

// Option configures the Provider.
type Option func(*Provider)

// WithBaseURL overrides the Gemini API endpoint.
// Default: https://generativelanguage.googleapis.com/
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithModel sets the model name. Default: gemini-2.0-flash
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}
