// Package gemini generates replies with the Google Gemini API through the
// google.golang.org/genai SDK.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Provider implements core.Provider against Gemini.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	client *genai.Client
}

// New creates a Gemini provider. The SDK client is created eagerly so a bad
// key or endpoint surfaces at startup.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	p := &Provider{
		apiKey: strings.TrimSpace(apiKey),
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.apiKey == "" {
		return nil, core.NewInvalidRequestError("gemini: api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

// Generate implements core.Provider.
func (p *Provider) Generate(ctx context.Context, req *core.GenerateRequest) (string, error) {
	if req == nil {
		return "", core.NewInvalidRequestError("nil request")
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, toContents(req.Messages), buildConfig(req))
	if err != nil {
		return "", core.NewProviderError(p.Name(), err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", core.NewEmptyResponseError(p.Name())
	}
	return text, nil
}

func buildConfig(req *core.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

// toContents maps transcript turns to Gemini contents. Gemini has no system
// role in contents and calls the assistant "model"; a conversation that
// starts with the assistant's greeting is fine.
func toContents(msgs []types.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		switch m.Role {
		case types.RoleAssistant:
			role = genai.RoleModel
		case types.RoleSystem:
			continue
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

var _ core.Provider = (*Provider)(nil)
