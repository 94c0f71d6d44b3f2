// Package openai generates replies through an OpenAI-compatible
// /chat/completions endpoint. Groq and OpenRouter reuse it with their own
// base URLs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

const (
	// DefaultBaseURL is the OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	defaultTemperature = 0.3
	defaultMaxTokens   = 120
)

// Provider implements core.Provider against an OpenAI-compatible API.
type Provider struct {
	name           string
	apiKey         string
	baseURL        string
	model          string
	httpClient     *http.Client
	maxTokensField MaxTokensField
	extraHeaders   map[string]string
}

// New creates a new provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		name:           "openai",
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		model:          DefaultModel,
		httpClient:     &http.Client{},
		maxTokensField: MaxTokensFieldMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (p *Provider) buildRequest(req *core.GenerateRequest) map[string]any {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: string(types.RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	temperature := defaultTemperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	out := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": temperature,
		"stream":      false,
	}
	out[string(p.maxTokensField)] = maxTokens
	return out
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}
}

// parseError prefers the message from an OpenAI-style error body.
func (p *Provider) parseError(status int, body []byte) error {
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		cerr := core.NewHTTPError(p.name, status, body)
		cerr.Message = p.name + ": " + er.Error.Message
		if code, ok := er.Error.Code.(string); ok {
			cerr.Code = code
		}
		return cerr
	}
	return core.NewHTTPError(p.name, status, body)
}

// Generate implements core.Provider.
func (p *Provider) Generate(ctx context.Context, req *core.GenerateRequest) (string, error) {
	if req == nil {
		return "", core.NewInvalidRequestError("nil request")
	}
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", core.NewProviderError(p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", p.parseError(resp.StatusCode, b)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", core.NewProviderError(p.name, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", core.NewEmptyResponseError(p.name)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", core.NewEmptyResponseError(p.name)
	}
	return text, nil
}

var _ core.Provider = (*Provider)(nil)
