// Package ollama generates replies through an Ollama server's /api/chat
// endpoint.
package ollama

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
	// DefaultModel is used when no model is configured.
	DefaultModel = "phi4-mini"

	defaultTemperature = 0.3
	defaultMaxTokens   = 120
	defaultContextSize = 2048
)

// Provider implements core.Provider against Ollama.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a provider for the server at baseURL.
func New(baseURL string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "ollama"
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

func (p *Provider) buildRequest(req *core.GenerateRequest) chatRequest {
	out := chatRequest{
		Model:  p.model,
		Stream: false,
		Options: chatOptions{
			Temperature: defaultTemperature,
			NumPredict:  defaultMaxTokens,
			NumCtx:      defaultContextSize,
		},
	}
	if req.Temperature > 0 {
		out.Options.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		out.Options.NumPredict = req.MaxTokens
	}
	if req.ContextSize > 0 {
		out.Options.NumCtx = req.ContextSize
	}

	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: string(types.RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
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

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", core.NewProviderError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", core.NewHTTPError(p.Name(), resp.StatusCode, b)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", core.NewProviderError(p.Name(), fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		return "", core.NewProviderError(p.Name(), fmt.Errorf("%s", out.Error))
	}
	text := strings.TrimSpace(out.Message.Content)
	if text == "" {
		return "", core.NewEmptyResponseError(p.Name())
	}
	return text, nil
}

var _ core.Provider = (*Provider)(nil)
