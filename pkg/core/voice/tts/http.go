package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Urzzard/Operador-IA/pkg/core"
)

// HTTPProvider posts {"text": ...} to a synthesis service that answers with
// audio/mpeg.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTP creates a provider for the service at baseURL.
func NewHTTP(baseURL string) *HTTPProvider {
	return NewHTTPWithClient(baseURL, &http.Client{})
}

// NewHTTPWithClient creates a provider with a custom HTTP client.
func NewHTTPWithClient(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (h *HTTPProvider) Name() string {
	return "http"
}

// Synthesize implements Provider.
func (h *HTTPProvider) Synthesize(ctx context.Context, text string) (*Synthesis, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	return doAudio(h.httpClient, req, h.Name(), "mp3")
}

func doAudio(client *http.Client, req *http.Request, provider, format string) (*Synthesis, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, core.NewProviderError(provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewHTTPError(provider, resp.StatusCode, b)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(provider, err)
	}
	if len(audio) == 0 {
		return nil, core.NewEmptyResponseError(provider)
	}
	return &Synthesis{Audio: audio, Format: format}, nil
}

var _ Provider = (*HTTPProvider)(nil)
