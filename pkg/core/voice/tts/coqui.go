package tts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CoquiProvider calls a Coqui TTS server's GET /api/tts endpoint, which
// returns WAV.
type CoquiProvider struct {
	baseURL    string
	speakerID  string
	httpClient *http.Client
}

// NewCoqui creates a Coqui provider for the server at baseURL.
func NewCoqui(baseURL string) *CoquiProvider {
	return NewCoquiWithClient(baseURL, &http.Client{})
}

// NewCoquiWithClient creates a Coqui provider with a custom HTTP client.
func NewCoquiWithClient(baseURL string, client *http.Client) *CoquiProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &CoquiProvider{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: client,
	}
}

// WithSpeaker selects a speaker on multi-speaker models.
func (c *CoquiProvider) WithSpeaker(id string) *CoquiProvider {
	c.speakerID = strings.TrimSpace(id)
	return c
}

// Name returns the provider identifier.
func (c *CoquiProvider) Name() string {
	return "coqui"
}

// Synthesize implements Provider.
func (c *CoquiProvider) Synthesize(ctx context.Context, text string) (*Synthesis, error) {
	q := url.Values{}
	q.Set("text", text)
	if c.speakerID != "" {
		q.Set("speaker_id", c.speakerID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	return doAudio(c.httpClient, req, c.Name(), "wav")
}

var _ Provider = (*CoquiProvider)(nil)
