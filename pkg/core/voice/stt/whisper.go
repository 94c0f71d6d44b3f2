package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/Urzzard/Operador-IA/pkg/core"
)

// WhisperProvider talks to a whisper-asr-webservice instance.
type WhisperProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewWhisper creates a Whisper provider for the service at baseURL.
func NewWhisper(baseURL string) *WhisperProvider {
	return NewWhisperWithClient(baseURL, &http.Client{})
}

// NewWhisperWithClient creates a Whisper provider with a custom HTTP client.
func NewWhisperWithClient(baseURL string, client *http.Client) *WhisperProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &WhisperProvider{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (w *WhisperProvider) Name() string {
	return "whisper"
}

type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe uploads the utterance as multipart form field "audio_file".
func (w *WhisperProvider) Transcribe(ctx context.Context, wav []byte, opts TranscribeOptions) (*Transcript, error) {
	opts = opts.withDefaults()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	q := url.Values{}
	q.Set("task", opts.Task)
	q.Set("language", opts.Language)
	q.Set("output", "json")
	reqURL := w.baseURL + "/asr?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError(w.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewHTTPError(w.Name(), resp.StatusCode, body)
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	lang := out.Language
	if lang == "" {
		lang = opts.Language
	}
	return &Transcript{
		Text:     strings.TrimSpace(out.Text),
		Language: lang,
	}, nil
}

var _ Provider = (*WhisperProvider)(nil)
