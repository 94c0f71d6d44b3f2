package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

func TestGenerate_SendsChatCompletion(t *testing.T) {
	var gotPath, gotAuth, gotReferer string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id":"chatcmpl_1",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" Claro, te ayudo. "}}]
		}`)
	}))
	defer server.Close()

	p := New("test-key",
		WithBaseURL(server.URL+"/v1/"),
		WithModel("llama-3.1-8b-instant"),
		WithExtraHeader("HTTP-Referer", "https://example.com"),
	)
	got, err := p.Generate(t.Context(), &core.GenerateRequest{
		System:    "Eres un asistente.",
		Messages:  []types.Message{types.UserMessage("hola")},
		MaxTokens: 60,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Claro, te ayudo." {
		t.Fatalf("reply = %q", got)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReferer != "https://example.com" {
		t.Fatalf("HTTP-Referer = %q", gotReferer)
	}
	if gotBody["model"] != "llama-3.1-8b-instant" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(60) {
		t.Fatalf("max_tokens = %v", gotBody["max_tokens"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
}

func TestGenerate_MaxCompletionTokensField(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer server.Close()

	p := New("k", WithBaseURL(server.URL), WithMaxTokensField(MaxTokensFieldMaxCompletionTokens))
	if _, err := p.Generate(t.Context(), &core.GenerateRequest{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := gotBody["max_tokens"]; ok {
		t.Fatalf("max_tokens should not be sent: %v", gotBody)
	}
	if gotBody["max_completion_tokens"] != float64(defaultMaxTokens) {
		t.Fatalf("max_completion_tokens = %v", gotBody["max_completion_tokens"])
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantTyp core.ErrorType
		wantMsg string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit_exceeded"}}`, wantTyp: core.ErrRateLimit, wantMsg: "openai: slow down"},
		{name: "bad key", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid key"}}`, wantTyp: core.ErrAuthentication, wantMsg: "openai: invalid key"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantTyp: core.ErrEmptyResponse},
		{name: "bad json", status: http.StatusOK, body: `{`, wantTyp: core.ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := New("k", WithBaseURL(server.URL)).Generate(t.Context(), &core.GenerateRequest{})
			var cerr *core.Error
			if !errors.As(err, &cerr) || cerr.Type != tt.wantTyp {
				t.Fatalf("err = %v, want type %s", err, tt.wantTyp)
			}
			if tt.wantMsg != "" && cerr.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", cerr.Message, tt.wantMsg)
			}
		})
	}
}

func TestNew_Name(t *testing.T) {
	if got := New("k").Name(); got != "openai" {
		t.Fatalf("Name() = %q", got)
	}
	if got := New("k", WithName("groq")).Name(); got != "groq" {
		t.Fatalf("Name() = %q", got)
	}
}
