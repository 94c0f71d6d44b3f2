package ollama

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

func TestGenerate_SendsChatRequest(t *testing.T) {
	var gotPath string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"phi4-mini","message":{"role":"assistant","content":" El horario es de 9 a 6. "},"done":true}`)
	}))
	defer server.Close()

	p := New(server.URL+"/", WithModel("llama3.2"))
	got, err := p.Generate(t.Context(), &core.GenerateRequest{
		System:    "Eres un asistente.",
		Messages:  []types.Message{types.AssistantMessage("¿Eres Ana?"), types.UserMessage("¿horario?")},
		MaxTokens: 80,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "El horario es de 9 a 6." {
		t.Fatalf("reply = %q", got)
	}
	if gotPath != "/api/chat" {
		t.Fatalf("path = %q, want /api/chat", gotPath)
	}
	if gotBody.Model != "llama3.2" || gotBody.Stream {
		t.Fatalf("model=%q stream=%v", gotBody.Model, gotBody.Stream)
	}
	if len(gotBody.Messages) != 3 || gotBody.Messages[0].Role != "system" || gotBody.Messages[2].Content != "¿horario?" {
		t.Fatalf("messages = %+v", gotBody.Messages)
	}
	if gotBody.Options.NumPredict != 80 || gotBody.Options.NumCtx != defaultContextSize {
		t.Fatalf("options = %+v", gotBody.Options)
	}
}

func TestGenerate_ContextSizeOverride(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"Sí."}}`)
	}))
	defer server.Close()

	p := New(server.URL)
	if _, err := p.Generate(t.Context(), &core.GenerateRequest{
		Messages:    []types.Message{types.UserMessage("hola")},
		ContextSize: 4096,
	}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gotBody.Options.NumCtx != 4096 {
		t.Fatalf("num_ctx = %d, want 4096", gotBody.Options.NumCtx)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantTyp core.ErrorType
	}{
		{name: "non-2xx", status: http.StatusInternalServerError, body: `{"error":"model not loaded"}`, wantTyp: core.ErrAPI},
		{name: "empty content", status: http.StatusOK, body: `{"message":{"role":"assistant","content":"  "}}`, wantTyp: core.ErrEmptyResponse},
		{name: "error field", status: http.StatusOK, body: `{"error":"oops"}`, wantTyp: core.ErrProvider},
		{name: "bad json", status: http.StatusOK, body: `{`, wantTyp: core.ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := New(server.URL).Generate(t.Context(), &core.GenerateRequest{})
			var cerr *core.Error
			if !errors.As(err, &cerr) || cerr.Type != tt.wantTyp {
				t.Fatalf("err = %v, want type %s", err, tt.wantTyp)
			}
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	p := New(server.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	if _, err := p.Generate(t.Context(), &core.GenerateRequest{}); err == nil {
		t.Fatal("expected timeout error")
	}
}
