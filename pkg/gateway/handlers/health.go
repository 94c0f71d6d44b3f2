package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Urzzard/Operador-IA/pkg/gateway/config"
	"github.com/Urzzard/Operador-IA/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ActiveCounter reports how many media streams are live.
type ActiveCounter interface {
	Count() int
}

// ReadyHandler fails while draining. Configuration gaps that only disable
// a feature are reported as warnings without failing readiness.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Calls     ActiveCounter
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		Draining       bool     `json:"draining"`
		ActiveCalls    int      `json:"active_calls"`
		LLMProvider    string   `json:"llm_provider"`
		TTSProvider    string   `json:"tts_provider"`
		Archive        string   `json:"archive"`
		OutboundCalls  bool     `json:"outbound_calls"`
		SignatureCheck bool     `json:"signature_check"`
		Warnings       []string `json:"warnings,omitempty"`
	}

	draining := h.Lifecycle.IsDraining()
	active := 0
	if h.Calls != nil {
		active = h.Calls.Count()
	}

	status := http.StatusOK
	if draining {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             !draining,
		Draining:       draining,
		ActiveCalls:    active,
		LLMProvider:    string(h.Config.LLMProvider),
		TTSProvider:    string(h.Config.TTSProvider),
		Archive:        string(h.Config.Archive),
		OutboundCalls:  h.Config.TwilioEnabled() && h.Config.TwilioFromNumber != "" && h.Config.WebhookBaseURL != "",
		SignatureCheck: h.Config.ValidateSignature,
		Warnings:       h.Config.Issues(),
	})
}
