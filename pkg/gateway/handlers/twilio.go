package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/gateway/lifecycle"
	"github.com/Urzzard/Operador-IA/pkg/gateway/telephony"
)

// Custom stream parameters passed from the voice webhook to the media
// stream's start event.
const (
	ParamPhone     = "phone"
	ParamDirection = "direction"
)

// Spoken when the bridge cannot take the call.
const unavailableText = "Lo sentimos, el asistente no está disponible en este momento. Por favor, intenta más tarde."

// TwilioWebhookHandler answers Twilio's voice webhook with TwiML that
// connects the call to the media stream.
type TwilioWebhookHandler struct {
	// StreamURL is the public wss:// URL of /media-stream. When empty it is
	// derived from the request host.
	StreamURL string
	Language  string
	Lifecycle *lifecycle.Lifecycle
	Logger    *slog.Logger
}

func (h TwilioWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeCoreError(w, r, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeCoreError(w, r, core.NewInvalidRequestError("invalid form body"), http.StatusBadRequest)
		return
	}

	callSID := r.Form.Get("CallSid")
	direction := r.Form.Get("Direction")
	// Outbound calls reach the employee at To; inbound calls come from From.
	phone := r.Form.Get("To")
	if strings.HasPrefix(direction, "inbound") {
		phone = r.Form.Get("From")
	}

	logger = logger.With("call_sid", callSID, "direction", direction)

	if h.Lifecycle.IsDraining() {
		logger.Info("refusing call while draining")
		h.writeUnavailable(w, logger)
		return
	}

	streamURL := h.StreamURL
	if streamURL == "" {
		var err error
		streamURL, err = telephony.StreamURL(requestBaseURL(r))
		if err != nil {
			logger.Error("derive stream url", "err", err)
			h.writeUnavailable(w, logger)
			return
		}
	}

	doc, err := telephony.ConnectStream(streamURL, map[string]string{
		ParamPhone:     phone,
		ParamDirection: direction,
	})
	if err != nil {
		logger.Error("render twiml", "err", err)
		h.writeUnavailable(w, logger)
		return
	}
	logger.Info("connecting call to media stream", "stream_url", streamURL)
	writeTwiML(w, doc)
}

func (h TwilioWebhookHandler) writeUnavailable(w http.ResponseWriter, logger *slog.Logger) {
	doc, err := telephony.SayAndHangup(unavailableText, sayLanguage(h.Language))
	if err != nil {
		logger.Error("render twiml", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}

func writeTwiML(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// sayLanguage maps a bare language code to the locale <Say> expects.
func sayLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "es":
		return "es-MX"
	case "en":
		return "en-US"
	default:
		return lang
	}
}

// requestBaseURL rebuilds the public origin, honouring a TLS-terminating proxy.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}

// CallCanceler ends a live call by SID.
type CallCanceler interface {
	Cancel(callSID string) bool
}

// CallStatusHandler receives Twilio's status callbacks. A terminal status
// cancels the call's media stream if it is still open.
type CallStatusHandler struct {
	Calls  CallCanceler
	Logger *slog.Logger
}

func (h CallStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Method != http.MethodPost {
		writeCoreError(w, r, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeCoreError(w, r, core.NewInvalidRequestError("invalid form body"), http.StatusBadRequest)
		return
	}

	callSID := r.PostForm.Get("CallSid")
	status := r.PostForm.Get("CallStatus")
	if callSID == "" || status == "" {
		writeCoreError(w, r, core.NewInvalidRequestError("CallSid and CallStatus are required"), http.StatusBadRequest)
		return
	}

	logger.Info("call status",
		"call_sid", callSID,
		"status", status,
		"duration", r.PostForm.Get("CallDuration"),
	)

	if telephony.IsTerminalStatus(status) && h.Calls != nil {
		if h.Calls.Cancel(callSID) {
			logger.Info("canceled media stream after terminal status", "call_sid", callSID, "status", status)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
