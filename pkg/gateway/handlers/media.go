package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/gateway/lifecycle"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/bridge"
	"github.com/Urzzard/Operador-IA/pkg/gateway/ratelimit"
)

// StreamServer runs one media stream to completion.
type StreamServer interface {
	Serve(ctx context.Context, conn bridge.Conn) error
}

// MediaStreamHandler upgrades /media-stream to a websocket and hands it to
// the bridge for the lifetime of the call.
type MediaStreamHandler struct {
	Bridge    StreamServer
	Lifecycle *lifecycle.Lifecycle
	Limiter   *ratelimit.Limiter
	Logger    *slog.Logger
}

var mediaUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Twilio does not send an Origin header; browsers are not expected here.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h MediaStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if r.Method != http.MethodGet {
		writeCoreError(w, r, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if err := h.Lifecycle.Admit(); err != nil {
		writeCoreError(w, r, &core.Error{Type: core.ErrOverloaded, Message: err.Error(), Code: "draining"}, http.StatusServiceUnavailable)
		return
	}

	dec := h.Limiter.AcquireCall()
	if !dec.Allowed {
		logger.Warn("media stream rejected: too many active calls")
		writeCoreError(w, r, &core.Error{Type: core.ErrOverloaded, Message: "too many active calls", Code: "capacity"}, http.StatusServiceUnavailable)
		return
	}
	defer dec.Permit.Release()

	conn, err := mediaUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Debug("media stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	if err := h.Bridge.Serve(r.Context(), conn); err != nil {
		logger.Warn("media stream ended abnormally", "err", err)
	}
}
