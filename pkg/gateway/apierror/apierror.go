package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/gateway/archive"
	"github.com/Urzzard/Operador-IA/pkg/gateway/directory"
)

// Envelope is the JSON body of every error response.
type Envelope struct {
	Error     *core.Error `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

// Write encodes err with status.
func Write(w http.ResponseWriter, requestID string, err *core.Error, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: err, RequestID: requestID})
}

// FromError maps err to a client-facing error and HTTP status. Failures of
// an upstream service (Twilio, speech, language) surface as 502/503/504,
// never as the upstream's own 4xx auth codes.
func FromError(err error) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:    core.ErrAPI,
			Message: "request timeout",
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:    core.ErrAPI,
			Message: "request cancelled",
			Code:    "cancelled",
		}, http.StatusRequestTimeout
	}

	if errors.Is(err, directory.ErrNotFound) || errors.Is(err, archive.ErrNotFound) {
		return &core.Error{
			Type:    core.ErrNotFound,
			Message: err.Error(),
		}, http.StatusNotFound
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.ProviderError = nil
		return &out, statusFor(&out)
	}

	// Unknown errors: do not leak details.
	return &core.Error{
		Type:    core.ErrAPI,
		Message: "internal error",
	}, http.StatusInternalServerError
}

func statusFor(e *core.Error) int {
	upstream := e.Provider != ""
	switch e.Type {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		if upstream {
			return http.StatusBadGateway
		}
		return http.StatusUnauthorized
	case core.ErrNotFound:
		if upstream {
			return http.StatusBadGateway
		}
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return http.StatusServiceUnavailable
	case core.ErrProvider, core.ErrAPI, core.ErrEmptyResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
