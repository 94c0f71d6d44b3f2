package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/gateway/directory"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType core.ErrorType
		want     int
	}{
		{"deadline", context.DeadlineExceeded, core.ErrAPI, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, core.ErrAPI, http.StatusRequestTimeout},
		{"directory miss", fmt.Errorf("lookup: %w", directory.ErrNotFound), core.ErrNotFound, http.StatusNotFound},
		{"invalid request", core.NewInvalidRequestError("phone is required"), core.ErrInvalidRequest, http.StatusBadRequest},
		{"upstream auth", core.NewHTTPError("twilio", http.StatusUnauthorized, []byte("bad creds")), core.ErrAuthentication, http.StatusBadGateway},
		{"upstream rate limit", core.NewHTTPError("twilio", http.StatusTooManyRequests, nil), core.ErrRateLimit, http.StatusTooManyRequests},
		{"overloaded", &core.Error{Type: core.ErrOverloaded, Message: "busy"}, core.ErrOverloaded, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), core.ErrAPI, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ce, status := FromError(tc.err)
			if status != tc.want {
				t.Fatalf("status=%d want=%d", status, tc.want)
			}
			if ce.Type != tc.wantType {
				t.Fatalf("type=%q want=%q", ce.Type, tc.wantType)
			}
		})
	}
}

func TestFromError_Nil(t *testing.T) {
	ce, status := FromError(nil)
	if ce != nil || status != http.StatusOK {
		t.Fatalf("FromError(nil) = %v, %d", ce, status)
	}
}

func TestFromError_DoesNotLeakUnknownMessage(t *testing.T) {
	ce, _ := FromError(errors.New("dial tcp 10.0.0.3:5432: secret"))
	if ce.Message != "internal error" {
		t.Fatalf("message=%q", ce.Message)
	}
}

func TestWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	Write(rr, "req_1", &core.Error{Type: core.ErrNotFound, Message: "call not found"}, http.StatusNotFound)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	var env struct {
		Error     core.Error `json:"error"`
		RequestID string     `json:"request_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.RequestID != "req_1" || env.Error.Type != core.ErrNotFound {
		t.Fatalf("envelope=%+v", env)
	}
}
