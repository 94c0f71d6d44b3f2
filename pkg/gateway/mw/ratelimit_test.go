package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Urzzard/Operador-IA/pkg/gateway/ratelimit"
)

func TestDialLimit_Burst429IncludesRetryAfter(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{DialRPS: 1, DialBurst: 1})

	h := DialLimit(lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	{
		req := httptest.NewRequest(http.MethodPost, "/calls", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("first request status=%d body=%q", rr.Code, rr.Body.String())
		}
	}

	{
		req := httptest.NewRequest(http.MethodPost, "/calls", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status=%d body=%q", rr.Code, rr.Body.String())
		}
		if got := rr.Header().Get("Retry-After"); got == "" {
			t.Fatalf("expected Retry-After header")
		}
		if body := rr.Body.String(); !strings.Contains(body, `"type":"rate_limit_error"`) {
			t.Fatalf("unexpected body: %q", body)
		}
	}
}

func TestDialLimit_GetIsNotCounted(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{DialRPS: 1, DialBurst: 1})
	h := DialLimit(lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/calls", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %d status=%d", i, rr.Code)
		}
	}
}

func TestDialLimit_KeysByBearerToken(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{DialRPS: 1, DialBurst: 1})
	h := DialLimit(lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, token := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/calls", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("token %s status=%d", token, rr.Code)
		}
	}
}
