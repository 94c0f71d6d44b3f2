package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/gateway/archive"
	"github.com/Urzzard/Operador-IA/pkg/gateway/config"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/calls"
	"github.com/Urzzard/Operador-IA/pkg/gateway/metrics"
	"github.com/Urzzard/Operador-IA/pkg/gateway/mw"
	"github.com/Urzzard/Operador-IA/pkg/gateway/telephony"
)

type fakeDialer struct {
	calls int
}

func (d *fakeDialer) PlaceCall(_ context.Context, to string) (*telephony.Call, error) {
	d.calls++
	return &telephony.Call{SID: "CA123", Status: "queued", To: to, From: "+15550000000"}, nil
}

func testConfig() config.Config {
	return config.Config{
		APIKeys:                map[string]struct{}{},
		DialRPS:                100,
		DialBurst:              10,
		MaxActiveCalls:         2,
		FallbackToTestEmployee: true,
		ShutdownGracePeriod:    time.Second,
	}
}

func newTestServer(t *testing.T, cfg config.Config, deps Deps) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(cfg, logger, deps).Handler()
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	h := newTestServer(t, testConfig(), Deps{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"type":"not_found_error"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
}

func TestServer_HealthAndReady(t *testing.T) {
	h := newTestServer(t, testConfig(), Deps{Registry: calls.NewRegistry()})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%q", path, rr.Code, rr.Body.String())
		}
	}
}

func TestServer_MetricsRoute(t *testing.T) {
	m := metrics.New("operador_test")
	h := newTestServer(t, testConfig(), Deps{Metrics: m})

	// Generate one observed request first.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/calls", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "operador_test_http_requests_total") {
		t.Fatalf("metrics missing request counter: %q", rr.Body.String())
	}
}

func TestServer_TwilioWebhook_ReturnsTwiML(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookBaseURL = "https://voice.example.com"
	h := newTestServer(t, cfg, Deps{})

	form := url.Values{"CallSid": {"CA1"}, "Direction": {"outbound-api"}, "To": {"+51999888777"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio-webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, `wss://voice.example.com/media-stream`) {
		t.Fatalf("stream url missing: %q", body)
	}
	if !strings.Contains(body, "+51999888777") {
		t.Fatalf("phone parameter missing: %q", body)
	}
}

func TestServer_TwilioWebhook_SignatureEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookBaseURL = "https://voice.example.com"
	cfg.TwilioAuthToken = "secret"
	cfg.ValidateSignature = true
	h := newTestServer(t, cfg, Deps{})

	form := url.Values{"CallSid": {"CA1"}, "To": {"+51999888777"}}
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/twilio-webhook", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newReq())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unsigned status=%d", rr.Code)
	}

	req := newReq()
	req.Header.Set("X-Twilio-Signature", mw.TwilioSign("secret", "https://voice.example.com/twilio-webhook", form))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("signed status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_CallStatus_CancelsLiveCall(t *testing.T) {
	reg := calls.NewRegistry()
	canceled := make(chan struct{})
	unregister := reg.Register("CA9", calls.Handle{
		StreamSID: "MZ9",
		Cancel:    func() { close(canceled) },
	})
	defer unregister()

	h := newTestServer(t, testConfig(), Deps{Registry: reg})

	form := url.Values{"CallSid": {"CA9"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/call-status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatalf("call was not canceled")
	}
}

func TestServer_CallsRequireAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKeys = map[string]struct{}{"k1": {}}
	dialer := &fakeDialer{}
	h := newTestServer(t, cfg, Deps{Dialer: dialer, Archive: archive.NewMemory(10)})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{name: "list without key", method: http.MethodGet, path: "/calls", want: http.StatusUnauthorized},
		{name: "list with key", method: http.MethodGet, path: "/calls", auth: "Bearer k1", want: http.StatusOK},
		{name: "get unknown", method: http.MethodGet, path: "/calls/CA404", auth: "Bearer k1", want: http.StatusNotFound},
		{name: "place without key", method: http.MethodPost, path: "/calls", body: `{"phone":"+51999888777"}`, want: http.StatusUnauthorized},
		{name: "place with key", method: http.MethodPost, path: "/calls", body: `{"phone":"+51999888777"}`, auth: "Bearer k1", want: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want=%d body=%q", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
	if dialer.calls != 1 {
		t.Fatalf("dialer.calls=%d", dialer.calls)
	}
}

func TestServer_PlaceCall_NotConfigured(t *testing.T) {
	h := newTestServer(t, testConfig(), Deps{})

	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(`{"phone":"+51999888777"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
