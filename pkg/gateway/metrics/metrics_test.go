package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordAndExpose(t *testing.T) {
	m := New("test")

	m.RecordCallStart()
	m.RecordCallStart()
	m.RecordCallEnd("hangup", 30*time.Second)
	m.RecordUtterance("answered")
	m.RecordUtterance("dropped_busy")
	m.RecordReply("questions", "model")
	m.RecordSpeech(2, 1, 3200, 300*time.Millisecond)
	m.RecordInboundAudio(160)
	m.RecordError("stt", "timeout")

	if got := testutil.ToFloat64(m.CallsActive); got != 1 {
		t.Fatalf("calls_active=%v", got)
	}
	if got := testutil.ToFloat64(m.SegmentsTotal.WithLabelValues("skipped")); got != 1 {
		t.Fatalf("skipped=%v", got)
	}
	if got := testutil.ToFloat64(m.AudioBytesTotal.WithLabelValues("outbound")); got != 3200 {
		t.Fatalf("outbound bytes=%v", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"test_calls_total", "test_utterances_total", "test_replies_total"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %s in exposition", want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCallStart()
	m.RecordCallEnd("stop", time.Second)
	m.RecordSpeech(1, 0, 160, time.Millisecond)
	m.RecordRequest("/healthz", 200)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rec.Code)
	}
}
