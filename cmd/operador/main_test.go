package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core/codec"
	"github.com/Urzzard/Operador-IA/pkg/core/live"
	"github.com/Urzzard/Operador-IA/pkg/gateway/config"
)

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, appDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		build: func(context.Context, config.Config, *slog.Logger) (*app, error) {
			t.Fatalf("build should not be called when config load fails")
			return nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunMain_ReturnsNonZeroWhenBuildFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, appDeps{
		loadConfig: func() (config.Config, error) { return config.Config{}, nil },
		build: func(context.Context, config.Config, *slog.Logger) (*app, error) {
			return nil, errors.New("open archive: unreachable")
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})
	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("unreachable")) {
		t.Fatalf("stderr=%q", stderr.String())
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
}

func TestArchiveDSN(t *testing.T) {
	t.Parallel()

	cfg := config.Config{RedisURL: "redis://r", DatabaseURL: "postgres://p"}
	tests := []struct {
		kind config.ArchiveKind
		want string
	}{
		{config.ArchiveMemory, ""},
		{config.ArchiveRedis, "redis://r"},
		{config.ArchivePostgres, "postgres://p"},
	}
	for _, tt := range tests {
		cfg.Archive = tt.kind
		if got := archiveDSN(cfg); got != tt.want {
			t.Fatalf("archiveDSN(%s)=%q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestBuildApp_Smoke(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		STTURL:                 "http://127.0.0.1:1",
		STTTimeout:             time.Second,
		LLMProvider:            config.LLMNone,
		LLMTimeout:             time.Second,
		TTSProvider:            config.TTSHTTP,
		TTSURL:                 "http://127.0.0.1:1",
		TTSCacheSize:           8,
		Encoding:               codec.Mulaw,
		VAD:                    live.DefaultVADConfig(),
		Archive:                config.ArchiveMemory,
		ArchiveMemoryRecords:   10,
		FallbackToTestEmployee: true,
		APIKeys:                map[string]struct{}{},
		DialRPS:                1,
		DialBurst:              1,
		MaxActiveCalls:         1,
		MetricsNamespace:       "operador_smoke",
		ShutdownGracePeriod:    time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := buildApp(t.Context(), cfg, logger)
	if err != nil {
		t.Fatalf("buildApp error: %v", err)
	}
	defer a.Close()

	ts := httptest.NewServer(a.handler)
	defer ts.Close()

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
		// No Twilio credentials: dialing is disabled.
		"/calls": http.StatusOK,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("GET %s status=%d, want %d", path, resp.StatusCode, want)
		}
	}

	resp, err := http.Post(ts.URL+"/calls", "application/json", bytes.NewReader([]byte(`{"phone":"+51999888777"}`)))
	if err != nil {
		t.Fatalf("POST /calls error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("POST /calls status=%d, want 503", resp.StatusCode)
	}
}
