package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/Urzzard/Operador-IA/internal/dotenv"
	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/dialogue"
	"github.com/Urzzard/Operador-IA/pkg/core/providers/gemini"
	"github.com/Urzzard/Operador-IA/pkg/core/providers/groq"
	"github.com/Urzzard/Operador-IA/pkg/core/providers/ollama"
	"github.com/Urzzard/Operador-IA/pkg/core/providers/openai"
	"github.com/Urzzard/Operador-IA/pkg/core/providers/openrouter"
	"github.com/Urzzard/Operador-IA/pkg/core/voice/stt"
	"github.com/Urzzard/Operador-IA/pkg/core/voice/tts"
	"github.com/Urzzard/Operador-IA/pkg/gateway/archive"
	"github.com/Urzzard/Operador-IA/pkg/gateway/config"
	"github.com/Urzzard/Operador-IA/pkg/gateway/directory"
	"github.com/Urzzard/Operador-IA/pkg/gateway/handlers"
	"github.com/Urzzard/Operador-IA/pkg/gateway/lifecycle"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/bridge"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/calls"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/stream"
	"github.com/Urzzard/Operador-IA/pkg/gateway/metrics"
	gatewayserver "github.com/Urzzard/Operador-IA/pkg/gateway/server"
	"github.com/Urzzard/Operador-IA/pkg/gateway/telephony"
)

type appDeps struct {
	loadConfig   func() (config.Config, error)
	build        func(context.Context, config.Config, *slog.Logger) (*app, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultAppDeps() appDeps {
	return appDeps{
		loadConfig: config.LoadFromEnv,
		build:      buildApp,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// app holds what the shutdown path needs to reach.
type app struct {
	handler   http.Handler
	lifecycle *lifecycle.Lifecycle
	registry  *calls.Registry
	archive   archive.Store
}

func (a *app) Close() error {
	if a.archive == nil {
		return nil
	}
	return a.archive.Close()
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newLLM(ctx context.Context, cfg config.Config) (core.Provider, error) {
	client := &http.Client{Timeout: cfg.LLMTimeout}
	switch cfg.LLMProvider {
	case config.LLMNone:
		return nil, nil
	case config.LLMOpenAI:
		opts := []openai.Option{
			openai.WithHTTPClient(client),
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithModel(cfg.LLMModel),
		}
		return openai.New(cfg.OpenAIAPIKey, opts...), nil
	case config.LLMGroq:
		return groq.New(cfg.GroqAPIKey, groq.WithHTTPClient(client), groq.WithModel(cfg.LLMModel)), nil
	case config.LLMOpenRouter:
		return openrouter.New(cfg.OpenRouterAPIKey,
			openrouter.WithHTTPClient(client),
			openrouter.WithModel(cfg.LLMModel),
			openrouter.WithSiteURL(cfg.WebhookBaseURL),
			openrouter.WithSiteName("Operador IA"),
		), nil
	case config.LLMGemini:
		opts := []gemini.Option{gemini.WithHTTPClient(client)}
		if cfg.LLMModel != "" {
			opts = append(opts, gemini.WithModel(cfg.LLMModel))
		}
		return gemini.New(ctx, cfg.GeminiAPIKey, opts...)
	default:
		opts := []ollama.Option{ollama.WithHTTPClient(client)}
		if cfg.LLMModel != "" {
			opts = append(opts, ollama.WithModel(cfg.LLMModel))
		}
		return ollama.New(cfg.LLMURL, opts...), nil
	}
}

func newTTS(cfg config.Config) tts.Provider {
	var p tts.Provider
	switch cfg.TTSProvider {
	case config.TTSCoqui:
		p = tts.NewCoqui(cfg.TTSURL).WithSpeaker(cfg.TTSSpeaker)
	default:
		p = tts.NewHTTP(cfg.TTSURL)
	}
	p = tts.WithSanitizer(p)
	if cfg.TTSCacheSize > 0 {
		p = tts.WithCache(p, cfg.TTSCacheSize)
	}
	return p
}

func loadDirectory(cfg config.Config) (*directory.Directory, error) {
	if cfg.EmployeesCSV == "" {
		return directory.New(), nil
	}
	return directory.LoadCSV(cfg.EmployeesCSV)
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	company := dialogue.DefaultCompany()
	if cfg.CompanyFile != "" {
		c, err := dialogue.LoadCompany(cfg.CompanyFile)
		if err != nil {
			return nil, fmt.Errorf("load company: %w", err)
		}
		company = c
	}

	llm, err := newLLM(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	machine := dialogue.NewMachine(dialogue.Config{
		Company:      company,
		Provider:     llm,
		ReplyTimeout: cfg.LLMTimeout,
		Temperature:  cfg.LLMTemperature,
		MaxTokens:    cfg.LLMMaxTokens,
		ContextSize:  cfg.LLMContextSize,
		Logger:       logger,
	})

	dir, err := loadDirectory(cfg)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}

	store, err := archive.Open(ctx, archive.Kind(cfg.Archive), archiveDSN(cfg), archive.Options{
		MaxRecords: cfg.ArchiveMemoryRecords,
		TTL:        cfg.ArchiveTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	// Interfaces stay nil, not typed-nil, when Twilio is not configured.
	var hanger telephony.Hanger
	var dialer handlers.Dialer
	if cfg.TwilioEnabled() {
		client, err := telephony.New(telephony.Config{
			AccountSID:     cfg.TwilioAccountSID,
			AuthToken:      cfg.TwilioAuthToken,
			FromNumber:     cfg.TwilioFromNumber,
			WebhookBaseURL: cfg.WebhookBaseURL,
			Logger:         logger,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("twilio client: %w", err)
		}
		hanger = client
		if cfg.TwilioFromNumber != "" && cfg.WebhookBaseURL != "" {
			dialer = client
		}
	}

	m := metrics.New(cfg.MetricsNamespace)
	registry := calls.NewRegistry()
	br, err := bridge.New(bridge.Dependencies{
		Machine:   machine,
		STT:       stt.NewWhisperWithClient(cfg.STTURL, &http.Client{Timeout: cfg.STTTimeout}),
		TTS:       newTTS(cfg),
		Directory: dir,
		Telephony: hanger,
		Registry:  registry,
		Archive:   store,
		Metrics:   m,
		Tracer:    otel.Tracer("operador/bridge"),
		Logger:    logger,
		Config: bridge.Config{
			Encoding: cfg.Encoding,
			VAD:      cfg.VAD,
			Stream: stream.Config{
				Encoding:        cfg.Encoding,
				MaxSegmentChars: cfg.MaxSegmentChars,
				SegmentTimeout:  cfg.SegmentTimeout,
			},
			STTTimeout:             cfg.STTTimeout,
			Language:               "es",
			FarewellMinWait:        cfg.FarewellMinWait,
			FarewellMargin:         cfg.FarewellMargin,
			MaxCallDuration:        cfg.MaxCallDuration,
			FallbackToTestEmployee: cfg.FallbackToTestEmployee,
			PingInterval:           cfg.WSPingInterval,
			WriteTimeout:           cfg.WSWriteTimeout,
			ReadTimeout:            cfg.WSReadTimeout,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("media bridge: %w", err)
	}

	lc := &lifecycle.Lifecycle{}
	gw := gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Bridge:    br,
		Registry:  registry,
		Dialer:    dialer,
		Directory: dir,
		Archive:   store,
		Metrics:   m,
		Lifecycle: lc,
	})

	logger.Info("employee directory loaded", "employees", dir.Len(), "fallback_test_employee", cfg.FallbackToTestEmployee)
	for _, issue := range cfg.Issues() {
		logger.Warn("configuration", "issue", issue)
	}

	return &app{
		handler:   gw.Handler(),
		lifecycle: lc,
		registry:  registry,
		archive:   store,
	}, nil
}

func archiveDSN(cfg config.Config) string {
	switch cfg.Archive {
	case config.ArchiveRedis:
		return cfg.RedisURL
	case config.ArchivePostgres:
		return cfg.DatabaseURL
	default:
		return ""
	}
}

func run(ctx context.Context, logger *slog.Logger, deps appDeps) error {
	if deps.loadConfig == nil || deps.build == nil {
		return errors.New("missing app dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := deps.build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close archive", "err", err)
		}
	}()

	httpSrv := buildHTTPServer(cfg, a.handler)
	logger.Info("starting operador",
		"addr", cfg.Addr,
		"llm", cfg.LLMProvider,
		"tts", cfg.TTSProvider,
		"archive", cfg.Archive,
		"encoding", cfg.Encoding,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String(), "active_calls", a.registry.Count())
	}

	a.lifecycle.SetDraining(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Media streams are hijacked connections; Shutdown does not wait for them.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !a.registry.Wait(waitCtx) {
		n := a.registry.CancelAll()
		logger.Warn("grace period expired; canceled live calls", "calls", n)
		cancelCtx, cancel := context.WithTimeout(context.Background(), cfg.WSWriteTimeout+cfg.FarewellMargin)
		a.registry.Wait(cancelCtx)
		cancel()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("operador stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps appDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "operador: %v\n", err)
		return 1
	}

	if err := run(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "operador: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultAppDeps()))
}
