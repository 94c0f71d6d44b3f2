package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core/codec"
	"github.com/Urzzard/Operador-IA/pkg/core/live"
)

type LLMProvider string

const (
	LLMOllama     LLMProvider = "ollama"
	LLMGemini     LLMProvider = "gemini"
	LLMOpenAI     LLMProvider = "openai"
	LLMGroq       LLMProvider = "groq"
	LLMOpenRouter LLMProvider = "openrouter"
	LLMNone       LLMProvider = "none"
)

type TTSProvider string

const (
	TTSHTTP  TTSProvider = "http"
	TTSCoqui TTSProvider = "coqui"
)

type ArchiveKind string

const (
	ArchiveMemory   ArchiveKind = "memory"
	ArchiveRedis    ArchiveKind = "redis"
	ArchivePostgres ArchiveKind = "postgres"
)

type Config struct {
	Addr string

	// Speech and language services.
	STTURL         string
	STTTimeout     time.Duration
	LLMProvider    LLMProvider
	LLMURL         string
	LLMModel       string
	GeminiAPIKey   string
	LLMTimeout     time.Duration
	LLMTemperature float64
	LLMMaxTokens   int
	LLMContextSize int
	TTSProvider    TTSProvider
	TTSURL         string
	TTSSpeaker     string
	TTSCacheSize   int

	// OpenAI-compatible backends. OpenAIBaseURL points the openai provider at
	// any compatible server; empty uses api.openai.com.
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GroqAPIKey       string
	OpenRouterAPIKey string

	// Media stream.
	Encoding        codec.Encoding
	VAD             live.VADConfig
	FarewellMinWait time.Duration
	FarewellMargin  time.Duration
	MaxCallDuration time.Duration
	SegmentTimeout  time.Duration
	MaxSegmentChars int
	WSPingInterval  time.Duration
	WSWriteTimeout  time.Duration
	WSReadTimeout   time.Duration

	// Data.
	EmployeesCSV           string
	CompanyFile            string
	FallbackToTestEmployee bool
	Archive                ArchiveKind
	RedisURL               string
	DatabaseURL            string
	ArchiveTTL             time.Duration
	ArchiveMemoryRecords   int

	// Twilio.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	WebhookBaseURL   string

	// ValidateSignature rejects webhooks without a valid X-Twilio-Signature.
	ValidateSignature bool

	// APIKeys guard the /calls endpoints. Empty leaves them open.
	APIKeys        map[string]struct{}
	DialRPS        float64
	DialBurst      int
	MaxActiveCalls int

	MetricsNamespace    string
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

// TwilioEnabled reports whether outbound REST calls (dialing, hangup) are configured.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

func LoadFromEnv() (Config, error) {
	vad := live.DefaultVADConfig()

	cfg := Config{
		Addr: envOr("OPERADOR_ADDR", ":8000"),

		STTURL:         envOr("OPERADOR_STT_URL", "http://127.0.0.1:9000"),
		STTTimeout:     envDurationOr("OPERADOR_STT_TIMEOUT", 15*time.Second),
		LLMProvider:    LLMProvider(strings.ToLower(envOr("OPERADOR_LLM_PROVIDER", string(LLMOllama)))),
		LLMURL:         envOr("OPERADOR_LLM_URL", "http://127.0.0.1:11434"),
		LLMModel:       envOr("OPERADOR_LLM_MODEL", ""),
		GeminiAPIKey:   envOr("GEMINI_API_KEY", ""),
		LLMTimeout:     envDurationOr("OPERADOR_LLM_TIMEOUT", 8*time.Second),
		LLMTemperature: envFloat64Or("OPERADOR_LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:   envIntOr("OPERADOR_LLM_MAX_TOKENS", 120),
		LLMContextSize: envIntOr("OPERADOR_LLM_CONTEXT", 2048),

		OpenAIAPIKey:     envOr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    envOr("OPENAI_BASE_URL", ""),
		GroqAPIKey:       envOr("GROQ_API_KEY", ""),
		OpenRouterAPIKey: envOr("OPENROUTER_API_KEY", ""),

		TTSProvider:    TTSProvider(strings.ToLower(envOr("OPERADOR_TTS_PROVIDER", string(TTSHTTP)))),
		TTSURL:         envOr("OPERADOR_TTS_URL", "http://127.0.0.1:5002"),
		TTSSpeaker:     envOr("OPERADOR_TTS_SPEAKER", ""),
		TTSCacheSize:   envIntOr("OPERADOR_TTS_CACHE_SIZE", 256),

		VAD: live.VADConfig{
			EnergyThreshold: envFloat64Or("OPERADOR_VAD_ENERGY_THRESHOLD", vad.EnergyThreshold),
			SilenceDuration: envDurationOr("OPERADOR_VAD_SILENCE", vad.SilenceDuration),
			ChunkDuration:   vad.ChunkDuration,
			MaxUtterance:    envDurationOr("OPERADOR_VAD_MAX_UTTERANCE", vad.MaxUtterance),
		},
		FarewellMinWait: envDurationOr("OPERADOR_FAREWELL_MIN_WAIT", 3*time.Second),
		FarewellMargin:  envDurationOr("OPERADOR_FAREWELL_MARGIN", 500*time.Millisecond),
		MaxCallDuration: envDurationOr("OPERADOR_MAX_CALL_DURATION", 15*time.Minute),
		SegmentTimeout:  envDurationOr("OPERADOR_SEGMENT_TIMEOUT", 6*time.Second),
		MaxSegmentChars: envIntOr("OPERADOR_MAX_SEGMENT_CHARS", 120),
		WSPingInterval:  envDurationOr("OPERADOR_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:  envDurationOr("OPERADOR_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:   envDurationOr("OPERADOR_WS_READ_TIMEOUT", 0),

		EmployeesCSV:           envOr("OPERADOR_EMPLOYEES_CSV", ""),
		CompanyFile:            envOr("OPERADOR_COMPANY_FILE", ""),
		FallbackToTestEmployee: envBoolOr("OPERADOR_FALLBACK_TEST_EMPLOYEE", false),
		Archive:                ArchiveKind(strings.ToLower(envOr("OPERADOR_ARCHIVE", string(ArchiveMemory)))),
		RedisURL:               envOr("REDIS_URL", ""),
		DatabaseURL:            envOr("DATABASE_URL", ""),
		ArchiveTTL:             envDurationOr("OPERADOR_ARCHIVE_TTL", 30*24*time.Hour),
		ArchiveMemoryRecords:   envIntOr("OPERADOR_ARCHIVE_MEMORY_RECORDS", 1000),

		TwilioAccountSID: envOr("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  envOr("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: envOr("TWILIO_PHONE_NUMBER", ""),
		WebhookBaseURL:   strings.TrimRight(envOr("WEBHOOK_BASE_URL", ""), "/"),

		ValidateSignature: envBoolOr("OPERADOR_VALIDATE_TWILIO_SIGNATURE", false),
		APIKeys:           make(map[string]struct{}),
		DialRPS:           envFloat64Or("OPERADOR_DIAL_RPS", 0.2),
		DialBurst:         envIntOr("OPERADOR_DIAL_BURST", 3),
		MaxActiveCalls:    envIntOr("OPERADOR_MAX_ACTIVE_CALLS", 20),

		MetricsNamespace:    envOr("OPERADOR_METRICS_NAMESPACE", "operador"),
		ReadHeaderTimeout:   envDurationOr("OPERADOR_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("OPERADOR_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, key := range splitCSV(os.Getenv("OPERADOR_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	enc, err := codec.ParseEncoding(envOr("OPERADOR_TELEPHONY_ENCODING", string(codec.Mulaw)))
	if err != nil {
		return Config{}, fmt.Errorf("OPERADOR_TELEPHONY_ENCODING: %w", err)
	}
	cfg.Encoding = enc

	if strings.TrimSpace(cfg.STTURL) == "" {
		return Config{}, fmt.Errorf("OPERADOR_STT_URL must not be empty")
	}
	if strings.TrimSpace(cfg.TTSURL) == "" {
		return Config{}, fmt.Errorf("OPERADOR_TTS_URL must not be empty")
	}
	switch cfg.LLMProvider {
	case LLMOllama:
		if cfg.LLMURL == "" {
			return Config{}, fmt.Errorf("OPERADOR_LLM_URL must be set when OPERADOR_LLM_PROVIDER=ollama")
		}
	case LLMGemini:
		if cfg.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("GEMINI_API_KEY must be set when OPERADOR_LLM_PROVIDER=gemini")
		}
	case LLMOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return Config{}, fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL must be set when OPERADOR_LLM_PROVIDER=openai")
		}
	case LLMGroq:
		if cfg.GroqAPIKey == "" {
			return Config{}, fmt.Errorf("GROQ_API_KEY must be set when OPERADOR_LLM_PROVIDER=groq")
		}
	case LLMOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return Config{}, fmt.Errorf("OPENROUTER_API_KEY must be set when OPERADOR_LLM_PROVIDER=openrouter")
		}
	case LLMNone:
	default:
		return Config{}, fmt.Errorf("OPERADOR_LLM_PROVIDER must be one of ollama, gemini, openai, groq, openrouter, none")
	}
	switch cfg.TTSProvider {
	case TTSHTTP, TTSCoqui:
	default:
		return Config{}, fmt.Errorf("OPERADOR_TTS_PROVIDER must be one of http, coqui")
	}
	switch cfg.Archive {
	case ArchiveMemory:
	case ArchiveRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when OPERADOR_ARCHIVE=redis")
		}
	case ArchivePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when OPERADOR_ARCHIVE=postgres")
		}
	default:
		return Config{}, fmt.Errorf("OPERADOR_ARCHIVE must be one of memory, redis, postgres")
	}

	if cfg.STTTimeout <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_STT_TIMEOUT must be > 0")
	}
	if cfg.LLMTimeout <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_LLM_TIMEOUT must be > 0")
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return Config{}, fmt.Errorf("OPERADOR_LLM_TEMPERATURE must be within [0, 2]")
	}
	if cfg.LLMMaxTokens <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_LLM_MAX_TOKENS must be > 0")
	}
	if cfg.LLMContextSize <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_LLM_CONTEXT must be > 0")
	}
	if cfg.TTSCacheSize < 0 {
		return Config{}, fmt.Errorf("OPERADOR_TTS_CACHE_SIZE must be >= 0")
	}
	if cfg.VAD.EnergyThreshold <= 0 || cfg.VAD.EnergyThreshold >= 1 {
		return Config{}, fmt.Errorf("OPERADOR_VAD_ENERGY_THRESHOLD must be within (0, 1)")
	}
	if cfg.VAD.SilenceDuration <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_VAD_SILENCE must be > 0")
	}
	if cfg.VAD.MaxUtterance < 0 {
		return Config{}, fmt.Errorf("OPERADOR_VAD_MAX_UTTERANCE must be >= 0")
	}
	if cfg.FarewellMinWait < 0 {
		return Config{}, fmt.Errorf("OPERADOR_FAREWELL_MIN_WAIT must be >= 0")
	}
	if cfg.FarewellMargin < 0 {
		return Config{}, fmt.Errorf("OPERADOR_FAREWELL_MARGIN must be >= 0")
	}
	if cfg.MaxCallDuration <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_MAX_CALL_DURATION must be > 0")
	}
	if cfg.SegmentTimeout <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_SEGMENT_TIMEOUT must be > 0")
	}
	if cfg.MaxSegmentChars <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_MAX_SEGMENT_CHARS must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("OPERADOR_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.ArchiveTTL <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_ARCHIVE_TTL must be > 0")
	}
	if cfg.ArchiveMemoryRecords <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_ARCHIVE_MEMORY_RECORDS must be > 0")
	}
	if cfg.DialRPS < 0 {
		return Config{}, fmt.Errorf("OPERADOR_DIAL_RPS must be >= 0")
	}
	if cfg.DialBurst < 0 {
		return Config{}, fmt.Errorf("OPERADOR_DIAL_BURST must be >= 0")
	}
	if cfg.MaxActiveCalls < 0 {
		return Config{}, fmt.Errorf("OPERADOR_MAX_ACTIVE_CALLS must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("OPERADOR_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if (cfg.TwilioAccountSID == "") != (cfg.TwilioAuthToken == "") {
		return Config{}, fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN must be set together")
	}
	if cfg.WebhookBaseURL != "" {
		u, err := url.Parse(cfg.WebhookBaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return Config{}, fmt.Errorf("WEBHOOK_BASE_URL must be an absolute http(s) URL")
		}
	}
	if cfg.ValidateSignature && (cfg.TwilioAuthToken == "" || cfg.WebhookBaseURL == "") {
		return Config{}, fmt.Errorf("TWILIO_AUTH_TOKEN and WEBHOOK_BASE_URL must be set when OPERADOR_VALIDATE_TWILIO_SIGNATURE=true")
	}

	return cfg, nil
}

// Issues lists problems that do not stop the process but leave a feature
// unavailable. The readiness endpoint reports them.
func (c Config) Issues() []string {
	var out []string
	if !c.TwilioEnabled() {
		out = append(out, "TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN not set: outbound calls and hangup disabled")
	} else if c.TwilioFromNumber == "" {
		out = append(out, "TWILIO_PHONE_NUMBER not set: outbound calls disabled")
	}
	if c.WebhookBaseURL == "" {
		out = append(out, "WEBHOOK_BASE_URL not set: outbound calls disabled")
	}
	if len(c.APIKeys) == 0 {
		out = append(out, "OPERADOR_API_KEYS not set: /calls is unauthenticated")
	}
	if c.EmployeesCSV == "" && !c.FallbackToTestEmployee {
		out = append(out, "OPERADOR_EMPLOYEES_CSV not set: every caller is unknown")
	}
	return out
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

// envDurationOr accepts Go durations ("700ms") and bare integers as milliseconds.
func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
