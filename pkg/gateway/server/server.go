package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/gateway/archive"
	"github.com/Urzzard/Operador-IA/pkg/gateway/config"
	"github.com/Urzzard/Operador-IA/pkg/gateway/directory"
	"github.com/Urzzard/Operador-IA/pkg/gateway/handlers"
	"github.com/Urzzard/Operador-IA/pkg/gateway/lifecycle"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/calls"
	"github.com/Urzzard/Operador-IA/pkg/gateway/metrics"
	"github.com/Urzzard/Operador-IA/pkg/gateway/mw"
	"github.com/Urzzard/Operador-IA/pkg/gateway/ratelimit"
	"github.com/Urzzard/Operador-IA/pkg/gateway/telephony"
)

// Bounds the Twilio REST round trip behind POST /calls.
const dialTimeout = 15 * time.Second

// Deps are the long-lived components the routes serve. Nil Dialer disables
// POST /calls; nil Archive leaves the call history empty.
type Deps struct {
	Bridge    handlers.StreamServer
	Registry  *calls.Registry
	Dialer    handlers.Dialer
	Directory directory.Resolver
	Archive   archive.Store
	Metrics   *metrics.Metrics
	Lifecycle *lifecycle.Lifecycle
}

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	deps    Deps
	limiter *ratelimit.Limiter
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = &lifecycle.Lifecycle{}
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
		limiter: ratelimit.New(ratelimit.Config{
			DialRPS:        cfg.DialRPS,
			DialBurst:      cfg.DialBurst,
			MaxActiveCalls: cfg.MaxActiveCalls,
		}),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	m := s.deps.Metrics

	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.deps.Lifecycle,
		Calls:     s.deps.Registry,
	})
	s.mux.Handle("GET /metrics", m.Handler())

	s.mux.Handle("/media-stream", mw.Observe(m, "/media-stream", handlers.MediaStreamHandler{
		Bridge:    s.deps.Bridge,
		Lifecycle: s.deps.Lifecycle,
		Limiter:   s.limiter,
		Logger:    s.logger,
	}))

	streamURL := ""
	if s.cfg.WebhookBaseURL != "" {
		// Validated by config; a failure here falls back to the request host.
		streamURL, _ = telephony.StreamURL(s.cfg.WebhookBaseURL)
	}
	s.mux.Handle("/twilio-webhook", s.twilio("/twilio-webhook", handlers.TwilioWebhookHandler{
		StreamURL: streamURL,
		Language:  "es",
		Lifecycle: s.deps.Lifecycle,
		Logger:    s.logger,
	}))
	s.mux.Handle("/call-status", s.twilio("/call-status", handlers.CallStatusHandler{
		Calls:  s.deps.Registry,
		Logger: s.logger,
	}))

	s.mux.Handle("POST /calls", s.api("/calls", mw.DialLimit(s.limiter, handlers.PlaceCallHandler{
		Dialer:       s.deps.Dialer,
		Directory:    s.deps.Directory,
		AllowUnknown: s.cfg.FallbackToTestEmployee,
		Lifecycle:    s.deps.Lifecycle,
		Timeout:      dialTimeout,
		Logger:       s.logger,
	})))
	s.mux.Handle("GET /calls", s.api("/calls", handlers.ListCallsHandler{
		Calls:   s.deps.Registry,
		Archive: s.deps.Archive,
	}))
	s.mux.Handle("GET /calls/{sid}", s.api("/calls/{sid}", handlers.GetCallHandler{
		Archive: s.deps.Archive,
	}))

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// twilio guards a Twilio webhook route.
func (s *Server) twilio(route string, h http.Handler) http.Handler {
	if s.cfg.ValidateSignature {
		h = mw.TwilioSignature(s.cfg.TwilioAuthToken, s.cfg.WebhookBaseURL, h)
	}
	return mw.Observe(s.deps.Metrics, route, h)
}

// api guards an operator route.
func (s *Server) api(route string, h http.Handler) http.Handler {
	return mw.Observe(s.deps.Metrics, route, mw.APIKey(s.cfg.APIKeys, h))
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
