// Package bridge runs one Twilio media stream per call. It detects the
// caller's utterances, answers them through the conversation machine, plays
// the reply back and hangs up once the conversation reaches farewell.
//
// Each call owns two goroutines: the receive loop, which never blocks on
// network services, and at most one turn task (greeting, or
// transcribe → reply → speak). While a turn task runs the detector is not
// fed, so speech that overlaps the bot's reply is dropped.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Urzzard/Operador-IA/pkg/core/dialogue"
	"github.com/Urzzard/Operador-IA/pkg/core/live"
	"github.com/Urzzard/Operador-IA/pkg/core/voice/stt"
	"github.com/Urzzard/Operador-IA/pkg/core/voice/tts"
	"github.com/Urzzard/Operador-IA/pkg/gateway/archive"
	"github.com/Urzzard/Operador-IA/pkg/gateway/directory"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/calls"
	"github.com/Urzzard/Operador-IA/pkg/gateway/metrics"
	"github.com/Urzzard/Operador-IA/pkg/gateway/telephony"
)

// Conn is the subset of *websocket.Conn the bridge uses.
type Conn interface {
	wsWriter
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
}

type Dependencies struct {
	Machine   *dialogue.Machine
	STT       stt.Provider
	TTS       tts.Provider
	Directory directory.Resolver
	// Telephony ends calls after farewell. Nil only closes the stream.
	Telephony telephony.Hanger
	Registry  *calls.Registry
	Archive   archive.Store
	Metrics   *metrics.Metrics
	Tracer    trace.Tracer
	Logger    *slog.Logger
	Config    Config
	// NewDetector builds the per-call voice activity detector. Defaults to
	// an EnergyDetector over Config.VAD.
	NewDetector func() live.Detector
	Now         func() time.Time
}

type Bridge struct {
	machine     *dialogue.Machine
	stt         stt.Provider
	tts         tts.Provider
	directory   directory.Resolver
	hanger      telephony.Hanger
	registry    *calls.Registry
	archive     archive.Store
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
	cfg         Config
	newDetector func() live.Detector
	now         func() time.Time
}

func New(deps Dependencies) (*Bridge, error) {
	if deps.Machine == nil {
		return nil, fmt.Errorf("conversation machine is required")
	}
	if deps.STT == nil {
		return nil, fmt.Errorf("stt provider is required")
	}
	if deps.TTS == nil {
		return nil, fmt.Errorf("tts provider is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("employee directory is required")
	}
	if deps.Registry == nil {
		deps.Registry = calls.NewRegistry()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("operador/bridge")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cfg := deps.Config.withDefaults()
	if deps.NewDetector == nil {
		vad := cfg.VAD
		deps.NewDetector = func() live.Detector { return live.NewEnergyDetector(vad) }
	}
	return &Bridge{
		machine:     deps.Machine,
		stt:         deps.STT,
		tts:         deps.TTS,
		directory:   deps.Directory,
		hanger:      deps.Telephony,
		registry:    deps.Registry,
		archive:     deps.Archive,
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
		logger:      deps.Logger,
		cfg:         cfg,
		newDetector: deps.NewDetector,
		now:         deps.Now,
	}, nil
}

// Registry returns the live-call registry.
func (b *Bridge) Registry() *calls.Registry {
	return b.registry
}

// Call end causes, mapped to archive reasons.
var (
	errStopped     = errors.New("media stream stopped")
	errFarewell    = errors.New("conversation finished")
	errNoEmployee  = errors.New("caller not in directory")
	errCanceled    = errors.New("call canceled")
	errMaxDuration = errors.New("call exceeded max duration")
	errConnClosed  = errors.New("connection closed")
)

func reasonFor(cause error) string {
	switch {
	case errors.Is(cause, errStopped):
		return archive.ReasonStop
	case errors.Is(cause, errFarewell):
		return archive.ReasonFarewell
	case errors.Is(cause, errNoEmployee):
		return archive.ReasonNoMatch
	case errors.Is(cause, errCanceled):
		return archive.ReasonCanceled
	case errors.Is(cause, errMaxDuration):
		return archive.ReasonTimeout
	default:
		return archive.ReasonClosed
	}
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

// Serve runs the media stream on conn until the carrier stops it, the call
// is hung up or canceled, or the connection fails. Only an unexpected
// connection failure is returned as an error.
func (b *Bridge) Serve(ctx context.Context, conn Conn) error {
	parent := ctx
	ctx, span := b.tracer.Start(ctx, "media_stream")
	defer span.End()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(errConnClosed)
	ctx, stopTimer := context.WithTimeoutCause(ctx, b.cfg.MaxCallDuration, errMaxDuration)
	defer stopTimer()

	conn.SetReadLimit(b.cfg.MaxMessageBytes)
	if b.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(b.now().Add(b.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(b.now().Add(b.cfg.ReadTimeout))
		})
	}

	frames := make(chan []byte, b.cfg.OutboundQueue)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w := outboundWriter{
			ws:           conn,
			ctx:          ctx,
			frames:       frames,
			pingInterval: b.cfg.PingInterval,
			writeTimeout: b.cfg.WriteTimeout,
		}
		if err := w.Run(); err != nil {
			cancel(fmt.Errorf("%w: write: %w", errConnClosed, err))
		}
	}()

	readCh := make(chan inboundFrame, 64)
	go b.readLoop(ctx, conn, readCh)

	c := &call{
		bridge:    b,
		ctx:       ctx,
		cancel:    cancel,
		span:      span,
		sender:    &frameSender{ctx: ctx, out: frames},
		logger:    b.logger,
		startedAt: b.now(),
	}
	cause := c.loop(readCh)
	cancel(cause)
	cause = context.Cause(ctx)
	c.wg.Wait()

	select {
	case <-writerDone:
	case <-time.After(time.Second):
	}
	c.finish(parent, cause)

	if c.conv != nil && errors.Is(cause, errConnClosed) && !isNormalClose(cause) {
		return cause
	}
	return nil
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}

func (b *Bridge) readLoop(ctx context.Context, conn Conn, out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-ctx.Done():
			}
			return
		}
		if b.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(b.now().Add(b.cfg.ReadTimeout))
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-ctx.Done():
			return
		}
	}
}
