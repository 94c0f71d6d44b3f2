package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/codec"
	"github.com/Urzzard/Operador-IA/pkg/core/dialogue"
	"github.com/Urzzard/Operador-IA/pkg/core/live"
	"github.com/Urzzard/Operador-IA/pkg/core/voice/stt"
	"github.com/Urzzard/Operador-IA/pkg/gateway/archive"
	"github.com/Urzzard/Operador-IA/pkg/gateway/directory"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/calls"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/protocol"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/stream"
)

// call is the state of one media stream. Fields set in handleStart are
// written by the receive loop before any turn task starts and are read-only
// afterwards.
type call struct {
	bridge *Bridge
	ctx    context.Context
	cancel context.CancelCauseFunc
	span   trace.Span
	sender *frameSender
	logger *slog.Logger

	startedAt  time.Time
	callSID    string
	streamSID  string
	enc        codec.Encoding
	conv       *dialogue.Conversation
	detector   live.Detector
	streamer   *stream.Streamer
	unregister func()

	busy    atomic.Bool
	replies atomic.Int64
	wg      sync.WaitGroup
}

func (c *call) loop(readCh <-chan inboundFrame) error {
	for {
		select {
		case <-c.ctx.Done():
			return context.Cause(c.ctx)
		case in, ok := <-readCh:
			if !ok {
				return errConnClosed
			}
			if in.err != nil {
				return fmt.Errorf("%w: %w", errConnClosed, in.err)
			}
			if in.messageType != websocket.TextMessage {
				continue
			}
			msg, err := protocol.DecodeMessage(in.data)
			if err != nil {
				var de *protocol.DecodeError
				if errors.As(err, &de) {
					c.logger.Warn("ignoring media stream frame", "code", de.Code, "err", err)
				}
				continue
			}
			switch m := msg.(type) {
			case protocol.Connected:
				c.logger.Debug("media stream connected", "protocol", m.Protocol, "version", m.Version)
			case protocol.Start:
				c.handleStart(m)
			case protocol.Media:
				c.handleMedia(m)
			case protocol.Mark:
				c.logger.Debug("mark played", "mark", m.Mark.Name)
			case protocol.DTMF:
				c.logger.Debug("dtmf received", "digit", m.DTMF.Digit)
			case protocol.Stop:
				return errStopped
			}
		}
	}
}

func (c *call) handleStart(m protocol.Start) {
	b := c.bridge
	if c.conv != nil {
		c.logger.Warn("ignoring repeated start", "stream_sid", m.StreamSID)
		return
	}
	c.callSID = m.Start.CallSID
	c.streamSID = m.StreamSID
	c.enc = b.cfg.Encoding
	if m.Start.MediaFormat.Encoding != "" {
		c.enc = m.Start.MediaFormat.Codec()
	}
	c.logger = b.logger.With("call_sid", c.callSID, "stream_sid", c.streamSID)
	c.span.SetAttributes(
		attribute.String("call.sid", c.callSID),
		attribute.String("stream.sid", c.streamSID),
	)

	phone := m.Param("phone", "to", "To", "From")
	employee, err := b.directory.Lookup(c.ctx, phone)
	matched := err == nil
	if !matched {
		if b.cfg.FallbackToTestEmployee {
			c.logger.Warn("caller not in directory, using test employee", "phone", phone, "err", err)
			employee = directory.TestEmployee()
			employee.Phone = phone
		} else {
			c.logger.Warn("caller not in directory", "phone", phone, "err", err)
			employee = dialogue.Employee{Phone: phone}
		}
	}

	streamCfg := b.cfg.Stream
	streamCfg.Encoding = c.enc
	streamer, err := stream.New(b.tts, streamCfg, c.logger)
	if err != nil {
		c.logger.Error("building reply streamer", "err", err)
		c.cancel(fmt.Errorf("%w: %w", errConnClosed, err))
		return
	}
	c.streamer = streamer
	c.conv = dialogue.NewConversation(c.callSID, employee)
	c.detector = b.newDetector()
	c.unregister = b.registry.Register(c.callSID, calls.Handle{
		StreamSID: c.streamSID,
		Cancel:    func() { c.cancel(errCanceled) },
	})
	b.metrics.RecordCallStart()
	c.logger.Info("call started", "employee", employee.Name, "encoding", string(c.enc))

	if !matched && !b.cfg.FallbackToTestEmployee {
		c.dispatch(c.apologize)
		return
	}
	c.dispatch(c.greet)
}

func (c *call) handleMedia(m protocol.Media) {
	if c.conv == nil {
		return
	}
	audio, err := m.Audio()
	if err != nil {
		c.logger.Debug("ignoring undecodable media payload", "err", err)
		return
	}
	c.bridge.metrics.RecordInboundAudio(len(audio))
	if c.busy.Load() {
		return
	}

	c.detector.AddChunk(codec.DecodeFrame(c.enc, audio))
	if !c.detector.IsFinishedSpeaking() {
		return
	}
	wav := c.detector.DrainAsAudio()
	c.detector.Reset()
	if wav == nil {
		return
	}
	if !c.dispatch(func(ctx context.Context) { c.handleUtterance(ctx, wav) }) {
		c.bridge.metrics.RecordUtterance("dropped_busy")
	}
}

// dispatch starts fn as the call's turn task unless one is already running.
func (c *call) dispatch(fn func(ctx context.Context)) bool {
	if !c.busy.CompareAndSwap(false, true) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.busy.Store(false)
		fn(c.ctx)
	}()
	return true
}

func (c *call) greet(ctx context.Context) {
	c.speak(ctx, c.bridge.machine.Greet(c.conv))
}

func (c *call) apologize(ctx context.Context) {
	text := dialogue.ApologyText()
	c.conv.RecordAssistant(text)
	res, began := c.speak(ctx, text)
	c.hangupAfter(ctx, began, res.AudioDuration, errNoEmployee)
}

func (c *call) handleUtterance(ctx context.Context, wav []byte) {
	b := c.bridge
	ctx, span := b.tracer.Start(ctx, "utterance")
	defer span.End()

	text, err := c.transcribe(ctx, wav)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("transcription failed", "err", err)
		b.metrics.RecordError("stt", errorType(err))
		b.metrics.RecordUtterance("stt_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		return
	}
	if text == "" {
		b.metrics.RecordUtterance("empty")
		return
	}
	b.metrics.RecordUtterance("answered")

	reply := c.respond(ctx, text)
	if ctx.Err() != nil {
		return
	}
	res, began := c.speak(ctx, reply.Text)
	if reply.Hangup {
		c.hangupAfter(ctx, began, res.AudioDuration, errFarewell)
	}
}

func (c *call) transcribe(ctx context.Context, wav []byte) (string, error) {
	b := c.bridge
	ctx, span := b.tracer.Start(ctx, "stt")
	defer span.End()

	sttCtx, cancel := context.WithTimeout(ctx, b.cfg.STTTimeout)
	defer cancel()

	start := b.now()
	tr, err := b.stt.Transcribe(sttCtx, wav, stt.TranscribeOptions{Language: b.cfg.Language})
	b.metrics.RecordStage("stt", b.now().Sub(start))
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(tr.Text)
	text := stt.FilterTranscript(raw)
	if text == "" && raw != "" {
		c.logger.Info("discarding transcript outside expected alphabet", "transcript", raw)
	}
	span.SetAttributes(attribute.Int("transcript.chars", len(text)))
	return text, nil
}

func (c *call) respond(ctx context.Context, text string) dialogue.Reply {
	b := c.bridge
	ctx, span := b.tracer.Start(ctx, "reply")
	defer span.End()

	start := b.now()
	reply := b.machine.Respond(ctx, c.conv, text)
	b.metrics.RecordStage("reply", b.now().Sub(start))
	b.metrics.RecordReply(string(reply.Stage), string(reply.Source))
	if reply.Err != nil {
		c.logger.Warn("reply generation failed, using fallback", "err", reply.Err)
		b.metrics.RecordError("llm", errorType(reply.Err))
		span.RecordError(reply.Err)
	}
	span.SetAttributes(
		attribute.String("stage", string(reply.Stage)),
		attribute.String("source", string(reply.Source)),
	)
	c.logger.Info("caller turn", "stage", string(reply.Stage), "source", string(reply.Source), "hangup", reply.Hangup)
	return reply
}

// speak streams text and returns the result with the time playback began.
func (c *call) speak(ctx context.Context, text string) (stream.Result, time.Time) {
	b := c.bridge
	ctx, span := b.tracer.Start(ctx, "speak")
	defer span.End()

	replyID := fmt.Sprintf("reply-%d", c.replies.Add(1))
	began := b.now()
	res, err := c.streamer.Stream(ctx, c.sender, c.streamSID, replyID, text)
	b.metrics.RecordSpeech(res.SegmentsSent, res.SegmentsSkipped, res.AudioBytes, res.TimeToFirstAudio)
	b.metrics.RecordStage("speak", res.Elapsed)
	span.SetAttributes(
		attribute.Int("segments.sent", res.SegmentsSent),
		attribute.Int("segments.skipped", res.SegmentsSkipped),
	)
	if err != nil && ctx.Err() == nil {
		c.logger.Warn("streaming reply failed", "reply_id", replyID, "err", err)
		span.RecordError(err)
	}
	return res, began
}

// hangupAfter waits until the caller has heard the last reply, ends the call
// through telephony control and then closes the stream with cause. The
// margin always runs after the last frame, however long streaming took.
func (c *call) hangupAfter(ctx context.Context, began time.Time, audio time.Duration, cause error) {
	b := c.bridge
	streamed := b.now().Sub(began)
	hold := max(b.cfg.FarewellMinWait, max(audio, streamed)+b.cfg.FarewellMargin)
	if wait := hold - streamed; wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	if b.hanger != nil {
		hctx, cancel := context.WithTimeout(ctx, b.cfg.HangupTimeout)
		err := b.hanger.Hangup(hctx, c.callSID)
		cancel()
		if err != nil {
			c.logger.Warn("hangup failed", "err", err)
			b.metrics.RecordError("telephony", errorType(err))
		}
	}
	c.cancel(cause)
}

func (c *call) finish(parent context.Context, cause error) {
	if c.conv == nil {
		return
	}
	b := c.bridge
	c.unregister()

	ended := b.now()
	reason := reasonFor(cause)
	b.metrics.RecordCallEnd(reason, ended.Sub(c.startedAt))

	history := c.conv.History()
	c.logger.Info("call ended",
		"reason", reason,
		"stage", string(c.conv.Stage()),
		"verified", c.conv.Verified(),
		"turns", len(history),
	)

	if b.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), archiveTimeout)
	defer cancel()
	rec := archive.CallRecord{
		CallSID:    c.callSID,
		StreamSID:  c.streamSID,
		Employee:   c.conv.Employee,
		Stage:      c.conv.Stage(),
		Verified:   c.conv.Verified(),
		Transcript: history,
		StartedAt:  c.startedAt,
		EndedAt:    ended,
		Reason:     reason,
	}
	if err := b.archive.Save(ctx, rec); err != nil {
		c.logger.Error("archiving call failed", "err", err)
		b.metrics.RecordError("archive", errorType(err))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return string(ce.Type)
	}
	return "error"
}
