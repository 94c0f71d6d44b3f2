// Package stream plays a reply back to the carrier: it splits the text into
// segments, synthesizes them ahead of playback, and writes 20 ms frames at
// real-time pace with a mark after each segment.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Urzzard/Operador-IA/pkg/core/codec"
	"github.com/Urzzard/Operador-IA/pkg/core/voice"
	"github.com/Urzzard/Operador-IA/pkg/core/voice/tts"
)

const (
	// FrameBytes is 20 ms of 8 kHz G.711.
	FrameBytes = 160
	// FrameInterval is the carrier's frame duration.
	FrameInterval = 20 * time.Millisecond

	defaultSegmentTimeout = 6 * time.Second
	defaultLookahead      = 2
)

// Sink receives outbound frames for one media stream.
type Sink interface {
	SendMedia(streamSID string, payload []byte) error
	SendMark(streamSID, name string) error
}

// Config configures a Streamer.
type Config struct {
	Encoding        codec.Encoding
	MaxSegmentChars int
	SegmentTimeout  time.Duration
	// FrameInterval is the pacing cadence. Tests shorten it.
	FrameInterval time.Duration
	// Lookahead is how many synthesized segments may wait for playback.
	Lookahead int
}

// Result summarizes one streamed reply.
type Result struct {
	Segments         int
	SegmentsSent     int
	SegmentsSkipped  int
	Frames           int
	AudioBytes       int
	AudioDuration    time.Duration
	TimeToFirstAudio time.Duration
	Elapsed          time.Duration
}

// DoneMark is the name of the mark sent after the last segment of replyID.
func DoneMark(replyID string) string {
	return replyID + ":done"
}

// SegmentMark is the name of the mark sent after segment i of replyID.
func SegmentMark(replyID string, i int) string {
	return fmt.Sprintf("%s:%d", replyID, i)
}

type Streamer struct {
	tts    tts.Provider
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(provider tts.Provider, cfg Config, logger *slog.Logger) (*Streamer, error) {
	if provider == nil {
		return nil, errors.New("tts provider is required")
	}
	if cfg.Encoding == "" {
		cfg.Encoding = codec.Mulaw
	}
	if cfg.MaxSegmentChars <= 0 {
		cfg.MaxSegmentChars = voice.DefaultMaxSegmentChars
	}
	if cfg.SegmentTimeout <= 0 {
		cfg.SegmentTimeout = defaultSegmentTimeout
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = FrameInterval
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = defaultLookahead
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{tts: provider, cfg: cfg, logger: logger, now: time.Now}, nil
}

type segmentAudio struct {
	index int
	text  string
	audio []byte
	err   error
}

// Stream synthesizes and plays text. Segments that fail to synthesize or
// transcode are skipped. It returns early only when ctx ends or the sink fails.
func (s *Streamer) Stream(ctx context.Context, sink Sink, streamSID, replyID, text string) (Result, error) {
	start := s.now()
	segments := voice.SplitSegments(text, s.cfg.MaxSegmentChars)
	res := Result{Segments: len(segments)}

	g, gctx := errgroup.WithContext(ctx)
	ready := make(chan segmentAudio, s.cfg.Lookahead)

	g.Go(func() error {
		defer close(ready)
		for i, seg := range segments {
			item := s.synthesize(gctx, i, seg)
			select {
			case ready <- item:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		p := &pacer{interval: s.cfg.FrameInterval}
		silence := codec.Silence(s.cfg.Encoding)
		for item := range ready {
			if item.err != nil {
				res.SegmentsSkipped++
				s.logger.Warn("skipping reply segment",
					"stream_sid", streamSID, "reply_id", replyID, "segment", item.index, "err", item.err)
				continue
			}
			for off := 0; off < len(item.audio); off += FrameBytes {
				frame := nextFrame(item.audio, off, silence)
				if err := p.wait(gctx); err != nil {
					return err
				}
				if err := sink.SendMedia(streamSID, frame); err != nil {
					return fmt.Errorf("send media: %w", err)
				}
				if res.Frames == 0 {
					res.TimeToFirstAudio = s.now().Sub(start)
				}
				res.Frames++
				res.AudioBytes += len(frame)
			}
			if err := sink.SendMark(streamSID, SegmentMark(replyID, item.index)); err != nil {
				return fmt.Errorf("send mark: %w", err)
			}
			res.SegmentsSent++
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		if err := sink.SendMark(streamSID, DoneMark(replyID)); err != nil {
			return fmt.Errorf("send mark: %w", err)
		}
		return nil
	})

	err := g.Wait()
	res.AudioDuration = time.Duration(res.AudioBytes) * time.Second / codec.TelephonySampleRate
	res.Elapsed = s.now().Sub(start)
	return res, err
}

func (s *Streamer) synthesize(ctx context.Context, i int, text string) segmentAudio {
	item := segmentAudio{index: i, text: text}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.SegmentTimeout)
	defer cancel()

	syn, err := s.tts.Synthesize(sctx, text)
	if err != nil {
		item.err = fmt.Errorf("synthesize: %w", err)
		return item
	}
	audio, err := codec.ToTelephony(s.cfg.Encoding, syn.Audio)
	if err != nil {
		item.err = fmt.Errorf("transcode %s: %w", syn.Format, err)
		return item
	}
	if len(audio) == 0 {
		item.err = codec.ErrEmptyAudio
		return item
	}
	item.audio = audio
	return item
}

// nextFrame returns the frame at off, padding a short tail with silence.
func nextFrame(audio []byte, off int, silence byte) []byte {
	end := off + FrameBytes
	if end <= len(audio) {
		return audio[off:end]
	}
	frame := make([]byte, FrameBytes)
	n := copy(frame, audio[off:])
	for i := n; i < FrameBytes; i++ {
		frame[i] = silence
	}
	return frame
}

// pacer releases one frame per interval. When the producer falls behind it
// resumes from now instead of bursting to catch up.
type pacer struct {
	interval time.Duration
	next     time.Time
}

func (p *pacer) wait(ctx context.Context) error {
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	if d := p.next.Sub(now); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	p.next = p.next.Add(p.interval)
	return nil
}
