package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core/codec"
	"github.com/Urzzard/Operador-IA/pkg/core/voice/tts"
)

type fakeTTS struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]bool
	samples int
	block   bool
}

func (f *fakeTTS) Name() string { return "fake" }

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (*tts.Synthesis, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	for frag := range f.fail {
		if strings.Contains(text, frag) {
			return nil, errors.New("synth down")
		}
	}
	n := f.samples
	if n == 0 {
		n = 250
	}
	return &tts.Synthesis{Audio: codec.EncodeWAV(make([]byte, n*2), 8000), Format: "wav"}, nil
}

type event struct {
	kind    string
	payload int
	mark    string
}

type fakeSink struct {
	mu      sync.Mutex
	events  []event
	failAt  int
	onMedia func()
}

func (s *fakeSink) SendMedia(streamSID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.events)+1 == s.failAt {
		return errors.New("socket closed")
	}
	s.events = append(s.events, event{kind: "media", payload: len(payload)})
	if s.onMedia != nil {
		s.onMedia()
	}
	return nil
}

func (s *fakeSink) SendMark(streamSID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event{kind: "mark", mark: name})
	return nil
}

func (s *fakeSink) marks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.kind == "mark" {
			out = append(out, e.mark)
		}
	}
	return out
}

func newTestStreamer(t *testing.T, p tts.Provider) *Streamer {
	t.Helper()
	s, err := New(p, Config{FrameInterval: time.Millisecond, MaxSegmentChars: 30}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStream_FramesAndMarks(t *testing.T) {
	sink := &fakeSink{}
	s := newTestStreamer(t, &fakeTTS{})

	res, err := s.Stream(t.Context(), sink, "MZ1", "r1", "Hola.")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Segments != 1 || res.SegmentsSent != 1 || res.SegmentsSkipped != 0 {
		t.Fatalf("res=%+v", res)
	}
	// 250 samples become one full frame and one padded frame.
	if res.Frames != 2 {
		t.Fatalf("frames=%d", res.Frames)
	}
	for _, e := range sink.events {
		if e.kind == "media" && e.payload != FrameBytes {
			t.Fatalf("frame size=%d", e.payload)
		}
	}
	if got := sink.marks(); len(got) != 2 || got[0] != "r1:0" || got[1] != "r1:done" {
		t.Fatalf("marks=%v", got)
	}
	if res.AudioDuration != 40*time.Millisecond {
		t.Fatalf("duration=%v", res.AudioDuration)
	}
}

func TestStream_SegmentsInOrder(t *testing.T) {
	sink := &fakeSink{}
	fake := &fakeTTS{}
	s := newTestStreamer(t, fake)

	text := "Primera frase corta. Segunda frase corta. Tercera frase corta."
	res, err := s.Stream(t.Context(), sink, "MZ1", "r2", text)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Segments < 3 {
		t.Fatalf("segments=%d", res.Segments)
	}
	want := []string{}
	for i := 0; i < res.Segments; i++ {
		want = append(want, SegmentMark("r2", i))
	}
	want = append(want, DoneMark("r2"))
	got := sink.marks()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("marks=%v want %v", got, want)
	}
	if len(fake.calls) != res.Segments {
		t.Fatalf("synth calls=%d", len(fake.calls))
	}
}

func TestStream_SkipsFailedSegment(t *testing.T) {
	sink := &fakeSink{}
	s := newTestStreamer(t, &fakeTTS{fail: map[string]bool{"Segunda": true}})

	res, err := s.Stream(t.Context(), sink, "MZ1", "r3", "Primera frase corta. Segunda frase corta. Tercera frase corta.")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.SegmentsSkipped != 1 || res.SegmentsSent != res.Segments-1 {
		t.Fatalf("res=%+v", res)
	}
	for _, m := range sink.marks() {
		if m == "r3:1" {
			t.Fatalf("failed segment should not be marked")
		}
	}
	if got := sink.marks(); got[len(got)-1] != "r3:done" {
		t.Fatalf("marks=%v", got)
	}
}

func TestStream_AllSegmentsFailStillCompletes(t *testing.T) {
	sink := &fakeSink{}
	s := newTestStreamer(t, &fakeTTS{fail: map[string]bool{"": true}})

	res, err := s.Stream(t.Context(), sink, "MZ1", "r4", "Nada suena.")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Frames != 0 || res.SegmentsSkipped != 1 {
		t.Fatalf("res=%+v", res)
	}
	if got := sink.marks(); len(got) != 1 || got[0] != "r4:done" {
		t.Fatalf("marks=%v", got)
	}
}

func TestStream_SinkErrorStops(t *testing.T) {
	sink := &fakeSink{failAt: 2}
	s := newTestStreamer(t, &fakeTTS{samples: 1600})

	_, err := s.Stream(t.Context(), sink, "MZ1", "r5", "Hola.")
	if err == nil || !strings.Contains(err.Error(), "send media") {
		t.Fatalf("err=%v", err)
	}
	for _, m := range sink.marks() {
		if m == "r5:done" {
			t.Fatalf("done mark after failure")
		}
	}
}

func TestStream_CancelStopsPlayback(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	sink := &fakeSink{}
	sink.onMedia = func() { cancel() }
	s := newTestStreamer(t, &fakeTTS{samples: 8000})

	res, err := s.Stream(ctx, sink, "MZ1", "r6", "Una respuesta larga.")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if res.Frames != 1 {
		t.Fatalf("frames=%d", res.Frames)
	}
}

func TestStream_SynthesisTimeoutSkips(t *testing.T) {
	sink := &fakeSink{}
	s, err := New(&fakeTTS{block: true}, Config{FrameInterval: time.Millisecond, SegmentTimeout: 10 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.Stream(t.Context(), sink, "MZ1", "r7", "Hola.")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.SegmentsSkipped != 1 {
		t.Fatalf("res=%+v", res)
	}
}

func TestPacer_NoBurstAfterStall(t *testing.T) {
	p := &pacer{interval: 5 * time.Millisecond}
	ctx := t.Context()
	if err := p.wait(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := p.wait(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := p.wait(ctx); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 3*time.Millisecond {
		t.Fatalf("pacer released a catch-up burst")
	}
}

func TestNew_RequiresProvider(t *testing.T) {
	if _, err := New(nil, Config{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}
