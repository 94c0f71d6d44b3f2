package bridge

import (
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core/codec"
	"github.com/Urzzard/Operador-IA/pkg/core/live"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/stream"
)

const (
	DefaultSTTTimeout      = 15 * time.Second
	DefaultFarewellMinWait = 3 * time.Second
	DefaultFarewellMargin  = 500 * time.Millisecond
	DefaultHangupTimeout   = 10 * time.Second
	DefaultMaxCallDuration = 15 * time.Minute
	DefaultLanguage        = "es"

	defaultOutboundQueue   = 64
	defaultMaxMessageBytes = 64 << 10
	archiveTimeout         = 5 * time.Second
)

// Config configures every call served by a Bridge.
type Config struct {
	// Encoding is used when the start event does not name a media format.
	Encoding codec.Encoding
	VAD      live.VADConfig
	Stream   stream.Config

	STTTimeout time.Duration
	Language   string

	// After the farewell the bridge waits at least FarewellMinWait from the
	// start of its audio and at least FarewellMargin after its last frame.
	FarewellMinWait time.Duration
	FarewellMargin  time.Duration
	HangupTimeout   time.Duration

	MaxCallDuration time.Duration
	// FallbackToTestEmployee answers unknown numbers as the test employee
	// instead of apologising and hanging up.
	FallbackToTestEmployee bool

	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	MaxMessageBytes int64
	OutboundQueue   int
}

func (c Config) withDefaults() Config {
	if c.Encoding == "" {
		c.Encoding = codec.Mulaw
	}
	if c.STTTimeout <= 0 {
		c.STTTimeout = DefaultSTTTimeout
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.FarewellMinWait <= 0 {
		c.FarewellMinWait = DefaultFarewellMinWait
	}
	if c.FarewellMargin <= 0 {
		c.FarewellMargin = DefaultFarewellMargin
	}
	if c.HangupTimeout <= 0 {
		c.HangupTimeout = DefaultHangupTimeout
	}
	if c.MaxCallDuration <= 0 {
		c.MaxCallDuration = DefaultMaxCallDuration
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.OutboundQueue <= 0 {
		c.OutboundQueue = defaultOutboundQueue
	}
	return c
}
