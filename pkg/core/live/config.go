package live

import (
	"math"
	"time"
)

// VADConfig configures the energy voice activity detector.
type VADConfig struct {
	// EnergyThreshold is the normalized RMS level (0.0-1.0) above which a
	// chunk counts as speech. Default: 0.02
	EnergyThreshold float64 `json:"energy_threshold" yaml:"energy_threshold"`

	// SilenceDuration is how much trailing silence ends an utterance.
	// Default: 700ms
	SilenceDuration time.Duration `json:"silence_duration" yaml:"silence_duration"`

	// ChunkDuration is the duration of one inbound chunk. Twilio sends 20ms frames.
	// Default: 20ms
	ChunkDuration time.Duration `json:"chunk_duration" yaml:"chunk_duration"`

	// MaxUtterance force-finishes an utterance that keeps going past this length.
	// Zero disables the cap. Default: 15s
	MaxUtterance time.Duration `json:"max_utterance" yaml:"max_utterance"`
}

// DefaultVADConfig returns a VADConfig tuned for 8 kHz telephone audio.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold: 0.02, // ≈ 650 on the int16 scale
		SilenceDuration: 700 * time.Millisecond,
		ChunkDuration:   20 * time.Millisecond,
		MaxUtterance:    15 * time.Second,
	}
}

// SilenceChunks is the number of consecutive quiet chunks that ends an utterance.
func (c VADConfig) SilenceChunks() int {
	if c.ChunkDuration <= 0 || c.SilenceDuration <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(c.SilenceDuration) / float64(c.ChunkDuration)))
	if n < 1 {
		n = 1
	}
	return n
}

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz. The carrier side is always 8000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// TelephonyAudioConfig is decoded carrier audio: 8 kHz mono 16-bit PCM.
func TelephonyAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    8000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}
