package live

import (
	"github.com/Urzzard/Operador-IA/pkg/core/codec"
)

// Detector decides when a caller has finished an utterance. Implementations
// are driven from a single goroutine and need not be safe for concurrent use.
type Detector interface {
	// AddChunk feeds one chunk of 16-bit little-endian PCM.
	AddChunk(pcm []byte)
	// IsFinishedSpeaking reports whether the current utterance has ended.
	IsFinishedSpeaking() bool
	// Speaking reports whether speech has been detected since the last Reset.
	Speaking() bool
	// DrainAsAudio returns everything buffered, pre-roll included, as a WAV
	// file, or nil when nothing was buffered. It does not reset the detector.
	DrainAsAudio() []byte
	// Reset clears the buffer, the silence counter and the speaking flag.
	Reset()
}

// preRollChunks is how many quiet chunks are kept before speech starts so
// the first syllable is not clipped.
const preRollChunks = 10

// EnergyDetector is a fixed-threshold RMS detector.
type EnergyDetector struct {
	config      VADConfig
	audioConfig AudioConfig

	silenceLimit int
	maxChunks    int

	chunks       [][]byte
	speaking     bool
	silentChunks int
	speechChunks int
}

// NewEnergyDetector creates an EnergyDetector. Zero-valued fields in config
// take their defaults.
func NewEnergyDetector(config VADConfig) *EnergyDetector {
	def := DefaultVADConfig()
	if config.EnergyThreshold <= 0 {
		config.EnergyThreshold = def.EnergyThreshold
	}
	if config.SilenceDuration <= 0 {
		config.SilenceDuration = def.SilenceDuration
	}
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = def.ChunkDuration
	}

	d := &EnergyDetector{
		config:       config,
		audioConfig:  TelephonyAudioConfig(),
		silenceLimit: config.SilenceChunks(),
	}
	if config.MaxUtterance > 0 {
		d.maxChunks = int(config.MaxUtterance / config.ChunkDuration)
	}
	return d
}

// Config returns the effective configuration.
func (d *EnergyDetector) Config() VADConfig {
	return d.config
}

// SilenceLimit returns the number of quiet chunks that ends an utterance.
func (d *EnergyDetector) SilenceLimit() int {
	return d.silenceLimit
}

// AddChunk implements Detector.
func (d *EnergyDetector) AddChunk(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)

	loud := CalculateRMSEnergy(pcm) > d.config.EnergyThreshold
	switch {
	case loud:
		d.speaking = true
		d.silentChunks = 0
		d.speechChunks++
	case d.speaking:
		d.silentChunks++
		d.speechChunks++
	default:
		d.chunks = append(d.chunks, chunk)
		if len(d.chunks) > preRollChunks {
			d.chunks = d.chunks[len(d.chunks)-preRollChunks:]
		}
		return
	}
	d.chunks = append(d.chunks, chunk)
}

// IsFinishedSpeaking implements Detector.
func (d *EnergyDetector) IsFinishedSpeaking() bool {
	if !d.speaking {
		return false
	}
	if d.silentChunks >= d.silenceLimit {
		return true
	}
	return d.maxChunks > 0 && d.speechChunks >= d.maxChunks
}

// Speaking implements Detector.
func (d *EnergyDetector) Speaking() bool {
	return d.speaking
}

// SilentChunks returns the current run of quiet chunks since the last loud one.
func (d *EnergyDetector) SilentChunks() int {
	return d.silentChunks
}

// BufferedMs returns the duration of audio currently held.
func (d *EnergyDetector) BufferedMs() int {
	n := 0
	for _, c := range d.chunks {
		n += len(c)
	}
	return d.audioConfig.DurationMs(n)
}

// DrainAsAudio implements Detector.
func (d *EnergyDetector) DrainAsAudio() []byte {
	if len(d.chunks) == 0 {
		return nil
	}
	n := 0
	for _, c := range d.chunks {
		n += len(c)
	}
	pcm := make([]byte, 0, n)
	for _, c := range d.chunks {
		pcm = append(pcm, c...)
	}
	return codec.EncodeWAV(pcm, d.audioConfig.SampleRate)
}

// Reset implements Detector.
func (d *EnergyDetector) Reset() {
	d.chunks = nil
	d.speaking = false
	d.silentChunks = 0
	d.speechChunks = 0
}

var _ Detector = (*EnergyDetector)(nil)
