package live

import (
	"math"
	"testing"
)

func samplesToPCM(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s & 0xFF)
		pcm[i*2+1] = byte((s >> 8) & 0xFF)
	}
	return pcm
}

func TestCalculateRMSEnergy(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int16
		expected float64
	}{
		{name: "silence", samples: []int16{0, 0, 0, 0}, expected: 0.0},
		{name: "max amplitude", samples: []int16{32767, 32767, 32767, 32767}, expected: 1.0},
		{name: "half amplitude", samples: []int16{16384, 16384, 16384, 16384}, expected: 0.5},
		{name: "mixed signal", samples: []int16{16384, -16384, 16384, -16384}, expected: 0.5},
		{name: "empty", samples: nil, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateRMSEnergy(samplesToPCM(tt.samples))
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("expected RMS %.3f, got %.3f", tt.expected, result)
			}
		})
	}
}

func TestCalculatePeakAmplitude(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int16
		expected float64
	}{
		{name: "silence", samples: []int16{0, 0, 0, 0}, expected: 0.0},
		{name: "positive peak", samples: []int16{0, 16384, 0, 0}, expected: 0.5},
		{name: "negative peak", samples: []int16{0, -32768, 0, 0}, expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculatePeakAmplitude(samplesToPCM(tt.samples))
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("expected peak %.3f, got %.3f", tt.expected, result)
			}
		})
	}
}

func TestTelephonyAudioConfig(t *testing.T) {
	cfg := TelephonyAudioConfig()

	// 8kHz, mono, 16-bit = 16000 bytes/second
	if cfg.BytesPerSecond() != 16000 {
		t.Errorf("expected 16000 bytes/sec, got %d", cfg.BytesPerSecond())
	}
	// one 20ms frame decodes to 320 bytes
	if cfg.BytesForDurationMs(20) != 320 {
		t.Errorf("expected 320 bytes for 20ms, got %d", cfg.BytesForDurationMs(20))
	}
	if cfg.DurationMs(16000) != 1000 {
		t.Errorf("expected 1000ms for 16000 bytes, got %d", cfg.DurationMs(16000))
	}
	if (AudioConfig{}).DurationMs(100) != 0 {
		t.Errorf("zero config should report 0ms")
	}
}
