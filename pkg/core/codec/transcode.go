// Package codec converts audio between the telephony wire format (8 kHz G.711)
// and the linear PCM / compressed formats used by the speech services.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// TelephonySampleRate is the carrier's narrow-band sample rate.
const TelephonySampleRate = 8000

// Encoding is a G.711 variant.
type Encoding string

const (
	Mulaw Encoding = "mulaw"
	Alaw  Encoding = "alaw"
)

var ErrEmptyAudio = errors.New("empty audio payload")

// ParseEncoding accepts the common spellings used by carriers and config files.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mulaw", "ulaw", "pcmu", "audio/x-mulaw", "g711_ulaw":
		return Mulaw, nil
	case "alaw", "pcma", "audio/x-alaw", "g711_alaw":
		return Alaw, nil
	default:
		return "", fmt.Errorf("unsupported telephony encoding %q", s)
	}
}

// DecodeFrame expands companded bytes to 16-bit little-endian PCM, one sample
// per input byte. It never fails: an unknown encoding returns the input unchanged.
func DecodeFrame(enc Encoding, frame []byte) []byte {
	var table *[256]int16
	switch enc {
	case Mulaw:
		table = &ulawTable
	case Alaw:
		table = &alawTable
	default:
		return frame
	}
	out := make([]byte, len(frame)*2)
	for i, b := range frame {
		s := uint16(table[b])
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Silence returns the companded byte for a zero sample.
func Silence(enc Encoding) byte {
	if enc == Alaw {
		return LinearToAlaw(0)
	}
	return LinearToMulaw(0)
}

// EncodePCM compands 16-bit little-endian PCM (already at 8 kHz) to enc.
func EncodePCM(enc Encoding, pcm []byte) []byte {
	return encodeSamples(enc, BytesToSamples(pcm))
}

func encodeSamples(enc Encoding, samples []int16) []byte {
	compand := LinearToMulaw
	if enc == Alaw {
		compand = LinearToAlaw
	}
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = compand(s)
	}
	return out
}

// ToTelephony converts a synthesized payload to companded 8 kHz mono bytes.
// MP3 and WAV are recognised by their headers; anything else is treated as
// raw 16-bit PCM at 8 kHz. Compressed input is decoded fully in memory before
// it is re-encoded, so callers should keep segments short.
func ToTelephony(enc Encoding, audio []byte) ([]byte, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	var (
		mono []int16
		rate int
	)
	switch {
	case LooksLikeWAV(audio):
		w, err := DecodeWAV(audio)
		if err != nil {
			return nil, err
		}
		mono, rate = toMono(w.Samples, w.Channels), w.SampleRate
	case LooksLikeMP3(audio):
		samples, sr, err := DecodeMP3(audio)
		if err != nil {
			return nil, err
		}
		mono, rate = samples, sr
	default:
		mono, rate = BytesToSamples(audio), TelephonySampleRate
	}
	return encodeSamples(enc, Resample(mono, rate, TelephonySampleRate)), nil
}

// DecodeMP3 decodes an MP3 stream to mono 16-bit samples and returns its sample rate.
func DecodeMP3(data []byte) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decoder: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil && len(raw) == 0 {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}
	// go-mp3 always yields interleaved stereo 16-bit little-endian.
	raw = raw[:len(raw)-len(raw)%4]
	return toMono(BytesToSamples(raw), 2), dec.SampleRate(), nil
}
