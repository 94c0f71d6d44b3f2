package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWAV = errors.New("not a RIFF/WAVE payload")

// WAV is a decoded PCM WAVE file.
type WAV struct {
	SampleRate int
	Channels   int
	Samples    []int16 // interleaved when Channels > 1
}

// EncodeWAV wraps 16-bit little-endian mono PCM in a canonical 44-byte header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const channels = 1
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV parses a PCM16 WAVE payload. Unknown chunks are skipped.
func DecodeWAV(data []byte) (*WAV, error) {
	if !LooksLikeWAV(data) {
		return nil, ErrNotWAV
	}
	var (
		format, channels, bits int
		sampleRate             int
		pcm                    []byte
		haveFmt                bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if size < 0 || pos+size > len(data) {
			// Streaming writers sometimes leave a bogus data size; take what is there.
			if id == "data" {
				pcm = data[pos:]
			}
			break
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav fmt chunk too small (%d bytes)", size)
			}
			format = int(binary.LittleEndian.Uint16(data[pos:]))
			channels = int(binary.LittleEndian.Uint16(data[pos+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[pos+4:]))
			bits = int(binary.LittleEndian.Uint16(data[pos+14:]))
			haveFmt = true
		case "data":
			pcm = data[pos : pos+size]
		}
		pos += size
		if pos%2 == 1 {
			pos++
		}
	}
	if !haveFmt {
		return nil, fmt.Errorf("wav: missing fmt chunk")
	}
	if format != 1 || bits != 16 {
		return nil, fmt.Errorf("wav: unsupported encoding format=%d bits=%d (need PCM16)", format, bits)
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid channels=%d sample_rate=%d", channels, sampleRate)
	}
	return &WAV{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    BytesToSamples(pcm),
	}, nil
}

// LooksLikeWAV reports whether data starts with a RIFF/WAVE header.
func LooksLikeWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// LooksLikeMP3 reports whether data starts with an ID3 tag or an MPEG frame sync.
func LooksLikeMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
