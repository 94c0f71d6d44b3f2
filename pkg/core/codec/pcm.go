package codec

import (
	"encoding/binary"
	"math"
)

// BytesToSamples interprets b as 16-bit little-endian PCM. A trailing odd byte is ignored.
func BytesToSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// SamplesToBytes renders samples as 16-bit little-endian PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func toMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// Resample converts mono PCM between sample rates using linear interpolation.
// When downsampling, a moving average over the rate ratio is applied first to
// keep most of the energy above the new Nyquist frequency out of the result.
func Resample(in []int16, inRate, outRate int) []int16 {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || len(in) == 0 {
		return append([]int16(nil), in...)
	}
	src := in
	if inRate > outRate {
		src = boxFilter(in, int(math.Ceil(float64(inRate)/float64(outRate))))
	}

	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(src)) * ratio))
	if outLen <= 0 {
		return []int16{}
	}
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) / ratio
		i0 := int(math.Floor(pos))
		if i0 >= len(src) {
			i0 = len(src) - 1
		}
		i1 := i0 + 1
		if i1 >= len(src) {
			i1 = len(src) - 1
		}
		f := pos - float64(i0)
		v := float64(src[i0])*(1-f) + float64(src[i1])*f
		out[i] = clamp16(v)
	}
	return out
}

func boxFilter(in []int16, width int) []int16 {
	if width <= 1 {
		return in
	}
	out := make([]int16, len(in))
	var acc int
	for i, s := range in {
		acc += int(s)
		if i >= width {
			acc -= int(in[i-width])
		}
		n := width
		if i+1 < width {
			n = i + 1
		}
		out[i] = int16(acc / n)
	}
	return out
}

func clamp16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(math.Round(v))
}
