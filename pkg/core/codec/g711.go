package codec

// G.711 companding as specified by ITU-T (Sun reference implementation).
// Expansion is table driven so every code maps to exactly one linear value.

const (
	signBit   = 0x80
	quantMask = 0x0F
	segShift  = 4
	segMask   = 0x70

	ulawBias = 0x84
	ulawClip = 8159
)

var (
	segUEnd = [8]int{0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF}
	segAEnd = [8]int{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}

	ulawTable [256]int16
	alawTable [256]int16
)

func init() {
	for i := 0; i < 256; i++ {
		ulawTable[i] = ulawToLinear(byte(i))
		alawTable[i] = alawToLinear(byte(i))
	}
}

func search(val int, table *[8]int) int {
	for i, end := range table {
		if val <= end {
			return i
		}
	}
	return len(table)
}

// LinearToMulaw compands one 16-bit sample to μ-law.
func LinearToMulaw(sample int16) byte {
	pcm := int(sample) >> 2
	mask := 0xFF
	if pcm < 0 {
		pcm = -pcm
		mask = 0x7F
	}
	if pcm > ulawClip {
		pcm = ulawClip
	}
	pcm += ulawBias >> 2

	seg := search(pcm, &segUEnd)
	if seg >= 8 {
		return byte(0x7F ^ mask)
	}
	uval := (seg << 4) | ((pcm >> (seg + 1)) & quantMask)
	return byte(uval ^ mask)
}

// MulawToLinear expands one μ-law code to a 16-bit sample.
func MulawToLinear(u byte) int16 {
	return ulawTable[u]
}

func ulawToLinear(u byte) int16 {
	u = ^u
	t := (int(u&quantMask) << 3) + ulawBias
	t <<= (int(u) & segMask) >> segShift
	if u&signBit != 0 {
		return int16(ulawBias - t)
	}
	return int16(t - ulawBias)
}

// LinearToAlaw compands one 16-bit sample to A-law.
func LinearToAlaw(sample int16) byte {
	pcm := int(sample) >> 3
	mask := 0xD5
	if pcm < 0 {
		mask = 0x55
		pcm = -pcm - 1
	}

	seg := search(pcm, &segAEnd)
	if seg >= 8 {
		return byte(0x7F ^ mask)
	}
	aval := seg << segShift
	if seg < 2 {
		aval |= (pcm >> 1) & quantMask
	} else {
		aval |= (pcm >> seg) & quantMask
	}
	return byte(aval ^ mask)
}

// AlawToLinear expands one A-law code to a 16-bit sample.
func AlawToLinear(a byte) int16 {
	return alawTable[a]
}

func alawToLinear(a byte) int16 {
	a ^= 0x55
	t := int(a&quantMask) << 4
	seg := (int(a) & segMask) >> segShift
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&signBit != 0 {
		return int16(t)
	}
	return int16(-t)
}
