package audio

import (
	"encoding/binary"
	"math"
)

// PCM16ToFloat converts little-endian signed 16-bit PCM bytes into
// normalized float32 samples in [-1.0, 1.0]. raw must have an even length.
func PCM16ToFloat(raw []byte) []float32 {
	n := len(raw) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// FloatToPCM16 is the inverse of PCM16ToFloat: samples are clamped to
// [-1,1], scaled by 32767, and rounded to the nearest integer.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(math.Round(float64(s) * 32767.0))
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}
