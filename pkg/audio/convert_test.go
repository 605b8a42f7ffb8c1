package audio

import (
	"encoding/binary"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	raw := make([]byte, 0)
	for _, v := range []int16{0, 1, -1, 32767, -32768, 100, -100} {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		raw = append(raw, b...)
	}

	samples := PCM16ToFloat(raw)
	back := FloatToPCM16(samples)

	if len(back) != len(raw) {
		t.Fatalf("length mismatch: got %d want %d", len(back), len(raw))
	}
	for i := 0; i < len(raw); i += 2 {
		orig := int16(binary.LittleEndian.Uint16(raw[i : i+2]))
		got := int16(binary.LittleEndian.Uint16(back[i : i+2]))
		diff := int(orig) - int(got)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			t.Errorf("sample %d: round trip error %d exceeds 1 LSB (orig=%d got=%d)", i/2, diff, orig, got)
		}
	}
}

func TestFloatToPCM16Clamps(t *testing.T) {
	out := FloatToPCM16([]float32{2.0, -2.0})
	hi := int16(binary.LittleEndian.Uint16(out[0:2]))
	lo := int16(binary.LittleEndian.Uint16(out[2:4]))
	if hi != 32767 {
		t.Errorf("expected clamp to 32767, got %d", hi)
	}
	if lo != -32767 {
		t.Errorf("expected clamp to -32767, got %d", lo)
	}
}
