package quant

import (
	"math"
	"testing"
)

func TestF16ToF32KnownValues(t *testing.T) {
	cases := []struct {
		bits uint16
		want float32
	}{
		{0x0000, 0.0},
		{0x3c00, 1.0},
		{0xbc00, -1.0},
		{0x4000, 2.0},
		{0x3800, 0.5},
	}
	for _, c := range cases {
		got := f16ToF32(c.bits)
		if math.Abs(float64(got-c.want)) > 1e-6 {
			t.Errorf("f16ToF32(0x%04x) = %v, want %v", c.bits, got, c.want)
		}
	}
}

func TestF16ToF32RoundTrip(t *testing.T) {
	for _, v := range []float32{0.25, -0.25, 3.5, -7.0, 100.0} {
		bits := f32ToF16(v)
		got := f16ToF32(bits)
		if math.Abs(float64(got-v)) > 1e-2 {
			t.Errorf("round trip %v -> 0x%04x -> %v, diff too large", v, bits, got)
		}
	}
}
