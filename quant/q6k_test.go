package quant

import (
	"encoding/binary"
	"testing"
)

func TestDequantQ6KUniform(t *testing.T) {
	block := make([]byte, Q6KBlockBytes)
	// ql and qh left zero; scales all 1 (int8); d = 1.0 at offset 208.
	sc := block[192:208]
	for i := range sc {
		sc[i] = 1
	}
	binary.LittleEndian.PutUint16(block[q6kScaleOffset:q6kScaleOffset+2], f32ToF16(1.0))

	out := make([]float32, Q6KBlockSize)
	DequantQ6K(out, block)

	for i, v := range out {
		if v != -32 {
			t.Fatalf("out[%d] = %v, want -32", i, v)
		}
	}
}

func TestDequantQ6KScaled(t *testing.T) {
	block := make([]byte, Q6KBlockBytes)
	sc := block[192:208]
	for i := range sc {
		sc[i] = 2
	}
	binary.LittleEndian.PutUint16(block[q6kScaleOffset:q6kScaleOffset+2], f32ToF16(0.5))

	out := make([]float32, Q6KBlockSize)
	DequantQ6K(out, block)

	want := float32(0.5) * 2 * -32
	for i, v := range out {
		if v != want {
			t.Fatalf("out[%d] = %v, want %v", i, v, want)
		}
	}
}
