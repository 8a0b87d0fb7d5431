package quant

import "encoding/binary"

// Q8_0BlockSize is the number of elements one Q8_0 block decodes to
// (spec.md §4.3 "Q8_0").
const Q8_0BlockSize = 32

// Q8_0BlockBytes is the on-disk size of one Q8_0 block: 2-byte f16
// scale followed by 32 signed 8-bit quants.
const Q8_0BlockBytes = 34

// DequantQ8_0 decodes one or more concatenated Q8_0 blocks from src
// into dst.
func DequantQ8_0(dst []float32, src []byte) {
	numBlocks := len(dst) / Q8_0BlockSize
	for b := 0; b < numBlocks; b++ {
		block := src[b*Q8_0BlockBytes : (b+1)*Q8_0BlockBytes]
		d := f16ToF32(binary.LittleEndian.Uint16(block[0:2]))
		qs := block[2:34]
		out := dst[b*Q8_0BlockSize : (b+1)*Q8_0BlockSize]
		for i := 0; i < Q8_0BlockSize; i++ {
			out[i] = d * float32(int8(qs[i]))
		}
	}
}
