package quant

import "encoding/binary"

// Q6KBlockSize is the number of elements one Q6_K super-block decodes
// to (spec.md §4.3 "Q6_K").
const Q6KBlockSize = 256

// Q6KBlockBytes is the on-disk size of one Q6_K super-block: 128 bytes
// of low 4-bit quant halves, 64 bytes of high 2-bit quant halves, 16
// int8 per-sub-block scales, and the main f16 scale at offset 208.
const Q6KBlockBytes = 210

const q6kScaleOffset = 208

// DequantQ6K decodes one or more concatenated Q6_K super-blocks from
// src into dst.
func DequantQ6K(dst []float32, src []byte) {
	numBlocks := len(dst) / Q6KBlockSize
	for b := 0; b < numBlocks; b++ {
		block := src[b*Q6KBlockBytes : (b+1)*Q6KBlockBytes]
		ql := block[0:128]
		qh := block[128:192]
		sc := block[192:208]
		d := f16ToF32(binary.LittleEndian.Uint16(block[q6kScaleOffset : q6kScaleOffset+2]))

		out := dst[b*Q6KBlockSize : (b+1)*Q6KBlockSize]
		for half := 0; half < 2; half++ {
			qlHalf := ql[half*64 : half*64+64]
			qhHalf := qh[half*32 : half*32+32]
			scHalf := sc[half*8 : half*8+8]
			outHalf := out[half*128 : half*128+128]
			for l := 0; l < 32; l++ {
				is := l / 16
				q1 := int32((qlHalf[l]&0xf)|((qhHalf[l]>>0)&3)<<4) - 32
				q2 := int32((qlHalf[l+32]&0xf)|((qhHalf[l]>>2)&3)<<4) - 32
				q3 := int32((qlHalf[l]>>4)|((qhHalf[l]>>4)&3)<<4) - 32
				q4 := int32((qlHalf[l+32]>>4)|((qhHalf[l]>>6)&3)<<4) - 32

				outHalf[l] = d * float32(int8(scHalf[is+0])) * float32(q1)
				outHalf[l+32] = d * float32(int8(scHalf[is+2])) * float32(q2)
				outHalf[l+64] = d * float32(int8(scHalf[is+4])) * float32(q3)
				outHalf[l+96] = d * float32(int8(scHalf[is+6])) * float32(q4)
			}
		}
	}
}
