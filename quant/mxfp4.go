package quant

import "math"

// MXFP4BlockSize is the number of elements one MXFP4 block decodes to:
// 32 elements sharing one microscale, per the OCP MX specification
// (spec.md §4.3 "MXFP4").
const MXFP4BlockSize = 32

// MXFP4BlockBytes is the on-disk size of one MXFP4 block: 1 byte E8M0
// shared exponent scale + 16 bytes of packed 4-bit (E2M1) elements.
const MXFP4BlockBytes = 17

// e2m1LUT maps a 4-bit E2M1 code (sign in bit 3, exponent in bits 2:1,
// mantissa in bit 0) to its represented value, per the OCP MX spec.
var e2m1LUT = [16]float32{
	0.0, 0.5, 1.0, 1.5, 2.0, 3.0, 4.0, 6.0,
	-0.0, -0.5, -1.0, -1.5, -2.0, -3.0, -4.0, -6.0,
}

// e8m0Scale converts an E8M0 byte (an unsigned power-of-two exponent
// biased by 127) into its float32 scale factor.
func e8m0Scale(b byte) float32 {
	return float32(math.Ldexp(1.0, int(b)-127))
}

// DequantMXFP4 decodes one or more concatenated MXFP4 blocks from src
// into dst.
func DequantMXFP4(dst []float32, src []byte) {
	numBlocks := len(dst) / MXFP4BlockSize
	for b := 0; b < numBlocks; b++ {
		block := src[b*MXFP4BlockBytes : (b+1)*MXFP4BlockBytes]
		scale := e8m0Scale(block[0])
		packed := block[1:17]
		out := dst[b*MXFP4BlockSize : (b+1)*MXFP4BlockSize]
		for i := 0; i < 16; i++ {
			lo := packed[i] & 0x0f
			hi := packed[i] >> 4
			out[2*i] = scale * e2m1LUT[lo]
			out[2*i+1] = scale * e2m1LUT[hi]
		}
	}
}
