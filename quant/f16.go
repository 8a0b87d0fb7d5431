// Package quant implements the block-quantization codecs doppler's
// weight loader and dequant kernels share: Q4_K, Q6_K, Q8_0, and MXFP4
// (spec.md §4.3), plus the fused dequant+matmul policy decision.
package quant

import "math"

// f16ToF32 converts an IEEE-754 binary16 value to float32. Grounded on
// the standard half-precision bit-layout (1 sign, 5 exponent, 10
// mantissa bits); block formats embed their scales as f16, so every
// codec in this package depends on this conversion.
func f16ToF32(bits uint16) float32 {
	sign := uint32(bits>>15) & 0x1
	exp := uint32(bits>>10) & 0x1f
	frac := uint32(bits) & 0x3ff

	var out uint32
	switch {
	case exp == 0 && frac == 0:
		out = sign << 31
	case exp == 0:
		// Subnormal: normalize by shifting the mantissa into range.
		e := -1
		m := frac
		for m&0x400 == 0 {
			m <<= 1
			e--
		}
		m &= 0x3ff
		out = (sign << 31) | uint32(int32(e+127-15))<<23 | (m << 13)
	case exp == 0x1f:
		out = (sign << 31) | (0xff << 23) | (frac << 13)
	default:
		out = (sign << 31) | ((exp - 15 + 127) << 23) | (frac << 13)
	}
	return math.Float32frombits(out)
}
