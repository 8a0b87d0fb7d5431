package kernels

import "github.com/dopplerml/doppler/gpu"

// DequantContext is the call-site record for the dequant selector
// (spec.md §4.2 "Dequant").
type DequantContext struct {
	Format       gpu.Dtype
	NumElements  int64
	BlockSize    int64
	Caps         gpu.Capabilities
}

// SelectDequant dispatches by quantization format and shape, preferring
// vec4 when the element count divides evenly by 4 and subgroup variants
// when supported and registered for the format.
func SelectDequant(c DequantContext) string {
	vec4 := c.NumElements%4 == 0

	switch c.Format {
	case gpu.DtypeQ4K:
		if c.Caps.HasSubgroups {
			return "q4k_subgroup"
		}
		if vec4 {
			return "q4k_vec4"
		}
		return "q4k"
	case gpu.DtypeQ6K:
		if vec4 {
			return "q6k_vec4"
		}
		return "q6k"
	case gpu.DtypeQ8_0:
		if c.Caps.HasSubgroups {
			return "q8_0_subgroup"
		}
		if vec4 {
			return "q8_0_vec4"
		}
		return "q8_0"
	case gpu.DtypeMXFP4:
		if vec4 {
			return "mxfp4_vec4"
		}
		return "mxfp4"
	default:
		return "q8_0"
	}
}
