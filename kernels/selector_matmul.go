package kernels

import "github.com/dopplerml/doppler/gpu"

// MatmulContext is the call-site record the matmul selector decides
// from (spec.md §4.2 "Matmul").
type MatmulContext struct {
	M, N, K     int64
	ADtype      gpu.Dtype
	BDtype      gpu.Dtype
	OutputDtype gpu.Dtype
	PreferF16   bool
	UseVec4     bool
	Caps        gpu.Capabilities
}

// SelectMatmul picks a matmul variant name per spec.md §4.2's ordered
// decision list: fused Q4_K path first, then full-f16, then mixed
// f16-weight/f32-activation, then GEMV specializations for M=1, then
// the tiled f32 fallback.
func SelectMatmul(c MatmulContext) string {
	if c.BDtype == gpu.DtypeQ4K && c.Caps.HasSubgroups {
		switch {
		case c.M == 1 && c.N > 8192:
			return "q4_fused_multicol"
		case c.M == 1:
			return "q4_fused"
		default:
			return "q4_fused_batched"
		}
	}

	if c.ADtype == gpu.DtypeF16 && c.BDtype == gpu.DtypeF16 && c.OutputDtype == gpu.DtypeF16 && c.Caps.HasF16 {
		if c.UseVec4 {
			return "f16_vec4"
		}
		return "f16"
	}

	if c.BDtype == gpu.DtypeF16 && c.Caps.HasF16 {
		return "f16w_f32a"
	}

	if c.M == 1 {
		if c.BDtype == gpu.DtypeF16 {
			if c.Caps.HasSubgroups {
				if c.N > 8192 {
					return "gemv_subgroup_multicol"
				}
				if c.UseVec4 {
					return "gemv_subgroup_vec4"
				}
				return "gemv_subgroup"
			}
			return "gemv"
		}
		return "gemv"
	}

	return "tiled_f32"
}
