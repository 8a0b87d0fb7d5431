package quant

import (
	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
)

// FusedMatmulPolicy controls whether a Q4_K matmul call-site prefers
// the fused dequant+matmul kernel or falls back to a plain dequant pass
// followed by a regular matmul (spec.md §4.3 "Policy decision").
type FusedMatmulPolicy struct {
	// PreferFusedDecode overrides the default decode-phase preference
	// for dequant-then-matmul. Set from a manifest kernel hint
	// (spec.md §6 external interfaces) when a target profile has
	// measured the fused path faster for decode.
	PreferFusedDecode bool
}

// SelectMatmulVariant resolves the matmul variant for ctx, applying the
// fused-vs-dequant policy before delegating to kernels.SelectMatmul.
//
// Grounded on spec.md §4.3's measured tradeoff: "fused quantized matmul
// is faster for large-batch prefill on subgroup-capable devices but
// ~2.3x slower than dequant-then-matmul for decode on common consumer
// GPUs; the selector's default therefore prefers dequant-then-matmul
// for decode unless manifest kernel hints override." Prefill call-sites
// are unaffected: kernels.SelectMatmul's own ordered decision list
// already prefers the fused path there when B is Q4_K and subgroups
// are available.
func SelectMatmulVariant(ctx kernels.MatmulContext, isDecode bool, policy FusedMatmulPolicy) string {
	if isDecode && ctx.M == 1 && ctx.BDtype == gpu.DtypeQ4K && !policy.PreferFusedDecode {
		dequantCtx := ctx
		dequantCtx.BDtype = ctx.OutputDtype
		return kernels.SelectMatmul(dequantCtx)
	}
	return kernels.SelectMatmul(ctx)
}
