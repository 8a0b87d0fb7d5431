package quant

import (
	"testing"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
)

func TestSelectMatmulVariantDecodePrefersDequant(t *testing.T) {
	ctx := kernels.MatmulContext{
		M: 1, N: 4096, K: 4096,
		BDtype:      gpu.DtypeQ4K,
		OutputDtype: gpu.DtypeF32,
		Caps:        gpu.Capabilities{HasSubgroups: true},
	}
	got := SelectMatmulVariant(ctx, true, FusedMatmulPolicy{})
	if got == "q4_fused" || got == "q4_fused_multicol" || got == "q4_fused_batched" {
		t.Errorf("SelectMatmulVariant(decode) = %q, want dequant-then-matmul path per spec.md policy", got)
	}
}

func TestSelectMatmulVariantDecodeOverride(t *testing.T) {
	ctx := kernels.MatmulContext{
		M: 1, N: 4096, K: 4096,
		BDtype:      gpu.DtypeQ4K,
		OutputDtype: gpu.DtypeF32,
		Caps:        gpu.Capabilities{HasSubgroups: true},
	}
	got := SelectMatmulVariant(ctx, true, FusedMatmulPolicy{PreferFusedDecode: true})
	if got != "q4_fused" {
		t.Errorf("SelectMatmulVariant(decode, override) = %q, want q4_fused", got)
	}
}

func TestSelectMatmulVariantPrefillUsesFused(t *testing.T) {
	ctx := kernels.MatmulContext{
		M: 64, N: 4096, K: 4096,
		BDtype:      gpu.DtypeQ4K,
		OutputDtype: gpu.DtypeF32,
		Caps:        gpu.Capabilities{HasSubgroups: true},
	}
	got := SelectMatmulVariant(ctx, false, FusedMatmulPolicy{})
	if got != "q4_fused_batched" {
		t.Errorf("SelectMatmulVariant(prefill) = %q, want q4_fused_batched", got)
	}
}
