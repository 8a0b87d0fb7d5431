package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/quant"
)

// matmulWorkgroups computes the dispatch grid for a matmul variant,
// matching kernels/shaders/matmul.wgsl's per-entry-point indexing: 2D
// tiled variants walk (col, row) in 8x8 tiles (4 cols/invocation for
// the vec4 variant), GEMV variants walk columns only in 1D.
func matmulWorkgroups(variant string, m, n int64) gpu.DispatchWorkgroups {
	switch variant {
	case "tiled_f32", "f16", "f16w_f32a", "lora":
		return gpu.DispatchWorkgroups{X: ceilDivU32(n, 8), Y: ceilDivU32(m, 8), Z: 1}
	case "f16_vec4":
		return gpu.DispatchWorkgroups{X: ceilDivU32(n, 32), Y: ceilDivU32(m, 8), Z: 1}
	case "q4_fused_batched":
		return gpu.DispatchWorkgroups{X: ceilDivU32(n, 8), Y: ceilDivU32(m, 8), Z: 1}
	case "gemv", "gemv_subgroup", "q4_fused":
		return gpu.DispatchWorkgroups{X: ceilDivU32(n, 64), Y: 1, Z: 1}
	case "gemv_subgroup_vec4":
		return gpu.DispatchWorkgroups{X: ceilDivU32(n, 256), Y: 1, Z: 1}
	case "gemv_subgroup_multicol", "q4_fused_multicol":
		return gpu.DispatchWorkgroups{X: ceilDivU32(n, 128), Y: 1, Z: 1}
	default:
		return gpu.DispatchWorkgroups{X: ceilDivU32(n, 64), Y: ceilDivU32(m, 1), Z: 1}
	}
}

// matmul computes out[M,N] = a[M,K] * w[K,N] (w laid out row-major by
// the loader regardless of on-disk layout; column-major weights are
// transposed at load time per spec.md §6). w.Dtype drives variant
// selection; quantized weights are expected to have already been
// routed through quant.SelectMatmulVariant by the caller when the
// fused-vs-dequant policy applies (spec.md §4.3).
func matmul(ctx context.Context, rt *runtime, a, w *gpu.Tensor, variant string) (*gpu.Tensor, error) {
	if len(a.Shape) != 2 || len(w.Shape) != 2 {
		return nil, fmt.Errorf("pipeline: matmul requires rank-2 tensors, got a=%v w=%v", a.Shape, w.Shape)
	}
	m, k := int64(a.Shape[0]), int64(a.Shape[1])
	k2, n := int64(w.Shape[0]), int64(w.Shape[1])
	if k != k2 {
		return nil, fmt.Errorf("pipeline: matmul shape mismatch: a has K=%d, w has K=%d", k, k2)
	}

	out, err := rt.allocActivation("matmul_out", m*n, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = gpu.Shape{int(m), int(n)}

	wg := matmulWorkgroups(variant, m, n)
	uniform, err := rt.writeUniform("matmul_dims", uint32(m), uint32(n), uint32(k), wg.X)
	if err != nil {
		return nil, err
	}

	err = rt.dispatch(ctx, kernels.OpMatmul, variant, "matmul",
		wg,
		[]binding{
			buf(0, uniform),
			buf(1, a.Buffer),
			buf(2, w.Buffer),
			buf(3, out.Buffer),
		},
	)
	return out, err
}

// matmulTransposedB computes out[M,N] = a[M,K] * bT[N,K]^T, for weights
// kept in (out_features, in_features) orientation instead of the
// load-time-transposed layout matmul() expects — LoRA adapter matrices
// (spec.md §4.4 "LoRA"), which are small enough that paying for an
// extra kernel variant beats transposing them at load time.
func matmulTransposedB(ctx context.Context, rt *runtime, a, bT *gpu.Tensor) (*gpu.Tensor, error) {
	if len(a.Shape) != 2 || len(bT.Shape) != 2 {
		return nil, fmt.Errorf("pipeline: matmulTransposedB requires rank-2 tensors, got a=%v bT=%v", a.Shape, bT.Shape)
	}
	m, k := int64(a.Shape[0]), int64(a.Shape[1])
	n, k2 := int64(bT.Shape[0]), int64(bT.Shape[1])
	if k != k2 {
		return nil, fmt.Errorf("pipeline: matmulTransposedB shape mismatch: a has K=%d, bT has K=%d", k, k2)
	}

	out, err := rt.allocActivation("lora_matmul_out", m*n, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = gpu.Shape{int(m), int(n)}

	wg := matmulWorkgroups("lora", m, n)
	uniform, err := rt.writeUniform("matmul_dims", uint32(m), uint32(n), uint32(k), wg.X)
	if err != nil {
		return nil, err
	}

	err = rt.dispatch(ctx, kernels.OpMatmul, "lora", "lora_matmul",
		wg,
		[]binding{
			buf(0, uniform),
			buf(1, a.Buffer),
			buf(2, bT.Buffer),
			buf(3, out.Buffer),
		},
	)
	return out, err
}

// linear computes out[M,N] = a[M,K] * w[K,N] for a projection weight
// that may be quantized, applying the fused-vs-dequant policy (spec.md
// §4.3) before dispatching: a fused variant runs directly against the
// packed weight, otherwise w is dequantized to f32 first.
func linear(ctx context.Context, rt *runtime, a, w *gpu.Tensor, isDecode bool) (*gpu.Tensor, error) {
	m, k := int64(a.Shape[0]), int64(a.Shape[1])
	n := int64(w.Shape[len(w.Shape)-1])

	variant := quant.SelectMatmulVariant(kernels.MatmulContext{
		M: m, N: n, K: k,
		ADtype:      gpu.DtypeF32,
		BDtype:      w.Dtype,
		OutputDtype: gpu.DtypeF32,
		Caps:        rt.device.Capabilities(),
	}, isDecode, rt.policy)

	if w.Dtype.IsQuantized() && !strings.HasPrefix(variant, "q4_") {
		dequanted, err := dequantWeight(ctx, rt, w)
		if err != nil {
			return nil, err
		}
		return matmul(ctx, rt, a, dequanted, variant)
	}
	return matmul(ctx, rt, a, w, variant)
}
