package pipeline

import (
	"context"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
)

// residualAdd computes out = a + b element-wise (spec.md §4.4 "Add to
// residual"). When out is nil, a is overwritten in place: binding both
// the read-only and the read_write view of the sum at the same buffer
// is safe here because every output index only ever depends on the
// input at that same index.
func residualAdd(ctx context.Context, rt *runtime, a, b *gpu.Tensor, out *gpu.Tensor) (*gpu.Tensor, error) {
	n := a.Shape.NumElements()
	if out == nil {
		out = a
	}
	wg := ceilDivU32(n, 64)
	uniform, err := rt.writeUniform("residual_dims", uint32(n), wg, 0, 0)
	if err != nil {
		return nil, err
	}
	err = rt.dispatch(ctx, kernels.OpResidual, "default", "residual_add",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, a.Buffer),
			buf(2, b.Buffer),
			buf(3, out.Buffer),
		},
	)
	return out, err
}

// scaledAdd computes out = a + scale*b element-wise, writing into a in
// place when out is nil. Used to fold a LoRA delta into a base
// projection output (spec.md §4.4 "LoRA").
func scaledAdd(ctx context.Context, rt *runtime, a, b *gpu.Tensor, scale float64, out *gpu.Tensor) (*gpu.Tensor, error) {
	n := a.Shape.NumElements()
	if out == nil {
		out = a
	}
	wg := ceilDivU32(n, 64)
	uniform, err := rt.writeUniform("scaled_add_dims", uint32(n), float32Bits(scale), wg, 0)
	if err != nil {
		return nil, err
	}
	err = rt.dispatch(ctx, kernels.OpResidual, "scaled_add", "scaled_add",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, a.Buffer),
			buf(2, b.Buffer),
			buf(3, out.Buffer),
		},
	)
	return out, err
}

// biasAdd broadcasts bias (one row of length hidden) across every row of
// x in place, for the Q/K/V projection biases (spec.md §4.4 step 2,
// Arch.AttentionBias).
func biasAdd(ctx context.Context, rt *runtime, x, bias *gpu.Tensor) error {
	numTokens := int64(x.Shape[0])
	hidden := int64(x.Shape[len(x.Shape)-1])
	wg := ceilDivU32(numTokens*hidden, 64)
	uniform, err := rt.writeUniform("bias_add_dims", uint32(numTokens), uint32(hidden), wg, 0)
	if err != nil {
		return err
	}
	return rt.dispatch(ctx, kernels.OpActivation, "bias_add", "bias_add",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, bias.Buffer),
			buf(2, x.Buffer),
		},
	)
}

// lastRow copies row numRows-1 out of x (shape (numRows, width)) into a
// freshly allocated (1, width) tensor, via the scaled_add-as-copy trick
// copyIntoCache also uses. Used to restrict the LM-head projection and
// sampling to the final position of a prefill batch, rather than
// computing logits for every prompt position only to discard all but
// the last (spec.md §4.4 "Final output").
func lastRow(ctx context.Context, rt *runtime, x *gpu.Tensor, numRows, width int64, label string) (*gpu.Tensor, error) {
	if numRows <= 1 {
		return x, nil
	}
	rowBytes := width * 4
	offset := (numRows - 1) * rowBytes

	out, err := rt.allocActivation(label, width, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = gpu.Shape{1, int(width)}

	wg := ceilDivU32(width, 64)
	uniform, err := rt.writeUniform("scaled_add_dims", uint32(width), float32Bits(0), wg, 0)
	if err != nil {
		return nil, err
	}
	err = rt.dispatch(ctx, kernels.OpResidual, "scaled_add", label,
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			bufAt(1, x.Buffer, offset, rowBytes),
			bufAt(2, x.Buffer, offset, rowBytes),
			buf(3, out.Buffer),
		},
	)
	return out, err
}

// applySoftcap bounds x in place to [-cap, cap] via cap*tanh(x/cap); a
// no-op when cap is 0 (spec.md §4.4 "Optional final logit softcap").
func applySoftcap(ctx context.Context, rt *runtime, x *gpu.Tensor, cap float64) error {
	if cap == 0 {
		return nil
	}
	n := x.Shape.NumElements()
	wg := ceilDivU32(n, 64)
	uniform, err := rt.writeUniform("softcap_dims", uint32(n), float32Bits(cap), wg, 0)
	if err != nil {
		return err
	}
	return rt.dispatch(ctx, kernels.OpActivation, "softcap", "final_softcap",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, x.Buffer),
		},
	)
}
