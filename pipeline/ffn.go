package pipeline

import (
	"context"

	"github.com/dopplerml/doppler/config"
	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/model"
)

// denseFFN runs one layer's dense feed-forward block (spec.md §4.4
// "FFN (dense)"): pre-FFN RMSNorm, gate/up projections (each with
// optional LoRA), activation + gating, down projection (with optional
// LoRA), optional post-FFN norm, and the residual add. swigluLimit is
// 0 when the architecture doesn't clip (config's ffn.swiglu_limit).
func denseFFN(ctx context.Context, rt *runtime, arch model.Arch, l *model.LayerWeights, x *gpu.Tensor, swigluLimit float64, isDecode bool) (*gpu.Tensor, error) {
	normed, err := rmsNorm(ctx, rt, x, l.PreFFNNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
	if err != nil {
		return nil, err
	}

	gated, err := ffnGateUp(ctx, rt, normed, l, arch.Activation, swigluLimit, isDecode)
	if err != nil {
		return nil, err
	}

	down, err := linear(ctx, rt, gated, l.DownProj, isDecode)
	if err != nil {
		return nil, err
	}
	if adapter := l.LoRA["down_proj"]; adapter.Active() {
		down, err = applyLoRA(ctx, rt, gated, adapter, down)
		if err != nil {
			return nil, err
		}
	}

	if l.PostFFNNorm != nil {
		down, err = rmsNorm(ctx, rt, down, l.PostFFNNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
		if err != nil {
			return nil, err
		}
	}

	return residualAdd(ctx, rt, x, down, nil)
}

// ffnGateUp computes activate(gate(x)) * up(x), the shared gate/up/
// activation step used by both the dense FFN and each MoE expert
// (spec.md §4.4 "FFN (dense)" and "MoE FFN").
func ffnGateUp(ctx context.Context, rt *runtime, x *gpu.Tensor, l *model.LayerWeights, activation config.Activation, swigluLimit float64, isDecode bool) (*gpu.Tensor, error) {
	gate, err := linear(ctx, rt, x, l.GateProj, isDecode)
	if err != nil {
		return nil, err
	}
	if adapter := l.LoRA["gate_proj"]; adapter.Active() {
		gate, err = applyLoRA(ctx, rt, x, adapter, gate)
		if err != nil {
			return nil, err
		}
	}

	up, err := linear(ctx, rt, x, l.UpProj, isDecode)
	if err != nil {
		return nil, err
	}
	if adapter := l.LoRA["up_proj"]; adapter.Active() {
		up, err = applyLoRA(ctx, rt, x, adapter, up)
		if err != nil {
			return nil, err
		}
	}

	return applyGating(ctx, rt, gate, up, activation, swigluLimit)
}

// applyGating computes activate(gate)*up element-wise, the step shared
// by the dense FFN path and every MoE expert (spec.md §4.4 "FFN (dense)"
// and "MoE FFN") once gate/up have already been projected (with or
// without LoRA — that distinction lives in the caller).
func applyGating(ctx context.Context, rt *runtime, gate, up *gpu.Tensor, activation config.Activation, swigluLimit float64) (*gpu.Tensor, error) {
	numTokens := int64(gate.Shape[0])
	intermediate := int64(gate.Shape[len(gate.Shape)-1])

	variant := kernels.SelectFFN(kernels.FFNContext{
		Intermediate: intermediate,
		BatchSize:    int(numTokens),
		Caps:         rt.device.Capabilities(),
	})

	out, err := rt.allocActivation("ffn_gated", numTokens*intermediate, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = gate.Shape

	var wg gpu.DispatchWorkgroups
	if variant == "batched" {
		wg = gpu.DispatchWorkgroups{X: ceilDivU32(intermediate, 8), Y: ceilDivU32(numTokens, 8), Z: 1}
	} else {
		wg = gpu.DispatchWorkgroups{X: ceilDivU32(numTokens*intermediate, 64), Y: 1, Z: 1}
	}

	uniform, err := rt.writeUniform("ffn_dims",
		uint32(numTokens), uint32(intermediate), uint32(activation), wg.X,
		float32Bits(swigluLimit), 0, 0, 0,
	)
	if err != nil {
		return nil, err
	}

	err = rt.dispatch(ctx, kernels.OpFusedFFN, variant, "ffn",
		wg,
		[]binding{
			buf(0, uniform),
			buf(1, gate.Buffer),
			buf(2, up.Buffer),
			buf(3, out.Buffer),
		},
	)
	return out, err
}
