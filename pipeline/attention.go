package pipeline

import (
	"context"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/model"
)

// attention runs one layer's full attention block (spec.md §4.4 steps
// 1-5): pre-attention RMSNorm, Q/K/V projection (with optional bias and
// LoRA), optional Q/K norm, RoPE, KV cache write, causal scaled
// dot-product attention against the cache, output projection, optional
// post-attention (sandwich) norm, and the residual add. x is the
// layer's input hidden state, (numTokens, hidden). writePos is the
// cache position the first token in this call lands at.
func attention(ctx context.Context, rt *runtime, arch model.Arch, l *model.LayerWeights, kv *KVCache, x *gpu.Tensor, isDecode bool) (*gpu.Tensor, error) {
	numTokens := int64(x.Shape[0])
	writePos := int64(kv.WritePos())

	normed, err := rmsNorm(ctx, rt, x, l.PreAttnNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
	if err != nil {
		return nil, err
	}

	q, err := projectQKV(ctx, rt, normed, l.QProj, l.QBias, l.LoRA["q_proj"], isDecode)
	if err != nil {
		return nil, err
	}
	k, err := projectQKV(ctx, rt, normed, l.KProj, l.KBias, l.LoRA["k_proj"], isDecode)
	if err != nil {
		return nil, err
	}
	v, err := projectQKV(ctx, rt, normed, l.VProj, l.VBias, l.LoRA["v_proj"], isDecode)
	if err != nil {
		return nil, err
	}

	if l.QNorm != nil {
		q, err = rmsNorm(ctx, rt, q, l.QNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
		if err != nil {
			return nil, err
		}
	}
	if l.KNorm != nil {
		k, err = rmsNorm(ctx, rt, k, l.KNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
		if err != nil {
			return nil, err
		}
	}

	theta := arch.RopeTheta
	if l.Type == model.SlidingAttention {
		theta = arch.LocalRopeTheta()
	}
	if err := applyRope(ctx, rt, q, numTokens, int64(arch.NumHeads), int64(arch.HeadDim), writePos, theta); err != nil {
		return nil, err
	}
	if err := applyRope(ctx, rt, k, numTokens, int64(arch.NumKVHeads), int64(arch.HeadDim), writePos, theta); err != nil {
		return nil, err
	}

	kCache, vCache := kv.Layer(l.Index)
	offset, size, err := kv.WriteRange(int(numTokens))
	if err != nil {
		return nil, err
	}
	if err := copyIntoCache(ctx, rt, k, kCache, offset, size); err != nil {
		return nil, err
	}
	if err := copyIntoCache(ctx, rt, v, vCache, offset, size); err != nil {
		return nil, err
	}

	start, length := kv.ReadWindow(l.Type, arch.SlidingWindow)
	kWindow := bufAt(2, kCache, int64(start)*kv.rowBytes, int64(length)*kv.rowBytes)
	vWindow := bufAt(3, vCache, int64(start)*kv.rowBytes, int64(length)*kv.rowBytes)

	attnOut, err := runAttention(ctx, rt, arch, numTokens, int64(length), writePos, kWindow, vWindow, q)
	if err != nil {
		return nil, err
	}

	out, err := linear(ctx, rt, attnOut, l.OutProj, isDecode)
	if err != nil {
		return nil, err
	}
	if adapter := l.LoRA["out_proj"]; adapter.Active() {
		out, err = applyLoRA(ctx, rt, attnOut, adapter, out)
		if err != nil {
			return nil, err
		}
	}

	if l.PostAttnNorm != nil {
		out, err = rmsNorm(ctx, rt, out, l.PostAttnNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
		if err != nil {
			return nil, err
		}
	}

	return residualAdd(ctx, rt, x, out, nil)
}

// projectQKV computes one of the Q/K/V projections: base matmul, plus
// optional bias broadcast and optional LoRA delta (spec.md §4.4 step 2).
func projectQKV(ctx context.Context, rt *runtime, x, w, bias *gpu.Tensor, lora *model.LoRAAdapter, isDecode bool) (*gpu.Tensor, error) {
	out, err := linear(ctx, rt, x, w, isDecode)
	if err != nil {
		return nil, err
	}
	if bias != nil {
		if err := biasAdd(ctx, rt, out, bias); err != nil {
			return nil, err
		}
	}
	if lora.Active() {
		out, err = applyLoRA(ctx, rt, x, lora, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// copyIntoCache writes src into dst at byte range [offset, offset+size)
// (the K/V cache write of spec.md §4.4 step 3), reusing the scaled_add
// kernel as a copy (out = src + 0*src) rather than adding a dedicated
// copy kernel for one elementwise pass.
func copyIntoCache(ctx context.Context, rt *runtime, src *gpu.Tensor, dst *gpu.Buffer, offset, size int64) error {
	n := size / 4
	wg := ceilDivU32(n, 64)
	uniform, err := rt.writeUniform("cache_copy_dims", uint32(n), float32Bits(0), wg, 0)
	if err != nil {
		return err
	}
	return rt.dispatch(ctx, kernels.OpResidual, "scaled_add", "kv_cache_write",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, src.Buffer),
			buf(2, src.Buffer),
			bufAt(3, dst, offset, size),
		},
	)
}

// attentionWorkgroupSizeX returns the x workgroup size a decode variant
// is registered with (register_attention.go): decode_subgroup and the
// chunked variants run at 64, every other decode variant at 32.
func attentionWorkgroupSizeX(variant string) int64 {
	switch variant {
	case "decode_subgroup", "decode_chunked", "decode_chunked_f16kv":
		return 64
	default:
		return 32
	}
}

// runAttention dispatches the causal scaled dot-product attention
// kernel for one layer, selecting a variant per spec.md §4.2
// "Attention" and applying the scale override and logit softcap
// (spec.md §4.4 step 4, §8 scenario 4).
func runAttention(ctx context.Context, rt *runtime, arch model.Arch, numTokens, kvLen, writePos int64, kWindow, vWindow binding, q *gpu.Tensor) (*gpu.Tensor, error) {
	caps := rt.device.Capabilities()
	variant := kernels.SelectAttention(kernels.AttentionContext{
		SeqLen:            int(numTokens),
		KVLen:             int(kvLen),
		NumHeads:          arch.NumHeads,
		HeadDim:           arch.HeadDim,
		KVDtype:           gpu.DtypeF32,
		SharedMemoryLimit: int(caps.MaxComputeWorkgroupStorageSize),
		Caps:              caps,
	})

	out, err := rt.allocActivation("attn_out", numTokens*int64(arch.NumHeads*arch.HeadDim), gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = gpu.Shape{int(numTokens), arch.NumHeads * arch.HeadDim}

	var wg gpu.DispatchWorkgroups
	if numTokens == 1 {
		wg = gpu.DispatchWorkgroups{X: ceilDivU32(int64(arch.NumHeads), attentionWorkgroupSizeX(variant)), Y: 1, Z: 1}
	} else {
		wg = gpu.DispatchWorkgroups{X: ceilDivU32(int64(arch.NumHeads), 8), Y: ceilDivU32(numTokens, 8), Z: 1}
	}

	uniform, err := rt.writeUniform("attn_dims",
		uint32(numTokens), uint32(kvLen), uint32(arch.NumHeads), uint32(arch.NumKVHeads),
		uint32(arch.HeadDim), uint32(writePos), float32Bits(arch.AttentionScale()), wg.X,
		float32Bits(arch.AttnLogitSoftcapping), 0, 0, 0,
	)
	if err != nil {
		return nil, err
	}

	err = rt.dispatch(ctx, kernels.OpAttention, variant, "attention",
		wg,
		[]binding{
			buf(0, uniform),
			buf(1, q.Buffer),
			kWindow,
			vWindow,
			buf(4, out.Buffer),
		},
	)
	return out, err
}
