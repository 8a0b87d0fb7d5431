package pipeline

import (
	"context"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/model"
)

// runLayer runs one transformer decoder layer end to end (spec.md §4.4
// "Layer"): the attention block, then either the dense feed-forward
// block or the mixture-of-experts block, chosen per-layer by
// l.IsMoE(). Both attention and the FFN blocks own their residual add
// internally (spec.md §4.4 steps 5 and the FFN step's final add), so
// runLayer just threads the hidden state through in sequence.
func runLayer(ctx context.Context, rt *runtime, arch model.Arch, l *model.LayerWeights, kv *KVCache, x *gpu.Tensor, swigluLimit float64, isDecode bool) (*gpu.Tensor, error) {
	attnOut, err := attention(ctx, rt, arch, l, kv, x, isDecode)
	if err != nil {
		return nil, err
	}

	if l.IsMoE() {
		return moe(ctx, rt, arch, l, attnOut, isDecode)
	}
	return denseFFN(ctx, rt, arch, l, attnOut, swigluLimit, isDecode)
}
