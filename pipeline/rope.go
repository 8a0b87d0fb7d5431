package pipeline

import (
	"context"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
)

// applyRope rotates qk in place (spec.md §4.4 step 2: "apply RoPE with
// θ selected from rope_theta or rope_local_theta based on layer type").
// numHeads is the head count of qk specifically (NumHeads for Q,
// NumKVHeads for K); writePos is the cache position the first token in
// this dispatch lands at, used to compute each token's absolute
// rotation angle.
func applyRope(ctx context.Context, rt *runtime, qk *gpu.Tensor, numTokens, numHeads, headDim, writePos int64, theta float64) error {
	uniform, err := rt.writeUniform("rope_dims",
		uint32(numTokens), uint32(numHeads), uint32(headDim), uint32(writePos),
		float32Bits(theta), ceilDivU32(numHeads, 8), 0, 0,
	)
	if err != nil {
		return err
	}
	return rt.dispatch(ctx, kernels.OpRope, "default", "rope",
		gpu.DispatchWorkgroups{X: ceilDivU32(numHeads, 8), Y: ceilDivU32(numTokens, 8), Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, qk.Buffer),
		},
	)
}
