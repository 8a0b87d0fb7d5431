package pipeline

import (
	"context"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/model"
)

// applyLoRA folds an adapter's low-rank delta into base in place (spec.md
// §4.4 "LoRA": "y = W*x + scale * (B * (A * x))"). x is the module's
// input activation, the same tensor that was projected through the base
// weight to produce base. A no-op when adapter is nil or Rank == 0.
func applyLoRA(ctx context.Context, rt *runtime, x *gpu.Tensor, adapter *model.LoRAAdapter, base *gpu.Tensor) (*gpu.Tensor, error) {
	if !adapter.Active() {
		return base, nil
	}
	h, err := matmulTransposedB(ctx, rt, x, adapter.A)
	if err != nil {
		return nil, err
	}
	delta, err := matmulTransposedB(ctx, rt, h, adapter.B)
	if err != nil {
		return nil, err
	}
	return scaledAdd(ctx, rt, base, delta, adapter.Scale, base)
}
