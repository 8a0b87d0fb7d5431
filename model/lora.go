package model

import (
	"fmt"

	"github.com/dopplerml/doppler/gpu"
)

// LoRAAdapter is a low-rank adapter attached to one weight module
// (spec.md §4.4 "LoRA"): y = W*x + scale * (B * (A * x)), A is (r x K),
// B is (N x r).
type LoRAAdapter struct {
	A     *gpu.Tensor // (r, K)
	B     *gpu.Tensor // (N, r)
	Rank  int
	Scale float64
}

// Active reports whether the adapter has positive rank and should be
// applied (spec.md §4.4: "When a layer module has an attached adapter
// of rank r > 0").
func (l *LoRAAdapter) Active() bool {
	return l != nil && l.Rank > 0
}

// Validate checks A and B have matching rank dimensions.
func (l *LoRAAdapter) Validate() error {
	if l == nil {
		return nil
	}
	if l.Rank <= 0 {
		return nil
	}
	if l.A == nil || l.B == nil {
		return fmt.Errorf("lora: rank %d adapter missing A or B tensor", l.Rank)
	}
	if len(l.A.Shape) != 2 || len(l.B.Shape) != 2 {
		return fmt.Errorf("lora: A and B must be rank-2 tensors")
	}
	if l.A.Shape[0] != l.Rank {
		return fmt.Errorf("lora: A's first dimension %d != rank %d", l.A.Shape[0], l.Rank)
	}
	if l.B.Shape[1] != l.Rank {
		return fmt.Errorf("lora: B's second dimension %d != rank %d", l.B.Shape[1], l.Rank)
	}
	return nil
}
