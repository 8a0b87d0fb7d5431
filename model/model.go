// Package model describes the architecture parameters and weight
// handles of a loaded decoder-only transformer (spec.md §3 "Model"),
// without performing any computation itself — pipeline consumes a
// *Model to drive the forward pass.
package model

import (
	"fmt"
	"math"

	"github.com/dopplerml/doppler/config"
	"github.com/dopplerml/doppler/gpu"
)

// LayerType tags a layer's attention span, per spec.md §3's "optional
// per-layer type tag".
type LayerType int

const (
	FullAttention LayerType = iota
	SlidingAttention
)

func (t LayerType) String() string {
	if t == SlidingAttention {
		return "sliding_attention"
	}
	return "full_attention"
}

// Arch holds the architecture parameters spec.md §3 lists under
// "Model": everything needed to size buffers and pick RoPE/softcap
// behavior, independent of the actual weight tensors.
type Arch struct {
	NumLayers           int
	HiddenSize          int
	FFNIntermediateSize int
	NumHeads            int
	NumKVHeads          int
	HeadDim             int
	VocabSize           int
	MaxSeqLen           int

	RopeTheta      float64
	RopeLocalTheta float64 // 0 means "use RopeTheta for sliding layers too"

	RMSNormEps          float64
	RMSNormWeightOffset bool // Gemma-style +1 weight offset

	Activation config.Activation

	ScaleEmbeddings    bool
	TieWordEmbeddings  bool
	AttentionBias      bool
	QueryPreAttnScalar float64 // 0 means default 1/sqrt(head_dim)

	AttnLogitSoftcapping  float64 // 0 disables
	FinalLogitSoftcapping float64 // 0 disables

	NumExperts    int // 0 disables MoE
	TopKExperts   int
	SlidingWindow int // 0 disables sliding-window KV cache
}

// LocalRopeTheta returns RopeLocalTheta, falling back to RopeTheta when
// unset (spec.md §3: "optional local θ for sliding layers").
func (a Arch) LocalRopeTheta() float64 {
	if a.RopeLocalTheta <= 0 {
		return a.RopeTheta
	}
	return a.RopeLocalTheta
}

// IsMoE reports whether the architecture routes through experts rather
// than a single dense FFN per layer.
func (a Arch) IsMoE() bool {
	return a.NumExperts > 0
}

// AttentionScale returns the scaling factor applied to Q·K^T before
// softmax: 1/sqrt(head_dim) by default, or 1/QueryPreAttnScalar when the
// architecture overrides it (spec.md §4.4: "optional scale override
// (head_dim for Gemma-2 rather than sqrt(head_dim))").
func (a Arch) AttentionScale() float64 {
	if a.QueryPreAttnScalar > 0 {
		return 1.0 / a.QueryPreAttnScalar
	}
	return 1.0 / math.Sqrt(float64(a.HeadDim))
}

// Model is a fully loaded set of weights plus its architecture params.
// Weight tensors are owned by the model (spec.md §3 "Ownership rules")
// and shared read-only across every forward pass until teardown.
type Model struct {
	Arch Arch

	EmbedTokens *gpu.Tensor
	LMHead      *gpu.Tensor // nil when Arch.TieWordEmbeddings
	FinalNorm   *gpu.Tensor

	Layers []LayerWeights

	StopTokens map[int32]struct{}
}

// LMHeadWeight returns the projection tensor used for the final logits:
// LMHead, or EmbedTokens when weights are tied.
func (m *Model) LMHeadWeight() *gpu.Tensor {
	if m.Arch.TieWordEmbeddings {
		return m.EmbedTokens
	}
	return m.LMHead
}

// Validate checks internal consistency between Arch and the loaded
// weight tensors, per spec.md §3's tensor-shape invariant.
func (m *Model) Validate() error {
	if len(m.Layers) != m.Arch.NumLayers {
		return fmt.Errorf("model: arch declares %d layers, got %d weight sets", m.Arch.NumLayers, len(m.Layers))
	}
	if m.EmbedTokens == nil {
		return fmt.Errorf("model: missing embedding table")
	}
	if !m.Arch.TieWordEmbeddings && m.LMHead == nil {
		return fmt.Errorf("model: tie_word_embeddings is false but no LM head weight provided")
	}
	for i, l := range m.Layers {
		if err := l.Validate(m.Arch); err != nil {
			return fmt.Errorf("model: layer %d: %w", i, err)
		}
	}
	return nil
}
