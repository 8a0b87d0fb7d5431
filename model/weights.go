package model

import (
	"fmt"

	"github.com/dopplerml/doppler/gpu"
)

// LayerWeights holds one transformer layer's weight tensors, following
// the per-layer step spec.md §4.4 describes: norms, QKV projection,
// output projection, and either a dense FFN or an MoE router plus
// experts.
type LayerWeights struct {
	Index int
	Type  LayerType

	PreAttnNorm  *gpu.Tensor
	PostAttnNorm *gpu.Tensor // sandwich-norm, optional
	PreFFNNorm   *gpu.Tensor
	PostFFNNorm  *gpu.Tensor // optional

	QProj *gpu.Tensor
	KProj *gpu.Tensor
	VProj *gpu.Tensor
	QBias *gpu.Tensor // optional, present when Arch.AttentionBias
	KBias *gpu.Tensor
	VBias *gpu.Tensor
	QNorm *gpu.Tensor // optional query/key norm
	KNorm *gpu.Tensor

	OutProj *gpu.Tensor

	// Dense FFN. Nil when the architecture routes through MoE instead.
	GateProj *gpu.Tensor
	UpProj   *gpu.Tensor
	DownProj *gpu.Tensor

	// MoE. Nil when the architecture has no experts.
	RouterProj *gpu.Tensor
	Experts    []ExpertWeights

	LoRA map[string]*LoRAAdapter // keyed by module name, e.g. "q_proj"
}

// ExpertWeights holds one MoE expert's gate/up/down projections
// (spec.md §4.4 "MoE FFN").
type ExpertWeights struct {
	GateProj *gpu.Tensor
	UpProj   *gpu.Tensor
	DownProj *gpu.Tensor
}

// IsMoE reports whether this layer routes through experts.
func (l LayerWeights) IsMoE() bool {
	return l.RouterProj != nil
}

// Validate checks that l carries the tensors its role requires given
// arch (dense vs. MoE FFN, bias tensors when AttentionBias is set).
func (l LayerWeights) Validate(arch Arch) error {
	required := map[string]*gpu.Tensor{
		"pre_attn_norm": l.PreAttnNorm,
		"pre_ffn_norm":  l.PreFFNNorm,
		"q_proj":        l.QProj,
		"k_proj":        l.KProj,
		"v_proj":        l.VProj,
		"out_proj":      l.OutProj,
	}
	for name, t := range required {
		if t == nil {
			return fmt.Errorf("missing required weight %q", name)
		}
	}
	if arch.AttentionBias {
		if l.QBias == nil || l.KBias == nil || l.VBias == nil {
			return fmt.Errorf("arch requires attention bias but layer is missing q/k/v bias")
		}
	}
	if arch.IsMoE() {
		if l.RouterProj == nil {
			return fmt.Errorf("arch is MoE but layer has no router projection")
		}
		if len(l.Experts) != arch.NumExperts {
			return fmt.Errorf("arch declares %d experts, layer has %d", arch.NumExperts, len(l.Experts))
		}
		for i, e := range l.Experts {
			if e.GateProj == nil || e.UpProj == nil || e.DownProj == nil {
				return fmt.Errorf("expert %d missing gate/up/down projection", i)
			}
		}
	} else {
		if l.GateProj == nil || l.UpProj == nil || l.DownProj == nil {
			return fmt.Errorf("dense FFN missing gate/up/down projection")
		}
	}
	return nil
}
