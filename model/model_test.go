package model

import (
	"testing"

	"github.com/dopplerml/doppler/gpu"
)

func baseArch() Arch {
	return Arch{
		NumLayers:  2,
		HiddenSize: 8,
		HeadDim:    4,
		NumHeads:   2,
		NumKVHeads: 2,
		RopeTheta:  10000,
	}
}

func TestArchLocalRopeTheta(t *testing.T) {
	a := baseArch()
	if got := a.LocalRopeTheta(); got != a.RopeTheta {
		t.Errorf("LocalRopeTheta() = %v, want fallback to RopeTheta %v", got, a.RopeTheta)
	}
	a.RopeLocalTheta = 1000
	if got := a.LocalRopeTheta(); got != 1000 {
		t.Errorf("LocalRopeTheta() = %v, want 1000", got)
	}
}

func TestArchAttentionScale(t *testing.T) {
	a := baseArch()
	want := 1.0 / 2.0 // 1/sqrt(4)
	if got := a.AttentionScale(); got != want {
		t.Errorf("AttentionScale() = %v, want %v", got, want)
	}
	a.QueryPreAttnScalar = 8
	if got := a.AttentionScale(); got != 1.0/8.0 {
		t.Errorf("AttentionScale() with override = %v, want %v", got, 1.0/8.0)
	}
}

func TestArchIsMoE(t *testing.T) {
	a := baseArch()
	if a.IsMoE() {
		t.Error("IsMoE() = true for zero experts")
	}
	a.NumExperts = 8
	if !a.IsMoE() {
		t.Error("IsMoE() = false for NumExperts=8")
	}
}

func TestModelValidateLayerCountMismatch(t *testing.T) {
	m := &Model{Arch: baseArch()}
	if err := m.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing layers")
	}
}

func TestModelLMHeadWeightTied(t *testing.T) {
	arch := baseArch()
	arch.TieWordEmbeddings = true
	embed := &gpu.Tensor{}
	m := &Model{Arch: arch, EmbedTokens: embed}
	if m.LMHeadWeight() != embed {
		t.Error("LMHeadWeight() should return EmbedTokens when tied")
	}
}
