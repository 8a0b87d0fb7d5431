package model

import (
	"testing"

	"github.com/dopplerml/doppler/gpu"
)

func fullLayer() LayerWeights {
	t := &gpu.Tensor{}
	return LayerWeights{
		PreAttnNorm: t, PreFFNNorm: t,
		QProj: t, KProj: t, VProj: t, OutProj: t,
		GateProj: t, UpProj: t, DownProj: t,
	}
}

func TestLayerWeightsValidateDense(t *testing.T) {
	l := fullLayer()
	if err := l.Validate(baseArch()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestLayerWeightsValidateMissingRequired(t *testing.T) {
	l := fullLayer()
	l.QProj = nil
	if err := l.Validate(baseArch()); err == nil {
		t.Fatal("Validate() = nil, want error for missing q_proj")
	}
}

func TestLayerWeightsValidateAttentionBiasRequired(t *testing.T) {
	l := fullLayer()
	arch := baseArch()
	arch.AttentionBias = true
	if err := l.Validate(arch); err == nil {
		t.Fatal("Validate() = nil, want error when AttentionBias set but bias tensors missing")
	}
	tens := &gpu.Tensor{}
	l.QBias, l.KBias, l.VBias = tens, tens, tens
	if err := l.Validate(arch); err != nil {
		t.Fatalf("Validate() = %v, want nil once bias tensors present", err)
	}
}

func TestLayerWeightsValidateMoE(t *testing.T) {
	l := fullLayer()
	l.GateProj, l.UpProj, l.DownProj = nil, nil, nil
	arch := baseArch()
	arch.NumExperts = 2
	arch.TopKExperts = 1

	if err := l.Validate(arch); err == nil {
		t.Fatal("Validate() = nil, want error: MoE arch but no router/experts")
	}

	tens := &gpu.Tensor{}
	l.RouterProj = tens
	l.Experts = []ExpertWeights{
		{GateProj: tens, UpProj: tens, DownProj: tens},
		{GateProj: tens, UpProj: tens, DownProj: tens},
	}
	if err := l.Validate(arch); err != nil {
		t.Fatalf("Validate() = %v, want nil for complete MoE layer", err)
	}
}

func TestLayerWeightsValidateMoEExpertCountMismatch(t *testing.T) {
	l := fullLayer()
	l.GateProj, l.UpProj, l.DownProj = nil, nil, nil
	tens := &gpu.Tensor{}
	l.RouterProj = tens
	l.Experts = []ExpertWeights{{GateProj: tens, UpProj: tens, DownProj: tens}}

	arch := baseArch()
	arch.NumExperts = 4
	if err := l.Validate(arch); err == nil {
		t.Fatal("Validate() = nil, want error for expert count mismatch")
	}
}
