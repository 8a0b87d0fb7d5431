package model

import (
	"testing"

	"github.com/dopplerml/doppler/gpu"
)

func TestLoRAAdapterActive(t *testing.T) {
	var nilAdapter *LoRAAdapter
	if nilAdapter.Active() {
		t.Error("Active() = true for nil adapter")
	}
	zero := &LoRAAdapter{Rank: 0}
	if zero.Active() {
		t.Error("Active() = true for rank 0")
	}
	rank8 := &LoRAAdapter{Rank: 8}
	if !rank8.Active() {
		t.Error("Active() = false for rank 8")
	}
}

func TestLoRAAdapterValidate(t *testing.T) {
	a := &gpu.Tensor{Shape: gpu.Shape{8, 16}}
	b := &gpu.Tensor{Shape: gpu.Shape{32, 8}}
	adapter := &LoRAAdapter{A: a, B: b, Rank: 8, Scale: 2.0}
	if err := adapter.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	mismatched := &LoRAAdapter{A: a, B: b, Rank: 4}
	if err := mismatched.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for rank mismatch")
	}
}

func TestLoRAAdapterValidateNilOrInactive(t *testing.T) {
	var nilAdapter *LoRAAdapter
	if err := nilAdapter.Validate(); err != nil {
		t.Errorf("Validate() on nil adapter = %v, want nil", err)
	}
	inactive := &LoRAAdapter{Rank: 0}
	if err := inactive.Validate(); err != nil {
		t.Errorf("Validate() on inactive adapter = %v, want nil", err)
	}
}
