package pipeline

import (
	"testing"

	"github.com/dopplerml/doppler/config"
)

func TestSampleCPUPicksHighestLogitAtLowTemperature(t *testing.T) {
	logits := []float32{0.1, 0.1, 5.0, 0.1}
	cfg := config.Sampling{Temperature: 0.05, TopP: 1.0, RepetitionPenalty: 1.0}
	tok := sampleCPU(logits, cfg, nil, 0.999999)
	if tok != 2 {
		t.Errorf("sampleCPU picked %d, want 2 (dominant logit, sharp temperature)", tok)
	}
}

func TestSampleCPUTopKExcludesLowProbTokens(t *testing.T) {
	// four tokens, two dominant logits; top_k=2 must restrict the draw
	// to those two regardless of rand01.
	logits := []float32{5.0, 5.0, -10.0, -10.0}
	cfg := config.Sampling{Temperature: 1.0, TopK: 2, TopP: 1.0, RepetitionPenalty: 1.0}
	for _, r := range []float64{0.0, 0.25, 0.5, 0.75, 0.999} {
		tok := sampleCPU(logits, cfg, nil, r)
		if tok != 0 && tok != 1 {
			t.Errorf("sampleCPU(rand=%v) picked %d, want one of {0,1} under top_k=2", r, tok)
		}
	}
}

func TestSampleCPUTopPExcludesTailMass(t *testing.T) {
	// token 0 carries almost all probability mass; a tight top_p should
	// collapse the candidate set to it alone.
	logits := []float32{10.0, 0.0, 0.0, 0.0}
	cfg := config.Sampling{Temperature: 1.0, TopP: 0.2, RepetitionPenalty: 1.0}
	tok := sampleCPU(logits, cfg, nil, 0.99)
	if tok != 0 {
		t.Errorf("sampleCPU picked %d, want 0 under a tight top_p nucleus", tok)
	}
}

func TestSampleCPURepetitionPenaltySuppressesRecentToken(t *testing.T) {
	// two near-tied logits; penalizing the recently emitted one should
	// make the other the only candidate once top_k narrows to 1.
	logits := []float32{3.0, 3.01}
	cfg := config.Sampling{Temperature: 1.0, TopK: 1, TopP: 1.0, RepetitionPenalty: 4.0}
	tok := sampleCPU(logits, cfg, []int32{1}, 0.5)
	if tok != 0 {
		t.Errorf("sampleCPU picked %d, want 0 once token 1's logit is penalized below token 0's", tok)
	}
}

func TestSampleCPUDeterministicForSameInputs(t *testing.T) {
	logits := []float32{1.0, 2.0, 0.5, -1.0}
	cfg := config.Sampling{Temperature: 0.8, TopP: 0.9, RepetitionPenalty: 1.1}
	recent := []int32{2}
	a := sampleCPU(logits, cfg, recent, 0.42)
	b := sampleCPU(logits, cfg, recent, 0.42)
	if a != b {
		t.Errorf("sampleCPU is not deterministic for identical inputs: got %d and %d", a, b)
	}
}

func TestNeedsHostPass(t *testing.T) {
	cases := []struct {
		cfg  config.Sampling
		want bool
	}{
		{config.Sampling{TopP: 1.0, RepetitionPenalty: 1.0}, false},
		{config.Sampling{TopP: 0.9, RepetitionPenalty: 1.0}, true},
		{config.Sampling{TopP: 1.0, RepetitionPenalty: 1.2}, true},
	}
	for _, c := range cases {
		if got := needsHostPass(c.cfg); got != c.want {
			t.Errorf("needsHostPass(%+v) = %v, want %v", c.cfg, got, c.want)
		}
	}
}
