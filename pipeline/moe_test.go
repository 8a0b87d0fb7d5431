package pipeline

import (
	"math"
	"testing"
)

func TestRouteTopKWeightsSumToOne(t *testing.T) {
	logits := []float32{2.0, 0.5, -1.0, 3.0}
	rows := routeTopK(logits, 1, 4, 2)
	if len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("routeTopK returned %v, want 1 row of 2 experts", rows)
	}
	var sum float32
	for _, re := range rows[0] {
		sum += re.weight
	}
	if math.Abs(float64(sum-1.0)) > 1e-5 {
		t.Errorf("routed weights sum to %v, want 1.0", sum)
	}
}

func TestRouteTopKPicksHighestLogits(t *testing.T) {
	// expert 3 (logit 3.0) and expert 0 (logit 2.0) should win over 1 and 2.
	logits := []float32{2.0, 0.5, -1.0, 3.0}
	rows := routeTopK(logits, 1, 4, 2)
	got := map[int]bool{}
	for _, re := range rows[0] {
		got[re.expert] = true
	}
	if !got[3] || !got[0] {
		t.Errorf("routeTopK picked experts %v, want {0,3}", rows[0])
	}
}

func TestRouteTopKMultipleTokensIndependent(t *testing.T) {
	logits := []float32{
		5.0, 0.0, 0.0, 0.0, // token 0 strongly favors expert 0
		0.0, 0.0, 0.0, 5.0, // token 1 strongly favors expert 3
	}
	rows := routeTopK(logits, 2, 4, 1)
	if rows[0][0].expert != 0 {
		t.Errorf("token 0 routed to expert %d, want 0", rows[0][0].expert)
	}
	if rows[1][0].expert != 3 {
		t.Errorf("token 1 routed to expert %d, want 3", rows[1][0].expert)
	}
}

func TestRouteTopKClampsKToNumExperts(t *testing.T) {
	logits := []float32{1.0, 2.0}
	rows := routeTopK(logits, 1, 2, 5)
	if len(rows[0]) != 2 {
		t.Errorf("routeTopK returned %d experts, want 2 (clamped to numExperts)", len(rows[0]))
	}
}
