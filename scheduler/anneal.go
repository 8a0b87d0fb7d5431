package scheduler

import "math"

// AnnealParams controls the optional stochastic search layered on top of
// the deterministic issue loop (spec.md §4.5 "Stochastic search"): R
// restarts, each running S accept/reject steps of simulated annealing
// over the ScoreMix priority vector's weights, with geometric cooling.
// Restarts <= 0 or Steps <= 0 disables the search entirely — Anneal then
// just returns the single deterministic schedule.
type AnnealParams struct {
	Restarts         int
	Steps            int
	TemperatureStart float64
	TemperatureDecay float64
	Jitter           float64
}

// rngSource is the minimal interface Anneal needs from a random source,
// so tests can supply a deterministic sequence without importing
// math/rand's full Rand type into call sites that don't otherwise need
// it.
type rngSource interface {
	Float64() float64
}

// Anneal runs AnnealParams.Restarts restarts of AnnealParams.Steps
// simulated-annealing steps over the ScoreMix priority vector, accepting
// a perturbed vector when it strictly improves the schedule or, with
// probability exp(-delta/T), when it doesn't (spec.md §4.5: "accept if
// delta <= 0 or with probability exp(-delta/T)"), cooling T
// geometrically by TemperatureDecay after every step. Schedules are
// compared by (Cycles, Utilization) with Cycles dominant — spec.md §4.5
// "track the best by cycle count, breaking ties by utilization". The
// best schedule found across every restart is returned; ties keep the
// first found.
//
// Only meaningful when cfg.Mode == ScoreMix: the other modes have no
// continuous weights to perturb, so Anneal with any other mode reduces
// to a single deterministic Schedule call.
func Anneal(g *Graph, cfg Config, params AnnealParams, rng rngSource) *Result {
	jitter := make([]float64, len(g.Tasks))
	for i := range jitter {
		jitter[i] = 0
	}

	if cfg.Mode != ScoreMix || params.Restarts <= 0 || params.Steps <= 0 {
		return Schedule(g, cfg, defaultPriorityVector(), jitter)
	}

	best := Schedule(g, cfg, defaultPriorityVector(), jitterVector(rng, len(g.Tasks), params.Jitter))
	bestPV := defaultPriorityVector()

	for r := 0; r < params.Restarts; r++ {
		pv := bestPV
		t := params.TemperatureStart
		for s := 0; s < params.Steps; s++ {
			j := jitterVector(rng, len(g.Tasks), params.Jitter)
			candidate := mutate(pv, rng)
			res := Schedule(g, cfg, candidate, j)

			delta := compareResults(res, best)
			if delta <= 0 || acceptWorse(delta, t, rng) {
				pv = candidate
				if compareResults(res, best) < 0 {
					best = res
					bestPV = candidate
				}
			}
			t *= params.TemperatureDecay
		}
	}

	return best
}

// compareResults orders schedules by (Cycles, Utilization), cycles
// dominant and ascending-better, utilization descending-better.
// Negative means a is strictly better than b.
func compareResults(a, b *Result) float64 {
	if a.Cycles != b.Cycles {
		return float64(a.Cycles - b.Cycles)
	}
	return b.Utilization - a.Utilization
}

func acceptWorse(delta, t float64, rng rngSource) bool {
	if t <= 0 {
		return false
	}
	p := math.Exp(-delta / t)
	return rng.Float64() < p
}

func mutate(pv priorityVector, rng rngSource) priorityVector {
	perturb := func(w float64) float64 {
		return w + (rng.Float64()*2-1)*0.25
	}
	return priorityVector{
		weightSlack:     perturb(pv.weightSlack),
		weightHeight:    perturb(pv.weightHeight),
		weightOutDegree: perturb(pv.weightOutDegree),
		weightJitter:    perturb(pv.weightJitter),
	}
}

func jitterVector(rng rngSource, n int, scale float64) []float64 {
	j := make([]float64, n)
	if scale == 0 {
		return j
	}
	for i := range j {
		j[i] = (rng.Float64()*2 - 1) * scale
	}
	return j
}
