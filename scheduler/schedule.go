package scheduler

import "github.com/dopplerml/doppler/config"

// ModeFromPolicy maps the configuration-level scheduler policy enum
// (config.SchedulerPolicy) onto this package's ScoreMode. Kept here
// rather than in config so config stays free of any scheduler import.
func ModeFromPolicy(p config.SchedulerPolicy) ScoreMode {
	switch p {
	case config.SchedulerPolicyHeight:
		return ScoreHeight
	case config.SchedulerPolicySlack:
		return ScoreSlack
	case config.SchedulerPolicyMix:
		return ScoreMix
	default:
		return ScoreMix
	}
}

// Run builds the dependency graph for tasks and produces a schedule
// under cfg, running the optional annealed search described by sc when
// cfg.Mode == ScoreMix (spec.md §4.5 end to end: static analysis, issue
// loop, optional stochastic search). It also returns the bundle-ordered
// baseline and its lower bound, for callers that want to report
// scheduler efficiency the way spec.md §4.5 "Outputs" describes.
func Run(tasks []Task, cfg Config, sc config.Scheduler, rng rngSource) (result, baseline *Result, lowerBound int) {
	g := BuildGraph(tasks, cfg.Hazards)

	params := AnnealParams{
		Restarts:         sc.Restarts,
		Steps:            sc.MutationCount,
		TemperatureStart: sc.TemperatureStart,
		TemperatureDecay: sc.TemperatureDecay,
		Jitter:           sc.Jitter,
	}
	result = Anneal(g, cfg, params, rng)
	baseline = Baseline(g, cfg)
	lowerBound = LowerBound(g, cfg)
	return result, baseline, lowerBound
}

// Equivalent reports whether a and b agree on cycle count and on every
// task's assigned cycle, which is all spec.md §8 scenario 5 ("Scheduler
// equivalence") requires — intra-cycle task order within a SlotGrid
// entry is explicitly not significant.
func Equivalent(a, b *Result) bool {
	if a.Cycles != b.Cycles {
		return false
	}
	if len(a.TaskCycle) != len(b.TaskCycle) {
		return false
	}
	for id, cycle := range a.TaskCycle {
		if bc, ok := b.TaskCycle[id]; !ok || bc != cycle {
			return false
		}
	}
	return true
}
