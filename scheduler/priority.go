package scheduler

import "sort"

// ScoreMode selects the ready-set priority function (spec.md §4.5
// "Priority").
type ScoreMode int

const (
	// ScoreHeight ranks by height descending: tasks further from a
	// sink (more critical-path work still downstream) go first.
	ScoreHeight ScoreMode = iota
	// ScoreSlack ranks by slack ascending, then height descending:
	// tasks with the least float go first, ties broken like ScoreHeight.
	ScoreSlack
	// ScoreMix ranks by slack ascending, height descending, out-degree
	// descending, then a jitter term, per spec.md §4.5.
	ScoreMix
	// ScoreBundle ranks purely by each task's Bundle hint ascending,
	// for spec.md §8 scenario 5 ("graph scheduler on scoreMode =
	// bundle" must match the baseline schedule exactly).
	ScoreBundle
)

// priorityVector holds one tunable weight per ranking term, perturbed
// by the simulated-annealing search in anneal.go. Jitter is applied as
// weightJitter*jitter[i] added to task i's score before sorting.
type priorityVector struct {
	weightSlack     float64
	weightHeight    float64
	weightOutDegree float64
	weightJitter    float64
}

func defaultPriorityVector() priorityVector {
	return priorityVector{weightSlack: -1, weightHeight: 1, weightOutDegree: 1, weightJitter: 1}
}

// score returns task index i's sort key under mode: higher sorts first.
func score(g *Graph, mode ScoreMode, pv priorityVector, jitter []float64, i int) float64 {
	switch mode {
	case ScoreHeight:
		return float64(g.Height[i])
	case ScoreSlack:
		// slack ascending means smaller slack must sort first; encode
		// as a height-scale term, then break ties by height below.
		return -float64(g.Slack[i])*1e6 + float64(g.Height[i])
	case ScoreMix:
		return pv.weightSlack*float64(g.Slack[i])*1e9 +
			pv.weightHeight*float64(g.Height[i])*1e6 +
			pv.weightOutDegree*float64(g.OutDegree[i])*1e3 +
			pv.weightJitter*jitter[i]
	case ScoreBundle:
		return -float64(g.Tasks[i].Bundle)
	default:
		return float64(g.Height[i])
	}
}

// rankReady sorts ready (task indices) by descending score under mode,
// tie-broken deterministically by task id (spec.md §4.5 issue loop step
// 2: "sort each partition by priority with deterministic tie-break
// (task id)").
func rankReady(g *Graph, mode ScoreMode, pv priorityVector, jitter []float64, ready []int) {
	sort.SliceStable(ready, func(a, b int) bool {
		ia, ib := ready[a], ready[b]
		sa, sb := score(g, mode, pv, jitter, ia), score(g, mode, pv, jitter, ib)
		if sa != sb {
			return sa > sb
		}
		return g.Tasks[ia].ID < g.Tasks[ib].ID
	})
}
