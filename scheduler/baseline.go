package scheduler

import "sort"

// Baseline builds the bundle-ordered reference schedule spec.md §4.5
// "Baseline" describes: tasks are grouped by their Bundle hint (tasks
// with NoBundle each form their own singleton group, in input order),
// groups are issued in ascending bundle order, and within a group tasks
// are admitted engine-cap-aware exactly like the graph scheduler's issue
// loop, advancing to the next cycle only once a group is exhausted.
//
// This is the independent reference scenario 5 (spec.md §8) checks the
// graph scheduler against when run with ScoreBundle: the two must agree
// on cycle count and task-to-cycle assignment up to intra-cycle
// permutation, since bundle order is the only signal either uses.
func Baseline(g *Graph, cfg Config) *Result {
	n := len(g.Tasks)
	if n == 0 {
		return &Result{TaskCycle: map[int]int{}, SlotGrid: map[int][]int{}}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	// A group's sort position is where its bundle first appears in input
	// order (or the task's own index, for a NoBundle singleton). Stable
	// sort then keeps same-bundle members and untouched singletons in
	// their original relative order.
	firstOccurrence := make(map[int]int, n)
	for i, t := range g.Tasks {
		if t.Bundle == NoBundle {
			continue
		}
		if _, ok := firstOccurrence[t.Bundle]; !ok {
			firstOccurrence[t.Bundle] = i
		}
	}
	groupPos := func(i int) int {
		t := g.Tasks[i]
		if t.Bundle == NoBundle {
			return i
		}
		return firstOccurrence[t.Bundle]
	}
	sort.SliceStable(order, func(a, b int) bool {
		return groupPos(order[a]) < groupPos(order[b])
	})

	taskCycle := make([]int, n)
	for i := range taskCycle {
		taskCycle[i] = -1
	}
	slotGrid := make(map[int][]int)
	violations := 0

	c := 0
	engCount := make(map[Engine]int)
	writes := make(map[Address]bool)
	curGroup := groupPos(order[0])

	admit := func(i int) bool {
		t := g.Tasks[i]
		if engCount[t.Engine] >= cfg.EngineCaps[t.Engine] {
			return false
		}
		if collides(t.Writes, writes) {
			return false
		}
		if !g.ReadyAt(i, c, taskCycle) {
			return false
		}
		taskCycle[i] = c
		slotGrid[c] = append(slotGrid[c], t.ID)
		engCount[t.Engine]++
		for _, w := range t.Writes {
			writes[w] = true
		}
		return true
	}

	i := 0
	for i < n {
		idx := order[i]
		gp := groupPos(idx)
		if gp != curGroup {
			c++
			engCount = make(map[Engine]int)
			writes = make(map[Address]bool)
			curGroup = gp
		}
		if admit(idx) {
			i++
			continue
		}
		// Either the engine cap or a write collision or an unmet
		// dependency blocked this task within its own bundle: start a
		// fresh cycle for the remainder of the bundle and retry.
		c++
		engCount = make(map[Engine]int)
		writes = make(map[Address]bool)
		if !admit(idx) {
			violations++
			i++
			continue
		}
		i++
	}

	cycles := c + 1
	res := &Result{
		Cycles:     cycles,
		TaskCycle:  make(map[int]int, n),
		SlotGrid:   slotGrid,
		Violations: violations,
	}
	for idx, t := range g.Tasks {
		if taskCycle[idx] >= 0 {
			res.TaskCycle[t.ID] = taskCycle[idx]
		} else {
			res.Missing++
		}
	}
	res.Utilization = utilization(g, cfg, res)
	return res
}

// LowerBound computes spec.md §4.5's per-engine occupancy lower bound,
// max_engine(ceil(tasks_on_engine / cap_engine)), independent of
// dependency structure.
func LowerBound(g *Graph, cfg Config) int {
	counts := make(map[Engine]int)
	for _, t := range g.Tasks {
		counts[t.Engine]++
	}
	bound := 0
	for eng, count := range counts {
		capN := cfg.EngineCaps[eng]
		if capN <= 0 {
			continue
		}
		v := (count + capN - 1) / capN
		if v > bound {
			bound = v
		}
	}
	return bound
}
