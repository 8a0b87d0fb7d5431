package scheduler

import "fmt"

// Result is the schedule the issue loop produces (spec.md §4.5
// "Outputs"): total cycle count, the cycle each task was admitted into,
// the per-cycle per-engine slot grid, utilization, and a violation
// count. A schedule is valid iff Missing == 0, Duplicates == 0, and
// Violations == 0.
type Result struct {
	Cycles      int
	TaskCycle   map[int]int      // task id -> cycle
	SlotGrid    map[int][]int    // cycle -> admitted task ids, in admission order
	Utilization float64
	Violations  int
	Missing     int
	Duplicates  int
}

// Config bundles everything the issue loop needs beyond the task list:
// per-engine issue-width caps, the order engines are considered in each
// cycle (spec.md §4.5 issue loop step 3), the hazard model, and the
// ranking mode.
type Config struct {
	EngineCaps  map[Engine]int
	IssueOrder  []Engine
	Hazards     HazardConfig
	Mode        ScoreMode
	DebugEngine Engine // slots on this engine are excluded from utilization; "" disables
}

// Schedule runs the deterministic issue loop of spec.md §4.5 over tasks
// under cfg, with no stochastic search. AnnealedSchedule layers the
// optional simulated-annealing outer loop on top of this when cfg.Mode
// == ScoreMix.
func Schedule(g *Graph, cfg Config, pv priorityVector, jitter []float64) *Result {
	n := len(g.Tasks)
	taskCycle := make([]int, n)
	for i := range taskCycle {
		taskCycle[i] = -1
	}
	admitted := make([]bool, n)
	slotGrid := make(map[int][]int)
	remaining := n

	c := 0
	violations := 0
	for remaining > 0 {
		var ready []int
		for i := 0; i < n; i++ {
			if admitted[i] {
				continue
			}
			if g.ReadyAt(i, c, taskCycle) {
				ready = append(ready, i)
			}
		}

		if len(ready) == 0 {
			earliest := -1
			for i := 0; i < n; i++ {
				if admitted[i] {
					continue
				}
				e := g.EarliestReady(i, taskCycle)
				if e < 0 || e <= c {
					continue
				}
				if earliest < 0 || e < earliest {
					earliest = e
				}
			}
			if earliest < 0 {
				// Nothing ready, nothing becomes ready later: the
				// remaining tasks can never be scheduled.
				violations += remaining
				break
			}
			c = earliest
			continue
		}

		byEngine := make(map[Engine][]int)
		for _, i := range ready {
			eng := g.Tasks[i].Engine
			byEngine[eng] = append(byEngine[eng], i)
		}
		for eng, group := range byEngine {
			rankReady(g, cfg.Mode, pv, jitter, group)
			byEngine[eng] = group
		}

		admittedThisCycle := false
		writesThisCycle := make(map[Address]bool)
		for _, eng := range cfg.IssueOrder {
			group := byEngine[eng]
			if len(group) == 0 {
				continue
			}
			engCap := cfg.EngineCaps[eng]
			admittedCount := 0
			for _, i := range group {
				if admittedCount >= engCap {
					break
				}
				if collides(g.Tasks[i].Writes, writesThisCycle) {
					continue
				}
				admitted[i] = true
				taskCycle[i] = c
				slotGrid[c] = append(slotGrid[c], g.Tasks[i].ID)
				for _, w := range g.Tasks[i].Writes {
					writesThisCycle[w] = true
				}
				admittedCount++
				admittedThisCycle = true
				remaining--
			}
		}

		if !admittedThisCycle {
			// Every ready task collided on a write address this cycle;
			// nothing progresses by waiting at the same c, so this is a
			// genuine deadlock under the write-collision rule.
			violations += remaining
			break
		}
		c++
	}

	cycles := c
	if cycles == 0 && n > 0 {
		cycles = 1
	}
	res := &Result{
		Cycles:     cycles,
		TaskCycle:  make(map[int]int, n),
		SlotGrid:   slotGrid,
		Violations: violations,
	}
	for i, t := range g.Tasks {
		if admitted[i] {
			res.TaskCycle[t.ID] = taskCycle[i]
		} else {
			res.Missing++
		}
	}
	res.Utilization = utilization(g, cfg, res)
	return res
}

func collides(writes []Address, seen map[Address]bool) bool {
	for _, w := range writes {
		if seen[w] {
			return true
		}
	}
	return false
}

// utilization computes occupied-non-debug-slots / (cycles ·
// non-debug-slot-count), per spec.md §4.5 "Outputs" and §8 invariant
// (e).
func utilization(g *Graph, cfg Config, res *Result) float64 {
	nonDebugCap := 0
	for eng, cap := range cfg.EngineCaps {
		if eng == cfg.DebugEngine {
			continue
		}
		nonDebugCap += cap
	}
	if res.Cycles == 0 || nonDebugCap == 0 {
		return 0
	}
	occupied := 0
	for _, t := range g.Tasks {
		if t.Engine != cfg.DebugEngine {
			occupied++
		}
	}
	return float64(occupied) / float64(res.Cycles*nonDebugCap)
}

// Validate re-checks Result against the invariants spec.md §8 lists,
// returning a descriptive error for the first one violated. Intended
// for tests and for a caller that wants to confirm a schedule before
// trusting it, independent of how Schedule computed Violations.
func Validate(g *Graph, cfg Config, res *Result) error {
	if res.Missing > 0 {
		return fmt.Errorf("scheduler: %d tasks missing from schedule", res.Missing)
	}
	seenIDs := make(map[int]int, len(res.TaskCycle))
	for cyc, ids := range res.SlotGrid {
		engCount := make(map[Engine]int)
		writes := make(map[Address]bool)
		for _, id := range ids {
			seenIDs[id]++
			idx, ok := g.idIndex[id]
			if !ok {
				return fmt.Errorf("scheduler: schedule references unknown task id %d", id)
			}
			t := g.Tasks[idx]
			engCount[t.Engine]++
			if engCount[t.Engine] > cfg.EngineCaps[t.Engine] {
				return fmt.Errorf("scheduler: cycle %d exceeds engine %s cap", cyc, t.Engine)
			}
			for _, w := range t.Writes {
				if writes[w] {
					return fmt.Errorf("scheduler: cycle %d has two tasks writing address %v", cyc, w)
				}
				writes[w] = true
			}
			for _, e := range g.preds[idx] {
				depCycle, ok := res.TaskCycle[g.Tasks[e.from].ID]
				if !ok || cyc < depCycle+e.latency {
					return fmt.Errorf("scheduler: task %d scheduled at cycle %d before dependency %d+latency %d",
						id, cyc, depCycle, e.latency)
				}
			}
		}
	}
	for id, count := range seenIDs {
		if count > 1 {
			return fmt.Errorf("scheduler: task %d scheduled %d times", id, count)
		}
	}
	return nil
}
