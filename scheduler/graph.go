package scheduler

// HazardConfig selects which hazard classes contribute dependency edges
// and each class's latency (spec.md §3 "Dependency graph (derived)"):
// RAW, WAW, WAR are the classic memory hazards; RAR and temp-aliasing
// are optional extras some task lists want (e.g. two tasks that must
// not be reordered despite only reading the same address, or that
// share a scratch register tag).
type HazardConfig struct {
	RAW, WAW, WAR, RAR, TempAlias          bool
	LatencyRAW, LatencyWAW, LatencyWAR     int
	LatencyRAR, LatencyTempAlias, Explicit int
}

// DefaultHazardConfig enables the three classic memory hazards at unit
// latency, matching spec.md §3's "each hazard class has a configurable
// latency (default 1)"; RAR and temp-aliasing are opt-in.
func DefaultHazardConfig() HazardConfig {
	return HazardConfig{
		RAW: true, WAW: true, WAR: true,
		LatencyRAW: 1, LatencyWAW: 1, LatencyWAR: 1,
		LatencyRAR: 1, LatencyTempAlias: 1, Explicit: 1,
	}
}

// edge is one latency-weighted dependency from task index From to task
// index To (indices into the Graph's Tasks slice, in input order).
type edge struct {
	from, to int
	latency  int
}

// Graph is the dependency DAG built over one task list plus its
// per-node static analysis (spec.md §4.5 "Static analysis"). Because
// every edge only ever points from an earlier index to a later one
// (hazards are only computed over ordered pairs i < j, and explicit
// deps must reference already-listed tasks), the input order is itself
// a valid topological order — no separate topological sort pass is
// needed.
type Graph struct {
	Tasks []Task

	preds    [][]edge // preds[j] = incoming edges to task index j
	succs    [][]edge // succs[i] = outgoing edges from task index i
	idIndex  map[int]int

	EarliestStatic []int // longest predecessor path, by task index
	Height         []int // longest descendant path (inclusive of self), by task index
	Slack          []int
	OutDegree      []int
	CriticalPath   int
}

func hasOverlap(a, b []Address) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[Address]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, y := range b {
		if _, ok := set[y]; ok {
			return true
		}
	}
	return false
}

func sharesTempTag(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, y := range b {
		if _, ok := set[y]; ok {
			return true
		}
	}
	return false
}

// BuildGraph computes the merged dependency list (explicit deps plus
// enabled hazard edges, spec.md §3) and the static analysis spec.md
// §4.5 "Static analysis" describes: earliest_static, height, slack, and
// out_degree for every task.
func BuildGraph(tasks []Task, hz HazardConfig) *Graph {
	n := len(tasks)
	g := &Graph{
		Tasks:   tasks,
		preds:   make([][]edge, n),
		succs:   make([][]edge, n),
		idIndex: make(map[int]int, n),
	}
	for i, t := range tasks {
		g.idIndex[t.ID] = i
	}

	addEdge := func(i, j, latency int) {
		g.preds[j] = append(g.preds[j], edge{from: i, to: j, latency: latency})
		g.succs[i] = append(g.succs[i], edge{from: i, to: j, latency: latency})
	}

	for j := 1; j < n; j++ {
		tj := tasks[j]
		explicitFrom := make(map[int]bool, len(tj.Deps))
		for _, depID := range tj.Deps {
			if i, ok := g.idIndex[depID]; ok && i < j {
				explicitFrom[i] = true
			}
		}
		for i := 0; i < j; i++ {
			ti := tasks[i]
			latency := 0
			trigger := false
			if explicitFrom[i] {
				latency = hz.Explicit
				trigger = true
			}
			if hz.RAW && hasOverlap(ti.Writes, tj.Reads) && hz.LatencyRAW > latency {
				latency, trigger = hz.LatencyRAW, true
			}
			if hz.WAW && hasOverlap(ti.Writes, tj.Writes) && hz.LatencyWAW > latency {
				latency, trigger = hz.LatencyWAW, true
			}
			if hz.WAR && hasOverlap(ti.Reads, tj.Writes) && hz.LatencyWAR > latency {
				latency, trigger = hz.LatencyWAR, true
			}
			if hz.RAR && hasOverlap(ti.Reads, tj.Reads) && hz.LatencyRAR > latency {
				latency, trigger = hz.LatencyRAR, true
			}
			if hz.TempAlias && sharesTempTag(ti.TempTags, tj.TempTags) && hz.LatencyTempAlias > latency {
				latency, trigger = hz.LatencyTempAlias, true
			}
			if trigger {
				addEdge(i, j, latency)
			}
		}
	}

	g.EarliestStatic = make([]int, n)
	for j := 0; j < n; j++ {
		best := 0
		for _, e := range g.preds[j] {
			if v := g.EarliestStatic[e.from] + e.latency; v > best {
				best = v
			}
		}
		g.EarliestStatic[j] = best
	}

	g.Height = make([]int, n)
	for i := n - 1; i >= 0; i-- {
		best := 1
		for _, e := range g.succs[i] {
			if v := e.latency + g.Height[e.to]; v > best {
				best = v
			}
		}
		g.Height[i] = best
	}

	critical := 0
	for i := 0; i < n; i++ {
		if v := g.EarliestStatic[i] + g.Height[i] - 1; v > critical {
			critical = v
		}
	}
	g.CriticalPath = critical

	g.Slack = make([]int, n)
	g.OutDegree = make([]int, n)
	for i := 0; i < n; i++ {
		g.Slack[i] = critical - (g.EarliestStatic[i] + g.Height[i] - 1)
		g.OutDegree[i] = len(g.succs[i])
	}

	return g
}

// ReadyAt reports whether task index i's incoming latencies are all
// satisfied by cycle c, given taskCycle (the cycle each predecessor was
// admitted into, or -1 if not yet scheduled).
func (g *Graph) ReadyAt(i int, c int, taskCycle []int) bool {
	for _, e := range g.preds[i] {
		if taskCycle[e.from] < 0 {
			return false
		}
		if taskCycle[e.from]+e.latency > c {
			return false
		}
	}
	return true
}

// EarliestReady returns the smallest cycle at which task index i could
// become ready, given the predecessors already scheduled. Used to skip
// empty cycles (spec.md §4.5 issue loop step 4).
func (g *Graph) EarliestReady(i int, taskCycle []int) int {
	earliest := 0
	for _, e := range g.preds[i] {
		if taskCycle[e.from] < 0 {
			return -1 // a predecessor is unscheduled; not computable yet
		}
		if v := taskCycle[e.from] + e.latency; v > earliest {
			earliest = v
		}
	}
	return earliest
}
