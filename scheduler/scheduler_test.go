package scheduler

import (
	"math/rand"
	"testing"

	"github.com/dopplerml/doppler/config"
)

func capsFixture() map[Engine]int {
	return map[Engine]int{
		EngineVALU: 1, EngineALU: 1, EngineFlow: 1, EngineLoad: 2, EngineStore: 1, EngineDebug: 1,
	}
}

func issueOrderFixture() []Engine {
	return []Engine{EngineLoad, EngineVALU, EngineALU, EngineFlow, EngineStore, EngineDebug}
}

func linearChain(n int) []Task {
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		t := Task{ID: i, Engine: EngineVALU, Bundle: NoBundle}
		if i > 0 {
			t.Reads = []Address{Address(i - 1)}
		}
		t.Writes = []Address{Address(i)}
		tasks[i] = t
	}
	return tasks
}

func TestBuildGraphLinearChainHeights(t *testing.T) {
	tasks := linearChain(4)
	g := BuildGraph(tasks, DefaultHazardConfig())
	for i, h := range g.Height {
		want := len(tasks) - i
		if h != want {
			t.Errorf("task %d height = %d, want %d", i, h, want)
		}
	}
	if g.CriticalPath != len(tasks) {
		t.Errorf("critical path = %d, want %d", g.CriticalPath, len(tasks))
	}
}

func TestScheduleRespectsRAWDependency(t *testing.T) {
	tasks := linearChain(3)
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: capsFixture(), IssueOrder: issueOrderFixture(), Hazards: DefaultHazardConfig(), Mode: ScoreHeight}
	res := Schedule(g, cfg, defaultPriorityVector(), make([]float64, len(tasks)))

	if err := Validate(g, cfg, res); err != nil {
		t.Fatalf("invalid schedule: %v", err)
	}
	for i := 1; i < len(tasks); i++ {
		if res.TaskCycle[i] <= res.TaskCycle[i-1] {
			t.Errorf("task %d scheduled at cycle %d, not after dependency at %d", i, res.TaskCycle[i], res.TaskCycle[i-1])
		}
	}
}

func TestScheduleEngineCapNeverExceeded(t *testing.T) {
	tasks := make([]Task, 0, 8)
	for i := 0; i < 8; i++ {
		tasks = append(tasks, Task{ID: i, Engine: EngineVALU, Bundle: NoBundle, Writes: []Address{Address(1000 + i)}})
	}
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: capsFixture(), IssueOrder: issueOrderFixture(), Hazards: DefaultHazardConfig(), Mode: ScoreHeight}
	res := Schedule(g, cfg, defaultPriorityVector(), make([]float64, len(tasks)))

	perCycleEngine := make(map[int]map[Engine]int)
	for cyc, ids := range res.SlotGrid {
		for _, id := range ids {
			idx := g.idIndex[id]
			if perCycleEngine[cyc] == nil {
				perCycleEngine[cyc] = make(map[Engine]int)
			}
			perCycleEngine[cyc][g.Tasks[idx].Engine]++
		}
	}
	for cyc, counts := range perCycleEngine {
		for eng, n := range counts {
			if n > cfg.EngineCaps[eng] {
				t.Errorf("cycle %d engine %s has %d tasks, cap is %d", cyc, eng, n, cfg.EngineCaps[eng])
			}
		}
	}
	if err := Validate(g, cfg, res); err != nil {
		t.Fatalf("invalid schedule: %v", err)
	}
}

func TestScheduleNoSameCycleWriteCollision(t *testing.T) {
	shared := Address(42)
	tasks := []Task{
		{ID: 0, Engine: EngineVALU, Writes: []Address{shared}, Bundle: NoBundle},
		{ID: 1, Engine: EngineALU, Writes: []Address{shared}, Bundle: NoBundle},
		{ID: 2, Engine: EngineFlow, Writes: []Address{shared}, Bundle: NoBundle},
	}
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: capsFixture(), IssueOrder: issueOrderFixture(), Hazards: DefaultHazardConfig(), Mode: ScoreHeight}
	res := Schedule(g, cfg, defaultPriorityVector(), make([]float64, len(tasks)))

	if err := Validate(g, cfg, res); err != nil {
		t.Fatalf("invalid schedule: %v", err)
	}
	seen := make(map[int]bool)
	for _, ids := range res.SlotGrid {
		for _, id := range ids {
			if seen[id] {
				t.Fatalf("task %d appears in more than one cycle's slot grid", id)
			}
			seen[id] = true
		}
	}
}

func TestValidateCatchesMissingTask(t *testing.T) {
	tasks := linearChain(2)
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: capsFixture(), IssueOrder: issueOrderFixture(), Hazards: DefaultHazardConfig(), Mode: ScoreHeight}
	res := &Result{TaskCycle: map[int]int{0: 0}, SlotGrid: map[int][]int{0: {0}}, Missing: 1, Cycles: 1}
	if err := Validate(g, cfg, res); err == nil {
		t.Fatal("expected an error for a schedule missing a task, got nil")
	}
}

func TestUtilizationExcludesDebugEngine(t *testing.T) {
	tasks := []Task{
		{ID: 0, Engine: EngineVALU, Bundle: NoBundle, Writes: []Address{1}},
		{ID: 1, Engine: EngineDebug, Bundle: NoBundle, Writes: []Address{2}},
	}
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{
		EngineCaps:  map[Engine]int{EngineVALU: 1, EngineDebug: 1},
		IssueOrder:  []Engine{EngineVALU, EngineDebug},
		Hazards:     DefaultHazardConfig(),
		Mode:        ScoreHeight,
		DebugEngine: EngineDebug,
	}
	res := Schedule(g, cfg, defaultPriorityVector(), make([]float64, len(tasks)))
	if res.Utilization != 1.0 {
		t.Errorf("utilization = %v, want 1.0 (one non-debug task fully occupying its one non-debug cap-slot cycle)", res.Utilization)
	}
}

// TestSchedulerEquivalenceAgainstBaseline is spec.md §8 scenario 5: a
// bundle-hinted task list with caps {valu:1, alu:1, flow:1, load:2,
// store:1}; the bundle-ordered baseline and the graph scheduler run
// with ScoreBundle must agree on cycle count and every task's assigned
// cycle.
func TestSchedulerEquivalenceAgainstBaseline(t *testing.T) {
	tasks := []Task{
		{ID: 0, Engine: EngineLoad, Bundle: 0, Writes: []Address{10}},
		{ID: 1, Engine: EngineLoad, Bundle: 0, Writes: []Address{11}},
		{ID: 2, Engine: EngineVALU, Bundle: 1, Reads: []Address{10}, Writes: []Address{20}},
		{ID: 3, Engine: EngineALU, Bundle: 1, Reads: []Address{11}, Writes: []Address{21}},
		{ID: 4, Engine: EngineFlow, Bundle: 2, Reads: []Address{20, 21}, Writes: []Address{30}},
		{ID: 5, Engine: EngineStore, Bundle: 3, Reads: []Address{30}, Writes: []Address{40}},
	}
	caps := map[Engine]int{EngineVALU: 1, EngineALU: 1, EngineFlow: 1, EngineLoad: 2, EngineStore: 1}
	order := []Engine{EngineLoad, EngineVALU, EngineALU, EngineFlow, EngineStore}

	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: caps, IssueOrder: order, Hazards: DefaultHazardConfig(), Mode: ScoreBundle}

	graphResult := Schedule(g, cfg, defaultPriorityVector(), make([]float64, len(tasks)))
	baselineResult := Baseline(g, cfg)

	if err := Validate(g, cfg, graphResult); err != nil {
		t.Fatalf("graph schedule invalid: %v", err)
	}
	if err := Validate(g, cfg, baselineResult); err != nil {
		t.Fatalf("baseline schedule invalid: %v", err)
	}
	if !Equivalent(graphResult, baselineResult) {
		t.Fatalf("graph scheduler (scoreMode=bundle) and baseline disagree:\ngraph:    cycles=%d taskCycle=%v\nbaseline: cycles=%d taskCycle=%v",
			graphResult.Cycles, graphResult.TaskCycle, baselineResult.Cycles, baselineResult.TaskCycle)
	}
}

func TestLowerBoundMatchesEngineOccupancy(t *testing.T) {
	tasks := make([]Task, 0, 5)
	for i := 0; i < 5; i++ {
		tasks = append(tasks, Task{ID: i, Engine: EngineLoad, Bundle: NoBundle, Writes: []Address{Address(100 + i)}})
	}
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: map[Engine]int{EngineLoad: 2}, IssueOrder: []Engine{EngineLoad}, Hazards: DefaultHazardConfig(), Mode: ScoreHeight}
	lb := LowerBound(g, cfg)
	if lb != 3 { // ceil(5/2)
		t.Errorf("lower bound = %d, want 3", lb)
	}
}

func TestAnnealWithZeroRestartsMatchesPlainSchedule(t *testing.T) {
	tasks := linearChain(5)
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: capsFixture(), IssueOrder: issueOrderFixture(), Hazards: DefaultHazardConfig(), Mode: ScoreMix}
	rng := rand.New(rand.NewSource(1))

	plain := Schedule(g, cfg, defaultPriorityVector(), make([]float64, len(tasks)))
	annealed := Anneal(g, cfg, AnnealParams{Restarts: 0, Steps: 0}, rng)

	if !Equivalent(plain, annealed) {
		t.Fatalf("disabled annealing changed the schedule: plain=%v annealed=%v", plain.TaskCycle, annealed.TaskCycle)
	}
}

func TestAnnealNeverWorsensCycleCount(t *testing.T) {
	tasks := linearChain(6)
	g := BuildGraph(tasks, DefaultHazardConfig())
	cfg := Config{EngineCaps: capsFixture(), IssueOrder: issueOrderFixture(), Hazards: DefaultHazardConfig(), Mode: ScoreMix}
	rng := rand.New(rand.NewSource(7))

	baseline := Schedule(g, cfg, defaultPriorityVector(), make([]float64, len(tasks)))
	annealed := Anneal(g, cfg, AnnealParams{Restarts: 2, Steps: 5, TemperatureStart: 1.0, TemperatureDecay: 0.9}, rng)

	if annealed.Cycles > baseline.Cycles {
		t.Errorf("annealed schedule has more cycles (%d) than the un-annealed baseline (%d)", annealed.Cycles, baseline.Cycles)
	}
}

func TestModeFromPolicyRoundTrips(t *testing.T) {
	cases := []struct {
		in   config.SchedulerPolicy
		want ScoreMode
	}{
		{config.SchedulerPolicyHeight, ScoreHeight},
		{config.SchedulerPolicySlack, ScoreSlack},
		{config.SchedulerPolicyMix, ScoreMix},
	}
	for _, c := range cases {
		got := ModeFromPolicy(c.in)
		if got != c.want {
			t.Errorf("ModeFromPolicy(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
