// Package scheduler implements the VLIW-style micro-scheduler described
// in spec.md §4.5: given a DAG of micro-tasks tagged with an engine
// class and memory hazards, it produces a cycle-by-cycle issue schedule
// that honors per-engine issue-width caps and latency-weighted
// dependency constraints. It is self-contained and has no dependency on
// gpu/kernels/pipeline — it schedules an abstract task list, not GPU
// dispatches.
package scheduler

// Engine is a functional-unit class a task is bound to (spec.md
// GLOSSARY "Engine").
type Engine string

const (
	EngineVALU  Engine = "valu"
	EngineALU   Engine = "alu"
	EngineFlow  Engine = "flow"
	EngineLoad  Engine = "load"
	EngineStore Engine = "store"
	EngineDebug Engine = "debug"
)

// Address is an opaque memory location used to detect read/write
// hazards between tasks. Two tasks conflict when one's Writes intersects
// the other's Reads or Writes, per the hazard classes in HazardConfig.
type Address uint64

// Task is one scheduler input node (spec.md §3 "Task-scheduler task"):
// an id, an engine class, explicit dependency ids, the addresses it
// reads and writes, optional temp-register tags for the temp-aliasing
// hazard, and an optional bundle hint used only by the baseline
// scheduler and the `bundle` score mode.
type Task struct {
	ID       int
	Engine   Engine
	Deps     []int
	Reads    []Address
	Writes   []Address
	TempTags []string
	Bundle   int // -1 means "no bundle hint"
	Label    string
}

// NoBundle is the Bundle value meaning "no baseline hint".
const NoBundle = -1
