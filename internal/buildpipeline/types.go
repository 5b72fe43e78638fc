package buildpipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageLoad decodes the graph-IR file.
	StageLoad Stage = "load"
	// StageValidate checks graph structure before lowering.
	StageValidate Stage = "validate"
	// StageLower runs the lowering engine.
	StageLower Stage = "lower"
	// StageVerify checks the emitted IR.
	StageVerify Stage = "verify"
	// StageWrite writes the textual IR.
	StageWrite Stage = "write"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageLoad, StageValidate, StageLower, StageVerify, StageWrite}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the overall pipeline when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Build calls OnEvent from several
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations for one file.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages, or across
// every stage when none are given.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if len(stages) == 0 {
		stages = Stages
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
