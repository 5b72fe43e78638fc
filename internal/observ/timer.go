// Package observ records phase durations for the --timings report.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase records the duration and metadata of one pipeline phase.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks phases in the order they began. It is safe for concurrent
// use; the build pipeline shares one across its workers.
type Timer struct {
	mu     sync.Mutex
	phases []Phase
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index and returns its duration.
func (t *Timer) End(idx int, note string) time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return 0
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
	return p.Dur
}

// Track begins name and returns the function that ends it.
func (t *Timer) Track(name string) func(note string) time.Duration {
	idx := t.Begin(name)
	return func(note string) time.Duration { return t.End(idx, note) }
}

// Summary renders the report as aligned text.
func (t *Timer) Summary() string {
	report := t.Report()
	var b strings.Builder
	b.WriteString("timings:\n")
	width := 20
	for _, p := range report.Phases {
		width = max(width, len(p.Name))
	}
	for _, p := range report.Phases {
		fmt.Fprintf(&b, "  %-*s %9.2f ms", width, p.Name, p.DurationMS)
		if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %-*s %9.2f ms\n", width, "total", report.TotalMS)
	return b.String()
}

// PhaseReport is the serialisable form of a phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates a timer's phases. TotalMS sums the phase durations, so
// with concurrent phases it exceeds wall-clock time.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report snapshots the recorded phases.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

// Sum adds up the durations of phases whose name has the given suffix.
func (r Report) Sum(suffix string) time.Duration {
	var total time.Duration
	for _, p := range r.Phases {
		if strings.HasSuffix(p.Name, suffix) {
			total += time.Duration(p.DurationMS * float64(time.Millisecond))
		}
	}
	return total
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
