package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"hugrllvm/internal/buildpipeline"
)

func TestProgressModelTracksFiles(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("hugrllvm build", []string{"a.json", "b.json"}, events).(*progressModel)

	m.applyEvent(buildpipeline.Event{Stage: buildpipeline.StageLower, Status: buildpipeline.StatusWorking})
	m.applyEvent(buildpipeline.Event{File: "a.json", Stage: buildpipeline.StageVerify, Status: buildpipeline.StatusWorking})
	m.applyEvent(buildpipeline.Event{File: "b.json", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusError, Err: errors.New("load: boom"), Elapsed: time.Millisecond})
	m.applyEvent(buildpipeline.Event{File: "unknown.json", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusWorking})

	if got := m.items[0].status; got != "verifying" {
		t.Fatalf("a.json status = %q, want verifying", got)
	}
	if got := m.items[1].status; got != "error" {
		t.Fatalf("b.json status = %q, want error", got)
	}
	if got, want := m.percent(), (0.8+1.0)/2; got != want {
		t.Fatalf("percent = %v, want %v", got, want)
	}

	view := m.View()
	for _, want := range []string{"hugrllvm build (lowering)", "verifying", "a.json", "load: boom"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressModelQuitsWhenEventsClose(t *testing.T) {
	events := make(chan buildpipeline.Event)
	close(events)
	m := NewProgressModel("t", []string{"x"}, events).(*progressModel)
	if _, ok := m.listenForEvent()().(doneMsg); !ok {
		t.Fatal("closed channel should produce doneMsg")
	}
	m.Update(doneMsg{})
	if !m.done {
		t.Fatal("model should be done")
	}
	if !strings.HasPrefix(strings.TrimSpace(stripANSI(m.View())), "done: t") {
		t.Fatalf("unexpected view:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 6, "abc..."},
		{"abcdef", 2, "ab"},
		{"日本語ファイル", 7, "日本..."},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == 0x1b:
			inEsc = true
		case inEsc && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEsc = false
		case !inEsc:
			b.WriteRune(r)
		}
	}
	return b.String()
}
