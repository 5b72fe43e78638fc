package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestShouldEmit(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeModule, false},
		{LevelDetail, ScopeFunction, true},
		{LevelDetail, ScopeNode, false},
		{LevelDebug, ScopeNode, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestParseLevelAndMode(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel: %v %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if m, err := ParseMode("both"); err != nil || m != ModeBoth {
		t.Fatalf("ParseMode: %v %v", m, err)
	}
	if f, err := ParseFormat("chrome"); err != nil || f != FormatChrome {
		t.Fatalf("ParseFormat: %v %v", f, err)
	}
}

func TestStreamTextNesting(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)
	root := Begin(tr, ScopePass, "lower", 0)
	fn := Begin(tr, ScopeFunction, "func:main", root.ID())
	Point(tr, ScopeNode, "node:3", "", fn.ID())
	fn.WithExtra("blocks", "4").End("")
	root.End("ok")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "  → func:main") {
		t.Fatalf("child span not indented: %q", lines[1])
	}
	if !strings.Contains(lines[2], "{blocks=4}") {
		t.Fatalf("extra missing: %q", lines[2])
	}
	if !strings.Contains(lines[3], "← lower (ok)") {
		t.Fatalf("unexpected end line %q", lines[3])
	}
}

func TestFilteredSpanPassesParent(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	root := Begin(tr, ScopePass, "lower", 0)
	fn := Begin(tr, ScopeFunction, "func:main", root.ID())
	if fn.ID() != root.ID() {
		t.Fatalf("filtered span should report its parent id")
	}
	fn.End("")
	root.End("")
	if strings.Contains(buf.String(), "func:main") {
		t.Fatalf("function span leaked at phase level")
	}
}

func TestRingWraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for i := 0; i < 5; i++ {
		Point(r, ScopeNode, string(rune('a'+i)), "", 0)
	}
	events := r.Snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Name != "c" || events[2].Name != "e" {
		t.Fatalf("unexpected order %q..%q", events[0].Name, events[2].Name)
	}
}

func TestRingRecordsAtErrorLevel(t *testing.T) {
	r := NewRingTracer(8, LevelError)
	Begin(r, ScopePass, "lower", 0)
	if len(r.Snapshot()) != 0 {
		t.Fatalf("Begin should be filtered by level before reaching the ring")
	}
	r.Emit(&Event{Kind: KindPoint, Scope: ScopeNode, Name: "n"})
	if len(r.Snapshot()) != 1 {
		t.Fatalf("ring should keep events at error level")
	}
}

func TestChromeStreamIsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatChrome)
	s := Begin(tr, ScopePass, "lower", 0)
	Point(tr, ScopeNode, "node:1", "Call", s.ID())
	s.End("")
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid chrome trace: %v\n%s", err, buf.String())
	}
	if len(doc.TraceEvents) != 3 {
		t.Fatalf("expected 3 events, got %d", len(doc.TraceEvents))
	}
	if doc.TraceEvents[0]["ph"] != "B" || doc.TraceEvents[1]["ph"] != "i" || doc.TraceEvents[2]["ph"] != "E" {
		t.Fatalf("unexpected phases %v", doc.TraceEvents)
	}
}

func TestMultiCopiesEvents(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(4, LevelDebug)
	m := NewMultiTracer(LevelDebug, NewStreamTracer(&buf, LevelDebug, FormatNDJSON), ring)
	Point(m, ScopeModule, "run", "", 0)
	if RingOf(m) != ring {
		t.Fatalf("RingOf should find the ring")
	}
	if len(ring.Snapshot()) != 1 || buf.Len() == 0 {
		t.Fatalf("event not delivered to every tracer")
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("expected Nop tracer")
	}
	r := NewRingTracer(1, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatalf("tracer not propagated")
	}
}

func TestStartSpanNestsUnderTheParent(t *testing.T) {
	r := NewRingTracer(8, LevelPhase)
	ctx := WithTracer(context.Background(), r)
	if ParentSpan(ctx) != 0 {
		t.Fatalf("root context has a parent")
	}
	driver, ctx := StartSpan(ctx, ScopeDriver, "hugrllvm build")
	pass, passCtx := StartSpan(ctx, ScopePass, "compile:a.json")
	if ParentSpan(passCtx) != pass.ID() || ParentSpan(ctx) != driver.ID() {
		t.Fatalf("parent not propagated")
	}
	// Module spans are filtered at LevelPhase and leave the parent alone.
	_, moduleCtx := StartSpan(passCtx, ScopeModule, "lower:a")
	if ParentSpan(moduleCtx) != pass.ID() {
		t.Fatalf("inert span replaced the parent")
	}
	events := r.Snapshot()
	if len(events) != 2 || events[1].ParentID != driver.ID() {
		t.Fatalf("events = %+v", events)
	}
}
