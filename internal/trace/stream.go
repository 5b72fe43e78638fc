package trace

import (
	"io"
	"sync"
)

// StreamTracer writes events as they are emitted. Write errors are
// dropped so a broken trace sink never fails a build.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	count  int
	closed bool
}

// NewStreamTracer writes to w. Chrome output is wrapped in a traceEvents
// object that Close terminates.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	st := &StreamTracer{w: w, level: level, format: format}
	if format == FormatChrome {
		_, _ = io.WriteString(w, "{\"traceEvents\":[\n") //nolint:errcheck
	}
	return st
}

func (t *StreamTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	ev.Seq = NextSeq()
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.format == FormatChrome && t.count > 0 {
		_, _ = io.WriteString(t.w, ",\n") //nolint:errcheck
	}
	t.count++
	_, _ = t.w.Write(data) //nolint:errcheck
}

func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	if s, ok := t.w.(interface{ Sync() error }); ok && !isStdStream(t.w) {
		return s.Sync()
	}
	return nil
}

// Close terminates Chrome output and closes the writer when it is a Closer
// other than a standard stream.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.format == FormatChrome {
		_, _ = io.WriteString(t.w, "\n]}\n") //nolint:errcheck
	}
	t.mu.Unlock()

	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok && !isStdStream(t.w) {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
