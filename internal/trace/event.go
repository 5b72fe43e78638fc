package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindHeartbeat                 // periodic liveness signal
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// chromePhase maps a kind onto the Chrome trace-event "ph" field.
func (k Kind) chromePhase() string {
	switch k {
	case KindSpanBegin:
		return "B"
	case KindSpanEnd:
		return "E"
	default:
		return "i"
	}
}

// Scope indicates the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeDriver   Scope = iota + 1 // CLI command
	ScopePass                      // load, lower, verify, write
	ScopeModule                    // one lowering run
	ScopeFunction                  // one emitted function body
	ScopeNode                      // one graph node
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeNode:
		return "node"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // global, monotonic
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	GID      uint64 // emitting goroutine
	Name     string // e.g. "lower", "func:_hl.main", "node:7"
	Detail   string
	Extra    map[string]string
}
