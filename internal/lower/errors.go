package lower

import (
	"errors"
	"fmt"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/typeconv"
)

// ErrorKind classifies lowering failures.
type ErrorKind uint8

const (
	// KindUnsupportedType: a type has no lowering.
	KindUnsupportedType ErrorKind = iota + 1
	// KindUnknownOperation: an extension op has no registered handler.
	KindUnknownOperation
	// KindInvariantViolation: the graph breaks a structural assumption.
	KindInvariantViolation
	// KindUnboundValue: a value was consumed before it was produced.
	KindUnboundValue
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupportedType:
		return "unsupported type"
	case KindUnknownOperation:
		return "unknown operation"
	case KindInvariantViolation:
		return "invariant violation"
	case KindUnboundValue:
		return "unbound value"
	default:
		return fmt.Sprintf("lowering error kind=%d", k)
	}
}

// Error is returned by every lowering entry point.
type Error struct {
	Kind ErrorKind
	Node hugr.NodeID // hugr.NoNode when not tied to a node
	Op   string      // description of the offending node
	Type string      // for KindUnsupportedType
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.String()
	if e.Node != hugr.NoNode {
		msg += fmt.Sprintf(" at node %d", e.Node)
		if e.Op != "" {
			msg += " (" + e.Op + ")"
		}
	}
	if e.Type != "" {
		msg += ": type " + e.Type
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a lowering error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == k
}

func nodeError(h *hugr.Hugr, kind ErrorKind, n hugr.NodeID, format string, args ...any) *Error {
	e := &Error{Kind: kind, Node: n, Msg: fmt.Sprintf(format, args...)}
	if op := h.Op(n); op != nil {
		e.Op = op.Describe()
	}
	return e
}

func invariant(h *hugr.Hugr, n hugr.NodeID, format string, args ...any) *Error {
	return nodeError(h, KindInvariantViolation, n, format, args...)
}

// typeError wraps a conversion failure, keeping the converter's verdict on
// unsupported types.
func typeError(h *hugr.Hugr, n hugr.NodeID, err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	var ute *typeconv.UnsupportedTypeError
	if errors.As(err, &ute) {
		e := nodeError(h, KindUnsupportedType, n, "%s", ute.Reason)
		e.Type = ute.Type
		return e
	}
	e := invariant(h, n, "type conversion failed")
	e.Err = err
	return e
}
