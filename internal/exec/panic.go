package exec

import (
	"fmt"
	"strings"
)

// PanicCode identifies the type of VM panic.
type PanicCode int

// Stable panic codes - do not change values.
const (
	PanicUseBeforeInit   PanicCode = 1001 // VM1001: read of memory never written
	PanicTypeMismatch    PanicCode = 1003 // VM1003: value does not fit its static type
	PanicOutOfBounds     PanicCode = 1004 // VM1004: field or element index out of range
	PanicUnknownExtern   PanicCode = 1005 // VM1005: call to an external function nobody provides
	PanicDivideByZero    PanicCode = 1006 // VM1006: integer division by zero
	PanicNullDeref       PanicCode = 1007 // VM1007: load or store through null
	PanicUnreachable     PanicCode = 1008 // VM1008: executed unreachable
	PanicStepLimit       PanicCode = 1009 // VM1009: step limit reached
	PanicProgram         PanicCode = 1010 // VM1010: the program panicked
	PanicExtern          PanicCode = 1011 // VM1011: an external function failed
	PanicUnimplemented   PanicCode = 1999 // VM1999: unimplemented instruction
)

// String returns the code as "VM1001" format.
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// BacktraceFrame represents one frame in the panic backtrace.
type BacktraceFrame struct {
	FuncName string
	Block    string
}

// VMError represents a runtime panic in the VM.
type VMError struct {
	Code      PanicCode
	Message   string
	Backtrace []BacktraceFrame // top to bottom
	Err       error
}

// Error implements the error interface.
func (p *VMError) Error() string {
	return fmt.Sprintf("panic %s: %s", p.Code, p.Message)
}

func (p *VMError) Unwrap() error { return p.Err }

// Format renders the panic with its backtrace.
func (p *VMError) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "panic %s: %s\n", p.Code, p.Message)
	if len(p.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, frame := range p.Backtrace {
			fmt.Fprintf(&sb, "  %d: @%s in %%%s\n", i, frame.FuncName, frame.Block)
		}
	}
	return sb.String()
}

// errorBuilder helps construct VMError values.
type errorBuilder struct {
	vm *VM
}

func (eb *errorBuilder) makeError(code PanicCode, msg string) *VMError {
	e := &VMError{Code: code, Message: msg}
	stack := eb.vm.Stack
	e.Backtrace = make([]BacktraceFrame, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		bt := BacktraceFrame{FuncName: f.Func.Name()}
		if f.Block != nil {
			bt.Block = f.Block.Name()
		}
		e.Backtrace[len(stack)-1-i] = bt
	}
	return e
}

func (eb *errorBuilder) errorf(code PanicCode, format string, args ...any) *VMError {
	return eb.makeError(code, fmt.Sprintf(format, args...))
}

func (eb *errorBuilder) typeMismatch(expected, got string) *VMError {
	return eb.errorf(PanicTypeMismatch, "expected %s, got %s", expected, got)
}

func (eb *errorBuilder) outOfBounds(index uint64, length int) *VMError {
	return eb.errorf(PanicOutOfBounds, "index %d out of bounds for length %d", index, length)
}

func (eb *errorBuilder) unimplemented(what string) *VMError {
	return eb.errorf(PanicUnimplemented, "unimplemented: %s", what)
}
