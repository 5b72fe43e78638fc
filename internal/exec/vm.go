package exec

import (
	"fmt"
	"io"

	"github.com/llir/llvm/ir"
)

// DefaultStepLimit bounds a run unless WithStepLimit says otherwise.
const DefaultStepLimit = 1_000_000

// ExternFunc implements a body-less function of the module.
type ExternFunc func(vm *VM, args []Value) (Value, error)

// Option configures a VM.
type Option func(*VM)

// WithExtern provides the external function name.
func WithExtern(name string, fn ExternFunc) Option {
	return func(vm *VM) { vm.externs[name] = fn }
}

// WithStepLimit caps the number of executed instructions and terminators.
// Zero or less means no limit.
func WithStepLimit(n int) Option {
	return func(vm *VM) { vm.MaxSteps = n }
}

// WithStdout redirects output of the print runtime function.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.Stdout = w }
}

// VM is an interpreter over one module.
type VM struct {
	M        *ir.Module
	Stack    []*Frame
	Heap     *Heap
	Stdout   io.Writer
	Steps    int
	MaxSteps int
	Halted   bool

	externs map[string]ExternFunc
	funcs   map[string]*ir.Func
	result  Value
	eb      *errorBuilder
}

// New creates a VM for m.
func New(m *ir.Module, opts ...Option) *VM {
	vm := &VM{
		M:        m,
		Heap:     newHeap(),
		Stdout:   io.Discard,
		MaxSteps: DefaultStepLimit,
		externs:  make(map[string]ExternFunc),
		funcs:    make(map[string]*ir.Func, len(m.Funcs)),
	}
	vm.eb = &errorBuilder{vm: vm}
	for _, fn := range m.Funcs {
		vm.funcs[fn.Name()] = fn
	}
	registerIntrinsics(vm)
	for _, o := range opts {
		o(vm)
	}
	return vm
}

// Run interprets the function entry of m on args.
func Run(m *ir.Module, entry string, args []Value, opts ...Option) (Value, error) {
	vm := New(m, opts...)
	return vm.Call(entry, args...)
}

// Call runs the function entry to completion. It returns Void for void
// functions.
func (vm *VM) Call(entry string, args ...Value) (Value, error) {
	fn, ok := vm.funcs[entry]
	if !ok {
		return Value{}, fmt.Errorf("no function %q in module", entry)
	}
	if len(fn.Blocks) == 0 {
		return Value{}, fmt.Errorf("function %q has no body", entry)
	}
	if len(args) != len(fn.Params) {
		return Value{}, fmt.Errorf("function %q takes %d arguments, got %d", entry, len(fn.Params), len(args))
	}
	for i, p := range fn.Params {
		if !checkType(args[i], p.Typ) {
			return Value{}, fmt.Errorf("argument %d of %q: %s does not fit %s", i, entry, args[i], p.Typ)
		}
	}
	vm.Stack = []*Frame{NewFrame(fn, args)}
	vm.Halted = false
	vm.result = Value{}
	for !vm.Halted && len(vm.Stack) > 0 {
		if err := vm.Step(); err != nil {
			return Value{}, err
		}
	}
	return vm.result, nil
}

// Step executes exactly one instruction or terminator.
func (vm *VM) Step() *VMError {
	if vm.Halted || len(vm.Stack) == 0 {
		return nil
	}
	vm.Steps++
	if vm.MaxSteps > 0 && vm.Steps > vm.MaxSteps {
		return vm.eb.errorf(PanicStepLimit, "step limit %d exceeded", vm.MaxSteps)
	}
	frame := vm.Stack[len(vm.Stack)-1]
	if frame.AtTerminator() {
		return vm.execTerminator(frame)
	}
	return vm.execInstr(frame, frame.CurrentInstr())
}

// pop returns from the top frame with v.
func (vm *VM) pop(v Value) {
	top := vm.Stack[len(vm.Stack)-1]
	vm.Stack = vm.Stack[:len(vm.Stack)-1]
	if len(vm.Stack) == 0 {
		vm.result = v
		vm.Halted = true
		return
	}
	caller := vm.Stack[len(vm.Stack)-1]
	if top.Call != nil {
		caller.Locals[top.Call] = v
	}
	caller.IP++
}
