package exec

import (
	"fmt"
)

// Runtime functions the bundled extensions call. WithExtern may replace
// any of them.
const (
	intrinsicMalloc = "malloc"
	intrinsicPrint  = "__hugr_print"
	intrinsicPanic  = "__hugr_panic"
)

func registerIntrinsics(vm *VM) {
	vm.externs[intrinsicMalloc] = rtMalloc
	vm.externs[intrinsicPrint] = rtPrint
	vm.externs[intrinsicPanic] = rtPanic
}

// rtMalloc returns a fresh uninitialised cell; the size is not needed.
func rtMalloc(vm *VM, _ []Value) (Value, error) {
	c := vm.Heap.alloc(fmt.Sprintf("malloc.%d", vm.Heap.Len()+1), Value{})
	return Value{Kind: VKPtr, Ptr: Pointer{Cell: c}}, nil
}

func rtPrint(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 || args[0].Kind != VKPtr {
		return Value{}, fmt.Errorf("print takes one string pointer")
	}
	s, err := vm.ReadString(args[0].Ptr)
	if err != nil {
		return Value{}, err
	}
	if _, err := fmt.Fprintln(vm.Stdout, s); err != nil {
		return Value{}, err
	}
	return Void(), nil
}

func rtPanic(vm *VM, args []Value) (Value, error) {
	if len(args) != 2 || args[0].Kind != VKInt || args[1].Kind != VKPtr {
		return Value{}, fmt.Errorf("panic takes a signal and a message")
	}
	msg, err := vm.ReadString(args[1].Ptr)
	if err != nil {
		return Value{}, err
	}
	return Value{}, vm.eb.errorf(PanicProgram, "program panicked with signal %d: %s", args[0].Signed(), msg)
}
