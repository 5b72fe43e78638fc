package exec

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Frame represents a function activation record on the call stack.
type Frame struct {
	Func   *ir.Func
	Block  *ir.Block
	Prev   *ir.Block // block control came from, for phis
	IP     int       // index into Block.Insts; len(Insts) means the terminator
	Locals map[value.Value]Value
	Call   *ir.InstCall // instruction in the caller receiving the result
}

// NewFrame creates a frame entering fn with args bound to its parameters.
func NewFrame(fn *ir.Func, args []Value) *Frame {
	f := &Frame{
		Func:   fn,
		Locals: make(map[value.Value]Value, len(fn.Params)+16),
	}
	for i, p := range fn.Params {
		f.Locals[p] = args[i]
	}
	if len(fn.Blocks) > 0 {
		f.Block = fn.Blocks[0]
	}
	return f
}

// AtTerminator reports whether every instruction of the block has run.
func (f *Frame) AtTerminator() bool {
	return f.IP >= len(f.Block.Insts)
}

// CurrentInstr returns the next instruction, or nil at the terminator.
func (f *Frame) CurrentInstr() ir.Instruction {
	if f.AtTerminator() {
		return nil
	}
	return f.Block.Insts[f.IP]
}

// asBlock recovers a branch target.
func asBlock(v any) (*ir.Block, bool) {
	b, ok := v.(*ir.Block)
	return b, ok && b != nil
}
