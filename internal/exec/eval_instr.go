package exec

import (
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// execInstr runs one non-terminator instruction and advances the frame,
// unless it pushed a callee frame.
func (vm *VM) execInstr(frame *Frame, inst ir.Instruction) *VMError {
	var (
		res Value
		err *VMError
	)
	switch inst := inst.(type) {
	case *ir.InstPhi:
		// Phis are resolved on block entry; reaching one means the function
		// started at a block with phis.
		return vm.eb.errorf(PanicTypeMismatch, "phi in block %%%s executed without a predecessor", frame.Block.Name())
	case *ir.InstCall:
		return vm.execCall(frame, inst)
	case *ir.InstStore:
		p, err := vm.evalValue(frame, inst.Dst)
		if err != nil {
			return err
		}
		v, err := vm.evalValue(frame, inst.Src)
		if err != nil {
			return err
		}
		if p.Kind != VKPtr {
			return vm.eb.typeMismatch("pointer", p.Kind.String())
		}
		if err := vm.put(p.Ptr, v); err != nil {
			return err
		}
		frame.IP++
		return nil
	case *ir.InstAlloca:
		z, err := vm.zero(inst.ElemType)
		if err != nil {
			return err
		}
		c := vm.Heap.alloc(frame.Func.Name()+"."+inst.Ident(), z)
		res = Value{Kind: VKPtr, Ptr: Pointer{Cell: c}}
	case *ir.InstLoad:
		p, err := vm.evalValue(frame, inst.Src)
		if err != nil {
			return err
		}
		if p.Kind != VKPtr {
			return vm.eb.typeMismatch("pointer", p.Kind.String())
		}
		if res, err = vm.at(p.Ptr); err != nil {
			return err
		}
		if !checkType(res, inst.ElemType) {
			return vm.eb.typeMismatch(inst.ElemType.String(), res.String())
		}
	case *ir.InstGetElementPtr:
		res, err = vm.execGEP(frame, inst.Src, inst.Indices)
	case *ir.InstInsertValue:
		res, err = vm.execInsertValue(frame, inst)
	case *ir.InstExtractValue:
		res, err = vm.execExtractValue(frame, inst)
	case *ir.InstSelect:
		res, err = vm.execSelect(frame, inst)
	case *ir.InstICmp:
		res, err = vm.binary(frame, inst.X, inst.Y, func(x, y Value) (Value, *VMError) { return vm.icmp(inst.Pred, x, y) })
	case *ir.InstFCmp:
		res, err = vm.binary(frame, inst.X, inst.Y, func(x, y Value) (Value, *VMError) { return vm.fcmp(inst.Pred, x, y) })
	case *ir.InstFNeg:
		res, err = vm.unary(frame, inst.X, func(x Value) (Value, *VMError) { return Float(-x.Float), nil })
	default:
		res, err = vm.execArith(frame, inst)
	}
	if err != nil {
		return err
	}
	v, ok := inst.(value.Value)
	if !ok {
		return vm.eb.unimplemented(fmt.Sprintf("instruction %T", inst))
	}
	frame.Locals[v] = res
	frame.IP++
	return nil
}

func (vm *VM) unary(frame *Frame, x value.Value, fn func(x Value) (Value, *VMError)) (Value, *VMError) {
	xv, err := vm.evalValue(frame, x)
	if err != nil {
		return Value{}, err
	}
	return fn(xv)
}

func (vm *VM) binary(frame *Frame, x, y value.Value, fn func(x, y Value) (Value, *VMError)) (Value, *VMError) {
	xv, err := vm.evalValue(frame, x)
	if err != nil {
		return Value{}, err
	}
	yv, err := vm.evalValue(frame, y)
	if err != nil {
		return Value{}, err
	}
	if xv.Kind != yv.Kind || xv.Width != yv.Width {
		return Value{}, vm.eb.typeMismatch(xv.Kind.String(), yv.Kind.String())
	}
	return fn(xv, yv)
}

func (vm *VM) execGEP(frame *Frame, src value.Value, indices []value.Value) (Value, *VMError) {
	p, err := vm.evalValue(frame, src)
	if err != nil {
		return Value{}, err
	}
	idx := make([]Value, len(indices))
	for i, ix := range indices {
		if idx[i], err = vm.evalValue(frame, ix); err != nil {
			return Value{}, err
		}
	}
	return vm.gep(p, idx)
}

func (vm *VM) execInsertValue(frame *Frame, inst *ir.InstInsertValue) (Value, *VMError) {
	agg, err := vm.evalValue(frame, inst.X)
	if err != nil {
		return Value{}, err
	}
	elem, err := vm.evalValue(frame, inst.Elem)
	if err != nil {
		return Value{}, err
	}
	return vm.replace(agg, inst.Indices, elem)
}

func (vm *VM) execExtractValue(frame *Frame, inst *ir.InstExtractValue) (Value, *VMError) {
	v, err := vm.evalValue(frame, inst.X)
	if err != nil {
		return Value{}, err
	}
	for _, idx := range inst.Indices {
		if v.Kind != VKAggregate {
			return Value{}, vm.eb.typeMismatch("aggregate", v.Kind.String())
		}
		if idx >= uint64(len(v.Fields)) {
			return Value{}, vm.eb.outOfBounds(idx, len(v.Fields))
		}
		v = v.Fields[idx]
	}
	return v, nil
}

func (vm *VM) execSelect(frame *Frame, inst *ir.InstSelect) (Value, *VMError) {
	c, err := vm.evalValue(frame, inst.Cond)
	if err != nil {
		return Value{}, err
	}
	if c.Kind != VKInt || c.Width != 1 {
		return Value{}, vm.eb.typeMismatch("i1", c.String())
	}
	if c.Truth() {
		return vm.evalValue(frame, inst.ValueTrue)
	}
	return vm.evalValue(frame, inst.ValueFalse)
}

// execArith covers integer arithmetic, float arithmetic and casts.
func (vm *VM) execArith(frame *Frame, inst ir.Instruction) (Value, *VMError) {
	switch inst := inst.(type) {
	case *ir.InstAdd:
		return vm.binary(frame, inst.X, inst.Y, intOp(func(x, y Value) uint64 { return x.Bits + y.Bits }))
	case *ir.InstSub:
		return vm.binary(frame, inst.X, inst.Y, intOp(func(x, y Value) uint64 { return x.Bits - y.Bits }))
	case *ir.InstMul:
		return vm.binary(frame, inst.X, inst.Y, intOp(func(x, y Value) uint64 { return x.Bits * y.Bits }))
	case *ir.InstAnd:
		return vm.binary(frame, inst.X, inst.Y, intOp(func(x, y Value) uint64 { return x.Bits & y.Bits }))
	case *ir.InstOr:
		return vm.binary(frame, inst.X, inst.Y, intOp(func(x, y Value) uint64 { return x.Bits | y.Bits }))
	case *ir.InstXor:
		return vm.binary(frame, inst.X, inst.Y, intOp(func(x, y Value) uint64 { return x.Bits ^ y.Bits }))
	case *ir.InstShl:
		return vm.binary(frame, inst.X, inst.Y, shiftOp(func(x Value, n uint64) uint64 { return x.Bits << n }))
	case *ir.InstLShr:
		return vm.binary(frame, inst.X, inst.Y, shiftOp(func(x Value, n uint64) uint64 { return x.Bits >> n }))
	case *ir.InstAShr:
		return vm.binary(frame, inst.X, inst.Y, shiftOp(func(x Value, n uint64) uint64 { return uint64(x.Signed() >> n) })) //nolint:gosec // two's complement reinterpretation
	case *ir.InstSDiv:
		return vm.binary(frame, inst.X, inst.Y, vm.divOp(func(x, y Value) uint64 { return uint64(x.Signed() / y.Signed()) })) //nolint:gosec // two's complement reinterpretation
	case *ir.InstUDiv:
		return vm.binary(frame, inst.X, inst.Y, vm.divOp(func(x, y Value) uint64 { return x.Bits / y.Bits }))
	case *ir.InstSRem:
		return vm.binary(frame, inst.X, inst.Y, vm.divOp(func(x, y Value) uint64 { return uint64(x.Signed() % y.Signed()) })) //nolint:gosec // two's complement reinterpretation
	case *ir.InstURem:
		return vm.binary(frame, inst.X, inst.Y, vm.divOp(func(x, y Value) uint64 { return x.Bits % y.Bits }))
	case *ir.InstFAdd:
		return vm.binary(frame, inst.X, inst.Y, floatOp(func(x, y float64) float64 { return x + y }))
	case *ir.InstFSub:
		return vm.binary(frame, inst.X, inst.Y, floatOp(func(x, y float64) float64 { return x - y }))
	case *ir.InstFMul:
		return vm.binary(frame, inst.X, inst.Y, floatOp(func(x, y float64) float64 { return x * y }))
	case *ir.InstFDiv:
		return vm.binary(frame, inst.X, inst.Y, floatOp(func(x, y float64) float64 { return x / y }))
	case *ir.InstFRem:
		return vm.binary(frame, inst.X, inst.Y, floatOp(math.Mod))
	case *ir.InstTrunc:
		return vm.cast(frame, inst.From, inst.To, func(x Value, to uint64) Value { return Uint(to, x.Bits) })
	case *ir.InstZExt:
		return vm.cast(frame, inst.From, inst.To, func(x Value, to uint64) Value { return Uint(to, x.Bits) })
	case *ir.InstSExt:
		return vm.cast(frame, inst.From, inst.To, func(x Value, to uint64) Value { return Int(to, x.Signed()) })
	case *ir.InstSIToFP:
		return vm.unary(frame, inst.From, func(x Value) (Value, *VMError) { return Float(float64(x.Signed())), nil })
	case *ir.InstUIToFP:
		return vm.unary(frame, inst.From, func(x Value) (Value, *VMError) { return Float(float64(x.Bits)), nil })
	case *ir.InstFPToSI:
		return vm.cast(frame, inst.From, inst.To, func(x Value, to uint64) Value { return Int(to, fpToInt(x.Float)) })
	case *ir.InstFPToUI:
		return vm.cast(frame, inst.From, inst.To, func(x Value, to uint64) Value { return Uint(to, fpToUint(x.Float)) })
	case *ir.InstBitCast:
		return vm.unary(frame, inst.From, func(x Value) (Value, *VMError) { return x, nil })
	}
	return Value{}, vm.eb.unimplemented(fmt.Sprintf("instruction %T", inst))
}

func intOp(fn func(x, y Value) uint64) func(x, y Value) (Value, *VMError) {
	return func(x, y Value) (Value, *VMError) {
		return Uint(x.Width, fn(x, y)), nil
	}
}

// shiftOp yields zero for shift amounts of at least the width, where the
// IR result is poison.
func shiftOp(fn func(x Value, n uint64) uint64) func(x, y Value) (Value, *VMError) {
	return func(x, y Value) (Value, *VMError) {
		if y.Bits >= x.Width {
			return Uint(x.Width, 0), nil
		}
		return Uint(x.Width, fn(x, y.Bits)), nil
	}
}

func (vm *VM) divOp(fn func(x, y Value) uint64) func(x, y Value) (Value, *VMError) {
	return func(x, y Value) (Value, *VMError) {
		if y.Bits == 0 {
			return Value{}, vm.eb.errorf(PanicDivideByZero, "integer division by zero")
		}
		return Uint(x.Width, fn(x, y)), nil
	}
}

func floatOp(fn func(x, y float64) float64) func(x, y Value) (Value, *VMError) {
	return func(x, y Value) (Value, *VMError) {
		return Float(fn(x.Float, y.Float)), nil
	}
}

func (vm *VM) cast(frame *Frame, from value.Value, to types.Type, fn func(x Value, to uint64) Value) (Value, *VMError) {
	it, ok := to.(*types.IntType)
	if !ok || it.BitSize > 64 {
		return Value{}, vm.eb.unimplemented("cast to " + to.String())
	}
	return vm.unary(frame, from, func(x Value) (Value, *VMError) { return fn(x, it.BitSize), nil })
}

func fpToInt(f float64) int64 {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func fpToUint(f float64) uint64 {
	if math.IsNaN(f) || f >= math.MaxUint64 || f < 0 {
		return 0
	}
	return uint64(f)
}
