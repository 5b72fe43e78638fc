package exec

import (
	"errors"
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
)

func (vm *VM) icmp(pred enum.IPred, x, y Value) (Value, *VMError) {
	if x.Kind == VKPtr {
		same := x.Ptr.Cell == y.Ptr.Cell && len(x.Ptr.Path) == len(y.Ptr.Path)
		for i := 0; same && i < len(x.Ptr.Path); i++ {
			same = x.Ptr.Path[i] == y.Ptr.Path[i]
		}
		switch pred {
		case enum.IPredEQ:
			return Bool(same), nil
		case enum.IPredNE:
			return Bool(!same), nil
		}
		return Value{}, vm.eb.unimplemented("ordered pointer comparison")
	}
	if x.Kind != VKInt {
		return Value{}, vm.eb.typeMismatch("integer", x.Kind.String())
	}
	switch pred {
	case enum.IPredEQ:
		return Bool(x.Bits == y.Bits), nil
	case enum.IPredNE:
		return Bool(x.Bits != y.Bits), nil
	case enum.IPredSGT:
		return Bool(x.Signed() > y.Signed()), nil
	case enum.IPredSGE:
		return Bool(x.Signed() >= y.Signed()), nil
	case enum.IPredSLT:
		return Bool(x.Signed() < y.Signed()), nil
	case enum.IPredSLE:
		return Bool(x.Signed() <= y.Signed()), nil
	case enum.IPredUGT:
		return Bool(x.Bits > y.Bits), nil
	case enum.IPredUGE:
		return Bool(x.Bits >= y.Bits), nil
	case enum.IPredULT:
		return Bool(x.Bits < y.Bits), nil
	case enum.IPredULE:
		return Bool(x.Bits <= y.Bits), nil
	}
	return Value{}, vm.eb.unimplemented(fmt.Sprintf("icmp %v", pred))
}

func (vm *VM) fcmp(pred enum.FPred, x, y Value) (Value, *VMError) {
	if x.Kind != VKFloat {
		return Value{}, vm.eb.typeMismatch("float", x.Kind.String())
	}
	a, b := x.Float, y.Float
	unordered := math.IsNaN(a) || math.IsNaN(b)
	var r bool
	switch pred {
	case enum.FPredFalse:
		r = false
	case enum.FPredTrue:
		r = true
	case enum.FPredOEQ:
		r = !unordered && a == b
	case enum.FPredOGT:
		r = !unordered && a > b
	case enum.FPredOGE:
		r = !unordered && a >= b
	case enum.FPredOLT:
		r = !unordered && a < b
	case enum.FPredOLE:
		r = !unordered && a <= b
	case enum.FPredONE:
		r = !unordered && a != b
	case enum.FPredORD:
		r = !unordered
	case enum.FPredUEQ:
		r = unordered || a == b
	case enum.FPredUGT:
		r = unordered || a > b
	case enum.FPredUGE:
		r = unordered || a >= b
	case enum.FPredULT:
		r = unordered || a < b
	case enum.FPredULE:
		r = unordered || a <= b
	case enum.FPredUNE:
		r = unordered || a != b
	case enum.FPredUNO:
		r = unordered
	default:
		return Value{}, vm.eb.unimplemented(fmt.Sprintf("fcmp %v", pred))
	}
	return Bool(r), nil
}

// execCall pushes a frame for a defined callee, or runs an external one in
// place.
func (vm *VM) execCall(frame *Frame, inst *ir.InstCall) *VMError {
	callee, err := vm.evalValue(frame, inst.Callee)
	if err != nil {
		return err
	}
	if callee.Kind != VKFunc || callee.Func == nil {
		return vm.eb.typeMismatch("function", callee.String())
	}
	args := make([]Value, len(inst.Args))
	for i, a := range inst.Args {
		if args[i], err = vm.evalValue(frame, a); err != nil {
			return err
		}
	}
	fn := callee.Func
	if len(fn.Blocks) > 0 {
		next := NewFrame(fn, args)
		next.Call = inst
		vm.Stack = append(vm.Stack, next)
		return nil
	}
	ext, ok := vm.externs[fn.Name()]
	if !ok {
		return vm.eb.errorf(PanicUnknownExtern, "no implementation for external function @%s", fn.Name())
	}
	res, xerr := ext(vm, args)
	if xerr != nil {
		var ve *VMError
		if errors.As(xerr, &ve) {
			return ve
		}
		e := vm.eb.errorf(PanicExtern, "@%s: %v", fn.Name(), xerr)
		e.Err = xerr
		return e
	}
	if !checkType(res, fn.Sig.RetType) {
		return vm.eb.typeMismatch(fn.Sig.RetType.String(), res.String())
	}
	frame.Locals[inst] = res
	frame.IP++
	return nil
}

func (vm *VM) execTerminator(frame *Frame) *VMError {
	switch term := frame.Block.Term.(type) {
	case *ir.TermRet:
		if term.X == nil {
			vm.pop(Void())
			return nil
		}
		v, err := vm.evalValue(frame, term.X)
		if err != nil {
			return err
		}
		vm.pop(v)
		return nil
	case *ir.TermBr:
		return vm.jump(frame, term.Target)
	case *ir.TermCondBr:
		c, err := vm.evalValue(frame, term.Cond)
		if err != nil {
			return err
		}
		if c.Truth() {
			return vm.jump(frame, term.TargetTrue)
		}
		return vm.jump(frame, term.TargetFalse)
	case *ir.TermSwitch:
		x, err := vm.evalValue(frame, term.X)
		if err != nil {
			return err
		}
		for _, c := range term.Cases {
			cv, err := vm.evalValue(frame, c.X)
			if err != nil {
				return err
			}
			if cv.Bits == x.Bits {
				return vm.jump(frame, c.Target)
			}
		}
		return vm.jump(frame, term.TargetDefault)
	case *ir.TermUnreachable:
		return vm.eb.errorf(PanicUnreachable, "reached unreachable in @%s", frame.Func.Name())
	case nil:
		return vm.eb.errorf(PanicUnreachable, "block %%%s has no terminator", frame.Block.Name())
	}
	return vm.eb.unimplemented(fmt.Sprintf("terminator %T", frame.Block.Term))
}

// jump enters target, resolving its phis against the current block. All
// phis read their inputs before any is written.
func (vm *VM) jump(frame *Frame, target any) *VMError {
	b, ok := asBlock(target)
	if !ok {
		return vm.eb.typeMismatch("block", "non-block branch target")
	}
	var vals []Value
	n := 0
	for _, inst := range b.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			break
		}
		found := false
		for _, inc := range phi.Incs {
			if pred, ok := asBlock(inc.Pred); ok && pred == frame.Block {
				v, err := vm.evalValue(frame, inc.X)
				if err != nil {
					return err
				}
				vals = append(vals, v)
				found = true
				break
			}
		}
		if !found {
			return vm.eb.errorf(PanicTypeMismatch, "phi %s in %%%s has no value for %%%s", phi.Ident(), b.Name(), frame.Block.Name())
		}
		n++
	}
	for i := 0; i < n; i++ {
		frame.Locals[b.Insts[i].(*ir.InstPhi)] = vals[i]
	}
	frame.Prev = frame.Block
	frame.Block = b
	frame.IP = n
	return nil
}
