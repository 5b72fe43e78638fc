package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

// resolveArgs applies the caller's instantiation to the type args of a
// Call or LoadFunction.
func (fc *FuncContext) resolveArgs(n hugr.NodeID, args []hugr.TypeArg) ([]hugr.TypeArg, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]hugr.TypeArg, len(args))
	for i, a := range args {
		r, err := a.Substitute(fc.subst)
		if err != nil {
			return nil, invariant(fc.h, n, "type argument %d: %v", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// staticFunc resolves the function behind the static input of n.
func (fc *FuncContext) staticFunc(n hugr.NodeID, op *hugr.Op) (*ir.Func, error) {
	src, ok := fc.h.StaticSource(n)
	if !ok {
		return nil, invariant(fc.h, n, "static input is not connected")
	}
	args, err := fc.resolveArgs(n, op.TypeArgs)
	if err != nil {
		return nil, err
	}
	return fc.mc.DeclareFunction(fc.h, src, args)
}

func (fc *FuncContext) emitCall(n hugr.NodeID, op *hugr.Op) error {
	fn, err := fc.staticFunc(n, op)
	if err != nil {
		return err
	}
	ins, err := fc.rows.Inputs(n, len(op.ValueInputs()))
	if err != nil {
		return err
	}
	return fc.call(n, op, fn, fn.Sig, ins)
}

func (fc *FuncContext) emitLoadFunction(n hugr.NodeID, op *hugr.Op) error {
	fn, err := fc.staticFunc(n, op)
	if err != nil {
		return err
	}
	return fc.bindOutputs(n, op, []value.Value{fn})
}

func (fc *FuncContext) emitCallIndirect(n hugr.NodeID, op *hugr.Op) error {
	if op.Sig == nil {
		return invariant(fc.h, n, "CallIndirect without signature")
	}
	ins, err := fc.rows.Inputs(n, 1+len(op.Sig.Input))
	if err != nil {
		return err
	}
	pt, ok := ins[0].Type().(*types.PointerType)
	if !ok {
		return invariant(fc.h, n, "callee has type %s, want a function pointer", ins[0].Type())
	}
	sig, ok := pt.ElemType.(*types.FuncType)
	if !ok {
		return invariant(fc.h, n, "callee has type %s, want a function pointer", ins[0].Type())
	}
	return fc.call(n, op, ins[0], sig, ins[1:])
}

// call emits the call and binds its results, unpacking a struct return
// when the callee has several outputs.
func (fc *FuncContext) call(n hugr.NodeID, op *hugr.Op, callee value.Value, sig *types.FuncType, args []value.Value) error {
	if len(args) != len(sig.Params) {
		return invariant(fc.h, n, "call passes %d arguments to a function of %d parameters", len(args), len(sig.Params))
	}
	for i, a := range args {
		if !a.Type().Equal(sig.Params[i]) {
			return invariant(fc.h, n, "argument %d has type %s, want %s", i, a.Type(), sig.Params[i])
		}
	}
	inst := fc.block.NewCall(callee, args...)
	nout := len(op.ValueOutputs())
	switch nout {
	case 0:
		return nil
	case 1:
		return fc.bindOutputs(n, op, []value.Value{inst})
	}
	outs := make([]value.Value, nout)
	for i := range outs {
		outs[i] = fc.block.NewExtractValue(inst, uint64(i))
	}
	return fc.bindOutputs(n, op, outs)
}
