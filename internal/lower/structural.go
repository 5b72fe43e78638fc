package lower

import (
	"errors"

	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/typeconv"
)

func (fc *FuncContext) emitDFG(n hugr.NodeID, op *hugr.Op) error {
	if op.Sig == nil {
		return invariant(fc.h, n, "DFG without signature")
	}
	ins, err := fc.rows.Inputs(n, len(op.Sig.Input))
	if err != nil {
		return err
	}
	outs, err := fc.emitContainer(n, ins)
	if err != nil {
		return err
	}
	return fc.bindOutputs(n, op, outs)
}

// bindOutputs checks outs against the declared outputs of n and binds them.
func (fc *FuncContext) bindOutputs(n hugr.NodeID, op *hugr.Op, outs []value.Value) error {
	want, err := fc.Row(op.ValueOutputs())
	if err != nil {
		return typeError(fc.h, n, err)
	}
	if len(outs) != len(want) {
		return invariant(fc.h, n, "produced %d values, declared %d outputs", len(outs), len(want))
	}
	for i, v := range outs {
		if !v.Type().Equal(want[i]) {
			return invariant(fc.h, n, "output %d has type %s, want %s", i, v.Type(), want[i])
		}
	}
	return fc.rows.BindRow(n, outs)
}

func (fc *FuncContext) emitMakeTuple(n hugr.NodeID, op *hugr.Op) error {
	st, err := fc.Sum(hugr.Tuple(op.Types...))
	if err != nil {
		return typeError(fc.h, n, err)
	}
	ins, err := fc.rows.Inputs(n, len(op.Types))
	if err != nil {
		return err
	}
	v, err := st.BuildTag(fc.block, 0, ins)
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	return fc.rows.Bind(n, 0, v)
}

func (fc *FuncContext) emitUnpackTuple(n hugr.NodeID, op *hugr.Op) error {
	st, err := fc.Sum(hugr.Tuple(op.Types...))
	if err != nil {
		return typeError(fc.h, n, err)
	}
	ins, err := fc.rows.Inputs(n, 1)
	if err != nil {
		return err
	}
	fields, err := st.BuildUntag(fc.block, 0, ins[0])
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	return fc.rows.BindRow(n, fields)
}

func (fc *FuncContext) emitTag(n hugr.NodeID, op *hugr.Op) error {
	if op.Tag < 0 || op.Tag >= len(op.SumRows) {
		return invariant(fc.h, n, "tag %d out of range for %d variants", op.Tag, len(op.SumRows))
	}
	st, err := fc.Sum(hugr.Sum(op.SumRows...))
	if err != nil {
		return typeError(fc.h, n, err)
	}
	ins, err := fc.rows.Inputs(n, len(op.SumRows[op.Tag]))
	if err != nil {
		return err
	}
	v, err := st.BuildTag(fc.block, op.Tag, ins)
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	return fc.rows.Bind(n, 0, v)
}

// emitCopy shares the input value between every output. Linearity is a
// front-end discipline; SSA values may be used any number of times.
func (fc *FuncContext) emitCopy(n hugr.NodeID, op *hugr.Op) error {
	ins, err := fc.rows.Inputs(n, 1)
	if err != nil {
		return err
	}
	for i := 0; i < op.Count; i++ {
		if err := fc.rows.Bind(n, i, ins[0]); err != nil {
			return err
		}
	}
	return nil
}

func (fc *FuncContext) emitCustom(n hugr.NodeID, op *hugr.Op) error {
	if op.Custom == nil {
		return invariant(fc.h, n, "custom node without operation")
	}
	key := OpKey{Extension: op.Custom.Extension, Op: op.Custom.Name}
	handler, ok := fc.mc.reg.Lookup(key)
	if !ok {
		return nodeError(fc.h, KindUnknownOperation, n, "no lowering registered for %s", key)
	}
	sig, err := op.Custom.Signature.Substitute(fc.subst)
	if err != nil {
		return typeError(fc.h, n, &typeconv.UnsupportedTypeError{Type: op.Custom.Signature.String(), Reason: err.Error()})
	}
	args := make([]hugr.TypeArg, len(op.Custom.Args))
	for i, a := range op.Custom.Args {
		if args[i], err = a.Substitute(fc.subst); err != nil {
			return invariant(fc.h, n, "type argument %d: %v", i, err)
		}
	}
	ins, err := fc.rows.Inputs(n, len(sig.Input))
	if err != nil {
		return err
	}
	concrete := &hugr.CustomOp{Extension: op.Custom.Extension, Name: op.Custom.Name, Args: args, Signature: sig}
	outs, err := handler.LowerOp(fc, OpArgs{Node: n, Op: concrete, Inputs: ins, Outputs: sig.Output})
	if err != nil {
		return fc.handlerError(n, key, err)
	}
	if fc.block == nil || fc.block.Term != nil {
		return invariant(fc.h, n, "lowering of %s left no open block", key)
	}
	want, err := fc.Row(sig.Output)
	if err != nil {
		return typeError(fc.h, n, err)
	}
	if len(outs) != len(want) {
		return invariant(fc.h, n, "lowering of %s produced %d values, want %d", key, len(outs), len(want))
	}
	for i, v := range outs {
		if v == nil || !v.Type().Equal(want[i]) {
			return invariant(fc.h, n, "lowering of %s: output %d does not have type %s", key, i, want[i])
		}
	}
	return fc.rows.BindRow(n, outs)
}

func (fc *FuncContext) handlerError(n hugr.NodeID, key OpKey, err error) error {
	var le *Error
	if errors.As(err, &le) {
		if le.Node == hugr.NoNode {
			le.Node = n
			le.Op = key.String()
		}
		return le
	}
	var ute *typeconv.UnsupportedTypeError
	if errors.As(err, &ute) {
		return typeError(fc.h, n, err)
	}
	e := invariant(fc.h, n, "lowering %s", key)
	e.Err = err
	return e
}
