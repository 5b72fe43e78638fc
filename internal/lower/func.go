package lower

import (
	"context"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/trace"
	"hugrllvm/internal/typeconv"
)

// FuncContext is the state of one function body emission. Extension
// handlers receive it to emit instructions and reach module-level
// services.
type FuncContext struct {
	mc    *ModuleContext
	h     *hugr.Hugr
	fn    *ir.Func
	subst hugr.Subst
	rows  *RowMap
	block *ir.Block
	names map[string]int
	span  *trace.Span
}

func newFuncContext(mc *ModuleContext, h *hugr.Hugr, fn *ir.Func, subst hugr.Subst, span *trace.Span) *FuncContext {
	return &FuncContext{
		mc:    mc,
		h:     h,
		fn:    fn,
		subst: subst,
		rows:  NewRowMap(h),
		names: make(map[string]int),
		span:  span,
	}
}

// Context returns the run's context.
func (fc *FuncContext) Context() context.Context { return fc.mc.ctx }

// Module returns the module-level emission state.
func (fc *FuncContext) Module() *ModuleContext { return fc.mc }

// Hugr returns the graph the function belongs to.
func (fc *FuncContext) Hugr() *hugr.Hugr { return fc.h }

// Func returns the function being emitted.
func (fc *FuncContext) Func() *ir.Func { return fc.fn }

// Subst returns the type arguments of the instantiation being emitted.
func (fc *FuncContext) Subst() hugr.Subst { return fc.subst }

// Block returns the block receiving instructions.
func (fc *FuncContext) Block() *ir.Block { return fc.block }

// SetBlock redirects emission to b.
func (fc *FuncContext) SetBlock(b *ir.Block) { fc.block = b }

// NewBlock appends a block named after prefix, unique within the function.
func (fc *FuncContext) NewBlock(prefix string) *ir.Block {
	return fc.fn.NewBlock(fc.blockName(prefix))
}

// detachedBlock creates a block that attach later appends to the function,
// so that blocks of nested constructs are laid out before it.
func (fc *FuncContext) detachedBlock(prefix string) *ir.Block {
	return ir.NewBlock(fc.blockName(prefix))
}

func (fc *FuncContext) attach(b *ir.Block) {
	b.Parent = fc.fn
	fc.fn.Blocks = append(fc.fn.Blocks, b)
}

func (fc *FuncContext) blockName(prefix string) string {
	n, ok := fc.names[prefix]
	fc.names[prefix] = n + 1
	if !ok {
		return prefix
	}
	return fmt.Sprintf("%s.%d", prefix, n)
}

// Types returns the run's type conversion session.
func (fc *FuncContext) Types() *typeconv.Session { return fc.mc.types }

// LLVMType converts t under the current instantiation.
func (fc *FuncContext) LLVMType(t hugr.Type) (types.Type, error) {
	return fc.mc.types.Convert(t, fc.subst)
}

// Row converts a row under the current instantiation.
func (fc *FuncContext) Row(r hugr.TypeRow) ([]types.Type, error) {
	return fc.mc.types.Row(r, fc.subst)
}

// Sum returns the layout of sum type t under the current instantiation.
func (fc *FuncContext) Sum(t hugr.Type) (*typeconv.SumType, error) {
	return fc.mc.types.Sum(t, fc.subst)
}

// ExternFunc forwards to ModuleContext.ExternFunc.
func (fc *FuncContext) ExternFunc(name string, sig *types.FuncType) (*ir.Func, error) {
	return fc.mc.ExternFunc(name, sig)
}

// Global forwards to ModuleContext.Global.
func (fc *FuncContext) Global(name string, typ types.Type, init constant.Constant, immutable bool) (*ir.Global, error) {
	return fc.mc.Global(name, typ, init, immutable)
}

// emitFunction emits the body of the dataflow container n as fc.fn.
func (fc *FuncContext) emitFunction(n hugr.NodeID) error {
	fc.block = fc.NewBlock("entry")
	params := make([]value.Value, len(fc.fn.Params))
	for i, p := range fc.fn.Params {
		params[i] = p
	}
	outs, err := fc.emitContainer(n, params)
	if err != nil {
		return err
	}
	return fc.emitReturn(n, outs)
}

func (fc *FuncContext) emitReturn(n hugr.NodeID, outs []value.Value) error {
	ret := fc.fn.Sig.RetType
	switch len(outs) {
	case 0:
		if !ret.Equal(types.Void) {
			return invariant(fc.h, n, "function returns %s but the body produces nothing", ret)
		}
		fc.block.NewRet(nil)
		return nil
	case 1:
		if !outs[0].Type().Equal(ret) {
			return invariant(fc.h, n, "function returns %s but the body produces %s", ret, outs[0].Type())
		}
		fc.block.NewRet(outs[0])
		return nil
	}
	st, ok := ret.(*types.StructType)
	if !ok || len(st.Fields) != len(outs) {
		return invariant(fc.h, n, "function returns %s but the body produces %d values", ret, len(outs))
	}
	var agg value.Value = constant.NewUndef(st)
	for i, v := range outs {
		if !v.Type().Equal(st.Fields[i]) {
			return invariant(fc.h, n, "return value %d has type %s, want %s", i, v.Type(), st.Fields[i])
		}
		agg = fc.block.NewInsertValue(agg, v, uint64(i))
	}
	fc.block.NewRet(agg)
	return nil
}

// emitContainer binds ins to the Input child of dataflow container n,
// emits its region at fc.block and returns the values reaching its Output
// child. fc.block is left at the region's last block.
func (fc *FuncContext) emitContainer(n hugr.NodeID, ins []value.Value) ([]value.Value, error) {
	in, out, err := fc.h.IO(n)
	if err != nil {
		return nil, invariant(fc.h, n, "%v", err)
	}
	inTypes := fc.h.Op(in).Types
	if len(ins) != len(inTypes) {
		return nil, invariant(fc.h, n, "region takes %d inputs, got %d", len(inTypes), len(ins))
	}
	lts, err := fc.Row(inTypes)
	if err != nil {
		return nil, typeError(fc.h, in, err)
	}
	for i, v := range ins {
		if !v.Type().Equal(lts[i]) {
			return nil, invariant(fc.h, in, "input %d has type %s, want %s", i, v.Type(), lts[i])
		}
	}
	if err := fc.rows.BindRow(in, ins); err != nil {
		return nil, err
	}
	if err := fc.emitRegion(n); err != nil {
		return nil, err
	}
	return fc.rows.Inputs(out, len(fc.h.Op(out).Types))
}

// newPhi starts a merge parameter of type t in b. Incoming edges are added
// as predecessors are emitted.
func newPhi(b *ir.Block, t types.Type) *ir.InstPhi {
	phi := &ir.InstPhi{Typ: t}
	b.Insts = append(b.Insts, phi)
	return phi
}

func (fc *FuncContext) newPhis(b *ir.Block, ts []types.Type) []*ir.InstPhi {
	phis := make([]*ir.InstPhi, len(ts))
	for i, t := range ts {
		phis[i] = newPhi(b, t)
	}
	return phis
}

// addIncoming records vals flowing from pred into phis.
func (fc *FuncContext) addIncoming(n hugr.NodeID, phis []*ir.InstPhi, vals []value.Value, pred *ir.Block) error {
	if len(phis) != len(vals) {
		return invariant(fc.h, n, "%d values flow into a block with %d parameters", len(vals), len(phis))
	}
	for i, v := range vals {
		if !v.Type().Equal(phis[i].Typ) {
			return invariant(fc.h, n, "block parameter %d has type %s, got %s", i, phis[i].Typ, v.Type())
		}
		phis[i].Incs = append(phis[i].Incs, ir.NewIncoming(v, pred))
	}
	return nil
}

func phiValues(phis []*ir.InstPhi) []value.Value {
	out := make([]value.Value, len(phis))
	for i, p := range phis {
		out[i] = p
	}
	return out
}

func undefValues(ts []types.Type) []value.Value {
	out := make([]value.Value, len(ts))
	for i, t := range ts {
		out[i] = constant.NewUndef(t)
	}
	return out
}

// branchOnTag terminates fc.block, jumping to targets[i] when tag is i.
func (fc *FuncContext) branchOnTag(st *typeconv.SumType, tag value.Value, targets []*ir.Block) {
	switch {
	case len(targets) == 0:
		fc.block.NewUnreachable()
	case len(targets) == 1:
		fc.block.NewBr(targets[0])
	case len(targets) == 2 && st.TagType().Equal(types.I1):
		fc.block.NewCondBr(tag, targets[1], targets[0])
	default:
		cases := make([]*ir.Case, 0, len(targets)-1)
		for i := 1; i < len(targets); i++ {
			cases = append(cases, ir.NewCase(st.TagConst(i), targets[i]))
		}
		fc.block.NewSwitch(tag, targets[0], cases...)
	}
}
