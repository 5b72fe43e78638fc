package lower

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

// emitConditional lowers a Conditional to one block per case and a
// continuation block whose phis merge the case outputs:
//
//	      dispatch on tag
//	    /       |       \
//	case_0   case_1 ... case_n-1
//	    \       |       /
//	          exit
func (fc *FuncContext) emitConditional(n hugr.NodeID, op *hugr.Op) error {
	cases := fc.h.Children(n)
	if len(cases) != len(op.SumRows) {
		return invariant(fc.h, n, "%d cases for a sum of %d variants", len(cases), len(op.SumRows))
	}
	ins, err := fc.rows.Inputs(n, 1+len(op.Other))
	if err != nil {
		return err
	}
	st, err := fc.Sum(hugr.Sum(op.SumRows...))
	if err != nil {
		return typeError(fc.h, n, err)
	}
	outTypes, err := fc.Row(op.Outputs)
	if err != nil {
		return typeError(fc.h, n, err)
	}

	if len(cases) == 0 {
		// An empty sum has no values: the conditional cannot be reached.
		fc.block.NewUnreachable()
		fc.block = fc.NewBlock(fmt.Sprintf("cond_%d_exit", n))
		return fc.rows.BindRow(n, undefValues(outTypes))
	}

	tag, err := st.BuildGetTag(fc.block, ins[0])
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	blocks := make([]*ir.Block, len(cases))
	for i := range cases {
		blocks[i] = fc.NewBlock(fmt.Sprintf("cond_%d_case_%d", n, i))
	}
	exit := fc.detachedBlock(fmt.Sprintf("cond_%d_exit", n))
	phis := fc.newPhis(exit, outTypes)
	fc.branchOnTag(st, tag, blocks)

	for i, c := range cases {
		if k := fc.h.Op(c).Kind; k != hugr.OpCase {
			return invariant(fc.h, c, "child %d of a Conditional is %s, not a Case", i, k)
		}
		fc.block = blocks[i]
		fields, err := st.BuildUntag(fc.block, i, ins[0])
		if err != nil {
			return invariant(fc.h, n, "%v", err)
		}
		caseIns := append(append([]value.Value(nil), fields...), ins[1:]...)
		outs, err := fc.emitContainer(c, caseIns)
		if err != nil {
			return err
		}
		if err := fc.addIncoming(c, phis, outs, fc.block); err != nil {
			return err
		}
		fc.block.NewBr(exit)
	}

	fc.attach(exit)
	fc.block = exit
	return fc.rows.BindRow(n, phiValues(phis))
}
