package lower

import (
	"fmt"

	"github.com/llir/llvm/ir"

	"hugrllvm/internal/hugr"
)

// emitTailLoop lowers a TailLoop:
//
//	pre -> header(phis: just_inputs ++ rest) -> body
//	body: tag 0 (continue) -> header, tag 1 (break) -> exit
//	exit(phis: just_outputs ++ rest)
func (fc *FuncContext) emitTailLoop(n hugr.NodeID, op *hugr.Op) error {
	carried := op.JustInputs.Concat(op.Other)
	ins, err := fc.rows.Inputs(n, len(carried))
	if err != nil {
		return err
	}
	carriedTypes, err := fc.Row(carried)
	if err != nil {
		return typeError(fc.h, n, err)
	}
	exitTypes, err := fc.Row(op.JustOutputs.Concat(op.Other))
	if err != nil {
		return typeError(fc.h, n, err)
	}
	st, err := fc.Sum(hugr.Sum(op.JustInputs, op.JustOutputs))
	if err != nil {
		return typeError(fc.h, n, err)
	}

	pre := fc.block
	header := fc.NewBlock(fmt.Sprintf("loop_%d_header", n))
	body := fc.NewBlock(fmt.Sprintf("loop_%d_body", n))
	exit := fc.detachedBlock(fmt.Sprintf("loop_%d_exit", n))
	headerPhis := fc.newPhis(header, carriedTypes)
	exitPhis := fc.newPhis(exit, exitTypes)

	if err := fc.addIncoming(n, headerPhis, ins, pre); err != nil {
		return err
	}
	pre.NewBr(header)
	header.NewBr(body)

	fc.block = body
	outs, err := fc.emitContainer(n, phiValues(headerPhis))
	if err != nil {
		return err
	}
	if len(outs) != 1+len(op.Other) {
		return invariant(fc.h, n, "loop body produces %d values, want %d", len(outs), 1+len(op.Other))
	}
	ctrl, rest := outs[0], outs[1:]
	end := fc.block
	tag, err := st.BuildGetTag(end, ctrl)
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	cont, err := st.BuildUntag(end, 0, ctrl)
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	brk, err := st.BuildUntag(end, 1, ctrl)
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	if err := fc.addIncoming(n, headerPhis, append(cont, rest...), end); err != nil {
		return err
	}
	if err := fc.addIncoming(n, exitPhis, append(brk, rest...), end); err != nil {
		return err
	}
	fc.branchOnTag(st, tag, []*ir.Block{header, exit})

	fc.attach(exit)
	fc.block = exit
	return fc.rows.BindRow(n, phiValues(exitPhis))
}
