package lower

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

type cfgBlock struct {
	node hugr.NodeID
	blk  *ir.Block
	phis []*ir.InstPhi
}

// emitCFG lowers a CFG region. Each reachable DataflowBlock becomes a
// block whose phis receive the block's inputs. A block with one successor
// branches directly; with several, the branch goes through one edge block
// per successor so every phi predecessor is distinct. The exit block's
// phis become the CFG outputs.
func (fc *FuncContext) emitCFG(n hugr.NodeID, op *hugr.Op) error {
	if op.Sig == nil {
		return invariant(fc.h, n, "CFG without signature")
	}
	entry, exitNode, err := fc.h.EntryExit(n)
	if err != nil {
		return invariant(fc.h, n, "%v", err)
	}
	ins, err := fc.rows.Inputs(n, len(op.Sig.Input))
	if err != nil {
		return err
	}

	order, preds, err := fc.cfgReachable(n, entry, exitNode)
	if err != nil {
		return err
	}
	blocks := make(map[hugr.NodeID]*cfgBlock, len(order)+1)
	for _, b := range order {
		inTypes, err := fc.Row(fc.h.Op(b).Inputs)
		if err != nil {
			return typeError(fc.h, b, err)
		}
		blk := fc.NewBlock(fmt.Sprintf("cfg_%d_bb_%d", n, b))
		blocks[b] = &cfgBlock{node: b, blk: blk, phis: fc.newPhis(blk, inTypes)}
	}
	outTypes, err := fc.Row(op.Sig.Output)
	if err != nil {
		return typeError(fc.h, n, err)
	}
	exitBlk := fc.detachedBlock(fmt.Sprintf("cfg_%d_exit", n))
	exit := &cfgBlock{node: exitNode, blk: exitBlk}
	if preds[exitNode] > 0 {
		exit.phis = fc.newPhis(exitBlk, outTypes)
	}
	blocks[exitNode] = exit

	if err := fc.addIncoming(n, blocks[entry].phis, ins, fc.block); err != nil {
		return err
	}
	fc.block.NewBr(blocks[entry].blk)

	for _, b := range order {
		if err := fc.emitCFGBlock(n, blocks[b], blocks); err != nil {
			return err
		}
	}

	fc.attach(exitBlk)
	fc.block = exitBlk
	if exit.phis == nil {
		// The exit is unreachable: the region never returns.
		exitBlk.NewUnreachable()
		fc.block = fc.NewBlock(fmt.Sprintf("cfg_%d_after", n))
		return fc.rows.BindRow(n, undefValues(outTypes))
	}
	return fc.rows.BindRow(n, phiValues(exit.phis))
}

// cfgReachable lists the DataflowBlocks reachable from entry in
// breadth-first order, so a block is emitted after every block that
// dominates it, and counts control predecessors of each node.
func (fc *FuncContext) cfgReachable(cfg, entry, exit hugr.NodeID) ([]hugr.NodeID, map[hugr.NodeID]int, error) {
	preds := map[hugr.NodeID]int{entry: 1}
	seen := map[hugr.NodeID]bool{entry: true}
	queue := []hugr.NodeID{entry}
	var order []hugr.NodeID
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if op := fc.h.Op(b); op.Kind != hugr.OpDataflowBlock {
			return nil, nil, invariant(fc.h, b, "%s in a CFG is not a DataflowBlock", op.Kind)
		}
		if fc.h.Parent(b) != cfg {
			return nil, nil, invariant(fc.h, b, "control edge leaves CFG %d", cfg)
		}
		order = append(order, b)
		succ := fc.h.Successors(b)
		if len(succ) != len(fc.h.Op(b).SumRows) {
			return nil, nil, invariant(fc.h, b, "%d successors for %d branch rows", len(succ), len(fc.h.Op(b).SumRows))
		}
		for i, s := range succ {
			if s == hugr.NoNode {
				return nil, nil, invariant(fc.h, b, "branch %d has no successor", i)
			}
			preds[s]++
			if s == exit || seen[s] {
				continue
			}
			seen[s] = true
			queue = append(queue, s)
		}
	}
	return order, preds, nil
}

func (fc *FuncContext) emitCFGBlock(cfg hugr.NodeID, cb *cfgBlock, blocks map[hugr.NodeID]*cfgBlock) error {
	op := fc.h.Op(cb.node)
	fc.block = cb.blk
	outs, err := fc.emitContainer(cb.node, phiValues(cb.phis))
	if err != nil {
		return err
	}
	if len(outs) != 1+len(op.Other) {
		return invariant(fc.h, cb.node, "block produces %d values, want %d", len(outs), 1+len(op.Other))
	}
	ctrl, other := outs[0], outs[1:]
	st, err := fc.Sum(hugr.Sum(op.SumRows...))
	if err != nil {
		return typeError(fc.h, cb.node, err)
	}
	succ := fc.h.Successors(cb.node)
	end := fc.block

	// target i receives the fields of variant i followed by the other outputs.
	jump := func(from *ir.Block, i int) error {
		fields, err := st.BuildUntag(from, i, ctrl)
		if err != nil {
			return invariant(fc.h, cb.node, "%v", err)
		}
		target := blocks[succ[i]]
		args := append(append([]value.Value(nil), fields...), other...)
		if err := fc.addIncoming(cb.node, target.phis, args, from); err != nil {
			return err
		}
		from.NewBr(target.blk)
		return nil
	}

	switch len(succ) {
	case 0:
		end.NewUnreachable()
		return nil
	case 1:
		return jump(end, 0)
	}
	tag, err := st.BuildGetTag(end, ctrl)
	if err != nil {
		return invariant(fc.h, cb.node, "%v", err)
	}
	edges := make([]*ir.Block, len(succ))
	for i := range succ {
		edges[i] = fc.NewBlock(fmt.Sprintf("cfg_%d_bb_%d_br_%d", cfg, cb.node, i))
	}
	fc.branchOnTag(st, tag, edges)
	for i, e := range edges {
		if err := jump(e, i); err != nil {
			return err
		}
	}
	return nil
}
