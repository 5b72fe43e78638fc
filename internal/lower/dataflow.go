package lower

import (
	"container/heap"
	"fmt"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/trace"
)

// readyQueue is a min-heap of child positions: among nodes whose
// dependencies are met, the one declared first is emitted first.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(int)) }
func (q *readyQueue) Pop() any {
	old := *q
	x := old[len(old)-1]
	*q = old[:len(old)-1]
	return x
}

// scheduled reports whether a region child is emitted by the walk. Input
// is bound by the container, Output is read by it, and static nodes are
// emitted where they are used.
func scheduled(k hugr.OpKind) bool {
	switch k {
	case hugr.OpInput, hugr.OpOutput, hugr.OpConst, hugr.OpFuncDefn, hugr.OpFuncDecl:
		return false
	}
	return true
}

// schedule orders the children of a dataflow region topologically.
// Dependencies are value, static and order edges into a child or any of
// its descendants, lifted to the child of the region that contains the
// producer.
func (fc *FuncContext) schedule(region hugr.NodeID) ([]hugr.NodeID, error) {
	children := fc.h.Children(region)
	pos := make(map[hugr.NodeID]int, len(children))
	for i, c := range children {
		if scheduled(fc.h.Op(c).Kind) {
			pos[c] = i
		}
	}
	indeg := make([]int, len(children))
	succs := make([][]int, len(children))
	for i, c := range children {
		if _, ok := pos[c]; !ok {
			continue
		}
		seen := make(map[int]bool)
		fc.forEachSource(c, func(src hugr.NodeID) {
			j, ok := pos[fc.liftTo(region, src)]
			if !ok || j == i || seen[j] {
				return
			}
			seen[j] = true
			succs[j] = append(succs[j], i)
			indeg[i]++
		})
	}

	q := make(readyQueue, 0, len(pos))
	for _, i := range pos {
		if indeg[i] == 0 {
			q = append(q, i)
		}
	}
	heap.Init(&q)
	order := make([]hugr.NodeID, 0, len(pos))
	for q.Len() > 0 {
		i := heap.Pop(&q).(int)
		order = append(order, children[i])
		for _, j := range succs[i] {
			indeg[j]--
			if indeg[j] == 0 {
				heap.Push(&q, j)
			}
		}
	}
	if len(order) != len(pos) {
		return nil, invariant(fc.h, region, "dataflow region has a dependency cycle")
	}
	return order, nil
}

// forEachSource calls fn with the producer of every linked input of n and
// its descendants, and with their order predecessors.
func (fc *FuncContext) forEachSource(n hugr.NodeID, fn func(hugr.NodeID)) {
	op := fc.h.Op(n)
	ports := len(op.ValueInputs())
	if p, ok := op.StaticInput(); ok && p+1 > ports {
		ports = p + 1
	}
	for p := 0; p < ports; p++ {
		if src, ok := fc.h.LinkedOutput(n, p); ok {
			fn(src.Node)
		}
	}
	for _, pred := range fc.h.OrderPredecessors(n) {
		fn(pred)
	}
	for _, c := range fc.h.Children(n) {
		fc.forEachSource(c, fn)
	}
}

// liftTo returns the ancestor of n (or n itself) whose parent is region,
// or NoNode when n lies outside region.
func (fc *FuncContext) liftTo(region, n hugr.NodeID) hugr.NodeID {
	for n != hugr.NoNode {
		p := fc.h.Parent(n)
		if p == region {
			return n
		}
		n = p
	}
	return hugr.NoNode
}

// emitRegion emits every scheduled child of region in topological order.
func (fc *FuncContext) emitRegion(region hugr.NodeID) error {
	order, err := fc.schedule(region)
	if err != nil {
		return err
	}
	for _, n := range order {
		if err := fc.emitNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (fc *FuncContext) emitNode(n hugr.NodeID) error {
	op := fc.h.Op(n)
	trace.Point(fc.mc.tr, trace.ScopeNode, fmt.Sprintf("node:%d", n), op.Describe(), fc.span.ID())
	switch op.Kind {
	case hugr.OpLoadConstant:
		return fc.emitLoadConstant(n, op)
	case hugr.OpLoadFunction:
		return fc.emitLoadFunction(n, op)
	case hugr.OpCall:
		return fc.emitCall(n, op)
	case hugr.OpCallIndirect:
		return fc.emitCallIndirect(n, op)
	case hugr.OpDFG:
		return fc.emitDFG(n, op)
	case hugr.OpConditional:
		return fc.emitConditional(n, op)
	case hugr.OpTailLoop:
		return fc.emitTailLoop(n, op)
	case hugr.OpCFG:
		return fc.emitCFG(n, op)
	case hugr.OpMakeTuple:
		return fc.emitMakeTuple(n, op)
	case hugr.OpUnpackTuple:
		return fc.emitUnpackTuple(n, op)
	case hugr.OpTag:
		return fc.emitTag(n, op)
	case hugr.OpCopy:
		return fc.emitCopy(n, op)
	case hugr.OpDiscard:
		_, err := fc.rows.Inputs(n, 1)
		return err
	case hugr.OpNoop:
		ins, err := fc.rows.Inputs(n, 1)
		if err != nil {
			return err
		}
		return fc.rows.Bind(n, 0, ins[0])
	case hugr.OpCustom:
		return fc.emitCustom(n, op)
	}
	return invariant(fc.h, n, "%s cannot appear in a dataflow region", op.Kind)
}
