package hugr

import "fmt"

// Wire names a value output port while building.
type Wire struct {
	Node NodeID
	Port int
}

// Out converts the wire to an OutPort.
func (w Wire) Out() OutPort { return OutPort(w) }

// buildState is shared by every builder of one graph. The first error sticks
// and is reported by ModuleBuilder.Finish.
type buildState struct {
	h   *Hugr
	err error
}

func (st *buildState) fail(format string, args ...any) {
	if st.err == nil {
		st.err = fmt.Errorf(format, args...)
	}
}

func (st *buildState) add(parent NodeID, op Op) NodeID {
	if st.err != nil {
		return NoNode
	}
	n, err := st.h.AddNode(parent, op)
	if err != nil {
		st.err = err
		return NoNode
	}
	return n
}

func (st *buildState) connect(src NodeID, srcPort int, dst NodeID, dstPort int) {
	if st.err != nil {
		return
	}
	if err := st.h.Connect(src, srcPort, dst, dstPort); err != nil {
		st.err = err
	}
}

func (st *buildState) link(e Edge) {
	if st.err != nil {
		return
	}
	if err := st.h.Link(e); err != nil {
		st.err = err
	}
}

func (st *buildState) wireType(w Wire) Type {
	t, ok := st.h.OutputType(w.Out())
	if !ok {
		st.fail("wire %s has no value type", w.Out())
	}
	return t
}

// ModuleBuilder assembles a Module-rooted graph.
type ModuleBuilder struct {
	st *buildState
}

// NewModuleBuilder starts an empty module.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{st: &buildState{h: New(ModuleOp())}}
}

// DeclareFunction adds a FuncDecl at module level.
func (mb *ModuleBuilder) DeclareFunction(name string, sig PolyFuncType) NodeID {
	return mb.st.add(mb.st.h.Root(), FuncDeclOp(name, sig))
}

// DefineFunction adds a FuncDefn at module level and returns a builder for
// its body.
func (mb *ModuleBuilder) DefineFunction(name string, sig PolyFuncType) *DataflowBuilder {
	n := mb.st.add(mb.st.h.Root(), FuncDefnOp(name, sig))
	return newDataflowBuilder(mb.st, n)
}

// AddConst adds a module-level constant.
func (mb *ModuleBuilder) AddConst(v Value) NodeID {
	return mb.st.add(mb.st.h.Root(), ConstOp(v))
}

// Finish validates the graph and returns it.
func (mb *ModuleBuilder) Finish() (*Hugr, error) {
	if mb.st.err != nil {
		return nil, mb.st.err
	}
	if err := Validate(mb.st.h); err != nil {
		return nil, err
	}
	return mb.st.h, nil
}

// NewDFGBuilder starts a graph rooted at a DFG, as used by function-valued
// constants.
func NewDFGBuilder(sig FuncType) *DataflowBuilder {
	st := &buildState{h: New(DFGOp(sig))}
	return newDataflowBuilder(st, st.h.Root())
}

// FinishGraph returns the whole graph the builder belongs to, once the
// root region is complete.
func (b *DataflowBuilder) FinishGraph(outs ...Wire) (*Hugr, error) {
	b.Finish(outs...)
	if b.st.err != nil {
		return nil, b.st.err
	}
	if err := Validate(b.st.h); err != nil {
		return nil, err
	}
	return b.st.h, nil
}

// DataflowBuilder adds nodes to one dataflow region.
type DataflowBuilder struct {
	st        *buildState
	container NodeID
	input     NodeID
	output    NodeID
	finished  bool
}

func newDataflowBuilder(st *buildState, container NodeID) *DataflowBuilder {
	b := &DataflowBuilder{st: st, container: container, input: NoNode, output: NoNode}
	if st.err != nil {
		return b
	}
	sig, err := st.h.Op(container).InnerSignature()
	if err != nil {
		st.err = err
		return b
	}
	b.input = st.add(container, InputOp(sig.Input))
	b.output = st.add(container, OutputOp(sig.Output))
	return b
}

func newCaseBuilder(st *buildState, cond NodeID, sig FuncType) *DataflowBuilder {
	n := st.add(cond, CaseOp(sig))
	return newDataflowBuilder(st, n)
}

// Node returns the container node of the region.
func (b *DataflowBuilder) Node() NodeID { return b.container }

// Hugr exposes the graph under construction.
func (b *DataflowBuilder) Hugr() *Hugr { return b.st.h }

// Err reports the sticky build error.
func (b *DataflowBuilder) Err() error { return b.st.err }

// Input returns the i-th region input.
func (b *DataflowBuilder) Input(i int) Wire { return Wire{Node: b.input, Port: i} }

// Inputs returns every region input.
func (b *DataflowBuilder) Inputs() []Wire {
	if b.st.err != nil {
		return nil
	}
	return outputWires(b.input, len(b.st.h.Op(b.input).ValueOutputs()))
}

func outputWires(n NodeID, count int) []Wire {
	ws := make([]Wire, count)
	for i := range ws {
		ws[i] = Wire{Node: n, Port: i}
	}
	return ws
}

// AddNode adds op to the region, feeding ins to its value inputs in order.
func (b *DataflowBuilder) AddNode(op Op, ins ...Wire) NodeID {
	n := b.st.add(b.container, op)
	if n == NoNode {
		return n
	}
	if want := len(op.ValueInputs()); want != len(ins) {
		b.st.fail("%s expects %d inputs, got %d", op.Describe(), want, len(ins))
		return n
	}
	for i, w := range ins {
		b.st.connect(w.Node, w.Port, n, i)
	}
	return n
}

// Add adds op and returns its value outputs.
func (b *DataflowBuilder) Add(op Op, ins ...Wire) []Wire {
	n := b.AddNode(op, ins...)
	if n == NoNode {
		return nil
	}
	return outputWires(n, len(op.ValueOutputs()))
}

// Custom adds an extension operation.
func (b *DataflowBuilder) Custom(ext, name string, sig FuncType, args []TypeArg, ins ...Wire) []Wire {
	return b.Add(CustomOpOf(ext, name, sig, args...), ins...)
}

// LoadConst adds a Const node to the region and loads it.
func (b *DataflowBuilder) LoadConst(v Value) Wire {
	t, err := v.Type()
	if err != nil {
		b.st.fail("load const: %v", err)
		return Wire{Node: NoNode}
	}
	c := b.st.add(b.container, ConstOp(v))
	return b.LoadConstNode(c, t)
}

// LoadConstNode loads an existing Const node.
func (b *DataflowBuilder) LoadConstNode(c NodeID, t Type) Wire {
	n := b.st.add(b.container, LoadConstantOp(t))
	b.st.connect(c, 0, n, 0)
	return Wire{Node: n, Port: 0}
}

// Call adds a call to a FuncDefn or FuncDecl node.
func (b *DataflowBuilder) Call(fn NodeID, args []TypeArg, ins ...Wire) []Wire {
	sig := b.polySig(fn)
	if sig == nil {
		return nil
	}
	op := CallOp(*sig, args)
	if _, err := op.Instantiation(); err != nil {
		b.st.fail("call %d: %v", fn, err)
		return nil
	}
	n := b.AddNode(op, ins...)
	if n == NoNode {
		return nil
	}
	port, _ := op.StaticInput()
	b.st.connect(fn, 0, n, port)
	return outputWires(n, len(op.ValueOutputs()))
}

// LoadFunc loads a function pointer for fn instantiated with args.
func (b *DataflowBuilder) LoadFunc(fn NodeID, args []TypeArg) Wire {
	sig := b.polySig(fn)
	if sig == nil {
		return Wire{Node: NoNode}
	}
	op := LoadFunctionOp(*sig, args)
	if _, err := op.Instantiation(); err != nil {
		b.st.fail("load function %d: %v", fn, err)
		return Wire{Node: NoNode}
	}
	n := b.st.add(b.container, op)
	b.st.connect(fn, 0, n, 0)
	return Wire{Node: n, Port: 0}
}

// CallIndirect calls a function-pointer value.
func (b *DataflowBuilder) CallIndirect(fn Wire, ins ...Wire) []Wire {
	t := b.st.wireType(fn)
	if t.Kind != TypeFunction || t.Func == nil {
		b.st.fail("call indirect: %s is not a function", t)
		return nil
	}
	return b.Add(CallIndirectOp(*t.Func), append([]Wire{fn}, ins...)...)
}

func (b *DataflowBuilder) polySig(fn NodeID) *PolyFuncType {
	op := b.st.h.Op(fn)
	if op == nil || (op.Kind != OpFuncDefn && op.Kind != OpFuncDecl) || op.Poly == nil {
		b.st.fail("node %d is not a function", fn)
		return nil
	}
	return op.Poly
}

// MakeTuple packs wires into a tuple.
func (b *DataflowBuilder) MakeTuple(ins ...Wire) Wire {
	row := b.rowOf(ins)
	return b.single(b.Add(MakeTupleOp(row), ins...))
}

// UnpackTuple splits a tuple into its elements.
func (b *DataflowBuilder) UnpackTuple(w Wire) []Wire {
	t := b.st.wireType(w)
	if !t.IsTuple() {
		b.st.fail("unpack tuple: %s is not a tuple", t)
		return nil
	}
	return b.Add(UnpackTupleOp(t.Sum.Rows[0]), w)
}

// Tag builds variant tag of a sum over variants.
func (b *DataflowBuilder) Tag(tag int, variants []TypeRow, ins ...Wire) Wire {
	return b.single(b.Add(TagOp(tag, variants), ins...))
}

// Copy duplicates a value n times.
func (b *DataflowBuilder) Copy(w Wire, n int) []Wire {
	return b.Add(CopyOp(b.st.wireType(w), n), w)
}

// Discard drops a value.
func (b *DataflowBuilder) Discard(w Wire) {
	b.AddNode(DiscardOp(b.st.wireType(w)), w)
}

// Order forces before to be emitted ahead of after.
func (b *DataflowBuilder) Order(before, after NodeID) {
	b.st.link(Edge{Kind: EdgeOrder, Src: before, Dst: after})
}

// DFG adds a nested dataflow region fed by ins.
func (b *DataflowBuilder) DFG(outputs TypeRow, ins ...Wire) *DataflowBuilder {
	sig := FuncType{Input: b.rowOf(ins), Output: outputs}
	n := b.AddNode(DFGOp(sig), ins...)
	return newDataflowBuilder(b.st, n)
}

// Conditional adds a Conditional branching on sum. Its cases are created
// eagerly, in tag order.
func (b *DataflowBuilder) Conditional(outputs TypeRow, sum Wire, other ...Wire) *ConditionalBuilder {
	st := b.st.wireType(sum)
	if st.Kind != TypeSum || st.Sum == nil {
		b.st.fail("conditional: scrutinee %s is not a sum", st)
		return &ConditionalBuilder{st: b.st, node: NoNode}
	}
	op := ConditionalOp(st.Sum.Rows, b.rowOf(other), outputs)
	n := b.AddNode(op, append([]Wire{sum}, other...)...)
	cb := &ConditionalBuilder{st: b.st, node: n}
	for i := range st.Sum.Rows {
		sig, err := op.CaseSignature(i)
		if err != nil {
			b.st.fail("conditional: %v", err)
			break
		}
		cb.cases = append(cb.cases, newCaseBuilder(b.st, n, sig))
	}
	return cb
}

// TailLoop adds a loop whose body receives just ++ rest and must output
// Sum(just, justOutputs) ++ rest.
func (b *DataflowBuilder) TailLoop(justOutputs TypeRow, just []Wire, rest []Wire) *TailLoopBuilder {
	op := TailLoopOp(b.rowOf(just), justOutputs, b.rowOf(rest))
	ins := append(append([]Wire{}, just...), rest...)
	n := b.AddNode(op, ins...)
	return &TailLoopBuilder{DataflowBuilder: newDataflowBuilder(b.st, n)}
}

// CFG adds a control-flow region fed by ins.
func (b *DataflowBuilder) CFG(outputs TypeRow, ins ...Wire) *CFGBuilder {
	sig := FuncType{Input: b.rowOf(ins), Output: outputs}
	n := b.AddNode(CFGOp(sig), ins...)
	return &CFGBuilder{st: b.st, node: n, sig: sig, exit: NoNode}
}

// Finish connects outs to the region's Output node and returns the value
// outputs of the container.
func (b *DataflowBuilder) Finish(outs ...Wire) []Wire {
	if b.finished {
		b.st.fail("region %d finished twice", b.container)
		return nil
	}
	b.finished = true
	if b.st.err != nil {
		return nil
	}
	want := len(b.st.h.Op(b.output).ValueInputs())
	if want != len(outs) {
		b.st.fail("region %d: output expects %d values, got %d", b.container, want, len(outs))
		return nil
	}
	for i, w := range outs {
		b.st.connect(w.Node, w.Port, b.output, i)
	}
	return outputWires(b.container, len(b.st.h.Op(b.container).ValueOutputs()))
}

func (b *DataflowBuilder) rowOf(ws []Wire) TypeRow {
	row := make(TypeRow, len(ws))
	for i, w := range ws {
		row[i] = b.st.wireType(w)
	}
	return row
}

func (b *DataflowBuilder) single(ws []Wire) Wire {
	if len(ws) != 1 {
		if b.st.err == nil {
			b.st.fail("expected one output, got %d", len(ws))
		}
		return Wire{Node: NoNode}
	}
	return ws[0]
}

// ConditionalBuilder exposes the cases of a Conditional.
type ConditionalBuilder struct {
	st    *buildState
	node  NodeID
	cases []*DataflowBuilder
}

// Node returns the Conditional node.
func (c *ConditionalBuilder) Node() NodeID { return c.node }

// Case returns the builder for case i.
func (c *ConditionalBuilder) Case(i int) *DataflowBuilder {
	if i < 0 || i >= len(c.cases) {
		c.st.fail("conditional %d has no case %d", c.node, i)
		return &DataflowBuilder{st: c.st, container: NoNode, input: NoNode, output: NoNode}
	}
	return c.cases[i]
}

// Outputs returns the Conditional's value outputs.
func (c *ConditionalBuilder) Outputs() []Wire {
	if c.node == NoNode || c.st.err != nil {
		return nil
	}
	return outputWires(c.node, len(c.st.h.Op(c.node).ValueOutputs()))
}

// TailLoopBuilder builds the loop body; Finish takes the control sum first.
type TailLoopBuilder struct {
	*DataflowBuilder
}

// ControlRows returns the variants of the control sum: continue, break.
func (l *TailLoopBuilder) ControlRows() []TypeRow {
	op := l.st.h.Op(l.container)
	if op == nil {
		return nil
	}
	return []TypeRow{op.JustInputs, op.JustOutputs}
}

// CFGBuilder adds blocks to a CFG. The entry block must be created first;
// the exit block is created right after it.
type CFGBuilder struct {
	st   *buildState
	node NodeID
	sig  FuncType
	exit NodeID
}

// Node returns the CFG node.
func (c *CFGBuilder) Node() NodeID { return c.node }

// Entry creates the entry block, which receives the CFG inputs.
func (c *CFGBuilder) Entry(sumRows []TypeRow, other TypeRow) *DataflowBuilder {
	if c.exit != NoNode {
		c.st.fail("cfg %d: entry block already created", c.node)
	}
	b := c.block(c.sig.Input, sumRows, other)
	c.exit = c.st.add(c.node, ExitBlockOp(c.sig.Output))
	return b
}

// Block creates a further basic block.
func (c *CFGBuilder) Block(inputs TypeRow, sumRows []TypeRow, other TypeRow) *DataflowBuilder {
	if c.exit == NoNode {
		c.st.fail("cfg %d: create the entry block first", c.node)
	}
	return c.block(inputs, sumRows, other)
}

func (c *CFGBuilder) block(inputs TypeRow, sumRows []TypeRow, other TypeRow) *DataflowBuilder {
	n := c.st.add(c.node, DataflowBlockOp(inputs, sumRows, other))
	return newDataflowBuilder(c.st, n)
}

// Exit returns the exit block.
func (c *CFGBuilder) Exit() NodeID { return c.exit }

// Branch connects successor idx of from to the block to.
func (c *CFGBuilder) Branch(from *DataflowBuilder, idx int, to NodeID) {
	c.st.link(Edge{Kind: EdgeControl, Src: from.container, SrcPort: idx, Dst: to})
}

// Outputs returns the CFG's value outputs.
func (c *CFGBuilder) Outputs() []Wire {
	if c.node == NoNode || c.st.err != nil {
		return nil
	}
	return outputWires(c.node, len(c.sig.Output))
}
