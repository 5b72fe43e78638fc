// Package hugr models hierarchical dataflow graphs: nodes with typed ports,
// connected by value, static, order and control edges, where container nodes
// hold child regions.
package hugr

import (
	"fmt"
	"math"
	"sort"

	"fortio.org/safecast"
)

// NodeID indexes a node inside its Hugr. The root is always 0.
type NodeID uint32

// NoNode marks an absent node.
const NoNode NodeID = math.MaxUint32

// EdgeKind distinguishes the four edge families.
type EdgeKind uint8

const (
	EdgeValue EdgeKind = iota
	EdgeStatic
	EdgeOrder
	EdgeControl
)

var edgeKindNames = [...]string{
	EdgeValue:   "value",
	EdgeStatic:  "static",
	EdgeOrder:   "order",
	EdgeControl: "control",
}

func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return fmt.Sprintf("EdgeKind(%d)", k)
}

// MarshalText encodes the kind by name.
func (k EdgeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *EdgeKind) UnmarshalText(b []byte) error {
	for i, name := range edgeKindNames {
		if name == string(b) {
			*k = EdgeKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown edge kind %q", b)
}

// Edge connects an output port to an input port. Order edges ignore ports;
// control edges use SrcPort as the successor index.
type Edge struct {
	Kind    EdgeKind `json:"kind" msgpack:"kind"`
	Src     NodeID   `json:"src" msgpack:"src"`
	SrcPort int      `json:"src_port" msgpack:"src_port"`
	Dst     NodeID   `json:"dst" msgpack:"dst"`
	DstPort int      `json:"dst_port" msgpack:"dst_port"`
}

// OutPort addresses an output port.
type OutPort struct {
	Node NodeID
	Port int
}

// InPort addresses an input port.
type InPort struct {
	Node NodeID
	Port int
}

func (p OutPort) String() string { return fmt.Sprintf("%d:out%d", p.Node, p.Port) }
func (p InPort) String() string  { return fmt.Sprintf("%d:in%d", p.Node, p.Port) }

type node struct {
	op       Op
	parent   NodeID
	children []NodeID
	meta     map[string]string
}

// Hugr is a hierarchical graph. It is built once and then only read; the
// lowering engine never mutates it.
type Hugr struct {
	nodes []node
	edges []Edge

	in       map[InPort]int
	out      map[OutPort][]int
	orderIn  map[NodeID][]NodeID
	orderOut map[NodeID][]NodeID
	control  map[NodeID]map[int]NodeID
}

// New creates a graph whose root carries op.
func New(root Op) *Hugr {
	h := &Hugr{
		in:       make(map[InPort]int),
		out:      make(map[OutPort][]int),
		orderIn:  make(map[NodeID][]NodeID),
		orderOut: make(map[NodeID][]NodeID),
		control:  make(map[NodeID]map[int]NodeID),
	}
	h.nodes = append(h.nodes, node{op: root, parent: NoNode})
	return h
}

// Root returns the root node.
func (h *Hugr) Root() NodeID { return 0 }

// NumNodes reports the node count.
func (h *Hugr) NumNodes() int { return len(h.nodes) }

// Valid reports whether n names a node of h.
func (h *Hugr) Valid(n NodeID) bool { return int(n) < len(h.nodes) }

// AddNode appends a child of parent and returns its id.
func (h *Hugr) AddNode(parent NodeID, op Op) (NodeID, error) {
	if !h.Valid(parent) {
		return NoNode, fmt.Errorf("add node: parent %d does not exist", parent)
	}
	id, err := safecast.Conv[uint32](len(h.nodes))
	if err != nil || id == uint32(NoNode) {
		return NoNode, fmt.Errorf("add node: too many nodes")
	}
	n := NodeID(id)
	h.nodes = append(h.nodes, node{op: op, parent: parent})
	h.nodes[parent].children = append(h.nodes[parent].children, n)
	return n, nil
}

// Op returns the operation of n. The result must not be modified.
func (h *Hugr) Op(n NodeID) *Op {
	if !h.Valid(n) {
		return nil
	}
	return &h.nodes[n].op
}

// Parent returns the parent of n, or NoNode for the root.
func (h *Hugr) Parent(n NodeID) NodeID {
	if !h.Valid(n) {
		return NoNode
	}
	return h.nodes[n].parent
}

// Children returns the children of n in declared order.
func (h *Hugr) Children(n NodeID) []NodeID {
	if !h.Valid(n) {
		return nil
	}
	return h.nodes[n].children
}

// Edges returns every edge in insertion order.
func (h *Hugr) Edges() []Edge { return h.edges }

// SetMetadata attaches a string entry to n.
func (h *Hugr) SetMetadata(n NodeID, key, value string) {
	if !h.Valid(n) {
		return
	}
	if h.nodes[n].meta == nil {
		h.nodes[n].meta = make(map[string]string)
	}
	h.nodes[n].meta[key] = value
}

// Metadata reads an entry attached to n.
func (h *Hugr) Metadata(n NodeID, key string) (string, bool) {
	if !h.Valid(n) {
		return "", false
	}
	v, ok := h.nodes[n].meta[key]
	return v, ok
}

// Link records an edge. A value or static input port accepts one producer;
// a control output port accepts one successor.
func (h *Hugr) Link(e Edge) error {
	if !h.Valid(e.Src) || !h.Valid(e.Dst) {
		return fmt.Errorf("link %s edge %d -> %d: unknown node", e.Kind, e.Src, e.Dst)
	}
	switch e.Kind {
	case EdgeValue, EdgeStatic:
		key := InPort{Node: e.Dst, Port: e.DstPort}
		if _, dup := h.in[key]; dup {
			return fmt.Errorf("link: input port %s already connected", key)
		}
		h.in[key] = len(h.edges)
		src := OutPort{Node: e.Src, Port: e.SrcPort}
		h.out[src] = append(h.out[src], len(h.edges))
	case EdgeOrder:
		h.orderIn[e.Dst] = append(h.orderIn[e.Dst], e.Src)
		h.orderOut[e.Src] = append(h.orderOut[e.Src], e.Dst)
	case EdgeControl:
		succ := h.control[e.Src]
		if succ == nil {
			succ = make(map[int]NodeID)
			h.control[e.Src] = succ
		}
		if _, dup := succ[e.SrcPort]; dup {
			return fmt.Errorf("link: control port %d of node %d already connected", e.SrcPort, e.Src)
		}
		succ[e.SrcPort] = e.Dst
	default:
		return fmt.Errorf("link: invalid edge kind %d", e.Kind)
	}
	h.edges = append(h.edges, e)
	return nil
}

// Connect links a value or static edge, choosing the kind from the source op.
func (h *Hugr) Connect(src NodeID, srcPort int, dst NodeID, dstPort int) error {
	kind := EdgeValue
	if op := h.Op(src); op != nil && op.HasStaticOutput() {
		kind = EdgeStatic
	}
	return h.Link(Edge{Kind: kind, Src: src, SrcPort: srcPort, Dst: dst, DstPort: dstPort})
}

// LinkedOutput returns the producer feeding an input port.
func (h *Hugr) LinkedOutput(n NodeID, port int) (OutPort, bool) {
	idx, ok := h.in[InPort{Node: n, Port: port}]
	if !ok {
		return OutPort{}, false
	}
	e := h.edges[idx]
	return OutPort{Node: e.Src, Port: e.SrcPort}, true
}

// LinkedInputs returns the consumers of an output port in insertion order.
func (h *Hugr) LinkedInputs(n NodeID, port int) []InPort {
	idxs := h.out[OutPort{Node: n, Port: port}]
	out := make([]InPort, 0, len(idxs))
	for _, idx := range idxs {
		e := h.edges[idx]
		out = append(out, InPort{Node: e.Dst, Port: e.DstPort})
	}
	return out
}

// OrderPredecessors returns nodes that must run before n.
func (h *Hugr) OrderPredecessors(n NodeID) []NodeID { return h.orderIn[n] }

// OrderSuccessors returns nodes that must run after n.
func (h *Hugr) OrderSuccessors(n NodeID) []NodeID { return h.orderOut[n] }

// Successors returns the control successors of a CFG block ordered by
// branch index. Missing indices are NoNode.
func (h *Hugr) Successors(n NodeID) []NodeID {
	succ := h.control[n]
	if len(succ) == 0 {
		return nil
	}
	ports := make([]int, 0, len(succ))
	maxPort := -1
	for p := range succ {
		ports = append(ports, p)
		if p > maxPort {
			maxPort = p
		}
	}
	sort.Ints(ports)
	out := make([]NodeID, maxPort+1)
	for i := range out {
		out[i] = NoNode
	}
	for _, p := range ports {
		if p >= 0 {
			out[p] = succ[p]
		}
	}
	return out
}

// StaticSource returns the node feeding the static input of n.
func (h *Hugr) StaticSource(n NodeID) (NodeID, bool) {
	op := h.Op(n)
	if op == nil {
		return NoNode, false
	}
	port, ok := op.StaticInput()
	if !ok {
		return NoNode, false
	}
	src, ok := h.LinkedOutput(n, port)
	if !ok {
		return NoNode, false
	}
	return src.Node, true
}

// IO returns the Input and Output children of a dataflow container.
func (h *Hugr) IO(n NodeID) (NodeID, NodeID, error) {
	ch := h.Children(n)
	if len(ch) < 2 {
		return NoNode, NoNode, fmt.Errorf("node %d (%s) has no Input/Output children", n, h.describe(n))
	}
	if h.nodes[ch[0]].op.Kind != OpInput || h.nodes[ch[1]].op.Kind != OpOutput {
		return NoNode, NoNode, fmt.Errorf("node %d (%s): first children must be Input and Output", n, h.describe(n))
	}
	return ch[0], ch[1], nil
}

// EntryExit returns the entry and exit blocks of a CFG node.
func (h *Hugr) EntryExit(n NodeID) (NodeID, NodeID, error) {
	ch := h.Children(n)
	if len(ch) < 2 {
		return NoNode, NoNode, fmt.Errorf("CFG %d needs an entry and an exit block", n)
	}
	if h.nodes[ch[0]].op.Kind != OpDataflowBlock {
		return NoNode, NoNode, fmt.Errorf("CFG %d: first child must be a DataflowBlock", n)
	}
	if h.nodes[ch[1]].op.Kind != OpExitBlock {
		return NoNode, NoNode, fmt.Errorf("CFG %d: second child must be the ExitBlock", n)
	}
	return ch[0], ch[1], nil
}

// RootSignature returns the signature of a FuncDefn- or DFG-rooted graph.
func (h *Hugr) RootSignature() (FuncType, error) {
	op := h.Op(h.Root())
	switch op.Kind {
	case OpFuncDefn:
		if op.Poly == nil || op.Poly.IsPolymorphic() {
			return FuncType{}, fmt.Errorf("root function must be monomorphic")
		}
		return op.Poly.Body, nil
	case OpDFG:
		if op.Sig != nil {
			return *op.Sig, nil
		}
	}
	return FuncType{}, fmt.Errorf("root %s has no function signature", op.Kind)
}

func (h *Hugr) describe(n NodeID) string {
	if op := h.Op(n); op != nil {
		return op.Describe()
	}
	return "?"
}

// OutputType returns the type carried by a value output port.
func (h *Hugr) OutputType(p OutPort) (Type, bool) {
	op := h.Op(p.Node)
	if op == nil {
		return Type{}, false
	}
	outs := op.ValueOutputs()
	if p.Port < 0 || p.Port >= len(outs) {
		return Type{}, false
	}
	return outs[p.Port], true
}

// InputType returns the type expected by a value input port.
func (h *Hugr) InputType(p InPort) (Type, bool) {
	op := h.Op(p.Node)
	if op == nil {
		return Type{}, false
	}
	ins := op.ValueInputs()
	if p.Port < 0 || p.Port >= len(ins) {
		return Type{}, false
	}
	return ins[p.Port], true
}
