package exec

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
)

// Cell is one allocation: a global, an alloca or a malloc result.
type Cell struct {
	ID   int
	Name string
	V    Value
}

// Heap owns every cell of a run. IDs are never reused.
type Heap struct {
	cells   []*Cell
	globals map[*ir.Global]*Cell
}

func newHeap() *Heap {
	return &Heap{globals: make(map[*ir.Global]*Cell)}
}

func (h *Heap) alloc(name string, v Value) *Cell {
	c := &Cell{ID: len(h.cells) + 1, Name: name, V: v}
	h.cells = append(h.cells, c)
	return c
}

// Len returns the number of cells allocated so far.
func (h *Heap) Len() int { return len(h.cells) }

func (vm *VM) globalCell(g *ir.Global) (*Cell, *VMError) {
	if c, ok := vm.Heap.globals[g]; ok {
		return c, nil
	}
	var v Value
	if g.Init != nil {
		iv, err := vm.evalConst(g.Init)
		if err != nil {
			return nil, err
		}
		v = iv
	} else {
		z, err := zeroOf(g.ContentType)
		if err != nil {
			return nil, vm.eb.typeMismatch("a storable global", g.ContentType.String())
		}
		v = z
	}
	c := vm.Heap.alloc(g.Name(), v)
	vm.Heap.globals[g] = c
	return c, nil
}

// at returns the value p points to.
func (vm *VM) at(p Pointer) (Value, *VMError) {
	if p.Cell == nil {
		return Value{}, vm.eb.errorf(PanicNullDeref, "load through null pointer")
	}
	v := p.Cell.V
	for _, idx := range p.Path {
		if v.Kind != VKAggregate {
			return Value{}, vm.eb.typeMismatch("aggregate", v.Kind.String())
		}
		if idx >= uint64(len(v.Fields)) {
			return Value{}, vm.eb.outOfBounds(idx, len(v.Fields))
		}
		v = v.Fields[idx]
	}
	if v.Kind == VKInvalid {
		return Value{}, vm.eb.errorf(PanicUseBeforeInit, "read of uninitialised memory in cell %d", p.Cell.ID)
	}
	return v, nil
}

// put stores v where p points.
func (vm *VM) put(p Pointer, v Value) *VMError {
	if p.Cell == nil {
		return vm.eb.errorf(PanicNullDeref, "store through null pointer")
	}
	nv, err := vm.replace(p.Cell.V, p.Path, v)
	if err != nil {
		return err
	}
	p.Cell.V = nv
	return nil
}

// replace returns agg with the element at path set to v. agg is not
// modified.
func (vm *VM) replace(agg Value, path []uint64, v Value) (Value, *VMError) {
	if len(path) == 0 {
		return v, nil
	}
	if agg.Kind != VKAggregate {
		return Value{}, vm.eb.typeMismatch("aggregate", agg.Kind.String())
	}
	idx := path[0]
	if idx >= uint64(len(agg.Fields)) {
		return Value{}, vm.eb.outOfBounds(idx, len(agg.Fields))
	}
	inner, err := vm.replace(agg.Fields[idx], path[1:], v)
	if err != nil {
		return Value{}, err
	}
	fields := append([]Value(nil), agg.Fields...)
	fields[idx] = inner
	return Aggregate(fields...), nil
}

// ReadString reads the NUL-terminated byte string starting at p.
func (vm *VM) ReadString(p Pointer) (string, error) {
	if p.Cell == nil {
		return "", fmt.Errorf("string at null pointer")
	}
	if len(p.Path) == 0 {
		return "", fmt.Errorf("string pointer into cell %d has no element index", p.Cell.ID)
	}
	parent := Pointer{Cell: p.Cell, Path: p.Path[:len(p.Path)-1]}
	arr, err := vm.at(parent)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := p.Path[len(p.Path)-1]; i < uint64(len(arr.Fields)); i++ {
		c := arr.Fields[i]
		if c.Kind != VKInt || c.Width != 8 {
			return "", fmt.Errorf("string element %d is %s", i, c)
		}
		if c.Bits == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(byte(c.Bits))
	}
	return "", fmt.Errorf("string in cell %d is not NUL-terminated", p.Cell.ID)
}
