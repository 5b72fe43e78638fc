package lower

import (
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

// RowMap binds graph output ports to SSA values for one function. Node ids
// are unique across nested regions, so a single map serves the whole body;
// values crossing region boundaries are found without copying.
type RowMap struct {
	h    *hugr.Hugr
	vals map[hugr.OutPort]value.Value
}

func NewRowMap(h *hugr.Hugr) *RowMap {
	return &RowMap{h: h, vals: make(map[hugr.OutPort]value.Value)}
}

// Bind records v for (n, port). Binding a port twice is an invariant
// violation: every port is produced exactly once.
func (r *RowMap) Bind(n hugr.NodeID, port int, v value.Value) error {
	if v == nil {
		return invariant(r.h, n, "output %d bound to no value", port)
	}
	key := hugr.OutPort{Node: n, Port: port}
	if _, dup := r.vals[key]; dup {
		return invariant(r.h, n, "output %d bound twice", port)
	}
	r.vals[key] = v
	return nil
}

// BindRow binds vals to ports 0..len(vals)-1 of n.
func (r *RowMap) BindRow(n hugr.NodeID, vals []value.Value) error {
	for i, v := range vals {
		if err := r.Bind(n, i, v); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the value bound to (n, port).
func (r *RowMap) Lookup(n hugr.NodeID, port int) (value.Value, error) {
	v, ok := r.vals[hugr.OutPort{Node: n, Port: port}]
	if !ok {
		return nil, nodeError(r.h, KindUnboundValue, n, "output %d read before it was produced", port)
	}
	return v, nil
}

// Inputs resolves the first count value inputs of n through their linked
// producers.
func (r *RowMap) Inputs(n hugr.NodeID, count int) ([]value.Value, error) {
	out := make([]value.Value, count)
	for i := range out {
		src, ok := r.h.LinkedOutput(n, i)
		if !ok {
			return nil, invariant(r.h, n, "input %d is not connected", i)
		}
		v, err := r.Lookup(src.Node, src.Port)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Len reports the number of bound ports.
func (r *RowMap) Len() int { return len(r.vals) }
