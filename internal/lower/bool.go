package lower

import (
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

// BoolToI1 reads a graph IR boolean as an i1.
func (fc *FuncContext) BoolToI1(v value.Value) (value.Value, error) {
	st, err := fc.Sum(hugr.Bool())
	if err != nil {
		return nil, err
	}
	return st.BuildGetTag(fc.block, v)
}

// I1ToBool wraps an i1 as a graph IR boolean.
func (fc *FuncContext) I1ToBool(b value.Value) (value.Value, error) {
	st, err := fc.Sum(hugr.Bool())
	if err != nil {
		return nil, err
	}
	if !b.Type().Equal(types.I1) {
		return nil, &Error{Kind: KindInvariantViolation, Node: hugr.NoNode, Msg: "boolean from " + b.Type().String()}
	}
	return st.BuildFromTag(fc.block, b)
}
