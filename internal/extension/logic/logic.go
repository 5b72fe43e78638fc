// Package logic lowers boolean connectives.
package logic

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
)

const ExtensionID = "logic"

type Extension struct{}

func New() Extension { return Extension{} }

func (Extension) Name() string { return ExtensionID }

func (Extension) Register(b *lower.RegistryBuilder) {
	b.OpFunc(ExtensionID, "And", fold(true, func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewAnd(x, y) })).
		OpFunc(ExtensionID, "Or", fold(false, func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewOr(x, y) })).
		OpFunc(ExtensionID, "Xor", fold(false, func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewXor(x, y) })).
		OpFunc(ExtensionID, "Not", lowerNot).
		OpFunc(ExtensionID, "Eq", lowerEq)
}

func bits(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if len(args.Outputs) != 1 {
		return nil, fmt.Errorf("%s has one output, got %d", args.Op.QualifiedName(), len(args.Outputs))
	}
	out := make([]value.Value, len(args.Inputs))
	for i, v := range args.Inputs {
		b, err := fc.BoolToI1(v)
		if err != nil {
			return nil, fmt.Errorf("%s: input %d: %w", args.Op.QualifiedName(), i, err)
		}
		out[i] = b
	}
	return out, nil
}

// fold combines any number of inputs; with none the result is unit.
func fold(unit bool, fn func(blk *ir.Block, x, y value.Value) value.Value) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		xs, err := bits(fc, args)
		if err != nil {
			return nil, err
		}
		var acc value.Value = constant.NewBool(unit)
		if len(xs) > 0 {
			acc = xs[0]
		}
		for _, x := range xs[min(1, len(xs)):] {
			acc = fn(fc.Block(), acc, x)
		}
		r, err := fc.I1ToBool(acc)
		if err != nil {
			return nil, err
		}
		return []value.Value{r}, nil
	}
}

func lowerNot(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(1, 1); err != nil {
		return nil, err
	}
	xs, err := bits(fc, args)
	if err != nil {
		return nil, err
	}
	r, err := fc.I1ToBool(fc.Block().NewXor(xs[0], constant.True))
	if err != nil {
		return nil, err
	}
	return []value.Value{r}, nil
}

func lowerEq(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(2, 1); err != nil {
		return nil, err
	}
	xs, err := bits(fc, args)
	if err != nil {
		return nil, err
	}
	r, err := fc.I1ToBool(fc.Block().NewICmp(enum.IPredEQ, xs[0], xs[1]))
	if err != nil {
		return nil, err
	}
	return []value.Value{r}, nil
}

// Op is a logic operation over n booleans.
func Op(name string, n int) hugr.Op {
	in := make(hugr.TypeRow, n)
	for i := range in {
		in[i] = hugr.Bool()
	}
	return hugr.CustomOpOf(ExtensionID, name, hugr.NewFuncType(in, hugr.TypeRow{hugr.Bool()}), hugr.NatArg(uint64(n)))
}
