// Package rotation lowers rotation angles, held as a double counting half
// turns.
package rotation

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/extension/floatops"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/typeconv"
)

const ExtensionID = "tket2.rotation"

type Extension struct{}

func New() Extension { return Extension{} }

func (Extension) Name() string { return ExtensionID }

func (Extension) Register(b *lower.RegistryBuilder) {
	b.Type(ExtensionID, "rotation", func(*typeconv.Session, *hugr.CustomType) (types.Type, error) {
		return types.Double, nil
	}).
		Const(ExtensionID, "ConstRotation", func(_ *lower.FuncContext, c *hugr.CustomConst) (value.Value, error) {
			return constant.NewFloat(types.Double, c.Float), nil
		}).
		OpFunc(ExtensionID, "from_halfturns", passThrough).
		OpFunc(ExtensionID, "to_halfturns", passThrough).
		OpFunc(ExtensionID, "radd", lowerAdd)
}

func doubles(args lower.OpArgs, n int) error {
	if err := args.Want(n, 1); err != nil {
		return err
	}
	for i, v := range args.Inputs {
		if !v.Type().Equal(types.Double) {
			return fmt.Errorf("%s: input %d has type %s", args.Op.QualifiedName(), i, v.Type())
		}
	}
	return nil
}

// passThrough converts between a float of half turns and a rotation,
// which share a representation.
func passThrough(_ *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := doubles(args, 1); err != nil {
		return nil, err
	}
	return []value.Value{args.Inputs[0]}, nil
}

func lowerAdd(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := doubles(args, 2); err != nil {
		return nil, err
	}
	return []value.Value{fc.Block().NewFAdd(args.Inputs[0], args.Inputs[1])}, nil
}

// RotationType is the graph IR rotation.
func RotationType() hugr.Type { return hugr.Extension(ExtensionID, "rotation") }

// HalfTurns is a rotation constant.
func HalfTurns(v float64) hugr.Value {
	return hugr.ExtensionValue(hugr.CustomConst{Extension: ExtensionID, Name: "ConstRotation", Type: RotationType(), Float: v})
}

func FromHalfTurnsOp() hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "from_halfturns", hugr.NewFuncType(hugr.TypeRow{floatops.Float64Type()}, hugr.TypeRow{RotationType()}))
}

func ToHalfTurnsOp() hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "to_halfturns", hugr.NewFuncType(hugr.TypeRow{RotationType()}, hugr.TypeRow{floatops.Float64Type()}))
}

func AddOp() hugr.Op {
	r := RotationType()
	return hugr.CustomOpOf(ExtensionID, "radd", hugr.NewFuncType(hugr.TypeRow{r, r}, hugr.TypeRow{r}))
}
