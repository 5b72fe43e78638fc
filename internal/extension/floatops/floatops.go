// Package floatops lowers 64-bit floats and their arithmetic.
package floatops

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/typeconv"
)

const (
	TypesExtensionID = "arithmetic.float.types"
	OpsExtensionID   = "arithmetic.float"
)

type Extension struct{}

func New() Extension { return Extension{} }

func (Extension) Name() string { return OpsExtensionID }

func (Extension) Register(b *lower.RegistryBuilder) {
	b.Type(TypesExtensionID, "float64", func(*typeconv.Session, *hugr.CustomType) (types.Type, error) {
		return types.Double, nil
	}).
		Const(TypesExtensionID, "ConstF64", func(_ *lower.FuncContext, c *hugr.CustomConst) (value.Value, error) {
			return constant.NewFloat(types.Double, c.Float), nil
		})

	for name, fn := range binaryOps {
		b.OpFunc(OpsExtensionID, name, floats(2, fn))
	}
	for name, pred := range comparisons {
		b.OpFunc(OpsExtensionID, name, compare(pred))
	}
	b.OpFunc(OpsExtensionID, "fneg", floats(1, func(blk *ir.Block, xs []value.Value) value.Value {
		return blk.NewFNeg(xs[0])
	})).
		OpFunc(OpsExtensionID, "fabs", floats(1, func(blk *ir.Block, xs []value.Value) value.Value {
			neg := blk.NewFCmp(enum.FPredOLT, xs[0], constant.NewFloat(types.Double, 0))
			return blk.NewSelect(neg, blk.NewFNeg(xs[0]), xs[0])
		}))
}

type floatFunc func(blk *ir.Block, xs []value.Value) value.Value

var binaryOps = map[string]floatFunc{
	"fadd": func(blk *ir.Block, xs []value.Value) value.Value { return blk.NewFAdd(xs[0], xs[1]) },
	"fsub": func(blk *ir.Block, xs []value.Value) value.Value { return blk.NewFSub(xs[0], xs[1]) },
	"fmul": func(blk *ir.Block, xs []value.Value) value.Value { return blk.NewFMul(xs[0], xs[1]) },
	"fdiv": func(blk *ir.Block, xs []value.Value) value.Value { return blk.NewFDiv(xs[0], xs[1]) },
	"fmax": func(blk *ir.Block, xs []value.Value) value.Value {
		return blk.NewSelect(blk.NewFCmp(enum.FPredOGT, xs[0], xs[1]), xs[0], xs[1])
	},
	"fmin": func(blk *ir.Block, xs []value.Value) value.Value {
		return blk.NewSelect(blk.NewFCmp(enum.FPredOLT, xs[0], xs[1]), xs[0], xs[1])
	},
}

// Comparisons are ordered: any NaN operand compares false, except fne.
var comparisons = map[string]enum.FPred{
	"feq": enum.FPredOEQ,
	"fne": enum.FPredUNE,
	"flt": enum.FPredOLT,
	"fgt": enum.FPredOGT,
	"fle": enum.FPredOLE,
	"fge": enum.FPredOGE,
}

func checkFloats(args lower.OpArgs, n int) error {
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

func floats(n int, fn floatFunc) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := checkFloats(args, n); err != nil {
			return nil, err
		}
		return []value.Value{fn(fc.Block(), args.Inputs)}, nil
	}
}

func compare(pred enum.FPred) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := checkFloats(args, 2); err != nil {
			return nil, err
		}
		b, err := fc.I1ToBool(fc.Block().NewFCmp(pred, args.Inputs[0], args.Inputs[1]))
		if err != nil {
			return nil, err
		}
		return []value.Value{b}, nil
	}
}

// Float64Type is the graph IR float64.
func Float64Type() hugr.Type { return hugr.Extension(TypesExtensionID, "float64") }

// Float64 is a float64 constant.
func Float64(v float64) hugr.Value {
	return hugr.ExtensionValue(hugr.CustomConst{Extension: TypesExtensionID, Name: "ConstF64", Type: Float64Type(), Float: v})
}

// Op is a float operation with n operands and result type out.
func Op(name string, n int, out hugr.Type) hugr.Op {
	in := make(hugr.TypeRow, n)
	for i := range in {
		in[i] = Float64Type()
	}
	return hugr.CustomOpOf(OpsExtensionID, name, hugr.NewFuncType(in, hugr.TypeRow{out}))
}
