// Package conversions lowers conversions between integers and floats.
package conversions

import (
	"fmt"
	"math"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/extension/floatops"
	"hugrllvm/internal/extension/intops"
	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
)

const (
	ExtensionID = "arithmetic.conversions"

	// TruncSignal is the error signal of a float out of integer range.
	TruncSignal = 2
)

type Extension struct{}

func New() Extension { return Extension{} }

func (Extension) Name() string { return ExtensionID }

func (Extension) Register(b *lower.RegistryBuilder) {
	b.OpFunc(ExtensionID, "convert_s", convert(true)).
		OpFunc(ExtensionID, "convert_u", convert(false)).
		OpFunc(ExtensionID, "trunc_s", trunc(true)).
		OpFunc(ExtensionID, "trunc_u", trunc(false))
}

func convert(signed bool) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := args.Want(1, 1); err != nil {
			return nil, err
		}
		x := args.Inputs[0]
		if _, ok := x.Type().(*types.IntType); !ok {
			return nil, fmt.Errorf("%s: input has type %s", args.Op.QualifiedName(), x.Type())
		}
		if signed {
			return []value.Value{fc.Block().NewSIToFP(x, types.Double)}, nil
		}
		return []value.Value{fc.Block().NewUIToFP(x, types.Double)}, nil
	}
}

// trunc rounds toward zero. Inputs outside the target range, and NaN,
// yield an error.
func trunc(signed bool) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := args.Want(1, 1); err != nil {
			return nil, err
		}
		x := args.Inputs[0]
		if !x.Type().Equal(types.Double) {
			return nil, fmt.Errorf("%s: input has type %s", args.Op.QualifiedName(), x.Type())
		}
		out := args.Outputs[0]
		if out.Kind != hugr.TypeSum || out.Sum == nil || len(out.Sum.Rows) != 2 || len(out.Sum.Rows[0]) != 1 {
			return nil, fmt.Errorf("%s: output %s is not a result", args.Op.QualifiedName(), out)
		}
		lt, err := fc.LLVMType(out.Sum.Rows[0][0])
		if err != nil {
			return nil, err
		}
		it, ok := lt.(*types.IntType)
		if !ok || it.BitSize > 64 {
			return nil, fmt.Errorf("%s: cannot truncate to %s", args.Op.QualifiedName(), lt)
		}
		lo, loInclusive, hi := bounds(it.BitSize, signed)
		blk := fc.Block()
		loPred := enum.FPredOGT
		if loInclusive {
			loPred = enum.FPredOGE
		}
		aboveLo := blk.NewFCmp(loPred, x, constant.NewFloat(types.Double, lo))
		belowHi := blk.NewFCmp(enum.FPredOLT, x, constant.NewFloat(types.Double, hi))
		fits := blk.NewAnd(aboveLo, belowHi)
		var n value.Value
		if signed {
			n = blk.NewFPToSI(x, it)
		} else {
			n = blk.NewFPToUI(x, it)
		}
		v, err := prelude.Checked(fc, out, fits, n, TruncSignal, "float out of integer range")
		if err != nil {
			return nil, err
		}
		return []value.Value{v}, nil
	}
}

// bounds is the float range that truncates into an integer of the given
// width: x > lo (x >= lo when loInclusive) and x < hi. The lower bound is
// one below the minimum, since truncation rounds toward zero; when that is
// not representable the minimum itself is the bound.
func bounds(bits uint64, signed bool) (lo float64, loInclusive bool, hi float64) {
	w := int(bits) //nolint:gosec // at most 64
	if !signed {
		return -1, false, math.Ldexp(1, w)
	}
	minimum := -math.Ldexp(1, w-1)
	if below := minimum - 1; below != minimum {
		return below, false, -minimum
	}
	return minimum, true, -minimum
}

// ConvertOp is convert_s or convert_u from int<lw>.
func ConvertOp(name string, lw uint64) hugr.Op {
	return hugr.CustomOpOf(ExtensionID, name,
		hugr.NewFuncType(hugr.TypeRow{intops.IntType(lw)}, hugr.TypeRow{floatops.Float64Type()}), hugr.NatArg(lw))
}

// TruncOp is trunc_s or trunc_u to int<lw>.
func TruncOp(name string, lw uint64) hugr.Op {
	return hugr.CustomOpOf(ExtensionID, name,
		hugr.NewFuncType(hugr.TypeRow{floatops.Float64Type()}, hugr.TypeRow{prelude.Result(intops.IntType(lw))}), hugr.NatArg(lw))
}
