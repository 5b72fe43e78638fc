// Package intops lowers fixed-width integers and their arithmetic.
//
// int<lw> holds 2^lw bits, lw in [0, 7]. Values carry no signedness; each
// operation picks its interpretation.
package intops

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/typeconv"
)

const (
	TypesExtensionID = "arithmetic.int.types"
	OpsExtensionID   = "arithmetic.int"

	MaxLogWidth = 7

	// NarrowSignal is the error signal of failed narrowing.
	NarrowSignal = 2
)

// Extension contributes both integer extensions.
type Extension struct{}

func New() Extension { return Extension{} }

func (Extension) Name() string { return OpsExtensionID }

func (Extension) Register(b *lower.RegistryBuilder) {
	b.Type(TypesExtensionID, "int", convertInt).
		Const(TypesExtensionID, "ConstInt", lowerConst)

	for name, fn := range binaryOps {
		b.OpFunc(OpsExtensionID, name, binary(fn))
	}
	for name, pred := range comparisons {
		b.OpFunc(OpsExtensionID, name, compare(pred))
	}
	b.OpFunc(OpsExtensionID, "ineg", unary(func(blk *ir.Block, x value.Value) value.Value {
		return blk.NewSub(constant.NewInt(x.Type().(*types.IntType), 0), x)
	})).
		OpFunc(OpsExtensionID, "inot", unary(func(blk *ir.Block, x value.Value) value.Value {
			return blk.NewXor(x, constant.NewInt(x.Type().(*types.IntType), -1))
		})).
		OpFunc(OpsExtensionID, "iabs", unary(func(blk *ir.Block, x value.Value) value.Value {
			zero := constant.NewInt(x.Type().(*types.IntType), 0)
			neg := blk.NewICmp(enum.IPredSLT, x, zero)
			return blk.NewSelect(neg, blk.NewSub(zero, x), x)
		})).
		OpFunc(OpsExtensionID, "ishl", shift(func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewShl(x, y) })).
		OpFunc(OpsExtensionID, "ishr", shift(func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewLShr(x, y) })).
		OpFunc(OpsExtensionID, "iwiden_s", widen(true)).
		OpFunc(OpsExtensionID, "iwiden_u", widen(false)).
		OpFunc(OpsExtensionID, "inarrow_s", narrow(true)).
		OpFunc(OpsExtensionID, "inarrow_u", narrow(false))
}

// Bits returns the width of int<lw>.
func Bits(lw uint64) (uint64, error) {
	if lw > MaxLogWidth {
		return 0, fmt.Errorf("log width %d exceeds %d", lw, MaxLogWidth)
	}
	return 1 << lw, nil
}

func logWidth(t *hugr.CustomType) (uint64, error) {
	if len(t.Args) != 1 || t.Args[0].Kind != hugr.ArgBoundedNat {
		return 0, fmt.Errorf("%s.%s takes one bounded natural argument", t.Extension, t.Name)
	}
	return t.Args[0].Nat, nil
}

func convertInt(_ *typeconv.Session, t *hugr.CustomType) (types.Type, error) {
	lw, err := logWidth(t)
	if err != nil {
		return nil, err
	}
	bits, err := Bits(lw)
	if err != nil {
		return nil, err
	}
	return types.NewInt(bits), nil
}

func lowerConst(fc *lower.FuncContext, c *hugr.CustomConst) (value.Value, error) {
	t, err := fc.LLVMType(c.Type)
	if err != nil {
		return nil, err
	}
	it, ok := t.(*types.IntType)
	if !ok {
		return nil, fmt.Errorf("integer constant of type %s", t)
	}
	return constant.NewInt(it, fitWidth(c.Int, it.BitSize)), nil
}

// fitWidth truncates v to bits and sign-extends it back.
func fitWidth(v int64, bits uint64) int64 {
	if bits >= 64 {
		return v
	}
	shift := 64 - bits
	return (v << shift) >> shift
}

type binaryFunc func(blk *ir.Block, x, y value.Value) value.Value

var binaryOps = map[string]binaryFunc{
	"iadd":   func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewAdd(x, y) },
	"isub":   func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewSub(x, y) },
	"imul":   func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewMul(x, y) },
	"idiv_s": func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewSDiv(x, y) },
	"idiv_u": func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewUDiv(x, y) },
	"imod_s": func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewSRem(x, y) },
	"imod_u": func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewURem(x, y) },
	"iand":   func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewAnd(x, y) },
	"ior":    func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewOr(x, y) },
	"ixor":   func(blk *ir.Block, x, y value.Value) value.Value { return blk.NewXor(x, y) },
	"imax_s": selectBy(enum.IPredSGT),
	"imax_u": selectBy(enum.IPredUGT),
	"imin_s": selectBy(enum.IPredSLT),
	"imin_u": selectBy(enum.IPredULT),
}

var comparisons = map[string]enum.IPred{
	"ieq":   enum.IPredEQ,
	"ine":   enum.IPredNE,
	"ilt_s": enum.IPredSLT,
	"ilt_u": enum.IPredULT,
	"igt_s": enum.IPredSGT,
	"igt_u": enum.IPredUGT,
	"ile_s": enum.IPredSLE,
	"ile_u": enum.IPredULE,
	"ige_s": enum.IPredSGE,
	"ige_u": enum.IPredUGE,
}

// selectBy picks x when x pred y holds, else y.
func selectBy(pred enum.IPred) binaryFunc {
	return func(blk *ir.Block, x, y value.Value) value.Value {
		return blk.NewSelect(blk.NewICmp(pred, x, y), x, y)
	}
}

func intInputs(args lower.OpArgs, n int) error {
	if err := args.Want(n, 1); err != nil {
		return err
	}
	for i, v := range args.Inputs {
		if _, ok := v.Type().(*types.IntType); !ok {
			return fmt.Errorf("%s: input %d has type %s", args.Op.QualifiedName(), i, v.Type())
		}
	}
	return nil
}

func binary(fn binaryFunc) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := intInputs(args, 2); err != nil {
			return nil, err
		}
		x, y := args.Inputs[0], args.Inputs[1]
		if !x.Type().Equal(y.Type()) {
			return nil, fmt.Errorf("%s: operands of types %s and %s", args.Op.QualifiedName(), x.Type(), y.Type())
		}
		return []value.Value{fn(fc.Block(), x, y)}, nil
	}
}

func unary(fn func(blk *ir.Block, x value.Value) value.Value) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := intInputs(args, 1); err != nil {
			return nil, err
		}
		return []value.Value{fn(fc.Block(), args.Inputs[0])}, nil
	}
}

func compare(pred enum.IPred) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := intInputs(args, 2); err != nil {
			return nil, err
		}
		b, err := fc.I1ToBool(fc.Block().NewICmp(pred, args.Inputs[0], args.Inputs[1]))
		if err != nil {
			return nil, err
		}
		return []value.Value{b}, nil
	}
}

// shift brings the shift amount to the width of the shifted value.
func shift(fn binaryFunc) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := intInputs(args, 2); err != nil {
			return nil, err
		}
		x, y := args.Inputs[0], args.Inputs[1]
		y = resize(fc.Block(), y, x.Type().(*types.IntType), false)
		return []value.Value{fn(fc.Block(), x, y)}, nil
	}
}

func resize(blk *ir.Block, v value.Value, to *types.IntType, signed bool) value.Value {
	from := v.Type().(*types.IntType)
	switch {
	case from.BitSize == to.BitSize:
		return v
	case from.BitSize > to.BitSize:
		return blk.NewTrunc(v, to)
	case signed:
		return blk.NewSExt(v, to)
	default:
		return blk.NewZExt(v, to)
	}
}

func widen(signed bool) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := intInputs(args, 1); err != nil {
			return nil, err
		}
		out, err := fc.LLVMType(args.Outputs[0])
		if err != nil {
			return nil, err
		}
		to, ok := out.(*types.IntType)
		if !ok || to.BitSize < args.Inputs[0].Type().(*types.IntType).BitSize {
			return nil, fmt.Errorf("%s: cannot widen %s to %s", args.Op.QualifiedName(), args.Inputs[0].Type(), out)
		}
		return []value.Value{resize(fc.Block(), args.Inputs[0], to, signed)}, nil
	}
}

// narrow yields Sum[int<m>, error]: the truncated value when it converts
// back to the input unchanged, an error otherwise.
func narrow(signed bool) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := intInputs(args, 1); err != nil {
			return nil, err
		}
		out := args.Outputs[0]
		if out.Kind != hugr.TypeSum || out.Sum == nil || len(out.Sum.Rows) != 2 || len(out.Sum.Rows[0]) != 1 {
			return nil, fmt.Errorf("%s: output %s is not a result", args.Op.QualifiedName(), out)
		}
		lt, err := fc.LLVMType(out.Sum.Rows[0][0])
		if err != nil {
			return nil, err
		}
		x := args.Inputs[0]
		to, ok := lt.(*types.IntType)
		if !ok || to.BitSize > x.Type().(*types.IntType).BitSize {
			return nil, fmt.Errorf("%s: cannot narrow %s to %s", args.Op.QualifiedName(), x.Type(), lt)
		}
		blk := fc.Block()
		n := resize(blk, x, to, signed)
		back := resize(blk, n, x.Type().(*types.IntType), signed)
		fits := blk.NewICmp(enum.IPredEQ, back, x)
		v, err := prelude.Checked(fc, out, fits, n, NarrowSignal, "integer does not fit the narrower width")
		if err != nil {
			return nil, err
		}
		return []value.Value{v}, nil
	}
}
