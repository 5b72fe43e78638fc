// Package ptr lowers mutable heap cells: ptr<T> is a T* obtained from the
// runtime allocator.
package ptr

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/typeconv"
)

const (
	ExtensionID = "ptr"

	AllocSymbol = "malloc"
)

type Extension struct{}

func New() Extension { return Extension{} }

func (Extension) Name() string { return ExtensionID }

func (Extension) Register(b *lower.RegistryBuilder) {
	b.Type(ExtensionID, "ptr", convertPtr).
		OpFunc(ExtensionID, "New", lowerNew).
		OpFunc(ExtensionID, "Read", lowerRead).
		OpFunc(ExtensionID, "Write", lowerWrite)
}

func convertPtr(s *typeconv.Session, t *hugr.CustomType) (types.Type, error) {
	if len(t.Args) != 1 || t.Args[0].Kind != hugr.ArgType || t.Args[0].Type == nil {
		return nil, fmt.Errorf("ptr takes one type argument")
	}
	elem, err := s.Convert(*t.Args[0].Type, nil)
	if err != nil {
		return nil, err
	}
	return types.NewPointer(elem), nil
}

func pointee(args lower.OpArgs, v value.Value) (types.Type, error) {
	pt, ok := v.Type().(*types.PointerType)
	if !ok {
		return nil, fmt.Errorf("%s: %s is not a pointer", args.Op.QualifiedName(), v.Type())
	}
	return pt.ElemType, nil
}

func lowerNew(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(1, 1); err != nil {
		return nil, err
	}
	v := args.Inputs[0]
	size, err := SizeOf(v.Type())
	if err != nil {
		return nil, err
	}
	alloc, err := fc.ExternFunc(AllocSymbol, types.NewFunc(types.I8Ptr, types.I64))
	if err != nil {
		return nil, err
	}
	blk := fc.Block()
	raw := blk.NewCall(alloc, constant.NewInt(types.I64, size))
	p := blk.NewBitCast(raw, types.NewPointer(v.Type()))
	blk.NewStore(v, p)
	return []value.Value{p}, nil
}

func lowerRead(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(1, 1); err != nil {
		return nil, err
	}
	elem, err := pointee(args, args.Inputs[0])
	if err != nil {
		return nil, err
	}
	return []value.Value{fc.Block().NewLoad(elem, args.Inputs[0])}, nil
}

func lowerWrite(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(2, 0); err != nil {
		return nil, err
	}
	p, v := args.Inputs[0], args.Inputs[1]
	elem, err := pointee(args, p)
	if err != nil {
		return nil, err
	}
	if !elem.Equal(v.Type()) {
		return nil, fmt.Errorf("%s: storing %s through %s", args.Op.QualifiedName(), v.Type(), p.Type())
	}
	fc.Block().NewStore(v, p)
	return nil, nil
}

// SizeOf is the allocation size of t in bytes with natural alignment and
// 64-bit pointers.
func SizeOf(t types.Type) (int64, error) {
	size, _, err := layout(t)
	return size, err
}

func layout(t types.Type) (size, align int64, err error) {
	switch t := t.(type) {
	case *types.IntType:
		n := int64((t.BitSize + 7) / 8) //nolint:gosec // widths are at most 128 bits
		a := int64(1)
		for a < n && a < 16 {
			a *= 2
		}
		return roundUp(n, a), a, nil
	case *types.FloatType:
		if t.Kind != types.FloatKindDouble {
			return 0, 0, fmt.Errorf("no layout for %s", t)
		}
		return 8, 8, nil
	case *types.PointerType:
		return 8, 8, nil
	case *types.ArrayType:
		es, ea, err := layout(t.ElemType)
		if err != nil {
			return 0, 0, err
		}
		return es * int64(t.Len), ea, nil //nolint:gosec // array lengths are small
	case *types.StructType:
		var off, maxAlign int64 = 0, 1
		for _, f := range t.Fields {
			fs, fa, err := layout(f)
			if err != nil {
				return 0, 0, err
			}
			off = roundUp(off, fa) + fs
			if fa > maxAlign {
				maxAlign = fa
			}
		}
		return roundUp(off, maxAlign), maxAlign, nil
	}
	return 0, 0, fmt.Errorf("no layout for %s", t)
}

func roundUp(n, a int64) int64 { return (n + a - 1) / a * a }

// PtrType is ptr<elem>.
func PtrType(elem hugr.Type) hugr.Type {
	return hugr.Extension(ExtensionID, "ptr", hugr.TypeArgOf(elem))
}

// NewOp allocates a cell holding a copy of its input.
func NewOp(elem hugr.Type) hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "New", hugr.NewFuncType(hugr.TypeRow{elem}, hugr.TypeRow{PtrType(elem)}), hugr.TypeArgOf(elem))
}

// ReadOp loads the cell's value.
func ReadOp(elem hugr.Type) hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "Read", hugr.NewFuncType(hugr.TypeRow{PtrType(elem)}, hugr.TypeRow{elem}), hugr.TypeArgOf(elem))
}

// WriteOp stores into the cell.
func WriteOp(elem hugr.Type) hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "Write", hugr.NewFuncType(hugr.TypeRow{PtrType(elem), elem}, nil), hugr.TypeArgOf(elem))
}
