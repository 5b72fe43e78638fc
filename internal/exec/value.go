// Package exec interprets the LLVM IR produced by the lowering engine. It
// covers the instruction subset the engine and the bundled extensions emit
// and is meant for checking observable results, not for speed.
package exec

import (
	"fmt"
	"math"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	// VKInvalid is the zero Value, e.g. freshly allocated memory.
	VKInvalid ValueKind = iota
	// VKVoid is the result of a void function.
	VKVoid
	// VKInt is an integer of up to 64 bits.
	VKInt
	// VKFloat is a double.
	VKFloat
	// VKAggregate is a struct or array.
	VKAggregate
	// VKPtr points into a heap cell, or is null.
	VKPtr
	// VKFunc is a function address.
	VKFunc
)

func (k ValueKind) String() string {
	switch k {
	case VKInvalid:
		return "invalid"
	case VKVoid:
		return "void"
	case VKInt:
		return "int"
	case VKFloat:
		return "float"
	case VKAggregate:
		return "aggregate"
	case VKPtr:
		return "ptr"
	case VKFunc:
		return "func"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is a runtime value.
type Value struct {
	Kind   ValueKind
	Width  uint64  // VKInt: bit width
	Bits   uint64  // VKInt: two's complement payload, masked to Width
	Float  float64 // VKFloat
	Fields []Value // VKAggregate
	Ptr    Pointer // VKPtr
	Func   *ir.Func
}

// Pointer addresses a cell, or a path of field indices inside it. A nil
// Cell is the null pointer.
type Pointer struct {
	Cell *Cell
	Path []uint64
}

func mask(width uint64) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return 1<<width - 1
}

// Int returns v as an integer of the given width.
func Int(width uint64, v int64) Value {
	return Value{Kind: VKInt, Width: width, Bits: uint64(v) & mask(width)} //nolint:gosec // two's complement reinterpretation
}

// Uint returns v as an integer of the given width.
func Uint(width uint64, v uint64) Value {
	return Value{Kind: VKInt, Width: width, Bits: v & mask(width)}
}

// Bool returns an i1.
func Bool(b bool) Value {
	if b {
		return Uint(1, 1)
	}
	return Uint(1, 0)
}

// Float returns a double.
func Float(f float64) Value { return Value{Kind: VKFloat, Float: f} }

// Aggregate returns a struct or array value.
func Aggregate(fields ...Value) Value {
	return Value{Kind: VKAggregate, Fields: fields}
}

// Void is the result of a void call.
func Void() Value { return Value{Kind: VKVoid} }

// Null is the null pointer.
func Null() Value { return Value{Kind: VKPtr} }

// Signed returns an integer sign-extended from its width.
func (v Value) Signed() int64 {
	if v.Width == 0 || v.Width >= 64 {
		return int64(v.Bits) //nolint:gosec // two's complement reinterpretation
	}
	shift := 64 - v.Width
	return int64(v.Bits<<shift) >> shift //nolint:gosec // two's complement reinterpretation
}

// Unsigned returns an integer zero-extended from its width.
func (v Value) Unsigned() uint64 { return v.Bits }

// Truth reports whether an i1 is set.
func (v Value) Truth() bool { return v.Kind == VKInt && v.Bits&1 == 1 }

// Field returns field i of an aggregate.
func (v Value) Field(i int) Value {
	if v.Kind != VKAggregate || i < 0 || i >= len(v.Fields) {
		return Value{}
	}
	return v.Fields[i]
}

func (v Value) String() string {
	switch v.Kind {
	case VKInvalid:
		return "<invalid>"
	case VKVoid:
		return "void"
	case VKInt:
		if v.Width == 1 {
			if v.Truth() {
				return "true"
			}
			return "false"
		}
		return fmt.Sprintf("%d", v.Signed())
	case VKFloat:
		return fmt.Sprintf("%g", v.Float)
	case VKAggregate:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case VKPtr:
		if v.Ptr.Cell == nil {
			return "null"
		}
		return fmt.Sprintf("ptr#%d%v", v.Ptr.Cell.ID, v.Ptr.Path)
	case VKFunc:
		return "@" + v.Func.Name()
	default:
		return v.Kind.String()
	}
}

// zeroOf returns the zero value of t. Undefined values read as zero.
func zeroOf(t types.Type) (Value, error) {
	switch t := t.(type) {
	case *types.IntType:
		if t.BitSize > 64 {
			return Value{}, fmt.Errorf("integers wider than 64 bits are not supported: %s", t)
		}
		return Uint(t.BitSize, 0), nil
	case *types.FloatType:
		return Float(0), nil
	case *types.PointerType:
		return Null(), nil
	case *types.StructType:
		fields := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			z, err := zeroOf(f)
			if err != nil {
				return Value{}, err
			}
			fields[i] = z
		}
		return Aggregate(fields...), nil
	case *types.ArrayType:
		elems := make([]Value, t.Len)
		for i := range elems {
			z, err := zeroOf(t.ElemType)
			if err != nil {
				return Value{}, err
			}
			elems[i] = z
		}
		return Aggregate(elems...), nil
	case *types.VoidType:
		return Void(), nil
	}
	return Value{}, fmt.Errorf("no runtime representation for %s", t)
}

// checkType reports whether v can inhabit t.
func checkType(v Value, t types.Type) bool {
	switch t := t.(type) {
	case *types.IntType:
		return v.Kind == VKInt && v.Width == t.BitSize
	case *types.FloatType:
		return v.Kind == VKFloat
	case *types.PointerType:
		return v.Kind == VKPtr || v.Kind == VKFunc
	case *types.StructType:
		if v.Kind != VKAggregate || len(v.Fields) != len(t.Fields) {
			return false
		}
		for i, f := range t.Fields {
			if !checkType(v.Fields[i], f) {
				return false
			}
		}
		return true
	case *types.ArrayType:
		return v.Kind == VKAggregate && uint64(len(v.Fields)) == t.Len
	case *types.VoidType:
		return v.Kind == VKVoid
	}
	return false
}
