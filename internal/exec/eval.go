package exec

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// evalValue reads an operand in frame.
func (vm *VM) evalValue(frame *Frame, v value.Value) (Value, *VMError) {
	switch v := v.(type) {
	case *ir.Param:
		if r, ok := frame.Locals[v]; ok {
			return r, nil
		}
		return Value{}, vm.eb.errorf(PanicUseBeforeInit, "parameter %s of another function", v.Ident())
	case *ir.Func:
		return Value{Kind: VKFunc, Func: v}, nil
	case *ir.Global:
		c, err := vm.globalCell(v)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: VKPtr, Ptr: Pointer{Cell: c}}, nil
	case constant.Constant:
		return vm.evalConst(v)
	}
	if r, ok := frame.Locals[v]; ok {
		return r, nil
	}
	return Value{}, vm.eb.errorf(PanicUseBeforeInit, "%s used before it was computed", v.Ident())
}

// evalConst evaluates a constant or constant expression.
func (vm *VM) evalConst(c constant.Constant) (Value, *VMError) {
	switch c := c.(type) {
	case *constant.Int:
		it := c.Typ
		if it.BitSize > 64 {
			return Value{}, vm.eb.unimplemented("integers wider than 64 bits")
		}
		if c.X.IsInt64() {
			return Int(it.BitSize, c.X.Int64()), nil
		}
		return Uint(it.BitSize, c.X.Uint64()), nil
	case *constant.Float:
		f, _ := c.X.Float64()
		return Float(f), nil
	case *constant.Null:
		return Null(), nil
	case *constant.Undef:
		return vm.zero(c.Typ)
	case *constant.ZeroInitializer:
		return vm.zero(c.Typ)
	case *constant.Struct:
		fields := make([]Value, len(c.Fields))
		for i, f := range c.Fields {
			v, err := vm.evalConst(f)
			if err != nil {
				return Value{}, err
			}
			fields[i] = v
		}
		return Aggregate(fields...), nil
	case *constant.Array:
		elems := make([]Value, len(c.Elems))
		for i, e := range c.Elems {
			v, err := vm.evalConst(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Aggregate(elems...), nil
	case *constant.CharArray:
		elems := make([]Value, len(c.X))
		for i, b := range c.X {
			elems[i] = Uint(8, uint64(b))
		}
		return Aggregate(elems...), nil
	case *constant.ExprGetElementPtr:
		src, err := vm.evalConst(c.Src)
		if err != nil {
			return Value{}, err
		}
		idx := make([]Value, len(c.Indices))
		for i, ic := range c.Indices {
			if idx[i], err = vm.evalConst(ic); err != nil {
				return Value{}, err
			}
		}
		return vm.gep(src, idx)
	case *constant.ExprBitCast:
		return vm.evalConst(c.From)
	case *ir.Func:
		return Value{Kind: VKFunc, Func: c}, nil
	case *ir.Global:
		cell, err := vm.globalCell(c)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: VKPtr, Ptr: Pointer{Cell: cell}}, nil
	}
	return Value{}, vm.eb.unimplemented("constant " + c.Ident())
}

func (vm *VM) zero(t types.Type) (Value, *VMError) {
	z, err := zeroOf(t)
	if err != nil {
		return Value{}, vm.eb.unimplemented(err.Error())
	}
	return z, nil
}

// gep follows indices from p. The first index steps over whole cells and
// must be zero; the rest select fields and elements.
func (vm *VM) gep(p Value, idx []Value) (Value, *VMError) {
	if p.Kind != VKPtr {
		return Value{}, vm.eb.typeMismatch("pointer", p.Kind.String())
	}
	if len(idx) == 0 {
		return p, nil
	}
	if idx[0].Kind != VKInt || idx[0].Bits != 0 {
		if len(p.Ptr.Path) == 0 || idx[0].Kind != VKInt {
			return Value{}, vm.eb.unimplemented("pointer arithmetic across cells")
		}
		// Offset within the enclosing array.
		path := append([]uint64(nil), p.Ptr.Path...)
		path[len(path)-1] += uint64(idx[0].Signed()) //nolint:gosec // offsets wrap like the IR does
		p = Value{Kind: VKPtr, Ptr: Pointer{Cell: p.Ptr.Cell, Path: path}}
	}
	path := append([]uint64(nil), p.Ptr.Path...)
	for _, i := range idx[1:] {
		if i.Kind != VKInt {
			return Value{}, vm.eb.typeMismatch("integer index", i.Kind.String())
		}
		path = append(path, i.Unsigned())
	}
	return Value{Kind: VKPtr, Ptr: Pointer{Cell: p.Ptr.Cell, Path: path}}, nil
}
