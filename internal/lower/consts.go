package lower

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

func (fc *FuncContext) emitLoadConstant(n hugr.NodeID, op *hugr.Op) error {
	src, ok := fc.h.StaticSource(n)
	if !ok {
		return invariant(fc.h, n, "static input is not connected")
	}
	cop := fc.h.Op(src)
	if cop.Kind != hugr.OpConst || cop.Value == nil {
		return invariant(fc.h, n, "static input comes from %s, not a constant", cop.Kind)
	}
	v, err := fc.constValue(src, *cop.Value)
	if err != nil {
		return err
	}
	return fc.bindOutputs(n, op, []value.Value{v})
}

// constValue lowers a constant. Sums of constants fold into a constant
// aggregate; otherwise the aggregate is built at fc.block.
func (fc *FuncContext) constValue(n hugr.NodeID, v hugr.Value) (value.Value, error) {
	switch v.Kind {
	case hugr.ValueExtension:
		c := v.Custom
		if c == nil {
			return nil, invariant(fc.h, n, "extension constant without payload")
		}
		key := ConstKey{Extension: c.Extension, Name: c.Name}
		lowerConst, ok := fc.mc.reg.LookupConst(key)
		if !ok {
			return nil, nodeError(fc.h, KindUnknownOperation, n, "no constant lowering registered for %s", key)
		}
		lv, err := lowerConst(fc, c)
		if err != nil {
			return nil, fc.handlerError(n, OpKey{Extension: c.Extension, Op: c.Name}, err)
		}
		want, err := fc.LLVMType(c.Type)
		if err != nil {
			return nil, typeError(fc.h, n, err)
		}
		if lv == nil || !lv.Type().Equal(want) {
			return nil, invariant(fc.h, n, "constant %s does not have type %s", key, want)
		}
		return lv, nil
	case hugr.ValueSum:
		t, err := v.Type()
		if err != nil {
			return nil, invariant(fc.h, n, "%v", err)
		}
		st, err := fc.Sum(t)
		if err != nil {
			return nil, typeError(fc.h, n, err)
		}
		vals := make([]value.Value, len(v.Values))
		consts := make([]constant.Constant, 0, len(v.Values))
		for i, fv := range v.Values {
			lv, err := fc.constValue(n, fv)
			if err != nil {
				return nil, err
			}
			vals[i] = lv
			if c, ok := lv.(constant.Constant); ok {
				consts = append(consts, c)
			}
		}
		if len(consts) == len(vals) {
			c, err := st.ConstTag(v.Tag, consts)
			if err != nil {
				return nil, invariant(fc.h, n, "%v", err)
			}
			return c, nil
		}
		lv, err := st.BuildTag(fc.block, v.Tag, vals)
		if err != nil {
			return nil, invariant(fc.h, n, "%v", err)
		}
		return lv, nil
	case hugr.ValueFunction:
		fn, err := fc.mc.DeclareConstFunction(fc.h, n, v.Func)
		if err != nil {
			return nil, err
		}
		return fn, nil
	}
	return nil, invariant(fc.h, n, "invalid constant kind %s", v.Kind)
}
