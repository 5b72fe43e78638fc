package typeconv

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
)

func intType(lw uint64) hugr.Type {
	return hugr.Extension("arithmetic.int.types", "int", hugr.NatArg(lw))
}

func newTestConverter() *Converter {
	c := NewConverter()
	c.Register(Key{Extension: "arithmetic.int.types", Name: "int"}, func(_ *Session, t *hugr.CustomType) (types.Type, error) {
		return types.NewInt(1 << t.Args[0].Nat), nil
	})
	return c
}

func TestSumLayouts(t *testing.T) {
	i64 := intType(6)
	cases := []struct {
		name   string
		typ    hugr.Type
		fields []types.Type
	}{
		{"tuple", hugr.Tuple(i64, i64), []types.Type{types.NewStruct(types.I64, types.I64)}},
		{"bool", hugr.Bool(), []types.Type{types.I1, types.NewStruct(), types.NewStruct()}},
		{"option", hugr.Sum(hugr.TypeRow{}, hugr.TypeRow{i64}), []types.Type{types.I1, types.NewStruct(), types.NewStruct(types.I64)}},
		{"two rows", hugr.Sum(hugr.TypeRow{i64}, hugr.TypeRow{i64, i64}), []types.Type{types.I32, types.NewStruct(types.I64), types.NewStruct(types.I64, types.I64)}},
		{"three units", hugr.UnitSum(3), []types.Type{types.I32, types.NewStruct(), types.NewStruct(), types.NewStruct()}},
		{"empty", hugr.Sum(), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestConverter().NewSession(nil)
			lt, err := s.Convert(tc.typ, nil)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			want := types.NewStruct(tc.fields...)
			if !lt.Equal(want) {
				t.Fatalf("layout %s, want %s", lt, want)
			}
		})
	}
}

func TestConvertIsCached(t *testing.T) {
	s := newTestConverter().NewSession(nil)
	typ := hugr.Sum(hugr.TypeRow{intType(6)}, hugr.TypeRow{hugr.Bool()})
	a, err := s.Convert(typ, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	b, err := s.Convert(typ, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if a != b {
		t.Fatalf("repeated conversion returned distinct values")
	}
}

func TestSubstitutionSharesConcreteEntry(t *testing.T) {
	s := newTestConverter().NewSession(nil)
	direct, err := s.Convert(hugr.Tuple(intType(5)), nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	viaVar, err := s.Convert(hugr.Tuple(hugr.Variable(0)), hugr.Subst{hugr.TypeArgOf(intType(5))})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if direct != viaVar {
		t.Fatalf("substituted conversion should reuse the concrete entry")
	}
}

func TestUnsupportedTypes(t *testing.T) {
	s := newTestConverter().NewSession(nil)
	for _, typ := range []hugr.Type{
		hugr.Extension("unknown", "opaque"),
		hugr.Variable(0),
		hugr.Tuple(hugr.Extension("unknown", "opaque")),
	} {
		_, err := s.Convert(typ, nil)
		var ute *UnsupportedTypeError
		if !errors.As(err, &ute) {
			t.Fatalf("%s: expected UnsupportedTypeError, got %v", typ, err)
		}
	}
}

func TestNamedSumDefinitions(t *testing.T) {
	m := ir.NewModule()
	s := newTestConverter().NewSession(m)
	b := hugr.Bool()
	if _, err := s.Convert(b, nil); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := s.Convert(hugr.Sum(hugr.TypeRow{b}, hugr.TypeRow{}), nil); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := s.Convert(b, nil); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(m.TypeDefs) != 2 {
		t.Fatalf("expected 2 type definitions, got %d", len(m.TypeDefs))
	}
	if m.TypeDefs[0].Name() != "sum.0" || m.TypeDefs[1].Name() != "sum.1" {
		t.Fatalf("unexpected names %q %q", m.TypeDefs[0].Name(), m.TypeDefs[1].Name())
	}
}

func TestFunctionTypes(t *testing.T) {
	s := newTestConverter().NewSession(nil)
	i64 := intType(6)
	cases := []struct {
		sig  hugr.FuncType
		want *types.FuncType
	}{
		{hugr.NewFuncType(hugr.TypeRow{i64}, nil), types.NewFunc(types.Void, types.I64)},
		{hugr.NewFuncType(nil, hugr.TypeRow{i64}), types.NewFunc(types.I64)},
		{hugr.NewFuncType(hugr.TypeRow{i64, i64}, hugr.TypeRow{i64, i64}), types.NewFunc(types.NewStruct(types.I64, types.I64), types.I64, types.I64)},
	}
	for _, tc := range cases {
		ft, err := s.FuncType(tc.sig, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.sig, err)
		}
		if !ft.Equal(tc.want) {
			t.Fatalf("%s: got %s, want %s", tc.sig, ft, tc.want)
		}
		ptr, err := s.Convert(hugr.Function(tc.sig), nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.sig, err)
		}
		if !ptr.Equal(types.NewPointer(tc.want)) {
			t.Fatalf("%s: function value type %s", tc.sig, ptr)
		}
	}
}

func TestSumBuildAndUntag(t *testing.T) {
	i64 := intType(6)
	s := newTestConverter().NewSession(nil)
	st, err := s.Sum(hugr.Sum(hugr.TypeRow{i64}, hugr.TypeRow{i64, i64}), nil)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	m := ir.NewModule()
	f := m.NewFunc("f", st.Type())
	b := f.NewBlock("entry")

	five := constant.NewInt(types.I64, 5)
	if _, err := st.BuildTag(b, 1, []value.Value{five}); err == nil {
		t.Fatalf("expected arity error")
	}
	v, err := st.BuildTag(b, 1, []value.Value{five, five})
	if err != nil {
		t.Fatalf("build tag: %v", err)
	}
	if !v.Type().Equal(st.Type()) {
		t.Fatalf("tagged value has type %s", v.Type())
	}
	tag, err := st.BuildGetTag(b, v)
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if !tag.Type().Equal(types.I32) {
		t.Fatalf("tag type %s", tag.Type())
	}
	fields, err := st.BuildUntag(b, 1, v)
	if err != nil {
		t.Fatalf("untag: %v", err)
	}
	if len(fields) != 2 || !fields[1].Type().Equal(types.I64) {
		t.Fatalf("unexpected fields %v", fields)
	}
	b.NewRet(v)
}

func TestTupleTagIsConstant(t *testing.T) {
	s := newTestConverter().NewSession(nil)
	st, err := s.Sum(hugr.Tuple(intType(6)), nil)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	m := ir.NewModule()
	b := m.NewFunc("f", types.Void).NewBlock("entry")
	tag, err := st.BuildGetTag(b, st.Undef())
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if _, ok := tag.(*constant.Int); !ok {
		t.Fatalf("tuple tag should be constant, got %T", tag)
	}
	if len(b.Insts) != 0 {
		t.Fatalf("reading a tuple tag emitted %d instructions", len(b.Insts))
	}
}

func TestSumLayoutProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("layout follows variant shape", prop.ForAll(
		func(widths []int) bool {
			rows := make([]hugr.TypeRow, len(widths))
			anyEmpty := false
			for i, w := range widths {
				rows[i] = make(hugr.TypeRow, w)
				for j := range rows[i] {
					rows[i][j] = intType(uint64(3 + j%4))
				}
				anyEmpty = anyEmpty || w == 0
			}
			s := newTestConverter().NewSession(nil)
			st, err := s.Sum(hugr.Sum(rows...), nil)
			if err != nil {
				return false
			}
			wantFields := len(widths)
			if len(widths) >= 2 {
				wantFields++
			}
			if len(st.Type().Fields) != wantFields || st.HasTagField() != (len(widths) >= 2) {
				return false
			}
			wantI1 := len(widths) == 2 && anyEmpty
			if st.TagType().Equal(types.I1) != wantI1 {
				return false
			}
			again, err := s.Convert(hugr.Sum(rows...), nil)
			return err == nil && again == types.Type(st.Type())
		},
		gen.IntRange(1, 5).FlatMap(func(n interface{}) gopter.Gen {
			return gen.SliceOfN(n.(int), gen.IntRange(0, 3))
		}, reflect.TypeOf([]int{})),
	))

	properties.TestingRun(t)
}
