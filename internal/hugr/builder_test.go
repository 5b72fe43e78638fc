package hugr

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64() Type { return Extension("arithmetic.int.types", "int", NatArg(6)) }

func constInt(v int64) Value {
	return ExtensionValue(CustomConst{Extension: "arithmetic.int.types", Name: "ConstInt", Type: i64(), Int: v})
}

func buildAdd1(t *testing.T) *Hugr {
	t.Helper()
	mb := NewModuleBuilder()
	f := mb.DefineFunction("add1", Mono(NewFuncType(TypeRow{i64()}, TypeRow{i64()})))
	one := f.LoadConst(constInt(1))
	sum := f.Custom("arithmetic.int", "iadd", NewFuncType(TypeRow{i64(), i64()}, TypeRow{i64()}), nil, f.Input(0), one)
	require.Len(t, sum, 1)
	f.Finish(sum...)
	h, err := mb.Finish()
	require.NoError(t, err)
	return h
}

func TestBuilderSimpleFunction(t *testing.T) {
	h := buildAdd1(t)

	fn := h.Children(h.Root())[0]
	assert.Equal(t, OpFuncDefn, h.Op(fn).Kind)
	in, out, err := h.IO(fn)
	require.NoError(t, err)
	assert.Equal(t, OpInput, h.Op(in).Kind)
	assert.Equal(t, OpOutput, h.Op(out).Kind)

	src, ok := h.LinkedOutput(out, 0)
	require.True(t, ok)
	assert.Equal(t, "arithmetic.int.iadd", h.Op(src.Node).Describe())

	load, ok := h.LinkedOutput(src.Node, 1)
	require.True(t, ok)
	c, ok := h.StaticSource(load.Node)
	require.True(t, ok)
	assert.Equal(t, OpConst, h.Op(c).Kind)
}

func TestBuilderRejectsArityMismatch(t *testing.T) {
	mb := NewModuleBuilder()
	f := mb.DefineFunction("bad", Mono(NewFuncType(TypeRow{i64()}, TypeRow{i64()})))
	f.Custom("arithmetic.int", "iadd", NewFuncType(TypeRow{i64(), i64()}, TypeRow{i64()}), nil, f.Input(0))
	_, err := mb.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2 inputs")
}

func TestBuilderConditionalCases(t *testing.T) {
	rows := []TypeRow{{i64()}, {i64(), i64()}}
	mb := NewModuleBuilder()
	f := mb.DefineFunction("pick", Mono(NewFuncType(TypeRow{Sum(rows...)}, TypeRow{i64()})))
	cond := f.Conditional(TypeRow{i64()}, f.Input(0))
	c0 := cond.Case(0)
	c0.Finish(c0.Input(0))
	c1 := cond.Case(1)
	c1.Finish(c1.Input(1))
	f.Finish(cond.Outputs()...)
	h, err := mb.Finish()
	require.NoError(t, err)

	cases := h.Children(cond.Node())
	require.Len(t, cases, 2)
	sig, err := h.Op(cond.Node()).CaseSignature(1)
	require.NoError(t, err)
	assert.Equal(t, "fn(arithmetic.int.types.int<6>, arithmetic.int.types.int<6>) -> (arithmetic.int.types.int<6>)", sig.String())
	assert.Equal(t, sig.String(), h.Op(cases[1]).Sig.String())
}

func TestBuilderCFGOrdersEntryAndExit(t *testing.T) {
	mb := NewModuleBuilder()
	f := mb.DefineFunction("cfg", Mono(NewFuncType(TypeRow{i64()}, TypeRow{i64()})))
	cfg := f.CFG(TypeRow{i64()}, f.Input(0))
	entry := cfg.Entry([]TypeRow{{}}, TypeRow{i64()})
	unit := entry.Tag(0, []TypeRow{{}})
	entry.Finish(unit, entry.Input(0))
	cfg.Branch(entry, 0, cfg.Exit())
	f.Finish(cfg.Outputs()...)
	h, err := mb.Finish()
	require.NoError(t, err)

	e, x, err := h.EntryExit(cfg.Node())
	require.NoError(t, err)
	assert.Equal(t, entry.Node(), e)
	assert.Equal(t, cfg.Exit(), x)
	assert.Equal(t, []NodeID{x}, h.Successors(e))
}

func TestBuilderCFGRequiresEntryFirst(t *testing.T) {
	mb := NewModuleBuilder()
	f := mb.DefineFunction("cfg", Mono(NewFuncType(TypeRow{i64()}, TypeRow{i64()})))
	cfg := f.CFG(TypeRow{i64()}, f.Input(0))
	cfg.Block(TypeRow{i64()}, []TypeRow{{}}, TypeRow{i64()})
	_, err := mb.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry block first")
}

func TestValidateReportsTypeMismatch(t *testing.T) {
	h := New(ModuleOp())
	fn, err := h.AddNode(h.Root(), FuncDefnOp("f", Mono(NewFuncType(TypeRow{i64()}, TypeRow{Bool()}))))
	require.NoError(t, err)
	in, _ := h.AddNode(fn, InputOp(TypeRow{i64()}))
	out, _ := h.AddNode(fn, OutputOp(TypeRow{Bool()}))
	require.NoError(t, h.Connect(in, 0, out, 0))

	err = Validate(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")
}

func TestValidateReportsDanglingInput(t *testing.T) {
	h := New(ModuleOp())
	fn, _ := h.AddNode(h.Root(), FuncDefnOp("f", Mono(NewFuncType(nil, TypeRow{i64()}))))
	h.AddNode(fn, InputOp(nil))
	h.AddNode(fn, OutputOp(TypeRow{i64()}))

	err := Validate(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input 0 is not connected")
}

func TestMermaidGolden(t *testing.T) {
	h := buildAdd1(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "add1_mermaid", []byte(h.Mermaid()))
}

func TestSerialRoundTrip(t *testing.T) {
	h := buildAdd1(t)
	h.SetMetadata(1, "di.file", "add1.py")
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, h, f))
		got, err := Decode(&buf, f)
		require.NoError(t, err)
		assert.Equal(t, h.Mermaid(), got.Mermaid())
		file, ok := got.Metadata(1, "di.file")
		assert.True(t, ok)
		assert.Equal(t, "add1.py", file)
		assert.Equal(t, "iadd", got.Op(6).Custom.Name)
	}
}

func TestSerialJSONUsesKindNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, buildAdd1(t), FormatJSON))
	assert.True(t, strings.Contains(buf.String(), `"op": "LoadConstant"`))
	assert.True(t, strings.Contains(buf.String(), `"kind": "static"`))
}

func TestSerialNestedFunctionValue(t *testing.T) {
	inner := NewDFGBuilder(NewFuncType(TypeRow{i64()}, TypeRow{i64()}))
	ih, err := inner.FinishGraph(inner.Input(0))
	require.NoError(t, err)

	mb := NewModuleBuilder()
	f := mb.DefineFunction("main", Mono(NewFuncType(nil, TypeRow{Function(NewFuncType(TypeRow{i64()}, TypeRow{i64()}))})))
	w := f.LoadConst(FunctionValue(ih))
	f.Finish(w)
	h, err := mb.Finish()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, h, FormatMsgpack))
	got, err := Decode(&buf, FormatMsgpack)
	require.NoError(t, err)
	c, ok := got.StaticSource(w.Node)
	require.True(t, ok)
	nested := got.Op(c).Value.Func
	require.NotNil(t, nested)
	sig, err := nested.RootSignature()
	require.NoError(t, err)
	assert.Equal(t, "fn(arithmetic.int.types.int<6>) -> (arithmetic.int.types.int<6>)", sig.String())
}
