package lower_test

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hugrllvm/internal/exec"
	"hugrllvm/internal/extension/floatops"
	"hugrllvm/internal/extension/intops"
	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/extension/std"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/verify"
)

var i64 = intops.IntType(6)

func registry(t *testing.T) *lower.Registry {
	t.Helper()
	reg, err := std.Registry(std.Options{})
	require.NoError(t, err)
	return reg
}

func emit(t *testing.T, h *hugr.Hugr, entry ...string) *ir.Module {
	t.Helper()
	m, err := lower.EmitModule(context.Background(), h, registry(t), lower.Options{ModuleName: "test", Entry: entry})
	require.NoError(t, err)
	require.NoError(t, verify.Module(m))
	return m
}

func findFunc(m *ir.Module, name string) *ir.Func {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// scenarioModule builds a Conditional over Sum((i64), (i64, i64)) whose
// first case negates and whose second case adds. neg and add wrap it.
func scenarioModule(t *testing.T) *hugr.Hugr {
	t.Helper()
	rows := []hugr.TypeRow{{i64}, {i64, i64}}
	sum := hugr.Sum(rows...)

	mb := hugr.NewModuleBuilder()
	choose := mb.DefineFunction("choose", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{sum}, hugr.TypeRow{i64})))
	cond := choose.Conditional(hugr.TypeRow{i64}, choose.Input(0))
	c0 := cond.Case(0)
	c0.Finish(c0.Add(intops.UnaryOp("ineg", 6), c0.Input(0))...)
	c1 := cond.Case(1)
	c1.Finish(c1.Add(intops.BinaryOp("iadd", 6), c1.Input(0), c1.Input(1))...)
	choose.Finish(cond.Outputs()...)

	neg := mb.DefineFunction("neg", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	neg.Finish(neg.Call(choose.Node(), nil, neg.Tag(0, rows, neg.Input(0)))...)

	add := mb.DefineFunction("add", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64, i64}, hugr.TypeRow{i64})))
	add.Finish(add.Call(choose.Node(), nil, add.Tag(1, rows, add.Input(0), add.Input(1)))...)

	h, err := mb.Finish()
	require.NoError(t, err)
	return h
}

func TestConditionalScenario(t *testing.T) {
	m := emit(t, scenarioModule(t), "neg", "add")

	got, err := exec.Run(m, "neg", []exec.Value{exec.Int(64, 5)})
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got.Signed())

	got, err = exec.Run(m, "add", []exec.Value{exec.Int(64, 5), exec.Int(64, 7)})
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Signed())
}

func TestConditionalMergesWithPhis(t *testing.T) {
	m := emit(t, scenarioModule(t), "neg", "add")
	choose := findFunc(m, lower.DefaultManglePrefix+".choose")
	require.NotNil(t, choose)
	// entry, one block per case and the continuation.
	require.Len(t, choose.Blocks, 4)
	var cases []*ir.Block
	for _, b := range choose.Blocks[1:3] {
		require.Contains(t, b.Name(), "_case_")
		cases = append(cases, b)
	}
	exit := choose.Blocks[3]
	assert.True(t, strings.HasSuffix(exit.Name(), "_exit"), exit.Name())
	for _, c := range cases {
		br, ok := c.Term.(*ir.TermBr)
		require.True(t, ok, "case %s ends with %T", c.Name(), c.Term)
		assert.Same(t, exit, br.Target)
	}

	phis := blockPhis(exit)
	require.Len(t, phis, 1)
	assert.True(t, phis[0].Typ.Equal(types.I64))
	require.Len(t, phis[0].Incs, 2)
	for i, inc := range phis[0].Incs {
		assert.Same(t, cases[i], inc.Pred)
	}
}

func blockPhis(b *ir.Block) []*ir.InstPhi {
	var phis []*ir.InstPhi
	for _, inst := range b.Insts {
		if phi, ok := inst.(*ir.InstPhi); ok {
			phis = append(phis, phi)
		}
	}
	return phis
}

func blockNamed(t *testing.T, f *ir.Func, prefix, suffix string) *ir.Block {
	t.Helper()
	for _, b := range f.Blocks {
		if strings.HasPrefix(b.Name(), prefix) && strings.HasSuffix(b.Name(), suffix) {
			return b
		}
	}
	t.Fatalf("%s has no block %s*%s", f.Name(), prefix, suffix)
	return nil
}

func TestUnknownOperation(t *testing.T) {
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("f", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	f.Finish(f.Custom("foo", "bar", hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64}), nil, f.Input(0))...)
	h, err := mb.Finish()
	require.NoError(t, err)

	m, err := lower.EmitModule(context.Background(), h, registry(t), lower.Options{})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, lower.IsKind(err, lower.KindUnknownOperation))
	assert.Contains(t, err.Error(), "foo.bar")
}

func TestMissingEntryPoint(t *testing.T) {
	_, err := lower.EmitModule(context.Background(), scenarioModule(t), registry(t), lower.Options{Entry: []string{"main"}})
	require.Error(t, err)
	assert.True(t, lower.IsKind(err, lower.KindInvariantViolation))
	assert.Contains(t, err.Error(), `"main"`)
}

func TestCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := lower.EmitModule(ctx, scenarioModule(t), registry(t), lower.Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, m)
}

func TestTailLoop(t *testing.T) {
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("triangle", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	zero := f.LoadConst(intops.Int(6, 0))
	loop := f.TailLoop(hugr.TypeRow{i64}, []hugr.Wire{f.Input(0), zero}, nil)
	ctrl := loop.ControlRows()
	done := loop.Add(intops.CompareOp("ile_s", 6), loop.Input(0), loop.LoadConst(intops.Int(6, 0)))
	cond := loop.Conditional(hugr.TypeRow{hugr.Sum(ctrl...)}, done[0], loop.Input(0), loop.Input(1))

	more := cond.Case(0)
	n := more.Add(intops.BinaryOp("isub", 6), more.Input(0), more.LoadConst(intops.Int(6, 1)))
	acc := more.Add(intops.BinaryOp("iadd", 6), more.Input(1), more.Input(0))
	more.Finish(more.Tag(0, ctrl, n[0], acc[0]))

	stop := cond.Case(1)
	stop.Finish(stop.Tag(1, ctrl, stop.Input(1)))

	f.Finish(loop.Finish(cond.Outputs()...)...)
	h, err := mb.Finish()
	require.NoError(t, err)

	m := emit(t, h, "triangle")
	for in, want := range map[int64]int64{0: 0, 1: 1, 4: 10, 100: 5050} {
		got, err := exec.Run(m, "triangle", []exec.Value{exec.Int(64, in)})
		require.NoError(t, err)
		assert.Equal(t, want, got.Signed(), "triangle(%d)", in)
	}

	fn := findFunc(m, "triangle")
	require.NotNil(t, fn)
	header := blockNamed(t, fn, "loop_", "_header")
	exit := blockNamed(t, fn, "loop_", "_exit")

	phis := blockPhis(header)
	require.Len(t, phis, 2)
	for _, phi := range phis {
		assert.True(t, phi.Typ.Equal(types.I64))
		require.Len(t, phi.Incs, 2)
		assert.Same(t, fn.Blocks[0], phi.Incs[0].Pred)
	}
	exitPhis := blockPhis(exit)
	require.Len(t, exitPhis, 1)
	assert.True(t, exitPhis[0].Typ.Equal(types.I64))

	// The control sum {[i64, i64], [i64]} has an i32 tag: continue is the
	// default target, break the single case.
	latch, ok := phis[0].Incs[1].Pred.(*ir.Block)
	require.True(t, ok)
	sw, ok := latch.Term.(*ir.TermSwitch)
	require.True(t, ok, "latch ends with %T", latch.Term)
	assert.Same(t, header, sw.TargetDefault)
	require.Len(t, sw.Cases, 1)
	assert.Same(t, exit, sw.Cases[0].Target)
	assert.Same(t, latch, exitPhis[0].Incs[0].Pred)
}

func TestRecursiveCall(t *testing.T) {
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("count", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	done := f.Add(intops.CompareOp("ile_s", 6), f.Input(0), f.LoadConst(intops.Int(6, 0)))
	cond := f.Conditional(hugr.TypeRow{i64}, done[0], f.Input(0))

	rec := cond.Case(0)
	one := rec.LoadConst(intops.Int(6, 1))
	prev := rec.Add(intops.BinaryOp("isub", 6), rec.Input(0), one)
	sub := rec.Call(f.Node(), nil, prev[0])
	rec.Finish(rec.Add(intops.BinaryOp("iadd", 6), sub[0], rec.LoadConst(intops.Int(6, 1)))...)

	base := cond.Case(1)
	base.Finish(base.LoadConst(intops.Int(6, 0)))
	f.Finish(cond.Outputs()...)
	h, err := mb.Finish()
	require.NoError(t, err)

	m := emit(t, h, "count")
	count := findFunc(m, "count")
	require.NotNil(t, count)
	var callees []string
	for _, b := range count.Blocks {
		for _, inst := range b.Insts {
			if call, ok := inst.(*ir.InstCall); ok {
				if fn, ok := call.Callee.(*ir.Func); ok {
					callees = append(callees, fn.Name())
				}
			}
		}
	}
	assert.Equal(t, []string{"count"}, callees)

	got, err := exec.Run(m, "count", []exec.Value{exec.Int(64, 5)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Signed())
}

func TestEmissionIsDeterministic(t *testing.T) {
	h := scenarioModule(t)
	first := emit(t, h).String()
	for range 5 {
		assert.Equal(t, first, emit(t, h).String())
	}
}

func TestAdditionMatchesWrappingArithmetic(t *testing.T) {
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("add", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64, i64}, hugr.TypeRow{i64})))
	f.Finish(f.Add(intops.BinaryOp("iadd", 6), f.Input(0), f.Input(1))...)
	h, err := mb.Finish()
	require.NoError(t, err)
	m := emit(t, h, "add")

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)
	properties.Property("add(a, b) wraps like int64", prop.ForAll(
		func(a, b int64) bool {
			got, err := exec.Run(m, "add", []exec.Value{exec.Int(64, a), exec.Int(64, b)})
			return err == nil && got.Signed() == a+b
		},
		gen.Int64(), gen.Int64(),
	))
	properties.TestingRun(t)
}

func TestCFGSingleSuccessor(t *testing.T) {
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("inc", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	cfg := f.CFG(hugr.TypeRow{i64}, f.Input(0))
	entry := cfg.Entry([]hugr.TypeRow{{}}, hugr.TypeRow{i64})
	next := entry.Add(intops.BinaryOp("iadd", 6), entry.Input(0), entry.LoadConst(intops.Int(6, 1)))
	entry.Finish(entry.Tag(0, []hugr.TypeRow{{}}), next[0])
	cfg.Branch(entry, 0, cfg.Exit())
	f.Finish(cfg.Outputs()...)
	h, err := mb.Finish()
	require.NoError(t, err)

	m := emit(t, h, "inc")
	got, err := exec.Run(m, "inc", []exec.Value{exec.Int(64, 41)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Signed())

	fn := findFunc(m, "inc")
	require.NotNil(t, fn)
	for _, b := range fn.Blocks {
		assert.NotContains(t, b.Name(), "_br_", "a single successor needs no edge block")
	}
	bb := blockNamed(t, fn, "cfg_", "_bb_"+fmtNode(entry.Node()))
	exit := blockNamed(t, fn, "cfg_", "_exit")
	br, ok := bb.Term.(*ir.TermBr)
	require.True(t, ok, "entry block ends with %T", bb.Term)
	assert.Same(t, exit, br.Target)
}

// triangleCFG sums 1..n with a CFG: the loop block branches back to
// itself until n reaches zero, then leaves through the exit.
func triangleCFG(t *testing.T) (*hugr.Hugr, *hugr.DataflowBuilder) {
	t.Helper()
	pair := hugr.TypeRow{i64, i64}
	ctrl := []hugr.TypeRow{pair, {i64}}

	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("tri", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	cfg := f.CFG(hugr.TypeRow{i64}, f.Input(0))

	entry := cfg.Entry([]hugr.TypeRow{pair}, nil)
	entry.Finish(entry.Tag(0, []hugr.TypeRow{pair}, entry.Input(0), entry.LoadConst(intops.Int(6, 0))))

	loop := cfg.Block(pair, ctrl, nil)
	done := loop.Add(intops.CompareOp("ile_s", 6), loop.Input(0), loop.LoadConst(intops.Int(6, 0)))
	cond := loop.Conditional(hugr.TypeRow{hugr.Sum(ctrl...)}, done[0], loop.Input(0), loop.Input(1))
	more := cond.Case(0)
	n := more.Add(intops.BinaryOp("isub", 6), more.Input(0), more.LoadConst(intops.Int(6, 1)))
	acc := more.Add(intops.BinaryOp("iadd", 6), more.Input(1), more.Input(0))
	more.Finish(more.Tag(0, ctrl, n[0], acc[0]))
	stop := cond.Case(1)
	stop.Finish(stop.Tag(1, ctrl, stop.Input(1)))
	loop.Finish(cond.Outputs()...)

	cfg.Branch(entry, 0, loop.Node())
	cfg.Branch(loop, 0, loop.Node())
	cfg.Branch(loop, 1, cfg.Exit())
	f.Finish(cfg.Outputs()...)

	h, err := mb.Finish()
	require.NoError(t, err)
	return h, loop
}

func TestCFGLoopWithBackEdge(t *testing.T) {
	h, loop := triangleCFG(t)
	m := emit(t, h, "tri")
	for in, want := range map[int64]int64{0: 0, 1: 1, 10: 55} {
		got, err := exec.Run(m, "tri", []exec.Value{exec.Int(64, in)})
		require.NoError(t, err)
		assert.Equal(t, want, got.Signed(), "tri(%d)", in)
	}

	fn := findFunc(m, "tri")
	require.NotNil(t, fn)
	suffix := "_bb_" + fmtNode(loop.Node())
	bb := blockNamed(t, fn, "cfg_", suffix)
	back := blockNamed(t, fn, "cfg_", suffix+"_br_0")
	out := blockNamed(t, fn, "cfg_", suffix+"_br_1")
	exit := blockNamed(t, fn, "cfg_", "_exit")

	// Both loop inputs merge the entry edge and the back edge.
	phis := blockPhis(bb)
	require.Len(t, phis, 2)
	for _, phi := range phis {
		require.Len(t, phi.Incs, 2)
		assert.Same(t, back, phi.Incs[1].Pred)
	}
	exitPhis := blockPhis(exit)
	require.Len(t, exitPhis, 1)
	require.Len(t, exitPhis[0].Incs, 1)
	assert.Same(t, out, exitPhis[0].Incs[0].Pred)
}

func TestCFGWithUnreachableExit(t *testing.T) {
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("spin", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	cfg := f.CFG(hugr.TypeRow{i64}, f.Input(0))
	entry := cfg.Entry([]hugr.TypeRow{{i64}}, nil)
	entry.Finish(entry.Tag(0, []hugr.TypeRow{{i64}}, entry.Input(0)))
	cfg.Branch(entry, 0, entry.Node())
	f.Finish(cfg.Outputs()...)
	h, err := mb.Finish()
	require.NoError(t, err)

	m := emit(t, h, "spin")
	fn := findFunc(m, "spin")
	require.NotNil(t, fn)
	exit := blockNamed(t, fn, "cfg_", "_exit")
	assert.Empty(t, blockPhis(exit))
	_, ok := exit.Term.(*ir.TermUnreachable)
	assert.True(t, ok, "exit ends with %T", exit.Term)

	_, err = exec.Run(m, "spin", []exec.Value{exec.Int(64, 1)}, exec.WithStepLimit(1000))
	var ve *exec.VMError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, exec.PanicStepLimit, ve.Code)
}

func TestFunctionConstantCalledIndirectly(t *testing.T) {
	sig := hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})
	inner := hugr.NewDFGBuilder(sig)
	inc := inner.Add(intops.BinaryOp("iadd", 6), inner.Input(0), inner.LoadConst(intops.Int(6, 1)))
	ih, err := inner.FinishGraph(inc...)
	require.NoError(t, err)

	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("apply", hugr.Mono(sig))
	fp := f.LoadConst(hugr.FunctionValue(ih))
	f.Finish(f.CallIndirect(fp, f.Input(0))...)
	h, err := mb.Finish()
	require.NoError(t, err)

	m := emit(t, h, "apply")
	got, err := exec.Run(m, "apply", []exec.Value{exec.Int(64, 41)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Signed())

	var consts []*ir.Func
	for _, fn := range m.Funcs {
		if strings.HasPrefix(fn.Name(), lower.DefaultManglePrefix+".const_fun_") {
			consts = append(consts, fn)
		}
	}
	require.Len(t, consts, 1)
	assert.NotEmpty(t, consts[0].Blocks)
}

func TestPolymorphicInstantiationsAreShared(t *testing.T) {
	f64 := floatops.Float64Type()
	poly := hugr.PolyFuncType{
		Params: []hugr.TypeParam{{Kind: hugr.ParamType, Name: "T"}},
		Body:   hugr.NewFuncType(hugr.TypeRow{hugr.Variable(0)}, hugr.TypeRow{hugr.Variable(0)}),
	}
	targ := func(t hugr.Type) []hugr.TypeArg { return []hugr.TypeArg{hugr.TypeArgOf(t)} }

	mb := hugr.NewModuleBuilder()
	id := mb.DefineFunction("id", poly)
	id.Finish(id.Input(0))
	wrap := mb.DefineFunction("wrap", poly)
	wrap.Finish(wrap.Call(id.Node(), targ(hugr.Variable(0)), wrap.Input(0))...)

	mainI := mb.DefineFunction("main_i", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{i64}, hugr.TypeRow{i64})))
	once := mainI.Call(wrap.Node(), targ(i64), mainI.Input(0))
	mainI.Finish(mainI.Call(wrap.Node(), targ(i64), once...)...)
	mainF := mb.DefineFunction("main_f", hugr.Mono(hugr.NewFuncType(hugr.TypeRow{f64}, hugr.TypeRow{f64})))
	mainF.Finish(mainF.Call(wrap.Node(), targ(f64), mainF.Input(0))...)
	h, err := mb.Finish()
	require.NoError(t, err)

	m := emit(t, h, "main_i", "main_f")
	counts := map[string]int{}
	for _, fn := range m.Funcs {
		for _, base := range []string{"wrap", "id"} {
			if strings.HasPrefix(fn.Name(), lower.DefaultManglePrefix+"."+base+"$") {
				counts[base]++
			}
		}
	}
	assert.Equal(t, map[string]int{"wrap": 2, "id": 2}, counts)

	got, err := exec.Run(m, "main_i", []exec.Value{exec.Int(64, 7)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Signed())
	got, err = exec.Run(m, "main_f", []exec.Value{exec.Float(2.5)})
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Float)
}

func TestOrderEdgeOverridesDeclaredOrder(t *testing.T) {
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction("main", hugr.Mono(hugr.NewFuncType(nil, nil)))
	first := f.AddNode(prelude.PrintOp(), f.LoadConst(prelude.String("declared first")))
	second := f.AddNode(prelude.PrintOp(), f.LoadConst(prelude.String("declared second")))
	f.Order(second, first)
	f.Finish()
	h, err := mb.Finish()
	require.NoError(t, err)

	m := emit(t, h, "main")
	var out bytes.Buffer
	_, err = exec.Run(m, "main", nil, exec.WithStdout(&out))
	require.NoError(t, err)
	assert.Equal(t, "declared second\ndeclared first\n", out.String())
}

func fmtNode(n hugr.NodeID) string { return strconv.Itoa(int(n)) }

func funcNode(t *testing.T, h *hugr.Hugr, name string) hugr.NodeID {
	t.Helper()
	for _, c := range h.Children(h.Root()) {
		if op := h.Op(c); op.Kind == hugr.OpFuncDefn && op.Name == name {
			return c
		}
	}
	t.Fatalf("no function %q", name)
	return hugr.NoNode
}

func subprogram(t *testing.T, f *ir.Func) *metadata.DISubprogram {
	t.Helper()
	require.Len(t, f.Metadata, 1)
	assert.Equal(t, "dbg", f.Metadata[0].Name)
	sp, ok := f.Metadata[0].Node.(*metadata.DISubprogram)
	require.True(t, ok, "attachment is %T", f.Metadata[0].Node)
	return sp
}

func TestDebugInfoFromNodeMetadata(t *testing.T) {
	h := scenarioModule(t)
	h.SetMetadata(h.Root(), lower.MetaDebugFile, "/src/prog/choose.py")
	h.SetMetadata(funcNode(t, h, "choose"), lower.MetaDebugLine, "12")
	h.SetMetadata(funcNode(t, h, "neg"), lower.MetaDebugFile, "/src/prog/neg.py")
	m := emit(t, h, "neg", "add")

	cus := m.NamedMetadataDefs["llvm.dbg.cu"]
	require.NotNil(t, cus)
	require.Len(t, cus.Nodes, 1)
	cu, ok := cus.Nodes[0].(*metadata.DICompileUnit)
	require.True(t, ok)
	assert.Equal(t, "choose.py", cu.File.Filename)
	assert.Equal(t, "/src/prog", cu.File.Directory)
	assert.Equal(t, "hugrllvm", cu.Producer)
	require.Contains(t, m.NamedMetadataDefs, "llvm.module.flags")

	choose := subprogram(t, findFunc(m, lower.DefaultManglePrefix+".choose"))
	assert.Equal(t, "choose", choose.Name)
	assert.Equal(t, lower.DefaultManglePrefix+".choose", choose.LinkageName)
	assert.Equal(t, int64(12), choose.Line)
	assert.Same(t, cu, choose.Unit)
	assert.Same(t, cu.File, choose.File)

	neg := subprogram(t, findFunc(m, "neg"))
	assert.Equal(t, "neg.py", neg.File.Filename)
	assert.Equal(t, int64(0), neg.Line)

	text := m.String()
	assert.Contains(t, text, "!llvm.dbg.cu = !{")
	assert.Contains(t, text, `!DISubprogram(name: "choose"`)
	assert.Contains(t, text, `!"Debug Info Version"`)

	got, err := exec.Run(m, "neg", []exec.Value{exec.Int(64, 5)})
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got.Signed())
}

func TestNoDebugInfoWithoutAFile(t *testing.T) {
	h := scenarioModule(t)
	h.SetMetadata(funcNode(t, h, "choose"), lower.MetaDebugLine, "12")
	m := emit(t, h, "neg", "add")
	assert.Empty(t, m.NamedMetadataDefs)
	assert.Empty(t, m.MetadataDefs)
	for _, f := range m.Funcs {
		assert.Empty(t, f.Metadata, f.Name())
	}
}

func TestDebugLineMustBeANumber(t *testing.T) {
	h := scenarioModule(t)
	h.SetMetadata(h.Root(), lower.MetaDebugFile, "choose.py")
	h.SetMetadata(funcNode(t, h, "add"), lower.MetaDebugLine, "twelve")
	_, err := lower.EmitModule(context.Background(), h, registry(t), lower.Options{Entry: []string{"neg", "add"}})
	require.Error(t, err)
	assert.True(t, lower.IsKind(err, lower.KindInvariantViolation), "got %v", err)
	assert.Contains(t, err.Error(), "di.line")
}
