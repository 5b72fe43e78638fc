package exec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

func i64(v int64) *constant.Int { return constant.NewInt(types.I64, v) }

func factorialModule() *ir.Module {
	m := ir.NewModule()
	f := m.NewFunc("fact", types.I64, ir.NewParam("n", types.I64))
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	exit := f.NewBlock("exit")
	entry.NewBr(loop)
	i := loop.NewPhi(ir.NewIncoming(f.Params[0], entry))
	acc := loop.NewPhi(ir.NewIncoming(i64(1), entry))
	next := loop.NewMul(acc, i)
	dec := loop.NewSub(i, i64(1))
	done := loop.NewICmp(enum.IPredSLE, dec, i64(1))
	loop.NewCondBr(done, exit, loop)
	i.Incs = append(i.Incs, ir.NewIncoming(dec, loop))
	acc.Incs = append(acc.Incs, ir.NewIncoming(next, loop))
	exit.NewRet(next)
	return m
}

func TestLoopWithPhis(t *testing.T) {
	got, err := Run(factorialModule(), "fact", []Value{Int(64, 5)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Signed() != 120 {
		t.Fatalf("fact(5) = %s, want 120", got)
	}
}

func TestRecursion(t *testing.T) {
	m := ir.NewModule()
	fib := m.NewFunc("fib", types.I32, ir.NewParam("n", types.I32))
	n := fib.Params[0]
	entry := fib.NewBlock("entry")
	base := fib.NewBlock("base")
	rec := fib.NewBlock("rec")
	entry.NewCondBr(entry.NewICmp(enum.IPredSLT, n, constant.NewInt(types.I32, 2)), base, rec)
	base.NewRet(n)
	a := rec.NewCall(fib, rec.NewSub(n, constant.NewInt(types.I32, 1)))
	b := rec.NewCall(fib, rec.NewSub(n, constant.NewInt(types.I32, 2)))
	rec.NewRet(rec.NewAdd(a, b))

	got, err := Run(m, "fib", []Value{Int(32, 10)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Signed() != 55 {
		t.Fatalf("fib(10) = %s, want 55", got)
	}
}

func TestAggregatesAndSelect(t *testing.T) {
	m := ir.NewModule()
	pair := types.NewStruct(types.I1, types.I64)
	f := m.NewFunc("pick", types.I64, ir.NewParam("c", types.I1))
	b := f.NewBlock("entry")
	agg := b.NewInsertValue(constant.NewUndef(pair), f.Params[0], 0)
	agg = b.NewInsertValue(agg, i64(7), 1)
	c := b.NewExtractValue(agg, 0)
	v := b.NewExtractValue(agg, 1)
	b.NewRet(b.NewSelect(c, v, b.NewMul(v, i64(-1))))

	for _, tc := range []struct {
		in   bool
		want int64
	}{{true, 7}, {false, -7}} {
		got, err := Run(m, "pick", []Value{Bool(tc.in)})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if got.Signed() != tc.want {
			t.Fatalf("pick(%v) = %s, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSwitch(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("classify", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	zero := f.NewBlock("zero")
	one := f.NewBlock("one")
	other := f.NewBlock("other")
	entry.NewSwitch(f.Params[0], other,
		ir.NewCase(constant.NewInt(types.I32, 0), zero),
		ir.NewCase(constant.NewInt(types.I32, 1), one))
	zero.NewRet(constant.NewInt(types.I32, 10))
	one.NewRet(constant.NewInt(types.I32, 11))
	other.NewRet(constant.NewInt(types.I32, 12))

	for in, want := range map[int64]int64{0: 10, 1: 11, 5: 12} {
		got, err := Run(m, "classify", []Value{Int(32, in)})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if got.Signed() != want {
			t.Fatalf("classify(%d) = %s, want %d", in, got, want)
		}
	}
}

func TestExternAndPrint(t *testing.T) {
	m := ir.NewModule()
	data := constant.NewCharArrayFromString("hello\x00")
	g := m.NewGlobalDef("msg", data)
	printFn := m.NewFunc(intrinsicPrint, types.Void, ir.NewParam("", types.I8Ptr))
	twice := m.NewFunc("twice", types.I64, ir.NewParam("", types.I64))
	f := m.NewFunc("main", types.I64)
	b := f.NewBlock("entry")
	zero := i64(0)
	b.NewCall(printFn, constant.NewGetElementPtr(data.Typ, g, zero, zero))
	b.NewRet(b.NewCall(twice, i64(21)))

	var out bytes.Buffer
	got, err := Run(m, "main", nil,
		WithStdout(&out),
		WithExtern("twice", func(_ *VM, args []Value) (Value, error) {
			return Int(64, 2*args[0].Signed()), nil
		}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Signed() != 42 {
		t.Fatalf("main() = %s, want 42", got)
	}
	if out.String() != "hello\n" {
		t.Fatalf("printed %q", out.String())
	}
}

func TestHeapCells(t *testing.T) {
	m := ir.NewModule()
	malloc := m.NewFunc(intrinsicMalloc, types.I8Ptr, ir.NewParam("", types.I64))
	f := m.NewFunc("roundtrip", types.I64)
	b := f.NewBlock("entry")
	raw := b.NewCall(malloc, i64(8))
	p := b.NewBitCast(raw, types.NewPointer(types.I64))
	b.NewStore(i64(3), p)
	v := b.NewLoad(types.I64, p)
	b.NewStore(b.NewAdd(v, i64(4)), p)
	b.NewRet(b.NewLoad(types.I64, p))

	got, err := Run(m, "roundtrip", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Signed() != 7 {
		t.Fatalf("roundtrip() = %s, want 7", got)
	}
}

func TestPanics(t *testing.T) {
	cases := []struct {
		name  string
		build func(m *ir.Module) *ir.Func
		code  PanicCode
	}{
		{"unreachable", func(m *ir.Module) *ir.Func {
			f := m.NewFunc("f", types.Void)
			f.NewBlock("entry").NewUnreachable()
			return f
		}, PanicUnreachable},
		{"step limit", func(m *ir.Module) *ir.Func {
			f := m.NewFunc("f", types.Void)
			b := f.NewBlock("spin")
			b.NewBr(b)
			return f
		}, PanicStepLimit},
		{"unknown extern", func(m *ir.Module) *ir.Func {
			ext := m.NewFunc("mystery", types.Void)
			f := m.NewFunc("f", types.Void)
			b := f.NewBlock("entry")
			b.NewCall(ext)
			b.NewRet(nil)
			return f
		}, PanicUnknownExtern},
		{"division by zero", func(m *ir.Module) *ir.Func {
			f := m.NewFunc("f", types.I64, ir.NewParam("x", types.I64))
			b := f.NewBlock("entry")
			b.NewRet(b.NewSDiv(i64(1), f.Params[0]))
			return f
		}, PanicDivideByZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := ir.NewModule()
			f := tc.build(m)
			args := make([]Value, len(f.Params))
			for i := range args {
				args[i] = Int(64, 0)
			}
			_, err := Run(m, f.Name(), args, WithStepLimit(100))
			var ve *VMError
			if !errors.As(err, &ve) {
				t.Fatalf("expected VMError, got %v", err)
			}
			if ve.Code != tc.code {
				t.Fatalf("code %s, want %s (%v)", ve.Code, tc.code, err)
			}
			if len(ve.Backtrace) == 0 || ve.Backtrace[0].FuncName != "f" {
				t.Fatalf("backtrace %+v", ve.Backtrace)
			}
		})
	}
}

func TestIntegerWidths(t *testing.T) {
	cases := []struct {
		v        Value
		signed   int64
		unsigned uint64
		str      string
	}{
		{Int(8, -1), -1, 255, "-1"},
		{Uint(8, 300), 44, 44, "44"},
		{Int(1, -1), -1, 1, "true"},
		{Int(64, -5), -5, 1<<64 - 5, "-5"},
	}
	for _, tc := range cases {
		if tc.v.Signed() != tc.signed || tc.v.Unsigned() != tc.unsigned || tc.v.String() != tc.str {
			t.Fatalf("%+v: got %d %d %q", tc.v, tc.v.Signed(), tc.v.Unsigned(), tc.v.String())
		}
	}
}

func TestParseArg(t *testing.T) {
	cases := []struct {
		typ  types.Type
		in   string
		want string
	}{
		{types.I64, "-5", "-5"},
		{types.I64, "0x10", "16"},
		{types.I1, "true", "true"},
		{types.I8, "255", "-1"},
		{types.Double, "1.5", "1.5"},
	}
	for _, tc := range cases {
		v, err := ParseArg(tc.typ, tc.in)
		if err != nil {
			t.Fatalf("%s %q: %v", tc.typ, tc.in, err)
		}
		if v.String() != tc.want {
			t.Fatalf("%s %q: got %s, want %s", tc.typ, tc.in, v, tc.want)
		}
	}
	if _, err := ParseArg(types.I64, "nope"); err == nil {
		t.Fatalf("expected error")
	}
}
