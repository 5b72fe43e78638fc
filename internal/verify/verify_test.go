package verify

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func one() *constant.Int { return constant.NewInt(types.I64, 1) }

// loopFunc counts n down to one, multiplying as it goes.
func loopFunc(m *ir.Module) *ir.Func {
	f := m.NewFunc("fact", types.I64, ir.NewParam("n", types.I64))
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	exit := f.NewBlock("exit")
	entry.NewBr(loop)
	i := loop.NewPhi(ir.NewIncoming(f.Params[0], entry))
	acc := loop.NewPhi(ir.NewIncoming(one(), entry))
	next := loop.NewMul(acc, i)
	dec := loop.NewSub(i, one())
	loop.NewCondBr(loop.NewICmp(enum.IPredSLE, dec, one()), exit, loop)
	i.Incs = append(i.Incs, ir.NewIncoming(dec, loop))
	acc.Incs = append(acc.Incs, ir.NewIncoming(next, loop))
	exit.NewRet(next)
	return f
}

func TestWellFormedModule(t *testing.T) {
	m := ir.NewModule()
	loopFunc(m)
	m.NewFunc("external", types.Void)
	require.NoError(t, Module(m))
}

func TestUnterminatedBlock(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	f.NewBlock("entry")
	err := Module(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function @f")
	assert.Contains(t, err.Error(), "unterminated block")
}

func TestPhiMissingPredecessor(t *testing.T) {
	m := ir.NewModule()
	f := loopFunc(m)
	loop := f.Blocks[1]
	phi := loop.Insts[0].(*ir.InstPhi)
	phi.Incs = phi.Incs[:1]
	err := Func(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 0 values for predecessor %loop")
}

func TestPhiAfterInstruction(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I64, ir.NewParam("x", types.I64))
	entry := f.NewBlock("entry")
	join := f.NewBlock("join")
	entry.NewBr(join)
	sum := join.NewAdd(f.Params[0], one())
	join.NewPhi(ir.NewIncoming(one(), entry))
	join.NewRet(sum)
	err := Func(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after a non-phi instruction")
}

func TestReturnTypeMismatch(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32)
	f.NewBlock("entry").NewRet(one())
	err := Func(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returns i64, function returns i32")
}

func TestUseNotDominated(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I64, ir.NewParam("c", types.I1))
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	entry.NewCondBr(f.Params[0], left, right)
	v := left.NewAdd(one(), one())
	left.NewRet(v)
	right.NewRet(v)
	err := Func(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not dominate its use in %right")
}

func TestUnreachableBlocksAreNotChecked(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I64)
	entry := f.NewBlock("entry")
	dead := f.NewBlock("dead")
	v := entry.NewAdd(one(), one())
	entry.NewRet(v)
	dead.NewRet(v)
	require.NoError(t, Func(f))
}

func TestForeignBranchTarget(t *testing.T) {
	m := ir.NewModule()
	g := m.NewFunc("g", types.Void)
	other := g.NewBlock("other")
	other.NewRet(nil)
	f := m.NewFunc("f", types.Void)
	f.NewBlock("entry").NewBr(other)
	err := Func(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "of another function")
}
