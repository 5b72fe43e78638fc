package intops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hugrllvm/internal/exec"
	"hugrllvm/internal/extension/intops"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/testkit"
)

func binaryBody(name string, lw uint64) testkit.Body {
	return func(b *hugr.DataflowBuilder) []hugr.Wire {
		return b.Add(intops.BinaryOp(name, lw), b.Input(0), b.Input(1))
	}
}

func TestBinaryOps(t *testing.T) {
	cases := []struct {
		op   string
		lw   uint64
		x, y int64
		want int64
	}{
		{"iadd", 6, 40, 2, 42},
		{"iadd", 3, 100, 100, -56},
		{"isub", 6, 2, 5, -3},
		{"imul", 5, -6, 7, -42},
		{"idiv_s", 6, -7, 2, -3},
		{"idiv_u", 3, -2, 2, 127},
		{"imod_s", 6, -7, 2, -1},
		{"imod_u", 3, -1, 10, 5},
		{"iand", 6, 0b1100, 0b1010, 0b1000},
		{"ior", 6, 0b1100, 0b1010, 0b1110},
		{"ixor", 6, 0b1100, 0b1010, 0b0110},
		{"imax_s", 6, -3, 2, 2},
		{"imax_u", 3, -3, 2, -3},
		{"imin_s", 6, -3, 2, -3},
		{"imin_u", 3, -3, 2, 2},
		{"ishl", 4, 3, 4, 48},
		{"ishr", 3, -128, 7, 1},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			bits, err := intops.Bits(tc.lw)
			require.NoError(t, err)
			it := intops.IntType(tc.lw)
			got := testkit.Eval(t, "f", hugr.TypeRow{it, it}, hugr.TypeRow{it}, binaryBody(tc.op, tc.lw),
				exec.Int(bits, tc.x), exec.Int(bits, tc.y))
			assert.Equal(t, tc.want, got.Signed())
		})
	}
}

func TestUnaryOps(t *testing.T) {
	cases := []struct {
		op      string
		in, out int64
	}{
		{"ineg", 5, -5},
		{"inot", 0, -1},
		{"iabs", -9, 9},
		{"iabs", 9, 9},
	}
	it := intops.IntType(6)
	for _, tc := range cases {
		got := testkit.Eval(t, "f", hugr.TypeRow{it}, hugr.TypeRow{it}, func(b *hugr.DataflowBuilder) []hugr.Wire {
			return b.Add(intops.UnaryOp(tc.op, 6), b.Input(0))
		}, exec.Int(64, tc.in))
		assert.Equal(t, tc.out, got.Signed(), "%s(%d)", tc.op, tc.in)
	}
}

func TestComparisonsReturnBooleans(t *testing.T) {
	cases := []struct {
		op   string
		x, y int64
		want bool
	}{
		{"ieq", 3, 3, true},
		{"ine", 3, 3, false},
		{"ilt_s", -1, 0, true},
		{"ilt_u", -1, 0, false},
		{"igt_s", 2, 1, true},
		{"igt_u", 1, -1, false},
		{"ile_s", 4, 4, true},
		{"ile_u", 5, 4, false},
		{"ige_s", -5, 4, false},
		{"ige_u", -5, 4, true},
	}
	it := intops.IntType(6)
	for _, tc := range cases {
		got := testkit.Eval(t, "f", hugr.TypeRow{it, it}, hugr.TypeRow{hugr.Bool()}, func(b *hugr.DataflowBuilder) []hugr.Wire {
			return b.Add(intops.CompareOp(tc.op, 6), b.Input(0), b.Input(1))
		}, exec.Int(64, tc.x), exec.Int(64, tc.y))
		assert.Equal(t, tc.want, got.Field(0).Truth(), "%s(%d, %d)", tc.op, tc.x, tc.y)
	}
}

func TestWidening(t *testing.T) {
	from, to := intops.IntType(3), intops.IntType(6)
	for _, tc := range []struct {
		op   string
		want int64
	}{{"iwiden_s", -3}, {"iwiden_u", 253}} {
		got := testkit.Eval(t, "f", hugr.TypeRow{from}, hugr.TypeRow{to}, func(b *hugr.DataflowBuilder) []hugr.Wire {
			return b.Add(intops.WidenOp(tc.op, 3, 6), b.Input(0))
		}, exec.Int(8, -3))
		assert.Equal(t, tc.want, got.Signed(), tc.op)
	}
}

func TestNarrowingIsChecked(t *testing.T) {
	from := intops.IntType(6)
	result := intops.NarrowOp("inarrow_s", 6, 3).Custom.Signature.Output[0]
	body := func(b *hugr.DataflowBuilder) []hugr.Wire {
		return b.Add(intops.NarrowOp("inarrow_s", 6, 3), b.Input(0))
	}

	ok := testkit.Eval(t, "f", hugr.TypeRow{from}, hugr.TypeRow{result}, body, exec.Int(64, -100))
	assert.Equal(t, uint64(0), ok.Field(0).Unsigned())
	assert.Equal(t, int64(-100), ok.Field(1).Field(0).Signed())

	bad := testkit.Eval(t, "f", hugr.TypeRow{from}, hugr.TypeRow{result}, body, exec.Int(64, 300))
	assert.Equal(t, uint64(1), bad.Field(0).Unsigned())
	assert.Equal(t, int64(intops.NarrowSignal), bad.Field(2).Field(0).Field(0).Signed())
}

func TestConstantsAreTruncated(t *testing.T) {
	it := intops.IntType(3)
	got := testkit.Eval(t, "f", nil, hugr.TypeRow{it}, func(b *hugr.DataflowBuilder) []hugr.Wire {
		return []hugr.Wire{b.LoadConst(intops.Int(3, 300))}
	})
	assert.Equal(t, int64(44), got.Signed())
}

func TestLogWidthOutOfRange(t *testing.T) {
	_, err := intops.Bits(intops.MaxLogWidth + 1)
	require.Error(t, err)

	wide := intops.IntType(intops.MaxLogWidth + 1)
	h := testkit.Func(t, "f", hugr.TypeRow{wide}, hugr.TypeRow{wide}, func(b *hugr.DataflowBuilder) []hugr.Wire {
		return []hugr.Wire{b.Input(0)}
	})
	_, err = testkit.LowerErr(h, "f")
	require.Error(t, err)
	assert.True(t, lower.IsKind(err, lower.KindUnsupportedType))
}
