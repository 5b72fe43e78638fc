package floatops_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"hugrllvm/internal/exec"
	"hugrllvm/internal/extension/floatops"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/testkit"
)

var f64 = floatops.Float64Type()

func TestArithmetic(t *testing.T) {
	cases := []struct {
		op   string
		n    int
		x, y float64
		want float64
	}{
		{"fadd", 2, 1.5, 2.25, 3.75},
		{"fsub", 2, 1.5, 2.25, -0.75},
		{"fmul", 2, 1.5, -2, -3},
		{"fdiv", 2, 1, 4, 0.25},
		{"fmax", 2, -1, 3, 3},
		{"fmin", 2, -1, 3, -1},
		{"fneg", 1, 2.5, 0, -2.5},
		{"fabs", 1, -2.5, 0, 2.5},
	}
	for _, tc := range cases {
		in := hugr.TypeRow{f64, f64}[:tc.n]
		args := []exec.Value{exec.Float(tc.x), exec.Float(tc.y)}[:tc.n]
		got := testkit.Eval(t, "f", in, hugr.TypeRow{f64}, func(b *hugr.DataflowBuilder) []hugr.Wire {
			return b.Add(floatops.Op(tc.op, tc.n, f64), b.Inputs()...)
		}, args...)
		assert.InDelta(t, tc.want, got.Float, 1e-12, tc.op)
	}
}

func TestComparisons(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		op   string
		x, y float64
		want bool
	}{
		{"feq", 1, 1, true},
		{"feq", nan, nan, false},
		{"fne", nan, 1, true},
		{"flt", 1, 2, true},
		{"fgt", 1, 2, false},
		{"fle", 2, 2, true},
		{"fge", nan, 2, false},
	}
	for _, tc := range cases {
		got := testkit.Eval(t, "f", hugr.TypeRow{f64, f64}, hugr.TypeRow{hugr.Bool()}, func(b *hugr.DataflowBuilder) []hugr.Wire {
			return b.Add(floatops.Op(tc.op, 2, hugr.Bool()), b.Input(0), b.Input(1))
		}, exec.Float(tc.x), exec.Float(tc.y))
		assert.Equal(t, tc.want, got.Field(0).Truth(), "%s(%v, %v)", tc.op, tc.x, tc.y)
	}
}

func TestConstants(t *testing.T) {
	got := testkit.Eval(t, "f", nil, hugr.TypeRow{f64}, func(b *hugr.DataflowBuilder) []hugr.Wire {
		return []hugr.Wire{b.LoadConst(floatops.Float64(math.Pi))}
	})
	assert.Equal(t, math.Pi, got.Float)
}
