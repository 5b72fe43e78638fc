package rotation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hugrllvm/internal/exec"
	"hugrllvm/internal/extension/floatops"
	"hugrllvm/internal/extension/rotation"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/testkit"
)

func TestHalfTurnArithmetic(t *testing.T) {
	f64 := floatops.Float64Type()
	got := testkit.Eval(t, "f", hugr.TypeRow{f64}, hugr.TypeRow{f64}, func(b *hugr.DataflowBuilder) []hugr.Wire {
		r := b.Add(rotation.FromHalfTurnsOp(), b.Input(0))[0]
		sum := b.Add(rotation.AddOp(), r, b.LoadConst(rotation.HalfTurns(0.25)))[0]
		return b.Add(rotation.ToHalfTurnsOp(), sum)
	}, exec.Float(0.5))
	assert.InDelta(t, 0.75, got.Float, 1e-12)
}
