// Package testkit builds small graphs, lowers them with the bundled
// extensions and runs the result, for use in tests.
package testkit

import (
	"context"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/stretchr/testify/require"

	"hugrllvm/internal/exec"
	"hugrllvm/internal/extension/std"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/verify"
)

// Body fills in a function region and returns its outputs.
type Body func(b *hugr.DataflowBuilder) []hugr.Wire

// Func builds a module holding the single function name(in) -> out.
func Func(t testing.TB, name string, in, out hugr.TypeRow, body Body) *hugr.Hugr {
	t.Helper()
	mb := hugr.NewModuleBuilder()
	f := mb.DefineFunction(name, hugr.Mono(hugr.NewFuncType(in, out)))
	f.Finish(body(f)...)
	h, err := mb.Finish()
	require.NoError(t, err)
	return h
}

// Lower emits h with every bundled extension, exporting entry under its
// bare name, and checks the module is well formed.
func Lower(t testing.TB, h *hugr.Hugr, entry ...string) *ir.Module {
	t.Helper()
	m, err := LowerErr(h, entry...)
	require.NoError(t, err)
	require.NoError(t, verify.Module(m))
	return m
}

// LowerErr is Lower for runs that are expected to fail.
func LowerErr(h *hugr.Hugr, entry ...string) (*ir.Module, error) {
	reg, err := std.Registry(std.Options{})
	if err != nil {
		return nil, err
	}
	return lower.EmitModule(context.Background(), h, reg, lower.Options{ModuleName: "testkit", Entry: entry})
}

// Run builds, lowers and interprets name(in) -> out on args.
func Run(t testing.TB, name string, in, out hugr.TypeRow, body Body, args []exec.Value, opts ...exec.Option) (exec.Value, error) {
	t.Helper()
	m := Lower(t, Func(t, name, in, out, body), name)
	return exec.Run(m, name, args, opts...)
}

// Eval is Run for functions that must not fail.
func Eval(t testing.TB, name string, in, out hugr.TypeRow, body Body, args ...exec.Value) exec.Value {
	t.Helper()
	v, err := Run(t, name, in, out, body, args)
	require.NoError(t, err)
	return v
}
