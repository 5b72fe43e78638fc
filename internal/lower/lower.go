// Package lower translates a graph IR module into an LLVM IR module.
//
// EmitModule is the single entry point. It seeds a worklist with the
// module's top-level functions, emits each body region by region and
// follows calls to further functions and instantiations until the
// worklist is empty. Extension operations, constants and types are
// delegated to the contributions of a Registry.
package lower

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/llir/llvm/ir"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/trace"
)

// EmitModule lowers the Module-rooted graph h. On error no module is
// returned; the error is a *Error naming the offending node, or ctx.Err()
// when ctx is cancelled between functions.
func EmitModule(ctx context.Context, h *hugr.Hugr, reg *Registry, opts Options) (*ir.Module, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if h == nil {
		return nil, &Error{Kind: KindInvariantViolation, Node: hugr.NoNode, Msg: "no graph to lower"}
	}
	if reg == nil {
		return nil, &Error{Kind: KindInvariantViolation, Node: hugr.NoNode, Msg: "no registry"}
	}
	root := h.Root()
	if k := h.Op(root).Kind; k != hugr.OpModule {
		return nil, invariant(h, root, "root is %s, want Module", k)
	}

	mc := newModuleContext(ctx, reg, opts)
	mc.debug = newDebugInfo(mc.mod, h)
	runID := uuid.NewString()
	name := opts.ModuleName
	if name == "" {
		name = "module"
	}
	mc.span = trace.Begin(mc.tr, trace.ScopeModule, "lower:"+name, trace.ParentSpan(ctx)).
		WithExtra("run", runID)

	err := mc.seed(h, opts.Entry)
	if err == nil {
		err = mc.DrainWorklist()
	}
	detail := fmt.Sprintf("%d functions", mc.emitted)
	if err != nil {
		detail = err.Error()
	}
	mc.span.End(detail)
	if err != nil {
		return nil, err
	}
	return mc.mod, nil
}

// seed declares the roots of the run: the named entry points, or every
// monomorphic top-level definition. Polymorphic definitions are only
// emitted at the instantiations that are called.
func (mc *ModuleContext) seed(h *hugr.Hugr, entry []string) error {
	found := make(map[string]bool, len(entry))
	for _, c := range h.Children(h.Root()) {
		op := h.Op(c)
		if op.Kind != hugr.OpFuncDefn || op.Poly == nil {
			continue
		}
		if len(entry) > 0 && !mc.entry[op.Name] {
			continue
		}
		if op.Poly.IsPolymorphic() {
			if len(entry) > 0 {
				return invariant(h, c, "entry point %q is polymorphic", op.Name)
			}
			continue
		}
		if found[op.Name] {
			return invariant(h, c, "entry point %q is defined more than once", op.Name)
		}
		found[op.Name] = len(entry) > 0
		if _, err := mc.DeclareFunction(h, c, nil); err != nil {
			return err
		}
	}
	for _, e := range entry {
		if !found[e] {
			return invariant(h, h.Root(), "entry point %q not found", e)
		}
	}
	return nil
}
