package lower

import (
	"context"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/trace"
	"hugrllvm/internal/typeconv"
)

// Options configures one lowering run.
type Options struct {
	// ModuleName becomes the module's source_filename.
	ModuleName string
	// ManglePrefix prefixes definition names; DefaultManglePrefix when empty.
	ManglePrefix string
	// NodeSuffix appends the defining node id to definition names.
	NodeSuffix bool
	// Entry restricts the roots of the run to the named top-level functions
	// and emits them under their bare names. Empty means every monomorphic
	// top-level definition, all mangled.
	Entry []string
}

type funcKey struct {
	h    *hugr.Hugr
	node hugr.NodeID
	args string
}

type pendingFunc struct {
	h     *hugr.Hugr
	node  hugr.NodeID
	subst hugr.Subst
	fn    *ir.Func
}

// ModuleContext is the per-run emission state: the module under
// construction, the function cache and the worklist of bodies still to
// emit. It is not safe for concurrent use.
type ModuleContext struct {
	ctx   context.Context
	tr    trace.Tracer
	span  *trace.Span
	mod   *ir.Module
	reg   *Registry
	types *typeconv.Session
	namer *Namer
	entry map[string]bool
	debug *debugInfo

	funcs   map[funcKey]*ir.Func
	externs map[string]*ir.Func
	globals map[string]*ir.Global
	work    []pendingFunc
	emitted int
}

func newModuleContext(ctx context.Context, reg *Registry, opts Options) *ModuleContext {
	mod := ir.NewModule()
	mod.SourceFilename = opts.ModuleName
	prefix := opts.ManglePrefix
	if prefix == "" {
		prefix = DefaultManglePrefix
	}
	mc := &ModuleContext{
		ctx:     ctx,
		tr:      trace.FromContext(ctx),
		mod:     mod,
		reg:     reg,
		types:   reg.Converter().NewSession(mod),
		namer:   NewNamer(prefix, opts.NodeSuffix),
		entry:   make(map[string]bool, len(opts.Entry)),
		funcs:   make(map[funcKey]*ir.Func),
		externs: make(map[string]*ir.Func),
		globals: make(map[string]*ir.Global),
	}
	for _, e := range opts.Entry {
		mc.entry[e] = true
	}
	return mc
}

// Context returns the run's context.
func (mc *ModuleContext) Context() context.Context { return mc.ctx }

// Module returns the module under construction.
func (mc *ModuleContext) Module() *ir.Module { return mc.mod }

// Types returns the run's type conversion session.
func (mc *ModuleContext) Types() *typeconv.Session { return mc.types }

// Registry returns the registry driving the run.
func (mc *ModuleContext) Registry() *Registry { return mc.reg }

// DeclareFunction returns the handle of FuncDefn or FuncDecl n of h
// instantiated at args. The handle is created and cached before the body
// is queued, so recursive calls resolve to it. Repeated calls with the
// same (graph, node, args) return the same handle.
func (mc *ModuleContext) DeclareFunction(h *hugr.Hugr, n hugr.NodeID, args []hugr.TypeArg) (*ir.Func, error) {
	op := h.Op(n)
	if op == nil {
		return nil, &Error{Kind: KindInvariantViolation, Node: n, Msg: "function node does not exist"}
	}
	if op.Kind != hugr.OpFuncDefn && op.Kind != hugr.OpFuncDecl {
		return nil, invariant(h, n, "static edge targets %s, not a function", op.Kind)
	}
	for i, a := range args {
		if a.HasVariables() {
			return nil, invariant(h, n, "type argument %d (%s) is not concrete", i, a)
		}
	}
	key := funcKey{h: h, node: n, args: hugr.Subst(args).Key()}
	if fn, ok := mc.funcs[key]; ok {
		return fn, nil
	}
	if op.Poly == nil {
		return nil, invariant(h, n, "function without signature")
	}
	ft, err := op.Poly.Instantiate(args)
	if err != nil {
		return nil, invariant(h, n, "instantiate: %v", err)
	}
	sig, err := mc.types.FuncType(ft, nil)
	if err != nil {
		return nil, typeError(h, n, err)
	}

	if op.Kind == hugr.OpFuncDecl {
		fn, err := mc.ExternFunc(nfc(op.Name)+mangleArgs(args), sig)
		if err != nil {
			return nil, invariant(h, n, "%v", err)
		}
		mc.funcs[key] = fn
		return fn, nil
	}

	var name string
	if h.Parent(n) == h.Root() && mc.entry[op.Name] {
		name = mc.namer.Exported(op.Name, args)
	} else {
		name = mc.namer.Definition(op.Name, n, args)
	}
	fn := mc.newFunc(name, sig)
	if err := mc.debug.attach(fn, h, n, op.Name); err != nil {
		return nil, err
	}
	mc.funcs[key] = fn
	mc.work = append(mc.work, pendingFunc{h: h, node: n, subst: hugr.Subst(args), fn: fn})
	return fn, nil
}

// DeclareConstFunction returns the handle of a function-valued constant:
// nested is emitted as its own function, keyed by the graph identity.
func (mc *ModuleContext) DeclareConstFunction(h *hugr.Hugr, constNode hugr.NodeID, nested *hugr.Hugr) (*ir.Func, error) {
	if nested == nil {
		return nil, invariant(h, constNode, "function constant without a graph")
	}
	key := funcKey{h: nested, node: nested.Root()}
	if fn, ok := mc.funcs[key]; ok {
		return fn, nil
	}
	ft, err := nested.RootSignature()
	if err != nil {
		return nil, invariant(h, constNode, "function constant: %v", err)
	}
	sig, err := mc.types.FuncType(ft, nil)
	if err != nil {
		return nil, typeError(h, constNode, err)
	}
	fn := mc.newFunc(mc.namer.Definition(fmt.Sprintf("const_fun_%d", constNode), constNode, nil), sig)
	fn.Linkage = enum.LinkagePrivate
	mc.funcs[key] = fn
	mc.work = append(mc.work, pendingFunc{h: nested, node: nested.Root(), fn: fn})
	return fn, nil
}

func (mc *ModuleContext) newFunc(name string, sig *types.FuncType) *ir.Func {
	params := make([]*ir.Param, len(sig.Params))
	for i, t := range sig.Params {
		params[i] = ir.NewParam("", t)
	}
	fn := mc.mod.NewFunc(name, sig.RetType, params...)
	fn.Sig.Variadic = sig.Variadic
	return fn
}

// ExternFunc returns the body-less declaration name with signature sig,
// creating it on first use. Asking again with a different signature fails.
func (mc *ModuleContext) ExternFunc(name string, sig *types.FuncType) (*ir.Func, error) {
	if fn, ok := mc.externs[name]; ok {
		if !fn.Sig.Equal(sig) {
			return nil, fmt.Errorf("external function %q redeclared with signature %s, previously %s", name, sig, fn.Sig)
		}
		return fn, nil
	}
	if !mc.namer.Reserve(name) {
		return nil, fmt.Errorf("external function %q clashes with an emitted symbol", name)
	}
	fn := mc.newFunc(name, sig)
	mc.externs[name] = fn
	return fn, nil
}

// Global returns the global name, defining it on first use. init may be
// nil for an external declaration. Asking again with a different content
// type or initialiser fails.
func (mc *ModuleContext) Global(name string, typ types.Type, init constant.Constant, immutable bool) (*ir.Global, error) {
	if g, ok := mc.globals[name]; ok {
		if !g.ContentType.Equal(typ) {
			return nil, fmt.Errorf("global %q redeclared with type %s, previously %s", name, typ, g.ContentType)
		}
		if !sameInit(g.Init, init) {
			return nil, fmt.Errorf("global %q redeclared with a different initialiser", name)
		}
		return g, nil
	}
	if !mc.namer.Reserve(name) {
		return nil, fmt.Errorf("global %q clashes with an emitted symbol", name)
	}
	var g *ir.Global
	if init == nil {
		g = mc.mod.NewGlobal(name, typ)
	} else {
		if !init.Type().Equal(typ) {
			return nil, fmt.Errorf("global %q: initialiser of type %s, want %s", name, init.Type(), typ)
		}
		g = mc.mod.NewGlobalDef(name, init)
		g.Linkage = enum.LinkagePrivate
	}
	g.Immutable = immutable
	mc.globals[name] = g
	return g, nil
}

func sameInit(a, b constant.Constant) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Ident() == b.Ident()
}

// DrainWorklist emits queued function bodies in FIFO order until none are
// left. Bodies may queue further functions.
func (mc *ModuleContext) DrainWorklist() error {
	for len(mc.work) > 0 {
		if err := mc.ctx.Err(); err != nil {
			return err
		}
		p := mc.work[0]
		mc.work = mc.work[1:]
		if err := mc.emitBody(p); err != nil {
			return err
		}
		mc.emitted++
	}
	return nil
}

func (mc *ModuleContext) emitBody(p pendingFunc) error {
	span := trace.Begin(mc.tr, trace.ScopeFunction, "func:"+p.fn.Name(), mc.span.ID())
	fc := newFuncContext(mc, p.h, p.fn, p.subst, span)
	err := fc.emitFunction(p.node)
	detail := ""
	if err != nil {
		detail = "error"
	}
	span.WithExtra("blocks", fmt.Sprint(len(p.fn.Blocks))).End(detail)
	return err
}
