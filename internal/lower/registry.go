package lower

import (
	"fmt"
	"sort"

	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/typeconv"
)

// OpKey identifies an extension operation.
type OpKey struct {
	Extension string
	Op        string
}

func (k OpKey) String() string { return k.Extension + "." + k.Op }

// ConstKey identifies an extension constant kind.
type ConstKey struct {
	Extension string
	Name      string
}

func (k ConstKey) String() string { return k.Extension + "." + k.Name }

// OpArgs is what a handler sees of a Custom node. Op carries the concrete
// signature and type args, already substituted for the enclosing
// instantiation.
type OpArgs struct {
	Node    hugr.NodeID
	Op      *hugr.CustomOp
	Inputs  []value.Value
	Outputs hugr.TypeRow
}

// Want fails unless the operation has exactly n inputs and m outputs.
func (a OpArgs) Want(n, m int) error {
	if len(a.Inputs) != n || len(a.Outputs) != m {
		return fmt.Errorf("%s takes %d inputs and %d outputs, got %d and %d",
			a.Op.QualifiedName(), n, m, len(a.Inputs), len(a.Outputs))
	}
	return nil
}

// StringArg returns type argument i when it is a string.
func (a OpArgs) StringArg(i int) (string, error) {
	if i >= len(a.Op.Args) || a.Op.Args[i].Kind != hugr.ArgString {
		return "", fmt.Errorf("%s: type argument %d is not a string", a.Op.QualifiedName(), i)
	}
	return a.Op.Args[i].Str, nil
}

// OpHandler lowers one extension operation. It appends instructions at
// fc.Block(), may add blocks, and must leave fc.Block() unterminated.
// Handlers keep no state between calls.
type OpHandler interface {
	LowerOp(fc *FuncContext, args OpArgs) ([]value.Value, error)
}

// OpFunc adapts a function to OpHandler.
type OpFunc func(fc *FuncContext, args OpArgs) ([]value.Value, error)

func (f OpFunc) LowerOp(fc *FuncContext, args OpArgs) ([]value.Value, error) { return f(fc, args) }

// ConstFunc lowers one extension constant.
type ConstFunc func(fc *FuncContext, c *hugr.CustomConst) (value.Value, error)

// Extension contributes types, constants and operations to a registry.
type Extension interface {
	Name() string
	Register(b *RegistryBuilder)
}

// RegistryBuilder collects contributions. Later registrations for a key
// replace earlier ones.
type RegistryBuilder struct {
	ops    map[OpKey]OpHandler
	consts map[ConstKey]ConstFunc
	conv   *typeconv.Converter
	exts   []string
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		ops:    make(map[OpKey]OpHandler),
		consts: make(map[ConstKey]ConstFunc),
		conv:   typeconv.NewConverter(),
	}
}

// Op registers h for ext.name.
func (b *RegistryBuilder) Op(ext, name string, h OpHandler) *RegistryBuilder {
	b.ops[OpKey{Extension: ext, Op: name}] = h
	return b
}

// OpFunc registers fn for ext.name.
func (b *RegistryBuilder) OpFunc(ext, name string, fn OpFunc) *RegistryBuilder {
	return b.Op(ext, name, fn)
}

// Const registers the lowering of constants ext.name.
func (b *RegistryBuilder) Const(ext, name string, fn ConstFunc) *RegistryBuilder {
	b.consts[ConstKey{Extension: ext, Name: name}] = fn
	return b
}

// Type registers the conversion of extension type ext.name.
func (b *RegistryBuilder) Type(ext, name string, fn typeconv.TypeFunc) *RegistryBuilder {
	b.conv.Register(typeconv.Key{Extension: ext, Name: name}, fn)
	return b
}

// Add registers each extension in order.
func (b *RegistryBuilder) Add(exts ...Extension) *RegistryBuilder {
	for _, e := range exts {
		e.Register(b)
		b.exts = append(b.exts, e.Name())
	}
	return b
}

// Finish freezes the builder's contents. The builder may keep being used;
// the returned registry does not observe later changes.
func (b *RegistryBuilder) Finish() *Registry {
	r := &Registry{
		ops:    make(map[OpKey]OpHandler, len(b.ops)),
		consts: make(map[ConstKey]ConstFunc, len(b.consts)),
		conv:   b.conv.Clone(),
		exts:   append([]string(nil), b.exts...),
	}
	for k, h := range b.ops {
		r.ops[k] = h
	}
	for k, fn := range b.consts {
		r.consts[k] = fn
	}
	return r
}

// Registry is the read-only table consulted during lowering. It is safe to
// share between concurrent runs.
type Registry struct {
	ops    map[OpKey]OpHandler
	consts map[ConstKey]ConstFunc
	conv   *typeconv.Converter
	exts   []string
}

// Lookup returns the handler for k.
func (r *Registry) Lookup(k OpKey) (OpHandler, bool) {
	h, ok := r.ops[k]
	return h, ok
}

// LookupConst returns the constant lowering for k.
func (r *Registry) LookupConst(k ConstKey) (ConstFunc, bool) {
	fn, ok := r.consts[k]
	return fn, ok
}

// Converter returns the extension type hooks.
func (r *Registry) Converter() *typeconv.Converter { return r.conv }

// Ops lists registered operations sorted by extension then name.
func (r *Registry) Ops() []OpKey {
	out := make([]OpKey, 0, len(r.ops))
	for k := range r.ops {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Extension != out[j].Extension {
			return out[i].Extension < out[j].Extension
		}
		return out[i].Op < out[j].Op
	})
	return out
}

// Consts lists registered constant kinds in sorted order.
func (r *Registry) Consts() []ConstKey {
	out := make([]ConstKey, 0, len(r.consts))
	for k := range r.consts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Extension != out[j].Extension {
			return out[i].Extension < out[j].Extension
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Types lists registered extension types in sorted order.
func (r *Registry) Types() []typeconv.Key { return r.conv.Keys() }

// Extensions lists the names of added extensions in registration order.
func (r *Registry) Extensions() []string { return append([]string(nil), r.exts...) }

func (r *Registry) String() string {
	return fmt.Sprintf("registry(%d ops, %d consts, %d types)", len(r.ops), len(r.consts), len(r.conv.Keys()))
}
