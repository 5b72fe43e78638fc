package hugr

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the type forms of the graph IR.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeExtension
	TypeSum
	TypeFunction
	TypeVariable
)

var typeKindNames = [...]string{
	TypeInvalid:   "invalid",
	TypeExtension: "extension",
	TypeSum:       "sum",
	TypeFunction:  "function",
	TypeVariable:  "variable",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", k)
}

// MarshalText encodes the kind by name.
func (k TypeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *TypeKind) UnmarshalText(b []byte) error {
	for i, name := range typeKindNames {
		if name == string(b) {
			*k = TypeKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown type kind %q", b)
}

// Type is a graph IR type. Exactly one payload is meaningful for a given Kind.
type Type struct {
	Kind   TypeKind    `json:"kind" msgpack:"kind"`
	Custom *CustomType `json:"custom,omitempty" msgpack:"custom,omitempty"`
	Sum    *SumType    `json:"sum,omitempty" msgpack:"sum,omitempty"`
	Func   *FuncType   `json:"func,omitempty" msgpack:"func,omitempty"`
	// Var is the index of the type variable in the enclosing polymorphic signature.
	Var int `json:"var,omitempty" msgpack:"var,omitempty"`
}

// CustomType is an opaque type owned by an extension.
type CustomType struct {
	Extension string    `json:"extension" msgpack:"extension"`
	Name      string    `json:"name" msgpack:"name"`
	Args      []TypeArg `json:"args,omitempty" msgpack:"args,omitempty"`
}

// SumType is a tagged union; each variant carries a row of values.
type SumType struct {
	Rows []TypeRow `json:"rows" msgpack:"rows"`
}

// TypeRow is an ordered sequence of types, e.g. the inputs of a node.
type TypeRow []Type

// FuncType is a monomorphic function signature.
type FuncType struct {
	Input  TypeRow `json:"input" msgpack:"input"`
	Output TypeRow `json:"output" msgpack:"output"`
}

// TypeParamKind is the kind of value a type parameter binds.
type TypeParamKind uint8

const (
	ParamType TypeParamKind = iota
	ParamBoundedNat
	ParamString
	ParamSequence
)

// TypeParam declares one parameter of a polymorphic signature.
type TypeParam struct {
	Kind TypeParamKind `json:"kind" msgpack:"kind"`
	Name string        `json:"name,omitempty" msgpack:"name,omitempty"`
}

// PolyFuncType is a function signature generic over Params. The body may
// refer to params through TypeVariable types.
type PolyFuncType struct {
	Params []TypeParam `json:"params,omitempty" msgpack:"params,omitempty"`
	Body   FuncType    `json:"body" msgpack:"body"`
}

// Extension builds an extension type.
func Extension(ext, name string, args ...TypeArg) Type {
	return Type{Kind: TypeExtension, Custom: &CustomType{Extension: ext, Name: name, Args: args}}
}

// Sum builds a sum type from its variant rows.
func Sum(rows ...TypeRow) Type {
	cp := make([]TypeRow, len(rows))
	copy(cp, rows)
	return Type{Kind: TypeSum, Sum: &SumType{Rows: cp}}
}

// UnitSum builds a sum of n empty variants.
func UnitSum(n int) Type {
	rows := make([]TypeRow, n)
	for i := range rows {
		rows[i] = TypeRow{}
	}
	return Sum(rows...)
}

// Bool is the two-variant unit sum; tag 1 is true.
func Bool() Type { return UnitSum(2) }

// Tuple is a sum with exactly one variant.
func Tuple(ts ...Type) Type { return Sum(TypeRow(ts)) }

// Function builds a function value type.
func Function(ft FuncType) Type {
	f := ft
	return Type{Kind: TypeFunction, Func: &f}
}

// Variable refers to parameter idx of the enclosing polymorphic signature.
func Variable(idx int) Type { return Type{Kind: TypeVariable, Var: idx} }

// NewFuncType builds a function signature.
func NewFuncType(in, out TypeRow) FuncType {
	return FuncType{Input: in, Output: out}
}

// Mono wraps a monomorphic signature.
func Mono(ft FuncType) PolyFuncType { return PolyFuncType{Body: ft} }

// IsPolymorphic reports whether the signature declares parameters.
func (p PolyFuncType) IsPolymorphic() bool { return len(p.Params) > 0 }

// IsTuple reports whether t is a single-variant sum.
func (t Type) IsTuple() bool { return t.Kind == TypeSum && t.Sum != nil && len(t.Sum.Rows) == 1 }

// IsUnitSum reports whether every variant of the sum is empty.
func (t Type) IsUnitSum() bool {
	if t.Kind != TypeSum || t.Sum == nil {
		return false
	}
	for _, r := range t.Sum.Rows {
		if len(r) != 0 {
			return false
		}
	}
	return true
}

// Equal reports structural equality.
func (t Type) Equal(u Type) bool { return t.String() == u.String() }

// Equal reports element-wise equality.
func (r TypeRow) Equal(o TypeRow) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Concat returns r followed by rest without aliasing r.
func (r TypeRow) Concat(rest ...TypeRow) TypeRow {
	out := make(TypeRow, 0, len(r))
	out = append(out, r...)
	for _, x := range rest {
		out = append(out, x...)
	}
	return out
}

// String renders the canonical form used for cache keys and diagnostics.
func (t Type) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t Type) write(sb *strings.Builder) {
	switch t.Kind {
	case TypeExtension:
		if t.Custom == nil {
			sb.WriteString("<nil-ext>")
			return
		}
		sb.WriteString(t.Custom.Extension)
		sb.WriteByte('.')
		sb.WriteString(t.Custom.Name)
		if len(t.Custom.Args) > 0 {
			sb.WriteByte('<')
			for i, a := range t.Custom.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				a.write(sb)
			}
			sb.WriteByte('>')
		}
	case TypeSum:
		if t.Sum == nil {
			sb.WriteString("<nil-sum>")
			return
		}
		if t.IsTuple() {
			sb.WriteString("Tuple")
			t.Sum.Rows[0].write(sb)
			return
		}
		sb.WriteString("Sum[")
		for i, r := range t.Sum.Rows {
			if i > 0 {
				sb.WriteString(", ")
			}
			r.write(sb)
		}
		sb.WriteByte(']')
	case TypeFunction:
		if t.Func == nil {
			sb.WriteString("<nil-func>")
			return
		}
		t.Func.write(sb)
	case TypeVariable:
		fmt.Fprintf(sb, "$%d", t.Var)
	default:
		sb.WriteString("<invalid>")
	}
}

func (r TypeRow) String() string {
	var sb strings.Builder
	r.write(&sb)
	return sb.String()
}

func (r TypeRow) write(sb *strings.Builder) {
	sb.WriteByte('(')
	for i, t := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		t.write(sb)
	}
	sb.WriteByte(')')
}

func (f FuncType) String() string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

func (f FuncType) write(sb *strings.Builder) {
	sb.WriteString("fn")
	f.Input.write(sb)
	sb.WriteString(" -> ")
	f.Output.write(sb)
}

func (p PolyFuncType) String() string {
	if len(p.Params) == 0 {
		return p.Body.String()
	}
	return fmt.Sprintf("forall %d. %s", len(p.Params), p.Body)
}
