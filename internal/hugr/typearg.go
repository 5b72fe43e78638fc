package hugr

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeArgKind tags a TypeArg.
type TypeArgKind uint8

const (
	ArgType TypeArgKind = iota
	ArgBoundedNat
	ArgString
	ArgSequence
)

// TypeArg instantiates a TypeParam, or parameterises an extension type.
type TypeArg struct {
	Kind TypeArgKind `json:"kind" msgpack:"kind"`
	Type *Type       `json:"type,omitempty" msgpack:"type,omitempty"`
	Nat  uint64      `json:"nat,omitempty" msgpack:"nat,omitempty"`
	Str  string      `json:"str,omitempty" msgpack:"str,omitempty"`
	Seq  []TypeArg   `json:"seq,omitempty" msgpack:"seq,omitempty"`
}

// TypeArgOf wraps a type.
func TypeArgOf(t Type) TypeArg {
	tt := t
	return TypeArg{Kind: ArgType, Type: &tt}
}

// NatArg wraps a bounded natural.
func NatArg(n uint64) TypeArg { return TypeArg{Kind: ArgBoundedNat, Nat: n} }

// StringArg wraps a string.
func StringArg(s string) TypeArg { return TypeArg{Kind: ArgString, Str: s} }

func (a TypeArg) String() string {
	var sb strings.Builder
	a.write(&sb)
	return sb.String()
}

func (a TypeArg) write(sb *strings.Builder) {
	switch a.Kind {
	case ArgType:
		if a.Type == nil {
			sb.WriteString("<nil>")
			return
		}
		a.Type.write(sb)
	case ArgBoundedNat:
		sb.WriteString(strconv.FormatUint(a.Nat, 10))
	case ArgString:
		sb.WriteString(strconv.Quote(a.Str))
	case ArgSequence:
		sb.WriteByte('[')
		for i, x := range a.Seq {
			if i > 0 {
				sb.WriteString(", ")
			}
			x.write(sb)
		}
		sb.WriteByte(']')
	}
}

// Subst binds the parameters of a polymorphic signature, by index.
type Subst []TypeArg

// Key is a canonical rendering suitable as a map key. The empty
// substitution has the empty key.
func (s Subst) Key() string {
	if len(s) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, a := range s {
		if i > 0 {
			sb.WriteByte(';')
		}
		a.write(&sb)
	}
	return sb.String()
}

// HasVariables reports whether t mentions any type variable.
func (t Type) HasVariables() bool {
	switch t.Kind {
	case TypeVariable:
		return true
	case TypeExtension:
		if t.Custom != nil {
			for _, a := range t.Custom.Args {
				if a.HasVariables() {
					return true
				}
			}
		}
	case TypeSum:
		if t.Sum != nil {
			for _, r := range t.Sum.Rows {
				for _, x := range r {
					if x.HasVariables() {
						return true
					}
				}
			}
		}
	case TypeFunction:
		if t.Func != nil {
			for _, x := range t.Func.Input.Concat(t.Func.Output) {
				if x.HasVariables() {
					return true
				}
			}
		}
	}
	return false
}

// HasVariables reports whether a mentions any type variable.
func (a TypeArg) HasVariables() bool {
	switch a.Kind {
	case ArgType:
		return a.Type != nil && a.Type.HasVariables()
	case ArgSequence:
		for _, x := range a.Seq {
			if x.HasVariables() {
				return true
			}
		}
	}
	return false
}

// Substitute replaces every type variable bound by s. Variables outside the
// range of s, or bound to a non-type argument, are an error.
func (t Type) Substitute(s Subst) (Type, error) {
	if len(s) == 0 || !t.HasVariables() {
		return t, nil
	}
	switch t.Kind {
	case TypeVariable:
		if t.Var < 0 || t.Var >= len(s) {
			return Type{}, fmt.Errorf("type variable $%d is unbound (%d args)", t.Var, len(s))
		}
		arg := s[t.Var]
		if arg.Kind != ArgType || arg.Type == nil {
			return Type{}, fmt.Errorf("type variable $%d bound to non-type argument %s", t.Var, arg)
		}
		return *arg.Type, nil
	case TypeExtension:
		args := make([]TypeArg, len(t.Custom.Args))
		for i, a := range t.Custom.Args {
			na, err := a.Substitute(s)
			if err != nil {
				return Type{}, err
			}
			args[i] = na
		}
		return Extension(t.Custom.Extension, t.Custom.Name, args...), nil
	case TypeSum:
		rows := make([]TypeRow, len(t.Sum.Rows))
		for i, r := range t.Sum.Rows {
			nr, err := r.Substitute(s)
			if err != nil {
				return Type{}, err
			}
			rows[i] = nr
		}
		return Sum(rows...), nil
	case TypeFunction:
		ft, err := t.Func.Substitute(s)
		if err != nil {
			return Type{}, err
		}
		return Function(ft), nil
	}
	return t, nil
}

// Substitute applies s to every element.
func (r TypeRow) Substitute(s Subst) (TypeRow, error) {
	out := make(TypeRow, len(r))
	for i, t := range r {
		nt, err := t.Substitute(s)
		if err != nil {
			return nil, err
		}
		out[i] = nt
	}
	return out, nil
}

// Substitute applies s to inputs and outputs.
func (f FuncType) Substitute(s Subst) (FuncType, error) {
	in, err := f.Input.Substitute(s)
	if err != nil {
		return FuncType{}, err
	}
	out, err := f.Output.Substitute(s)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Input: in, Output: out}, nil
}

// Substitute applies s inside a type argument.
func (a TypeArg) Substitute(s Subst) (TypeArg, error) {
	switch a.Kind {
	case ArgType:
		if a.Type == nil {
			return a, nil
		}
		nt, err := a.Type.Substitute(s)
		if err != nil {
			return TypeArg{}, err
		}
		return TypeArgOf(nt), nil
	case ArgSequence:
		seq := make([]TypeArg, len(a.Seq))
		for i, x := range a.Seq {
			nx, err := x.Substitute(s)
			if err != nil {
				return TypeArg{}, err
			}
			seq[i] = nx
		}
		return TypeArg{Kind: ArgSequence, Seq: seq}, nil
	}
	return a, nil
}

// Instantiate applies args to a polymorphic signature.
func (p PolyFuncType) Instantiate(args []TypeArg) (FuncType, error) {
	if len(args) != len(p.Params) {
		return FuncType{}, fmt.Errorf("signature %s expects %d type args, got %d", p, len(p.Params), len(args))
	}
	for i, a := range args {
		if !argFits(p.Params[i].Kind, a.Kind) {
			return FuncType{}, fmt.Errorf("type arg %d (%s) does not fit its parameter", i, a)
		}
	}
	return p.Body.Substitute(Subst(args))
}

func argFits(p TypeParamKind, a TypeArgKind) bool {
	switch p {
	case ParamType:
		return a == ArgType
	case ParamBoundedNat:
		return a == ArgBoundedNat
	case ParamString:
		return a == ArgString
	case ParamSequence:
		return a == ArgSequence
	}
	return false
}
