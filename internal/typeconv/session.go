package typeconv

import (
	"errors"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"hugrllvm/internal/hugr"
)

type cacheKey struct {
	typ   string
	subst string
}

// Session converts types for one lowering run. Results are cached by
// (type, substitution), so converting the same type twice yields the
// identical types.Type value. A Session is not safe for concurrent use.
type Session struct {
	conv *Converter
	mod  *ir.Module

	cache map[cacheKey]types.Type
	sums  map[string]*SumType
	funcs map[cacheKey]*types.FuncType
	seq   int
}

// NewSession starts a conversion session. Named sum layouts are declared in
// mod when it is non-nil.
func (c *Converter) NewSession(mod *ir.Module) *Session {
	return &Session{
		conv:  c,
		mod:   mod,
		cache: make(map[cacheKey]types.Type),
		sums:  make(map[string]*SumType),
		funcs: make(map[cacheKey]*types.FuncType),
	}
}

// Module returns the module receiving type definitions, if any.
func (s *Session) Module() *ir.Module { return s.mod }

// Convert maps t, after applying sub, to its LLVM representation.
func (s *Session) Convert(t hugr.Type, sub hugr.Subst) (types.Type, error) {
	key := cacheKey{typ: t.String(), subst: sub.Key()}
	if v, ok := s.cache[key]; ok {
		return v, nil
	}
	ct, err := t.Substitute(sub)
	if err != nil {
		return nil, unsupported(t, "%v", err)
	}
	ckey := cacheKey{typ: ct.String()}
	if v, ok := s.cache[ckey]; ok {
		s.cache[key] = v
		return v, nil
	}
	v, err := s.convert(ct)
	if err != nil {
		return nil, err
	}
	s.cache[ckey] = v
	s.cache[key] = v
	return v, nil
}

func (s *Session) convert(t hugr.Type) (types.Type, error) {
	switch t.Kind {
	case hugr.TypeExtension:
		if t.Custom == nil {
			return nil, unsupported(t, "missing extension payload")
		}
		k := Key{Extension: t.Custom.Extension, Name: t.Custom.Name}
		fn, ok := s.conv.Lookup(k)
		if !ok {
			return nil, unsupported(t, "no conversion registered for %s", k)
		}
		lt, err := fn(s, t.Custom)
		if err != nil {
			var ute *UnsupportedTypeError
			if errors.As(err, &ute) {
				return nil, err
			}
			return nil, unsupported(t, "%v", err)
		}
		if lt == nil {
			return nil, unsupported(t, "conversion for %s produced no type", k)
		}
		return lt, nil
	case hugr.TypeSum:
		st, err := s.sumOf(t)
		if err != nil {
			return nil, err
		}
		return st.llvm, nil
	case hugr.TypeFunction:
		if t.Func == nil {
			return nil, unsupported(t, "missing function signature")
		}
		ft, err := s.FuncType(*t.Func, nil)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(ft), nil
	case hugr.TypeVariable:
		return nil, unsupported(t, "type variable $%d is not convertible without a substitution", t.Var)
	}
	return nil, unsupported(t, "invalid type kind %s", t.Kind)
}

// Row converts every type of r.
func (s *Session) Row(r hugr.TypeRow, sub hugr.Subst) ([]types.Type, error) {
	out := make([]types.Type, len(r))
	for i, t := range r {
		lt, err := s.Convert(t, sub)
		if err != nil {
			return nil, err
		}
		out[i] = lt
	}
	return out, nil
}

// FuncType converts a signature. No outputs return void, one output is
// returned directly, several are returned as an anonymous struct.
func (s *Session) FuncType(ft hugr.FuncType, sub hugr.Subst) (*types.FuncType, error) {
	key := cacheKey{typ: ft.String(), subst: sub.Key()}
	if v, ok := s.funcs[key]; ok {
		return v, nil
	}
	params, err := s.Row(ft.Input, sub)
	if err != nil {
		return nil, err
	}
	ret, err := s.Return(ft.Output, sub)
	if err != nil {
		return nil, err
	}
	v := types.NewFunc(ret, params...)
	s.funcs[key] = v
	return v, nil
}

// Return converts an output row to a single return type.
func (s *Session) Return(r hugr.TypeRow, sub hugr.Subst) (types.Type, error) {
	outs, err := s.Row(r, sub)
	if err != nil {
		return nil, err
	}
	switch len(outs) {
	case 0:
		return types.Void, nil
	case 1:
		return outs[0], nil
	default:
		return types.NewStruct(outs...), nil
	}
}

// Sum returns the layout of a sum type after applying sub.
func (s *Session) Sum(t hugr.Type, sub hugr.Subst) (*SumType, error) {
	if t.Kind != hugr.TypeSum {
		return nil, fmt.Errorf("%s is not a sum type", t)
	}
	ct, err := t.Substitute(sub)
	if err != nil {
		return nil, unsupported(t, "%v", err)
	}
	return s.sumOf(ct)
}

// SumOfRows is a shorthand for Sum(hugr.Sum(rows...), sub).
func (s *Session) SumOfRows(rows []hugr.TypeRow, sub hugr.Subst) (*SumType, error) {
	return s.Sum(hugr.Sum(rows...), sub)
}

func (s *Session) sumOf(t hugr.Type) (*SumType, error) {
	key := t.String()
	if st, ok := s.sums[key]; ok {
		return st, nil
	}
	st, err := newSumType(s, t)
	if err != nil {
		return nil, err
	}
	if s.mod != nil {
		s.mod.NewTypeDef(fmt.Sprintf("sum.%d", s.seq), st.llvm)
		s.seq++
	}
	s.sums[key] = st
	return st, nil
}
