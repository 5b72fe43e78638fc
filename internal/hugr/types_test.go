package hugr

import (
	"strings"
	"testing"
)

func TestTypeStrings(t *testing.T) {
	cases := []struct {
		name string
		typ  Type
		want string
	}{
		{"extension", i64(), "arithmetic.int.types.int<6>"},
		{"bool", Bool(), "Sum[(), ()]"},
		{"tuple", Tuple(i64(), Bool()), "Tuple(arithmetic.int.types.int<6>, Sum[(), ()])"},
		{"function", Function(NewFuncType(TypeRow{i64()}, nil)), "fn(arithmetic.int.types.int<6>) -> ()"},
		{"variable", Variable(1), "$1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.typ.String(); got != tc.want {
				t.Fatalf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSubstituteReplacesEveryOccurrence(t *testing.T) {
	poly := Sum(TypeRow{Variable(0)}, TypeRow{Variable(0), Extension("ptr", "ptr", TypeArgOf(Variable(0)))})
	got, err := poly.Substitute(Subst{TypeArgOf(i64())})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if got.HasVariables() {
		t.Fatalf("variables left in %s", got)
	}
	want := "Sum[(arithmetic.int.types.int<6>), (arithmetic.int.types.int<6>, ptr.ptr<arithmetic.int.types.int<6>>)]"
	if got.String() != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestSubstituteUnboundVariable(t *testing.T) {
	_, err := Variable(2).Substitute(Subst{TypeArgOf(i64())})
	if err == nil || !strings.Contains(err.Error(), "unbound") {
		t.Fatalf("expected unbound error, got %v", err)
	}
}

func TestInstantiateChecksArity(t *testing.T) {
	id := PolyFuncType{
		Params: []TypeParam{{Kind: ParamType, Name: "T"}},
		Body:   NewFuncType(TypeRow{Variable(0)}, TypeRow{Variable(0)}),
	}
	if _, err := id.Instantiate(nil); err == nil {
		t.Fatalf("expected arity error")
	}
	if _, err := id.Instantiate([]TypeArg{NatArg(3)}); err == nil {
		t.Fatalf("expected kind error")
	}
	ft, err := id.Instantiate([]TypeArg{TypeArgOf(Bool())})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if ft.String() != "fn(Sum[(), ()]) -> (Sum[(), ()])" {
		t.Fatalf("unexpected instantiation %s", ft)
	}
}

func TestSubstKeyIsCanonical(t *testing.T) {
	a := Subst{TypeArgOf(i64()), NatArg(4)}
	b := Subst{TypeArgOf(Extension("arithmetic.int.types", "int", NatArg(6))), NatArg(4)}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	if Subst(nil).Key() != "" {
		t.Fatalf("empty substitution must have empty key")
	}
}

func TestTypeArgHasVariables(t *testing.T) {
	cases := []struct {
		name string
		arg  TypeArg
		want bool
	}{
		{"concrete type", TypeArgOf(i64()), false},
		{"variable", TypeArgOf(Variable(0)), true},
		{"nested in tuple", TypeArgOf(Tuple(i64(), Variable(1))), true},
		{"nat", NatArg(3), false},
		{"sequence", TypeArg{Kind: ArgSequence, Seq: []TypeArg{NatArg(1), TypeArgOf(Variable(0))}}, true},
		{"concrete sequence", TypeArg{Kind: ArgSequence, Seq: []TypeArg{StringArg("x"), TypeArgOf(Bool())}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.arg.HasVariables(); got != tc.want {
				t.Fatalf("HasVariables(%s) = %v, want %v", tc.arg, got, tc.want)
			}
		})
	}
}
