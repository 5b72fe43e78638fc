// Package qir lowers quantum operations to calls into the QIR runtime.
// Qubits become %Qubit* and measurement results %Result*, both opaque.
package qir

import (
	"fmt"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/typeconv"
)

const (
	ExtensionID = "quantum.tket2"

	QubitTypeName  = "Qubit"
	ResultTypeName = "Result"
)

var gates = map[string]string{
	"H":     "__quantum__qis__h__body",
	"X":     "__quantum__qis__x__body",
	"Y":     "__quantum__qis__y__body",
	"Z":     "__quantum__qis__z__body",
	"S":     "__quantum__qis__s__body",
	"Sdg":   "__quantum__qis__s__adj",
	"T":     "__quantum__qis__t__body",
	"Tdg":   "__quantum__qis__t__adj",
	"Reset": "__quantum__qis__reset__body",
	"CX":    "__quantum__qis__cx__body",
	"CY":    "__quantum__qis__cy__body",
	"CZ":    "__quantum__qis__cz__body",
}

var rotations = map[string]string{
	"Rx": "__quantum__qis__rx__body",
	"Ry": "__quantum__qis__ry__body",
	"Rz": "__quantum__qis__rz__body",
}

const (
	measureSymbol    = "__quantum__qis__m__body"
	readResultSymbol = "__quantum__qis__read_result__body"
	allocSymbol      = "__quantum__rt__qubit_allocate"
	releaseSymbol    = "__quantum__rt__qubit_release"
)

// Extension lowers quantum.tket2 and replaces the prelude qubit layout, so
// it must be added after the prelude.
type Extension struct{}

func New() Extension { return Extension{} }

func (Extension) Name() string { return ExtensionID }

func (Extension) Register(b *lower.RegistryBuilder) {
	b.Type(prelude.ExtensionID, "qubit", func(s *typeconv.Session, _ *hugr.CustomType) (types.Type, error) {
		return opaquePtr(s, QubitTypeName), nil
	})
	for name, sym := range gates {
		b.OpFunc(ExtensionID, name, gate(sym))
	}
	for name, sym := range rotations {
		b.OpFunc(ExtensionID, name, rotate(sym))
	}
	b.OpFunc(ExtensionID, "Measure", lowerMeasure).
		OpFunc(ExtensionID, "QAlloc", lowerAlloc).
		OpFunc(ExtensionID, "QFree", lowerFree)
}

// opaquePtr returns a pointer to the opaque struct name, declaring it in
// the session's module on first use.
func opaquePtr(s *typeconv.Session, name string) *types.PointerType {
	m := s.Module()
	if m == nil {
		st := &types.StructType{Opaque: true}
		st.SetName(name)
		return types.NewPointer(st)
	}
	for _, td := range m.TypeDefs {
		if td.Name() == name {
			return types.NewPointer(td)
		}
	}
	return types.NewPointer(m.NewTypeDef(name, &types.StructType{Opaque: true}))
}

func isQubit(v value.Value) bool {
	pt, ok := v.Type().(*types.PointerType)
	if !ok {
		return false
	}
	st, ok := pt.ElemType.(*types.StructType)
	return ok && st.Name() == QubitTypeName
}

func checkQubits(args lower.OpArgs, vs []value.Value) error {
	for i, v := range vs {
		if !isQubit(v) {
			return fmt.Errorf("%s: operand %d has type %s, want %%%s*", args.Op.QualifiedName(), i, v.Type(), QubitTypeName)
		}
	}
	return nil
}

func qubitParams(vs []value.Value) []types.Type {
	ts := make([]types.Type, len(vs))
	for i, v := range vs {
		ts[i] = v.Type()
	}
	return ts
}

// gate calls sym on every input qubit and passes them through.
func gate(sym string) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if len(args.Inputs) == 0 || len(args.Inputs) != len(args.Outputs) {
			return nil, fmt.Errorf("%s: expected as many qubit outputs as inputs", args.Op.QualifiedName())
		}
		if err := checkQubits(args, args.Inputs); err != nil {
			return nil, err
		}
		fn, err := fc.ExternFunc(sym, types.NewFunc(types.Void, qubitParams(args.Inputs)...))
		if err != nil {
			return nil, err
		}
		fc.Block().NewCall(fn, args.Inputs...)
		return args.Inputs, nil
	}
}

// rotate takes (qubit, angle) and calls sym(angle, qubit).
func rotate(sym string) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := args.Want(2, 1); err != nil {
			return nil, err
		}
		q, angle := args.Inputs[0], args.Inputs[1]
		if err := checkQubits(args, []value.Value{q}); err != nil {
			return nil, err
		}
		if !angle.Type().Equal(types.Double) {
			return nil, fmt.Errorf("%s: angle has type %s", args.Op.QualifiedName(), angle.Type())
		}
		fn, err := fc.ExternFunc(sym, types.NewFunc(types.Void, types.Double, q.Type()))
		if err != nil {
			return nil, err
		}
		fc.Block().NewCall(fn, angle, q)
		return []value.Value{q}, nil
	}
}

func lowerMeasure(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(1, 2); err != nil {
		return nil, err
	}
	q := args.Inputs[0]
	if err := checkQubits(args, args.Inputs); err != nil {
		return nil, err
	}
	result := opaquePtr(fc.Types(), ResultTypeName)
	measure, err := fc.ExternFunc(measureSymbol, types.NewFunc(result, q.Type()))
	if err != nil {
		return nil, err
	}
	read, err := fc.ExternFunc(readResultSymbol, types.NewFunc(types.I1, result))
	if err != nil {
		return nil, err
	}
	blk := fc.Block()
	r := blk.NewCall(measure, q)
	bit := blk.NewCall(read, r)
	b, err := fc.I1ToBool(bit)
	if err != nil {
		return nil, err
	}
	return []value.Value{q, b}, nil
}

func lowerAlloc(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(0, 1); err != nil {
		return nil, err
	}
	qt := opaquePtr(fc.Types(), QubitTypeName)
	fn, err := fc.ExternFunc(allocSymbol, types.NewFunc(qt))
	if err != nil {
		return nil, err
	}
	return []value.Value{fc.Block().NewCall(fn)}, nil
}

func lowerFree(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(1, 0); err != nil {
		return nil, err
	}
	if err := checkQubits(args, args.Inputs); err != nil {
		return nil, err
	}
	fn, err := fc.ExternFunc(releaseSymbol, types.NewFunc(types.Void, args.Inputs[0].Type()))
	if err != nil {
		return nil, err
	}
	fc.Block().NewCall(fn, args.Inputs[0])
	return nil, nil
}
