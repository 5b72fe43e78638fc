package qir

import (
	"fmt"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
)

// ResultExtensionID names the extension recording tagged program outputs.
const ResultExtensionID = "tket2.result"

type recorder struct {
	symbol string
	param  types.Type
	signed bool
}

var recorders = map[string]recorder{
	"result_bool": {symbol: "__quantum__rt__bool_record_output", param: types.I1},
	"result_int":  {symbol: "__quantum__rt__int_record_output", param: types.I64, signed: true},
	"result_uint": {symbol: "__quantum__rt__int_record_output", param: types.I64},
	"result_f64":  {symbol: "__quantum__rt__double_record_output", param: types.Double},
}

// Results lowers tket2.result. Each op takes its tag as a string type
// argument and records one value.
type Results struct{}

func NewResults() Results { return Results{} }

func (Results) Name() string { return ResultExtensionID }

func (Results) Register(b *lower.RegistryBuilder) {
	for name, rec := range recorders {
		b.OpFunc(ResultExtensionID, name, record(rec))
	}
}

func record(rec recorder) lower.OpFunc {
	return func(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
		if err := args.Want(1, 0); err != nil {
			return nil, err
		}
		tag, err := args.StringArg(0)
		if err != nil {
			return nil, err
		}
		if tag == "" {
			return nil, fmt.Errorf("%s: empty result tag", args.Op.QualifiedName())
		}
		v, err := recordValue(fc, rec, args.Inputs[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", args.Op.QualifiedName(), err)
		}
		label, err := prelude.StringConst(fc, tag)
		if err != nil {
			return nil, err
		}
		fn, err := fc.ExternFunc(rec.symbol, types.NewFunc(types.Void, rec.param, types.I8Ptr))
		if err != nil {
			return nil, err
		}
		fc.Block().NewCall(fn, v, label)
		return nil, nil
	}
}

func recordValue(fc *lower.FuncContext, rec recorder, v value.Value) (value.Value, error) {
	switch {
	case rec.param.Equal(types.I1):
		return fc.BoolToI1(v)
	case rec.param.Equal(types.Double):
		if !v.Type().Equal(types.Double) {
			return nil, fmt.Errorf("recording %s as a double", v.Type())
		}
		return v, nil
	}
	it, ok := v.Type().(*types.IntType)
	if !ok || it.BitSize > 64 {
		return nil, fmt.Errorf("recording %s as an i64", v.Type())
	}
	switch {
	case it.BitSize == 64:
		return v, nil
	case rec.signed:
		return fc.Block().NewSExt(v, types.I64), nil
	default:
		return fc.Block().NewZExt(v, types.I64), nil
	}
}

// GateOp is a gate acting on n qubits, such as H or CX.
func GateOp(name string, n int) hugr.Op {
	row := make(hugr.TypeRow, n)
	for i := range row {
		row[i] = prelude.QubitType()
	}
	return hugr.CustomOpOf(ExtensionID, name, hugr.NewFuncType(row, row))
}

// RotationOp is Rx, Ry or Rz taking a qubit and an angle of type angle.
func RotationOp(name string, angle hugr.Type) hugr.Op {
	q := prelude.QubitType()
	return hugr.CustomOpOf(ExtensionID, name, hugr.NewFuncType(hugr.TypeRow{q, angle}, hugr.TypeRow{q}))
}

func MeasureOp() hugr.Op {
	q := prelude.QubitType()
	return hugr.CustomOpOf(ExtensionID, "Measure", hugr.NewFuncType(hugr.TypeRow{q}, hugr.TypeRow{q, hugr.Bool()}))
}

func QAllocOp() hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "QAlloc", hugr.NewFuncType(nil, hugr.TypeRow{prelude.QubitType()}))
}

func QFreeOp() hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "QFree", hugr.NewFuncType(hugr.TypeRow{prelude.QubitType()}, nil))
}

// ResultOp records a value of type t under tag.
func ResultOp(name, tag string, t hugr.Type) hugr.Op {
	return hugr.CustomOpOf(ResultExtensionID, name, hugr.NewFuncType(hugr.TypeRow{t}, nil), hugr.StringArg(tag))
}
