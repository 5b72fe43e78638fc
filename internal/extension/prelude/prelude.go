// Package prelude lowers the graph IR prelude: machine-sized integers,
// qubits, strings and errors, and the panic and print operations.
package prelude

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/typeconv"
)

const (
	ExtensionID = "prelude"

	DefaultUsizeBits = 64
	DefaultQubitBits = 16

	PanicSymbol = "__hugr_panic"
	PrintSymbol = "__hugr_print"
)

// Options sizes the machine-dependent prelude types. Zero fields take the
// defaults.
type Options struct {
	UsizeBits uint64
	QubitBits uint64
}

// Extension is the prelude contribution.
type Extension struct {
	opts Options
}

// New returns the prelude configured by opts.
func New(opts Options) Extension {
	if opts.UsizeBits == 0 {
		opts.UsizeBits = DefaultUsizeBits
	}
	if opts.QubitBits == 0 {
		opts.QubitBits = DefaultQubitBits
	}
	return Extension{opts: opts}
}

func (Extension) Name() string { return ExtensionID }

// Options returns the effective sizes.
func (e Extension) Options() Options { return e.opts }

func (e Extension) Register(b *lower.RegistryBuilder) {
	usize := types.NewInt(e.opts.UsizeBits)
	qubit := types.NewInt(e.opts.QubitBits)
	b.Type(ExtensionID, "usize", func(*typeconv.Session, *hugr.CustomType) (types.Type, error) { return usize, nil }).
		Type(ExtensionID, "qubit", func(*typeconv.Session, *hugr.CustomType) (types.Type, error) { return qubit, nil }).
		Type(ExtensionID, "error", func(*typeconv.Session, *hugr.CustomType) (types.Type, error) { return ErrorLLVMType(), nil }).
		Type(ExtensionID, "string", func(*typeconv.Session, *hugr.CustomType) (types.Type, error) { return types.I8Ptr, nil })

	b.Const(ExtensionID, "ConstUsize", func(_ *lower.FuncContext, c *hugr.CustomConst) (value.Value, error) {
		return &constant.Int{Typ: usize, X: new(big.Int).SetUint64(c.Uint)}, nil
	}).
		Const(ExtensionID, "ConstString", func(fc *lower.FuncContext, c *hugr.CustomConst) (value.Value, error) {
			return StringConst(fc, c.Str)
		}).
		Const(ExtensionID, "ConstError", func(fc *lower.FuncContext, c *hugr.CustomConst) (value.Value, error) {
			return ErrorConst(fc, c.Int, c.Str)
		}).
		Const(ExtensionID, "ConstExternalSymbol", lowerExternalSymbol)

	b.OpFunc(ExtensionID, "panic", lowerPanic).
		OpFunc(ExtensionID, "print", lowerPrint)
}

// ErrorLLVMType is the layout of prelude errors: a signal and a message.
func ErrorLLVMType() *types.StructType {
	return types.NewStruct(types.I32, types.I8Ptr)
}

// StringConst returns a pointer to a NUL-terminated private global holding
// s. Equal strings share one global.
func StringConst(fc *lower.FuncContext, s string) (constant.Constant, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, fmt.Errorf("string constant %q contains NUL", s)
	}
	data := constant.NewCharArrayFromString(s + "\x00")
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(s))
	name := "str." + strings.ReplaceAll(id.String(), "-", "")
	g, err := fc.Global(name, data.Typ, data, true)
	if err != nil {
		return nil, err
	}
	zero := constant.NewInt(types.I64, 0)
	gep := constant.NewGetElementPtr(data.Typ, g, zero, zero)
	gep.InBounds = true
	return gep, nil
}

// ErrorConst builds a constant prelude error.
func ErrorConst(fc *lower.FuncContext, signal int64, msg string) (constant.Constant, error) {
	str, err := StringConst(fc, msg)
	if err != nil {
		return nil, err
	}
	return constant.NewStruct(ErrorLLVMType(), constant.NewInt(types.I32, signal), str), nil
}

// Checked returns variant 0 of the sum sumType holding v when ok is set,
// and variant 1 holding the error (signal, msg) otherwise. ok must be an
// i1.
func Checked(fc *lower.FuncContext, sumType hugr.Type, ok, v value.Value, signal int64, msg string) (value.Value, error) {
	st, err := fc.Sum(sumType)
	if err != nil {
		return nil, err
	}
	if st.NumVariants() != 2 {
		return nil, fmt.Errorf("checked result %s must have two variants", sumType)
	}
	errv, err := ErrorConst(fc, signal, msg)
	if err != nil {
		return nil, err
	}
	okSum, err := st.BuildTag(fc.Block(), 0, []value.Value{v})
	if err != nil {
		return nil, err
	}
	errSum, err := st.BuildTag(fc.Block(), 1, []value.Value{errv})
	if err != nil {
		return nil, err
	}
	return fc.Block().NewSelect(ok, okSum, errSum), nil
}

func lowerExternalSymbol(fc *lower.FuncContext, c *hugr.CustomConst) (value.Value, error) {
	if c.Str == "" {
		return nil, fmt.Errorf("external symbol without a name")
	}
	t, err := fc.LLVMType(c.Type)
	if err != nil {
		return nil, err
	}
	g, err := fc.Global(c.Str, t, nil, false)
	if err != nil {
		return nil, err
	}
	return fc.Block().NewLoad(t, g), nil
}

// lowerPanic reports the error and yields undefined outputs; the runtime
// function does not return.
func lowerPanic(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if len(args.Inputs) == 0 {
		return nil, fmt.Errorf("panic takes an error input")
	}
	errv := args.Inputs[0]
	if !errv.Type().Equal(ErrorLLVMType()) {
		return nil, fmt.Errorf("panic: first input has type %s", errv.Type())
	}
	fn, err := fc.ExternFunc(PanicSymbol, types.NewFunc(types.Void, types.I32, types.I8Ptr))
	if err != nil {
		return nil, err
	}
	b := fc.Block()
	b.NewCall(fn, b.NewExtractValue(errv, 0), b.NewExtractValue(errv, 1))
	outs, err := fc.Row(args.Outputs)
	if err != nil {
		return nil, err
	}
	vals := make([]value.Value, len(outs))
	for i, t := range outs {
		vals[i] = constant.NewUndef(t)
	}
	return vals, nil
}

func lowerPrint(fc *lower.FuncContext, args lower.OpArgs) ([]value.Value, error) {
	if err := args.Want(1, 0); err != nil {
		return nil, err
	}
	fn, err := fc.ExternFunc(PrintSymbol, types.NewFunc(types.Void, types.I8Ptr))
	if err != nil {
		return nil, err
	}
	fc.Block().NewCall(fn, args.Inputs[0])
	return nil, nil
}
