package prelude

import "hugrllvm/internal/hugr"

func UsizeType() hugr.Type  { return hugr.Extension(ExtensionID, "usize") }
func QubitType() hugr.Type  { return hugr.Extension(ExtensionID, "qubit") }
func ErrorType() hugr.Type  { return hugr.Extension(ExtensionID, "error") }
func StringType() hugr.Type { return hugr.Extension(ExtensionID, "string") }

// Usize is a usize constant.
func Usize(v uint64) hugr.Value {
	return hugr.ExtensionValue(hugr.CustomConst{Extension: ExtensionID, Name: "ConstUsize", Type: UsizeType(), Uint: v})
}

// String is a string constant.
func String(s string) hugr.Value {
	return hugr.ExtensionValue(hugr.CustomConst{Extension: ExtensionID, Name: "ConstString", Type: StringType(), Str: s})
}

// Error is an error constant.
func Error(signal int64, msg string) hugr.Value {
	return hugr.ExtensionValue(hugr.CustomConst{Extension: ExtensionID, Name: "ConstError", Type: ErrorType(), Int: signal, Str: msg})
}

// ExternalSymbol is the value of the external global symbol, of type t.
func ExternalSymbol(symbol string, t hugr.Type) hugr.Value {
	return hugr.ExtensionValue(hugr.CustomConst{Extension: ExtensionID, Name: "ConstExternalSymbol", Type: t, Str: symbol})
}

// Result is the sum returned by fallible operations: t on success, an
// error otherwise.
func Result(t hugr.Type) hugr.Type {
	return hugr.Sum(hugr.TypeRow{t}, hugr.TypeRow{ErrorType()})
}

// PanicOp aborts with an error, passing through nothing.
func PanicOp(outputs hugr.TypeRow) hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "panic", hugr.NewFuncType(hugr.TypeRow{ErrorType()}, outputs))
}

// PrintOp prints a string.
func PrintOp() hugr.Op {
	return hugr.CustomOpOf(ExtensionID, "print", hugr.NewFuncType(hugr.TypeRow{StringType()}, nil))
}
