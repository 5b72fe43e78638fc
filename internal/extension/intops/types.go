package intops

import (
	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/hugr"
)

// IntType is int<lw>.
func IntType(lw uint64) hugr.Type {
	return hugr.Extension(TypesExtensionID, "int", hugr.NatArg(lw))
}

// Int is a constant of int<lw>. Values wider than the type are truncated.
func Int(lw uint64, v int64) hugr.Value {
	return hugr.ExtensionValue(hugr.CustomConst{Extension: TypesExtensionID, Name: "ConstInt", Type: IntType(lw), Int: v})
}

// BinaryOp is a two-operand operation on int<lw> such as iadd.
func BinaryOp(name string, lw uint64) hugr.Op {
	t := IntType(lw)
	return hugr.CustomOpOf(OpsExtensionID, name, hugr.NewFuncType(hugr.TypeRow{t, t}, hugr.TypeRow{t}), hugr.NatArg(lw))
}

// UnaryOp is a one-operand operation on int<lw> such as ineg.
func UnaryOp(name string, lw uint64) hugr.Op {
	t := IntType(lw)
	return hugr.CustomOpOf(OpsExtensionID, name, hugr.NewFuncType(hugr.TypeRow{t}, hugr.TypeRow{t}), hugr.NatArg(lw))
}

// CompareOp is a comparison such as ilt_s, yielding a boolean.
func CompareOp(name string, lw uint64) hugr.Op {
	t := IntType(lw)
	return hugr.CustomOpOf(OpsExtensionID, name, hugr.NewFuncType(hugr.TypeRow{t, t}, hugr.TypeRow{hugr.Bool()}), hugr.NatArg(lw))
}

// WidenOp is iwiden_s or iwiden_u from int<from> to int<to>.
func WidenOp(name string, from, to uint64) hugr.Op {
	return hugr.CustomOpOf(OpsExtensionID, name,
		hugr.NewFuncType(hugr.TypeRow{IntType(from)}, hugr.TypeRow{IntType(to)}),
		hugr.NatArg(from), hugr.NatArg(to))
}

// NarrowOp is inarrow_s or inarrow_u from int<from> to int<to>.
func NarrowOp(name string, from, to uint64) hugr.Op {
	return hugr.CustomOpOf(OpsExtensionID, name,
		hugr.NewFuncType(hugr.TypeRow{IntType(from)}, hugr.TypeRow{prelude.Result(IntType(to))}),
		hugr.NatArg(from), hugr.NatArg(to))
}
