package hugr

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags a constant Value.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValueExtension
	ValueSum
	ValueFunction
)

var valueKindNames = [...]string{
	ValueInvalid:   "invalid",
	ValueExtension: "extension",
	ValueSum:       "sum",
	ValueFunction:  "function",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// MarshalText encodes the kind by name.
func (k ValueKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *ValueKind) UnmarshalText(b []byte) error {
	for i, name := range valueKindNames {
		if name == string(b) {
			*k = ValueKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown value kind %q", b)
}

// Value is a compile-time constant held by a Const node.
type Value struct {
	Kind   ValueKind    `json:"kind" msgpack:"kind"`
	Custom *CustomConst `json:"custom,omitempty" msgpack:"custom,omitempty"`
	// Sum payload. Tuples are sums with a single variant and tag 0.
	Tag     int      `json:"tag,omitempty" msgpack:"tag,omitempty"`
	Values  []Value  `json:"values,omitempty" msgpack:"values,omitempty"`
	SumType *SumType `json:"sum_type,omitempty" msgpack:"sum_type,omitempty"`
	// Func is a nested graph rooted at a FuncDefn or DFG.
	Func *Hugr `json:"func,omitempty" msgpack:"func,omitempty"`
}

// CustomConst is an extension-defined constant. Which payload field is
// meaningful is up to the owning extension.
type CustomConst struct {
	Extension string  `json:"extension" msgpack:"extension"`
	Name      string  `json:"name" msgpack:"name"`
	Type      Type    `json:"type" msgpack:"type"`
	Int       int64   `json:"int,omitempty" msgpack:"int,omitempty"`
	Uint      uint64  `json:"uint,omitempty" msgpack:"uint,omitempty"`
	Float     float64 `json:"float,omitempty" msgpack:"float,omitempty"`
	Str       string  `json:"str,omitempty" msgpack:"str,omitempty"`
}

// ExtensionValue wraps a custom constant.
func ExtensionValue(c CustomConst) Value {
	cc := c
	return Value{Kind: ValueExtension, Custom: &cc}
}

// SumValue builds a tagged constant of the given sum type.
func SumValue(tag int, vals []Value, st Type) Value {
	var sum *SumType
	if st.Sum != nil {
		cp := *st.Sum
		sum = &cp
	}
	return Value{Kind: ValueSum, Tag: tag, Values: vals, SumType: sum}
}

// TupleValue builds a single-variant sum value.
func TupleValue(vals ...Value) (Value, error) {
	row := make(TypeRow, len(vals))
	for i, v := range vals {
		t, err := v.Type()
		if err != nil {
			return Value{}, err
		}
		row[i] = t
	}
	return SumValue(0, vals, Tuple(row...)), nil
}

// BoolValue builds a boolean constant.
func BoolValue(b bool) Value {
	tag := 0
	if b {
		tag = 1
	}
	return SumValue(tag, nil, Bool())
}

// FunctionValue wraps a nested graph as a constant.
func FunctionValue(h *Hugr) Value {
	return Value{Kind: ValueFunction, Func: h}
}

// Type computes the type of a constant.
func (v Value) Type() (Type, error) {
	switch v.Kind {
	case ValueExtension:
		if v.Custom == nil {
			return Type{}, fmt.Errorf("extension value without payload")
		}
		return v.Custom.Type, nil
	case ValueSum:
		if v.SumType == nil {
			return Type{}, fmt.Errorf("sum value without sum type")
		}
		return Type{Kind: TypeSum, Sum: v.SumType}, nil
	case ValueFunction:
		if v.Func == nil {
			return Type{}, fmt.Errorf("function value without graph")
		}
		ft, err := v.Func.RootSignature()
		if err != nil {
			return Type{}, err
		}
		return Function(ft), nil
	}
	return Type{}, fmt.Errorf("invalid value kind %s", v.Kind)
}

func (v Value) String() string {
	switch v.Kind {
	case ValueExtension:
		if v.Custom == nil {
			return "<nil-const>"
		}
		c := v.Custom
		switch {
		case c.Str != "":
			return fmt.Sprintf("%s.%s(%s)", c.Extension, c.Name, strconv.Quote(c.Str))
		case c.Float != 0:
			return fmt.Sprintf("%s.%s(%g)", c.Extension, c.Name, c.Float)
		case c.Uint != 0:
			return fmt.Sprintf("%s.%s(%d)", c.Extension, c.Name, c.Uint)
		default:
			return fmt.Sprintf("%s.%s(%d)", c.Extension, c.Name, c.Int)
		}
	case ValueSum:
		parts := make([]string, len(v.Values))
		for i, x := range v.Values {
			parts[i] = x.String()
		}
		return fmt.Sprintf("tag%d(%s)", v.Tag, strings.Join(parts, ", "))
	case ValueFunction:
		return "const-fn"
	}
	return "<invalid>"
}
