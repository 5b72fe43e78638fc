package exec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/llir/llvm/ir/types"
)

// ParseArg reads a command-line argument as a value of type t. Integers
// accept signed or unsigned decimal and 0x hex; i1 also accepts true and
// false.
func ParseArg(t types.Type, s string) (Value, error) {
	switch t := t.(type) {
	case *types.IntType:
		if t.BitSize > 64 {
			return Value{}, fmt.Errorf("integers wider than 64 bits are not supported: %s", t)
		}
		if t.BitSize == 1 {
			switch strings.ToLower(s) {
			case "true":
				return Bool(true), nil
			case "false":
				return Bool(false), nil
			}
		}
		if v, err := strconv.ParseInt(s, 0, 64); err == nil {
			return Int(t.BitSize, v), nil
		}
		u, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not an integer", s)
		}
		return Uint(t.BitSize, u), nil
	case *types.FloatType:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a float", s)
		}
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("cannot pass arguments of type %s on the command line", t)
}

// ParseArgs parses one argument per parameter of the function entry.
func ParseArgs(vm *VM, entry string, raw []string) ([]Value, error) {
	fn, ok := vm.funcs[entry]
	if !ok {
		return nil, fmt.Errorf("no function %q in module", entry)
	}
	if len(raw) != len(fn.Params) {
		return nil, fmt.Errorf("function %q takes %d arguments, got %d", entry, len(fn.Params), len(raw))
	}
	out := make([]Value, len(raw))
	for i, s := range raw {
		v, err := ParseArg(fn.Params[i].Typ, s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
