// Package typeconv maps graph IR types onto LLVM types.
package typeconv

import (
	"fmt"
	"sort"

	"github.com/llir/llvm/ir/types"

	"hugrllvm/internal/hugr"
)

// Key identifies an extension type by owning extension and name.
type Key struct {
	Extension string
	Name      string
}

func (k Key) String() string { return k.Extension + "." + k.Name }

// TypeFunc converts one extension type. Its type args have already been
// substituted.
type TypeFunc func(s *Session, t *hugr.CustomType) (types.Type, error)

// Converter holds the extension type hooks. It is filled while a registry is
// being built and only read afterwards.
type Converter struct {
	hooks map[Key]TypeFunc
}

// NewConverter returns a converter with no extension hooks.
func NewConverter() *Converter {
	return &Converter{hooks: make(map[Key]TypeFunc)}
}

// Register installs fn for k, replacing any earlier hook.
func (c *Converter) Register(k Key, fn TypeFunc) {
	c.hooks[k] = fn
}

// Lookup returns the hook for k.
func (c *Converter) Lookup(k Key) (TypeFunc, bool) {
	fn, ok := c.hooks[k]
	return fn, ok
}

// Keys lists registered extension types in sorted order.
func (c *Converter) Keys() []Key {
	out := make([]Key, 0, len(c.hooks))
	for k := range c.hooks {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Extension != out[j].Extension {
			return out[i].Extension < out[j].Extension
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Clone copies the hook table.
func (c *Converter) Clone() *Converter {
	cp := NewConverter()
	for k, fn := range c.hooks {
		cp.hooks[k] = fn
	}
	return cp
}

// UnsupportedTypeError reports a type with no lowering.
type UnsupportedTypeError struct {
	Type   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %s: %s", e.Type, e.Reason)
}

func unsupported(t hugr.Type, format string, args ...any) error {
	return &UnsupportedTypeError{Type: t.String(), Reason: fmt.Sprintf(format, args...)}
}
