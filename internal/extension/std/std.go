// Package std assembles the bundled extensions into a registry.
package std

import (
	"fmt"
	"sort"
	"strings"

	"hugrllvm/internal/extension/conversions"
	"hugrllvm/internal/extension/floatops"
	"hugrllvm/internal/extension/intops"
	"hugrllvm/internal/extension/logic"
	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/extension/ptr"
	"hugrllvm/internal/extension/qir"
	"hugrllvm/internal/extension/rotation"
	"hugrllvm/internal/lower"
)

// Options selects and configures the bundled extensions.
type Options struct {
	Prelude prelude.Options
	// Enabled names the extensions to include. Empty includes all of them.
	Enabled []string
}

// Extensions returns the selected extensions in registration order. The
// prelude always comes before quantum.tket2, which overrides its qubit.
func Extensions(opts Options) ([]lower.Extension, error) {
	all := []lower.Extension{
		prelude.New(opts.Prelude),
		intops.New(),
		floatops.New(),
		logic.New(),
		conversions.New(),
		ptr.New(),
		rotation.New(),
		qir.New(),
		qir.NewResults(),
	}
	if len(opts.Enabled) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(opts.Enabled))
	for _, name := range opts.Enabled {
		want[name] = true
	}
	var out []lower.Extension
	for _, e := range all {
		if want[e.Name()] {
			out = append(out, e)
			delete(want, e.Name())
		}
	}
	if len(want) > 0 {
		return nil, fmt.Errorf("unknown extensions: %s (known: %s)", strings.Join(sortedKeys(want), ", "), strings.Join(Names(), ", "))
	}
	return out, nil
}

// Names lists every bundled extension in registration order.
func Names() []string {
	exts, _ := Extensions(Options{})
	names := make([]string, len(exts))
	for i, e := range exts {
		names[i] = e.Name()
	}
	return names
}

// Registry builds a registry from the selected extensions.
func Registry(opts Options) (*lower.Registry, error) {
	exts, err := Extensions(opts)
	if err != nil {
		return nil, err
	}
	return lower.NewRegistryBuilder().Add(exts...).Finish(), nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
