package lower

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"hugrllvm/internal/hugr"
)

// DefaultManglePrefix prefixes every emitted function definition.
const DefaultManglePrefix = "_hl"

// Namer assigns module-unique symbol names.
//
// Definitions are named prefix.name, with $args appended for non-empty
// instantiations and .node appended when node suffixes are on. Names are
// NFC-normalised. A name that is already taken gets .1, .2, ... appended.
type Namer struct {
	prefix     string
	nodeSuffix bool
	used       map[string]int
}

func NewNamer(prefix string, nodeSuffix bool) *Namer {
	return &Namer{prefix: prefix, nodeSuffix: nodeSuffix, used: make(map[string]int)}
}

// Definition names a function definition.
func (n *Namer) Definition(name string, node hugr.NodeID, args []hugr.TypeArg) string {
	var sb strings.Builder
	if n.prefix != "" {
		sb.WriteString(n.prefix)
		sb.WriteByte('.')
	}
	sb.WriteString(nfc(name))
	sb.WriteString(mangleArgs(args))
	if n.nodeSuffix {
		fmt.Fprintf(&sb, ".%d", node)
	}
	return n.claim(sb.String())
}

// Exported names an entry point or declaration, which keep their source
// name so that external code can find them.
func (n *Namer) Exported(name string, args []hugr.TypeArg) string {
	return n.claim(nfc(name) + mangleArgs(args))
}

// Reserve marks name as taken and reports whether it was free.
func (n *Namer) Reserve(name string) bool {
	if _, ok := n.used[name]; ok {
		return false
	}
	n.used[name] = 0
	return true
}

func (n *Namer) claim(base string) string {
	cnt, ok := n.used[base]
	if !ok {
		n.used[base] = 0
		return base
	}
	for {
		cnt++
		cand := fmt.Sprintf("%s.%d", base, cnt)
		if _, taken := n.used[cand]; !taken {
			n.used[base] = cnt
			n.used[cand] = 0
			return cand
		}
	}
}

func nfc(s string) string { return norm.NFC.String(s) }

// mangleArgs renders type args as "$a$b", keeping only characters that are
// safe in unquoted LLVM identifiers.
func mangleArgs(args []hugr.TypeArg) string {
	if len(args) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, a := range args {
		sb.WriteByte('$')
		for _, r := range a.String() {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
				sb.WriteRune(r)
			case r == ' ':
			default:
				sb.WriteByte('_')
			}
		}
	}
	return sb.String()
}
