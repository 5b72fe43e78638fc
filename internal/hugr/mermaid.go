package hugr

import (
	"fmt"
	"strings"
)

// Mermaid renders the graph as a Mermaid flowchart: containers become
// subgraphs and edges are labelled with their ports.
func (h *Hugr) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	h.mermaidNode(&sb, h.Root(), 1)
	for _, e := range h.Edges() {
		switch e.Kind {
		case EdgeOrder:
			fmt.Fprintf(&sb, "    n%d -.-> n%d\n", e.Src, e.Dst)
		case EdgeControl:
			fmt.Fprintf(&sb, "    n%d ==>|%d| n%d\n", e.Src, e.SrcPort, e.Dst)
		case EdgeStatic:
			fmt.Fprintf(&sb, "    n%d -.->|static| n%d\n", e.Src, e.Dst)
		default:
			fmt.Fprintf(&sb, "    n%d -->|\"%d:%d\"| n%d\n", e.Src, e.SrcPort, e.DstPort, e.Dst)
		}
	}
	return sb.String()
}

func (h *Hugr) mermaidNode(sb *strings.Builder, n NodeID, depth int) {
	indent := strings.Repeat("    ", depth)
	label := fmt.Sprintf("(%d) %s", n, h.Op(n).Describe())
	ch := h.Children(n)
	if len(ch) == 0 {
		fmt.Fprintf(sb, "%sn%d[\"%s\"]\n", indent, n, label)
		return
	}
	fmt.Fprintf(sb, "%ssubgraph n%d [\"%s\"]\n", indent, n, label)
	for _, c := range ch {
		h.mermaidNode(sb, c, depth+1)
	}
	fmt.Fprintf(sb, "%send\n", indent)
}
