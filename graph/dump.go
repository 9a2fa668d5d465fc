package graph

import (
	"fmt"
	"sort"
	"strings"
)

// String returns a deterministic textual dump of the graph, one line
// per node in graph order:
//
//	graph main {
//	  %x = parameter() : float32[2,3]
//	  %cast_4 = cast(%x) {dtype=float16} : float16[2,3]
//	  %z = return(%cast_4)
//	}
//
// Values are written as %name, or %name#i for outputs of multi-output
// nodes. The dump is used by golden tests and the CLI; its format is
// stable.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s {\n", g.name)
	for _, n := range g.nodes {
		sb.WriteString("  ")
		sb.WriteString(n.line())
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// line renders one node as "%name = op(args) {attrs} : types".
func (n *Node) line() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%%%s = %s(", n.name, n.op)
	for i, v := range n.inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.operand())
	}
	sb.WriteString(")")
	if len(n.attrs) > 0 {
		keys := make([]string, 0, len(n.attrs))
		for k := range n.attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", k, attrString(n.attrs[k]))
		}
		sb.WriteString("}")
	}
	if len(n.outputs) > 0 {
		sb.WriteString(" : ")
		for o, t := range n.outputs {
			if o > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(t.String())
		}
	}
	return sb.String()
}

// operand renders a value reference for dumps.
func (v NodeValue) operand() string {
	if v.node == nil {
		return "%<nil>"
	}
	if len(v.node.outputs) > 1 {
		return fmt.Sprintf("%%%s#%d", v.node.name, v.index)
	}
	return "%" + v.node.name
}

func attrString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float32:
		return fmt.Sprintf("%g", x)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
