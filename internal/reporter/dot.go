package reporter

import (
	"fmt"
	"io"
	"strings"
)

// DOT writes the PERT graph in Graphviz format. Each phase is a cluster
// and the critical path is drawn in red.
func DOT(w io.Writer, p *PERT) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", "pert_"+p.Kind)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\"];\n")

	byPhase := make(map[int][]NodeView)
	for _, n := range p.Nodes {
		byPhase[n.Phase] = append(byPhase[n.Phase], n)
	}

	for i, lane := range p.Layout.Lanes {
		nodes := byPhase[i]
		if len(nodes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&b, "    label=%q;\n", lane.Label)
		for _, n := range nodes {
			label := fmt.Sprintf("%d %s\\nES %d  EF %d  slack %d", n.ID, escape(n.Title), n.ES, n.EF, n.Slack)
			attrs := ""
			if n.Critical {
				attrs = ", color=red, penwidth=2"
			}
			fmt.Fprintf(&b, "    n%d [label=\"%s\"%s];\n", n.ID, label, attrs)
		}
		b.WriteString("  }\n")
	}

	for _, n := range p.Nodes {
		for _, succ := range n.Successors {
			attrs := ""
			if n.Critical && critical(p, succ) {
				attrs = " [color=red, penwidth=2]"
			}
			fmt.Fprintf(&b, "  n%d -> n%d%s;\n", n.ID, succ, attrs)
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func critical(p *PERT, id int) bool {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n.Critical
		}
	}
	return false
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
