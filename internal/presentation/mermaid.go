// Package presentation renders graphs for people.
package presentation

import (
	"fmt"
	"strings"

	"github.com/dshills/itergraph-go/graph/fx"
)

// Mermaid produces a Mermaid flowchart of g. Shapes follow the node op:
//   - placeholder: (["stadium"])
//   - call_function: ["rectangle"] labelled name: target
//   - output: [/"parallelogram"/]
//
// Argument edges are solid. Users recorded without an argument reference are
// dashed, and held nodes get the "held" class.
func Mermaid(g fx.View) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var held []string
	for _, id := range g.Nodes() {
		n, _ := g.Node(id)
		safeID := sanitizeMermaidID(n.Name)

		switch n.Op {
		case fx.OpPlaceholder:
			fmt.Fprintf(&sb, "    %s([\"%s\"])\n", safeID, n.Name)
		case fx.OpOutput:
			fmt.Fprintf(&sb, "    %s[/\"%s\"/]\n", safeID, n.Name)
		default:
			fmt.Fprintf(&sb, "    %s[\"%s: %s\"]\n", safeID, n.Name, n.Target)
		}

		for _, u := range g.Users(id) {
			if u == fx.Held {
				held = append(held, safeID)
				continue
			}
			un, ok := g.Node(u)
			if !ok {
				continue
			}
			arrow := "-.->"
			for _, in := range g.Inputs(u) {
				if in == id {
					arrow = "-->"
					break
				}
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(un.Name))
		}
	}

	if len(held) > 0 {
		sb.WriteString("    classDef held stroke-dasharray: 5 5;\n")
		for _, id := range held {
			fmt.Fprintf(&sb, "    class %s held;\n", id)
		}
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	// "end" closes a subgraph in Mermaid.
	if strings.EqualFold(s, "end") {
		s += "_"
	}
	return s
}
