package render

import (
	"fmt"
	"sort"
	"strings"

	"dexcfg/internal/signal"
)

// maxRefsPerMethod caps the leaf nodes drawn under one signal method.
const maxRefsPerMethod = 5

// SignalDOT renders the signal and context methods of g. Signal methods are
// outlined by severity and list their categories; their classified strings
// and API calls hang off them as leaf nodes. Other methods are omitted, as
// are edges to them.
func SignalDOT(g *signal.Graph, title string, t Theme) string {
	shown := make(map[string]signal.Method)
	for _, m := range g.Methods {
		if m.Role != "" {
			shown[m.Name] = m
		}
	}

	byOwner := make(map[string][]string)
	for name := range shown {
		owner, _ := splitOwner(name)
		byOwner[owner] = append(byOwner[owner], name)
	}
	owners := make([]string, 0, len(byOwner))
	for o := range byOwner {
		owners = append(owners, o)
	}
	sort.Strings(owners)

	var b strings.Builder
	b.WriteString("digraph signal {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.5;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.10,0.05\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.6, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeDirect)
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	writeNode := func(indent string, m signal.Method) {
		_, member := splitOwner(m.Name)
		label := truncLabel(member, 50)
		var attrs string
		if m.Role == signal.RoleSignal {
			color := sevColor(m.Severity, t)
			attrs = fmt.Sprintf(", color=%q, fontcolor=%q, penwidth=1.2", color, color)
			label += "\\n" + truncLabel(strings.Join(m.Categories, ","), 40)
		} else {
			attrs = fmt.Sprintf(", color=%q, fontcolor=%q", t.ClusterBorder, t.ExternalText)
		}
		if m.Entry {
			attrs += ", peripheries=2"
		}
		fmt.Fprintf(&b, "%s%s [label=\"%s\"%s];\n", indent, dotID(m.Name), label, attrs)
	}

	for _, owner := range owners {
		names := byOwner[owner]
		sort.Strings(names)
		if owner == "" {
			for _, n := range names {
				writeNode("  ", shown[n])
			}
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(owner))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, n := range names {
			writeNode("    ", shown[n])
		}
		b.WriteString("  }\n")
	}
	b.WriteByte('\n')

	// Leaves, in method order.
	var leafEdges []string
	leaf := 0
	for _, m := range g.Methods {
		if m.Role != signal.RoleSignal {
			continue
		}
		seen := make(map[string]bool)
		for _, r := range m.Refs {
			if seen[r.Value] {
				continue
			}
			seen[r.Value] = true
			if len(seen) > maxRefsPerMethod {
				continue
			}
			id := fmt.Sprintf("ref_%d", leaf)
			leaf++
			color := sevColor(signal.MaxSeverity(r.Categories), t)
			style := "style=\"filled,rounded\", fontname=\"Courier,monospace\""
			if r.Kind == "call" {
				style = "style=filled"
			}
			fmt.Fprintf(&b, "  %s [%s, fillcolor=%q, color=%q, fontcolor=%q, fontsize=7, penwidth=0.3, label=%q];\n",
				id, style, t.RefFill, color, color, truncLabel(r.Value, 60))
			leafEdges = append(leafEdges, fmt.Sprintf("  %s -> %s [style=dotted, arrowsize=0.3, color=%q];\n", dotID(m.Name), id, color))
		}
		if hidden := len(seen) - maxRefsPerMethod; hidden > 0 {
			id := fmt.Sprintf("ref_%d", leaf)
			leaf++
			fmt.Fprintf(&b, "  %s [shape=plaintext, style=\"\", fontsize=7, fontcolor=%q, label=\"+%d more\"];\n",
				id, t.ExternalText, hidden)
			leafEdges = append(leafEdges, fmt.Sprintf("  %s -> %s [style=dotted, arrowsize=0.3];\n", dotID(m.Name), id))
		}
	}
	b.WriteByte('\n')

	drawnEdge := make(map[[2]string]bool)
	for _, e := range g.Edges {
		if _, ok := shown[e.From]; !ok {
			continue
		}
		to, ok := shown[e.To]
		key := [2]string{e.From, e.To}
		if !ok || e.From == e.To || drawnEdge[key] {
			continue
		}
		drawnEdge[key] = true
		color := t.EdgeDirect
		if to.Role == signal.RoleSignal {
			color = sevColor(to.Severity, t)
		}
		fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", dotID(e.From), dotID(e.To), color)
	}
	for _, le := range leafEdges {
		b.WriteString(le)
	}

	b.WriteString("}\n")
	return b.String()
}

func sevColor(sev string, t Theme) string {
	switch sev {
	case signal.SeverityHigh:
		return t.SevHigh
	case signal.SeverityMedium:
		return t.SevMedium
	}
	return t.SevLow
}
