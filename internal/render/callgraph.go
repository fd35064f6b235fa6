package render

import (
	"fmt"
	"sort"
	"strings"

	"dexcfg/internal/disasm"
)

// Invoke categories derived from CallEdge.Kind.
const (
	CallVirtual = "virtual" // virtual, super, interface
	CallStatic  = "static"
	CallDirect  = "direct"
	CallDynamic = "dynamic" // polymorphic, custom
)

// ClassifyCall returns the category of an invoke edge.
func ClassifyCall(e disasm.CallEdge) string {
	switch e.Kind {
	case "virtual", "super", "interface":
		return CallVirtual
	case "static":
		return CallStatic
	case "direct":
		return CallDirect
	}
	return CallDynamic
}

func callColor(cat string, t Theme) string {
	switch cat {
	case CallVirtual:
		return t.EdgeVirtual
	case CallStatic:
		return t.EdgeStatic
	case CallDirect:
		return t.EdgeDirect
	}
	return t.EdgeDynamic
}

func callStyle(cat string) string {
	switch cat {
	case CallVirtual:
		return "dotted"
	case CallDynamic:
		return "dashed"
	}
	return "solid"
}

// MethodCalls is one caller and the invoke sites in its code.
type MethodCalls struct {
	Name  string            `json:"name"` // "Lcom/a/B;->run()V"
	Calls []disasm.CallEdge `json:"calls"`
}

// CallgraphDOT renders the invoke graph of a set of methods as DOT.
// Callers are grouped by declaring class; callees outside the set are
// shown as plaintext nodes. Repeated calls are merged and counted.
// maxNodes limits the number of caller nodes rendered (0 = all).
func CallgraphDOT(methods []MethodCalls, title string, t Theme, maxNodes int) string {
	if maxNodes > 0 && len(methods) > maxNodes {
		methods = methods[:maxNodes]
	}
	known := make(map[string]bool, len(methods))
	for _, m := range methods {
		known[m.Name] = true
	}

	type edgeKey struct {
		from, to, cat string
	}
	counts := make(map[edgeKey]int)
	external := make(map[string]bool)
	for _, m := range methods {
		for _, e := range m.Calls {
			to := e.Callee()
			counts[edgeKey{m.Name, to, ClassifyCall(e)}]++
			if !known[to] {
				external[to] = true
			}
		}
	}

	// Group callers by owner class.
	byOwner := make(map[string][]string)
	for _, m := range methods {
		owner, _ := splitOwner(m.Name)
		byOwner[owner] = append(byOwner[owner], m.Name)
	}
	owners := make([]string, 0, len(byOwner))
	for o := range byOwner {
		owners = append(owners, o)
	}
	sort.Strings(owners)

	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  compound=true;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	for _, owner := range owners {
		names := byOwner[owner]
		if owner == "" {
			for _, n := range names {
				fmt.Fprintf(&b, "  %s [label=%q];\n", dotID(n), truncLabel(n, 60))
			}
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(owner))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, n := range names {
			_, member := splitOwner(n)
			fmt.Fprintf(&b, "    %s [label=%q];\n", dotID(n), truncLabel(member, 50))
		}
		b.WriteString("  }\n")
	}
	b.WriteByte('\n')

	ext := make([]string, 0, len(external))
	for n := range external {
		ext = append(ext, n)
	}
	sort.Strings(ext)
	for _, n := range ext {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(n), truncLabel(n, 60), t.ExternalText)
	}
	b.WriteByte('\n')

	keys := make([]edgeKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, c := keys[i], keys[j]
		if a.from != c.from {
			return a.from < c.from
		}
		if a.to != c.to {
			return a.to < c.to
		}
		return a.cat < c.cat
	})
	for _, k := range keys {
		n := counts[k]
		color := callColor(k.cat, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, callStyle(k.cat))
		if n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, n)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
