package signal

import (
	"sort"

	"dexcfg/internal/callgraph"
)

// Ref is one classified string load or call inside a method.
type Ref struct {
	Addr       int      `json:"addr"`
	Kind       string   `json:"kind"` // "string" or "call"
	Value      string   `json:"value"`
	Categories []string `json:"categories"`
}

// Method is a method in the signal graph.
type Method struct {
	Name       string   `json:"name"`
	Refs       []Ref    `json:"refs,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Severity   string   `json:"severity,omitempty"`
	Role       string   `json:"role,omitempty"` // "signal", "context" or ""
	Entry      bool     `json:"entry,omitempty"`
}

// Roles.
const (
	RoleSignal  = "signal"
	RoleContext = "context"
)

// Edge is a deduplicated invoke edge.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"` // invoke kind: "virtual", "static", ...
}

// Graph is the signal view of a set of methods.
type Graph struct {
	Methods []Method `json:"methods"`
	Edges   []Edge   `json:"edges"`
	Stats   Stats    `json:"stats"`
}

// Stats summarizes a Graph.
type Stats struct {
	Methods    int            `json:"methods"`
	Signal     int            `json:"signal"`
	Context    int            `json:"context"`
	Edges      int            `json:"edges"`
	Refs       int            `json:"refs"`
	Categories map[string]int `json:"categories"` // methods per category
}

// Build classifies the string loads and resolved callees of each method.
// Methods with at least one hit are signal methods; methods within hops
// call edges of one (either direction, through any callee) are context.
// Methods not called by any other method in the set are entry points.
func Build(methods []callgraph.MethodInfo, hops int) *Graph {
	g := &Graph{Stats: Stats{Categories: make(map[string]int)}}

	signalSet := make(map[string]bool)
	out := make([]Method, len(methods))
	for i, mi := range methods {
		m := Method{Name: mi.Name}
		cats := make(map[string]bool)
		for _, addr := range sortedAddrs(mi.Strings) {
			if c := ClassifyString(mi.Strings[addr]); len(c) > 0 {
				m.Refs = append(m.Refs, Ref{Addr: addr, Kind: "string", Value: mi.Strings[addr], Categories: c})
			}
		}
		for _, e := range mi.Calls {
			if c := ClassifyCallee(e.TargetName); len(c) > 0 {
				m.Refs = append(m.Refs, Ref{Addr: e.FromAddr, Kind: "call", Value: e.TargetName, Categories: c})
			}
		}
		sort.SliceStable(m.Refs, func(a, b int) bool { return m.Refs[a].Addr < m.Refs[b].Addr })
		for _, r := range m.Refs {
			for _, c := range r.Categories {
				cats[c] = true
			}
		}
		if len(cats) > 0 {
			for c := range cats {
				m.Categories = append(m.Categories, c)
				g.Stats.Categories[c]++
			}
			sort.Strings(m.Categories)
			m.Severity = MaxSeverity(m.Categories)
			m.Role = RoleSignal
			signalSet[m.Name] = true
		}
		g.Stats.Refs += len(m.Refs)
		out[i] = m
	}

	g.Edges = dedupEdges(methods)
	fwd := make(map[string][]string)
	rev := make(map[string][]string)
	for _, e := range g.Edges {
		fwd[e.From] = append(fwd[e.From], e.To)
		rev[e.To] = append(rev[e.To], e.From)
	}

	near := expand(signalSet, fwd, rev, hops)
	for i := range out {
		m := &out[i]
		if m.Role == "" && near[m.Name] {
			m.Role = RoleContext
			g.Stats.Context++
		}
		m.Entry = !hasOtherCaller(m.Name, rev)
	}

	roleOrd := map[string]int{RoleSignal: 0, RoleContext: 1, "": 2}
	sevOrd := map[string]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2, "": 3}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.Role != b.Role {
			return roleOrd[a.Role] < roleOrd[b.Role]
		}
		if a.Severity != b.Severity {
			return sevOrd[a.Severity] < sevOrd[b.Severity]
		}
		if len(a.Categories) != len(b.Categories) {
			return len(a.Categories) > len(b.Categories)
		}
		return a.Name < b.Name
	})

	g.Methods = out
	g.Stats.Methods = len(out)
	g.Stats.Signal = len(signalSet)
	g.Stats.Edges = len(g.Edges)
	return g
}

// dedupEdges returns one edge per (caller, callee, kind), in caller then
// call-site order.
func dedupEdges(methods []callgraph.MethodInfo) []Edge {
	var edges []Edge
	seen := make(map[Edge]bool)
	for _, m := range methods {
		for _, c := range m.Calls {
			e := Edge{From: m.Name, To: c.Callee(), Kind: c.Kind}
			if seen[e] {
				continue
			}
			seen[e] = true
			edges = append(edges, e)
		}
	}
	return edges
}

// expand walks up to hops edges out from every seed in both directions and
// returns the nodes reached, seeds excluded.
func expand(seeds map[string]bool, fwd, rev map[string][]string, hops int) map[string]bool {
	type item struct {
		name  string
		depth int
	}
	visited := make(map[string]bool, len(seeds))
	var queue []item
	for _, name := range sortedKeys(seeds) {
		visited[name] = true
		queue = append(queue, item{name, 0})
	}
	reached := make(map[string]bool)
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth >= hops {
			continue
		}
		next := append(append([]string(nil), fwd[it.name]...), rev[it.name]...)
		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			reached[n] = true
			queue = append(queue, item{n, it.depth + 1})
		}
	}
	return reached
}

// hasOtherCaller reports whether a method other than name calls it. Every
// caller in rev belongs to the analyzed set.
func hasOtherCaller(name string, rev map[string][]string) bool {
	for _, caller := range rev[name] {
		if caller != name {
			return true
		}
	}
	return false
}

func sortedAddrs(m map[int]string) []int {
	addrs := make([]int, 0, len(m))
	for a := range m {
		addrs = append(addrs, a)
	}
	sort.Ints(addrs)
	return addrs
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
