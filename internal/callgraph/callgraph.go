// Package callgraph converts method CFGs and invoke sites into lattice
// graphs.
package callgraph

import (
	"github.com/zboralski/lattice"

	"dexcfg/internal/disasm"
)

// MethodInfo holds the data needed to build a call graph and CFG for one
// method.
type MethodInfo struct {
	Name    string // "Lcom/a/B;->run()V"
	CFG     disasm.FuncCFG
	Calls   []disasm.CallEdge
	Strings map[int]string // const-string values by address, optional
}

// BuildCallGraph constructs a lattice.Graph from analyzed methods.
// Each method becomes a node and each invoke site an edge to its callee;
// callees are named "method@idx" when they could not be resolved.
func BuildCallGraph(methods []MethodInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, m := range methods {
		g.Nodes = append(g.Nodes, m.Name)
		for _, e := range m.Calls {
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: m.Name,
				Callee: e.Callee(),
			})
		}
	}
	g.Dedup()
	return g
}
