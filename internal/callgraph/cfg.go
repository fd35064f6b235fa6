package callgraph

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/zboralski/lattice"

	"dexcfg/internal/disasm"
)

// BuildCFG constructs a lattice.CFGGraph from analyzed methods. Each
// method's disasm.FuncCFG is mapped to lattice types with its invoke
// sites attached to the blocks that contain them.
func BuildCFG(methods []MethodInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, m := range methods {
		cg.Funcs = append(cg.Funcs, ConvertFuncCFG(m.CFG, m.Calls, m.Strings))
	}
	return cg
}

// BuildFuncCFG converts a single method. Returns the lattice.FuncCFG and
// the number of basic blocks.
func BuildFuncCFG(m MethodInfo) (*lattice.FuncCFG, int) {
	return ConvertFuncCFG(m.CFG, m.Calls, m.Strings), len(m.CFG.Blocks)
}

// succCond maps an edge to a lattice condition label. Unconditional
// edges have no label; branch edges use the T/F convention.
func succCond(s disasm.Succ) string {
	switch s.Kind {
	case disasm.EdgeFallthrough, disasm.EdgeGoto:
		return ""
	case disasm.EdgeTrue:
		return "T"
	case disasm.EdgeFalse:
		return "F"
	}
	return s.Label()
}

// StringRefs maps the address of every const-string instruction to its
// resolved value. Unresolvable strings are skipped.
func StringRefs(insts []disasm.Inst, r disasm.Resolver) map[int]string {
	if r == nil {
		return nil
	}
	refs := make(map[int]string)
	for _, inst := range insts {
		if inst.Info().Index != disasm.IndexString {
			continue
		}
		if s, ok := r(disasm.IndexString, inst.Index); ok {
			refs[inst.Addr] = s
		}
	}
	return refs
}

// injectStringRefs adds string reference CallSite entries into the blocks
// that load them.
func injectStringRefs(lcfg *lattice.FuncCFG, dcfg disasm.FuncCFG, strRefs map[int]string) {
	if len(strRefs) == 0 {
		return
	}
	for bi, db := range dcfg.Blocks {
		added := false
		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			if val, ok := strRefs[dcfg.Insts[idx].Addr]; ok {
				if utf8.RuneCountInString(val) > 50 {
					val = string([]rune(val)[:47]) + "..."
				}
				lcfg.Blocks[bi].Calls = append(lcfg.Blocks[bi].Calls, lattice.CallSite{
					Offset: idx,
					Callee: fmt.Sprintf("%q", val),
				})
				added = true
			}
		}
		if added {
			sort.SliceStable(lcfg.Blocks[bi].Calls, func(i, j int) bool {
				return lcfg.Blocks[bi].Calls[i].Offset < lcfg.Blocks[bi].Calls[j].Offset
			})
		}
	}
}

// ConvertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG.
// Call edges are mapped into blocks by matching instruction addresses;
// strRefs (may be nil) adds const-string loads the same way.
func ConvertFuncCFG(dcfg disasm.FuncCFG, edges []disasm.CallEdge, strRefs map[int]string) *lattice.FuncCFG {
	edgeByAddr := make(map[int]disasm.CallEdge, len(edges))
	for _, e := range edges {
		edgeByAddr[e.FromAddr] = e
	}

	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}

		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    succCond(ds),
			})
		}

		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			if e, ok := edgeByAddr[dcfg.Insts[idx].Addr]; ok {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx,
					Callee: e.Callee(),
				})
			}
		}

		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	injectStringRefs(lcfg, dcfg, strRefs)
	return lcfg
}
