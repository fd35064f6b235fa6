package disasm

import (
	"fmt"
	"sort"

	"dexcfg/internal/dex"
	"dexcfg/internal/dexfmt"
)

// EdgeKind is the kind of a control-flow edge.
type EdgeKind uint8

const (
	EdgeFallthrough EdgeKind = iota
	EdgeGoto
	EdgeTrue
	EdgeFalse
	EdgeCase
	EdgeDefault
	EdgeCatch
)

var edgeKindNames = [...]string{
	EdgeFallthrough: "fallthrough",
	EdgeGoto:        "goto",
	EdgeTrue:        "true",
	EdgeFalse:       "false",
	EdgeCase:        "case",
	EdgeDefault:     "default",
	EdgeCatch:       "catch",
}

func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return "unknown"
}

// BasicBlock is a maximal run of instructions with a single entry point.
type BasicBlock struct {
	ID        int
	Start     int // index into FuncCFG.Insts (inclusive)
	End       int // index into FuncCFG.Insts (exclusive)
	StartAddr int // code-unit address of the first instruction
	EndAddr   int // code-unit address just past the last instruction
	Succs     []Succ
	IsEntry   bool
	IsTerm    bool // no normal successor: return, throw, payload padding
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Kind    EdgeKind
	Value   int32  // case key
	Type    string // caught type descriptor, "" = any
}

// Label renders the edge for display: "true", "case 3",
// "catch java.lang.Exception", "catch any".
func (s Succ) Label() string {
	switch s.Kind {
	case EdgeCase:
		return fmt.Sprintf("case %d", s.Value)
	case EdgeCatch:
		if s.Type == "" {
			return "catch any"
		}
		return "catch " + dex.PrettyType(s.Type)
	}
	return s.Kind.String()
}

// Edge is a Succ together with its source block.
type Edge struct {
	From int
	To   int
	Succ
}

// TryRange is a try item resolved for CFG construction: the covered
// address range [Start, End) and its handlers in declaration order,
// catch-all last.
type TryRange struct {
	Start    int
	End      int
	Handlers []Handler
}

// Handler is one catch clause. Type is a descriptor, "" for catch-all.
type Handler struct {
	Type string
	Addr int
}

// FuncCFG is a per-method control flow graph.
type FuncCFG struct {
	Name     string
	Blocks   []BasicBlock
	Insts    []Inst
	Payloads []*Payload
}

// Edges returns every edge, ordered by source block then successor order.
func (f FuncCFG) Edges() []Edge {
	var out []Edge
	for _, b := range f.Blocks {
		for _, s := range b.Succs {
			out = append(out, Edge{From: b.ID, To: s.BlockID, Succ: s})
		}
	}
	return out
}

// BlockOf returns the block containing instruction index i.
func (f FuncCFG) BlockOf(i int) (int, bool) {
	j := sort.Search(len(f.Blocks), func(j int) bool { return f.Blocks[j].End > i })
	if j < len(f.Blocks) && f.Blocks[j].Start <= i {
		return j, true
	}
	return 0, false
}

// padsPayload reports whether inst is a plain instruction, normally the
// alignment nop, that runs straight into a switch or array payload. It has
// no successor.
func padsPayload(code *Code, inst Inst) bool {
	return inst.Flow() == FlowNext && code.PayloadAt(inst.End()) != nil
}

func invalidTarget(addr int, format string, args ...any) error {
	return dexfmt.Errorf(dexfmt.KindInvalidTarget, int64(addr), format, args...)
}

// findLeaders computes the sorted instruction indices that start a block:
// index 0, the instruction after every terminator or payload pad, every
// branch and case target, every try start and every handler. Every referenced address
// must be the start of a decoded instruction.
func findLeaders(code *Code, tries []TryRange) ([]int, error) {
	insts := code.Insts
	leaders := map[int]bool{0: true}

	mark := func(from, addr int, what string) error {
		idx, ok := code.IndexOf(addr)
		if !ok {
			return invalidTarget(from, "%s %d is not an instruction boundary", what, addr)
		}
		leaders[idx] = true
		return nil
	}

	for i, inst := range insts {
		flow := inst.Flow()
		if padsPayload(code, inst) {
			if i+1 < len(insts) {
				leaders[i+1] = true
			}
			continue
		}
		if flow.FallsThrough() {
			if _, ok := code.IndexOf(inst.End()); !ok {
				return nil, invalidTarget(inst.Addr, "%s falls through to %d", inst.Name(), inst.End())
			}
		}
		bi := DecodeBranch(inst)
		if bi == nil {
			continue
		}
		// The instruction after a terminator is a leader (if it exists).
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		if flow == FlowGoto || flow == FlowBranch {
			if err := mark(inst.Addr, bi.Target, "branch target"); err != nil {
				return nil, err
			}
		}
		for _, t := range bi.Cases {
			if err := mark(inst.Addr, t, "case target"); err != nil {
				return nil, err
			}
		}
	}

	for _, t := range tries {
		if t.End <= t.Start {
			continue
		}
		if err := mark(t.Start, t.Start, "try start"); err != nil {
			return nil, err
		}
		for _, h := range t.Handlers {
			if err := mark(h.Addr, h.Addr, "handler"); err != nil {
				return nil, err
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)
	return sorted, nil
}

// BuildCFG constructs a control flow graph from a decoded method body.
// The algorithm:
//  1. Find block leaders (findLeaders); fails with InvalidTarget.
//  2. Partition instructions into blocks by leaders.
//  3. Compute normal successor edges from each block's last instruction,
//     then append exception edges for every try range covering the block.
func BuildCFG(name string, code *Code, tries []TryRange) (FuncCFG, error) {
	cfg := FuncCFG{Name: name}
	if code == nil || len(code.Insts) == 0 {
		return cfg, nil
	}
	insts := code.Insts
	cfg.Insts = insts
	cfg.Payloads = code.Payloads

	// Pass 1: leaders.
	sorted, err := findLeaders(code, tries)
	if err != nil {
		return FuncCFG{}, err
	}

	// Pass 2: partition into blocks.
	blocks := make([]BasicBlock, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts) // last block extends to end
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{
			ID:        i,
			Start:     start,
			End:       end,
			StartAddr: insts[start].Addr,
			EndAddr:   insts[end-1].End(),
			IsEntry:   start == 0,
		}
		leaderToBlock[start] = i
	}
	blockAt := func(addr int) int {
		idx, _ := code.IndexOf(addr)
		return leaderToBlock[idx]
	}

	// Pass 3: successors.
	for i := range blocks {
		blk := &blocks[i]
		last := insts[blk.End-1]
		bi := DecodeBranch(last)

		switch {
		case padsPayload(code, last):
			blk.IsTerm = true
		case bi == nil:
			blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(last.End()), Kind: EdgeFallthrough})
		case bi.IsRet || bi.IsThrow:
			blk.IsTerm = true
		case last.Flow() == FlowGoto:
			blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(bi.Target), Kind: EdgeGoto})
		case last.Flow() == FlowBranch:
			blk.Succs = append(blk.Succs,
				Succ{BlockID: blockAt(bi.Target), Kind: EdgeTrue},
				Succ{BlockID: blockAt(last.End()), Kind: EdgeFalse})
		case last.Flow() == FlowSwitch:
			var cases []SwitchCase
			if last.Payload != nil {
				cases = append(cases, last.Payload.Cases...)
			}
			sort.SliceStable(cases, func(a, b int) bool { return cases[a].Key < cases[b].Key })
			for _, c := range cases {
				blk.Succs = append(blk.Succs, Succ{
					BlockID: blockAt(last.Addr + int(c.Rel)),
					Kind:    EdgeCase,
					Value:   c.Key,
				})
			}
			blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(last.End()), Kind: EdgeDefault})
		}

		// Exception edges, in try order then handler order. A block is
		// covered if any of its instructions lies in [Start, End); try
		// starts are leaders, so overlap is enough.
		for _, t := range tries {
			if t.End <= t.Start || t.Start >= blk.EndAddr || blk.StartAddr >= t.End {
				continue
			}
			for _, h := range t.Handlers {
				blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(h.Addr), Kind: EdgeCatch, Type: h.Type})
			}
		}
	}

	cfg.Blocks = blocks
	return cfg, nil
}
