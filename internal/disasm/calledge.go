package disasm

import "strings"

// CallEdge represents an invoke-* call site.
type CallEdge struct {
	FromAddr   int    `json:"from_addr"`
	Kind       string `json:"kind"` // "virtual", "static", "custom", ...
	Range      bool   `json:"range,omitempty"`
	Index      uint32 `json:"index"` // method index, or call site index for invoke-custom
	TargetName string `json:"target_name,omitempty"`
}

// invokeKind strips the "invoke-" prefix and "/range" suffix.
func invokeKind(name string) string {
	name = strings.TrimPrefix(name, "invoke-")
	return strings.TrimSuffix(name, "/range")
}

// ExtractCallEdges returns one edge per invoke-* instruction, in address
// order. r resolves callee names; unresolved callees keep TargetName empty.
func ExtractCallEdges(insts []Inst, r Resolver) []CallEdge {
	var edges []CallEdge
	for _, inst := range insts {
		if !IsInvoke(inst) {
			continue
		}
		info := inst.Info()
		e := CallEdge{
			FromAddr: inst.Addr,
			Kind:     invokeKind(info.Name),
			Range:    inst.Range,
			Index:    inst.Index,
		}
		if r != nil {
			if name, ok := r(info.Index, inst.Index); ok {
				e.TargetName = name
			}
		}
		edges = append(edges, e)
	}
	return edges
}

// Callee returns the resolved target name, or the kind@index form.
func (e CallEdge) Callee() string {
	if e.TargetName != "" {
		return e.TargetName
	}
	if e.Kind == "custom" {
		return poolRef(IndexCallSite, e.Index, nil)
	}
	return poolRef(IndexMethod, e.Index, nil)
}
