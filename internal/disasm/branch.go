package disasm

// Control transfer classification. These functions identify basic-block
// terminators and extract branch targets.

// Flow is the control-flow behavior of an instruction.
type Flow uint8

const (
	FlowNext   Flow = iota // falls through to the next instruction
	FlowGoto               // unconditional jump
	FlowBranch             // if-*: jump or fall through
	FlowSwitch             // packed-switch, sparse-switch
	FlowReturn             // return*
	FlowThrow              // throw
)

func (f Flow) String() string {
	switch f {
	case FlowNext:
		return "next"
	case FlowGoto:
		return "goto"
	case FlowBranch:
		return "branch"
	case FlowSwitch:
		return "switch"
	case FlowReturn:
		return "return"
	case FlowThrow:
		return "throw"
	}
	return "unknown"
}

// Flow classifies the instruction.
func (i Inst) Flow() Flow {
	f := opcodes[i.Op].flags
	switch {
	case f&flagGoto != 0:
		return FlowGoto
	case f&flagBranch != 0:
		return FlowBranch
	case f&flagSwitch != 0:
		return FlowSwitch
	case f&flagReturn != 0:
		return FlowReturn
	case f&flagThrow != 0:
		return FlowThrow
	}
	return FlowNext
}

// FallsThrough reports whether execution may continue at i.End().
func (f Flow) FallsThrough() bool {
	return f == FlowNext || f == FlowBranch || f == FlowSwitch
}

// BranchInfo describes a decoded control transfer.
type BranchInfo struct {
	Target  int   // absolute target address (goto, if-*)
	Cases   []int // absolute case targets in payload order (switches)
	Cond    bool  // true if conditional (has fallthrough)
	IsRet   bool
	IsThrow bool
}

// DecodeBranch returns the control transfer performed by inst, or nil if
// it simply falls through. Switch cases are only filled once the payload
// has been linked.
func DecodeBranch(inst Inst) *BranchInfo {
	switch inst.Flow() {
	case FlowGoto:
		return &BranchInfo{Target: inst.Target()}
	case FlowBranch:
		return &BranchInfo{Target: inst.Target(), Cond: true}
	case FlowSwitch:
		bi := &BranchInfo{Cond: true}
		if inst.Payload != nil {
			for _, c := range inst.Payload.Cases {
				bi.Cases = append(bi.Cases, inst.Addr+int(c.Rel))
			}
		}
		return bi
	case FlowReturn:
		return &BranchInfo{IsRet: true}
	case FlowThrow:
		return &BranchInfo{IsThrow: true}
	}
	return nil
}

// IsBranchTerminator returns true if the instruction ends a basic block:
// goto, if-*, switches, return and throw. Invokes do not, since they
// return to the next instruction.
func IsBranchTerminator(inst Inst) bool {
	return inst.Flow() != FlowNext
}

// IsInvoke reports whether inst is one of the invoke-* instructions.
func IsInvoke(inst Inst) bool {
	return opcodes[inst.Op].flags&flagInvoke != 0
}
