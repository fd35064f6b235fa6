// Package disasm decodes Dalvik bytecode and builds per-method control
// flow graphs.
package disasm

import (
	"fmt"
	"sort"
	"strings"

	"dexcfg/internal/dexfmt"
)

// Inst is a decoded Dalvik instruction.
type Inst struct {
	Addr    int // code-unit offset from the start of insns
	Op      Opcode
	Size    int      // width in code units
	Raw     []uint16 // aliases the decoded buffer
	Regs    []uint16
	Range   bool // Regs came from a /range encoding
	Literal int64
	Index   uint32 // pool index, kind given by Info().Index
	Proto   uint32 // proto index of invoke-polymorphic
	Branch  int32  // relative target in code units
	Payload *Payload
}

// Info returns the opcode table entry.
func (i Inst) Info() OpInfo { return opcodes[i.Op] }

// Name returns the mnemonic.
func (i Inst) Name() string { return opcodes[i.Op].Name }

// End returns the address of the next code unit after i.
func (i Inst) End() int { return i.Addr + i.Size }

// Target returns the absolute address i.Branch refers to.
func (i Inst) Target() int { return i.Addr + int(i.Branch) }

// Code is a decoded method body.
type Code struct {
	Insts    []Inst
	Payloads []*Payload
	Units    int // len of the decoded buffer
}

// IndexOf returns the index of the instruction starting at addr.
func (c *Code) IndexOf(addr int) (int, bool) {
	i := sort.Search(len(c.Insts), func(i int) bool { return c.Insts[i].Addr >= addr })
	if i < len(c.Insts) && c.Insts[i].Addr == addr {
		return i, true
	}
	return 0, false
}

// PayloadAt returns the payload starting at addr, or nil.
func (c *Code) PayloadAt(addr int) *Payload {
	i := sort.Search(len(c.Payloads), func(i int) bool { return c.Payloads[i].Addr >= addr })
	if i < len(c.Payloads) && c.Payloads[i].Addr == addr {
		return c.Payloads[i]
	}
	return nil
}

// Decode decodes a method's insns array. Payload pseudo-instructions are
// collected separately and linked to the switch or fill-array-data
// instruction that references them. Decoding stops at the first error.
func Decode(code []uint16) (*Code, error) {
	out := &Code{Units: len(code)}
	for pc := 0; pc < len(code); {
		u0 := code[pc]
		if Opcode(u0) == OpNop && u0>>8 != 0 {
			p, err := parsePayload(code, pc)
			if err != nil {
				return nil, err
			}
			out.Payloads = append(out.Payloads, p)
			pc += p.Size
			continue
		}
		inst, err := decodeAt(code, pc)
		if err != nil {
			return nil, err
		}
		out.Insts = append(out.Insts, inst)
		pc += inst.Size
	}
	if err := out.linkPayloads(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Code) linkPayloads() error {
	for i := range c.Insts {
		inst := &c.Insts[i]
		var want PayloadKind
		switch inst.Op {
		case OpPackedSwitch:
			want = PackedSwitchPayload
		case OpSparseSwitch:
			want = SparseSwitchPayload
		case OpFillArrayData:
			want = FillArrayPayload
		default:
			continue
		}
		target := inst.Target()
		if target%2 != 0 {
			return dexfmt.Errorf(dexfmt.KindMalformedPayload, int64(inst.Addr),
				"%s payload at odd address %d", inst.Name(), target)
		}
		p := c.PayloadAt(target)
		if p == nil {
			return dexfmt.Errorf(dexfmt.KindMalformedPayload, int64(inst.Addr),
				"%s: no payload at %d", inst.Name(), target)
		}
		if p.Kind != want {
			return dexfmt.Errorf(dexfmt.KindMalformedPayload, int64(inst.Addr),
				"%s: payload at %d is %s", inst.Name(), target, p.Kind)
		}
		inst.Payload = p
	}
	return nil
}

// Listing renders instructions as a linear listing.
// Each line: <addr>: <code units>  <text>  ; <annotation>
// Annotators are checked in order; the first non-empty result is used.
func Listing(insts []Inst, r Resolver, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "%04x: ", inst.Addr)
		var raw strings.Builder
		for j, u := range inst.Raw {
			if j > 0 {
				raw.WriteByte(' ')
			}
			fmt.Fprintf(&raw, "%04x", u)
		}
		fmt.Fprintf(&b, "%-24s  ", raw.String())
		b.WriteString(Render(inst, r))
		for _, ann := range annotators {
			if s := ann(inst); s != "" {
				fmt.Fprintf(&b, "  ; %s", s)
				break
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
