package disasm

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolver returns a display name for a constant pool index. It returns
// ("", false) if the index is unknown, and the raw kind@index form is used.
type Resolver func(kind IndexKind, idx uint32) (name string, ok bool)

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Inst) string

// String renders the instruction without name resolution, e.g.
// "invoke-static {v0, v3}, method@4455".
func (i Inst) String() string { return Render(i, nil) }

// Render renders the instruction, substituting pool names from r when it
// knows them. String constants are quoted.
func Render(inst Inst, r Resolver) string {
	info := inst.Info()
	if !info.Defined() {
		return fmt.Sprintf("unused-%02x", uint8(inst.Op))
	}
	var ops []string

	switch info.Format {
	case Format35c, Format3rc, Format45cc, Format4rcc:
		ops = append(ops, regList(inst.Regs))
	default:
		for _, reg := range inst.Regs {
			ops = append(ops, "v"+strconv.Itoa(int(reg)))
		}
	}

	switch info.Format {
	case Format11n, Format21s, Format21h, Format31i, Format51l, Format22b, Format22s:
		ops = append(ops, hexLiteral(inst.Literal))
	case Format10t, Format20t, Format30t, Format21t, Format22t, Format31t:
		ops = append(ops, fmt.Sprintf("%+d", inst.Branch))
	}

	if info.Index != IndexNone {
		ops = append(ops, poolRef(info.Index, inst.Index, r))
		if info.Format == Format45cc || info.Format == Format4rcc {
			ops = append(ops, poolRef(IndexProto, inst.Proto, r))
		}
	}

	if len(ops) == 0 {
		return info.Name
	}
	return info.Name + " " + strings.Join(ops, ", ")
}

func regList(regs []uint16) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, reg := range regs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("v" + strconv.Itoa(int(reg)))
	}
	b.WriteByte('}')
	return b.String()
}

func hexLiteral(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-0x%x", uint64(-v))
	}
	return fmt.Sprintf("0x%x", v)
}

func poolRef(kind IndexKind, idx uint32, r Resolver) string {
	if r != nil {
		if name, ok := r(kind, idx); ok {
			if kind == IndexString {
				return strconv.Quote(name)
			}
			return name
		}
	}
	return fmt.Sprintf("%s@%x", kind, idx)
}

// TargetAnnotator annotates branches with their absolute target address.
func TargetAnnotator() Annotator {
	return func(inst Inst) string {
		switch inst.Flow() {
		case FlowGoto, FlowBranch:
			return fmt.Sprintf("-> %04x", inst.Target())
		}
		return ""
	}
}

// PayloadAnnotator summarizes the payload a switch or fill-array-data
// instruction refers to.
func PayloadAnnotator() Annotator {
	return func(inst Inst) string {
		p := inst.Payload
		if p == nil {
			return ""
		}
		if p.Kind == FillArrayPayload {
			return fmt.Sprintf("%s @%04x: %d x %d bytes", p.Kind, p.Addr, p.Elements, p.ElementWidth)
		}
		cases := make([]string, len(p.Cases))
		for i, c := range p.Cases {
			cases[i] = fmt.Sprintf("%d -> %04x", c.Key, inst.Addr+int(c.Rel))
		}
		return fmt.Sprintf("%s @%04x: %s", p.Kind, p.Addr, strings.Join(cases, ", "))
	}
}
