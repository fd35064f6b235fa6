package disasm

import "dexcfg/internal/dexfmt"

func u32(lo, hi uint16) uint32 { return uint32(lo) | uint32(hi)<<16 }

// decodeAt decodes the instruction at pc. The low byte of the first code
// unit is the opcode; operand layout is fixed by the opcode's format.
func decodeAt(code []uint16, pc int) (Inst, error) {
	u0 := code[pc]
	op := Opcode(u0)
	info := opcodes[op]
	if !info.Defined() {
		return Inst{}, dexfmt.Errorf(dexfmt.KindUnknownOpcode, int64(pc), "opcode 0x%02x", uint8(op))
	}
	n := info.Format.Units()
	if pc+n > len(code) {
		return Inst{}, dexfmt.Errorf(dexfmt.KindTruncatedData, int64(pc),
			"%s needs %d code units, %d left", info.Name, n, len(code)-pc)
	}
	u := code[pc : pc+n]
	inst := Inst{Addr: pc, Op: op, Size: n, Raw: u}

	hi := u0 >> 8
	a, b := hi&0xf, hi>>4 // nibble registers of 12x/22* formats

	switch info.Format {
	case Format10x:
	case Format12x:
		inst.Regs = []uint16{a, b}
	case Format11n:
		inst.Regs = []uint16{a}
		inst.Literal = int64(int8(uint8(b)<<4) >> 4)
	case Format11x:
		inst.Regs = []uint16{hi}
	case Format10t:
		inst.Branch = int32(int8(hi))
	case Format20t:
		inst.Branch = int32(int16(u[1]))
	case Format22x:
		inst.Regs = []uint16{hi, u[1]}
	case Format21t:
		inst.Regs = []uint16{hi}
		inst.Branch = int32(int16(u[1]))
	case Format21s:
		inst.Regs = []uint16{hi}
		inst.Literal = int64(int16(u[1]))
	case Format21h:
		inst.Regs = []uint16{hi}
		if op == OpConstWideHi16 {
			inst.Literal = int64(int16(u[1])) << 48
		} else {
			inst.Literal = int64(int32(uint32(u[1]) << 16))
		}
	case Format21c:
		inst.Regs = []uint16{hi}
		inst.Index = uint32(u[1])
	case Format23x:
		inst.Regs = []uint16{hi, u[1] & 0xff, u[1] >> 8}
	case Format22b:
		inst.Regs = []uint16{hi, u[1] & 0xff}
		inst.Literal = int64(int8(u[1] >> 8))
	case Format22t:
		inst.Regs = []uint16{a, b}
		inst.Branch = int32(int16(u[1]))
	case Format22s:
		inst.Regs = []uint16{a, b}
		inst.Literal = int64(int16(u[1]))
	case Format22c:
		inst.Regs = []uint16{a, b}
		inst.Index = uint32(u[1])
	case Format32x:
		inst.Regs = []uint16{u[1], u[2]}
	case Format30t:
		inst.Branch = int32(u32(u[1], u[2]))
	case Format31t:
		inst.Regs = []uint16{hi}
		inst.Branch = int32(u32(u[1], u[2]))
	case Format31i:
		inst.Regs = []uint16{hi}
		inst.Literal = int64(int32(u32(u[1], u[2])))
	case Format31c:
		inst.Regs = []uint16{hi}
		inst.Index = u32(u[1], u[2])
	case Format35c, Format45cc:
		// A|G|op BBBB F|E|D|C [HHHH]
		count := int(b)
		if count > 5 {
			return Inst{}, dexfmt.Errorf(dexfmt.KindUnknownOpcode, int64(pc),
				"%s: invalid encoding, %d argument registers", info.Name, count)
		}
		args := [5]uint16{u[2] & 0xf, (u[2] >> 4) & 0xf, (u[2] >> 8) & 0xf, u[2] >> 12, a}
		inst.Regs = append([]uint16(nil), args[:count]...)
		inst.Index = uint32(u[1])
		if info.Format == Format45cc {
			inst.Proto = uint32(u[3])
		}
	case Format3rc, Format4rcc:
		// AA|op BBBB CCCC [HHHH]
		inst.Range = true
		inst.Regs = make([]uint16, hi)
		for i := range inst.Regs {
			inst.Regs[i] = u[2] + uint16(i)
		}
		inst.Index = uint32(u[1])
		if info.Format == Format4rcc {
			inst.Proto = uint32(u[3])
		}
	case Format51l:
		inst.Regs = []uint16{hi}
		inst.Literal = int64(uint64(u[1]) | uint64(u[2])<<16 | uint64(u[3])<<32 | uint64(u[4])<<48)
	}
	return inst, nil
}
