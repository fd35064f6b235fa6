package disasm

import "dexcfg/internal/dexfmt"

// PayloadKind identifies a payload pseudo-instruction.
type PayloadKind uint8

const (
	PackedSwitchPayload PayloadKind = 1 // ident 0x0100
	SparseSwitchPayload PayloadKind = 2 // ident 0x0200
	FillArrayPayload    PayloadKind = 3 // ident 0x0300
)

func (k PayloadKind) String() string {
	switch k {
	case PackedSwitchPayload:
		return "packed-switch-payload"
	case SparseSwitchPayload:
		return "sparse-switch-payload"
	case FillArrayPayload:
		return "fill-array-data-payload"
	}
	return "unknown-payload"
}

// SwitchCase is one switch payload entry. Rel is relative to the
// address of the switch instruction, not the payload.
type SwitchCase struct {
	Key int32
	Rel int32
}

// Payload is an inline data table following the method's code.
type Payload struct {
	Kind PayloadKind
	Addr int
	Size int // code units, including the ident

	Cases []SwitchCase // switch payloads, in table order

	ElementWidth int    // fill-array-data only
	Elements     int    // fill-array-data only
	Data         []byte // fill-array-data only, Elements*ElementWidth bytes
}

// parsePayload parses the payload starting at pc. code[pc] has opcode 0x00
// and a non-zero ident in the high byte.
func parsePayload(code []uint16, pc int) (*Payload, error) {
	ident := code[pc] >> 8
	rest := len(code) - pc
	short := func(need uint64) error {
		return dexfmt.Errorf(dexfmt.KindMalformedPayload, int64(pc),
			"%s needs %d code units, %d left", PayloadKind(ident), need, rest)
	}

	switch PayloadKind(ident) {
	case PackedSwitchPayload:
		// ident size first_key[2] targets[2*size]
		if rest < 4 {
			return nil, short(4)
		}
		n := int(code[pc+1])
		size := 4 + 2*n
		if size > rest {
			return nil, short(uint64(size))
		}
		first := int32(u32(code[pc+2], code[pc+3]))
		p := &Payload{Kind: PackedSwitchPayload, Addr: pc, Size: size, Cases: make([]SwitchCase, n)}
		for i := range n {
			t := pc + 4 + 2*i
			p.Cases[i] = SwitchCase{Key: first + int32(i), Rel: int32(u32(code[t], code[t+1]))}
		}
		return p, nil

	case SparseSwitchPayload:
		// ident size keys[2*size] targets[2*size]
		if rest < 2 {
			return nil, short(2)
		}
		n := int(code[pc+1])
		size := 2 + 4*n
		if size > rest {
			return nil, short(uint64(size))
		}
		p := &Payload{Kind: SparseSwitchPayload, Addr: pc, Size: size, Cases: make([]SwitchCase, n)}
		for i := range n {
			k := pc + 2 + 2*i
			t := pc + 2 + 2*n + 2*i
			p.Cases[i] = SwitchCase{
				Key: int32(u32(code[k], code[k+1])),
				Rel: int32(u32(code[t], code[t+1])),
			}
		}
		return p, nil

	case FillArrayPayload:
		// ident element_width size[2] data[(size*width+1)/2]
		if rest < 4 {
			return nil, short(4)
		}
		width := uint64(code[pc+1])
		n := uint64(u32(code[pc+2], code[pc+3]))
		nbytes := n * width
		size := 4 + (nbytes+1)/2
		if size > uint64(rest) {
			return nil, short(size)
		}
		data := make([]byte, nbytes)
		for i := range data {
			u := code[pc+4+i/2]
			if i%2 == 0 {
				data[i] = byte(u)
			} else {
				data[i] = byte(u >> 8)
			}
		}
		return &Payload{
			Kind:         FillArrayPayload,
			Addr:         pc,
			Size:         int(size),
			ElementWidth: int(width),
			Elements:     int(n),
			Data:         data,
		}, nil
	}
	return nil, dexfmt.Errorf(dexfmt.KindUnknownOpcode, int64(pc), "unknown payload ident 0x%04x", code[pc])
}
