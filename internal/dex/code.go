package dex

import (
	"encoding/binary"

	"dexcfg/internal/dexfmt"
)

// CodeItem is a decoded code_item.
type CodeItem struct {
	Offset       uint32 // file offset of the code_item
	Registers    uint16
	Ins          uint16
	Outs         uint16
	DebugInfoOff uint32
	Insns        []uint16
	Tries        []TryItem
	Handlers     []CatchHandler
}

// TryItem covers code units [StartAddr, StartAddr+InsnCount).
type TryItem struct {
	StartAddr  uint32
	InsnCount  uint16
	HandlerOff uint16 // byte offset into the encoded_catch_handler_list
	Handler    int    // index into CodeItem.Handlers
}

// End returns the first code unit past the range.
func (t TryItem) End() uint32 { return t.StartAddr + uint32(t.InsnCount) }

// TypeAddrPair is one typed catch clause.
type TypeAddrPair struct {
	TypeIdx uint32
	Addr    uint32
}

// CatchHandler is a decoded encoded_catch_handler.
type CatchHandler struct {
	Offset   uint16 // offset within the handler list
	Pairs    []TypeAddrPair
	CatchAll int64 // code-unit address, -1 when absent
}

// HandlerFor returns the handler referenced by t.
func (c *CodeItem) HandlerFor(t TryItem) *CatchHandler {
	if t.Handler < 0 || t.Handler >= len(c.Handlers) {
		return nil
	}
	return &c.Handlers[t.Handler]
}

func (f *File) readCodeItem(off uint32) (*CodeItem, error) {
	r, err := dexfmt.NewReaderAt(f.data, int(off))
	if err != nil {
		return nil, err
	}
	c := &CodeItem{Offset: off}
	c.Registers, _ = r.ReadUint16()
	c.Ins, _ = r.ReadUint16()
	c.Outs, _ = r.ReadUint16()
	triesSize, _ := r.ReadUint16()
	c.DebugInfoOff, _ = r.ReadUint32()
	insnsSize, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(insnsSize)*2 > uint64(r.Remaining()) {
		return nil, dexfmt.Errorf(dexfmt.KindTruncatedData, int64(off), "insns_size %d exceeds file", insnsSize)
	}
	raw, _ := r.ReadBytes(int(insnsSize) * 2)
	c.Insns = make([]uint16, insnsSize)
	for i := range c.Insns {
		c.Insns[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	if triesSize == 0 {
		return c, nil
	}

	if insnsSize%2 == 1 {
		if err := r.Skip(2); err != nil {
			return nil, err
		}
	}
	c.Tries = make([]TryItem, triesSize)
	for i := range c.Tries {
		start, _ := r.ReadUint32()
		count, _ := r.ReadUint16()
		hoff, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		c.Tries[i] = TryItem{StartAddr: start, InsnCount: count, HandlerOff: hoff, Handler: -1}
	}

	listStart := r.Position()
	n, err := r.ReadULEB128()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return nil, dexfmt.Errorf(dexfmt.KindTruncatedData, int64(listStart), "%d catch handlers exceed file", n)
	}
	c.Handlers = make([]CatchHandler, 0, n)
	byOffset := make(map[int]int, n)
	for i := uint32(0); i < n; i++ {
		rel := r.Position() - listStart
		h, err := f.readCatchHandler(r)
		if err != nil {
			return nil, err
		}
		h.Offset = uint16(rel)
		byOffset[rel] = len(c.Handlers)
		c.Handlers = append(c.Handlers, h)
	}

	for i := range c.Tries {
		hi, ok := byOffset[int(c.Tries[i].HandlerOff)]
		if !ok {
			return nil, dexfmt.Errorf(dexfmt.KindBadOffset, int64(listStart)+int64(c.Tries[i].HandlerOff),
				"try %d: handler_off 0x%x does not start a handler", i, c.Tries[i].HandlerOff)
		}
		c.Tries[i].Handler = hi
	}
	return c, nil
}

func (f *File) readCatchHandler(r *dexfmt.Reader) (CatchHandler, error) {
	h := CatchHandler{CatchAll: -1}
	size, err := r.ReadSLEB128()
	if err != nil {
		return h, err
	}
	pairs := int64(size)
	if pairs < 0 {
		pairs = -pairs
	}
	if pairs*2 > int64(r.Remaining()) {
		return h, dexfmt.Errorf(dexfmt.KindTruncatedData, int64(r.Position()), "catch handler with %d clauses exceeds file", pairs)
	}
	h.Pairs = make([]TypeAddrPair, pairs)
	for i := range h.Pairs {
		pos := r.Position()
		typeIdx, err := r.ReadULEB128()
		if err != nil {
			return h, err
		}
		if err := f.checkType(pos, "catch_handler", i, typeIdx); err != nil {
			return h, err
		}
		addr, err := r.ReadULEB128()
		if err != nil {
			return h, err
		}
		h.Pairs[i] = TypeAddrPair{TypeIdx: typeIdx, Addr: addr}
	}
	if size <= 0 {
		addr, err := r.ReadULEB128()
		if err != nil {
			return h, err
		}
		h.CatchAll = int64(addr)
	}
	return h, nil
}
