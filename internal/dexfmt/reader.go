package dexfmt

import (
	"encoding/binary"
	"unicode"
	"unicode/utf16"
)

// EndianConstant is the endian_tag of a little-endian dex file.
const EndianConstant = 0x12345678

// ReverseEndianConstant is the tag of a byte-swapped file.
const ReverseEndianConstant = 0x78563412

// CheckEndian rejects any tag other than EndianConstant.
func CheckEndian(tag uint32) error {
	if tag == EndianConstant {
		return nil
	}
	if tag == ReverseEndianConstant {
		return Errorf(KindUnsupportedEndianness, 40, "big-endian file (tag 0x%08x)", tag)
	}
	return Errorf(KindUnsupportedEndianness, 40, "unexpected endian tag 0x%08x", tag)
}

// Reader is a bounds-checked little-endian cursor over dex data.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader over data positioned at 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// NewReaderAt creates a reader positioned at off.
func NewReaderAt(data []byte, off int) (*Reader, error) {
	r := NewReader(data)
	if err := r.Seek(off); err != nil {
		return nil, err
	}
	return r, nil
}

// Position returns the current read position.
func (r *Reader) Position() int { return r.pos }

// Remaining returns bytes left to read.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Len returns the size of the underlying buffer.
func (r *Reader) Len() int { return len(r.data) }

// Seek moves the cursor to off. Seeking to the end is allowed.
func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.data) {
		return Errorf(KindBadOffset, int64(off), "seek past end of %d-byte buffer", len(r.data))
	}
	r.pos = off
	return nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Align advances position to the next multiple of alignment.
func (r *Reader) Align(alignment int) error {
	if alignment <= 0 {
		return nil
	}
	if rem := r.pos % alignment; rem != 0 {
		return r.Skip(alignment - rem)
	}
	return nil
}

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return Errorf(KindTruncatedData, int64(r.pos), "need %d bytes, %d left", n, r.Remaining())
	}
	return nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadBytes returns the next n bytes. The slice aliases the buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return out, nil
}

// maxLEB128 is the longest encoding of a 32-bit value.
const maxLEB128 = 5

// ReadULEB128 reads an unsigned LEB128 value of at most 32 bits.
func (r *Reader) ReadULEB128() (uint32, error) {
	start := r.pos
	var v uint32
	for i := 0; i < maxLEB128; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		if i == maxLEB128-1 && b&0xf0 != 0 {
			return 0, Errorf(KindTruncatedData, int64(start), "uleb128 overflows 32 bits")
		}
		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, Errorf(KindTruncatedData, int64(start), "uleb128 longer than %d bytes", maxLEB128)
}

// ReadSLEB128 reads a signed LEB128 value of at most 32 bits.
func (r *Reader) ReadSLEB128() (int32, error) {
	start := r.pos
	var v uint32
	for i := 0; i < maxLEB128; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			shift := 7 * (i + 1)
			if shift < 32 && b&0x40 != 0 {
				v |= ^uint32(0) << shift
			}
			return int32(v), nil
		}
	}
	return 0, Errorf(KindTruncatedData, int64(start), "sleb128 longer than %d bytes", maxLEB128)
}

// ReadULEB128p1 reads a uleb128p1 value; the encoded 0 decodes to -1.
func (r *Reader) ReadULEB128p1() (int64, error) {
	v, err := r.ReadULEB128()
	if err != nil {
		return 0, err
	}
	return int64(v) - 1, nil
}

const replacement = uint16(unicode.ReplacementChar)

// ReadMUTF8 decodes count UTF-16 code units of Modified UTF-8.
// Supplementary characters arrive as surrogate pairs and are joined.
// Malformed sequences decode to U+FFFD.
func (r *Reader) ReadMUTF8(count int) (string, error) {
	start := r.pos
	if count < 0 {
		return "", Errorf(KindTruncatedData, int64(start), "negative string length %d", count)
	}
	// Every unit takes at least one byte.
	if count > r.Remaining() {
		return "", Errorf(KindTruncatedData, int64(start), "string of %d units exceeds %d remaining bytes", count, r.Remaining())
	}
	units := make([]uint16, 0, count)
	for len(units) < count {
		b0, err := r.ReadUint8()
		if err != nil {
			return "", Errorf(KindTruncatedData, int64(start), "string ends after %d of %d units", len(units), count)
		}
		switch {
		case b0 < 0x80:
			units = append(units, uint16(b0))
		case b0&0xe0 == 0xc0:
			b1, err := r.ReadUint8()
			if err != nil {
				return "", err
			}
			if b1&0xc0 != 0x80 {
				units = append(units, replacement)
				continue
			}
			units = append(units, uint16(b0&0x1f)<<6|uint16(b1&0x3f))
		case b0&0xf0 == 0xe0:
			b, err := r.ReadBytes(2)
			if err != nil {
				return "", err
			}
			if b[0]&0xc0 != 0x80 || b[1]&0xc0 != 0x80 {
				units = append(units, replacement)
				continue
			}
			units = append(units, uint16(b0&0x0f)<<12|uint16(b[0]&0x3f)<<6|uint16(b[1]&0x3f))
		case b0&0xf8 == 0xf0:
			// Standard four-byte UTF-8 instead of a surrogate pair; it
			// still counts as two units.
			cp := rune(b0 & 0x07)
			n := 0
			for ; n < 3 && r.pos < len(r.data) && r.data[r.pos]&0xc0 == 0x80; n++ {
				cp = cp<<6 | rune(r.data[r.pos]&0x3f)
				r.pos++
			}
			if n < 3 || cp < 0x10000 || cp > unicode.MaxRune {
				units = append(units, replacement)
				continue
			}
			r1, r2 := utf16.EncodeRune(cp)
			units = append(units, uint16(r1), uint16(r2))
		default:
			units = append(units, replacement)
		}
	}
	return string(utf16.Decode(units)), nil
}
