package dexfmt

import (
	"errors"
	"testing"
)

func TestReadFixedWidth(t *testing.T) {
	r := NewReader([]byte{
		0x7f,
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		0xef, 0xcd, 0xab, 0x89, 0x67, 0x45, 0x23, 0x01,
		0xff, 0xff, 0xff, 0xff,
	})
	if v, err := r.ReadUint8(); err != nil || v != 0x7f {
		t.Fatalf("ReadUint8 = %#x, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadUint16 = %#x, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0x12345678 {
		t.Fatalf("ReadUint32 = %#x, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 0x0123456789abcdef {
		t.Fatalf("ReadUint64 = %#x, %v", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != -1 {
		t.Fatalf("ReadInt32 = %d, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", r.Remaining())
	}
}

func TestReadPastEnd(t *testing.T) {
	tests := []struct {
		name string
		read func(r *Reader) error
	}{
		{"u8", func(r *Reader) error { _, err := r.ReadUint8(); return err }},
		{"u16", func(r *Reader) error { _, err := r.ReadUint16(); return err }},
		{"u32", func(r *Reader) error { _, err := r.ReadUint32(); return err }},
		{"u64", func(r *Reader) error { _, err := r.ReadUint64(); return err }},
		{"bytes", func(r *Reader) error { _, err := r.ReadBytes(2); return err }},
		{"skip", func(r *Reader) error { return r.Skip(2) }},
		{"uleb", func(r *Reader) error { _, err := r.ReadULEB128(); return err }},
	}
	for _, tt := range tests {
		r := NewReader([]byte{0x80})
		r.pos = 1
		err := tt.read(r)
		if !errors.Is(err, ErrTruncatedData) {
			t.Errorf("%s: err = %v, want TruncatedData", tt.name, err)
		}
	}
}

func TestReadULEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x7f}, 16256},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}
	for _, tt := range tests {
		r := NewReader(tt.in)
		got, err := r.ReadULEB128()
		if err != nil {
			t.Errorf("ReadULEB128(%x): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadULEB128(%x) = %d, want %d", tt.in, got, tt.want)
		}
		if r.Remaining() != 0 {
			t.Errorf("ReadULEB128(%x) left %d bytes", tt.in, r.Remaining())
		}
	}
}

func TestReadULEB128_Overlong(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if _, err := r.ReadULEB128(); KindOf(err) != KindTruncatedData {
		t.Errorf("err = %v, want TruncatedData", err)
	}
}

func TestReadULEB128_Overflow(t *testing.T) {
	r := NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0x1f})
	if _, err := r.ReadULEB128(); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("err = %v, want TruncatedData", err)
	}
}

func TestReadSLEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, -1},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
		{[]byte{0xc0, 0xbb, 0x78}, -123456},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x07}, 0x7fffffff},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, -2147483648},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.in).ReadSLEB128()
		if err != nil {
			t.Errorf("ReadSLEB128(%x): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadSLEB128(%x) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestReadULEB128p1(t *testing.T) {
	tests := []struct {
		in   []byte
		want int64
	}{
		{[]byte{0x00}, -1},
		{[]byte{0x01}, 0},
		{[]byte{0x80, 0x01}, 127},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.in).ReadULEB128p1()
		if err != nil || got != tt.want {
			t.Errorf("ReadULEB128p1(%x) = %d, %v, want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestReadMUTF8(t *testing.T) {
	tests := []struct {
		name  string
		in    []byte
		count int
		want  string
	}{
		{"ascii", []byte("Lfoo;"), 5, "Lfoo;"},
		{"embedded nul", []byte{'a', 0xc0, 0x80, 'b'}, 3, "a\x00b"},
		{"two byte", []byte{0xc3, 0xa9}, 1, "é"},
		{"three byte", []byte{0xe2, 0x82, 0xac}, 1, "€"},
		// U+1F600 as a surrogate pair, each half in three bytes.
		{"surrogates", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}, 2, "\U0001F600"},
		{"empty", nil, 0, ""},
		{"four byte", []byte{0xf0, 0x9f, 0x98, 0x80, 'x'}, 3, "\U0001F600x"},
		{"cut four byte", []byte{0xf0, 0x9f, 'x'}, 2, "\uFFFDx"},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.in).ReadMUTF8(tt.count)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestReadMUTF8_Truncated(t *testing.T) {
	if _, err := NewReader([]byte("ab")).ReadMUTF8(3); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("short run: err = %v, want TruncatedData", err)
	}
	if _, err := NewReader([]byte{0xe2, 0x82}).ReadMUTF8(1); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("cut sequence: err = %v, want TruncatedData", err)
	}
}

func TestSeekAlign(t *testing.T) {
	r := NewReader(make([]byte, 8))
	if err := r.Seek(9); !errors.Is(err, ErrBadOffset) {
		t.Errorf("Seek(9) err = %v, want BadOffset", err)
	}
	if err := r.Seek(8); err != nil {
		t.Errorf("Seek(8) = %v, want nil", err)
	}
	r.Seek(1)
	if err := r.Align(4); err != nil || r.Position() != 4 {
		t.Errorf("Align(4) pos = %d, err = %v", r.Position(), err)
	}
	if err := r.Align(4); err != nil || r.Position() != 4 {
		t.Errorf("Align(4) on boundary moved to %d", r.Position())
	}
	r.Seek(7)
	if err := r.Align(16); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("Align past end err = %v, want TruncatedData", err)
	}
}

func TestCheckEndian(t *testing.T) {
	if err := CheckEndian(EndianConstant); err != nil {
		t.Errorf("little endian: %v", err)
	}
	for _, tag := range []uint32{ReverseEndianConstant, 0} {
		if err := CheckEndian(tag); !errors.Is(err, ErrUnsupportedEndianness) {
			t.Errorf("tag %#x: err = %v, want UnsupportedEndianness", tag, err)
		}
	}
}

func TestErrorIs(t *testing.T) {
	err := Errorf(KindBadOffset, 0x20, "string_ids out of range")
	if !errors.Is(err, ErrBadOffset) {
		t.Error("Errorf result should match its sentinel")
	}
	if errors.Is(err, ErrTruncatedData) {
		t.Error("BadOffset should not match TruncatedData")
	}
	wrapped := Wrap(KindMethodNotFound, errors.New("class not found"), "Lfoo;->bar")
	if KindOf(wrapped) != KindMethodNotFound {
		t.Errorf("KindOf = %q", KindOf(wrapped))
	}
	if got := err.Error(); got != "BadOffset at 0x20: string_ids out of range" {
		t.Errorf("Error() = %q", got)
	}
	if KindInvalidTarget.Stage() != "cfg" || KindIOFailure.Stage() != "emit" {
		t.Error("unexpected stage names")
	}
}
