// Package dex parses Dalvik executable files into an indexed, read-only model.
//
// All tables are materialized by Parse and cross-referenced by integer
// index. A *File is never mutated after Parse returns, so one file may
// serve concurrent method queries.
package dex

import (
	"hash/adler32"

	"dexcfg/internal/dexfmt"
)

// ProtoID is a decoded proto_id_item.
type ProtoID struct {
	Shorty     uint32   // string index
	ReturnType uint32   // type index
	Params     []uint32 // type indices
}

// FieldID is a decoded field_id_item.
type FieldID struct {
	Class uint32 // type index
	Type  uint32 // type index
	Name  uint32 // string index
}

// MethodID is a decoded method_id_item.
type MethodID struct {
	Class uint32 // type index
	Proto uint32 // proto index
	Name  uint32 // string index
}

// File is a parsed dex file.
type File struct {
	Header Header

	data    []byte
	strings []string
	types   []uint32 // type index -> string index
	protos  []ProtoID
	fields  []FieldID
	methods []MethodID
	classes []*ClassDef

	classByType map[uint32]*ClassDef
}

// Parse decodes a dex file. The returned File aliases data, which must
// not be modified afterwards.
func Parse(data []byte) (*File, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	f := &File{Header: h, data: data[:h.FileSize]}
	n := len(f.data)

	checks := []struct {
		name string
		s    Section
		size int
	}{
		{"string_ids", h.StringIDs, 4},
		{"type_ids", h.TypeIDs, 4},
		{"proto_ids", h.ProtoIDs, 12},
		{"field_ids", h.FieldIDs, 8},
		{"method_ids", h.MethodIDs, 8},
		{"class_defs", h.ClassDefs, 32},
		{"data", h.Data, 1},
	}
	for _, c := range checks {
		if err := checkSection(c.name, c.s, c.size, n); err != nil {
			return nil, err
		}
	}

	steps := []func() error{
		f.readStrings,
		f.readTypes,
		f.readProtos,
		f.readFields,
		f.readMethods,
		f.readClassDefs,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// VerifyChecksum reports whether the stored adler32 checksum matches the
// file contents. Parse does not call it.
func (f *File) VerifyChecksum() bool {
	return adler32.Checksum(f.data[12:]) == f.Header.Checksum
}

// Bytes returns the raw file contents.
func (f *File) Bytes() []byte { return f.data }

func indexError(off int, table string, i int, what string, idx uint32, limit int) error {
	return dexfmt.Errorf(dexfmt.KindIndexOutOfRange, int64(off),
		"%s[%d]: %s index %d >= %d", table, i, what, idx, limit)
}

func (f *File) checkString(off int, table string, i int, idx uint32) error {
	if int64(idx) >= int64(len(f.strings)) {
		return indexError(off, table, i, "string", idx, len(f.strings))
	}
	return nil
}

func (f *File) checkType(off int, table string, i int, idx uint32) error {
	if int64(idx) >= int64(len(f.types)) {
		return indexError(off, table, i, "type", idx, len(f.types))
	}
	return nil
}

func (f *File) readStrings() error {
	s := f.Header.StringIDs
	r, err := dexfmt.NewReaderAt(f.data, int(s.Off))
	if err != nil {
		return err
	}
	f.strings = make([]string, s.Size)
	for i := range f.strings {
		off, err := r.ReadUint32()
		if err != nil {
			return err
		}
		sr, err := dexfmt.NewReaderAt(f.data, int(off))
		if err != nil {
			return err
		}
		units, err := sr.ReadULEB128()
		if err != nil {
			return err
		}
		f.strings[i], err = sr.ReadMUTF8(int(units))
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *File) readTypes() error {
	s := f.Header.TypeIDs
	r, err := dexfmt.NewReaderAt(f.data, int(s.Off))
	if err != nil {
		return err
	}
	f.types = make([]uint32, s.Size)
	for i := range f.types {
		pos := r.Position()
		idx, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if err := f.checkString(pos, "type_ids", i, idx); err != nil {
			return err
		}
		f.types[i] = idx
	}
	return nil
}

func (f *File) readProtos() error {
	s := f.Header.ProtoIDs
	r, err := dexfmt.NewReaderAt(f.data, int(s.Off))
	if err != nil {
		return err
	}
	f.protos = make([]ProtoID, s.Size)
	for i := range f.protos {
		pos := r.Position()
		shorty, _ := r.ReadUint32()
		ret, _ := r.ReadUint32()
		paramsOff, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if err := f.checkString(pos, "proto_ids", i, shorty); err != nil {
			return err
		}
		if err := f.checkType(pos+4, "proto_ids", i, ret); err != nil {
			return err
		}
		params, err := f.readTypeList(paramsOff)
		if err != nil {
			return err
		}
		f.protos[i] = ProtoID{Shorty: shorty, ReturnType: ret, Params: params}
	}
	return nil
}

// readTypeList decodes a type_list; offset 0 means empty.
func (f *File) readTypeList(off uint32) ([]uint32, error) {
	if off == 0 {
		return nil, nil
	}
	r, err := dexfmt.NewReaderAt(f.data, int(off))
	if err != nil {
		return nil, err
	}
	size, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(size)*2 > uint64(r.Remaining()) {
		return nil, dexfmt.Errorf(dexfmt.KindTruncatedData, int64(off), "type_list of %d entries exceeds file", size)
	}
	list := make([]uint32, size)
	for i := range list {
		pos := r.Position()
		v, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		if err := f.checkType(pos, "type_list", i, uint32(v)); err != nil {
			return nil, err
		}
		list[i] = uint32(v)
	}
	return list, nil
}

func (f *File) readFields() error {
	s := f.Header.FieldIDs
	r, err := dexfmt.NewReaderAt(f.data, int(s.Off))
	if err != nil {
		return err
	}
	f.fields = make([]FieldID, s.Size)
	for i := range f.fields {
		pos := r.Position()
		class, _ := r.ReadUint16()
		typ, _ := r.ReadUint16()
		name, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if err := f.checkType(pos, "field_ids", i, uint32(class)); err != nil {
			return err
		}
		if err := f.checkType(pos+2, "field_ids", i, uint32(typ)); err != nil {
			return err
		}
		if err := f.checkString(pos+4, "field_ids", i, name); err != nil {
			return err
		}
		f.fields[i] = FieldID{Class: uint32(class), Type: uint32(typ), Name: name}
	}
	return nil
}

func (f *File) readMethods() error {
	s := f.Header.MethodIDs
	r, err := dexfmt.NewReaderAt(f.data, int(s.Off))
	if err != nil {
		return err
	}
	f.methods = make([]MethodID, s.Size)
	for i := range f.methods {
		pos := r.Position()
		class, _ := r.ReadUint16()
		proto, _ := r.ReadUint16()
		name, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if err := f.checkType(pos, "method_ids", i, uint32(class)); err != nil {
			return err
		}
		if int(proto) >= len(f.protos) {
			return indexError(pos+2, "method_ids", i, "proto", uint32(proto), len(f.protos))
		}
		if err := f.checkString(pos+4, "method_ids", i, name); err != nil {
			return err
		}
		f.methods[i] = MethodID{Class: uint32(class), Proto: uint32(proto), Name: name}
	}
	return nil
}
