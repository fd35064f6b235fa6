package dex

import (
	"bytes"
	"fmt"

	"dexcfg/internal/dexfmt"
)

// HeaderSize is the size of header_item for every supported version.
const HeaderSize = 0x70

// NoIndex marks an absent type or string reference.
const NoIndex = 0xffffffff

// Supported dex versions.
var knownVersions = map[string]bool{
	"035": true, "036": true, "037": true, "038": true,
	"039": true, "040": true, "041": true,
}

// Section is a (size, offset) pair from the header.
type Section struct {
	Size uint32 `json:"size"`
	Off  uint32 `json:"off"`
}

// Header is the decoded header_item.
type Header struct {
	Version    string   `json:"version"`
	Checksum   uint32   `json:"checksum"`
	Signature  [20]byte `json:"-"`
	FileSize   uint32   `json:"file_size"`
	HeaderSize uint32   `json:"header_size"`
	EndianTag  uint32   `json:"endian_tag"`

	Link      Section `json:"link"`
	MapOff    uint32  `json:"map_off"`
	StringIDs Section `json:"string_ids"`
	TypeIDs   Section `json:"type_ids"`
	ProtoIDs  Section `json:"proto_ids"`
	FieldIDs  Section `json:"field_ids"`
	MethodIDs Section `json:"method_ids"`
	ClassDefs Section `json:"class_defs"`
	Data      Section `json:"data"`
}

func parseHeader(data []byte) (Header, error) {
	var h Header
	r := dexfmt.NewReader(data)

	magic, err := r.ReadBytes(8)
	if err != nil {
		return h, err
	}
	if !bytes.Equal(magic[:4], []byte("dex\n")) || magic[7] != 0 {
		return h, dexfmt.Errorf(dexfmt.KindInvalidHeader, 0, "bad magic %q", magic)
	}
	h.Version = string(magic[4:7])
	if !knownVersions[h.Version] {
		return h, dexfmt.Errorf(dexfmt.KindInvalidHeader, 4, "unsupported version %q", h.Version)
	}

	if len(data) < HeaderSize {
		return h, dexfmt.Errorf(dexfmt.KindTruncatedData, 0, "header needs %d bytes, have %d", HeaderSize, len(data))
	}

	// The endian tag decides how everything else is read.
	r.Seek(40)
	h.EndianTag, _ = r.ReadUint32()
	if err := dexfmt.CheckEndian(h.EndianTag); err != nil {
		return h, err
	}

	r.Seek(8)
	h.Checksum, _ = r.ReadUint32()
	sig, _ := r.ReadBytes(20)
	copy(h.Signature[:], sig)
	h.FileSize, _ = r.ReadUint32()
	h.HeaderSize, _ = r.ReadUint32()
	r.Skip(4) // endian tag, already read

	h.Link.Size, _ = r.ReadUint32()
	h.Link.Off, _ = r.ReadUint32()
	h.MapOff, _ = r.ReadUint32()
	for _, s := range []*Section{&h.StringIDs, &h.TypeIDs, &h.ProtoIDs, &h.FieldIDs, &h.MethodIDs, &h.ClassDefs, &h.Data} {
		s.Size, _ = r.ReadUint32()
		s.Off, _ = r.ReadUint32()
	}

	if h.HeaderSize < HeaderSize {
		return h, dexfmt.Errorf(dexfmt.KindInvalidHeader, 36, "header_size 0x%x smaller than 0x%x", h.HeaderSize, HeaderSize)
	}
	if uint64(h.FileSize) > uint64(len(data)) {
		return h, dexfmt.Errorf(dexfmt.KindTruncatedData, 32, "file_size %d exceeds %d available bytes", h.FileSize, len(data))
	}
	if uint64(h.HeaderSize) > uint64(h.FileSize) {
		return h, dexfmt.Errorf(dexfmt.KindInvalidHeader, 36, "header_size 0x%x exceeds file_size %d", h.HeaderSize, h.FileSize)
	}
	return h, nil
}

// checkSection verifies that size items of itemSize bytes at off fit in n bytes.
func checkSection(name string, s Section, itemSize, n int) error {
	if s.Size == 0 {
		return nil
	}
	end := uint64(s.Off) + uint64(s.Size)*uint64(itemSize)
	if s.Off < HeaderSize || end > uint64(n) {
		return dexfmt.Errorf(dexfmt.KindBadOffset, int64(s.Off),
			"%s: %d items of %d bytes at 0x%x exceed file size %d", name, s.Size, itemSize, s.Off, n)
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("dex %s: %d strings, %d types, %d protos, %d fields, %d methods, %d classes",
		h.Version, h.StringIDs.Size, h.TypeIDs.Size, h.ProtoIDs.Size, h.FieldIDs.Size, h.MethodIDs.Size, h.ClassDefs.Size)
}
