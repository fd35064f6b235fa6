package dex

import (
	"strings"

	"dexcfg/internal/dexfmt"
)

// AccessFlags holds ACC_* bits of a class, field or method.
type AccessFlags uint32

const (
	AccPublic       AccessFlags = 0x1
	AccPrivate      AccessFlags = 0x2
	AccProtected    AccessFlags = 0x4
	AccStatic       AccessFlags = 0x8
	AccFinal        AccessFlags = 0x10
	AccSynchronized AccessFlags = 0x20
	AccBridge       AccessFlags = 0x40
	AccVarargs      AccessFlags = 0x80
	AccNative       AccessFlags = 0x100
	AccInterface    AccessFlags = 0x200
	AccAbstract     AccessFlags = 0x400
	AccStrict       AccessFlags = 0x800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccConstructor  AccessFlags = 0x10000
	AccDeclaredSync AccessFlags = 0x20000
)

var accessNames = []struct {
	flag AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccBridge, "bridge"},
	{AccVarargs, "varargs"},
	{AccNative, "native"},
	{AccInterface, "interface"},
	{AccAbstract, "abstract"},
	{AccStrict, "strictfp"},
	{AccSynthetic, "synthetic"},
	{AccAnnotation, "annotation"},
	{AccEnum, "enum"},
	{AccConstructor, "constructor"},
	{AccDeclaredSync, "declared-synchronized"},
}

// Has reports whether all bits of x are set.
func (a AccessFlags) Has(x AccessFlags) bool { return a&x == x }

// String renders the flags in declaration order, e.g. "public static".
// The same bit means different things on classes and methods; this uses
// method naming.
func (a AccessFlags) String() string {
	var parts []string
	for _, n := range accessNames {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// ClassDef is a decoded class_def_item together with its class data.
type ClassDef struct {
	TypeIdx       uint32
	Descriptor    string
	AccessFlags   AccessFlags
	SuperIdx      uint32 // NoIndex for java.lang.Object
	Interfaces    []uint32
	SourceFileIdx uint32 // NoIndex when absent

	StaticFields   []EncodedField
	InstanceFields []EncodedField
	// Methods lists direct methods followed by virtual methods, each
	// group in method index order.
	Methods []*EncodedMethod
}

// EncodedField is one entry of class data.
type EncodedField struct {
	FieldIdx    uint32
	AccessFlags AccessFlags
}

// EncodedMethod is one method entry of class data.
type EncodedMethod struct {
	MethodIdx   uint32
	AccessFlags AccessFlags
	Direct      bool
	CodeOff     uint32
	Code        *CodeItem // nil for abstract and native methods
}

func (f *File) readClassDefs() error {
	s := f.Header.ClassDefs
	r, err := dexfmt.NewReaderAt(f.data, int(s.Off))
	if err != nil {
		return err
	}
	f.classes = make([]*ClassDef, s.Size)
	f.classByType = make(map[uint32]*ClassDef, s.Size)
	for i := range f.classes {
		pos := r.Position()
		var raw [8]uint32
		for j := range raw {
			if raw[j], err = r.ReadUint32(); err != nil {
				return err
			}
		}
		classIdx, access, superIdx, ifaceOff, srcIdx, _, dataOff, _ :=
			raw[0], raw[1], raw[2], raw[3], raw[4], raw[5], raw[6], raw[7]

		if err := f.checkType(pos, "class_defs", i, classIdx); err != nil {
			return err
		}
		if superIdx != NoIndex {
			if err := f.checkType(pos+8, "class_defs", i, superIdx); err != nil {
				return err
			}
		}
		if srcIdx != NoIndex {
			if err := f.checkString(pos+16, "class_defs", i, srcIdx); err != nil {
				return err
			}
		}
		ifaces, err := f.readTypeList(ifaceOff)
		if err != nil {
			return err
		}

		c := &ClassDef{
			TypeIdx:       classIdx,
			Descriptor:    f.strings[f.types[classIdx]],
			AccessFlags:   AccessFlags(access),
			SuperIdx:      superIdx,
			Interfaces:    ifaces,
			SourceFileIdx: srcIdx,
		}
		if dataOff != 0 {
			if err := f.readClassData(c, dataOff); err != nil {
				return err
			}
		}
		f.classes[i] = c
		if _, dup := f.classByType[classIdx]; !dup {
			f.classByType[classIdx] = c
		}
	}
	return nil
}

func (f *File) readClassData(c *ClassDef, off uint32) error {
	r, err := dexfmt.NewReaderAt(f.data, int(off))
	if err != nil {
		return err
	}
	var counts [4]uint32
	for i := range counts {
		if counts[i], err = r.ReadULEB128(); err != nil {
			return err
		}
	}
	// Each entry takes at least two bytes.
	total := uint64(counts[0]) + uint64(counts[1]) + uint64(counts[2]) + uint64(counts[3])
	if total*2 > uint64(r.Remaining()) {
		return dexfmt.Errorf(dexfmt.KindTruncatedData, int64(off), "class_data for %s declares %d members", c.Descriptor, total)
	}

	if c.StaticFields, err = f.readEncodedFields(r, counts[0]); err != nil {
		return err
	}
	if c.InstanceFields, err = f.readEncodedFields(r, counts[1]); err != nil {
		return err
	}
	direct, err := f.readEncodedMethods(r, counts[2], true)
	if err != nil {
		return err
	}
	virtual, err := f.readEncodedMethods(r, counts[3], false)
	if err != nil {
		return err
	}
	c.Methods = append(direct, virtual...)
	return nil
}

func (f *File) readEncodedFields(r *dexfmt.Reader, n uint32) ([]EncodedField, error) {
	out := make([]EncodedField, 0, n)
	var idx uint32
	for i := uint32(0); i < n; i++ {
		pos := r.Position()
		diff, err := r.ReadULEB128()
		if err != nil {
			return nil, err
		}
		access, err := r.ReadULEB128()
		if err != nil {
			return nil, err
		}
		idx += diff
		if int64(idx) >= int64(len(f.fields)) {
			return nil, indexError(pos, "class_data", int(i), "field", idx, len(f.fields))
		}
		out = append(out, EncodedField{FieldIdx: idx, AccessFlags: AccessFlags(access)})
	}
	return out, nil
}

func (f *File) readEncodedMethods(r *dexfmt.Reader, n uint32, direct bool) ([]*EncodedMethod, error) {
	out := make([]*EncodedMethod, 0, n)
	var idx uint32
	for i := uint32(0); i < n; i++ {
		pos := r.Position()
		diff, err := r.ReadULEB128()
		if err != nil {
			return nil, err
		}
		access, err := r.ReadULEB128()
		if err != nil {
			return nil, err
		}
		codeOff, err := r.ReadULEB128()
		if err != nil {
			return nil, err
		}
		idx += diff
		if int64(idx) >= int64(len(f.methods)) {
			return nil, indexError(pos, "class_data", int(i), "method", idx, len(f.methods))
		}
		m := &EncodedMethod{
			MethodIdx:   idx,
			AccessFlags: AccessFlags(access),
			Direct:      direct,
			CodeOff:     codeOff,
		}
		if codeOff != 0 {
			if m.Code, err = f.readCodeItem(codeOff); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, nil
}
