// Package dextest assembles small, valid dex files in memory for tests.
//
// Only what the analyzer reads is emitted: header, id tables, type
// lists, string data, code items and class data. There is no map_list,
// debug info or annotations. Strings are ordered with a plain byte
// comparison, which matches the UTF-16 order required by the format as
// long as test strings stay in the BMP.
package dextest

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash/adler32"
	"sort"
	"strings"
	"unicode/utf16"
)

// Handler is a typed catch clause.
type Handler struct {
	Type string // descriptor, e.g. "Ljava/lang/Exception;"
	Addr uint32
}

// Try is a try range with its handlers.
type Try struct {
	Start       uint32
	Count       uint16
	Handlers    []Handler
	HasCatchAll bool
	CatchAll    uint32
}

// Code is a method body.
type Code struct {
	Registers uint16
	Ins       uint16
	Outs      uint16
	Insns     []uint16
	Tries     []Try
}

// Method is a method defined by a class.
type Method struct {
	Name    string
	Return  string
	Params  []string
	Flags   uint32
	Virtual bool
	Code    *Code // nil for abstract or native
}

// Class is a class definition.
type Class struct {
	Descriptor string
	Super      string // "" for none
	Flags      uint32
	Methods    []Method
}

// MethodRef is a method referenced but not necessarily defined.
type MethodRef struct {
	Class  string
	Name   string
	Return string
	Params []string
}

// FieldRef is a field reference.
type FieldRef struct {
	Class string
	Type  string
	Name  string
}

// Builder collects the contents of a dex file.
type Builder struct {
	Classes    []Class
	MethodRefs []MethodRef
	Fields     []FieldRef
	Strings    []string
	Version    string // defaults to "035"
}

type protoKey struct {
	ret    string
	params string // joined descriptors
}

type methodKey struct {
	class string
	name  string
	proto protoKey
}

type tables struct {
	strings []string
	strIdx  map[string]uint32
	types   []string
	typeIdx map[string]uint32
	protos  []protoKey
	protoIx map[protoKey]uint32
	fields  []FieldRef
	fieldIx map[FieldRef]uint32
	methods []methodKey
	methIx  map[methodKey]uint32
}

func splitParams(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "\x00")
}

func shorty(ret string, params []string) string {
	short := func(d string) byte {
		if d[0] == 'L' || d[0] == '[' {
			return 'L'
		}
		return d[0]
	}
	b := []byte{short(ret)}
	for _, p := range params {
		b = append(b, short(p))
	}
	return string(b)
}

func (b *Builder) layout() *tables {
	strSet := map[string]bool{}
	typeSet := map[string]bool{}
	protoSet := map[protoKey]bool{}
	methSet := map[methodKey]bool{}
	addType := func(d string) {
		strSet[d] = true
		typeSet[d] = true
	}
	addProto := func(ret string, params []string) protoKey {
		k := protoKey{ret: ret, params: strings.Join(params, "\x00")}
		protoSet[k] = true
		addType(ret)
		for _, p := range params {
			addType(p)
		}
		strSet[shorty(ret, params)] = true
		return k
	}
	addMethod := func(class, name, ret string, params []string) {
		addType(class)
		strSet[name] = true
		methSet[methodKey{class: class, name: name, proto: addProto(ret, params)}] = true
	}

	for _, c := range b.Classes {
		addType(c.Descriptor)
		if c.Super != "" {
			addType(c.Super)
		}
		for _, m := range c.Methods {
			addMethod(c.Descriptor, m.Name, m.Return, m.Params)
			if m.Code == nil {
				continue
			}
			for _, t := range m.Code.Tries {
				for _, h := range t.Handlers {
					addType(h.Type)
				}
			}
		}
	}
	for _, r := range b.MethodRefs {
		addMethod(r.Class, r.Name, r.Return, r.Params)
	}
	for _, f := range b.Fields {
		addType(f.Class)
		addType(f.Type)
		strSet[f.Name] = true
	}
	for _, s := range b.Strings {
		strSet[s] = true
	}

	t := &tables{
		strIdx:  map[string]uint32{},
		typeIdx: map[string]uint32{},
		protoIx: map[protoKey]uint32{},
		fieldIx: map[FieldRef]uint32{},
		methIx:  map[methodKey]uint32{},
	}
	for s := range strSet {
		t.strings = append(t.strings, s)
	}
	sort.Strings(t.strings)
	for i, s := range t.strings {
		t.strIdx[s] = uint32(i)
	}
	for d := range typeSet {
		t.types = append(t.types, d)
	}
	sort.Strings(t.types)
	for i, d := range t.types {
		t.typeIdx[d] = uint32(i)
	}

	for k := range protoSet {
		t.protos = append(t.protos, k)
	}
	sort.Slice(t.protos, func(i, j int) bool {
		a, b := t.protos[i], t.protos[j]
		if a.ret != b.ret {
			return t.typeIdx[a.ret] < t.typeIdx[b.ret]
		}
		return a.params < b.params
	})
	for i, k := range t.protos {
		t.protoIx[k] = uint32(i)
	}

	seenField := map[FieldRef]bool{}
	for _, f := range b.Fields {
		if !seenField[f] {
			seenField[f] = true
			t.fields = append(t.fields, f)
		}
	}
	sort.Slice(t.fields, func(i, j int) bool {
		a, b := t.fields[i], t.fields[j]
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Type < b.Type
	})
	for i, f := range t.fields {
		t.fieldIx[f] = uint32(i)
	}

	for k := range methSet {
		t.methods = append(t.methods, k)
	}
	sort.Slice(t.methods, func(i, j int) bool {
		a, b := t.methods[i], t.methods[j]
		if a.class != b.class {
			return a.class < b.class
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return t.protoIx[a.proto] < t.protoIx[b.proto]
	})
	for i, k := range t.methods {
		t.methIx[k] = uint32(i)
	}
	return t
}

// StringIndex returns the string index s will have.
func (b *Builder) StringIndex(s string) uint32 {
	i, ok := b.layout().strIdx[s]
	if !ok {
		panic(fmt.Sprintf("dextest: string %q not in file", s))
	}
	return i
}

// TypeIndex returns the type index of descriptor d.
func (b *Builder) TypeIndex(d string) uint32 {
	i, ok := b.layout().typeIdx[d]
	if !ok {
		panic(fmt.Sprintf("dextest: type %q not in file", d))
	}
	return i
}

// MethodIndex returns the index of the first method named name in class.
func (b *Builder) MethodIndex(class, name string) uint32 {
	t := b.layout()
	for i, m := range t.methods {
		if m.class == class && m.name == name {
			return uint32(i)
		}
	}
	panic(fmt.Sprintf("dextest: method %s->%s not in file", class, name))
}

// FieldIndex returns the index of field f.
func (b *Builder) FieldIndex(f FieldRef) uint32 {
	i, ok := b.layout().fieldIx[f]
	if !ok {
		panic(fmt.Sprintf("dextest: field %+v not in file", f))
	}
	return i
}

type buf struct{ b []byte }

func (w *buf) u8(v uint8) { w.b = append(w.b, v) }
func (w *buf) u16(v uint16) {
	w.b = binary.LittleEndian.AppendUint16(w.b, v)
}
func (w *buf) u32(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}
func (w *buf) uleb(v uint32) {
	for v >= 0x80 {
		w.b = append(w.b, byte(v)|0x80)
		v >>= 7
	}
	w.b = append(w.b, byte(v))
}
func (w *buf) sleb(v int32) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			w.b = append(w.b, c)
			return
		}
		w.b = append(w.b, c|0x80)
	}
}
func (w *buf) align(base, n int) {
	for (base+len(w.b))%n != 0 {
		w.b = append(w.b, 0)
	}
}

// mutf8 encodes s as Modified UTF-8 and returns its UTF-16 length.
func mutf8(s string) ([]byte, uint32) {
	units := utf16.Encode([]rune(s))
	var out []byte
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xc0|byte(u>>6), 0x80|byte(u&0x3f))
		default:
			out = append(out, 0xe0|byte(u>>12), 0x80|byte((u>>6)&0x3f), 0x80|byte(u&0x3f))
		}
	}
	return out, uint32(len(units))
}

// Bytes assembles the dex file.
func (b *Builder) Bytes() []byte {
	t := b.layout()
	const headerSize = 0x70
	stringIDsOff := headerSize
	typeIDsOff := stringIDsOff + 4*len(t.strings)
	protoIDsOff := typeIDsOff + 4*len(t.types)
	fieldIDsOff := protoIDsOff + 12*len(t.protos)
	methodIDsOff := fieldIDsOff + 8*len(t.fields)
	classDefsOff := methodIDsOff + 8*len(t.methods)
	dataOff := classDefsOff + 32*len(b.Classes)

	d := &buf{}
	abs := func() uint32 { return uint32(dataOff + len(d.b)) }

	paramsOff := make([]uint32, len(t.protos))
	for i, p := range t.protos {
		params := splitParams(p.params)
		if len(params) == 0 {
			continue
		}
		d.align(dataOff, 4)
		paramsOff[i] = abs()
		d.u32(uint32(len(params)))
		for _, pd := range params {
			d.u16(uint16(t.typeIdx[pd]))
		}
	}

	stringOff := make([]uint32, len(t.strings))
	for i, s := range t.strings {
		stringOff[i] = abs()
		enc, n := mutf8(s)
		d.uleb(n)
		d.b = append(d.b, enc...)
		d.u8(0)
	}

	type encMethod struct {
		idx     uint32
		flags   uint32
		codeOff uint32
	}
	classData := make([]uint32, len(b.Classes))
	for ci, c := range b.Classes {
		var direct, virtual []encMethod
		for _, m := range c.Methods {
			k := methodKey{class: c.Descriptor, name: m.Name, proto: protoKey{ret: m.Return, params: strings.Join(m.Params, "\x00")}}
			em := encMethod{idx: t.methIx[k], flags: m.Flags}
			if m.Code != nil {
				d.align(dataOff, 4)
				em.codeOff = abs()
				b.writeCode(d, t, m.Code)
			}
			if m.Virtual {
				virtual = append(virtual, em)
			} else {
				direct = append(direct, em)
			}
		}
		if len(direct)+len(virtual) == 0 {
			continue
		}
		classData[ci] = abs()
		d.uleb(0)
		d.uleb(0)
		d.uleb(uint32(len(direct)))
		d.uleb(uint32(len(virtual)))
		for _, group := range [][]encMethod{direct, virtual} {
			sort.Slice(group, func(i, j int) bool { return group[i].idx < group[j].idx })
			var prev uint32
			for _, em := range group {
				d.uleb(em.idx - prev)
				d.uleb(em.flags)
				d.uleb(em.codeOff)
				prev = em.idx
			}
		}
	}

	out := &buf{}
	version := b.Version
	if version == "" {
		version = "035"
	}
	out.b = append(out.b, []byte("dex\n"+version+"\x00")...)
	// checksum and signature are patched at the end
	out.u32(0)
	out.b = append(out.b, make([]byte, 20)...)
	fileSize := dataOff + len(d.b)
	out.u32(uint32(fileSize))
	out.u32(headerSize)
	out.u32(0x12345678)
	out.u32(0) // link_size
	out.u32(0) // link_off
	out.u32(0) // map_off
	section := func(n, off int) {
		out.u32(uint32(n))
		if n == 0 {
			out.u32(0)
		} else {
			out.u32(uint32(off))
		}
	}
	section(len(t.strings), stringIDsOff)
	section(len(t.types), typeIDsOff)
	section(len(t.protos), protoIDsOff)
	section(len(t.fields), fieldIDsOff)
	section(len(t.methods), methodIDsOff)
	section(len(b.Classes), classDefsOff)
	section(len(d.b), dataOff)

	for _, off := range stringOff {
		out.u32(off)
	}
	for _, ty := range t.types {
		out.u32(t.strIdx[ty])
	}
	for i, p := range t.protos {
		out.u32(t.strIdx[shorty(p.ret, splitParams(p.params))])
		out.u32(t.typeIdx[p.ret])
		out.u32(paramsOff[i])
	}
	for _, f := range t.fields {
		out.u16(uint16(t.typeIdx[f.Class]))
		out.u16(uint16(t.typeIdx[f.Type]))
		out.u32(t.strIdx[f.Name])
	}
	for _, m := range t.methods {
		out.u16(uint16(t.typeIdx[m.class]))
		out.u16(uint16(t.protoIx[m.proto]))
		out.u32(t.strIdx[m.name])
	}
	for ci, c := range b.Classes {
		out.u32(t.typeIdx[c.Descriptor])
		out.u32(c.Flags)
		if c.Super == "" {
			out.u32(0xffffffff)
		} else {
			out.u32(t.typeIdx[c.Super])
		}
		out.u32(0)          // interfaces_off
		out.u32(0xffffffff) // source_file_idx
		out.u32(0)          // annotations_off
		out.u32(classData[ci])
		out.u32(0) // static_values_off
	}
	out.b = append(out.b, d.b...)

	sig := sha1.Sum(out.b[32:])
	copy(out.b[12:32], sig[:])
	binary.LittleEndian.PutUint32(out.b[8:], adler32.Checksum(out.b[12:]))
	return out.b
}

func (b *Builder) writeCode(d *buf, t *tables, c *Code) {
	d.u16(c.Registers)
	d.u16(c.Ins)
	d.u16(c.Outs)
	d.u16(uint16(len(c.Tries)))
	d.u32(0) // debug_info_off
	d.u32(uint32(len(c.Insns)))
	for _, u := range c.Insns {
		d.u16(u)
	}
	if len(c.Tries) == 0 {
		return
	}
	if len(c.Insns)%2 == 1 {
		d.u16(0)
	}

	// One handler per try, encoded after the count.
	list := &buf{}
	list.uleb(uint32(len(c.Tries)))
	offs := make([]uint16, len(c.Tries))
	for i, tr := range c.Tries {
		offs[i] = uint16(len(list.b))
		n := int32(len(tr.Handlers))
		if tr.HasCatchAll {
			n = -n
		}
		list.sleb(n)
		for _, h := range tr.Handlers {
			list.uleb(t.typeIdx[h.Type])
			list.uleb(h.Addr)
		}
		if tr.HasCatchAll {
			list.uleb(tr.CatchAll)
		}
	}
	for i, tr := range c.Tries {
		d.u32(tr.Start)
		d.u16(tr.Count)
		d.u16(offs[i])
	}
	d.b = append(d.b, list.b...)
}
