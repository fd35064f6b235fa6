package dex

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"dexcfg/internal/dexfmt"
)

// ErrClassNotFound is wrapped by ResolveMethod when the class is absent.
var ErrClassNotFound = errors.New("dex: class not found")

func outOfRange(table string, idx uint32, n int) error {
	return dexfmt.Errorf(dexfmt.KindIndexOutOfRange, dexfmt.NoOffset, "%s index %d >= %d", table, idx, n)
}

// StringAt returns string_ids[i].
func (f *File) StringAt(i uint32) (string, error) {
	if int64(i) >= int64(len(f.strings)) {
		return "", outOfRange("string", i, len(f.strings))
	}
	return f.strings[i], nil
}

// TypeDescriptorAt returns the descriptor of type_ids[i].
func (f *File) TypeDescriptorAt(i uint32) (string, error) {
	if int64(i) >= int64(len(f.types)) {
		return "", outOfRange("type", i, len(f.types))
	}
	return f.strings[f.types[i]], nil
}

// ProtoAt returns proto_ids[i].
func (f *File) ProtoAt(i uint32) (ProtoID, error) {
	if int64(i) >= int64(len(f.protos)) {
		return ProtoID{}, outOfRange("proto", i, len(f.protos))
	}
	return f.protos[i], nil
}

// FieldAt returns field_ids[i].
func (f *File) FieldAt(i uint32) (FieldID, error) {
	if int64(i) >= int64(len(f.fields)) {
		return FieldID{}, outOfRange("field", i, len(f.fields))
	}
	return f.fields[i], nil
}

// MethodAt returns method_ids[i].
func (f *File) MethodAt(i uint32) (MethodID, error) {
	if int64(i) >= int64(len(f.methods)) {
		return MethodID{}, outOfRange("method", i, len(f.methods))
	}
	return f.methods[i], nil
}

// Table sizes.
func (f *File) NumStrings() int { return len(f.strings) }
func (f *File) NumTypes() int   { return len(f.types) }
func (f *File) NumProtos() int  { return len(f.protos) }
func (f *File) NumFields() int  { return len(f.fields) }
func (f *File) NumMethods() int { return len(f.methods) }

// ClassDefs returns class definitions in file order.
func (f *File) ClassDefs() []*ClassDef { return f.classes }

// compareUTF16 orders strings by UTF-16 code units, the order of the
// string table.
func compareUTF16(a, b string) int {
	if isASCII(a) && isASCII(b) {
		return strings.Compare(a, b)
	}
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// FindString binary-searches the string table.
func (f *File) FindString(s string) (uint32, bool) {
	i := sort.Search(len(f.strings), func(i int) bool {
		return compareUTF16(f.strings[i], s) >= 0
	})
	if i < len(f.strings) && f.strings[i] == s {
		return uint32(i), true
	}
	return 0, false
}

// FindType resolves a descriptor to a type index. type_ids is sorted by
// string index.
func (f *File) FindType(descriptor string) (uint32, bool) {
	si, ok := f.FindString(descriptor)
	if !ok {
		return 0, false
	}
	i := sort.Search(len(f.types), func(i int) bool { return f.types[i] >= si })
	if i < len(f.types) && f.types[i] == si {
		return uint32(i), true
	}
	return 0, false
}

// FindClass returns the class definition for descriptor. It tries the
// sorted string and type tables first and falls back to comparing every
// class descriptor, since producers do not all honor table ordering.
func (f *File) FindClass(descriptor string) (*ClassDef, bool) {
	if ti, ok := f.FindType(descriptor); ok {
		if c, ok := f.classByType[ti]; ok {
			return c, true
		}
	}
	for _, c := range f.classes {
		if c.Descriptor == descriptor {
			return c, true
		}
	}
	return nil, false
}

// FindMethods returns every method of c named name, in class data order.
func (f *File) FindMethods(c *ClassDef, name string) []*EncodedMethod {
	var out []*EncodedMethod
	for _, m := range c.Methods {
		if f.strings[f.methods[m.MethodIdx].Name] == name {
			out = append(out, m)
		}
	}
	return out
}

// ResolveMethod locates a method with code. className may be in any form
// accepted by NormalizeClassName. An empty signature matches every
// overload; more than one match is AmbiguousMethod.
func (f *File) ResolveMethod(className, name, signature string) (*ClassDef, *EncodedMethod, error) {
	desc := NormalizeClassName(className)
	c, ok := f.FindClass(desc)
	if !ok {
		return nil, nil, &dexfmt.Error{
			Kind:   dexfmt.KindMethodNotFound,
			Offset: dexfmt.NoOffset,
			Msg:    fmt.Sprintf("%s->%s", desc, name),
			Err:    ErrClassNotFound,
		}
	}

	var matches []*EncodedMethod
	for _, m := range f.FindMethods(c, name) {
		if signature == "" || f.MethodSignature(m.MethodIdx) == signature {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		msg := fmt.Sprintf("%s->%s%s", desc, name, signature)
		return c, nil, dexfmt.Errorf(dexfmt.KindMethodNotFound, dexfmt.NoOffset, "%s", msg)
	case 1:
		m := matches[0]
		if m.Code == nil {
			return c, m, dexfmt.Errorf(dexfmt.KindMethodNotFound, dexfmt.NoOffset,
				"%s has no code (%s)", f.MethodString(m.MethodIdx), m.AccessFlags)
		}
		return c, m, nil
	}
	sigs := make([]string, len(matches))
	for i, m := range matches {
		sigs[i] = f.MethodSignature(m.MethodIdx)
	}
	return c, nil, &dexfmt.Error{
		Kind:    dexfmt.KindAmbiguousMethod,
		Offset:  dexfmt.NoOffset,
		Msg:     fmt.Sprintf("%s->%s has %d overloads", desc, name, len(matches)),
		Details: sigs,
	}
}

// MethodName returns the simple name of method_ids[i].
func (f *File) MethodName(i uint32) string {
	if int64(i) >= int64(len(f.methods)) {
		return fmt.Sprintf("method@%x", i)
	}
	return f.strings[f.methods[i].Name]
}

// ProtoString renders a proto as "(II)V".
func (f *File) ProtoString(i uint32) string {
	p, err := f.ProtoAt(i)
	if err != nil {
		return fmt.Sprintf("proto@%x", i)
	}
	var b strings.Builder
	b.WriteByte('(')
	for _, t := range p.Params {
		b.WriteString(f.strings[f.types[t]])
	}
	b.WriteByte(')')
	b.WriteString(f.strings[f.types[p.ReturnType]])
	return b.String()
}

// MethodSignature renders the proto of method_ids[i], e.g. "(ILjava/lang/String;)V".
func (f *File) MethodSignature(i uint32) string {
	if int64(i) >= int64(len(f.methods)) {
		return ""
	}
	return f.ProtoString(f.methods[i].Proto)
}

// MethodString renders method_ids[i] as "Lcls;->name(I)V".
func (f *File) MethodString(i uint32) string {
	if int64(i) >= int64(len(f.methods)) {
		return fmt.Sprintf("method@%x", i)
	}
	m := f.methods[i]
	return f.strings[f.types[m.Class]] + "->" + f.strings[m.Name] + f.ProtoString(m.Proto)
}

// FieldString renders field_ids[i] as "Lcls;->name:I".
func (f *File) FieldString(i uint32) string {
	fd, err := f.FieldAt(i)
	if err != nil {
		return fmt.Sprintf("field@%x", i)
	}
	return f.strings[f.types[fd.Class]] + "->" + f.strings[fd.Name] + ":" + f.strings[f.types[fd.Type]]
}

// MethodClass returns the declaring class descriptor of method_ids[i].
func (f *File) MethodClass(i uint32) string {
	if int64(i) >= int64(len(f.methods)) {
		return ""
	}
	return f.strings[f.types[f.methods[i].Class]]
}
