package dex

import "strings"

// NormalizeClassName converts "com.example.Foo", "com/example/Foo" or
// "Lcom/example/Foo;" to the descriptor "Lcom/example/Foo;". Array
// descriptors pass through unchanged.
func NormalizeClassName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "[") {
		return name
	}
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		return name
	}
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}

var primitiveNames = map[byte]string{
	'V': "void",
	'Z': "boolean",
	'B': "byte",
	'S': "short",
	'C': "char",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
}

// PrettyType renders a type descriptor as a Java source name:
// "Ljava/lang/String;" -> "java.lang.String", "[[I" -> "int[][]".
// Malformed descriptors are returned unchanged.
func PrettyType(desc string) string {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	elem := desc[dims:]
	var base string
	switch {
	case len(elem) == 1 && primitiveNames[elem[0]] != "":
		base = primitiveNames[elem[0]]
	case len(elem) > 2 && elem[0] == 'L' && elem[len(elem)-1] == ';':
		base = strings.ReplaceAll(elem[1:len(elem)-1], "/", ".")
	default:
		return desc
	}
	return base + strings.Repeat("[]", dims)
}
