package render

import (
	"fmt"
	"sort"
	"strings"
)

// Theme holds colors for CFG and call graph rendering.
type Theme struct {
	Name       string
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Block accents.
	EntryBorder string // entry block outline
	TermFill    string // blocks ending in return or throw

	// CFG edge colors by kind.
	EdgeFlow   string // fallthrough, goto
	EdgeTrue   string
	EdgeFalse  string
	EdgeSwitch string // case, default
	EdgeCatch  string

	// Call graph edge colors by invoke kind.
	EdgeVirtual   string // virtual, super, interface
	EdgeStatic    string
	EdgeDirect    string
	EdgeDynamic   string // polymorphic, custom
	ExternalText  string // callees outside the class
	ClusterBorder string
	ClusterLabel  string

	// Signal graph accents by severity.
	SevHigh   string
	SevMedium string
	SevLow    string
	RefFill   string // string and API leaf nodes
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Name:       "nasa",
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EntryBorder: "#0B3D91", // NASA blue
	TermFill:    "#ECEFF1", // blue-gray 50

	EdgeFlow:   "#424242", // dark gray
	EdgeTrue:   "#0B3D91",
	EdgeFalse:  "#FC3D21", // NASA red
	EdgeSwitch: "#00695C", // teal
	EdgeCatch:  "#E65100", // deep orange

	EdgeVirtual:   "#9E9E9E",
	EdgeStatic:    "#0B3D91",
	EdgeDirect:    "#424242",
	EdgeDynamic:   "#E65100",
	ExternalText:  "#9E9E9E",
	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",

	SevHigh:   "#C62828",
	SevMedium: "#E65100",
	SevLow:    "#1565C0",
	RefFill:   "#FFF8E1",
}

// Plain is black on white, for printing.
var Plain = Theme{
	Name:       "plain",
	Background: "white",
	NodeFill:   "white",
	NodeBorder: "black",
	TextColor:  "black",

	EntryBorder: "black",
	TermFill:    "#EEEEEE",

	EdgeFlow:   "black",
	EdgeTrue:   "black",
	EdgeFalse:  "black",
	EdgeSwitch: "black",
	EdgeCatch:  "#777777",

	EdgeVirtual:   "black",
	EdgeStatic:    "black",
	EdgeDirect:    "black",
	EdgeDynamic:   "black",
	ExternalText:  "#777777",
	ClusterBorder: "#AAAAAA",
	ClusterLabel:  "#555555",

	SevHigh:   "black",
	SevMedium: "black",
	SevLow:    "#555555",
	RefFill:   "white",
}

var themes = map[string]Theme{
	NASA.Name:  NASA,
	Plain.Name: Plain,
}

// ThemeByName looks up a theme, case-insensitively.
func ThemeByName(name string) (Theme, error) {
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		return Theme{}, fmt.Errorf("render: unknown theme %q (have %s)", name, strings.Join(ThemeNames(), ", "))
	}
	return t, nil
}

// ThemeNames lists the available themes, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
