// Package render produces Graphviz DOT from method control flow graphs and
// class call graphs.
package render

import (
	"fmt"
	"strings"
)

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID creates a safe DOT identifier from a method or class name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// splitOwner splits "Lcom/a/B;->run()V" into its class and member parts.
// Names without "->" have no owner.
func splitOwner(name string) (owner, member string) {
	if i := strings.Index(name, "->"); i >= 0 {
		return name[:i], name[i+2:]
	}
	return "", name
}

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
