package render

import (
	"fmt"
	"io"
	"strings"

	"dexcfg/internal/dexfmt"
	"dexcfg/internal/disasm"
)

// Options controls CFG rendering.
type Options struct {
	Theme         Theme
	MaxBlockLines int             // 0 = no truncation
	Title         string          // defaults to the CFG name
	Resolver      disasm.Resolver // nil renders raw pool indices
}

func (o Options) theme() Theme {
	if o.Theme.Name == "" {
		return NASA
	}
	return o.Theme
}

// blockLines renders one label line per instruction, truncating the middle
// of blocks longer than maxLines.
func blockLines(cfg disasm.FuncCFG, blk disasm.BasicBlock, r disasm.Resolver, maxLines int) []string {
	var lines []string
	for i := blk.Start; i < blk.End && i < len(cfg.Insts); i++ {
		inst := cfg.Insts[i]
		lines = append(lines, dotEscape(fmt.Sprintf("%04x: %s", inst.Addr, disasm.Render(inst, r))))
	}
	if maxLines > 0 && len(lines) > maxLines {
		head := (maxLines + 1) / 2
		tail := maxLines - head
		kept := append(lines[:head:head], fmt.Sprintf("... (%d more)", len(lines)-maxLines))
		lines = append(kept, lines[len(lines)-tail:]...)
	}
	return lines
}

func edgeColor(k disasm.EdgeKind, t Theme) string {
	switch k {
	case disasm.EdgeTrue:
		return t.EdgeTrue
	case disasm.EdgeFalse:
		return t.EdgeFalse
	case disasm.EdgeCase, disasm.EdgeDefault:
		return t.EdgeSwitch
	case disasm.EdgeCatch:
		return t.EdgeCatch
	}
	return t.EdgeFlow
}

// CFGDOT renders a per-method basic-block CFG as DOT.
// Each basic block is a node; each edge is labeled with its kind.
// The entry block is outlined and terminal blocks are shaded.
// Output depends only on the CFG and options.
func CFGDOT(cfg disasm.FuncCFG, opts Options) string {
	t := opts.theme()
	title := opts.Title
	if title == "" {
		title = cfg.Name
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee, fontname=\"Helvetica Neue,Helvetica\"];\n")
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		lines := blockLines(cfg, blk, opts.Resolver, opts.MaxBlockLines)
		label := strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"

		attrs := ""
		if blk.IsEntry {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryBorder)
		}
		if blk.IsTerm {
			attrs += fmt.Sprintf(", fillcolor=%q", t.TermFill)
		}
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID, label, attrs)
	}
	b.WriteByte('\n')

	for _, e := range cfg.Edges() {
		color := edgeColor(e.Kind, t)
		style := ""
		if e.Kind == disasm.EdgeCatch {
			style = ", style=dashed"
		}
		fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q%s, label=<<font point-size=\"7\" color=\"%s\">%s</font>>];\n",
			e.From, e.To, color, style, color, dotEscape(e.Label()))
	}

	b.WriteString("}\n")
	return b.String()
}

// WriteCFG writes CFGDOT output to w. A failed write is an IOFailure.
func WriteCFG(w io.Writer, cfg disasm.FuncCFG, opts Options) error {
	if _, err := io.WriteString(w, CFGDOT(cfg, opts)); err != nil {
		return dexfmt.Wrap(dexfmt.KindIOFailure, err, "write cfg %s", cfg.Name)
	}
	return nil
}
