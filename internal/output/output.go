// Package output writes dexcfg analysis results to files.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dexcfg/internal/dexfmt"
	"dexcfg/internal/disasm"
)

// InstRecord is one decoded instruction.
type InstRecord struct {
	Addr int    `json:"addr"`
	Size int    `json:"size"`
	Text string `json:"text"`
}

// BlockRecord is one basic block.
type BlockRecord struct {
	ID        int          `json:"id"`
	StartAddr int          `json:"start_addr"`
	EndAddr   int          `json:"end_addr"`
	Entry     bool         `json:"entry,omitempty"`
	Term      bool         `json:"term,omitempty"`
	Insts     []InstRecord `json:"insts"`
}

// EdgeRecord is one CFG edge.
type EdgeRecord struct {
	From  int    `json:"from"`
	To    int    `json:"to"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Value *int32 `json:"value,omitempty"` // case key
	Type  string `json:"type,omitempty"`  // caught type descriptor
}

// CFGRecord is the JSON form of a method CFG.
type CFGRecord struct {
	Method string            `json:"method"`
	Blocks []BlockRecord     `json:"blocks"`
	Edges  []EdgeRecord      `json:"edges"`
	Calls  []disasm.CallEdge `json:"calls,omitempty"`
}

// NewCFGRecord flattens cfg into a record. r resolves instruction operands
// and may be nil.
func NewCFGRecord(cfg disasm.FuncCFG, calls []disasm.CallEdge, r disasm.Resolver) CFGRecord {
	rec := CFGRecord{
		Method: cfg.Name,
		Blocks: make([]BlockRecord, 0, len(cfg.Blocks)),
		Edges:  []EdgeRecord{},
		Calls:  calls,
	}
	for _, b := range cfg.Blocks {
		br := BlockRecord{
			ID:        b.ID,
			StartAddr: b.StartAddr,
			EndAddr:   b.EndAddr,
			Entry:     b.IsEntry,
			Term:      b.IsTerm,
		}
		for _, inst := range cfg.Insts[b.Start:b.End] {
			br.Insts = append(br.Insts, InstRecord{
				Addr: inst.Addr,
				Size: inst.Size,
				Text: disasm.Render(inst, r),
			})
		}
		rec.Blocks = append(rec.Blocks, br)
	}
	for _, e := range cfg.Edges() {
		er := EdgeRecord{
			From:  e.From,
			To:    e.To,
			Kind:  e.Kind.String(),
			Label: e.Label(),
			Type:  e.Type,
		}
		if e.Kind == disasm.EdgeCase {
			v := e.Value
			er.Value = &v
		}
		rec.Edges = append(rec.Edges, er)
	}
	return rec
}

// MarshalCFG encodes rec as indented JSON with a trailing newline.
func MarshalCFG(rec CFGRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, dexfmt.Wrap(dexfmt.KindIOFailure, err, "output: encode %s", rec.Method)
	}
	return append(data, '\n'), nil
}

// MethodEntry is one line of a batch index.
type MethodEntry struct {
	Method string `json:"method"`
	File   string `json:"file"`
	Insns  int    `json:"insns"`
	Blocks int    `json:"blocks"`
	Edges  int    `json:"edges"`
}

// WriteIndexJSON writes batch entries to index.json.
func WriteIndexJSON(dir string, entries []MethodEntry) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return dexfmt.Wrap(dexfmt.KindIOFailure, err, "output: mkdir %s", dir)
	}
	return writeJSON(filepath.Join(dir, "index.json"), entries)
}

// FileName turns a method member string such as "run(ILjava/lang/String;)V"
// into a file-system safe base name.
func FileName(member string) string {
	var b strings.Builder
	for _, c := range member {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == '-', c == '$':
			b.WriteRune(c)
		case c == '<' || c == '>':
			// <init>, <clinit>
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "method"
	}
	return name
}

// UniqueNames assigns each member a distinct file base name, suffixing
// collisions with _2, _3, ...
func UniqueNames(members []string) []string {
	seen := make(map[string]int, len(members))
	out := make([]string, len(members))
	for i, m := range members {
		name := FileName(m)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		out[i] = name
	}
	return out
}

// WriteDoc writes data to dir/name+ext, creating dir. Returns the path.
func WriteDoc(dir, name, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", dexfmt.Wrap(dexfmt.KindIOFailure, err, "output: mkdir %s", dir)
	}
	path := filepath.Join(dir, name+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", dexfmt.Wrap(dexfmt.KindIOFailure, err, "output: write %s", path)
	}
	return path, nil
}

// WriteASM writes a linear listing to dir/asm/<name>.txt.
func WriteASM(dir, name string, insts []disasm.Inst, r disasm.Resolver, annotators ...disasm.Annotator) error {
	text := disasm.Listing(insts, r, annotators...)
	_, err := WriteDoc(filepath.Join(dir, "asm"), name, ".txt", []byte(text))
	return err
}

// WriteTo copies data to w. A failed write is an IOFailure.
func WriteTo(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return dexfmt.Wrap(dexfmt.KindIOFailure, err, "output: write")
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return dexfmt.Wrap(dexfmt.KindIOFailure, err, "output: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return dexfmt.Wrap(dexfmt.KindIOFailure, err, "output: encode %s", path)
	}
	return nil
}
