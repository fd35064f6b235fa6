package analyze

import (
	"dexcfg/internal/dex"
	"dexcfg/internal/disasm"
)

// Resolver names pool indices from f. Call sites and method handles are
// left unresolved.
func Resolver(f *dex.File) disasm.Resolver {
	return func(kind disasm.IndexKind, idx uint32) (string, bool) {
		switch kind {
		case disasm.IndexString:
			s, err := f.StringAt(idx)
			return s, err == nil
		case disasm.IndexType:
			s, err := f.TypeDescriptorAt(idx)
			return s, err == nil
		case disasm.IndexField:
			if int(idx) >= f.NumFields() {
				return "", false
			}
			return f.FieldString(idx), true
		case disasm.IndexMethod:
			if int(idx) >= f.NumMethods() {
				return "", false
			}
			return f.MethodString(idx), true
		case disasm.IndexProto:
			if int(idx) >= f.NumProtos() {
				return "", false
			}
			return f.ProtoString(idx), true
		}
		return "", false
	}
}

// TryRanges converts the try table of ci. Typed handlers keep declaration
// order; the catch-all handler, if any, comes last with an empty Type.
func TryRanges(f *dex.File, ci *dex.CodeItem) ([]disasm.TryRange, error) {
	if ci == nil || len(ci.Tries) == 0 {
		return nil, nil
	}
	out := make([]disasm.TryRange, 0, len(ci.Tries))
	for _, t := range ci.Tries {
		tr := disasm.TryRange{Start: int(t.StartAddr), End: int(t.End())}
		if h := ci.HandlerFor(t); h != nil {
			for _, p := range h.Pairs {
				desc, err := f.TypeDescriptorAt(p.TypeIdx)
				if err != nil {
					return nil, err
				}
				tr.Handlers = append(tr.Handlers, disasm.Handler{Type: desc, Addr: int(p.Addr)})
			}
			if h.CatchAll >= 0 {
				tr.Handlers = append(tr.Handlers, disasm.Handler{Addr: int(h.CatchAll)})
			}
		}
		out = append(out, tr)
	}
	return out, nil
}
