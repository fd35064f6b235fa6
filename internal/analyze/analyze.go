// Package analyze drives the dex pipeline for a method query: locate the
// method, decode its code, build the CFG and render it.
package analyze

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/zboralski/lattice"
	latrender "github.com/zboralski/lattice/render"
	"golang.org/x/sync/errgroup"

	"dexcfg/internal/callgraph"
	"dexcfg/internal/config"
	"dexcfg/internal/dex"
	"dexcfg/internal/dexfmt"
	"dexcfg/internal/disasm"
	"dexcfg/internal/logging"
	"dexcfg/internal/output"
	"dexcfg/internal/render"
)

// Options configures an Analyzer.
type Options struct {
	ResolveNames bool
	Logger       *log.Logger // nil discards
}

// Analyzer runs queries against one parsed dex file. It is safe for
// concurrent use.
type Analyzer struct {
	file     *dex.File
	resolver disasm.Resolver
	log      *log.Logger
}

// New returns an Analyzer over f.
func New(f *dex.File, opts Options) *Analyzer {
	a := &Analyzer{file: f, log: opts.Logger}
	if a.log == nil {
		a.log = logging.Discard()
	}
	if opts.ResolveNames {
		a.resolver = Resolver(f)
	}
	return a
}

// File returns the underlying dex file.
func (a *Analyzer) File() *dex.File { return a.file }

// Resolver returns the name resolver, nil when names are not resolved.
func (a *Analyzer) Resolver() disasm.Resolver { return a.resolver }

// Method is the analysis result for one method.
type Method struct {
	Name    string // "Lcom/a/B;->run(I)V"
	Member  string // "run(I)V"
	Encoded *dex.EncodedMethod
	Code    *disasm.Code
	CFG     disasm.FuncCFG
	Calls   []disasm.CallEdge
}

// Class finds a class by any name form NormalizeClassName accepts.
func (a *Analyzer) Class(name string) (*dex.ClassDef, error) {
	desc := dex.NormalizeClassName(name)
	c, ok := a.file.FindClass(desc)
	if !ok {
		return nil, &dexfmt.Error{
			Kind:   dexfmt.KindMethodNotFound,
			Offset: dexfmt.NoOffset,
			Msg:    desc,
			Err:    dex.ErrClassNotFound,
		}
	}
	return c, nil
}

// Query resolves class->name(signature) and analyzes it. An empty
// signature must match exactly one overload.
func (a *Analyzer) Query(class, name, signature string) (*Method, error) {
	_, em, err := a.file.ResolveMethod(class, name, signature)
	if err != nil {
		return nil, err
	}
	return a.Analyze(em)
}

// Analyze decodes em and builds its CFG. Methods without code yield an
// empty CFG.
func (a *Analyzer) Analyze(em *dex.EncodedMethod) (*Method, error) {
	f := a.file
	m := &Method{
		Name:    f.MethodString(em.MethodIdx),
		Member:  f.MethodName(em.MethodIdx) + f.MethodSignature(em.MethodIdx),
		Encoded: em,
	}
	m.CFG.Name = m.Name
	if em.Code == nil {
		a.log.Debug("no code", "method", m.Name, "flags", em.AccessFlags)
		return m, nil
	}

	code, err := disasm.Decode(em.Code.Insns)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Name, err)
	}
	m.Code = code
	a.log.Debug("decoded", "method", m.Name, "units", len(em.Code.Insns),
		"insns", len(code.Insts), "payloads", len(code.Payloads))

	tries, err := TryRanges(f, em.Code)
	if err != nil {
		return nil, fmt.Errorf("tries %s: %w", m.Name, err)
	}
	cfg, err := disasm.BuildCFG(m.Name, code, tries)
	if err != nil {
		return nil, fmt.Errorf("cfg %s: %w", m.Name, err)
	}
	m.CFG = cfg
	m.Calls = disasm.ExtractCallEdges(code.Insts, a.resolver)
	a.log.Debug("cfg built", "method", m.Name, "blocks", len(cfg.Blocks),
		"edges", len(cfg.Edges()), "tries", len(tries), "calls", len(m.Calls))
	return m, nil
}

// RenderOptions controls document rendering.
type RenderOptions struct {
	Format        string // config.FormatDOT, FormatJSON or FormatLattice
	Theme         render.Theme
	MaxBlockLines int
	Title         string
}

// Render produces the CFG document for m in the requested format.
func (a *Analyzer) Render(m *Method, opts RenderOptions) ([]byte, error) {
	switch opts.Format {
	case config.FormatDOT, "":
		return []byte(render.CFGDOT(m.CFG, render.Options{
			Theme:         opts.Theme,
			MaxBlockLines: opts.MaxBlockLines,
			Title:         opts.Title,
			Resolver:      a.resolver,
		})), nil
	case config.FormatJSON:
		return output.MarshalCFG(output.NewCFGRecord(m.CFG, m.Calls, a.resolver))
	case config.FormatLattice:
		title := opts.Title
		if title == "" {
			title = m.Name
		}
		fn, blocks := callgraph.BuildFuncCFG(a.methodInfo(m))
		a.log.Debug("lattice cfg", "method", m.Name, "blocks", blocks)
		return []byte(latrender.DOTCFG(&lattice.CFGGraph{Funcs: []*lattice.FuncCFG{fn}}, title)), nil
	}
	return nil, fmt.Errorf("analyze: unknown format %q", opts.Format)
}

func (a *Analyzer) methodInfo(m *Method) callgraph.MethodInfo {
	mi := callgraph.MethodInfo{Name: m.Name, CFG: m.CFG, Calls: m.Calls}
	if m.Code != nil {
		mi.Strings = callgraph.StringRefs(m.Code.Insts, a.resolver)
	}
	return mi
}

// Result is one analyzed method with its rendered document. Doc is nil
// when no format was requested.
type Result struct {
	Method *Method
	Doc    []byte
}

// Batch analyzes every method of class that has code, at most jobs at a
// time, rendering each when opts.Format is set. Results keep class-data
// order. The first failure cancels the rest.
func (a *Analyzer) Batch(ctx context.Context, class string, jobs int, opts *RenderOptions) ([]Result, error) {
	c, err := a.Class(class)
	if err != nil {
		return nil, err
	}
	var methods []*dex.EncodedMethod
	for _, em := range c.Methods {
		if em.Code != nil {
			methods = append(methods, em)
		}
	}
	a.log.Debug("batch", "class", c.Descriptor, "methods", len(methods), "jobs", jobs)

	results := make([]Result, len(methods))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, em := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := a.Analyze(em)
			if err != nil {
				return err
			}
			results[i].Method = m
			if opts == nil {
				return nil
			}
			doc, err := a.Render(m, *opts)
			if err != nil {
				return err
			}
			results[i].Doc = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CallGraph analyzes every method of class and returns its invoke sites,
// one entry per method with code.
func (a *Analyzer) CallGraph(ctx context.Context, class string, jobs int) ([]callgraph.MethodInfo, error) {
	results, err := a.Batch(ctx, class, jobs, nil)
	if err != nil {
		return nil, err
	}
	out := make([]callgraph.MethodInfo, len(results))
	for i, r := range results {
		out[i] = a.methodInfo(r.Method)
	}
	return out, nil
}
