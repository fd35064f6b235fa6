package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dexcfg/internal/config"
	"dexcfg/internal/disasm"
	"dexcfg/internal/output"
)

func newCFGCmd(a *app) *cobra.Command {
	var (
		all    bool
		asm    bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "cfg <dex> <class> [method]",
		Short: "Print the control flow graph of a method, or of every method with --all",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if len(args) != 2 {
					return fmt.Errorf("--all takes no method argument")
				}
				if asm && outDir == "" {
					return fmt.Errorf("--asm requires --out")
				}
				return withStage(a.runCFGAll(cmd, args[0], args[1], outDir, asm))
			}
			if len(args) != 3 {
				return fmt.Errorf("method name required (or use --all)")
			}
			if outDir != "" {
				return fmt.Errorf("--out requires --all")
			}
			return withStage(a.runCFG(args[0], args[1], args[2]))
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "render every method with code")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write one file per method to this directory (with --all)")
	cmd.Flags().BoolVar(&asm, "asm", false, "also write a disassembly listing per method under <out>/asm")
	return cmd
}

// runCFG renders one method to stdout.
func (a *app) runCFG(path, class, method string) error {
	an, err := a.open(path)
	if err != nil {
		return err
	}
	m, err := an.Query(class, method, a.signature)
	if err != nil {
		return err
	}
	opts, err := a.renderOptions("")
	if err != nil {
		return err
	}
	doc, err := an.Render(m, opts)
	if err != nil {
		return err
	}
	return output.WriteTo(a.stdout, doc)
}

func extension(format string) string {
	switch format {
	case config.FormatJSON:
		return ".json"
	case config.FormatLattice:
		return ".lattice.dot"
	}
	return ".dot"
}

// runCFGAll renders every method of class, concurrently. With outDir set
// each document goes to its own file plus an index.json; otherwise the
// documents are concatenated on stdout in class order.
func (a *app) runCFGAll(cmd *cobra.Command, path, class, outDir string, asm bool) error {
	an, err := a.open(path)
	if err != nil {
		return err
	}
	opts, err := a.renderOptions("")
	if err != nil {
		return err
	}
	results, err := an.Batch(cmd.Context(), class, a.cfg.Jobs, &opts)
	if err != nil {
		return err
	}

	if outDir == "" {
		for _, r := range results {
			if err := output.WriteTo(a.stdout, r.Doc); err != nil {
				return err
			}
		}
		return nil
	}

	members := make([]string, len(results))
	for i, r := range results {
		members[i] = r.Method.Member
	}
	names := output.UniqueNames(members)
	ext := extension(a.cfg.Format)
	entries := make([]output.MethodEntry, len(results))
	for i, r := range results {
		if _, err := output.WriteDoc(outDir, names[i], ext, r.Doc); err != nil {
			return err
		}
		if asm {
			err := output.WriteASM(outDir, names[i], r.Method.Code.Insts, an.Resolver(),
				disasm.TargetAnnotator(), disasm.PayloadAnnotator())
			if err != nil {
				return err
			}
		}
		entries[i] = output.MethodEntry{
			Method: r.Method.Name,
			File:   names[i] + ext,
			Insns:  len(r.Method.CFG.Insts),
			Blocks: len(r.Method.CFG.Blocks),
			Edges:  len(r.Method.CFG.Edges()),
		}
	}
	if err := output.WriteIndexJSON(outDir, entries); err != nil {
		return err
	}
	a.log.Info("wrote cfgs", "class", class, "methods", len(results), "dir", outDir)
	return nil
}
