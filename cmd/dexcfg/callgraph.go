package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	latrender "github.com/zboralski/lattice/render"

	"dexcfg/internal/callgraph"
	"dexcfg/internal/config"
	"dexcfg/internal/dexfmt"
	"dexcfg/internal/output"
	"dexcfg/internal/render"
)

func newCallgraphCmd(a *app) *cobra.Command {
	var maxNodes int
	cmd := &cobra.Command{
		Use:   "callgraph <dex> <class>",
		Short: "Print the invoke graph of a class",
		Long: `Print the invoke graph of every method of a class. Callers are grouped
by class and external callees drawn as plain text. --format lattice renders
the same graph with the lattice renderer; --format json prints the raw
call sites.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStage(a.runCallgraph(cmd, args[0], args[1], maxNodes))
		},
	}
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 0, "max caller nodes (0 = all)")
	return cmd
}

func (a *app) runCallgraph(cmd *cobra.Command, path, class string, maxNodes int) error {
	an, err := a.open(path)
	if err != nil {
		return err
	}
	c, err := an.Class(class)
	if err != nil {
		return err
	}
	methods, err := an.CallGraph(cmd.Context(), class, a.cfg.Jobs)
	if err != nil {
		return err
	}

	calls := make([]render.MethodCalls, len(methods))
	for i, m := range methods {
		calls[i] = render.MethodCalls{Name: m.Name, Calls: m.Calls}
	}

	var doc []byte
	switch a.cfg.Format {
	case config.FormatLattice:
		doc = []byte(latrender.DOT(callgraph.BuildCallGraph(methods), c.Descriptor))
	case config.FormatJSON:
		doc, err = json.MarshalIndent(calls, "", "  ")
		if err != nil {
			return dexfmt.Wrap(dexfmt.KindIOFailure, err, "encode callgraph")
		}
		doc = append(doc, '\n')
	default:
		t, err := render.ThemeByName(a.cfg.Theme)
		if err != nil {
			return err
		}
		doc = []byte(render.CallgraphDOT(calls, c.Descriptor, t, maxNodes))
	}
	return output.WriteTo(a.stdout, doc)
}
