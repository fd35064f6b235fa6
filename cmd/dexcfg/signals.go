package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"dexcfg/internal/config"
	"dexcfg/internal/dexfmt"
	"dexcfg/internal/output"
	"dexcfg/internal/render"
	"dexcfg/internal/signal"
)

func newSignalsCmd(a *app) *cobra.Command {
	var hops int
	cmd := &cobra.Command{
		Use:   "signals <dex> <class>",
		Short: "Flag methods that load suspicious strings or call sensitive APIs",
		Long: `Classify the const-string values and resolved invoke targets of every
method of a class (URLs, keys, SMS, telephony, crypto, dynamic code loading,
exec, reflection, ...). Methods with a hit are signal methods; methods within
--hops call edges of one are shown as context.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStage(a.runSignals(cmd, args[0], args[1], hops))
		},
	}
	cmd.Flags().IntVar(&hops, "hops", 1, "context distance in call edges")
	return cmd
}

func (a *app) runSignals(cmd *cobra.Command, path, class string, hops int) error {
	if a.cfg.Format == config.FormatLattice {
		return fmt.Errorf("signals: format %q not supported (use dot or json)", a.cfg.Format)
	}
	if hops < 0 {
		return fmt.Errorf("signals: --hops must be >= 0")
	}
	an, err := a.open(path)
	if err != nil {
		return err
	}
	if an.Resolver() == nil {
		a.log.Warn("names not resolved, nothing to classify", "raw", true)
	}
	c, err := an.Class(class)
	if err != nil {
		return err
	}
	methods, err := an.CallGraph(cmd.Context(), class, a.cfg.Jobs)
	if err != nil {
		return err
	}
	g := signal.Build(methods, hops)
	a.log.Debug("signals", "class", c.Descriptor, "methods", g.Stats.Methods,
		"signal", g.Stats.Signal, "context", g.Stats.Context)

	var doc []byte
	if a.cfg.Format == config.FormatJSON {
		doc, err = json.MarshalIndent(g, "", "  ")
		if err != nil {
			return dexfmt.Wrap(dexfmt.KindIOFailure, err, "encode signals")
		}
		doc = append(doc, '\n')
	} else {
		t, err := render.ThemeByName(a.cfg.Theme)
		if err != nil {
			return err
		}
		doc = []byte(render.SignalDOT(g, c.Descriptor, t))
	}
	return output.WriteTo(a.stdout, doc)
}
