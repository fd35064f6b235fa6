package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dexcfg/internal/disasm"
	"dexcfg/internal/output"
)

func newDisasmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <dex> <class> <method>",
		Short: "Print a linear disassembly of a method",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStage(a.runDisasm(args[0], args[1], args[2]))
		},
	}
}

func (a *app) runDisasm(path, class, method string) error {
	an, err := a.open(path)
	if err != nil {
		return err
	}
	m, err := an.Query(class, method, a.signature)
	if err != nil {
		return err
	}
	ci := m.Encoded.Code
	header := fmt.Sprintf("# %s\n# registers=%d ins=%d outs=%d units=%d tries=%d\n",
		m.Name, ci.Registers, ci.Ins, ci.Outs, len(ci.Insns), len(ci.Tries))
	text := disasm.Listing(m.Code.Insts, an.Resolver(), disasm.TargetAnnotator(), disasm.PayloadAnnotator())
	return output.WriteTo(a.stdout, []byte(header+text))
}
