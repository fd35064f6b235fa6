package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dexcfg/internal/output"
)

func newClassesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classes <dex>",
		Short: "List class descriptors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStage(a.runClasses(args[0]))
		},
	}
}

func (a *app) runClasses(path string) error {
	an, err := a.open(path)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, c := range an.File().ClassDefs() {
		fmt.Fprintf(&b, "%s\t%d methods\n", c.Descriptor, len(c.Methods))
	}
	return output.WriteTo(a.stdout, []byte(b.String()))
}

func newMethodsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "methods <dex> <class>",
		Short: "List the methods of a class with their signatures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStage(a.runMethods(args[0], args[1]))
		},
	}
}

// runMethods prints one line per method: member, access flags and code
// size in code units ("-" for abstract and native methods).
func (a *app) runMethods(path, class string) error {
	an, err := a.open(path)
	if err != nil {
		return err
	}
	c, err := an.Class(class)
	if err != nil {
		return err
	}
	f := an.File()
	var b strings.Builder
	for _, m := range c.Methods {
		units := "-"
		if m.Code != nil {
			units = fmt.Sprint(len(m.Code.Insns))
		}
		fmt.Fprintf(&b, "%s%s\t%s\t%s\n",
			f.MethodName(m.MethodIdx), f.MethodSignature(m.MethodIdx), m.AccessFlags, units)
	}
	return output.WriteTo(a.stdout, []byte(b.String()))
}
