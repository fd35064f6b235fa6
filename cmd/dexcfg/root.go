package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"dexcfg/internal/analyze"
	"dexcfg/internal/config"
	"dexcfg/internal/dex"
	"dexcfg/internal/dexfmt"
	"dexcfg/internal/logging"
	"dexcfg/internal/render"
)

// app holds state shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath    string
	debug         bool
	format        string
	theme         string
	maxBlockLines int
	raw           bool
	signature     string
	jobs          int

	cfg *config.Config
	log *log.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "dexcfg <dex> <class> <method>",
		Short: "Render control flow graphs of Dalvik methods",
		Long: `dexcfg reads a .dex file, locates a method, decodes its bytecode and
prints the method's control flow graph as Graphviz DOT.

Class names may be given as com.example.Foo, com/example/Foo or
Lcom/example/Foo;. Use --signature to pick one of several overloads.`,
		Example: `  dexcfg classes.dex com.example.Foo run | dot -Tsvg > run.svg
  dexcfg cfg classes.dex com.example.Foo --all --out cfgs/
  dexcfg disasm classes.dex com.example.Foo run --signature "(I)V"`,
		Args:              cobra.ExactArgs(3),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStage(a.runCFG(args[0], args[1], args[2]))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.dexcfg/config.yaml, ./.dexcfg.yaml)")
	pf.BoolVarP(&a.debug, "debug", "d", false, "debug logging")
	pf.StringVarP(&a.format, "format", "f", "", "output format: dot, json, lattice")
	pf.StringVar(&a.theme, "theme", "", "DOT theme: "+strings.Join(render.ThemeNames(), ", "))
	pf.IntVar(&a.maxBlockLines, "max-block-lines", 0, "truncate blocks longer than n lines (0 = never)")
	pf.BoolVar(&a.raw, "raw", false, "print pool indices instead of resolved names")
	pf.StringVarP(&a.signature, "signature", "s", "", `method signature, e.g. "(ILjava/lang/String;)V"`)
	pf.IntVarP(&a.jobs, "jobs", "j", 0, "concurrent methods in batch mode")

	root.AddCommand(
		newCFGCmd(a),
		newDisasmCmd(a),
		newClassesCmd(a),
		newMethodsCmd(a),
		newCallgraphCmd(a),
		newSignalsCmd(a),
	)
	return root
}

// setup loads configuration and applies flags on top of it.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = a.format
	}
	if flags.Changed("theme") {
		cfg.Theme = a.theme
	}
	if flags.Changed("max-block-lines") {
		cfg.MaxBlockLines = a.maxBlockLines
	}
	if flags.Changed("raw") {
		cfg.ResolveNames = !a.raw
	}
	if flags.Changed("jobs") {
		cfg.Jobs = a.jobs
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logging.NewLoggerWithWriter(a.stderr, cfg.LogLevel)
	return nil
}

// open reads and parses a dex file.
func (a *app) open(path string) (*analyze.Analyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dexfmt.Wrap(dexfmt.KindIOFailure, err, "read %s", path)
	}
	f, err := dex.Parse(data)
	if err != nil {
		return nil, err
	}
	if !f.VerifyChecksum() {
		a.log.Warn("checksum mismatch", "path", path)
	}
	a.log.Debug("parsed", "path", path, "version", f.Header.Version,
		"classes", len(f.ClassDefs()), "methods", f.NumMethods())
	return analyze.New(f, analyze.Options{ResolveNames: a.cfg.ResolveNames, Logger: a.log}), nil
}

func (a *app) renderOptions(title string) (analyze.RenderOptions, error) {
	t, err := render.ThemeByName(a.cfg.Theme)
	if err != nil {
		return analyze.RenderOptions{}, err
	}
	return analyze.RenderOptions{
		Format:        a.cfg.Format,
		Theme:         t,
		MaxBlockLines: a.cfg.MaxBlockLines,
		Title:         title,
	}, nil
}
