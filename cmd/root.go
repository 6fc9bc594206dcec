// kompile [path], kompile build [path]
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/qobs-build/kompile/internal/compiler"
	"github.com/qobs-build/kompile/internal/msg"
	"github.com/qobs-build/kompile/internal/orchestrator"
	"github.com/qobs-build/kompile/internal/project"
)

var (
	flagSilent      bool
	flagIncremental bool
	flagMainOut     string
	flagTestOut     string
	flagDriver      EnumValue = NewEnumValue(compiler.DriverKawa, map[string]string{
		compiler.DriverKawa: "Run the kawa launcher (default)",
		compiler.DriverJava: "Run kawa.repl from kawa.jar with java",
	})
)

// buildOptions are the command line overrides of Kompile.toml.
type buildOptions struct {
	silent      bool
	incremental bool
	driver      string // empty keeps the configured driver
	mainOut     string
	testOut     string
}

func optionsFromFlags(cmd *cobra.Command) buildOptions {
	opts := buildOptions{
		silent:      flagSilent,
		incremental: flagIncremental,
		mainOut:     flagMainOut,
		testOut:     flagTestOut,
	}
	if cmd.Flags().Changed("driver") {
		opts.driver = flagDriver.Value()
	}
	return opts
}

// newCompiler builds the compiler for p from its [compiler] section and
// the command line.
func newCompiler(p *project.Project, opts buildOptions) (compiler.Compiler, error) {
	conf := p.Config.Compiler
	driver := conf.Driver
	if opts.driver != "" {
		driver = opts.driver
	}

	dopts := compiler.DriverOptions{
		Path:      conf.Path,
		Args:      conf.Args,
		Classpath: p.Path(conf.Classpath),
	}
	if !opts.silent {
		dopts.Stdout = &msg.IndentWriter{Indent: "    ", W: msg.Output}
	}
	exe, err := compiler.NewDriver(driver, dopts)
	if err != nil {
		return nil, err
	}
	exe.Dir = p.Dir

	if !opts.incremental && !conf.Incremental {
		return exe, nil
	}
	return &compiler.Incremental{
		Compiler: exe,
		Flags:    append([]string{exe.Path}, exe.Args...),
		RunID:    uuid.NewString(),
		Quiet:    opts.silent,
	}, nil
}

// build compiles the project in dir.
func build(ctx context.Context, dir string, opts buildOptions) (*orchestrator.Report, error) {
	p, err := project.Load(dir)
	if err != nil {
		return nil, err
	}
	p.Silent = opts.silent
	if err := p.RunBuildScript(); err != nil {
		return nil, err
	}

	cfg, err := orchestrator.FromProject(p)
	if err != nil {
		return nil, err
	}
	if opts.mainOut != "" {
		cfg = cfg.WithMainOutput(opts.mainOut)
	}
	if opts.testOut != "" {
		cfg = cfg.WithTestOutput(opts.testOut)
	}

	c, err := newCompiler(p, opts)
	if err != nil {
		return nil, err
	}
	if inc, ok := c.(*compiler.Incremental); ok {
		cfg = cfg.WithRunID(inc.RunID)
	}
	return orchestrator.Execute(ctx, cfg, c)
}

func doBuild(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err := build(ctx, target, optionsFromFlags(cmd))
	var cerr *orchestrator.CompilationError
	if errors.As(err, &cerr) {
		for _, line := range cerr.Diagnostics() {
			msg.Error("%s", line)
		}
	}
	if err != nil {
		stop()
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kompile [target path]",
	Short: "Compile Kawa sources",
	Long:  `Compile the main and test Kawa sources of a project. If no target path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [target path]",
	Short: "Compile the project",
	Long:  `Compile the main sources, then the test sources. If no target path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)

	// kompile build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagSilent, "silent", "s", false, "Only print errors")
	cmd.Flags().VarP(&flagDriver, "driver", "d", "Compiler driver, one of "+flagDriver.HelpString())
	cmd.RegisterFlagCompletionFunc("driver", flagDriver.CompletionFunc())
	cmd.Flags().BoolVar(&flagIncremental, "incremental", false, "Skip units whose sources did not change")
	cmd.Flags().StringVar(&flagMainOut, "main-out", "", "Output directory for the main classes")
	cmd.Flags().StringVar(&flagTestOut, "test-out", "", "Output directory for the test classes")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
