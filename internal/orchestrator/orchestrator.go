// Package orchestrator drives a complete compile: it makes the output
// directories, compiles the main sources and then the test sources, and
// reports one result for the whole run.
//
// A run moves through Idle, DirectoriesEnsured, MainCompiled and
// TestCompiled to Done, stopping early at the first failure. Test
// sources are never compiled when the main sources failed, since tests
// depend on them.
package orchestrator

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"

	"github.com/qobs-build/kompile/internal/builddir"
	"github.com/qobs-build/kompile/internal/compiler"
	"github.com/qobs-build/kompile/internal/fileset"
	"github.com/qobs-build/kompile/internal/msg"
	"github.com/qobs-build/kompile/internal/project"
	"github.com/qobs-build/kompile/internal/unit"
)

const (
	statusSuccess = "Kawa compilation finished successfully."
	statusFailure = "Kawa compilation failed."
)

type State int

const (
	Idle State = iota
	DirectoriesEnsured
	MainCompiled
	TestCompiled
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DirectoriesEnsured:
		return "directories ensured"
	case MainCompiled:
		return "main compiled"
	case TestCompiled:
		return "test compiled"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// UnitConfig says where one unit's sources come from and where its
// output goes.
type UnitConfig struct {
	Files     []string // compiled first, in this order
	Dirs      []string // scanned in this order
	OutputDir string
}

func (u UnitConfig) clone() UnitConfig {
	u.Files = slices.Clone(u.Files)
	u.Dirs = slices.Clone(u.Dirs)
	return u
}

// Config is everything a run needs. It is a plain value: the With
// methods return modified copies and never touch the receiver.
type Config struct {
	Main   UnitConfig
	Test   UnitConfig
	Rule   fileset.Rule
	Silent bool
	RunID  string // a new UUID per run if empty
}

// FromProject derives the configuration from the project a build runs
// in. A nil host is a configuration error.
func FromProject(h project.Host) (Config, error) {
	if isNil(h) {
		return Config{}, &ConfigurationError{Reason: "a project must be specified"}
	}

	cfg := Config{
		Main:   UnitConfig{OutputDir: h.BuildMainDirectory()},
		Test:   UnitConfig{OutputDir: h.BuildTestDirectory()},
		Silent: h.IsSilent(),
	}
	if sets, ok := h.(project.SourceSets); ok {
		cfg.Main.Files, cfg.Main.Dirs = sets.MainSources()
		cfg.Test.Files, cfg.Test.Dirs = sets.TestSources()
	} else {
		cfg.Main.Dirs = nonEmpty(h.MainSourceDirectory())
		cfg.Test.Dirs = nonEmpty(h.TestSourceDirectory())
	}
	if rp, ok := h.(project.RuleProvider); ok {
		cfg.Rule = rp.SourceRule()
	}
	return cfg, nil
}

// isNil also catches a nil pointer stored in the interface, such as the
// *project.Project left behind by a failed project.Load.
func isNil(h project.Host) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func nonEmpty(dir string) []string {
	if dir == "" {
		return nil
	}
	return []string{dir}
}

func (c Config) clone() Config {
	c.Main = c.Main.clone()
	c.Test = c.Test.clone()
	c.Rule.Include = slices.Clone(c.Rule.Include)
	c.Rule.Exclude = slices.Clone(c.Rule.Exclude)
	return c
}

func (c Config) WithMainFiles(files ...string) Config {
	c = c.clone()
	c.Main.Files = append(c.Main.Files, files...)
	return c
}

func (c Config) WithTestFiles(files ...string) Config {
	c = c.clone()
	c.Test.Files = append(c.Test.Files, files...)
	return c
}

func (c Config) WithMainDirs(dirs ...string) Config {
	c = c.clone()
	c.Main.Dirs = append(c.Main.Dirs, dirs...)
	return c
}

func (c Config) WithTestDirs(dirs ...string) Config {
	c = c.clone()
	c.Test.Dirs = append(c.Test.Dirs, dirs...)
	return c
}

func (c Config) WithMainOutput(dir string) Config {
	c = c.clone()
	c.Main.OutputDir = dir
	return c
}

func (c Config) WithTestOutput(dir string) Config {
	c = c.clone()
	c.Test.OutputDir = dir
	return c
}

func (c Config) WithSilent(silent bool) Config {
	c = c.clone()
	c.Silent = silent
	return c
}

func (c Config) WithRunID(id string) Config {
	c = c.clone()
	c.RunID = id
	return c
}

func (c Config) roots(dirs []string) []fileset.Root {
	roots := make([]fileset.Root, len(dirs))
	for i, d := range dirs {
		roots[i] = fileset.Root{Dir: d, Rule: c.Rule}
	}
	return roots
}

func (c Config) assemble(kind unit.Kind) (unit.Unit, error) {
	conf := c.Main
	if kind == unit.Test {
		conf = c.Test
	}
	u, err := unit.Assemble(kind, conf.Files, c.roots(conf.Dirs), conf.OutputDir)
	if err != nil {
		return unit.Unit{}, fmt.Errorf("collecting %s sources: %w", kind, err)
	}
	return u, nil
}

// Units assembles the main and test units without compiling anything.
func (c Config) Units() ([]unit.Unit, error) {
	var units []unit.Unit
	for _, kind := range []unit.Kind{unit.Main, unit.Test} {
		u, err := c.assemble(kind)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// Report describes a finished run.
type Report struct {
	ID      string
	State   State
	Results []compiler.Result
	Status  string
	Err     error // what stopped the run, nil on success
}

// Succeeded reports whether the run got to the end without an error.
func (r *Report) Succeeded() bool {
	return r.State == Done && r.Err == nil
}

// Result returns the result for kind, if that unit was attempted.
func (r *Report) Result(kind unit.Kind) (compiler.Result, bool) {
	for _, res := range r.Results {
		if res.Unit == kind {
			return res, true
		}
	}
	return compiler.Result{}, false
}

// Execute runs the whole compile with c. The returned report is never
// nil. The error is a *builddir.DirectoryError when an output directory
// could not be made, a *CompilationError when a unit failed to compile,
// and a *ConfigurationError when there is no compiler.
func Execute(ctx context.Context, cfg Config, c compiler.Compiler) (*Report, error) {
	rep := &Report{ID: cfg.RunID, State: Idle}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	fail := func(err error) (*Report, error) {
		rep.State = Done
		rep.Status = statusFailure
		rep.Err = err
		if !cfg.Silent {
			msg.Error("%s (run %s)", rep.Status, rep.ID)
		}
		return rep, err
	}

	if c == nil {
		return fail(&ConfigurationError{Reason: "a compiler must be specified"})
	}

	if err := builddir.Ensure(cfg.Main.OutputDir, cfg.Test.OutputDir); err != nil {
		return fail(err)
	}
	rep.State = DirectoriesEnsured

	steps := []struct {
		kind unit.Kind
		next State
	}{
		{unit.Main, MainCompiled},
		{unit.Test, TestCompiled},
	}
	for _, step := range steps {
		u, err := cfg.assemble(step.kind)
		if err != nil {
			return fail(err)
		}

		if !u.Empty() && u.OutputDir != "" && !cfg.Silent {
			msg.Status("Compiling", "Kawa %s sources (%d files)", step.kind, len(u.Files))
		}
		res := compiler.Invoke(ctx, c, u)
		if !res.Skipped {
			rep.Results = append(rep.Results, res)
		}
		if !res.Succeeded {
			return fail(&CompilationError{Result: res})
		}
		rep.State = step.next
	}

	rep.State = Done
	rep.Status = statusSuccess
	if !cfg.Silent {
		msg.Info("%s (run %s)", rep.Status, rep.ID)
	}
	return rep, nil
}
