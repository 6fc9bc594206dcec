// Package project describes the project a build runs for.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/qobs-build/kompile/internal/fileset"
)

// ConfigFilename is looked up in the project directory.
const ConfigFilename = "Kompile.toml"

// Host is what a build needs to know about the project it runs in.
type Host interface {
	MainSourceDirectory() string
	TestSourceDirectory() string
	BuildMainDirectory() string
	BuildTestDirectory() string
	IsSilent() bool
}

// RuleProvider is implemented by hosts with their own source rule.
type RuleProvider interface {
	SourceRule() fileset.Rule
}

// SourceSets is implemented by hosts that configure more than one
// source directory or list source files explicitly.
type SourceSets interface {
	MainSources() (files, dirs []string)
	TestSources() (files, dirs []string)
}

// Project is a directory with an optional Kompile.toml.
type Project struct {
	Dir    string
	Config *Config
	Silent bool
	env    ConfigEnv
}

var (
	_ Host         = (*Project)(nil)
	_ RuleProvider = (*Project)(nil)
	_ SourceSets   = (*Project)(nil)
)

// Load reads the project in dir. Without a Kompile.toml the defaults
// apply: sources in src/{main,test}/kawa, output in build/{main,test}.
func Load(dir string) (*Project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	env := NewConfigEnv(dir)
	cfg, err := ParseConfigFromFile(filepath.Join(dir, ConfigFilename), env)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = new(Config)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", ConfigFilename, err)
	}
	cfg.applyDefaults(dir)

	return &Project{Dir: dir, Config: cfg, env: env}, nil
}

// Path resolves a project relative path. Empty stays empty.
func (p *Project) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Dir, rel)
}

func (p *Project) paths(rels []string) []string {
	if len(rels) == 0 {
		return nil
	}
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = p.Path(r)
	}
	return out
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func (p *Project) MainSourceDirectory() string { return p.Path(first(p.Config.Sources.Main)) }
func (p *Project) TestSourceDirectory() string { return p.Path(first(p.Config.Sources.Test)) }
func (p *Project) BuildMainDirectory() string  { return p.Path(p.Config.Output.Main) }
func (p *Project) BuildTestDirectory() string  { return p.Path(p.Config.Output.Test) }
func (p *Project) IsSilent() bool              { return p.Silent }

func (p *Project) MainSources() (files, dirs []string) {
	return p.paths(p.Config.Sources.Files), p.paths(p.Config.Sources.Main)
}

func (p *Project) TestSources() (files, dirs []string) {
	return p.paths(p.Config.Sources.TestFiles), p.paths(p.Config.Sources.Test)
}

func (p *Project) SourceRule() fileset.Rule {
	rule := fileset.Suffixes(p.Config.Sources.Suffixes...)
	rule.Exclude = p.Config.Sources.Exclude
	return rule
}

// RunBuildScript runs the [package] build script, if any.
func (p *Project) RunBuildScript() error {
	return p.Config.RunBuildScript(p.env)
}
