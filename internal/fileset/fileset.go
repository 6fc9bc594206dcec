// Package fileset resolves the source files below a source root.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/qobs-build/kompile/internal/msg"
)

// IgnoreFilename is read from the top of every root, gitignore syntax.
const IgnoreFilename = ".kompileignore"

// KawaSuffixes are the file suffixes of Kawa sources.
var KawaSuffixes = []string{".scm", ".sld"}

var errNotDir = errors.New("not a directory")

// Rule decides which files below a root are sources.
type Rule struct {
	// Include holds doublestar patterns relative to the root. A file is a
	// source if any of them match. Empty means KawaSuffixes.
	Include []string
	// Exclude holds gitignore lines applied after Include.
	Exclude []string
}

// Suffixes returns a rule matching any file whose name ends in one of
// the suffixes, at any depth.
func Suffixes(suffixes ...string) Rule {
	switch len(suffixes) {
	case 0:
		return Rule{}
	case 1:
		return Rule{Include: []string{"**/*" + suffixes[0]}}
	}
	return Rule{Include: []string{"**/*{" + strings.Join(suffixes, ",") + "}"}}
}

func (r Rule) patterns() []string {
	if len(r.Include) == 0 {
		return Suffixes(KawaSuffixes...).Include
	}
	return r.Include
}

// Match reports whether the slash separated path rel is included by r.
// Exclude lines are not considered.
func (r Rule) Match(rel string) (bool, error) {
	for _, pat := range r.patterns() {
		ok, err := doublestar.Match(pat, rel)
		if err != nil {
			return false, fmt.Errorf("bad source pattern %q: %w", pat, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Root is a directory that is scanned recursively for sources.
type Root struct {
	Dir  string
	Rule Rule
}

// Resolve lists the files below root.Dir matched by root.Rule as
// absolute paths, in directory traversal order. An unset directory
// yields nothing. A directory that does not exist yields nothing and
// a warning.
//
// Symlinked directories are not descended into.
func Resolve(root Root) ([]string, error) {
	if root.Dir == "" {
		return nil, nil
	}
	dir, err := filepath.Abs(root.Dir)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		msg.Warn("directory not found: %s", dir)
		return nil, nil
	case err != nil:
		return nil, err
	case !stat.IsDir():
		return nil, fmt.Errorf("source root %s: %w", dir, errNotDir)
	}

	// validate patterns up front so a bad rule fails even on an empty root
	for _, pat := range root.Rule.patterns() {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("bad source pattern %q", pat)
		}
	}

	excl, err := root.Rule.ignorer(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	err = fs.WalkDir(os.DirFS(dir), ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("while scanning %s: %w", dir, err)
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if excl != nil && excl.MatchesPath(rel+"/") {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if st, err := os.Stat(filepath.Join(dir, rel)); err != nil || st.IsDir() {
				return nil
			}
		}
		if ok, err := root.Rule.Match(rel); err != nil || !ok {
			return err
		}
		if excl != nil && excl.MatchesPath(rel) {
			return nil
		}
		files = append(files, filepath.Join(dir, filepath.FromSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ignorer combines the root's ignore file with the rule's exclude lines.
// It returns nil when there is nothing to exclude.
func (r Rule) ignorer(dir string) (*ignore.GitIgnore, error) {
	path := filepath.Join(dir, IgnoreFilename)
	if _, err := os.Stat(path); err == nil {
		gi, err := ignore.CompileIgnoreFileAndLines(path, r.Exclude...)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return gi, nil
	}
	if len(r.Exclude) == 0 {
		return nil, nil
	}
	return ignore.CompileIgnoreLines(r.Exclude...), nil
}
