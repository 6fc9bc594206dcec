// Package unit assembles the compilation units of a build.
package unit

import (
	"path/filepath"

	"github.com/qobs-build/kompile/internal/fileset"
)

// Kind tells the main unit from the test unit.
type Kind int

const (
	Main Kind = iota
	Test
)

func (k Kind) String() string {
	switch k {
	case Main:
		return "main"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// Unit is the set of files compiled in one pass plus where the output
// goes. An empty OutputDir means the unit has no destination.
type Unit struct {
	Kind      Kind
	Files     []string
	OutputDir string
}

// Empty reports whether there is nothing to compile.
func (u Unit) Empty() bool {
	return len(u.Files) == 0
}

// Assemble builds a unit from explicitly listed files followed by the
// files found below each root, in the order given. Paths are made
// absolute and a path seen before is dropped.
func Assemble(kind Kind, explicit []string, roots []fileset.Root, outputDir string) (Unit, error) {
	u := Unit{Kind: kind, OutputDir: outputDir}
	seen := make(map[string]struct{})
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, dup := seen[abs]; dup {
			return nil
		}
		seen[abs] = struct{}{}
		u.Files = append(u.Files, abs)
		return nil
	}

	for _, f := range explicit {
		if err := add(f); err != nil {
			return Unit{}, err
		}
	}
	for _, root := range roots {
		files, err := fileset.Resolve(root)
		if err != nil {
			return Unit{}, err
		}
		for _, f := range files {
			if err := add(f); err != nil {
				return Unit{}, err
			}
		}
	}
	return u, nil
}
