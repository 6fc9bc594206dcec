// Package builddir creates the output directories of a build.
package builddir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const dirMode = 0o755

// DirectoryError reports an output directory that could not be created.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("could not create build directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

var errNotDir = errors.New("exists and is not a directory")

// Ensure creates every directory in dirs that does not exist yet,
// parents included. Empty entries are skipped. It stops at the first
// directory it cannot create; directories made before that stay.
func Ensure(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		stat, err := os.Stat(dir)
		switch {
		case err == nil && stat.IsDir():
			continue
		case err == nil:
			return &DirectoryError{Path: dir, Err: errNotDir}
		case !errors.Is(err, fs.ErrNotExist):
			return &DirectoryError{Path: dir, Err: err}
		}
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return &DirectoryError{Path: dir, Err: err}
		}
	}
	return nil
}
