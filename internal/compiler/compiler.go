// Package compiler hands compilation units to an external compiler.
//
// The compiler itself is a black box behind the Compiler interface. It
// gets the whole file list of a unit in one call and is expected to
// write its artifacts below the output directory, mirroring the module
// structure of the sources.
package compiler

import (
	"context"
	"errors"
	"strings"

	"github.com/qobs-build/kompile/internal/unit"
)

// Compiler compiles files into outputDir in a single batch.
type Compiler interface {
	Compile(ctx context.Context, outputDir string, files []string) error
}

// Func adapts a function to the Compiler interface.
type Func func(ctx context.Context, outputDir string, files []string) error

func (f Func) Compile(ctx context.Context, outputDir string, files []string) error {
	return f(ctx, outputDir, files)
}

// Error is returned by compilers that can tell what went wrong in the
// sources. Diagnostics hold the compiler's messages, one per line.
type Error struct {
	Diagnostics []string
	Err         error
}

func (e *Error) Error() string {
	if len(e.Diagnostics) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Diagnostics[0]
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of compiling one unit.
type Result struct {
	Unit        unit.Kind
	Succeeded   bool
	Skipped     bool // nothing to compile or nowhere to put it
	Diagnostics []string
	Err         error
}

// Invoke compiles u with c. Units without files or without an output
// directory succeed without calling c. A compiler error fails the
// result and is not retried.
func Invoke(ctx context.Context, c Compiler, u unit.Unit) Result {
	if u.Empty() || u.OutputDir == "" {
		return Result{Unit: u.Kind, Succeeded: true, Skipped: true}
	}

	err := c.Compile(ctx, u.OutputDir, u.Files)
	if err == nil {
		return Result{Unit: u.Kind, Succeeded: true}
	}

	res := Result{Unit: u.Kind, Err: err}
	var cerr *Error
	if errors.As(err, &cerr) && len(cerr.Diagnostics) > 0 {
		res.Diagnostics = cerr.Diagnostics
	} else {
		res.Diagnostics = []string{err.Error()}
	}
	return res
}

// splitLines turns compiler output into diagnostic lines, dropping
// blank ones.
func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
