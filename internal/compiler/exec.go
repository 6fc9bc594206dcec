package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const (
	// OutPlaceholder is replaced by the output directory in Exec.Args.
	OutPlaceholder = "{out}"
	// SourcesPlaceholder expands to all source paths in Exec.Args.
	SourcesPlaceholder = "{sources}"
)

var ErrNotFound = errors.New("compiler executable not found")

// Exec runs an external compiler process.
type Exec struct {
	Name string // for messages, e.g. "kawa"
	Path string
	Args []string
	Env  []string // appended to the process environment
	Dir  string
	// Stdout receives the compiler's standard output and, after a
	// successful run, whatever it printed to standard error. Nil
	// discards both.
	Stdout io.Writer
}

var _ Compiler = (*Exec)(nil)

// CommandLine returns the arguments the compiler would be run with.
func (e *Exec) CommandLine(outputDir string, files []string) []string {
	args := make([]string, 0, len(e.Args)+len(files))
	for _, arg := range e.Args {
		if arg == SourcesPlaceholder {
			args = append(args, files...)
			continue
		}
		args = append(args, strings.ReplaceAll(arg, OutPlaceholder, outputDir))
	}
	return args
}

func (e *Exec) Compile(ctx context.Context, outputDir string, files []string) error {
	if e.Path == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, e.hint())
	}

	cmd := exec.CommandContext(ctx, e.Path, e.CommandLine(outputDir, files)...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stdout = e.Stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &Error{
			Diagnostics: splitLines(stderr.String()),
			Err:         fmt.Errorf("%s failed: %w", e.displayName(), err),
		}
	}
	if e.Stdout != nil && stderr.Len() > 0 {
		if _, err := e.Stdout.Write(stderr.Bytes()); err != nil {
			return fmt.Errorf("forwarding %s output: %w", e.displayName(), err)
		}
	}
	return nil
}

func (e *Exec) displayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Path
}

func (e *Exec) hint() string {
	switch e.Name {
	case DriverKawa:
		return "set $KAWA or put kawa on your PATH"
	case DriverJava:
		return "set $JAVA_HOME or put java on your PATH"
	}
	return "no path configured"
}
