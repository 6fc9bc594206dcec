package compiler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
)

const (
	DriverKawa = "kawa"
	DriverJava = "java"
)

var errNoKawaJar = errors.New("the java driver needs kawa.jar: set compiler.classpath or $KAWA_JAR")

// DefaultArgs is the kawa command line for batch compiling into {out}.
var DefaultArgs = []string{"-d", OutPlaceholder, "-C", SourcesPlaceholder}

// Drivers lists the driver names NewDriver understands.
func Drivers() []string {
	return []string{DriverKawa, DriverJava}
}

// DriverOptions override what a driver would find on its own.
type DriverOptions struct {
	Path      string   // compiler executable
	Args      []string // argument template, DefaultArgs if empty
	Classpath string   // kawa.jar, java driver only
	Env       []string
	Stdout    io.Writer
}

// NewDriver returns the Exec preset for the named driver. A compiler
// that cannot be found is not an error here; Compile reports it.
func NewDriver(name string, opts DriverOptions) (*Exec, error) {
	args := opts.Args
	if len(args) == 0 {
		args = DefaultArgs
	}
	e := &Exec{Name: name, Path: opts.Path, Env: opts.Env, Stdout: opts.Stdout}

	switch name {
	case DriverKawa:
		if e.Path == "" {
			e.Path = findExecutable("KAWA", "kawa")
		}
		e.Args = slices.Clone(args)
	case DriverJava:
		if e.Path == "" {
			e.Path = findJava()
		}
		cp := opts.Classpath
		if cp == "" {
			cp = os.Getenv("KAWA_JAR")
		}
		if cp == "" {
			return nil, errNoKawaJar
		}
		e.Args = append([]string{"-cp", cp, "kawa.repl"}, args...)
	default:
		return nil, fmt.Errorf("unknown compiler driver %q, known drivers: %v", name, Drivers())
	}
	return e, nil
}

// findExecutable looks at the environment variable first, then for any
// of the names on the PATH.
func findExecutable(envVar string, names ...string) string {
	if p := os.Getenv(envVar); p != "" {
		return p
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func findJava() string {
	if home := os.Getenv("JAVA_HOME"); home != "" {
		java := filepath.Join(home, "bin", "java")
		if runtime.GOOS == "windows" {
			java += ".exe"
		}
		if _, err := os.Stat(java); err == nil {
			return java
		}
	}
	return findExecutable("JAVA", "java")
}
