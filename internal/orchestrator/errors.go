package orchestrator

import (
	"fmt"

	"github.com/qobs-build/kompile/internal/compiler"
)

// ConfigurationError means the build was set up wrong and nothing ran.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

// CompilationError carries the first unit that failed to compile.
type CompilationError struct {
	Result compiler.Result
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compiling %s sources failed: %v", e.Result.Unit, e.Result.Err)
}

func (e *CompilationError) Unwrap() error { return e.Result.Err }

// Diagnostics are the compiler's messages, unmodified.
func (e *CompilationError) Diagnostics() []string { return e.Result.Diagnostics }
