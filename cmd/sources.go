// kompile sources [path]
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qobs-build/kompile/internal/msg"
	"github.com/qobs-build/kompile/internal/orchestrator"
	"github.com/qobs-build/kompile/internal/project"
)

// listSources prints every unit's sources relative to the project, in
// the order they would be passed to the compiler.
func listSources(dir string) error {
	p, err := project.Load(dir)
	if err != nil {
		return err
	}
	cfg, err := orchestrator.FromProject(p)
	if err != nil {
		return err
	}
	units, err := cfg.Units()
	if err != nil {
		return err
	}

	for _, u := range units {
		msg.Status(u.Kind.String(), "%d files -> %s", len(u.Files), rel(p.Dir, u.OutputDir))
		for _, f := range u.Files {
			fmt.Fprintf(msg.Output, "%12s %s\n", "", rel(p.Dir, f))
		}
	}
	return nil
}

func rel(base, path string) string {
	if r, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [target path]",
	Short: "List the sources that would be compiled",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		if err := listSources(target); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// kompile sources subcommand
	rootCmd.AddCommand(sourcesCmd)
}
