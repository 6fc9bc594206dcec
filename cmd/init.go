// kompile init [name], kompile new [path]
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/spf13/cobra"

	"github.com/qobs-build/kompile/internal/msg"
	"github.com/qobs-build/kompile/internal/project"
)

// writefile creates the file unless it already exists.
func writefile(content string, elem ...string) error {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	fmt.Fprintf(msg.Output, "%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	return nil
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "kompile"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// initIn initializes a project in an existing directory
func initIn(dir, name string, withGit bool) error {
	files := []struct {
		content string
		elem    []string
	}{
		{`[package]
name = "` + name + `"

[sources]
main = ["src/main/kawa"]
test = ["src/test/kawa"]

[output]
main = "build/main"
test = "build/test"

[compiler]
driver = "kawa"
`, []string{project.ConfigFilename}},
		{`(module-name edu.example.App)

(define (main)
  (display "Hello World")
  (newline))
`, []string{"src", "main", "kawa", "edu", "example", "App.scm"}},
		{`(import (edu example App))

(main)
`, []string{"src", "test", "kawa", "edu", "example", "AppTest.scm"}},
		{"build/\n", []string{".gitignore"}},
	}
	for _, f := range files {
		if err := writefile(f.content, append([]string{dir}, f.elem...)...); err != nil {
			return err
		}
	}

	if withGit {
		_, err := git.PlainInit(dir, false)
		switch {
		case errors.Is(err, git.ErrTargetDirNotEmpty):
		case err != nil:
			return fmt.Errorf("git init %s: %w", dir, err)
		default:
			fmt.Fprintf(msg.Output, "%s git repository in %s\n", color.HiGreenString("Initialized"), filepath.ToSlash(dir))
		}
	}

	fmt.Fprintf(msg.Output, "You can now do %s to compile.\n", color.HiCyanString(getProgramName()+" "+dir))
	return nil
}

var noGit bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := initIn(".", args[0], !noGit); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := os.MkdirAll(args[0], 0o755); err != nil {
			msg.Fatal("mkdir %s: %v", args[0], err)
		}
		if err := initIn(args[0], filepath.Base(args[0]), !noGit); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// kompile init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&noGit, "no-git", false, "Do not initialize a git repository")

	// kompile new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVar(&noGit, "no-git", false, "Do not initialize a git repository")
}
