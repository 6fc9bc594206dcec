package project

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "hello")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct{ name, got, want string }{
		{"name", p.Config.Package.Name, "hello"},
		{"main sources", p.MainSourceDirectory(), filepath.Join(dir, "src", "main", "kawa")},
		{"test sources", p.TestSourceDirectory(), filepath.Join(dir, "src", "test", "kawa")},
		{"main output", p.BuildMainDirectory(), filepath.Join(dir, "build", "main")},
		{"test output", p.BuildTestDirectory(), filepath.Join(dir, "build", "test")},
		{"driver", p.Config.Compiler.Driver, "kawa"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if p.IsSilent() {
		t.Error("silent by default")
	}
	if rule := p.SourceRule(); len(rule.Include) != 0 || len(rule.Exclude) != 0 {
		t.Errorf("expected the default rule, got %+v", rule)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ConfigFilename, `
[package]
name = "app-{{ target_os }}"

[sources]
main = ["src/main/kawa", "gen"]
test = ["spec/kawa"]
files = ["extra/Boot.scm"]
suffixes = [".scm"]
exclude = ["*_flymake.scm"]

[output]
main = "/abs/out/main"
test = "out/test"

[compiler]
driver = "java"
classpath = "lib/kawa.jar"
args = ["--warn-undefined-variable", "-d", "{out}", "-C", "{sources}"]
`)

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if want := "app-" + runtime.GOOS; p.Config.Package.Name != want {
		t.Errorf("name = %q, want %q", p.Config.Package.Name, want)
	}
	files, dirs := p.MainSources()
	if !slices.Equal(files, []string{filepath.Join(dir, "extra", "Boot.scm")}) {
		t.Errorf("main files = %v", files)
	}
	if !slices.Equal(dirs, []string{filepath.Join(dir, "src", "main", "kawa"), filepath.Join(dir, "gen")}) {
		t.Errorf("main dirs = %v", dirs)
	}
	testFiles, testDirs := p.TestSources()
	if len(testFiles) != 0 || !slices.Equal(testDirs, []string{filepath.Join(dir, "spec", "kawa")}) {
		t.Errorf("test sources = %v, %v", testFiles, testDirs)
	}
	if p.TestSourceDirectory() != testDirs[0] {
		t.Errorf("test source directory = %q", p.TestSourceDirectory())
	}
	if p.BuildMainDirectory() != "/abs/out/main" {
		t.Errorf("main output = %q", p.BuildMainDirectory())
	}
	if p.BuildTestDirectory() != filepath.Join(dir, "out", "test") {
		t.Errorf("test output = %q", p.BuildTestDirectory())
	}
	rule := p.SourceRule()
	if !slices.Equal(rule.Include, []string{"**/*.scm"}) || !slices.Equal(rule.Exclude, []string{"*_flymake.scm"}) {
		t.Errorf("rule = %+v", rule)
	}
	if p.Config.Compiler.Driver != "java" || p.Config.Compiler.Classpath != "lib/kawa.jar" || len(p.Config.Compiler.Args) != 5 {
		t.Errorf("compiler = %+v", p.Config.Compiler)
	}
}

func TestConditionalSections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ConfigFilename, `
[sources]
main = ["src"]

[sources.'target_os == "`+runtime.GOOS+`"']
main = ["src-native"]

[sources.'target_os == "plan9-never"']
main = ["src-never"]

[compiler]
path = "/usr/bin/kawa"

[compiler.'target_arch == "`+runtime.GOARCH+`"']
incremental = true
path = "/opt/kawa"
`)

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, dirs := p.MainSources()
	want := []string{filepath.Join(dir, "src"), filepath.Join(dir, "src-native")}
	if !slices.Equal(dirs, want) {
		t.Errorf("main dirs = %v, want %v", dirs, want)
	}
	if !p.Config.Compiler.Incremental || p.Config.Compiler.Path != "/opt/kawa" {
		t.Errorf("compiler = %+v", p.Config.Compiler)
	}
}

func TestConditionalSectionTurnsOff(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ConfigFilename, `
[compiler]
path = "/usr/bin/kawa"
incremental = true

[compiler.'target_os == "`+runtime.GOOS+`"']
incremental = false
`)

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Config.Compiler.Incremental {
		t.Error("conditional section could not turn incremental off")
	}
	if p.Config.Compiler.Path != "/usr/bin/kawa" || p.Config.Compiler.Driver != "kawa" {
		t.Errorf("keys absent from the conditional section changed: %+v", p.Config.Compiler)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[package\nname = 1"},
		{"bad interpolation", "[package]\nname = \"{{ nope( }}\""},
		{"section not a table", "sources = 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, ConfigFilename, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunBuildScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{"none", "", ""},
		{"true", `target_os != ""`, ""},
		{"read file", `ReadFile("VERSION") == "1.0"`, ""},
		{"false", `1 > 2`, "returned false"},
		{"not bool", `"yes"`, "returned false"},
		{"bad syntax", `1 +`, "failed to compile"},
		{"outside project", `ReadFile("../secret") == ""`, "failed to run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "VERSION", "1.0")
			writeFile(t, dir, ConfigFilename, "[package]\nname = \"app\"\nbuild = '"+tt.script+"'\n")

			p, err := Load(dir)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = p.RunBuildScript()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestPatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	orig := "(define (main)\n  (display \"hello\"))\n"
	patched := "(define (main)\n  (display \"hello, kawa\"))\n"
	path := writeFile(t, dir, "src/App.scm", orig)

	dmp := diffmatchpatch.New()
	patchText := dmp.PatchToText(dmp.PatchMake(orig, patched))

	env := NewConfigEnv(dir)
	if !env.Patch("src/App.scm", patchText) {
		t.Fatal("patch did not apply")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != patched {
		t.Errorf("patched file = %q", data)
	}
}

func TestPathIsolation(t *testing.T) {
	t.Parallel()

	env := NewConfigEnv(t.TempDir())
	defer func() {
		if recover() == nil {
			t.Error("expected panic for a path outside the project")
		}
	}()
	env.ReadFile("../../etc/passwd")
}
