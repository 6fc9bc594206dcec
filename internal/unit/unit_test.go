package unit

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/qobs-build/kompile/internal/fileset"
)

func writeFile(t *testing.T, dir, rel string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestKindString(t *testing.T) {
	if Main.String() != "main" || Test.String() != "test" {
		t.Errorf("got %q and %q", Main, Test)
	}
	if Kind(7).String() != "unknown" {
		t.Errorf("got %q", Kind(7))
	}
}

func TestAssembleOrder(t *testing.T) {
	t.Parallel()

	a, b := t.TempDir(), t.TempDir()
	explicit := writeFile(t, t.TempDir(), "Extra.scm")
	a1 := writeFile(t, a, "A1.scm")
	a2 := writeFile(t, a, "sub/A2.scm")
	b1 := writeFile(t, b, "B1.sld")

	u, err := Assemble(Main, []string{explicit}, []fileset.Root{{Dir: b}, {Dir: a}}, "out")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := []string{explicit, b1, a1, a2}
	if !slices.Equal(u.Files, want) {
		t.Errorf("files = %v, want %v", u.Files, want)
	}
	if u.Kind != Main || u.OutputDir != "out" {
		t.Errorf("unexpected unit %+v", u)
	}
}

func TestAssembleDeduplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	app := writeFile(t, dir, "App.scm")
	lib := writeFile(t, dir, "Lib.scm")

	// the same file reachable through the explicit list, a root given
	// twice and an unclean path
	unclean := filepath.Join(dir, "x", "..", "App.scm")
	u, err := Assemble(Test, []string{app, unclean}, []fileset.Root{{Dir: dir}, {Dir: dir}}, "")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := []string{app, lib}
	if !slices.Equal(u.Files, want) {
		t.Errorf("files = %v, want %v", u.Files, want)
	}
}

func TestAssembleEmpty(t *testing.T) {
	t.Parallel()

	u, err := Assemble(Test, nil, []fileset.Root{{}}, "out")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !u.Empty() {
		t.Errorf("expected empty unit, got %v", u.Files)
	}
}

func TestAssembleResolveError(t *testing.T) {
	t.Parallel()

	file := writeFile(t, t.TempDir(), "NotADir.scm")
	if _, err := Assemble(Main, nil, []fileset.Root{{Dir: file}}, ""); err == nil {
		t.Fatal("expected error")
	}
}
