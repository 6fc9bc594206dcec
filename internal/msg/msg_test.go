package msg

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old, oldNoColor := Output, color.NoColor
	Output, color.NoColor = &buf, true
	t.Cleanup(func() { Output, color.NoColor = old, oldNoColor })
	return &buf
}

func TestLevels(t *testing.T) {
	buf := captureOutput(t)

	Warn("directory not found: %s", "/nowhere")
	Info("compiled %d files", 3)
	Error("boom")

	want := "warn: directory not found: /nowhere\ninfo: compiled 3 files\nerror: boom\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestStatus(t *testing.T) {
	buf := captureOutput(t)

	Status("Compiling", "main sources (%d files)", 2)

	want := "   Compiling main sources (2 files)\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestIndentWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &IndentWriter{Indent: "  ", W: &buf}

	n, err := w.Write([]byte("first\nsecond"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len("first\nsecond") {
		t.Errorf("n = %d", n)
	}
	if _, err := w.Write([]byte(" line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := "  first\n  second line\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
