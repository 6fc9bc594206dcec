package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Output receives every message. Tests swap it for a buffer.
var Output io.Writer = color.Output

func emit(tag, format string, a ...any) {
	fmt.Fprint(Output, tag)
	fmt.Fprint(Output, ": ")
	fmt.Fprintf(Output, format, a...)
	fmt.Fprint(Output, "\n")
}

func Error(format string, a ...any) {
	emit(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	emit(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	emit(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	emit(color.HiGreenString("info"), format, a...)
}

// Status prints a right-aligned green verb followed by the message,
// e.g. "   Compiling main sources".
func Status(verb, format string, a ...any) {
	fmt.Fprint(Output, color.HiGreenString("%12s", verb), " ")
	fmt.Fprintf(Output, format, a...)
	fmt.Fprint(Output, "\n")
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			if _, err := w.W.Write([]byte(w.Indent)); err != nil {
				return n, err
			}
			w.didIndent = true
		}
		if _, err := w.W.Write([]byte{c}); err != nil { // FIXME-perf: buffer this
			return n, err
		}
		n++
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return n, nil
}
