package errors

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[1;31m"
	ansiCyan  = "\033[36m"
	ansiGray  = "\033[90m"
)

// Format returns the multi-line, uncolored rendering used by Fprint.
func (e *Error) Format() string {
	return printer{}.render(e)
}

// PrintError writes err to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}

// Fprint writes err to w, as a block for an *Error and a single line
// otherwise. Colors are used only when w is a terminal and NO_COLOR is
// unset.
func Fprint(w io.Writer, err error) {
	p := printer{color: colorable(w)}
	if e, ok := err.(*Error); ok {
		fmt.Fprint(w, p.render(e))
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", p.paint(ansiRed, "ERROR:"), err)
}

type printer struct {
	color bool
}

func (p printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p printer) render(e *Error) string {
	var b strings.Builder

	head := "ERROR"
	if e.Code != "" {
		head += " " + e.Code
	}
	fmt.Fprintf(&b, "\n%s %s\n\n", p.paint(ansiRed, head+":"), e.Message)

	if lines := wrapText(e.Detail, 70); len(lines) > 0 {
		for _, line := range lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s %s\n\n", p.paint(ansiGray, "Cause:"), e.Wrapped)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s %s\n\n", p.paint(ansiCyan, "Hint:"), e.Suggestion)
	}
	return b.String()
}

func colorable(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// wrapText splits text into lines of at most width bytes, breaking at
// spaces. A word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	var (
		lines   []string
		current strings.Builder
	)
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
