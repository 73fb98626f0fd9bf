// Package reportfmt renders crash reports for external logging sinks.
package reportfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"faulttrace/internal/crash"
)

// TextSink writes human-readable reports.
type TextSink struct {
	w        io.Writer
	colorize bool

	head *color.Color
	dim  *color.Color
}

// NewText returns a text sink. colorize enables ANSI styling.
func NewText(w io.Writer, colorize bool) *TextSink {
	return &TextSink{
		w:        w,
		colorize: colorize,
		head:     color.New(color.FgRed, color.Bold),
		dim:      color.New(color.Faint),
	}
}

// Emit implements crash.Sink.
func (t *TextSink) Emit(r *crash.Report) {
	fmt.Fprintln(t.w, t.styled(t.head, header(r))) //nolint:errcheck
	fmt.Fprintln(t.w, "call stack (most recent call first):") //nolint:errcheck
	for i, f := range r.Frames {
		fmt.Fprintf(t.w, "  #%d %s in %s at %s\n", //nolint:errcheck
			i, t.styled(t.dim, fmt.Sprintf("%06x", uint32(f.RetAddr))), frameLabel(f), location(f))
	}
}

func (t *TextSink) styled(c *color.Color, s string) string {
	if !t.colorize {
		return s
	}
	return c.Sprint(s)
}

// header formats the report's first line.
func header(r *crash.Report) string {
	switch r.Kind {
	case crash.KindExecError:
		return fmt.Sprintf("run time error %d: %q in %s", int32(r.Code), r.Description, r.Machine)
	case crash.KindCrash:
		return fmt.Sprintf("native crash in %s", r.Machine)
	case crash.KindInterrupt:
		return fmt.Sprintf("interrupted in %s", r.Machine)
	default:
		return fmt.Sprintf("%s in %s", r.Description, r.Machine)
	}
}

// frameLabel renders the function name plus the captured string argument.
func frameLabel(f crash.FrameInfo) string {
	var sb strings.Builder
	sb.WriteString(f.Function)
	if f.Display != "" {
		sb.WriteString(" (")
		sb.WriteString(fmt.Sprintf("%q", f.Display))
		sb.WriteString(")")
	}
	return sb.String()
}

// location renders "file:line", dropping the line when unresolved.
func location(f crash.FrameInfo) string {
	if !f.HasLine {
		return f.File
	}
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}
