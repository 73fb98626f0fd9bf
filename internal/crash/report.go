// Package crash turns low-level machine faults into structured diagnostics
// with file, line and function context.
package crash

import (
	"faulttrace/internal/amx"
	"faulttrace/internal/callstack"
	"faulttrace/internal/sym"
)

// Unknown is rendered for fields the symbol table cannot resolve.
const Unknown = "unknown"

// Kind classifies the event that produced a report.
type Kind uint8

const (
	// KindExecError is a recoverable run time error: the machine reported
	// a nonzero code and returned.
	KindExecError Kind = iota + 1
	// KindCrash is a process-level fault raised while the machine was
	// inside foreign code. Fatal; the report is best-effort.
	KindCrash
	// KindInterrupt is an external interrupt signal.
	KindInterrupt
)

// String returns the kind as a short label.
func (k Kind) String() string {
	switch k {
	case KindExecError:
		return "error"
	case KindCrash:
		return "crash"
	case KindInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// FrameInfo is one resolved call stack entry of a report.
type FrameInfo struct {
	File     string
	Function string
	Line     int32
	HasLine  bool
	Display  string // truncated string argument, if captured

	FrameAddr amx.Cell
	RetAddr   amx.Cell
	FuncAddr  amx.Cell
}

// Report is the structured diagnostic handed to the sink. Frames are
// ordered innermost first.
type Report struct {
	Machine     string
	Kind        Kind
	Code        amx.Code // set for KindExecError only
	Description string
	Frames      []FrameInfo
}

// Sink consumes reports. Implementations must tolerate partial frames.
type Sink interface {
	Emit(*Report)
}

// NopSink discards reports.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(*Report) {}

// resolveFrames maps reconstructed frames to their source identity.
// Missing symbol data degrades to Unknown; ordering is preserved.
func resolveFrames(tbl sym.Table, frames []callstack.Frame) []FrameInfo {
	out := make([]FrameInfo, 0, len(frames))
	for i, f := range frames {
		info := FrameInfo{
			File:      Unknown,
			Function:  Unknown,
			Display:   f.Display,
			FrameAddr: f.FrameAddr,
			RetAddr:   f.RetAddr,
			FuncAddr:  f.FuncAddr,
		}
		// The innermost frame's RetAddr is the live position; every other
		// frame's points one past the call instruction.
		at := f.RetAddr
		if i > 0 && at > 0 {
			at--
		}
		if fn, ok := tbl.FunctionAt(f.FuncAddr); ok && f.FuncAddr != 0 {
			info.Function = fn.Name
		}
		if file, ok := tbl.FileAt(at); ok {
			info.File = file
		}
		if line, ok := tbl.LineAt(at); ok {
			info.Line = line
			info.HasLine = true
		}
		out = append(out, info)
	}
	return out
}
