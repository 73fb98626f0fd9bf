// Package callstack reconstructs the chain of activation records inside a
// machine's data segment. It is built to run against already-corrupted
// state: every lookup failure is absorbed into partial frames, never
// escalated.
package callstack

import (
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"faulttrace/internal/amx"
	"faulttrace/internal/sym"
)

// MaxString caps the characters captured from a frame's string argument.
const MaxString = 30

// truncationMarker is appended when a captured string exceeds MaxString.
const truncationMarker = "..."

// Frame layout inside the data segment, relative to the frame address:
// saved frame pointer, return address, argument byte count, arguments.
const (
	offRetAddr  = 1 * amx.CellSize
	offArgBytes = 2 * amx.CellSize
	offFirstArg = 3 * amx.CellSize
)

// Frame is one reconstructed activation record.
type Frame struct {
	FrameAddr  amx.Cell // relative address of the record in the data segment
	RetAddr    amx.Cell // code address execution resumes at in the caller
	FuncAddr   amx.Cell // entry address of the frame's own function
	Display    string   // captured string argument, if any
	Incomplete bool     // some fields could not be read
}

// topFrame builds the innermost frame from the live execution position.
// cip is the current code address; no return has happened yet, so the
// function is resolved from cip itself, not from a return address.
func topFrame(m *amx.Machine, tbl sym.Table, frm, cip amx.Cell) Frame {
	f := Frame{FrameAddr: frm, RetAddr: cip}
	if fn, ok := tbl.FunctionAt(cip); ok {
		f.FuncAddr = fn.Entry
	}
	capture(m, tbl, &f)
	return f
}

// linkedFrame builds a frame reached through the frame-pointer chain. The
// return address is read from memory; the owning function is the one
// containing the instruction immediately preceding that return address (the
// return address itself points past the call, into the caller).
func linkedFrame(m *amx.Machine, tbl sym.Table, frm amx.Cell) Frame {
	f := Frame{FrameAddr: frm}
	ret, err := m.ReadCell(m.Abs(frm + offRetAddr))
	if err != nil {
		f.Incomplete = true
		return f
	}
	f.RetAddr = ret
	if ret > 0 {
		if fn, ok := tbl.FunctionAt(ret - 1); ok {
			f.FuncAddr = fn.Entry
		}
	}
	capture(m, tbl, &f)
	return f
}

// capture copies the frame's first argument if it is a string. With symbols
// the parameter type is authoritative; without them a heuristic applies:
// the cell must name a readable data address holding printable text. Any
// out-of-range read abandons the capture silently.
func capture(m *amx.Machine, tbl sym.Table, f *Frame) {
	arg, err := m.ReadCell(m.Abs(f.FrameAddr + offFirstArg))
	if err != nil {
		return
	}
	known := f.FuncAddr != 0 && tbl.StringArgAt(f.FuncAddr, 0)
	if tbl.HasSymbols() && !known {
		return
	}

	raw, complete := m.ReadBytes(m.Abs(arg), MaxString+1)
	if !complete && len(raw) == 0 {
		return
	}
	if !known && !printable(raw) {
		return
	}
	if len(raw) == 0 {
		return
	}

	truncated := len(raw) > MaxString
	if truncated {
		raw = raw[:MaxString]
	}
	s := decode(raw)
	if truncated {
		s += truncationMarker
	}
	f.Display = s
}

// printable is the no-symbols heuristic for string-tagged cells.
func printable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if (c < 0x20 || c == 0x7f) && c != '\t' {
			return false
		}
	}
	return true
}

// decode turns raw segment bytes into valid UTF-8. The segment carries
// Latin-1; normalization keeps reports stable across composed forms.
func decode(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().String(string(b))
	if err != nil {
		return string(b)
	}
	return norm.NFC.String(s)
}
