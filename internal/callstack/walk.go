package callstack

import (
	"faulttrace/internal/amx"
	"faulttrace/internal/sym"
)

// Walk reconstructs the call stack starting from the frame at frm, with cip
// the current code address of the innermost frame. The result is ordered
// innermost first and ends at the run's entry (saved frame pointer 0) or at
// the first frame that fails a validity check.
//
// Frame addresses must stay inside the stack bounds and strictly increase
// along the walk (the stack grows down, so every outer frame sits higher).
// maxDepth caps the walk against chains that cycle through valid-looking
// addresses; 0 picks the segment's maximum possible frame count.
func Walk(m *amx.Machine, tbl sym.Table, frm, cip amx.Cell, maxDepth int) []Frame {
	if tbl == nil {
		tbl = sym.None()
	}
	if maxDepth <= 0 {
		maxDepth = int(m.DataLen() / amx.CellSize)
	}

	lo, hi := m.StackBounds()
	if frm < lo || frm >= hi {
		// Never dereference an out-of-range frame; report what is known.
		f := Frame{FrameAddr: frm, RetAddr: cip, Incomplete: true}
		if fn, ok := tbl.FunctionAt(cip); ok {
			f.FuncAddr = fn.Entry
		}
		return []Frame{f}
	}

	frames := make([]Frame, 0, 8)
	frames = append(frames, topFrame(m, tbl, frm, cip))

	cur := frm
	for len(frames) < maxDepth {
		prev, err := m.ReadCell(m.Abs(cur))
		if err != nil {
			break
		}
		if prev == 0 {
			// Reached the run's entry.
			break
		}
		if prev <= cur || prev < lo || prev >= hi {
			// Corrupted chain: stop rather than loop or read out of bounds.
			break
		}
		frames = append(frames, linkedFrame(m, tbl, prev))
		cur = prev
	}
	return frames
}

// WalkCurrent walks from the machine's live registers.
func WalkCurrent(m *amx.Machine, tbl sym.Table, maxDepth int) []Frame {
	return Walk(m, tbl, m.Frm(), m.Cip(), maxDepth)
}
