package crash

import (
	"sync/atomic"

	"faulttrace/internal/amx"
	"faulttrace/internal/callstack"
	"faulttrace/internal/sym"
)

// Handler binds to one machine instance and converts its execution events
// into diagnostics. It continuously tracks the machine's position so that a
// fault inside a native function (where the machine is not stepping) can
// still be attributed to the point where execution left script code.
type Handler struct {
	m     *amx.Machine
	table sym.Table
	path  string
	sink  Sink

	maxDepth int

	// Last known frame pointer and code address, packed into one word so
	// the process-fault path can read it without taking a lock.
	position atomic.Uint64

	depth int // re-entrant Exec depth; mutated only by the run thread
	ring  *positionRing
}

func packPosition(p Position) uint64 {
	return uint64(p.Frm)<<32 | uint64(p.Cip)
}

func unpackPosition(v uint64) Position {
	return Position{Frm: amx.Cell(v >> 32), Cip: amx.Cell(v)}
}

func newHandler(m *amx.Machine, table sym.Table, path string, sink Sink, opts Options) *Handler {
	if table == nil {
		table = sym.None()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Handler{
		m:        m,
		table:    table,
		path:     path,
		sink:     sink,
		maxDepth: opts.MaxDepth,
		ring:     newPositionRing(opts.RingSize),
	}
}

// Machine returns the bound machine.
func (h *Handler) Machine() *amx.Machine { return h.m }

// Path returns the image path associated at load time, if any.
func (h *Handler) Path() string { return h.path }

// Table returns the symbol table resolved for the machine.
func (h *Handler) Table() sym.Table { return h.table }

// Position returns the last tracked execution position.
func (h *Handler) Position() Position {
	return unpackPosition(h.position.Load())
}

// Depth returns the current re-entrant execution depth.
func (h *Handler) Depth() int { return h.depth }

// Recent returns the tracked position history, oldest first.
func (h *Handler) Recent() []Position {
	return h.ring.snapshot()
}

// attach installs the handler as the machine's hooks.
func (h *Handler) attach() {
	h.m.SetDebugHook(h.processDebugHook)
	h.m.SetCallback(h.processCallback)
	h.m.SetExecErrorHandler(h.processExecError)
}

// detach removes the handler's hooks.
func (h *Handler) detach() {
	h.m.SetDebugHook(nil)
	h.m.SetCallback(nil)
	h.m.SetExecErrorHandler(nil)
}

// processDebugHook fires on every line boundary. It only records the
// current position; it must stay cheap. Browse runs are not tracked.
func (h *Handler) processDebugHook(m *amx.Machine) error {
	if m.Browse() {
		return nil
	}
	p := Position{Frm: m.Frm(), Cip: m.Cip()}
	h.position.Store(packPosition(p))
	h.ring.record(p)
	return nil
}

// processCallback wraps native dispatch. The tracked position is restored
// after the call so a nested run started by the native cannot corrupt the
// outer run's last-known position.
func (h *Handler) processCallback(m *amx.Machine, index int, params amx.Cell) (amx.Cell, error) {
	saved := h.position.Load()
	r, err := m.DefaultCallback(index, params)
	h.position.Store(saved)
	return r, err
}

// processExec wraps one run, maintaining the re-entrancy depth.
func (h *Handler) processExec(m *amx.Machine, index int, next amx.ExecFunc) (amx.Cell, error) {
	h.depth++
	defer func() { h.depth-- }()
	return next(m, index)
}

// processExecError fires when a run returns a nonzero error code. The call
// stack is built from the tracked position, not the live registers.
func (h *Handler) processExecError(m *amx.Machine, index int, code amx.Code) {
	p := h.Position()
	frames := callstack.Walk(m, h.table, p.Frm, p.Cip, h.maxDepth)
	h.sink.Emit(&Report{
		Machine:     m.Name(),
		Kind:        KindExecError,
		Code:        code,
		Description: code.Description(),
		Frames:      resolveFrames(h.table, frames),
	})
}

// emitFault is the process-fault path. It touches only previously captured
// state: the machine's own registers may be unreliable here.
func (h *Handler) emitFault(kind Kind) {
	p := h.Position()
	frames := callstack.Walk(h.m, h.table, p.Frm, p.Cip, h.maxDepth)
	desc := "native crash"
	if kind == KindInterrupt {
		desc = "interrupted"
	}
	h.sink.Emit(&Report{
		Machine:     h.m.Name(),
		Kind:        kind,
		Description: desc,
		Frames:      resolveFrames(h.table, frames),
	})
}
