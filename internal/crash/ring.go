package crash

import (
	"sync"

	"faulttrace/internal/amx"
)

// Position is one tracked execution position: frame pointer plus code
// address, both captured at a line boundary.
type Position struct {
	Frm amx.Cell
	Cip amx.Cell
}

// positionRing keeps the last N positions (circular buffer). It backs the
// "recent positions" section of fault reports.
type positionRing struct {
	mu       sync.Mutex
	buf      []Position
	capacity int
	head     int  // next write position
	full     bool // has wrapped around
}

func newPositionRing(capacity int) *positionRing {
	if capacity <= 0 {
		return nil
	}
	return &positionRing{
		buf:      make([]Position, capacity),
		capacity: capacity,
	}
}

// record appends a position. Nil rings drop everything.
func (r *positionRing) record(p Position) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.buf[r.head] = p
	r.head = (r.head + 1) % r.capacity
	if r.head == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// snapshot returns the stored positions in chronological order.
func (r *positionRing) snapshot() []Position {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Position, r.head)
		copy(out, r.buf[:r.head])
		return out
	}
	out := make([]Position, r.capacity)
	copy(out, r.buf[r.head:])
	copy(out[r.capacity-r.head:], r.buf[:r.head])
	return out
}
