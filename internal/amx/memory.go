package amx

// Values stored inside the data segment are relative addresses. Actual
// access requires the absolute form (relative + base), so every
// dereference goes through one translation.

// Abs translates a relative data address to its absolute form.
func (m *Machine) Abs(rel Cell) Cell { return rel + m.base }

// Rel translates an absolute data address back to its relative form.
func (m *Machine) Rel(abs Cell) Cell { return abs - m.base }

// Contains reports whether the relative address names a readable cell.
func (m *Machine) Contains(rel Cell) bool {
	return rel < m.DataLen() && rel+CellSize <= m.DataLen()
}

// ReadCell reads the cell at an absolute data address.
func (m *Machine) ReadCell(abs Cell) (Cell, error) {
	rel := m.Rel(abs)
	if !m.Contains(rel) {
		return 0, m.eb.memAccess()
	}
	return m.cellAt(rel), nil
}

// WriteCell stores a cell at an absolute data address.
func (m *Machine) WriteCell(abs Cell, v Cell) error {
	rel := m.Rel(abs)
	if !m.Contains(rel) {
		return m.eb.memAccess()
	}
	m.putCell(rel, v)
	return nil
}

// ReadBytes copies up to max bytes starting at an absolute data address,
// stopping early at a NUL terminator. complete is false when the read ran
// off the end of the segment before finding a terminator or the cap.
func (m *Machine) ReadBytes(abs Cell, max int) (b []byte, complete bool) {
	rel := m.Rel(abs)
	if rel >= m.DataLen() {
		return nil, false
	}
	out := make([]byte, 0, max)
	for i := 0; i < max; i++ {
		at := rel + Cell(i)
		if at >= m.DataLen() {
			return out, false
		}
		c := m.data[at]
		if c == 0 {
			return out, true
		}
		out = append(out, c)
	}
	return out, true
}

func (m *Machine) cellAt(rel Cell) Cell {
	return Cell(m.data[rel]) |
		Cell(m.data[rel+1])<<8 |
		Cell(m.data[rel+2])<<16 |
		Cell(m.data[rel+3])<<24
}

func (m *Machine) putCell(rel Cell, v Cell) {
	m.data[rel] = byte(v)
	m.data[rel+1] = byte(v >> 8)
	m.data[rel+2] = byte(v >> 16)
	m.data[rel+3] = byte(v >> 24)
}

// push stores v on the stack, checking for collision with the heap.
func (m *Machine) push(v Cell) error {
	if m.stk < CellSize || m.stk-CellSize < m.hea {
		return m.eb.stackError()
	}
	m.stk -= CellSize
	m.putCell(m.stk, v)
	return nil
}

// pop removes the top stack cell.
func (m *Machine) pop() (Cell, error) {
	if m.stk >= m.stp {
		return 0, m.eb.stackLow()
	}
	v := m.cellAt(m.stk)
	m.stk += CellSize
	return v, nil
}
