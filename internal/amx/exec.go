package amx

// Opcodes. One cell per opcode, immediate operands follow in the next cell.
const (
	OpNop      Cell = iota
	OpProc          // function prologue: push FRM, FRM = STK
	OpPushC         // push constant/address
	OpPushPri       // push the primary register
	OpConstPri      // PRI = imm
	OpCall          // push return address, jump to imm
	OpRetN          // unwind the frame and return to the caller
	OpJump          // CIP = imm
	OpBreak         // line boundary: fire the debug hook
	OpHalt          // stop with error code imm (0 = clean exit)
	OpSysreqC       // call native imm through the callback
	OpStack         // STK += imm (release pushed arguments)
	OpBounds        // abort with "array index out of bounds" if PRI > imm
)

var execDirect ExecFunc = func(m *Machine, index int) (Cell, error) {
	return m.run(index)
}

// Exec runs a public function, dispatching through the installed exec hook.
// index is a position in Publics, or ExecMain for the image entry point.
func (m *Machine) Exec(index int) (Cell, error) {
	if m.execHook != nil {
		return m.execHook(m, index, execDirect)
	}
	return m.run(index)
}

// run is the uninstrumented execution routine. It is re-entrant: a native
// invoked during one run may start another run on the same machine.
func (m *Machine) run(index int) (Cell, error) {
	entry := m.main
	if index != ExecMain {
		if index < 0 || index >= len(m.publics) {
			return 0, m.eb.index()
		}
		entry = m.publics[index].Addr
	}

	savedFrm, savedCip, savedStk, savedHea := m.frm, m.cip, m.stk, m.hea

	// Bootstrap frame: zero argument bytes and a zero return address. The
	// entry PROC pushes FRM, so walking the chain of this run ends at 0.
	if err := m.push(0); err != nil {
		return 0, err
	}
	if err := m.push(0); err != nil {
		return 0, err
	}
	m.frm = 0
	m.cip = entry

	err := m.loop()
	if code := ErrorCode(err); code != CodeNone && m.execError != nil && !m.Browse() {
		m.execError(m, index, code)
	}

	m.frm, m.cip, m.stk, m.hea = savedFrm, savedCip, savedStk, savedHea
	return m.pri, err
}

func (m *Machine) loop() error {
	for {
		op, ok := m.fetch()
		if !ok {
			return m.eb.invalidInstr()
		}
		switch op {
		case OpNop:
			m.cip += CellSize

		case OpProc:
			if err := m.push(m.frm); err != nil {
				return err
			}
			m.frm = m.stk
			m.cip += CellSize

		case OpPushC:
			v, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			if err := m.push(v); err != nil {
				return err
			}
			m.cip += 2 * CellSize

		case OpPushPri:
			if err := m.push(m.pri); err != nil {
				return err
			}
			m.cip += CellSize

		case OpConstPri:
			v, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			m.pri = v
			m.cip += 2 * CellSize

		case OpCall:
			target, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			if err := m.push(m.cip + 2*CellSize); err != nil {
				return err
			}
			m.cip = target

		case OpRetN:
			m.stk = m.frm
			prevFrm, err := m.pop()
			if err != nil {
				return err
			}
			ret, err := m.pop()
			if err != nil {
				return err
			}
			argBytes, err := m.pop()
			if err != nil {
				return err
			}
			if m.stp-m.stk < argBytes {
				return m.eb.stackError()
			}
			m.stk += argBytes
			m.frm = prevFrm
			m.cip = ret
			if ret == 0 {
				// Returned from the run's entry function.
				return nil
			}

		case OpJump:
			target, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			m.cip = target

		case OpBreak:
			m.cip += CellSize
			if m.debug != nil {
				if err := m.debug(m); err != nil {
					return err
				}
			}

		case OpHalt:
			v, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			m.cip += 2 * CellSize
			if v == 0 {
				return nil
			}
			return m.eb.raise(Code(v))

		case OpSysreqC:
			idx, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			m.cip += 2 * CellSize
			cb := m.callback
			if cb == nil {
				cb = (*Machine).DefaultCallback
			}
			r, err := cb(m, int(idx), m.stk)
			if err != nil {
				return err
			}
			m.pri = r

		case OpStack:
			v, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			if m.stp-m.stk < v {
				return m.eb.stackError()
			}
			m.stk += v
			m.cip += 2 * CellSize

		case OpBounds:
			limit, ok := m.operand()
			if !ok {
				return m.eb.invalidInstr()
			}
			if m.pri > limit {
				return m.eb.raise(CodeBounds)
			}
			m.cip += 2 * CellSize

		default:
			return m.eb.invalidInstr()
		}
	}
}

// fetch reads the opcode at the current code position.
func (m *Machine) fetch() (Cell, bool) {
	if m.cip%CellSize != 0 {
		return 0, false
	}
	idx := int(m.cip / CellSize)
	if idx < 0 || idx >= len(m.code) {
		return 0, false
	}
	return m.code[idx], true
}

// operand reads the immediate following the current opcode.
func (m *Machine) operand() (Cell, bool) {
	idx := int(m.cip/CellSize) + 1
	if idx >= len(m.code) {
		return 0, false
	}
	return m.code[idx], true
}

// DefaultCallback dispatches a native call to the registered native table.
// params is the relative address of the argument count cell; the arguments
// follow it on the stack.
func (m *Machine) DefaultCallback(index int, params Cell) (Cell, error) {
	if index < 0 || index >= len(m.natives) || m.natives[index] == nil {
		return 0, m.eb.callback()
	}
	argBytes, err := m.ReadCell(m.Abs(params))
	if err != nil {
		return 0, err
	}
	n := int(argBytes / CellSize)
	args := make([]Cell, 0, n)
	for i := 1; i <= n; i++ {
		v, err := m.ReadCell(m.Abs(params + Cell(i*CellSize)))
		if err != nil {
			return 0, err
		}
		args = append(args, v)
	}
	r, err := m.natives[index](m, args)
	if err != nil {
		if _, ok := err.(*Error); ok {
			return 0, err
		}
		return 0, m.eb.native()
	}
	return r, nil
}
