package amx

import (
	"fmt"
	"hash/crc32"

	"fortio.org/safecast"
)

// Cell is the machine word. Addresses and values share this type; data
// addresses are either segment-relative or absolute (relative + base).
type Cell uint32

// CellSize is the size of one cell in bytes.
const CellSize = 4

// ExecMain selects the image entry point instead of a public function.
const ExecMain = -1

// Flags holds machine mode bits.
type Flags uint16

const (
	// FlagBrowse marks an administrative execution that hosts run for
	// their own bookkeeping. Browse runs are excluded from diagnostics.
	FlagBrowse Flags = 1 << iota
)

// DebugHook fires on every line boundary (OpBreak). It must be cheap.
type DebugHook func(m *Machine) error

// Callback dispatches a native function call. params is the relative
// address of the argument block on the stack (arg count cell first).
type Callback func(m *Machine, index int, params Cell) (Cell, error)

// ExecErrorHandler fires when a run finishes with a nonzero error code.
type ExecErrorHandler func(m *Machine, index int, code Code)

// ExecFunc runs a public function on the machine.
type ExecFunc func(m *Machine, index int) (Cell, error)

// ExecHook intercepts Exec. next is the uninstrumented run routine.
type ExecHook func(m *Machine, index int, next ExecFunc) (Cell, error)

// Native implements a host-provided function. args excludes the count cell.
type Native func(m *Machine, args []Cell) (Cell, error)

// Public is an exported script function.
type Public struct {
	Name string
	Addr Cell // code address of the PROC instruction
}

// Config describes a machine to instantiate.
type Config struct {
	Name     string
	Code     []Cell
	Main     Cell // entry point code address
	DataInit []Cell
	DataSize int  // data segment size in bytes (globals + heap + stack)
	HeapBase Cell // relative address where the heap begins
	Base     Cell // virtual base of the data segment; 0 picks DefaultBase
	Publics  []Public
	Natives  []Native
}

// DefaultBase is the virtual data-segment base used when none is configured.
// Nonzero so that relative and absolute addresses never coincide.
const DefaultBase Cell = 0x10000

// Machine is a stack-based bytecode interpreter instance. The data segment
// holds globals at the bottom, the heap above them, and the stack growing
// down from the top.
type Machine struct {
	name string
	code []Cell
	data []byte
	base Cell
	sum  uint32
	main Cell

	pri Cell // primary register (return values)
	frm Cell // frame pointer, relative
	cip Cell // code instruction pointer, byte-scaled
	stk Cell // stack pointer, relative
	hea Cell // heap top, relative
	stp Cell // stack top (one past the highest stack cell), relative

	flags   Flags
	publics []Public
	natives []Native

	debug     DebugHook
	callback  Callback
	execError ExecErrorHandler
	execHook  ExecHook

	eb errorBuilder
}

// New instantiates a machine from cfg.
func New(cfg Config) (*Machine, error) {
	dataSize := cfg.DataSize
	if dataSize <= 0 {
		dataSize = 64 * 1024
	}
	if dataSize%CellSize != 0 {
		return nil, fmt.Errorf("amx: data size %d is not cell aligned", dataSize)
	}
	size, err := safecast.Conv[Cell](dataSize)
	if err != nil {
		return nil, fmt.Errorf("amx: data size out of range: %w", err)
	}
	if len(cfg.DataInit)*CellSize > dataSize {
		return nil, fmt.Errorf("amx: data image larger than data segment")
	}
	base := cfg.Base
	if base == 0 {
		base = DefaultBase
	}

	m := &Machine{
		name:    cfg.Name,
		code:    cfg.Code,
		data:    make([]byte, dataSize),
		base:    base,
		main:    cfg.Main,
		hea:     cfg.HeapBase,
		stk:     size,
		stp:     size,
		publics: cfg.Publics,
		natives: cfg.Natives,
	}
	for i, c := range cfg.DataInit {
		m.putCell(Cell(i*CellSize), c)
	}
	m.sum = codeSum(cfg.Code)
	return m, nil
}

// codeSum computes the image identity checksum over the code segment.
func codeSum(code []Cell) uint32 {
	h := crc32.NewIEEE()
	var buf [CellSize]byte
	for _, c := range code {
		buf[0] = byte(c)
		buf[1] = byte(c >> 8)
		buf[2] = byte(c >> 16)
		buf[3] = byte(c >> 24)
		h.Write(buf[:]) //nolint:errcheck
	}
	return h.Sum32()
}

// Name returns the machine's image name.
func (m *Machine) Name() string { return m.name }

// Sum returns the code checksum identifying the loaded image.
func (m *Machine) Sum() uint32 { return m.sum }

// Frm returns the current frame pointer (relative).
func (m *Machine) Frm() Cell { return m.frm }

// Cip returns the current code position.
func (m *Machine) Cip() Cell { return m.cip }

// Stk returns the current stack pointer (relative).
func (m *Machine) Stk() Cell { return m.stk }

// Hea returns the current heap top (relative).
func (m *Machine) Hea() Cell { return m.hea }

// Stp returns the stack top (relative).
func (m *Machine) Stp() Cell { return m.stp }

// DataLen returns the data segment size in bytes.
func (m *Machine) DataLen() Cell { return Cell(len(m.data)) }

// StackBounds returns the half-open range of valid frame addresses.
func (m *Machine) StackBounds() (lo, hi Cell) { return m.hea, m.stp }

// Browse reports whether the machine is in an administrative run.
func (m *Machine) Browse() bool { return m.flags&FlagBrowse != 0 }

// SetBrowse toggles the browse flag.
func (m *Machine) SetBrowse(on bool) {
	if on {
		m.flags |= FlagBrowse
	} else {
		m.flags &^= FlagBrowse
	}
}

// SetDebugHook installs the line-boundary hook.
func (m *Machine) SetDebugHook(h DebugHook) { m.debug = h }

// SetCallback replaces the native dispatch callback.
func (m *Machine) SetCallback(cb Callback) { m.callback = cb }

// SetExecErrorHandler installs the run error handler.
func (m *Machine) SetExecErrorHandler(h ExecErrorHandler) { m.execError = h }

// SetExecHook installs the Exec interceptor.
func (m *Machine) SetExecHook(h ExecHook) { m.execHook = h }

// PublicIndex finds a public function by name.
func (m *Machine) PublicIndex(name string) (int, bool) {
	for i, p := range m.publics {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Publics returns the exported function list.
func (m *Machine) Publics() []Public { return m.publics }
