package callstack_test

import (
	"strings"
	"testing"

	"faulttrace/internal/amx"
	"faulttrace/internal/callstack"
	"faulttrace/internal/sym"
)

func testMachine(t *testing.T) *amx.Machine {
	t.Helper()
	m, err := amx.New(amx.Config{
		Code:     []amx.Cell{amx.OpNop},
		DataSize: 4096,
		HeapBase: 0x100,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

// writeFrame fabricates one activation record at frm: saved frame pointer,
// return address, argument byte count, then the arguments.
func writeFrame(t *testing.T, m *amx.Machine, frm, saved, ret, argBytes amx.Cell, args ...amx.Cell) {
	t.Helper()
	cells := append([]amx.Cell{saved, ret, argBytes}, args...)
	for i, c := range cells {
		at := frm + amx.Cell(i*amx.CellSize)
		if err := m.WriteCell(m.Abs(at), c); err != nil {
			t.Fatalf("writing frame cell at %#x: %v", at, err)
		}
	}
}

// writeString stores a NUL-terminated byte string at a relative address.
func writeString(t *testing.T, m *amx.Machine, rel amx.Cell, s string) {
	t.Helper()
	b := append([]byte(s), 0)
	for len(b)%amx.CellSize != 0 {
		b = append(b, 0)
	}
	for i := 0; i < len(b); i += amx.CellSize {
		c := amx.Cell(b[i]) | amx.Cell(b[i+1])<<8 | amx.Cell(b[i+2])<<16 | amx.Cell(b[i+3])<<24
		if err := m.WriteCell(m.Abs(rel+amx.Cell(i)), c); err != nil {
			t.Fatalf("writing string at %#x: %v", rel, err)
		}
	}
}

func walkTable() *sym.Info {
	return sym.New(
		[]sym.Function{
			{Name: "main", Entry: 0x08, End: 0x2C},
			{Name: "greet", Entry: 0x2C, End: 0x50},
			{Name: "fail", Entry: 0x50, End: 0x64},
		},
		nil, nil,
		[]sym.ArgRecord{{Func: 0x50, Slot: 0, Name: "message", IsString: true}},
	)
}

func TestWalkLinkedFrames(t *testing.T) {
	m := testMachine(t)
	tbl := walkTable()

	// Innermost fail frame at 0x800, its caller greet at 0x900, then the
	// run's entry frame whose saved pointer is zero.
	writeFrame(t, m, 0x800, 0x900, 0x4C, 4, 0)
	writeFrame(t, m, 0x900, 0xA00, 0x28, 4, 0)
	writeFrame(t, m, 0xA00, 0, 0, 0)

	frames := callstack.Walk(m, tbl, 0x800, 0x58, 0)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d: %+v", len(frames), frames)
	}

	if frames[0].FrameAddr != 0x800 || frames[0].RetAddr != 0x58 {
		t.Errorf("frame 0: %+v", frames[0])
	}
	if frames[0].FuncAddr != 0x50 {
		t.Errorf("frame 0: expected the live position's function, got %#x", frames[0].FuncAddr)
	}

	// A stored return address points just past the call instruction, so
	// the owning function comes from the preceding address.
	if frames[1].FrameAddr != 0x900 || frames[1].RetAddr != 0x28 || frames[1].FuncAddr != 0x08 {
		t.Errorf("frame 1: %+v", frames[1])
	}
	if frames[2].FrameAddr != 0xA00 || frames[2].RetAddr != 0 || frames[2].FuncAddr != 0 {
		t.Errorf("frame 2: %+v", frames[2])
	}
	for i, f := range frames {
		if f.Incomplete {
			t.Errorf("frame %d unexpectedly incomplete", i)
		}
	}
}

func TestWalkStopsOnNonMonotonicChain(t *testing.T) {
	m := testMachine(t)

	// The saved pointer loops back to the frame itself.
	writeFrame(t, m, 0x800, 0x800, 0x4C, 0)
	frames := callstack.Walk(m, nil, 0x800, 0x58, 0)
	if len(frames) != 1 {
		t.Fatalf("self-referential chain: expected 1 frame, got %d", len(frames))
	}

	// The saved pointer goes down the stack instead of up.
	writeFrame(t, m, 0x900, 0x800, 0x4C, 0)
	frames = callstack.Walk(m, nil, 0x900, 0x58, 0)
	if len(frames) != 1 {
		t.Fatalf("descending chain: expected 1 frame, got %d", len(frames))
	}
}

func TestWalkStopsOnOutOfBoundsLink(t *testing.T) {
	m := testMachine(t)

	// Below the stack's lower bound.
	writeFrame(t, m, 0x800, 0x80, 0x4C, 0)
	if frames := callstack.Walk(m, nil, 0x800, 0x58, 0); len(frames) != 1 {
		t.Errorf("link below bounds: expected 1 frame, got %d", len(frames))
	}

	// At the stack top (one past the valid range).
	writeFrame(t, m, 0x900, 4096, 0x4C, 0)
	if frames := callstack.Walk(m, nil, 0x900, 0x58, 0); len(frames) != 1 {
		t.Errorf("link at stack top: expected 1 frame, got %d", len(frames))
	}
}

func TestWalkDepthCap(t *testing.T) {
	m := testMachine(t)
	addrs := []amx.Cell{0x800, 0x840, 0x880, 0x8C0, 0x900}
	for i, a := range addrs {
		saved := amx.Cell(0)
		if i+1 < len(addrs) {
			saved = addrs[i+1]
		}
		writeFrame(t, m, a, saved, 0x28, 0)
	}

	if frames := callstack.Walk(m, nil, addrs[0], 0x58, 2); len(frames) != 2 {
		t.Errorf("maxDepth=2: expected 2 frames, got %d", len(frames))
	}
	if frames := callstack.Walk(m, nil, addrs[0], 0x58, 0); len(frames) != len(addrs) {
		t.Errorf("default cap: expected %d frames, got %d", len(addrs), len(frames))
	}
}

func TestWalkOutOfRangeStart(t *testing.T) {
	m := testMachine(t)
	tbl := walkTable()

	frames := callstack.Walk(m, tbl, 5000, 0x58, 0)
	if len(frames) != 1 {
		t.Fatalf("expected a single frame, got %d", len(frames))
	}
	f := frames[0]
	if !f.Incomplete {
		t.Error("expected the frame to be marked incomplete")
	}
	if f.FrameAddr != 5000 || f.RetAddr != 0x58 || f.FuncAddr != 0x50 {
		t.Errorf("frame: %+v", f)
	}
}

func TestWalkCapturesStringArgument(t *testing.T) {
	newFrame := func(t *testing.T, m *amx.Machine, strRel amx.Cell) []callstack.Frame {
		t.Helper()
		writeFrame(t, m, 0x800, 0, 0, 4, strRel)
		return callstack.Walk(m, walkTable(), 0x800, 0x58, 0)
	}

	t.Run("short string", func(t *testing.T) {
		m := testMachine(t)
		writeString(t, m, 0, "hello")
		frames := newFrame(t, m, 0)
		if frames[0].Display != "hello" {
			t.Errorf("expected %q, got %q", "hello", frames[0].Display)
		}
	})

	t.Run("exactly at the cap", func(t *testing.T) {
		m := testMachine(t)
		s := strings.Repeat("x", callstack.MaxString)
		writeString(t, m, 0, s)
		frames := newFrame(t, m, 0)
		if frames[0].Display != s {
			t.Errorf("expected %q, got %q", s, frames[0].Display)
		}
	})

	t.Run("truncated past the cap", func(t *testing.T) {
		m := testMachine(t)
		writeString(t, m, 0, strings.Repeat("x", callstack.MaxString+1))
		frames := newFrame(t, m, 0)
		want := strings.Repeat("x", callstack.MaxString) + "..."
		if frames[0].Display != want {
			t.Errorf("expected %q, got %q", want, frames[0].Display)
		}
	})

	t.Run("non-ascii bytes decode as latin-1", func(t *testing.T) {
		m := testMachine(t)
		writeString(t, m, 0, "caf\xe9")
		frames := newFrame(t, m, 0)
		if frames[0].Display != "café" {
			t.Errorf("expected %q, got %q", "café", frames[0].Display)
		}
	})

	t.Run("symbols veto non-string parameters", func(t *testing.T) {
		m := testMachine(t)
		writeString(t, m, 0, "hello")
		// greet's frame: its parameter is not string-typed, so even a
		// printable cell must not be displayed.
		writeFrame(t, m, 0x800, 0, 0, 4, 0)
		frames := callstack.Walk(m, walkTable(), 0x800, 0x30, 0)
		if frames[0].Display != "" {
			t.Errorf("expected no display, got %q", frames[0].Display)
		}
	})
}

func TestWalkHeuristicWithoutSymbols(t *testing.T) {
	t.Run("printable text is captured", func(t *testing.T) {
		m := testMachine(t)
		writeString(t, m, 0, "hello")
		writeFrame(t, m, 0x800, 0, 0, 4, 0)
		frames := callstack.Walk(m, sym.None(), 0x800, 0x58, 0)
		if frames[0].Display != "hello" {
			t.Errorf("expected %q, got %q", "hello", frames[0].Display)
		}
	})

	t.Run("control bytes are rejected", func(t *testing.T) {
		m := testMachine(t)
		if err := m.WriteCell(m.Abs(0), 0x0101); err != nil {
			t.Fatal(err)
		}
		writeFrame(t, m, 0x800, 0, 0, 4, 0)
		frames := callstack.Walk(m, sym.None(), 0x800, 0x58, 0)
		if frames[0].Display != "" {
			t.Errorf("expected no display, got %q", frames[0].Display)
		}
	})
}

func TestWalkCurrentUsesLiveRegisters(t *testing.T) {
	m := testMachine(t)
	// A fresh machine's frame pointer is zero, below the stack bounds, so
	// the walk reports a single incomplete frame without dereferencing it.
	frames := callstack.WalkCurrent(m, nil, 0)
	if len(frames) != 1 || !frames[0].Incomplete {
		t.Fatalf("expected one incomplete frame, got %+v", frames)
	}
}
