package amx_test

import (
	"testing"

	"faulttrace/internal/amx"
)

func TestAbsRelRoundTrip(t *testing.T) {
	m := newMachine(t, amx.Config{Code: []amx.Cell{amx.OpNop}})
	for _, rel := range []amx.Cell{0, 4, 0x100, 0xFFC, 0xFFFF} {
		if got := m.Rel(m.Abs(rel)); got != rel {
			t.Errorf("Rel(Abs(%#x)) = %#x", rel, got)
		}
	}
	if m.Abs(0) == 0 {
		t.Error("absolute and relative zero must not coincide")
	}
}

func TestReadWriteCell(t *testing.T) {
	m := newMachine(t, amx.Config{Code: []amx.Cell{amx.OpNop}})

	if err := m.WriteCell(m.Abs(8), 0xDEADBEEF); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	got, err := m.ReadCell(m.Abs(8))
	if err != nil {
		t.Fatalf("ReadCell: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Errorf("expected 0xDEADBEEF, got %#x", got)
	}

	if _, err := m.ReadCell(m.Abs(m.DataLen())); amx.ErrorCode(err) != amx.CodeMemAccess {
		t.Errorf("read past segment: expected memory access error, got %v", err)
	}
	if err := m.WriteCell(m.Abs(m.DataLen()-2), 1); amx.ErrorCode(err) != amx.CodeMemAccess {
		t.Errorf("unaligned tail write: expected memory access error, got %v", err)
	}
}

func TestReadBytes(t *testing.T) {
	m := newMachine(t, amx.Config{Code: []amx.Cell{amx.OpNop}})

	// "hi" + NUL packed into one cell.
	if err := m.WriteCell(m.Abs(0), amx.Cell('h')|amx.Cell('i')<<8); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	b, complete := m.ReadBytes(m.Abs(0), 30)
	if !complete || string(b) != "hi" {
		t.Errorf("expected (%q, true), got (%q, %v)", "hi", b, complete)
	}

	// No terminator within the cap: the read stops at the cap.
	if err := m.WriteCell(m.Abs(16), 0x64636261); err != nil { // "abcd"
		t.Fatalf("WriteCell: %v", err)
	}
	if err := m.WriteCell(m.Abs(20), 0x68676665); err != nil { // "efgh"
		t.Fatalf("WriteCell: %v", err)
	}
	b, complete = m.ReadBytes(m.Abs(16), 4)
	if !complete || string(b) != "abcd" {
		t.Errorf("expected (%q, true), got (%q, %v)", "abcd", b, complete)
	}

	// A string running off the segment end is incomplete.
	end := m.DataLen() - amx.CellSize
	if err := m.WriteCell(m.Abs(end), 0x61616161); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	b, complete = m.ReadBytes(m.Abs(end), 30)
	if complete || string(b) != "aaaa" {
		t.Errorf("expected (%q, false), got (%q, %v)", "aaaa", b, complete)
	}

	// A start address outside the segment yields nothing.
	if b, complete := m.ReadBytes(m.Abs(m.DataLen()), 30); complete || len(b) != 0 {
		t.Errorf("expected empty incomplete read, got (%q, %v)", b, complete)
	}
}
