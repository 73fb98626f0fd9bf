package amx_test

import (
	"path/filepath"
	"testing"

	"faulttrace/internal/amx"
)

func testBundle() *amx.Bundle {
	return &amx.Bundle{
		Name: "demo",
		Code: []amx.Cell{
			amx.OpProc,
			amx.OpConstPri, 1,
			amx.OpRetN,
		},
		Main:     0,
		DataSize: 4096,
		HeapBase: 0x100,
		Publics:  []amx.Public{{Name: "OnReady", Addr: 0}},
		Natives:  []string{"print"},
	}
}

func TestBundleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.px")
	want := testBundle()
	if err := amx.WriteBundle(path, want); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	got, err := amx.ReadBundle(path)
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	if got.Name != want.Name || got.Main != want.Main ||
		got.DataSize != want.DataSize || got.HeapBase != want.HeapBase {
		t.Errorf("header mismatch: got %+v", got)
	}
	if len(got.Code) != len(want.Code) {
		t.Fatalf("expected %d code cells, got %d", len(want.Code), len(got.Code))
	}
	if got.Sum() != want.Sum() {
		t.Errorf("checksum changed across the round trip")
	}
	if len(got.Publics) != 1 || got.Publics[0].Name != "OnReady" {
		t.Errorf("publics mismatch: %+v", got.Publics)
	}
	if len(got.Natives) != 1 || got.Natives[0] != "print" {
		t.Errorf("natives mismatch: %+v", got.Natives)
	}
}

func TestBundleNameDefaultsToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamemode.px")
	b := testBundle()
	b.Name = ""
	if err := amx.WriteBundle(path, b); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	got, err := amx.ReadBundle(path)
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	if got.Name != "gamemode" {
		t.Errorf("expected name %q, got %q", "gamemode", got.Name)
	}
}

func TestInstantiateResolvesNatives(t *testing.T) {
	b := &amx.Bundle{
		Name: "demo",
		Code: []amx.Cell{
			amx.OpProc,
			amx.OpPushC, 0,
			amx.OpSysreqC, 1,
			amx.OpStack, 4,
			amx.OpRetN,
		},
		DataSize: 4096,
		Natives:  []string{"print", "missing"},
	}

	var printed int
	m, err := b.Instantiate(map[string]amx.Native{
		"print": func(*amx.Machine, []amx.Cell) (amx.Cell, error) {
			printed++
			return 0, nil
		},
	})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	// The program calls native 1, which the host does not provide. An
	// unresolved entry fails only when actually invoked.
	if _, err := m.Exec(amx.ExecMain); amx.ErrorCode(err) != amx.CodeCallback {
		t.Fatalf("expected callback error for unresolved native, got %v", err)
	}
	if printed != 0 {
		t.Errorf("resolved native invoked unexpectedly")
	}
	if m.Name() != "demo" || m.Sum() != b.Sum() {
		t.Errorf("machine identity mismatch: name=%q", m.Name())
	}
}
