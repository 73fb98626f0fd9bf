// Package sym resolves code addresses to source-level identity: function
// names, file names and line numbers. Tables are read-only after
// construction and safe to share across concurrent walks.
package sym

import "faulttrace/internal/amx"

// Function identifies a script function by its code range.
type Function struct {
	Name  string
	Entry amx.Cell
	End   amx.Cell // one past the last code address of the function
}

// Table is the consumed symbol interface. Every method tolerates missing
// data: callers degrade to "unknown" rather than failing.
type Table interface {
	// HasSymbols reports whether any debug data is present.
	HasSymbols() bool

	// FunctionAt returns the function whose range contains addr.
	FunctionAt(addr amx.Cell) (Function, bool)

	// FileAt returns the source file containing addr.
	FileAt(addr amx.Cell) (string, bool)

	// LineAt returns the source line at addr.
	LineAt(addr amx.Cell) (int32, bool)

	// StringArgAt reports whether the parameter slot of the function at
	// entry is string-typed.
	StringArgAt(entry amx.Cell, slot int) bool
}

// None returns a table with no symbol data.
func None() Table { return noneTable{} }

type noneTable struct{}

func (noneTable) HasSymbols() bool                     { return false }
func (noneTable) FunctionAt(amx.Cell) (Function, bool) { return Function{}, false }
func (noneTable) FileAt(amx.Cell) (string, bool)       { return "", false }
func (noneTable) LineAt(amx.Cell) (int32, bool)        { return 0, false }
func (noneTable) StringArgAt(amx.Cell, int) bool       { return false }
