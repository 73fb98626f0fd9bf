package main

import (
	"fmt"
	"os"

	"faulttrace/internal/amx"
)

// hostNatives is the builtin native table resolved against bundle imports.
func hostNatives() map[string]amx.Native {
	return map[string]amx.Native{
		"print":  nativePrint,
		"printi": nativePrinti,
	}
}

// nativePrint writes the NUL-terminated string at args[0] to stdout.
func nativePrint(m *amx.Machine, args []amx.Cell) (amx.Cell, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("print: missing argument")
	}
	b, _ := m.ReadBytes(m.Abs(args[0]), 4096)
	fmt.Fprintln(os.Stdout, string(b)) //nolint:errcheck
	return amx.Cell(len(b)), nil
}

// nativePrinti writes an integer cell to stdout.
func nativePrinti(_ *amx.Machine, args []amx.Cell) (amx.Cell, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("printi: missing argument")
	}
	fmt.Fprintln(os.Stdout, int32(args[0])) //nolint:errcheck
	return args[0], nil
}
