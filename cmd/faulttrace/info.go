package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"faulttrace/internal/amx"
	"faulttrace/internal/sym"
)

var infoCmd = &cobra.Command{
	Use:   "info <image.px>",
	Short: "Inspect a program image and its companion symbols",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	out := cmd.OutOrStdout()

	bundle, err := amx.ReadBundle(imagePath)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	fmt.Fprintf(out, "image:    %s\n", bundle.Name)
	fmt.Fprintf(out, "checksum: %08x\n", bundle.Sum())
	fmt.Fprintf(out, "code:     %d cells\n", len(bundle.Code))
	fmt.Fprintf(out, "data:     %d bytes\n", bundle.DataSize)
	fmt.Fprintf(out, "publics:  %d\n", len(bundle.Publics))
	for _, p := range bundle.Publics {
		fmt.Fprintf(out, "  %06x %s\n", uint32(p.Addr), p.Name)
	}
	fmt.Fprintf(out, "natives:  %d\n", len(bundle.Natives))
	for _, n := range bundle.Natives {
		fmt.Fprintf(out, "  %s\n", n)
	}

	symPath := sym.CompanionPath(imagePath)
	info, ok, err := sym.LoadFile(symPath)
	if err != nil {
		return fmt.Errorf("loading symbols: %w", err)
	}
	if !ok {
		fmt.Fprintf(out, "symbols:  none (%s not found)\n", symPath)
		return nil
	}

	funcs := info.Functions()
	fmt.Fprintf(out, "symbols:  %s (%d functions, %d files, %d line records)\n",
		symPath, len(funcs), len(info.Files()), len(info.Lines()))
	for _, f := range funcs {
		fmt.Fprintf(out, "  %06x-%06x %s\n", uint32(f.Entry), uint32(f.End), f.Name)
	}
	return nil
}
