package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"faulttrace/internal/amx"
	"faulttrace/internal/crash"
	"faulttrace/internal/hook"
	"faulttrace/internal/pathfind"
	"faulttrace/internal/reportfmt"
	"faulttrace/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <image.px>",
	Short: "Execute a program image under the fault handler",
	Long:  `Load a bytecode image, attach the crash watcher and execute the entry point. Run time errors and crashes are reported with a symbolic call stack`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().Bool("ui", false, "browse the backtrace interactively after a fault")
	runCmd.Flags().String("public", "", "execute a public function instead of the entry point")
}

// captureSink forwards reports and retains the last one for the viewer.
type captureSink struct {
	next crash.Sink
	last *crash.Report
}

func (s *captureSink) Emit(r *crash.Report) {
	s.last = r
	s.next.Emit(r)
}

func runExecution(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	useUI, err := cmd.Flags().GetBool("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	publicName, err := cmd.Flags().GetString("public")
	if err != nil {
		return fmt.Errorf("failed to get public flag: %w", err)
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	cfg, err := loadToolConfig(configPath)
	if err != nil {
		return err
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return fmt.Errorf("opening report output: %w", err)
	}

	var base crash.Sink
	if cfg.Format == "ndjson" {
		base = reportfmt.NewNDJSON(out)
	} else {
		base = reportfmt.NewText(out, colorEnabled(cmd, out))
	}
	sink := &captureSink{next: base}

	bundle, err := amx.ReadBundle(imagePath)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}
	machine, err := bundle.Instantiate(hostNatives())
	if err != nil {
		return fmt.Errorf("instantiating machine: %w", err)
	}

	finder := pathfind.NewFinder()
	finder.AddSearchPathsFromEnv()
	for _, dir := range cfg.SearchPaths {
		finder.AddSearchPath(dir)
	}

	watcher := crash.NewWatcher(hook.NewExecPoint(), finder, sink, crash.Options{
		MaxDepth: cfg.MaxDepth,
		RingSize: cfg.RingSize,
	})
	if err := watcher.Init(); err != nil {
		return err
	}
	defer watcher.Close()

	if _, err := watcher.MachineLoaded(machine, imagePath); err != nil && !quiet {
		fmt.Fprintf(os.Stderr, "warning: %v (continuing without symbols)\n", err)
	}
	defer watcher.MachineUnloaded(machine)

	// External interrupt collaborator: report from captured state, then die.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		watcher.OnInterrupt()
		os.Exit(130)
	}()

	index := amx.ExecMain
	if publicName != "" {
		i, ok := machine.PublicIndex(publicName)
		if !ok {
			return fmt.Errorf("no public function %q in %s", publicName, machine.Name())
		}
		index = i
	}

	// External crash collaborator: a native that dies takes the process
	// with it; report from captured state first.
	defer func() {
		if r := recover(); r != nil {
			watcher.OnCrash()
			panic(r)
		}
	}()

	ret, execErr := machine.Exec(index)
	if execErr != nil {
		if useUI && sink.last != nil {
			if err := ui.Browse(sink.last); err != nil {
				return err
			}
		}
		os.Exit(1)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s returned %d\n", machine.Name(), int32(ret))
	}
	return nil
}
