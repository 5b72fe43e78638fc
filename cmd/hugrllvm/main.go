package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hugrllvm/internal/exec"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitLower   = 2
	exitPanic   = 3
)

var rootCmd = &cobra.Command{
	Use:           "hugrllvm",
	Short:         "Lower HUGR graph IR to LLVM IR",
	Long:          `hugrllvm translates hierarchical dataflow graphs into LLVM IR, verifies and interprets the result`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupColor(cmd); err != nil {
			return err
		}
		stopProfiling, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, stopProfiling)
		stopTracing, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, stopTracing)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		runCleanups()
	},
}

// cleanups stop the tracer and profilers, last started first. main also
// runs them after a failed command, since cobra skips PersistentPostRun
// then.
var cleanups []func()

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: nearest hugrllvm.toml)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")

	flags.String("trace", "", "trace output path (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson|chrome)")
	flags.Int("trace-ring-size", 4096, "events kept in ring mode")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")

	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
}

func main() {
	err := rootCmd.Execute()
	runCleanups()
	os.Exit(reportError(os.Stderr, err))
}

// reportError prints err and maps it to an exit code.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	label := color.New(color.FgRed, color.Bold).Sprint("error:")
	var vmErr *exec.VMError
	switch {
	case errors.As(err, &vmErr):
		fmt.Fprintf(w, "%s %s", label, vmErr.Format())
		return exitPanic
	case isLowerError(err):
		fmt.Fprintf(w, "%s %v\n", label, err)
		return exitLower
	default:
		fmt.Fprintf(w, "%s %v\n", label, err)
		return exitFailure
	}
}

func isLowerError(err error) bool {
	var le *lower.Error
	return errors.As(err, &le)
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch strings.ToLower(mode) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stderr) || os.Getenv("NO_COLOR") != ""
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func quiet(cmd *cobra.Command) bool {
	q, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return q
}

func timingsEnabled(cmd *cobra.Command) bool {
	t, _ := cmd.Root().PersistentFlags().GetBool("timings")
	return t
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
