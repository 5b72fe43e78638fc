package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hugrllvm/internal/buildpipeline"
	"hugrllvm/internal/exec"
)

var execCmd = &cobra.Command{
	Use:   "exec <file> [args...]",
	Short: "Lower a graph-IR file and interpret one of its functions",
	Long: `exec lowers the file with --entry as the only root, verifies the
result and interprets the entry function on the given arguments. Integer
arguments accept decimal, 0x and 0b forms; booleans accept true/false.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	addLowerFlags(execCmd)
	execCmd.Flags().Int("max-steps", exec.DefaultStepLimit, "abort after this many instructions")
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Emit.Entry) != 1 {
		return fmt.Errorf("exec needs exactly one entry point (use --entry), got %d", len(cfg.Emit.Entry))
	}
	entry := cfg.Emit.Entry[0]
	reg, err := registryFor(cfg)
	if err != nil {
		return err
	}
	path := args[0]
	res, err := buildpipeline.Compile(cmd.Context(), &buildpipeline.CompileRequest{
		Path:     path,
		Registry: reg,
		Options:  cfg.Lower(buildpipeline.ModuleName(path)),
		Verify:   cfg.ShouldVerify(),
	})
	if err != nil {
		return err
	}

	maxSteps, _ := cmd.Flags().GetInt("max-steps")
	vm := exec.New(res.Module, exec.WithStdout(cmd.OutOrStdout()), exec.WithStepLimit(maxSteps))
	values, err := exec.ParseArgs(vm, entry, args[1:])
	if err != nil {
		return err
	}
	out, err := vm.Call(entry, values...)
	if err != nil {
		return err
	}
	if out.Kind != exec.VKVoid {
		fmt.Fprintln(cmd.OutOrStdout(), out.String())
	}
	if !quiet(cmd) && timingsEnabled(cmd) {
		printStageTimings(cmd.ErrOrStderr(), res.Timings)
		fmt.Fprintf(cmd.ErrOrStderr(), "%-9s %7d steps\n", "exec", vm.Steps)
	}
	return nil
}
