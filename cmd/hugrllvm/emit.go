package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hugrllvm/internal/buildpipeline"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/observ"
)

var emitCmd = &cobra.Command{
	Use:   "emit <file>",
	Short: "Lower one graph-IR file and print its LLVM IR",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmit,
}

func init() {
	addLowerFlags(emitCmd)
	emitCmd.Flags().StringP("output", "o", "", "write IR to a file instead of stdout")
	emitCmd.Flags().Bool("graph", false, "print the input graph as a Mermaid diagram instead of lowering it")
}

func runEmit(cmd *cobra.Command, args []string) error {
	path := args[0]
	if graph, _ := cmd.Flags().GetBool("graph"); graph {
		h, err := hugr.Load(path)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), h.Mermaid())
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := registryFor(cfg)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	timer := observ.NewTimer()
	res, err := buildpipeline.Compile(cmd.Context(), &buildpipeline.CompileRequest{
		Path:       path,
		Registry:   reg,
		Options:    cfg.Lower(buildpipeline.ModuleName(path)),
		Verify:     cfg.ShouldVerify(),
		OutputPath: output,
		Timer:      timer,
	})
	if err != nil {
		return err
	}
	if output == "" {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), res.Module.String()); err != nil {
			return err
		}
	} else if !quiet(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d functions)\n", output, len(res.Module.Funcs))
	}
	if timingsEnabled(cmd) {
		printStageTimings(cmd.ErrOrStderr(), res.Timings)
	}
	return nil
}
