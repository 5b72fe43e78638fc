package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hugrllvm/internal/buildpipeline"
	"hugrllvm/internal/observ"
)

var buildCmd = &cobra.Command{
	Use:   "build <files...>",
	Short: "Lower graph-IR files to .ll files in parallel",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuild,
}

func init() {
	addLowerFlags(buildCmd)
	buildCmd.Flags().IntP("jobs", "j", 0, "files lowered at once (default: GOMAXPROCS)")
	buildCmd.Flags().String("out-dir", "", "directory for .ll files (default: next to each input)")
	buildCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := registryFor(cfg)
	if err != nil {
		return err
	}
	jobs, _ := cmd.Flags().GetInt("jobs")
	outDir, _ := cmd.Flags().GetString("out-dir")
	uiValue, _ := cmd.Flags().GetString("ui")
	display, err := parseProgressDisplay(uiValue)
	if err != nil {
		return err
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}

	timer := observ.NewTimer()
	// The module name is left empty so each file is named after itself,
	// unless the config or --module-name fixes one.
	opts := cfg.Lower("")
	req := &buildpipeline.BuildRequest{
		Files:    args,
		BaseDir:  wd,
		OutDir:   outDir,
		Jobs:     jobs,
		Registry: reg,
		Options:  opts,
		Verify:   cfg.ShouldVerify(),
		Timer:    timer,
	}

	var res buildpipeline.BuildResult
	useTUI := !quiet(cmd) && display.live(os.Stdout)
	if useTUI {
		res, err = runBuildWithUI(cmd.Context(), "hugrllvm build", req)
	} else {
		res, err = buildpipeline.Build(cmd.Context(), req)
	}
	if !quiet(cmd) && !useTUI {
		printBuildSummary(cmd.ErrOrStderr(), res)
	}
	if timingsEnabled(cmd) {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if err != nil && res.Failed() > 0 {
		return fmt.Errorf("%d of %d files failed:\n%w", res.Failed(), len(res.Files), err)
	}
	return err
}

func printBuildSummary(out io.Writer, res buildpipeline.BuildResult) {
	ok := color.New(color.FgGreen).Sprint("ok")
	failed := color.New(color.FgRed).Sprint("failed")
	for _, f := range res.Files {
		if f.Err != nil {
			fmt.Fprintf(out, "%-6s %s\n", failed, f.Display)
			continue
		}
		fmt.Fprintf(out, "%-6s %s -> %s (%d functions, %.2f ms)\n",
			ok, f.Display, f.OutputPath, f.Functions, toMillis(f.Timings.Sum()))
	}
}
