package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hugrllvm/internal/config"
	"hugrllvm/internal/extension/std"
	"hugrllvm/internal/lower"
)

// addLowerFlags registers the flags that override config file values.
func addLowerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("entry", nil, "entry-point functions, emitted under their bare names")
	f.String("module-name", "", "module name (default: input base name)")
	f.String("mangle-prefix", "", "prefix for mangled definition names")
	f.Bool("node-suffix", false, "append node ids to mangled names")
	f.Bool("no-verify", false, "skip verification of the emitted IR")
	f.StringSlice("extensions", nil, "extensions to enable (default: all)")
	f.Uint64("usize-bits", 0, "width of prelude usize (32|64)")
	f.Uint64("qubit-bits", 0, "width of prelude qubit when QIR is disabled")
}

// loadConfig reads --config, or the nearest hugrllvm.toml, and applies
// flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	var cfg *config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			wd = "."
		}
		cfg, err = config.Discover(wd)
	}
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			err = apply()
		}
	}
	set("entry", func() (e error) { cfg.Emit.Entry, e = f.GetStringSlice("entry"); return })
	set("module-name", func() (e error) { cfg.Module.Name, e = f.GetString("module-name"); return })
	set("mangle-prefix", func() (e error) { cfg.Mangle.Prefix, e = f.GetString("mangle-prefix"); return })
	set("node-suffix", func() (e error) { cfg.Mangle.NodeSuffix, e = f.GetBool("node-suffix"); return })
	set("extensions", func() (e error) { cfg.Extensions.Enabled, e = f.GetStringSlice("extensions"); return })
	set("usize-bits", func() (e error) { cfg.Prelude.UsizeBits, e = f.GetUint64("usize-bits"); return })
	set("qubit-bits", func() (e error) { cfg.Prelude.Qubit, e = f.GetUint64("qubit-bits"); return })
	set("no-verify", func() error {
		skip, e := f.GetBool("no-verify")
		verify := !skip
		cfg.Emit.Verify = &verify
		return e
	})
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// registryFor builds the extension registry the config selects.
func registryFor(cfg *config.Config) (*lower.Registry, error) {
	return std.Registry(cfg.Registry())
}
