// Package config loads hugrllvm.toml (or a YAML equivalent) and turns it
// into lowering and registry options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"hugrllvm/internal/extension/prelude"
	"hugrllvm/internal/extension/std"
	"hugrllvm/internal/lower"
)

// FileName is the configuration file looked up from the working directory.
const FileName = "hugrllvm.toml"

type Config struct {
	Module     ModuleConfig     `toml:"module" yaml:"module"`
	Mangle     MangleConfig     `toml:"mangle" yaml:"mangle"`
	Emit       EmitConfig       `toml:"emit" yaml:"emit"`
	Extensions ExtensionsConfig `toml:"extensions" yaml:"extensions"`
	Prelude    PreludeConfig    `toml:"prelude" yaml:"prelude"`

	// Path is the file the configuration came from, empty for defaults.
	Path string `toml:"-" yaml:"-"`
}

type ModuleConfig struct {
	Name string `toml:"name" yaml:"name"`
}

type MangleConfig struct {
	Prefix     string `toml:"prefix" yaml:"prefix"`
	NodeSuffix bool   `toml:"node_suffix" yaml:"node_suffix"`
}

type EmitConfig struct {
	Entry []string `toml:"entry" yaml:"entry"`
	// Verify runs the target IR verifier after lowering. Nil means true.
	Verify *bool `toml:"verify" yaml:"verify"`
}

type ExtensionsConfig struct {
	// Enabled lists extension names; empty enables every bundled one.
	Enabled []string `toml:"enabled" yaml:"enabled"`
}

type PreludeConfig struct {
	UsizeBits uint64 `toml:"usize_bits" yaml:"usize_bits"`
	Qubit     uint64 `toml:"qubit" yaml:"qubit"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest FileName above startDir, or Default when there
// is none.
func Discover(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes path. Files ending in .yaml or .yml are YAML, anything else
// is TOML. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks value ranges and extension names.
func (c *Config) Validate() error {
	var errs []error
	if b := c.Prelude.UsizeBits; b != 0 && b != 32 && b != 64 {
		errs = append(errs, fmt.Errorf("[prelude].usize_bits must be 32 or 64, got %d", b))
	}
	if b := c.Prelude.Qubit; b > 64 {
		errs = append(errs, fmt.Errorf("[prelude].qubit must be at most 64 bits, got %d", b))
	}
	if strings.ContainsAny(c.Mangle.Prefix, " \t\n\"") {
		errs = append(errs, fmt.Errorf("[mangle].prefix %q contains whitespace or quotes", c.Mangle.Prefix))
	}
	seen := make(map[string]bool, len(c.Emit.Entry))
	for _, e := range c.Emit.Entry {
		if strings.TrimSpace(e) == "" {
			errs = append(errs, errors.New("[emit].entry contains an empty name"))
			continue
		}
		if seen[e] {
			errs = append(errs, fmt.Errorf("[emit].entry names %q twice", e))
		}
		seen[e] = true
	}
	if _, err := std.Extensions(c.Registry()); err != nil {
		errs = append(errs, fmt.Errorf("[extensions].enabled: %w", err))
	}
	return errors.Join(errs...)
}

// ShouldVerify reports whether the verifier runs after lowering.
func (c *Config) ShouldVerify() bool {
	return c.Emit.Verify == nil || *c.Emit.Verify
}

// Lower returns the options for lower.EmitModule. moduleName is used when
// the file does not name the module.
func (c *Config) Lower(moduleName string) lower.Options {
	name := c.Module.Name
	if name == "" {
		name = moduleName
	}
	return lower.Options{
		ModuleName:   name,
		ManglePrefix: c.Mangle.Prefix,
		NodeSuffix:   c.Mangle.NodeSuffix,
		Entry:        append([]string(nil), c.Emit.Entry...),
	}
}

// Registry returns the options for std.Registry.
func (c *Config) Registry() std.Options {
	return std.Options{
		Prelude: prelude.Options{
			UsizeBits: c.Prelude.UsizeBits,
			QubitBits: c.Prelude.Qubit,
		},
		Enabled: append([]string(nil), c.Extensions.Enabled...),
	}
}
