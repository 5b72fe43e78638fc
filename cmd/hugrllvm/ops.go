package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"hugrllvm/internal/lower"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operations, constants and types the registry can lower",
	Args:  cobra.NoArgs,
	RunE:  runOps,
}

func init() {
	addLowerFlags(opsCmd)
	opsCmd.Flags().String("format", "text", "output format (text|json)")
}

type opsEntry struct {
	Kind      string `json:"kind"`
	Extension string `json:"extension"`
	Name      string `json:"name"`
}

type opsListing struct {
	Extensions []string   `json:"extensions"`
	Entries    []opsEntry `json:"entries"`
}

func runOps(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := registryFor(cfg)
	if err != nil {
		return err
	}
	listing := listRegistry(reg)
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}
	renderOpsTable(cmd.OutOrStdout(), listing)
	return nil
}

// listRegistry flattens reg into types, then constants, then operations,
// each sorted by qualified name.
func listRegistry(reg *lower.Registry) opsListing {
	l := opsListing{Extensions: reg.Extensions()}
	for _, k := range reg.Types() {
		l.Entries = append(l.Entries, opsEntry{"type", k.Extension, k.Name})
	}
	for _, k := range reg.Consts() {
		l.Entries = append(l.Entries, opsEntry{"const", k.Extension, k.Name})
	}
	for _, k := range reg.Ops() {
		l.Entries = append(l.Entries, opsEntry{"op", k.Extension, k.Op})
	}
	return l
}

func (l opsListing) count(kind string) int {
	n := 0
	for _, e := range l.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func renderOpsTable(out io.Writer, l opsListing) {
	kindW, extW := runewidth.StringWidth("kind"), runewidth.StringWidth("extension")
	for _, e := range l.Entries {
		kindW = max(kindW, runewidth.StringWidth(e.Kind))
		extW = max(extW, runewidth.StringWidth(e.Extension))
	}
	row := func(kind, ext, name string) {
		fmt.Fprintf(out, "%s  %s  %s\n", runewidth.FillRight(kind, kindW), runewidth.FillRight(ext, extW), name)
	}
	row("kind", "extension", "name")
	for _, e := range l.Entries {
		row(e.Kind, e.Extension, e.Name)
	}
	fmt.Fprintf(out, "\n%d extensions, %d types, %d consts, %d ops\n",
		len(l.Extensions), l.count("type"), l.count("const"), l.count("op"))
}
