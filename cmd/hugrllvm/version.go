package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hugrllvm/internal/extension/std"
	"hugrllvm/internal/version"
)

type versionInfo struct {
	Version    string
	GitCommit  string
	GitMessage string
	BuildDate  string
	Extensions []string
}

type versionOptions struct {
	format      string
	showHash    bool
	showMessage bool
	showDate    bool
}

type versionPayload struct {
	Tool       string   `json:"tool"`
	Version    string   `json:"version"`
	Extensions []string `json:"extensions"`
	GitCommit  string   `json:"git_commit,omitempty"`
	GitMessage string   `json:"git_message,omitempty"`
	BuildDate  string   `json:"build_date,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show hugrllvm build metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		format, _ := f.GetString("format")
		hash, _ := f.GetBool("hash")
		message, _ := f.GetBool("message")
		date, _ := f.GetBool("date")
		full, _ := f.GetBool("full")
		opts := versionOptions{
			format:      strings.ToLower(format),
			showHash:    hash || full,
			showMessage: message || full,
			showDate:    date || full,
		}
		info := collectVersionInfo()
		switch opts.format {
		case "json":
			return renderVersionJSON(cmd.OutOrStdout(), info, opts)
		case "pretty":
			renderVersionPretty(cmd.OutOrStdout(), info, opts)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		}
	},
}

func init() {
	f := versionCmd.Flags()
	f.Bool("hash", false, "include git commit hash")
	f.Bool("message", false, "include git commit message")
	f.Bool("date", false, "include build timestamp")
	f.Bool("full", false, "show every recorded bit of build metadata")
	f.String("format", "pretty", "output format (pretty|json)")
}

func collectVersionInfo() versionInfo {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	return versionInfo{
		Version:    v,
		GitCommit:  strings.TrimSpace(version.GitCommit),
		GitMessage: strings.TrimSpace(version.GitMessage),
		BuildDate:  strings.TrimSpace(version.BuildDate),
		Extensions: std.Names(),
	}
}

func renderVersionPretty(out io.Writer, info versionInfo, opts versionOptions) {
	fmt.Fprintf(out, "hugrllvm %s\n", version.Colored(info.Version))
	fmt.Fprintf(out, "extensions: %s\n", strings.Join(info.Extensions, ", "))
	if opts.showHash {
		fmt.Fprintf(out, "commit: %s\n", valueOrUnknown(info.GitCommit))
	}
	if opts.showMessage {
		fmt.Fprintf(out, "message: %s\n", valueOrUnknown(info.GitMessage))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:  %s\n", valueOrUnknown(info.BuildDate))
	}
}

func renderVersionJSON(out io.Writer, info versionInfo, opts versionOptions) error {
	payload := versionPayload{
		Tool:       "hugrllvm",
		Version:    info.Version,
		Extensions: info.Extensions,
	}
	if opts.showHash {
		payload.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if opts.showMessage {
		payload.GitMessage = valueOrUnknown(info.GitMessage)
	}
	if opts.showDate {
		payload.BuildDate = valueOrUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
