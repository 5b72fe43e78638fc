package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"hugrllvm/internal/exec"
	"hugrllvm/internal/extension/intops"
	"hugrllvm/internal/extension/std"
	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/testkit"
)

// resetFlags restores every flag of the command tree to its default so
// runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(runCleanups)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--color=off", "--quiet"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeAdd(t *testing.T, dir string) string {
	t.Helper()
	it := intops.IntType(6)
	h := testkit.Func(t, "add", hugr.TypeRow{it, it}, hugr.TypeRow{it}, func(b *hugr.DataflowBuilder) []hugr.Wire {
		return b.Add(intops.BinaryOp("iadd", 6), b.Input(0), b.Input(1))
	})
	path := filepath.Join(dir, "add.json")
	if err := hugr.Save(path, h); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmitPrintsIR(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeAdd(t, ".")
	out, err := runCLI(t, "emit", "--entry", "add", path)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, want := range []string{`source_filename = "add"`, "define i64 @add(i64", "add i64"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEmitUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeAdd(t, dir)
	cfg := "[module]\nname = \"fromcfg\"\n[mangle]\nprefix = \"_x\"\n"
	if err := os.WriteFile(filepath.Join(dir, "hugrllvm.toml"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "emit", path)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !strings.Contains(out, `source_filename = "fromcfg"`) || !strings.Contains(out, "@_x.add") {
		t.Fatalf("config not applied:\n%s", out)
	}

	out, err = runCLI(t, "emit", "--module-name", "flag", path)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !strings.Contains(out, `source_filename = "flag"`) {
		t.Fatalf("flag should override config:\n%s", out)
	}
}

func TestExecRunsEntry(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeAdd(t, ".")
	out, err := runCLI(t, "exec", "--entry", "add", path, "40", "0x2")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if strings.TrimSpace(out) != "42" {
		t.Fatalf("exec output = %q, want 42", out)
	}

	_, err = runCLI(t, "exec", path, "1", "2")
	if err == nil || !strings.Contains(err.Error(), "exactly one entry point") {
		t.Fatalf("missing entry: err = %v", err)
	}
}

func TestBuildWritesFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeAdd(t, dir)
	_, err := runCLI(t, "build", "--ui=off", "--out-dir", "out", path)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out", "add.ll"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "@_hl.add") {
		t.Fatalf("unexpected IR:\n%s", data)
	}
}

func TestOpsListing(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := runCLI(t, "ops", "--extensions", "prelude,logic")
	if err != nil {
		t.Fatalf("ops: %v", err)
	}
	if !strings.Contains(out, "logic") || !strings.Contains(out, "2 extensions") {
		t.Fatalf("unexpected listing:\n%s", out)
	}
	if strings.Contains(out, "iadd") {
		t.Fatalf("disabled extension listed:\n%s", out)
	}

	out, err = runCLI(t, "ops", "--format", "json")
	if err != nil {
		t.Fatalf("ops json: %v", err)
	}
	var l opsListing
	if err := json.Unmarshal([]byte(out), &l); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(l.Extensions) != len(std.Names()) || l.count("op") == 0 {
		t.Fatalf("unexpected listing: %+v", l)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := runCLI(t, "version", "--format", "json", "--full")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var p versionPayload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if p.Tool != "hugrllvm" || p.GitCommit != "unknown" || len(p.Extensions) == 0 {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestReportErrorExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"nil", nil, exitOK, ""},
		{"plain", errors.New("boom"), exitFailure, "error: boom"},
		{"lower", &lower.Error{Kind: lower.KindUnknownOperation, Msg: "no lowering"}, exitLower, "no lowering"},
		{"panic", &exec.VMError{Code: exec.PanicProgram, Message: "signal 1"}, exitPanic, "signal 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := reportError(&buf, tc.err); got != tc.code {
				t.Fatalf("code = %d, want %d", got, tc.code)
			}
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("output %q missing %q", buf.String(), tc.want)
			}
		})
	}
}

func TestParseProgressDisplay(t *testing.T) {
	for in, want := range map[string]progressDisplay{
		"": progressAuto, "AUTO": progressAuto, "on": progressLive, "live": progressLive,
		" off ": progressSummary, "summary": progressSummary,
	} {
		got, err := parseProgressDisplay(in)
		if err != nil || got != want {
			t.Fatalf("parseProgressDisplay(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := parseProgressDisplay("maybe"); err == nil {
		t.Fatal("expected error")
	}
}

func TestProgressDisplayLive(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if !progressLive.live(f) {
		t.Fatal("live display must not depend on the terminal")
	}
	if progressSummary.live(f) || progressAuto.live(f) {
		t.Fatal("a regular file is not a terminal")
	}
}
