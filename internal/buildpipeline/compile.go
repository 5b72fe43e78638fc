package buildpipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/llir/llvm/ir"

	"hugrllvm/internal/hugr"
	"hugrllvm/internal/lower"
	"hugrllvm/internal/observ"
	"hugrllvm/internal/trace"
	"hugrllvm/internal/verify"
)

// CompileRequest configures the pipeline for one graph-IR file.
type CompileRequest struct {
	Path string
	// Display labels progress events and timings; Path when empty.
	Display  string
	Registry *lower.Registry
	// Options are passed to lower.EmitModule. An empty ModuleName is
	// replaced by the file's base name.
	Options lower.Options
	Verify  bool
	// OutputPath receives the textual IR; nothing is written when empty.
	OutputPath string
	Progress   ProgressSink
	Timer      *observ.Timer
}

// CompileResult captures the artefacts and stage timings of one file.
type CompileResult struct {
	Graph   *hugr.Hugr
	Module  *ir.Module
	Timings Timings
}

// Compile loads, validates, lowers and verifies one file, then writes its
// IR when an output path is set. It stops at the first failing stage.
func Compile(ctx context.Context, req *CompileRequest) (CompileResult, error) {
	var result CompileResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing compile request")
	}
	if req.Path == "" {
		return result, fmt.Errorf("missing input path")
	}
	if req.Registry == nil {
		return result, fmt.Errorf("missing lowering registry")
	}
	r := &compileRun{req: req, result: &result, label: req.Display}
	if r.label == "" {
		r.label = req.Path
	}
	opts := req.Options
	if opts.ModuleName == "" {
		opts.ModuleName = ModuleName(req.Path)
	}

	span, ctx := trace.StartSpan(ctx, trace.ScopePass, "compile:"+r.label)

	err := r.stage(ctx, StageLoad, func() (string, error) {
		h, err := hugr.Load(req.Path)
		if err != nil {
			return "", err
		}
		result.Graph = h
		return fmt.Sprintf("%d nodes", h.NumNodes()), nil
	})
	if err == nil {
		err = r.stage(ctx, StageValidate, func() (string, error) {
			return "", hugr.Validate(result.Graph)
		})
	}
	if err == nil {
		err = r.stage(ctx, StageLower, func() (string, error) {
			m, err := lower.EmitModule(ctx, result.Graph, req.Registry, opts)
			if err != nil {
				return "", err
			}
			result.Module = m
			return fmt.Sprintf("%d functions", len(m.Funcs)), nil
		})
	}
	if err == nil && req.Verify {
		err = r.stage(ctx, StageVerify, func() (string, error) {
			return "", verify.Module(result.Module)
		})
	}
	if err == nil && req.OutputPath != "" {
		err = r.stage(ctx, StageWrite, func() (string, error) {
			return req.OutputPath, WriteIR(req.OutputPath, result.Module)
		})
	}

	if err != nil {
		span.End(err.Error())
		return result, fmt.Errorf("%s: %w", r.label, err)
	}
	span.End("")
	emitFile(req.Progress, r.label, r.last, StatusDone, nil, result.Timings.Sum())
	return result, nil
}

type compileRun struct {
	req    *CompileRequest
	result *CompileResult
	label  string
	last   Stage
}

// stage runs fn as one pipeline stage, reporting progress and timing.
func (r *compileRun) stage(ctx context.Context, stage Stage, fn func() (string, error)) error {
	if err := ctx.Err(); err != nil {
		emitFile(r.req.Progress, r.label, stage, StatusError, err, 0)
		return err
	}
	r.last = stage
	emitFile(r.req.Progress, r.label, stage, StatusWorking, nil, 0)
	end := r.req.Timer.Track(r.label + "/" + string(stage))
	start := time.Now()
	note, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		note = "failed"
	}
	end(note)
	r.result.Timings.Set(stage, elapsed)
	if err != nil {
		err = fmt.Errorf("%s: %w", stage, err)
		emitFile(r.req.Progress, r.label, stage, StatusError, err, elapsed)
		return err
	}
	return nil
}

// ModuleName derives a module name from a file path: the base name with
// its extension removed.
func ModuleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WriteIR writes the module's textual form, creating parent directories.
func WriteIR(path string, m *ir.Module) error {
	if m == nil {
		return fmt.Errorf("no module to write")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(m.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageLoad, Status: StatusQueued})
	}
}

func emitFile(sink ProgressSink, file string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func emitOverall(sink ProgressSink, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
