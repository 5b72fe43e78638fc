// Package buildpipeline lowers graph-IR files to textual LLVM IR, several
// files at a time, reporting progress per file and stage.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"hugrllvm/internal/lower"
	"hugrllvm/internal/observ"
)

// BuildRequest configures a build over several input files.
type BuildRequest struct {
	Files []string
	// BaseDir shortens file labels in progress and timings.
	BaseDir string
	// OutDir receives <name>.ll per input; next to the input when empty.
	OutDir   string
	Jobs     int
	Registry *lower.Registry
	Options  lower.Options
	Verify   bool
	Progress ProgressSink
	Timer    *observ.Timer
}

// FileResult is the outcome for one input.
type FileResult struct {
	Path       string
	Display    string
	OutputPath string
	Functions  int
	Timings    Timings
	Err        error
}

// BuildResult lists per-file outcomes in input order.
type BuildResult struct {
	Files   []FileResult
	Elapsed time.Duration
}

// Failed counts files that did not build.
func (r BuildResult) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Build compiles every file independently. A failing file does not stop
// the others; the returned error joins every per-file error. Cancelling ctx
// stops files that have not started.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	if len(req.Files) == 0 {
		return result, fmt.Errorf("no input files")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := checkOutputCollisions(req); err != nil {
		return result, err
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	labels := DisplayPaths(req.Files, req.BaseDir)
	emitQueued(req.Progress, labels)
	emitOverall(req.Progress, StageLower, StatusWorking, nil, 0)

	start := time.Now()
	result.Files = make([]FileResult, len(req.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(req.Files)))
	for i, path := range req.Files {
		g.Go(func() error {
			fr := FileResult{Path: path, Display: labels[i], OutputPath: outputPath(req.OutDir, path)}
			res, err := Compile(gctx, &CompileRequest{
				Path:       path,
				Display:    labels[i],
				Registry:   req.Registry,
				Options:    req.Options,
				Verify:     req.Verify,
				OutputPath: fr.OutputPath,
				Progress:   req.Progress,
				Timer:      req.Timer,
			})
			fr.Timings = res.Timings
			fr.Err = err
			if res.Module != nil {
				fr.Functions = len(res.Module.Funcs)
			}
			result.Files[i] = fr
			// Per-file failures are reported, not propagated: only
			// cancellation should stop the group.
			return ctx.Err()
		})
	}
	waitErr := g.Wait()
	result.Elapsed = time.Since(start)

	var errs []error
	for _, f := range result.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	if waitErr != nil && len(errs) == 0 {
		errs = append(errs, waitErr)
	}
	err := errors.Join(errs...)
	status := StatusDone
	if err != nil {
		status = StatusError
	}
	emitOverall(req.Progress, StageWrite, status, err, result.Elapsed)
	return result, err
}

func outputPath(outDir, input string) string {
	name := ModuleName(input) + ".ll"
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	return filepath.Join(outDir, name)
}

// checkOutputCollisions rejects inputs that would write the same .ll file.
func checkOutputCollisions(req *BuildRequest) error {
	seen := make(map[string]string, len(req.Files))
	var errs []error
	for _, path := range req.Files {
		out := filepath.Clean(outputPath(req.OutDir, path))
		if prev, ok := seen[out]; ok {
			errs = append(errs, fmt.Errorf("%s and %s both write %s", prev, path, out))
			continue
		}
		seen[out] = path
	}
	return errors.Join(errs...)
}
