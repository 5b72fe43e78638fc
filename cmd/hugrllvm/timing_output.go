package main

import (
	"fmt"
	"io"
	"time"

	"hugrllvm/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	for _, stage := range buildpipeline.Stages {
		if timings.Has(stage) {
			fmt.Fprintf(out, "%-9s %7.2f ms\n", stage, toMillis(timings.Duration(stage)))
		}
	}
	fmt.Fprintf(out, "%-9s %7.2f ms\n", "total", toMillis(timings.Sum()))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
