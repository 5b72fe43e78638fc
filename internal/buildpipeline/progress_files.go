package buildpipeline

import (
	"path/filepath"
	"strings"
)

// DisplayPaths returns one display label per file, in input order:
// slash-separated and relative to baseDir when the file lies under it.
func DisplayPaths(files []string, baseDir string) []string {
	base := strings.TrimSpace(baseDir)
	if base != "" {
		if abs, err := filepath.Abs(base); err == nil {
			base = abs
		}
	}
	labels := make([]string, len(files))
	for i, file := range files {
		labels[i] = displayPath(file, base)
	}
	return labels
}

func displayPath(file, base string) string {
	path := filepath.Clean(file)
	if base != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if rel, err := filepath.Rel(base, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}
