package engine

import (
	"path/filepath"
	"strings"
)

// filterByRoots drops results whose file lies outside every requested root.
// The external process has its own root handling; this is the engine's final
// word on scope.
func filterByRoots(results []SearchResult, roots []RootSpec) []SearchResult {
	if len(results) == 0 || len(roots) == 0 {
		return nil
	}
	out := results[:0]
	for _, r := range results {
		if resultWithinRoots(uriToPath(r.URI), roots) {
			out = append(out, r)
		}
	}
	return out
}

func resultWithinRoots(path string, roots []RootSpec) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	abs = filepath.Clean(abs)
	for _, root := range roots {
		switch root.Kind {
		case RootFile:
			if abs == root.FSPath {
				return true
			}
		case RootDirectory:
			if abs == root.FSPath {
				return true
			}
			rel, err := filepath.Rel(root.FSPath, abs)
			if err != nil {
				continue
			}
			if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}

func uriToPath(uri string) string {
	return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
}
