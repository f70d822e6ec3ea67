package engine

import (
	"path/filepath"

	"github.com/yourorg/seekd/internal/logging"
	"github.com/yourorg/seekd/internal/workspace"
)

// Scope restricts a search to a subset of the filesystem.
type Scope string

const (
	ScopeProject   Scope = "project"
	ScopeDirectory Scope = "directory"
	ScopeModule    Scope = "module"
	ScopeFile      Scope = "file"
)

// RootKind classifies a resolved search root.
type RootKind int

const (
	RootFile RootKind = iota
	RootDirectory
)

// RootSpec is one concrete filesystem root bounding a search. Read-only
// after resolution.
type RootSpec struct {
	FSPath string
	Kind   RootKind
}

// resolveRoots turns the request scope into existence-checked, deduplicated
// roots. Missing paths yield fewer roots, never an error: a search against a
// vanished directory is a successful empty search.
func (e *Engine) resolveRoots(req SearchRequest) []RootSpec {
	var candidates []string
	switch req.Scope {
	case ScopeDirectory:
		candidates = []string{req.DirectoryPath}
	case ScopeModule:
		candidates = []string{req.ModulePath}
	case ScopeFile:
		candidates = []string{req.FilePath}
	default: // ScopeProject
		candidates = e.ws.Roots()
	}

	seen := make(map[string]struct{}, len(candidates))
	roots := make([]RootSpec, 0, len(candidates))
	for _, p := range candidates {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		abs = filepath.Clean(abs)
		if _, ok := seen[abs]; ok {
			continue
		}
		info, err := e.ws.Stat(abs)
		if err != nil {
			e.logger.Debug("search root unavailable", logging.String("path", abs), logging.Error(err))
			continue
		}
		kind := RootDirectory
		if info.Kind == workspace.KindFile {
			kind = RootFile
		}
		if req.Scope == ScopeProject && kind != RootDirectory {
			continue
		}
		seen[abs] = struct{}{}
		roots = append(roots, RootSpec{FSPath: abs, Kind: kind})
	}
	return roots
}
