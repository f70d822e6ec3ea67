package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/seekd/internal/query"
)

func TestResolveRoots_ProjectScope(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	eng := newTestEngine(t, a, b)

	roots := eng.resolveRoots(NewSearchRequest("x", query.Options{}))
	require.Len(t, roots, 2)
	for _, r := range roots {
		assert.Equal(t, RootDirectory, r.Kind)
	}
}

func TestResolveRoots_MissingPathSkipped(t *testing.T) {
	a := t.TempDir()
	eng := newTestEngine(t, a, filepath.Join(a, "gone"))

	roots := eng.resolveRoots(NewSearchRequest("x", query.Options{}))
	require.Len(t, roots, 1)
	assert.Equal(t, a, roots[0].FSPath)
}

func TestResolveRoots_ProjectScopeRejectsFiles(t *testing.T) {
	a := t.TempDir()
	file := filepath.Join(a, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	eng := newTestEngine(t, file)

	roots := eng.resolveRoots(NewSearchRequest("x", query.Options{}))
	assert.Empty(t, roots, "project roots must be directories")
}

func TestResolveRoots_FileScope(t *testing.T) {
	a := t.TempDir()
	file := filepath.Join(a, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	eng := newTestEngine(t, a)

	req := NewSearchRequest("x", query.Options{})
	req.Scope = ScopeFile
	req.FilePath = file
	roots := eng.resolveRoots(req)
	require.Len(t, roots, 1)
	assert.Equal(t, RootFile, roots[0].Kind)
	assert.Equal(t, file, roots[0].FSPath)
}

func TestResolveRoots_Dedupe(t *testing.T) {
	a := t.TempDir()
	eng := newTestEngine(t, a, a+string(filepath.Separator), filepath.Join(a, ".")+"")

	roots := eng.resolveRoots(NewSearchRequest("x", query.Options{}))
	assert.Len(t, roots, 1)
}

func TestFilterByRoots(t *testing.T) {
	dirRoot := RootSpec{FSPath: filepath.FromSlash("/work/proj"), Kind: RootDirectory}
	fileRoot := RootSpec{FSPath: filepath.FromSlash("/work/single.txt"), Kind: RootFile}

	mk := func(p string) SearchResult {
		return SearchResult{URI: "file://" + p}
	}

	results := []SearchResult{
		mk("/work/proj/a.go"),
		mk("/work/proj/deep/b.go"),
		mk("/work/projextra/c.go"), // shares a name prefix, not inside
		mk("/work/single.txt"),
		mk("/work/other.txt"),
		mk("/elsewhere/d.go"),
	}

	kept := filterByRoots(results, []RootSpec{dirRoot, fileRoot})
	var uris []string
	for _, r := range kept {
		uris = append(uris, r.URI)
	}
	assert.Equal(t, []string{
		"file:///work/proj/a.go",
		"file:///work/proj/deep/b.go",
		"file:///work/single.txt",
	}, uris)
}

func TestFilterByRoots_NoRootsDropsEverything(t *testing.T) {
	results := []SearchResult{{URI: "file:///a"}}
	assert.Empty(t, filterByRoots(results, nil))
}
