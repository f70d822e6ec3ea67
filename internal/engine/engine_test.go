package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/seekd/internal/config"
	"github.com/yourorg/seekd/internal/logging"
	"github.com/yourorg/seekd/internal/query"
	"github.com/yourorg/seekd/internal/workspace"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxResults:        10000,
		WalkerConcurrency: 8,
		MaxFileSize:       1 << 20,
		ExcludeDirs:       []string{".git", "node_modules", "vendor"},
		BinaryExtensions:  []string{".png", ".bin"},
	}
}

func newTestEngine(t *testing.T, roots ...string) *Engine {
	t.Helper()
	ws := workspace.New(logging.NewNop())
	if len(roots) > 0 {
		require.NoError(t, ws.SetRoots(roots))
	}
	return New(testConfig(), ws, logging.NewNop())
}

// forceWalker makes every external-process candidate fail to spawn so Search
// deterministically exercises the fallback path.
func forceWalker(t *testing.T) {
	t.Helper()
	t.Setenv(RipgrepPathEnv, "")
	t.Setenv("PATH", filepath.Join(t.TempDir(), "no-binaries-here"))
}

// writeTree materializes rel path -> content under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func sortResults(rs []SearchResult) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].RelativePath != rs[j].RelativePath {
			return rs[i].RelativePath < rs[j].RelativePath
		}
		if rs[i].Line != rs[j].Line {
			return rs[i].Line < rs[j].Line
		}
		return rs[i].Character < rs[j].Character
	})
}

func TestSearch_SingleMatch(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app.go":    "package app\n\tneedleUnique here\n",
		"src/other.go":  "package app\nnothing to see\n",
		"docs/notes.md": "plain text\n",
	})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(), NewSearchRequest("needleUnique", query.Options{}))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "src/app.go", r.RelativePath)
	assert.Equal(t, "app.go", r.FileName)
	assert.Equal(t, 1, r.Line)
	assert.Equal(t, 1, r.Character, "character indexes the raw line, before trimming")
	assert.Equal(t, len("needleUnique"), r.Length)
	assert.Equal(t, "needleUnique here", r.Preview, "leading whitespace is trimmed from the preview")
	assert.Equal(t, MatchRange{Start: 0, End: len("needleUnique")}, r.PreviewMatchRange)
	require.Len(t, r.PreviewMatchRanges, 1)
}

func TestSearch_CaseSensitivity(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "Token here\ntoken there\nTOKEN everywhere\n",
	})
	eng := newTestEngine(t, root)

	insensitive, err := eng.Search(context.Background(),
		NewSearchRequest("token", query.Options{}))
	require.NoError(t, err)
	assert.Len(t, insensitive, 3)

	sensitive, err := eng.Search(context.Background(),
		NewSearchRequest("token", query.Options{MatchCase: true}))
	require.NoError(t, err)
	require.Len(t, sensitive, 1)
	assert.Equal(t, 1, sensitive[0].Line)
}

func TestSearch_FileMask(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":      "shared needle\n",
		"main_test.go": "shared needle\n",
		"readme.md":    "shared needle\n",
	})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(),
		NewSearchRequest("shared needle", query.Options{FileMask: "*.go,!*_test.go"}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "main.go", results[0].RelativePath)
}

func TestSearch_SmartExcludes(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app.js":                  "needle in source\n",
		"node_modules/dep/idx.js": "needle in dependency\n",
	})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(), NewSearchRequest("needle", query.Options{}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "app.js", results[0].RelativePath)

	req := NewSearchRequest("needle", query.Options{})
	req.SmartExcludes = false
	results, err = eng.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_GitignoreRespected(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":     "generated/\n*.log\n",
		"src/main.go":    "needle\n",
		"generated/g.go": "needle\n",
		"run.log":        "needle\n",
	})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(), NewSearchRequest("needle", query.Options{}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "src/main.go", results[0].RelativePath)
}

func TestSearch_Multiline(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "alpha\n\nbeta\nrest\n",
		"b.txt": "alpha beta\n",
	})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(),
		NewSearchRequest("alpha\n\nbeta", query.Options{Multiline: true}))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "a.txt", r.RelativePath)
	assert.Equal(t, 0, r.Line)
	assert.Equal(t, 0, r.Character)
	assert.Equal(t, len("alpha\n\nbeta"), r.Length, "length spans the whole match")
	assert.Equal(t, "alpha", r.Preview, "preview is the first matched line")

	// A mismatched blank-line count finds nothing: the newline tokens are
	// exact, never elastic.
	results, err = eng.Search(context.Background(),
		NewSearchRequest("alpha\n\n\nbeta", query.Options{Multiline: true}))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_MultipleMatchesPerLine(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "dup one dup two dup\n",
	})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(),
		NewSearchRequest("dup", query.Options{MatchCase: true}))
	require.NoError(t, err)
	require.Len(t, results, 3, "one result per occurrence")

	sortResults(results)
	assert.Equal(t, 0, results[0].Character)
	assert.Equal(t, 8, results[1].Character)
	assert.Equal(t, 16, results[2].Character)
	for _, r := range results {
		assert.Len(t, r.PreviewMatchRanges, 3, "every result carries all ranges of its line")
	}
}

func TestSearch_ResultCap(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	content := ""
	for i := 0; i < 50; i++ {
		content += "capme\n"
	}
	writeTree(t, root, map[string]string{"a.txt": content})
	eng := newTestEngine(t, root)

	req := NewSearchRequest("capme", query.Options{})
	req.MaxResults = 7
	results, err := eng.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, results, 7)
}

func TestSearch_ShortQueryIsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "x\n"})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(), NewSearchRequest(" x ", query.Options{}))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_UnsafePatternIsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(),
		NewSearchRequest("(a+)+", query.Options{UseRegex: true}))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_MaskMatchingNothing(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "needle\n"})
	eng := newTestEngine(t, root)

	results, err := eng.Search(context.Background(),
		NewSearchRequest("needle", query.Options{FileMask: "*.nope"}))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_NoRootsIsEmpty(t *testing.T) {
	eng := newTestEngine(t)
	results, err := eng.Search(context.Background(), NewSearchRequest("needle", query.Options{}))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_MissingDirectoryRootIsEmpty(t *testing.T) {
	eng := newTestEngine(t, t.TempDir())
	req := NewSearchRequest("needle", query.Options{})
	req.Scope = ScopeDirectory
	req.DirectoryPath = filepath.Join(t.TempDir(), "vanished")
	results, err := eng.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_FileScope(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "needle\n",
		"b.txt": "needle\n",
	})
	eng := newTestEngine(t, root)

	req := NewSearchRequest("needle", query.Options{})
	req.Scope = ScopeFile
	req.FilePath = filepath.Join(root, "a.txt")
	results, err := eng.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt", results[0].RelativePath)
}

func TestSearch_OverlayContentWins(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "old text\n"})
	eng := newTestEngine(t, root)

	path := filepath.Join(root, "a.txt")
	eng.Workspace().OpenDocument(path, "fresh needle\n")

	results, err := eng.Search(context.Background(), NewSearchRequest("needle", query.Options{}))
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = eng.Search(context.Background(), NewSearchRequest("old text", query.Options{}))
	require.NoError(t, err)
	assert.Empty(t, results, "overlay replaces disk content for open documents")
}

func TestSearch_SkipsBinaryAndOversizeFiles(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"img.png": "needle\n",
		"ok.txt":  "needle\n",
	})
	eng := newTestEngine(t, root)
	eng.cfg.MaxFileSize = 4 // ok.txt is larger than this

	results, err := eng.Search(context.Background(), NewSearchRequest("needle", query.Options{}))
	require.NoError(t, err)
	assert.Empty(t, results)

	eng.cfg.MaxFileSize = 1 << 20
	results, err = eng.Search(context.Background(), NewSearchRequest("needle", query.Options{}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok.txt", results[0].RelativePath)
}

func TestCancelWithoutActiveSearch(t *testing.T) {
	eng := newTestEngine(t, t.TempDir())
	eng.Cancel() // must not panic or wedge the next search

	forceWalker(t)
	writeTree(t, eng.ws.Roots()[0], map[string]string{"a.txt": "needle\n"})
	results, err := eng.Search(context.Background(), NewSearchRequest("needle", query.Options{}))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_CancelledContext(t *testing.T) {
	forceWalker(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "needle\n"})
	eng := newTestEngine(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Search(ctx, NewSearchRequest("needle", query.Options{}))
	assert.ErrorIs(t, err, context.Canceled)
}
