package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/seekd/internal/logging"
)

func newTestWorkspace(t *testing.T, roots ...string) *Workspace {
	t.Helper()
	ws := New(logging.NewNop())
	if len(roots) > 0 {
		require.NoError(t, ws.SetRoots(roots))
	}
	return ws
}

func TestOverlayWinsOverDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("disk content"), 0o644))

	ws := newTestWorkspace(t, dir)

	data, err := ws.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "disk content", string(data))

	ws.OpenDocument(path, "edited content")
	data, err = ws.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited content", string(data))

	info, err := ws.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len("edited content")), info.Size)

	ws.CloseDocument(path)
	data, err = ws.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "disk content", string(data))
}

func TestApplyEditOnlyTouchesOpenDocuments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	ws := newTestWorkspace(t, dir)
	ws.ApplyEdit(path, "in-memory only")

	data, err := ws.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data), "closed documents are not editable in memory")

	ws.OpenDocument(path, "original")
	ws.ApplyEdit(path, "in-memory only")
	data, err = ws.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "in-memory only", string(data))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(onDisk), "ApplyEdit never writes to disk")
}

func TestSaveWritesDiskAndSyncsOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	ws := newTestWorkspace(t, dir)
	ws.OpenDocument(path, "old")
	require.NoError(t, ws.Save(path, "new"))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(onDisk))

	data, err := ws.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestContainsPath(t *testing.T) {
	root := t.TempDir()
	ws := newTestWorkspace(t, root)

	assert.True(t, ws.ContainsPath(root))
	assert.True(t, ws.ContainsPath(filepath.Join(root, "sub", "file.go")))
	assert.False(t, ws.ContainsPath(filepath.Join(root, "..", "outside.go")))

	// A sibling whose name shares a prefix with the root is outside.
	assert.False(t, ws.ContainsPath(root+"extra"))
}

func TestContainsPath_NoRoots(t *testing.T) {
	ws := newTestWorkspace(t)
	assert.True(t, ws.ContainsPath("/anywhere/at/all"))
	assert.False(t, ws.HasRoots())
}

func TestRelativePath(t *testing.T) {
	root := t.TempDir()
	ws := newTestWorkspace(t, root)

	inside := filepath.Join(root, "pkg", "main.go")
	assert.Equal(t, "pkg/main.go", ws.RelativePath(inside))

	outside := filepath.Join(t.TempDir(), "other.go")
	assert.Equal(t, "other.go", ws.RelativePath(outside), "outside paths fall back to the base name")
}

func TestSetRootsDedupes(t *testing.T) {
	root := t.TempDir()
	ws := newTestWorkspace(t, root, root, root+string(filepath.Separator))
	assert.Len(t, ws.Roots(), 1)
}

func TestOpenDocumentsSnapshot(t *testing.T) {
	dir := t.TempDir()
	ws := newTestWorkspace(t, dir)
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	ws.OpenDocument(b, "b")
	ws.OpenDocument(a, "a")
	assert.Equal(t, []string{a, b}, ws.OpenDocuments())
}
