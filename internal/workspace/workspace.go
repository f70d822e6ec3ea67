// Package workspace is the filesystem collaborator the search engine runs
// against: the set of workspace roots, basic stat/read/list operations, and
// the overlay of currently open in-memory documents whose text takes
// precedence over on-disk content.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yourorg/seekd/internal/logging"
)

// EntryKind classifies a directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

// FileInfo is the subset of stat data the engine needs.
type FileInfo struct {
	Kind EntryKind
	Size int64
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name string
	Kind EntryKind
}

// Workspace owns the root set and the open-document overlay.
type Workspace struct {
	logger *logging.Logger

	mu      sync.RWMutex
	roots   []string          // absolute, cleaned, insertion order
	overlay map[string]string // abs path -> in-memory text

	watcher *watcher
}

func New(logger *logging.Logger) *Workspace {
	return &Workspace{
		logger:  logger,
		overlay: make(map[string]string),
	}
}

// SetRoots replaces the workspace root set. Paths are made absolute;
// duplicates are dropped.
func (w *Workspace) SetRoots(paths []string) error {
	cleaned := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve root %s: %w", p, err)
		}
		abs = filepath.Clean(abs)
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		cleaned = append(cleaned, abs)
	}

	w.mu.Lock()
	w.roots = cleaned
	w.mu.Unlock()
	return nil
}

// Roots returns the workspace roots in registration order.
func (w *Workspace) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.roots))
	copy(out, w.roots)
	return out
}

// Stat resolves kind and size for a path.
func (w *Workspace) Stat(path string) (FileInfo, error) {
	if text, ok := w.overlayText(path); ok {
		return FileInfo{Kind: KindFile, Size: int64(len(text))}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	kind := KindFile
	if info.IsDir() {
		kind = KindDirectory
	}
	return FileInfo{Kind: kind, Size: info.Size()}, nil
}

// ReadDirectory lists a directory, names sorted.
func (w *Workspace) ReadDirectory(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		kind := KindFile
		if e.IsDir() {
			kind = KindDirectory
		}
		out = append(out, DirEntry{Name: e.Name(), Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile returns the current text of a file: the open-document overlay
// wins over the disk copy.
func (w *Workspace) ReadFile(path string) ([]byte, error) {
	if text, ok := w.overlayText(path); ok {
		return []byte(text), nil
	}
	return os.ReadFile(path)
}

// ApplyEdit replaces the full text of a document in memory. If the document
// is open, only the overlay changes; persistence is a separate Save step.
func (w *Workspace) ApplyEdit(path, content string) {
	abs := normalize(path)
	w.mu.Lock()
	if _, ok := w.overlay[abs]; ok {
		w.overlay[abs] = content
	}
	w.mu.Unlock()
}

// Save persists content to disk. Open documents keep their overlay in sync
// so a subsequent in-process search observes the change.
func (w *Workspace) Save(path, content string) error {
	abs := normalize(path)
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return err
	}
	w.mu.Lock()
	if _, ok := w.overlay[abs]; ok {
		w.overlay[abs] = content
	}
	w.mu.Unlock()
	return nil
}

// OpenDocument registers (or refreshes) an in-memory document.
func (w *Workspace) OpenDocument(path, text string) {
	abs := normalize(path)
	w.mu.Lock()
	w.overlay[abs] = text
	w.mu.Unlock()
	if w.watcher != nil {
		w.watcher.track(abs)
	}
}

// CloseDocument drops an in-memory document; disk content is authoritative
// again.
func (w *Workspace) CloseDocument(path string) {
	abs := normalize(path)
	w.mu.Lock()
	delete(w.overlay, abs)
	w.mu.Unlock()
	if w.watcher != nil {
		w.watcher.untrack(abs)
	}
}

// OpenDocuments returns a snapshot of the overlay paths.
func (w *Workspace) OpenDocuments() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.overlay))
	for p := range w.overlay {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (w *Workspace) overlayText(path string) (string, bool) {
	abs := normalize(path)
	w.mu.RLock()
	defer w.mu.RUnlock()
	text, ok := w.overlay[abs]
	return text, ok
}

func (w *Workspace) evict(path string) {
	w.mu.Lock()
	_, ok := w.overlay[path]
	delete(w.overlay, path)
	w.mu.Unlock()
	if ok {
		w.logger.Warn("open document changed on disk, dropping overlay",
			logging.String("path", path))
	}
}

// ContainsPath reports whether a path lies inside any workspace root.
// With no roots configured there is no boundary to enforce.
func (w *Workspace) ContainsPath(path string) bool {
	abs := normalize(path)
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.roots) == 0 {
		return true
	}
	for _, root := range w.roots {
		if pathWithin(root, abs) {
			return true
		}
	}
	return false
}

// HasRoots reports whether any workspace root is configured.
func (w *Workspace) HasRoots() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.roots) > 0
}

// RelativePath renders a path relative to the first workspace root that
// contains it, falling back to the base name.
func (w *Workspace) RelativePath(path string) string {
	abs := normalize(path)
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, root := range w.roots {
		if pathWithin(root, abs) {
			rel, err := filepath.Rel(root, abs)
			if err == nil {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.Base(abs)
}

// pathWithin reports whether child equals root or is nested under it,
// rejecting any ..-escaping relation.
func pathWithin(root, child string) bool {
	if root == child {
		return true
	}
	rel, err := filepath.Rel(root, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}
