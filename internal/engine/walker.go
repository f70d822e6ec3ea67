package engine

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yourorg/seekd/internal/logging"
	"github.com/yourorg/seekd/internal/mask"
	"github.com/yourorg/seekd/internal/query"
	"github.com/yourorg/seekd/internal/workspace"
)

// walker is the in-process search used when no external process can run. It
// approximates the process path byte for byte: same rule, same mask, same
// result construction.
type walker struct {
	e    *Engine
	rule *query.Rule
	mask *mask.Mask
	req  SearchRequest

	sem    *semaphore.Weighted
	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	excludeDirs map[string]struct{}
	binaryExts  map[string]struct{}
	ignores     map[string]gitignore.Matcher // walk root -> .gitignore matcher

	mu      sync.Mutex
	results []SearchResult
	full    bool
}

// walkSearch runs the fallback path over the resolved roots with bounded
// concurrency. Errors on individual files and directories are swallowed;
// only cancellation propagates.
func (e *Engine) walkSearch(ctx context.Context, rule *query.Rule, fileMask *mask.Mask, req SearchRequest, roots []RootSpec) ([]SearchResult, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := e.cfg.WalkerConcurrency
	if limit <= 0 {
		limit = 100
	}

	w := &walker{
		e:           e,
		rule:        rule,
		mask:        fileMask,
		req:         req,
		sem:         semaphore.NewWeighted(int64(limit)),
		cancel:      cancel,
		excludeDirs: make(map[string]struct{}, len(e.cfg.ExcludeDirs)),
		binaryExts:  make(map[string]struct{}, len(e.cfg.BinaryExtensions)),
		ignores:     make(map[string]gitignore.Matcher, len(roots)),
	}
	for _, d := range e.cfg.ExcludeDirs {
		w.excludeDirs[d] = struct{}{}
	}
	for _, x := range e.cfg.BinaryExtensions {
		w.binaryExts[strings.ToLower(x)] = struct{}{}
	}

	g, gctx := errgroup.WithContext(wctx)
	w.g = g
	w.ctx = gctx

	for _, root := range roots {
		switch root.Kind {
		case RootFile:
			w.submitFile(root.FSPath)
		case RootDirectory:
			if req.SmartExcludes {
				w.ignores[root.FSPath] = loadRootIgnore(root.FSPath)
			}
			w.submitDir(root.FSPath, root.FSPath)
		}
	}

	if err := g.Wait(); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	e.ops.Infof(OpWalk, req.Query, "fallback walk produced %d results", len(w.results))
	return w.results, nil
}

// loadRootIgnore parses the root's .gitignore the way the external process
// honors it by default. A missing or unreadable file means no matcher.
func loadRootIgnore(root string) gitignore.Matcher {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}

func (w *walker) done() bool {
	if w.ctx.Err() != nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.full
}

func (w *walker) ignored(root, path string, isDir bool) bool {
	m := w.ignores[root]
	if m == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return m.Match(strings.Split(filepath.ToSlash(rel), "/"), isDir)
}

// submitDir schedules one directory listing as its own limited task so deep
// trees cannot fan out unbounded.
func (w *walker) submitDir(root, dir string) {
	w.g.Go(func() error {
		if w.done() {
			return nil
		}
		if err := w.sem.Acquire(w.ctx, 1); err != nil {
			return nil
		}
		entries, err := w.e.ws.ReadDirectory(dir)
		w.sem.Release(1)
		if err != nil {
			// Vanished or unreadable directories contribute nothing.
			w.e.logger.Debug("walk: skipping directory", logging.String("dir", dir), logging.Error(err))
			return nil
		}
		for _, entry := range entries {
			if w.done() {
				return nil
			}
			child := filepath.Join(dir, entry.Name)
			if entry.Kind == workspace.KindDirectory {
				if strings.HasPrefix(entry.Name, ".") {
					continue
				}
				if w.req.SmartExcludes {
					if _, skip := w.excludeDirs[entry.Name]; skip {
						continue
					}
					if w.ignored(root, child, true) {
						continue
					}
				}
				w.submitDir(root, child)
				continue
			}
			if w.req.SmartExcludes && w.ignored(root, child, false) {
				continue
			}
			w.submitFile(child)
		}
		return nil
	})
}

// submitFile schedules one per-file search through the limiter. Explicit
// file roots come through here as well, so mask and size rules apply to
// both paths identically.
func (w *walker) submitFile(path string) {
	w.g.Go(func() error {
		if w.done() {
			return nil
		}
		name := filepath.Base(path)
		if !w.mask.Match(name) {
			return nil
		}
		if _, bin := w.binaryExts[strings.ToLower(filepath.Ext(name))]; bin {
			return nil
		}
		if err := w.sem.Acquire(w.ctx, 1); err != nil {
			return nil
		}
		defer w.sem.Release(1)

		info, err := w.e.ws.Stat(path)
		if err != nil || info.Kind != workspace.KindFile {
			return nil
		}
		if w.e.cfg.MaxFileSize > 0 && info.Size > w.e.cfg.MaxFileSize {
			return nil
		}
		data, err := w.e.ws.ReadFile(path)
		if err != nil {
			return nil
		}
		w.searchContent(path, string(data))
		return nil
	})
}

func (w *walker) searchContent(path, content string) {
	if w.rule.Multiline {
		w.searchMultiline(path, content)
		return
	}

	re := w.rule.Matcher()
	lines := strings.Split(content, "\n")
	for i, rawLine := range lines {
		if w.done() {
			return
		}
		line := strings.TrimRight(rawLine, "\r")
		locs := re.FindAllStringIndex(line, -1)
		if locs == nil {
			continue
		}
		ranges := make([]MatchRange, len(locs))
		for j, loc := range locs {
			ranges[j] = MatchRange{Start: loc[0], End: loc[1]}
		}
		if !w.add(buildLineResults(w.e.ws, path, line, i, ranges)) {
			return
		}
	}
}

// searchMultiline matches against the whole content and maps byte offsets
// back to line coordinates. The preview covers the first line of the match;
// Length spans the full match so replacement coordinates stay exact.
func (w *walker) searchMultiline(path, content string) {
	re := w.rule.Matcher()
	locs := re.FindAllStringIndex(content, -1)
	if locs == nil {
		return
	}

	// Line start offsets for offset -> (line, column) mapping.
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}

	for _, loc := range locs {
		if w.done() {
			return
		}
		li := sort.Search(len(starts), func(i int) bool { return starts[i] > loc[0] }) - 1
		lineStart := starts[li]
		lineEnd := len(content)
		if li+1 < len(starts) {
			lineEnd = starts[li+1] - 1
		}
		line := strings.TrimRight(content[lineStart:lineEnd], "\r")

		col := loc[0] - lineStart
		previewEnd := loc[1] - lineStart
		if previewEnd > len(line) {
			previewEnd = len(line)
		}
		rs := buildLineResults(w.e.ws, path, line, li, []MatchRange{{Start: col, End: previewEnd}})
		// The preview range stops at the line break but the replacement
		// length covers the whole match.
		rs[0].Length = loc[1] - loc[0]
		if !w.add(rs) {
			return
		}
	}
}

// add appends results under the cap; reaching it cancels the remaining walk
// and reports false.
func (w *walker) add(rs []SearchResult) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.full {
		return false
	}
	for _, r := range rs {
		w.results = append(w.results, r)
		if len(w.results) >= w.req.MaxResults {
			w.full = true
			w.cancel()
			return false
		}
	}
	return true
}
