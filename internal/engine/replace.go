package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/seekd/internal/logging"
)

// SecurityError reports a refused write outside the workspace boundary.
type SecurityError struct {
	Path string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("refusing to modify %s: outside workspace roots", e.Path)
}

// checkBoundary enforces the workspace write boundary. With no roots
// configured there is no boundary, so every path passes.
func (e *Engine) checkBoundary(path string) error {
	if !e.ws.HasRoots() {
		return nil
	}
	if !e.ws.ContainsPath(path) {
		e.ops.Errorf(OpReplace, path, "write outside workspace refused")
		return &SecurityError{Path: path}
	}
	return nil
}

// spliceAt replaces length bytes at (line, character) in content. The
// coordinates come from SearchResult, so length may span line breaks for
// multiline matches.
func spliceAt(content string, line, character, length int, replacement string) (string, error) {
	if line < 0 || character < 0 || length < 0 {
		return "", fmt.Errorf("invalid edit coordinates %d:%d+%d", line, character, length)
	}
	start := 0
	for i := 0; i < line; i++ {
		next := strings.IndexByte(content[start:], '\n')
		if next < 0 {
			return "", fmt.Errorf("line %d out of range", line)
		}
		start += next + 1
	}
	pos := start + character
	if pos > len(content) || pos+length > len(content) {
		return "", fmt.Errorf("edit %d:%d+%d out of range", line, character, length)
	}
	return content[:pos] + replacement + content[pos+length:], nil
}

// ReplaceOne applies a single replacement at a previously reported match
// location. The edit goes through the overlay (when the document is open)
// and is persisted to disk.
func (e *Engine) ReplaceOne(ctx context.Context, uri string, line, character, length int, replacement string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := uriToPath(uri)
	if err := e.checkBoundary(path); err != nil {
		return err
	}

	data, err := e.ws.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	edited, err := spliceAt(string(data), line, character, length, replacement)
	if err != nil {
		return fmt.Errorf("replace in %s: %w", path, err)
	}

	e.ws.ApplyEdit(path, edited)
	if err := e.ws.Save(path, edited); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	e.ops.Infof(OpReplace, path, "replaced 1 occurrence at %d:%d", line, character)
	return nil
}

// ReplaceAll re-runs the search and replaces every reported occurrence.
// All target files are boundary-checked before any write happens, edits are
// staged per file bottom-up so coordinates stay valid, and a failed save of
// one file does not abort the rest. refresh, when non-nil, runs exactly once
// after the writes.
func (e *Engine) ReplaceAll(ctx context.Context, req SearchRequest, replacement string, refresh func()) (int, error) {
	start := time.Now()
	results, err := e.Search(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}

	byFile := make(map[string][]SearchResult)
	var order []string
	for _, r := range results {
		path := uriToPath(r.URI)
		if err := e.checkBoundary(path); err != nil {
			return 0, err
		}
		if _, ok := byFile[path]; !ok {
			order = append(order, path)
		}
		byFile[path] = append(byFile[path], r)
	}

	// Stage every file's new content before touching the first one.
	staged := make(map[string]string, len(byFile))
	counts := make(map[string]int, len(byFile))
	for _, path := range order {
		occ := byFile[path]
		sort.Slice(occ, func(i, j int) bool {
			if occ[i].Line != occ[j].Line {
				return occ[i].Line > occ[j].Line
			}
			return occ[i].Character > occ[j].Character
		})

		data, err := e.ws.ReadFile(path)
		if err != nil {
			e.logger.Warn("replace all: skipping unreadable file",
				logging.String("path", path), logging.Error(err))
			continue
		}
		content := string(data)
		applied := 0
		for _, r := range occ {
			next, err := spliceAt(content, r.Line, r.Character, r.Length, replacement)
			if err != nil {
				// Stale coordinates for this occurrence; the rest of the
				// file's edits still apply.
				e.logger.Warn("replace all: skipping stale occurrence",
					logging.String("path", path),
					logging.Int("line", r.Line), logging.Error(err))
				continue
			}
			content = next
			applied++
		}
		if applied > 0 {
			staged[path] = content
			counts[path] = applied
		}
	}

	replaced := 0
	for _, path := range order {
		content, ok := staged[path]
		if !ok {
			continue
		}
		e.ws.ApplyEdit(path, content)
		if err := e.ws.Save(path, content); err != nil {
			e.logger.Error("replace all: save failed",
				logging.String("path", path), logging.Error(err))
			e.ops.Errorf(OpReplace, path, "save failed: %v", err)
			continue
		}
		replaced += counts[path]
	}

	if refresh != nil {
		refresh()
	}
	e.ops.LogWithCount(OpReplace, req.Query,
		fmt.Sprintf("replaced %d occurrences in %d files", replaced, len(staged)),
		time.Since(start), replaced)
	e.logger.Info("replace all completed",
		logging.String("query", req.Query),
		logging.Int("replaced", replaced),
		logging.Int("files", len(staged)),
	)
	return replaced, nil
}
