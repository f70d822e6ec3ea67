package engine

import (
	"path/filepath"
	"strings"

	"github.com/yourorg/seekd/internal/workspace"
)

// MatchRange is a half-open byte range into the trimmed preview line.
type MatchRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SearchResult is one match location. Both the external-process path and the
// fallback walker construct results through buildLineResults so the two
// paths cannot drift apart.
type SearchResult struct {
	URI          string `json:"uri"`
	FileName     string `json:"file_name"`
	RelativePath string `json:"relative_path"`

	// Line and Character are 0-based; Character and Length index the raw
	// (untrimmed) line so they stay valid as replacement coordinates.
	Line      int `json:"line"`
	Character int `json:"character"`
	Length    int `json:"length"`

	// Preview is the line with leading whitespace removed; the ranges are
	// adjusted accordingly.
	Preview            string       `json:"preview"`
	PreviewMatchRange  MatchRange   `json:"preview_match_range"`
	PreviewMatchRanges []MatchRange `json:"preview_match_ranges"`
}

// trimPreview strips the trailing line break and leading whitespace,
// returning the preview text and the number of leading bytes removed.
func trimPreview(rawLine string) (string, int) {
	line := strings.TrimRight(rawLine, "\r\n")
	off := len(line) - len(strings.TrimLeft(line, " \t"))
	return line[off:], off
}

func fileURI(absPath string) string {
	return "file://" + filepath.ToSlash(absPath)
}

// buildLineResults converts one matching line into results, one per match
// occurrence, left to right. ranges are raw byte offsets into the line.
func buildLineResults(ws *workspace.Workspace, absPath, rawLine string, line0 int, ranges []MatchRange) []SearchResult {
	if len(ranges) == 0 {
		return nil
	}
	preview, off := trimPreview(rawLine)

	shifted := make([]MatchRange, len(ranges))
	for i, r := range ranges {
		s := r.Start - off
		if s < 0 {
			s = 0
		}
		e := r.End - off
		if e < s {
			e = s
		}
		shifted[i] = MatchRange{Start: s, End: e}
	}

	uri := fileURI(absPath)
	name := filepath.Base(absPath)
	rel := ws.RelativePath(absPath)

	out := make([]SearchResult, len(ranges))
	for i, r := range ranges {
		out[i] = SearchResult{
			URI:                uri,
			FileName:           name,
			RelativePath:       rel,
			Line:               line0,
			Character:          r.Start,
			Length:             r.End - r.Start,
			Preview:            preview,
			PreviewMatchRange:  shifted[i],
			PreviewMatchRanges: shifted,
		}
	}
	return out
}
