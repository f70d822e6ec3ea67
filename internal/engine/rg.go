package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/yourorg/seekd/internal/logging"
	"github.com/yourorg/seekd/internal/mask"
	"github.com/yourorg/seekd/internal/query"
)

// RipgrepPathEnv overrides the executable lookup entirely; it is always the
// first candidate tried. Intended for diagnostics and tests.
const RipgrepPathEnv = "SEEKD_RG_PATH"

// spawnError marks a candidate that failed to start for a reason the next
// candidate might not share: missing file, wrong executable format, or
// permission denied.
type spawnError struct {
	path string
	err  error
}

func (e *spawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.path, e.err)
}

func (e *spawnError) Unwrap() error { return e.err }

func retryableSpawn(err error) bool {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT, syscall.ENOTDIR, syscall.ENOEXEC, syscall.EACCES, syscall.EPERM:
			return true
		}
	}
	return false
}

// rgCandidates builds the ordered executable candidate list: env override,
// configured path, a sibling binary next to this executable, then a bare
// name resolved through PATH. Deduplicated, order preserved.
func (e *Engine) rgCandidates() []string {
	binName := "rg"
	if runtime.GOOS == "windows" {
		binName = "rg.exe"
	}

	var candidates []string
	if p := os.Getenv(RipgrepPathEnv); p != "" {
		candidates = append(candidates, p)
	}
	if e.cfg.RipgrepPath != "" {
		candidates = append(candidates, e.cfg.RipgrepPath)
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), binName))
	}
	candidates = append(candidates, "rg")

	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// buildRgArgs translates the compiled rule, mask and request into the
// process argument vector.
func (e *Engine) buildRgArgs(rule *query.Rule, fileMask *mask.Mask, req SearchRequest, roots []RootSpec) []string {
	args := []string{"--json", "--no-config"}
	if !rule.Regex {
		args = append(args, "--fixed-strings")
	}
	if !rule.MatchCase {
		args = append(args, "--ignore-case")
	}
	if rule.WholeWord {
		args = append(args, "--word-regexp")
	}
	if rule.Multiline {
		// Never --multiline-dotall: only explicit newline tokens in the
		// query may span lines.
		args = append(args, "--multiline")
	}
	if req.SmartExcludes {
		for _, dir := range e.cfg.ExcludeDirs {
			args = append(args, "--glob", "!**/"+dir+"/**")
		}
	} else {
		args = append(args, "--no-ignore")
	}
	for _, tok := range fileMask.Tokens() {
		g := tok.Glob()
		if tok.Negate {
			g = "!" + g
		}
		args = append(args, "--iglob", g)
	}
	args = append(args, "-e", rule.Pattern, "--")
	for _, root := range roots {
		args = append(args, root.FSPath)
	}
	return args
}

// runRipgrep tries each executable candidate in order, skipping ones that
// fail to start for a retryable reason. Exhausting the list is the signal
// for the caller to fall back to the in-process walker.
func (e *Engine) runRipgrep(ctx context.Context, rule *query.Rule, fileMask *mask.Mask, req SearchRequest, roots []RootSpec) ([]SearchResult, error) {
	args := e.buildRgArgs(rule, fileMask, req, roots)

	var attempts []string
	for _, cand := range e.rgCandidates() {
		// Explicit paths get a cheap existence pre-check; a bare name is
		// left for PATH resolution at spawn time.
		if strings.ContainsRune(cand, os.PathSeparator) {
			info, err := os.Stat(cand)
			if err != nil || info.IsDir() {
				attempts = append(attempts, fmt.Sprintf("%s: not a file", cand))
				continue
			}
		}

		e.logger.Debug("spawning search process",
			logging.String("path", cand), logging.Int("args", len(args)))
		results, err := e.execRipgrep(ctx, cand, args, req.MaxResults)
		if err == nil {
			return results, nil
		}
		var se *spawnError
		if errors.As(err, &se) {
			e.ops.Warnf(OpSpawn, cand, "candidate failed: %v", se.err)
			attempts = append(attempts, se.Error())
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("no usable search executable: %s", strings.Join(attempts, "; "))
}

// rgEvent is one newline-delimited JSON record on the process stdout. Only
// "match" records are consumed; everything else is skipped silently.
type rgEvent struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber int `json:"line_number"`
		Submatches []struct {
			Start int `json:"start"`
			End   int `json:"end"`
		} `json:"submatches"`
	} `json:"data"`
}

func (e *Engine) execRipgrep(ctx context.Context, path string, args []string, maxResults int) ([]SearchResult, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		if retryableSpawn(err) {
			return nil, &spawnError{path: path, err: err}
		}
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	var results []SearchResult
	capped := false

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
scan:
	for sc.Scan() {
		var ev rgEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue // malformed lines are not an error
		}
		if ev.Type != "match" || len(ev.Data.Submatches) == 0 {
			continue
		}

		// Multiline matches report the full matched block; the preview is
		// its first line.
		lineText := ev.Data.Lines.Text
		if i := strings.IndexByte(lineText, '\n'); i >= 0 {
			lineText = lineText[:i+1]
		}
		ranges := make([]MatchRange, len(ev.Data.Submatches))
		for i, sm := range ev.Data.Submatches {
			ranges[i] = MatchRange{Start: sm.Start, End: sm.End}
		}

		for _, r := range buildLineResults(e.ws, ev.Data.Path.Text, lineText, ev.Data.LineNumber-1, ranges) {
			results = append(results, r)
			if len(results) >= maxResults {
				capped = true
				break scan
			}
		}
	}

	scanErr := sc.Err()
	if capped || scanErr != nil {
		// Early termination: the child may be blocked writing to the full
		// pipe, so it must die before Wait can reap it.
		_ = cmd.Process.Kill()
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if scanErr != nil {
		// An oversized or broken stdout line ends the stream; everything
		// parsed up to it stands.
		e.logger.Warn("search process stream truncated", logging.Error(scanErr))
		e.ops.Warnf(OpSpawn, path, "output stream truncated: %v", scanErr)
		return results, nil
	}
	if capped {
		return results, nil
	}
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) && ee.ExitCode() == 1 {
			// Exit 1 means "no matches": a clean run.
			return results, nil
		}
		return nil, fmt.Errorf("search process failed: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	return results, nil
}
