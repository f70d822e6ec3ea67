// Package query turns a raw search query plus match options into a single
// compiled matching rule shared by the external-process path and the
// in-process fallback path.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Options are the per-request match options. Immutable once a request is made.
type Options struct {
	MatchCase bool   `json:"match_case"`
	WholeWord bool   `json:"whole_word"`
	UseRegex  bool   `json:"use_regex"`
	Multiline bool   `json:"multiline"`
	FileMask  string `json:"file_mask"`
}

var (
	// ErrShortQuery rejects queries shorter than 2 trimmed characters.
	// Callers treat it as "no results", not a failure.
	ErrShortQuery = errors.New("query too short")

	// ErrUnsafePattern rejects regex shapes known to backtrack
	// catastrophically on backtracking engines.
	ErrUnsafePattern = errors.New("pattern rejected: potential catastrophic backtracking")
)

// InvalidPatternError carries the engine's own compile message.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// Rule is a validated, compiled matching rule.
type Rule struct {
	// Pattern is the text handed to the external search process.
	// In literal mode it is the raw query (the process gets --fixed-strings);
	// in regex mode it carries escaping and newline conversion but no
	// word-boundary or case wrapping, which travel as process flags instead.
	Pattern string

	// Regex reports whether Pattern must be interpreted as a regex.
	Regex bool

	MatchCase bool
	WholeWord bool
	Multiline bool

	re *regexp.Regexp
}

// Matcher returns the compiled matcher for the in-process search path.
func (r *Rule) Matcher() *regexp.Regexp { return r.re }

// Shapes that invite catastrophic backtracking. These are heuristics, not a
// complexity bound: the local matcher is RE2 and cannot blow up, but the
// external process may route some patterns through a backtracking fallback,
// so the same queries are rejected on both paths.
var unsafeShapes = []*regexp.Regexp{
	// A quantified group whose body itself ends in a quantifier: (x+)+, (ab*)*
	regexp.MustCompile(`\((?:[^()\\]|\\.)*[*+]\)[*+]`),
	// Stacked bare quantifiers on digits: 1+*, \d+*
	regexp.MustCompile(`(?:\\d|[0-9])[*+][*+]`),
	// A quantified character class under a further quantifier: [a-z]+* or [0-9]*+
	regexp.MustCompile(`\[(?:[^\]\\]|\\.)*\][*+][*+]`),
	// A quantified character class inside a quantified group: ([a-z]+)+
	regexp.MustCompile(`\((?:[^()\\]|\\.)*\[(?:[^\]\\]|\\.)*\][*+](?:[^()\\]|\\.)*\)[*+]`),
}

func isUnsafePattern(pattern string) bool {
	for _, shape := range unsafeShapes {
		if shape.MatchString(pattern) {
			return true
		}
	}
	return false
}

// Compile validates the query against the options and produces a Rule.
// Returned errors are classifications, not user-facing failures: callers map
// every error here to an empty result set.
func Compile(raw string, opts Options) (*Rule, error) {
	if utf8.RuneCountInString(strings.TrimSpace(raw)) < 2 {
		return nil, ErrShortQuery
	}

	rule := &Rule{
		Pattern:   raw,
		Regex:     opts.UseRegex,
		MatchCase: opts.MatchCase,
		WholeWord: opts.WholeWord,
		Multiline: opts.Multiline,
	}

	if opts.UseRegex {
		if isUnsafePattern(raw) {
			return nil, ErrUnsafePattern
		}
		if _, err := regexp.Compile(raw); err != nil {
			return nil, &InvalidPatternError{Pattern: raw, Err: err}
		}
	}

	// The local matcher needs the full wrapping that the external process
	// receives as flags.
	pat := rule.Pattern
	if !opts.UseRegex {
		pat = regexp.QuoteMeta(pat)
	}

	if opts.Multiline && strings.Contains(raw, "\n") {
		// Literal newlines force regex mode. Escape first (done above when
		// not already regex), then turn the literal newlines into explicit
		// newline tokens. The multiline flag is enabled but dot-matches-all
		// is not: only explicit \n in the query may cross lines.
		pat = strings.ReplaceAll(pat, "\r\n", "\n")
		pat = strings.ReplaceAll(pat, "\n", `\n`)
		rule.Pattern = pat
		rule.Regex = true
	}

	if opts.WholeWord {
		pat = `\b(?:` + pat + `)\b`
	}
	if opts.Multiline {
		pat = `(?m)` + pat
	}
	if !opts.MatchCase {
		pat = `(?i)` + pat
	}

	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pat, Err: err}
	}
	rule.re = re

	return rule, nil
}
