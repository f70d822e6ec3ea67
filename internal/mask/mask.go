// Package mask implements glob-lite file-name masks: comma/semicolon
// separated tokens where * and ? are the only wildcards and a leading !
// marks an exclusion. Excludes always win.
package mask

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Token is one parsed mask entry. Pattern is the raw text as written; Glob
// is what the process orchestrator forwards.
type Token struct {
	Pattern string
	Negate  bool

	glob string
}

// Glob returns the escaped pattern for the external process: every glob
// metacharacter except * and ? is backslash-escaped, original case kept.
// Pair it with --iglob so both search paths stay case-insensitive.
func (t Token) Glob() string { return t.glob }

// Mask is a parsed file-name mask. The zero value (and nil) matches
// everything.
type Mask struct {
	tokens   []Token
	includes []string // escaped, lowercased doublestar patterns
	excludes []string
}

// Parse splits a raw mask into tokens and validates each glob.
// An empty mask parses to a Mask that matches every name.
func Parse(raw string) (*Mask, error) {
	m := &Mask{}
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		tok := strings.TrimSpace(part)
		if tok == "" {
			continue
		}
		negate := strings.HasPrefix(tok, "!")
		if negate {
			tok = tok[1:]
			if tok == "" {
				continue
			}
		}
		pat := escapeToken(tok)
		lower := strings.ToLower(pat)
		if !doublestar.ValidatePattern(lower) {
			return nil, &InvalidMaskError{Token: tok}
		}
		m.tokens = append(m.tokens, Token{Pattern: tok, Negate: negate, glob: pat})
		if negate {
			m.excludes = append(m.excludes, lower)
		} else {
			m.includes = append(m.includes, lower)
		}
	}
	return m, nil
}

// InvalidMaskError marks a mask token that does not compile as a glob.
type InvalidMaskError struct {
	Token string
}

func (e *InvalidMaskError) Error() string {
	return "invalid file mask token: " + e.Token
}

// escapeToken escapes every glob metacharacter except * and ?, so masks stay
// strictly glob-lite: no classes, no braces. Case is preserved here; the
// local matcher lowercases separately.
func escapeToken(tok string) string {
	var b strings.Builder
	for _, r := range tok {
		switch r {
		case '\\', '[', ']', '{', '}':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Match reports whether a file name passes the mask: it must match at least
// one include (or there are none) and no exclude.
func (m *Mask) Match(name string) bool {
	if m == nil {
		return true
	}
	lower := strings.ToLower(name)
	for _, pat := range m.excludes {
		if ok, _ := doublestar.Match(pat, lower); ok {
			return false
		}
	}
	if len(m.includes) == 0 {
		return true
	}
	for _, pat := range m.includes {
		if ok, _ := doublestar.Match(pat, lower); ok {
			return true
		}
	}
	return false
}

// Tokens returns the parsed tokens in input order.
func (m *Mask) Tokens() []Token {
	if m == nil {
		return nil
	}
	return m.tokens
}

// Empty reports whether the mask has no tokens at all.
func (m *Mask) Empty() bool {
	return m == nil || len(m.tokens) == 0
}
