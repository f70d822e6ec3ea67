package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_ShortQuery(t *testing.T) {
	for _, raw := range []string{"", "a", " a ", "  \t\n ", "日"} {
		_, err := Compile(raw, Options{})
		assert.ErrorIs(t, err, ErrShortQuery, "query %q", raw)
	}

	// The minimum counts runes, not bytes.
	for _, raw := range []string{"ab", "日本"} {
		_, err := Compile(raw, Options{})
		assert.NoError(t, err, "query %q", raw)
	}
}

func TestCompile_LiteralEscaping(t *testing.T) {
	rule, err := Compile("a.b(c)", Options{MatchCase: true})
	require.NoError(t, err)
	assert.False(t, rule.Regex)
	assert.Equal(t, "a.b(c)", rule.Pattern)

	re := rule.Matcher()
	assert.True(t, re.MatchString("x a.b(c) y"))
	assert.False(t, re.MatchString("aXb(c)"), "dot must not act as a wildcard")
}

func TestCompile_CaseFolding(t *testing.T) {
	insensitive, err := Compile("Hello", Options{})
	require.NoError(t, err)
	assert.True(t, insensitive.Matcher().MatchString("say HELLO there"))

	sensitive, err := Compile("Hello", Options{MatchCase: true})
	require.NoError(t, err)
	assert.False(t, sensitive.Matcher().MatchString("say HELLO there"))
	assert.True(t, sensitive.Matcher().MatchString("say Hello there"))
}

func TestCompile_WholeWord(t *testing.T) {
	rule, err := Compile("cat", Options{WholeWord: true, MatchCase: true})
	require.NoError(t, err)
	re := rule.Matcher()
	assert.True(t, re.MatchString("a cat sat"))
	assert.False(t, re.MatchString("concatenate"))
}

func TestCompile_InvalidRegex(t *testing.T) {
	_, err := Compile("a(b", Options{UseRegex: true})
	var ipe *InvalidPatternError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "a(b", ipe.Pattern)
}

func TestCompile_UnsafeShapes(t *testing.T) {
	unsafe := []string{
		`(a+)+b`,
		`(x*)*`,
		`\d+*`,
		`1+*2`,
		`[a-z]+*`,
		`([0-9]+)+`,
	}
	for _, pat := range unsafe {
		_, err := Compile(pat, Options{UseRegex: true})
		assert.ErrorIs(t, err, ErrUnsafePattern, "pattern %q", pat)
	}

	safe := []string{
		`a+b+`,
		`(abc)+`,
		`[a-z]+[0-9]*`,
		`foo|bar`,
	}
	for _, pat := range safe {
		_, err := Compile(pat, Options{UseRegex: true})
		assert.NoError(t, err, "pattern %q", pat)
	}
}

func TestCompile_MultilineLiteralNewlines(t *testing.T) {
	rule, err := Compile("foo\nbar", Options{Multiline: true, MatchCase: true})
	require.NoError(t, err)
	assert.True(t, rule.Regex, "literal newlines force regex mode")
	assert.Equal(t, `foo\nbar`, rule.Pattern)

	re := rule.Matcher()
	assert.True(t, re.MatchString("x foo\nbar y"))
	assert.False(t, re.MatchString("foo bar"))
}

func TestCompile_MultilineCRLFNormalized(t *testing.T) {
	rule, err := Compile("foo\r\nbar", Options{Multiline: true, MatchCase: true})
	require.NoError(t, err)
	assert.Equal(t, `foo\nbar`, rule.Pattern)
}

func TestCompile_MultilineNoDotAll(t *testing.T) {
	// Without an explicit newline in the query, dot never crosses lines.
	rule, err := Compile("a.b", Options{Multiline: true, UseRegex: true, MatchCase: true})
	require.NoError(t, err)
	assert.False(t, rule.Matcher().MatchString("a\nb"))
}

func TestCompile_ErrorClassification(t *testing.T) {
	_, err := Compile("(a+)+", Options{UseRegex: true})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrShortQuery))
	assert.True(t, errors.Is(err, ErrUnsafePattern))
}
