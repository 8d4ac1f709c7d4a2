package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanVerbatimStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "'hello'", want: "'hello'"},
		{name: "doubled_quote", input: "'it''s'", want: "'it''s'"},
		{name: "no_interpolation", input: "'Hello, $name'", want: "'Hello, $name'"},
		{name: "stops_at_close", input: "'a' + 'b'", want: "'a'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.input)
			tok, ok := s.ScanString()
			require.True(t, ok)
			assert.Equal(t, STRING, tok.Type)
			assert.Equal(t, tt.want, tok.Text)
		})
	}
}

func TestScanExpandableStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: `"hello"`, want: `"hello"`},
		{name: "variable", input: `"Hello, $name."`, want: `"Hello, $name."`},
		{name: "backtick_escape", input: "\"She said: `\"Hi`\"\"", want: "\"She said: `\"Hi`\"\""},
		{name: "subexpression", input: `"sum: $(1 + 2)"`, want: `"sum: $(1 + 2)"`},
		{name: "subexpr_with_quotes", input: `"x$("a" + 'b')y"`, want: `"x$("a" + 'b')y"`},
		{name: "nested_parens", input: `"v: $(($a + $b))"`, want: `"v: $(($a + $b))"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.input)
			tok, ok := s.ScanString()
			require.True(t, ok)
			assert.Equal(t, STRING_EXPANDABLE, tok.Type)
			assert.Equal(t, tt.want, tok.Text)
		})
	}
}

func TestScanHereStrings(t *testing.T) {
	src := "@'\nline one\nline 'two'\n'@ + 1"
	s := New(src)
	tok, ok := s.ScanString()
	require.True(t, ok)
	assert.Equal(t, HERE_STRING, tok.Type)
	assert.Equal(t, "@'\nline one\nline 'two'\n'@", tok.Text)

	src = "@\"\nhello $name\n\"@"
	s = New(src)
	tok, ok = s.ScanString()
	require.True(t, ok)
	assert.Equal(t, HERE_STRING_EXPAND, tok.Type)
}

func TestUnterminatedStringFails(t *testing.T) {
	s := New("'never closed")
	_, ok := s.ScanString()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Pos())
}
