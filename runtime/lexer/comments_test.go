package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipSpaceConsumesComments(t *testing.T) {
	s := New("   # a line comment\n$x")
	s.SkipSpace()
	assert.Equal(t, byte('\n'), s.Peek(), "newline survives SkipSpace")
	s.SkipBlank()
	tok, ok := s.ScanVariable()
	require.True(t, ok)
	assert.Equal(t, "$x", tok.Text)
}

func TestSkipSpaceBlockComment(t *testing.T) {
	s := New("<#\n multi\n line\n#> 42")
	s.SkipBlank()
	tok, ok := s.ScanNumber()
	require.True(t, ok)
	assert.Equal(t, "42", tok.Text)
}

func TestLineContinuation(t *testing.T) {
	s := New("`\n  42")
	s.SkipSpace()
	tok, ok := s.ScanNumber()
	require.True(t, ok)
	assert.Equal(t, "42", tok.Text)
}

func TestTerminator(t *testing.T) {
	s := New("; $a")
	assert.True(t, s.Terminator())
	s2 := New("\n$a")
	assert.True(t, s2.Terminator())
	s3 := New("$a")
	assert.False(t, s3.Terminator())
}
