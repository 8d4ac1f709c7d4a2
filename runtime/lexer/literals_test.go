package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanNumbers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // consumed text; "" means the scan must fail
	}{
		{name: "single_digit", input: "5", want: "5"},
		{name: "multi_digit", input: "123 + 4", want: "123"},
		{name: "float", input: "3.1415", want: "3.1415"},
		{name: "leading_dot", input: ".5", want: ".5"},
		{name: "scientific", input: "1e6", want: "1e6"},
		{name: "scientific_signed", input: "2.5e-3", want: "2.5e-3"},
		{name: "hex", input: "0xFF", want: "0xFF"},
		{name: "hex_mixed_case", input: "0x4d", want: "0x4d"},
		{name: "binary", input: "0b1101", want: "0b1101"},
		{name: "kb_suffix", input: "20KB", want: "20KB"},
		{name: "mb_suffix_lower", input: "20mb*2", want: "20mb"},
		{name: "range_stops_before_dots", input: "1..5", want: "1"},
		{name: "bareword_rejected", input: "123abc", want: ""},
		{name: "not_a_number", input: "abc", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.input)
			tok, ok := s.ScanNumber()
			if tt.want == "" {
				assert.False(t, ok)
				assert.Equal(t, 0, s.Pos(), "failed scan must not advance")
				return
			}
			require.True(t, ok)
			assert.Equal(t, NUMBER, tok.Type)
			assert.Equal(t, tt.want, tok.Text)
			assert.Equal(t, len(tt.want), tok.Span.End)
		})
	}
}

func TestScanIdent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "default", want: "default"},
		{name: "cmdlet", input: "Get-Process | foo", want: "Get-Process"},
		{name: "multi_dash", input: "ConvertTo-Secure-Thing", want: "ConvertTo-Secure-Thing"},
		{name: "underscore", input: "_private", want: "_private"},
		{name: "stops_at_paren", input: "name(", want: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.input)
			tok, ok := s.ScanIdent()
			require.True(t, ok)
			assert.Equal(t, tt.want, tok.Text)
		})
	}
}

func TestMatchFoldNeedsWordBoundary(t *testing.T) {
	s := New("ifx")
	assert.False(t, s.MatchFold("if"))
	assert.Equal(t, 0, s.Pos())

	s = New("If ($x)")
	assert.True(t, s.MatchFold("if"))
	assert.Equal(t, 2, s.Pos())
}
