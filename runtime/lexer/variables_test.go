package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanVariables(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "$abc", want: "$abc"},
		{name: "digits", input: "$var2 = 1", want: "$var2"},
		{name: "global_scope", input: "$global:var", want: "$global:var"},
		{name: "local_scope", input: "$local:var", want: "$local:var"},
		{name: "script_scope", input: "$script:x", want: "$script:x"},
		{name: "env", input: "$env:PATH", want: "$env:PATH"},
		{name: "braced", input: "${my var}", want: "${my var}"},
		{name: "question", input: "$?", want: "$?"},
		{name: "underscore", input: "$_ -eq 0", want: "$_"},
		{name: "non_scope_colon_stops", input: "$a:b", want: "$a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.input)
			tok, ok := s.ScanVariable()
			require.True(t, ok)
			assert.Equal(t, VARIABLE, tok.Type)
			assert.Equal(t, tt.want, tok.Text)
		})
	}
}

func TestScanParameter(t *testing.T) {
	s := New("-ForegroundColor Green")
	tok, ok := s.ScanParameter()
	require.True(t, ok)
	assert.Equal(t, PARAMETER, tok.Type)
	assert.Equal(t, "-ForegroundColor", tok.Text)

	// A lone dash followed by a digit is arithmetic, not a parameter.
	s = New("-5")
	_, ok = s.ScanParameter()
	assert.False(t, ok)
}
