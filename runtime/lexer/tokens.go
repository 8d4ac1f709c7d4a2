package lexer

import "github.com/radkum/ps-parser/core/ast"

// TokenType classifies the lexical atoms the scanner recognizes. Operators
// and punctuation are matched by the parser directly against the source, so
// they do not appear here.
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Terminators
	NEWLINE   // \n (unless escaped by a trailing backtick)
	SEMICOLON // ;

	// Literals
	NUMBER             // 123, 0xFF, 0b101, 3.14, .5, 1e6, 20MB
	STRING             // 'verbatim', interior '' collapses to '
	STRING_EXPANDABLE  // "expandable" with `-escapes and $ interpolation
	HERE_STRING        // @' ... '@
	HERE_STRING_EXPAND // @" ... "@

	// Names
	VARIABLE  // $name, $scope:name, ${braced name}, $?, $_, $$
	IDENT     // barewords: keywords, cmdlet names (Get-Process), switch labels
	PARAMETER // -Name / -Switch in command argument position

	// Trivia (skipped by SkipSpace; no scan method returns it)
	COMMENT // # line comment or <# block comment #>
)

var tokenNames = map[TokenType]string{
	EOF:                "EOF",
	ILLEGAL:            "ILLEGAL",
	NEWLINE:            "NEWLINE",
	SEMICOLON:          "SEMICOLON",
	NUMBER:             "NUMBER",
	STRING:             "STRING",
	STRING_EXPANDABLE:  "STRING_EXPANDABLE",
	HERE_STRING:        "HERE_STRING",
	HERE_STRING_EXPAND: "HERE_STRING_EXPAND",
	VARIABLE:           "VARIABLE",
	IDENT:              "IDENT",
	PARAMETER:          "PARAMETER",
	COMMENT:            "COMMENT",
}

func (t TokenType) String() string {
	if n, ok := tokenNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Token is a lexical atom with its original text and source span. Text is
// the raw slice, quotes and escapes included; decoding happens during AST
// lowering so opaque fragments can be re-emitted verbatim.
type Token struct {
	Type TokenType
	Text string
	Span ast.Span
}

func (t Token) String() string { return t.Text }
