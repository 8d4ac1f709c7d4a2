// Package lexer scans PowerShell surface syntax into spanned tokens. The
// grammar is context sensitive (barewords are commands in one position and
// operands in another), so the scanner exposes cursor primitives that the
// parser drives PEG-style: every scan either succeeds and advances, or
// leaves the position untouched for the next ordered alternative.
package lexer

import (
	"strings"

	"github.com/radkum/ps-parser/core/ast"
)

// Scanner is a backtrackable cursor over the source text.
type Scanner struct {
	src string
	pos int
}

// New returns a scanner positioned at the start of src.
func New(src string) *Scanner {
	return &Scanner{src: src}
}

// Source returns the full input text.
func (s *Scanner) Source() string { return s.src }

// Pos returns the current byte offset; SetPos restores a saved one.
func (s *Scanner) Pos() int       { return s.pos }
func (s *Scanner) SetPos(pos int) { s.pos = pos }

// EOF reports whether the cursor is at the end of input.
func (s *Scanner) EOF() bool { return s.pos >= len(s.src) }

func (s *Scanner) peekAt(off int) byte {
	if s.pos+off >= len(s.src) {
		return 0
	}
	return s.src[s.pos+off]
}

// Peek returns the byte at the cursor without advancing (0 at EOF).
func (s *Scanner) Peek() byte { return s.peekAt(0) }

// SkipSpace consumes inline whitespace, comments, and backtick line
// continuations. Newlines stay put: they terminate statements.
func (s *Scanner) SkipSpace() {
	for !s.EOF() {
		c := s.Peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			s.pos++
		case c == '`' && (s.peekAt(1) == '\n' || (s.peekAt(1) == '\r' && s.peekAt(2) == '\n')):
			s.pos++
			if s.Peek() == '\r' {
				s.pos++
			}
			s.pos++
		case c == '#':
			for !s.EOF() && s.Peek() != '\n' {
				s.pos++
			}
		case c == '<' && s.peekAt(1) == '#':
			s.skipBlockComment()
		default:
			return
		}
	}
}

// SkipBlank consumes everything SkipSpace does plus newlines. Used inside
// parenthesised and braced contexts where newlines are not terminators.
func (s *Scanner) SkipBlank() {
	for {
		s.SkipSpace()
		if !s.EOF() && s.Peek() == '\n' {
			s.pos++
			continue
		}
		return
	}
}

func (s *Scanner) skipBlockComment() {
	s.pos += 2
	for !s.EOF() {
		if s.Peek() == '#' && s.peekAt(1) == '>' {
			s.pos += 2
			return
		}
		s.pos++
	}
}

// Terminator consumes one statement terminator (newline or semicolon) and
// reports whether one was present.
func (s *Scanner) Terminator() bool {
	s.SkipSpace()
	switch s.Peek() {
	case '\n':
		s.pos++
		return true
	case ';':
		s.pos++
		return true
	}
	return false
}

// Match consumes the exact literal when it appears at the cursor.
func (s *Scanner) Match(lit string) bool {
	if strings.HasPrefix(s.src[s.pos:], lit) {
		s.pos += len(lit)
		return true
	}
	return false
}

// MatchFold consumes a keyword case-insensitively, requiring a word
// boundary after it so `if` does not match the prefix of `ifx`.
func (s *Scanner) MatchFold(word string) bool {
	end := s.pos + len(word)
	if end > len(s.src) {
		return false
	}
	if !strings.EqualFold(s.src[s.pos:end], word) {
		return false
	}
	if end < len(s.src) && isIdentChar(s.src[end]) {
		return false
	}
	s.pos = end
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ScanIdent scans a bareword: an identifier optionally continued with
// dashed segments, covering cmdlet names such as Write-Output.
func (s *Scanner) ScanIdent() (Token, bool) {
	start := s.pos
	if !isIdentStart(s.Peek()) {
		return Token{}, false
	}
	for !s.EOF() && isIdentChar(s.Peek()) {
		s.pos++
	}
	for s.Peek() == '-' && isIdentStart(s.peekAt(1)) {
		s.pos++
		for !s.EOF() && isIdentChar(s.Peek()) {
			s.pos++
		}
	}
	return s.token(IDENT, start), true
}

// scopeNames are the variable scope qualifiers the evaluator resolves.
var scopeNames = map[string]bool{
	"global":  true,
	"local":   true,
	"script":  true,
	"private": true,
	"env":     true,
}

// ScanVariable scans $name, $scope:name, ${braced}, and the automatic
// punctuation variables $?, $_, $$.
func (s *Scanner) ScanVariable() (Token, bool) {
	start := s.pos
	if s.Peek() != '$' {
		return Token{}, false
	}
	s.pos++
	switch c := s.Peek(); {
	case c == '{':
		for !s.EOF() && s.Peek() != '}' {
			s.pos++
		}
		if s.EOF() {
			s.pos = start
			return Token{}, false
		}
		s.pos++
		return s.token(VARIABLE, start), true
	case c == '?' || c == '_' || c == '$' || c == '^':
		s.pos++
		return s.token(VARIABLE, start), true
	case isIdentChar(c):
		for !s.EOF() && isIdentChar(s.Peek()) {
			s.pos++
		}
		// A scope qualifier swallows the colon and the trailing name.
		if s.Peek() == ':' && scopeNames[strings.ToLower(s.src[start+1:s.pos])] && isIdentChar(s.peekAt(1)) {
			s.pos++
			for !s.EOF() && isIdentChar(s.Peek()) {
				s.pos++
			}
		}
		return s.token(VARIABLE, start), true
	}
	s.pos = start
	return Token{}, false
}

// numberSuffixes are the byte-multiplier suffixes, scaled during lowering.
var numberSuffixes = []string{"kb", "mb", "gb", "tb", "pb"}

// ScanNumber scans integer, hex, binary, float and scientific literals,
// with an optional multiplier suffix. `1..5` stops before the dots.
func (s *Scanner) ScanNumber() (Token, bool) {
	start := s.pos
	if s.Match("0x") || s.Match("0X") {
		hexStart := s.pos
		for !s.EOF() && isHexDigit(s.Peek()) {
			s.pos++
		}
		if s.pos == hexStart {
			s.pos = start
			return Token{}, false
		}
		return s.token(NUMBER, start), true
	}
	if s.Match("0b") || s.Match("0B") {
		binStart := s.pos
		for s.Peek() == '0' || s.Peek() == '1' {
			s.pos++
		}
		if s.pos == binStart {
			s.pos = start
			return Token{}, false
		}
		return s.token(NUMBER, start), true
	}
	digitsBefore := false
	for isDigit(s.Peek()) {
		s.pos++
		digitsBefore = true
	}
	// Fractional part; `1..5` keeps its dots for the range operator.
	if s.Peek() == '.' && isDigit(s.peekAt(1)) {
		s.pos++
		for isDigit(s.Peek()) {
			s.pos++
		}
	} else if !digitsBefore {
		s.pos = start
		return Token{}, false
	}
	if s.Peek() == 'e' || s.Peek() == 'E' {
		save := s.pos
		s.pos++
		if s.Peek() == '+' || s.Peek() == '-' {
			s.pos++
		}
		if isDigit(s.Peek()) {
			for isDigit(s.Peek()) {
				s.pos++
			}
		} else {
			s.pos = save
		}
	}
	for _, suffix := range numberSuffixes {
		if s.pos+2 <= len(s.src) && strings.EqualFold(s.src[s.pos:s.pos+2], suffix) {
			if s.pos+2 == len(s.src) || !isIdentChar(s.src[s.pos+2]) {
				s.pos += 2
			}
			break
		}
	}
	// Reject a bareword continuing the digits (e.g. `123abc`).
	if isIdentStart(s.Peek()) {
		s.pos = start
		return Token{}, false
	}
	return s.token(NUMBER, start), true
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ScanString scans any of the four string forms. The token text keeps the
// original quoting.
func (s *Scanner) ScanString() (Token, bool) {
	switch {
	case s.Peek() == '\'':
		return s.scanVerbatim()
	case s.Peek() == '"':
		return s.scanExpandable()
	case s.Peek() == '@' && s.peekAt(1) == '\'':
		return s.scanHereString('\'', HERE_STRING)
	case s.Peek() == '@' && s.peekAt(1) == '"':
		return s.scanHereString('"', HERE_STRING_EXPAND)
	}
	return Token{}, false
}

func (s *Scanner) scanVerbatim() (Token, bool) {
	start := s.pos
	s.pos++
	for !s.EOF() {
		if s.Peek() == '\'' {
			if s.peekAt(1) == '\'' {
				s.pos += 2
				continue
			}
			s.pos++
			return s.token(STRING, start), true
		}
		s.pos++
	}
	s.pos = start
	return Token{}, false
}

func (s *Scanner) scanExpandable() (Token, bool) {
	start := s.pos
	s.pos++
	for !s.EOF() {
		switch s.Peek() {
		case '`':
			s.pos += 2
		case '"':
			if s.peekAt(1) == '"' {
				s.pos += 2
				continue
			}
			s.pos++
			return s.token(STRING_EXPANDABLE, start), true
		case '$':
			// Subexpressions may contain quotes; skip them balanced.
			if s.peekAt(1) == '(' {
				s.pos += 2
				if !s.skipBalancedParens() {
					s.pos = start
					return Token{}, false
				}
				continue
			}
			s.pos++
		default:
			s.pos++
		}
	}
	s.pos = start
	return Token{}, false
}

// skipBalancedParens consumes up to and including the parenthesis matching
// an already-consumed open one, honoring nested strings.
func (s *Scanner) skipBalancedParens() bool {
	depth := 1
	for !s.EOF() {
		switch s.Peek() {
		case '(':
			depth++
			s.pos++
		case ')':
			depth--
			s.pos++
			if depth == 0 {
				return true
			}
		case '\'':
			if _, ok := s.scanVerbatim(); !ok {
				return false
			}
		case '"':
			if _, ok := s.scanExpandable(); !ok {
				return false
			}
		case '`':
			s.pos += 2
		default:
			s.pos++
		}
	}
	return false
}

func (s *Scanner) scanHereString(quote byte, tt TokenType) (Token, bool) {
	start := s.pos
	s.pos += 2
	closer := string(quote) + "@"
	for !s.EOF() {
		if s.Peek() == '\n' {
			rest := s.src[s.pos+1:]
			trimmed := strings.TrimLeft(rest, "\r")
			if strings.HasPrefix(trimmed, closer) {
				s.pos += 1 + (len(rest) - len(trimmed)) + 2
				return s.token(tt, start), true
			}
		}
		s.pos++
	}
	s.pos = start
	return Token{}, false
}

// ScanParameter scans a command parameter such as -Force or -ErrorAction.
func (s *Scanner) ScanParameter() (Token, bool) {
	start := s.pos
	if s.Peek() != '-' || !isIdentStart(s.peekAt(1)) {
		return Token{}, false
	}
	s.pos++
	for !s.EOF() && isIdentChar(s.Peek()) {
		s.pos++
	}
	return s.token(PARAMETER, start), true
}

// ScanBareArgument scans an unquoted command argument: any run of
// characters up to whitespace, a terminator, or command punctuation.
func (s *Scanner) ScanBareArgument() (Token, bool) {
	start := s.pos
	for !s.EOF() {
		c := s.Peek()
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ';' ||
			c == '|' || c == ')' || c == '}' || c == '(' || c == '#' {
			break
		}
		s.pos++
	}
	if s.pos == start {
		return Token{}, false
	}
	return s.token(IDENT, start), true
}

func (s *Scanner) token(tt TokenType, start int) Token {
	return Token{
		Type: tt,
		Text: s.src[start:s.pos],
		Span: ast.Span{Start: start, End: s.pos},
	}
}
