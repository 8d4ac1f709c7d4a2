package parser

import (
	"fmt"

	"github.com/radkum/ps-parser/core/ast"
)

// ParseError is the single fatal error channel: unrecoverable syntax
// rejects the whole input and no script result is produced. Evaluation
// errors travel separately (values.ValError) and never abort a parse.
type ParseError struct {
	Span     ast.Span
	Message  string
	Expected string
}

func (e *ParseError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("ParseError: %s (expected %s) at offset %d", e.Message, e.Expected, e.Span.Start)
	}
	return fmt.Sprintf("ParseError: %s at offset %d", e.Message, e.Span.Start)
}

func (p *parser) errHere(expected string) *ParseError {
	return &ParseError{
		Span:     ast.Span{Start: p.s.Pos(), End: p.s.Pos()},
		Message:  "unexpected input",
		Expected: expected,
	}
}
