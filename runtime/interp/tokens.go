package interp

import "github.com/radkum/ps-parser/core/values"

// TokenClass distinguishes the four token inventories the analyzer
// reports.
type TokenClass int

const (
	TokenString TokenClass = iota
	TokenStringExpandable
	TokenExpression
	TokenCommand
)

// Token pairs a fragment's original text with its evaluated form: the
// expanded string for expandable strings, the value for expressions and
// commands.
type Token struct {
	Class    TokenClass
	Original string
	Expanded string
	Val      values.Val
}

// Tokens groups the inventories by class.
type Tokens struct {
	Strings           []Token
	ExpandableStrings []Token
	Expressions       []Token
	Commands          []Token
}

// All concatenates every inventory in collection order.
func (t Tokens) All() []Token {
	out := make([]Token, 0, len(t.Strings)+len(t.ExpandableStrings)+len(t.Expressions)+len(t.Commands))
	out = append(out, t.Strings...)
	out = append(out, t.ExpandableStrings...)
	out = append(out, t.Expressions...)
	out = append(out, t.Commands...)
	return out
}

func (e *Evaluator) recordString(original string) {
	e.tokens.Strings = append(e.tokens.Strings, Token{
		Class:    TokenString,
		Original: original,
	})
}

func (e *Evaluator) recordExpandable(original, expanded string) {
	e.tokens.ExpandableStrings = append(e.tokens.ExpandableStrings, Token{
		Class:    TokenStringExpandable,
		Original: original,
		Expanded: expanded,
	})
}

func (e *Evaluator) recordExpression(original string, v values.Val) {
	e.tokens.Expressions = append(e.tokens.Expressions, Token{
		Class:    TokenExpression,
		Original: original,
		Val:      v,
	})
}

func (e *Evaluator) recordCommand(original string, v values.Val) {
	e.tokens.Commands = append(e.tokens.Commands, Token{
		Class:    TokenCommand,
		Original: original,
		Val:      v,
	})
}
