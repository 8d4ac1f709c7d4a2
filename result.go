package psparser

import (
	"strings"

	"github.com/radkum/ps-parser/runtime/interp"
)

// Token pairs a source fragment with its evaluated form; see the
// TokenClass constants.
type Token = interp.Token

// TokenClass discriminates the token inventories.
type TokenClass = interp.TokenClass

// Token classes, re-exported for callers.
const (
	TokenString           = interp.TokenString
	TokenStringExpandable = interp.TokenStringExpandable
	TokenExpression       = interp.TokenExpression
	TokenCommand          = interp.TokenCommand
)

// Tokens groups the recorded tokens by class.
type Tokens = interp.Tokens

// ScriptResult is the outcome of one ParseInput call.
type ScriptResult struct {
	res interp.Result
}

// Deobfuscated returns the canonical rendering: one line per executed
// statement, safe sub-expressions replaced by their literal values,
// opaque fragments verbatim.
func (r *ScriptResult) Deobfuscated() string {
	return strings.Join(r.res.Deobfuscated, NEWLINE)
}

// Output returns the captured output stream entries joined by NEWLINE.
func (r *ScriptResult) Output() string {
	return strings.Join(r.res.Output, NEWLINE)
}

// Result returns the last top-level expression's value.
func (r *ScriptResult) Result() PsValue {
	return r.res.Last
}

// ResultString renders the result the way PowerShell stringifies it.
func (r *ScriptResult) ResultString() string {
	return r.res.Last.Display()
}

// Errors returns the accumulated evaluation errors in occurrence order.
func (r *ScriptResult) Errors() []error {
	return r.res.Errors
}

// Tokens exposes the token inventory.
func (r *ScriptResult) Tokens() Tokens {
	return r.res.Tokens
}
