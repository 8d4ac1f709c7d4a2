// Package interp is the tree-walking evaluator: it executes the safe subset
// of PowerShell, collects the output stream, records tokens and evaluation
// errors, and builds the deobfuscated rendering. Unsafe commands are never
// executed; they yield the Unknown carrier and re-emit themselves verbatim
// with safely-evaluated arguments substituted in.
package interp

import (
	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/core/values"
	"github.com/radkum/ps-parser/runtime/session"
)

// Result is the outcome of evaluating one program against a session.
type Result struct {
	Deobfuscated []string
	Output       []string
	Last         values.Val
	Errors       []error
	Tokens       Tokens
}

// Evaluator walks one program. It is single-use: construct, Run, read the
// result. The session carries state to the next program.
type Evaluator struct {
	sess *session.Session
	src  string

	lines  []string
	out    []string
	errs   []error
	tokens Tokens
	last   values.Val

	// vals overlays evaluated results onto expression nodes for the
	// renderer. Only clean, fully-known results are stored.
	vals map[ast.Expression]values.Val

	depth      int
	steps      int
	depthBlown bool
}

// New prepares an evaluator over the given session.
func New(sess *session.Session) *Evaluator {
	return &Evaluator{
		sess: sess,
		vals: map[ast.Expression]values.Val{},
		last: values.Null{},
	}
}

// Run executes the program and assembles the result.
func (e *Evaluator) Run(prog *ast.Program) Result {
	e.src = prog.Src
	for _, stmt := range prog.Stmts {
		e.execTopStmt(stmt)
	}
	return Result{
		Deobfuscated: e.lines,
		Output:       e.out,
		Last:         e.last,
		Errors:       e.errs,
		Tokens:       e.tokens,
	}
}

func (e *Evaluator) recordError(err error) {
	e.errs = append(e.errs, err)
}

func (e *Evaluator) emit(line string) {
	e.lines = append(e.lines, line)
}

func (e *Evaluator) write(s string) {
	e.out = append(e.out, s)
}

// spanText returns the original source for a node.
func (e *Evaluator) spanText(n ast.Node) string {
	return n.Span().Text(e.src)
}

// budget charges one evaluation step; exhaustion records one error and
// turns the enclosing expression opaque.
func (e *Evaluator) budget() bool {
	if e.sess.Opts.StepBudget > 0 {
		e.steps++
		if e.steps == e.sess.Opts.StepBudget+1 {
			e.recordError(values.NewStepBudget())
		}
		if e.steps > e.sess.Opts.StepBudget {
			return false
		}
	}
	return true
}

func (e *Evaluator) enter() bool {
	e.depth++
	if e.depth > e.sess.Opts.MaxDepth {
		if !e.depthBlown {
			e.depthBlown = true
			e.recordError(values.NewRecursionLimit(e.sess.Opts.MaxDepth))
		}
		return false
	}
	return true
}

func (e *Evaluator) leave() { e.depth-- }
