// Package parser turns PowerShell source into the typed AST of core/ast.
// It is a backtracking recursive-descent parser in the PEG style: ordered
// alternatives, longest match, no statement-level recovery. Any
// unrecoverable syntax returns a ParseError and rejects the whole input.
package parser

import (
	"strings"

	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/runtime/lexer"
)

type parser struct {
	s   *lexer.Scanner
	src string
	// noComma suppresses the comma array tier inside method argument
	// lists, where commas separate arguments.
	noComma int
}

// Parse parses a complete script.
func Parse(src string) (*ast.Program, error) {
	p := &parser{s: lexer.New(src), src: src}
	prog := &ast.Program{Src: src, Pos: ast.Span{Start: 0, End: len(src)}}
	for {
		p.skipTerminators()
		if p.s.EOF() {
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
		if err := p.expectTerminator(); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// skipTerminators consumes any run of blank lines and `;` separators.
func (p *parser) skipTerminators() {
	for {
		p.s.SkipBlank()
		if !p.s.Match(";") {
			return
		}
	}
}

// expectTerminator requires a statement boundary: newline, semicolon,
// closing brace/paren (left for the caller), or end of input.
func (p *parser) expectTerminator() error {
	p.s.SkipSpace()
	if p.s.EOF() {
		return nil
	}
	switch p.s.Peek() {
	case '\n', ';':
		return nil
	case '}', ')':
		return nil
	}
	return p.errHere("newline or ';'")
}

func (p *parser) statement() (ast.Statement, error) {
	// Nested statements (subexpressions, blocks) restore the full comma
	// tier even inside an argument list.
	saved := p.noComma
	p.noComma = 0
	defer func() { p.noComma = saved }()

	p.s.SkipSpace()
	start := p.s.Pos()

	if p.s.MatchFold("function") {
		return p.funcDecl(start)
	}
	if p.s.MatchFold("if") {
		return p.ifStmt(start)
	}
	if p.s.MatchFold("while") {
		return p.whileStmt(start)
	}
	if p.s.MatchFold("do") {
		return p.doStmt(start)
	}
	if p.s.MatchFold("foreach") {
		// `foreach (...)` is the statement; a bare `foreach` mid-pipeline is
		// the ForEach-Object alias and parses as a command.
		p.s.SkipSpace()
		if p.s.Peek() == '(' {
			return p.foreachStmt(start)
		}
		p.s.SetPos(start)
	}
	if p.s.MatchFold("for") {
		return p.forStmt(start)
	}
	if p.s.MatchFold("switch") {
		return p.switchStmt(start)
	}
	if p.s.MatchFold("break") {
		return &ast.Break{Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	}
	if p.s.MatchFold("continue") {
		return &ast.Continue{Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	}
	if p.s.MatchFold("return") {
		return p.returnStmt(start)
	}
	return p.assignOrExprStmt(start)
}

func (p *parser) returnStmt(start int) (ast.Statement, error) {
	p.s.SkipSpace()
	ret := &ast.Return{Pos: ast.Span{Start: start, End: p.s.Pos()}}
	if p.s.EOF() || p.s.Peek() == '\n' || p.s.Peek() == ';' || p.s.Peek() == '}' {
		return ret, nil
	}
	x, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	ret.X = x
	ret.Pos.End = p.s.Pos()
	return ret, nil
}

func (p *parser) assignOrExprStmt(start int) (ast.Statement, error) {
	if target, ok := p.tryLValue(); ok {
		p.s.SkipSpace()
		if op, ok := p.assignOp(); ok {
			p.s.SkipSpace()
			rhs, err := p.pipeline()
			if err != nil {
				return nil, err
			}
			return &ast.Assign{
				Target: target,
				Op:     op,
				Value:  rhs,
				Pos:    ast.Span{Start: start, End: p.s.Pos()},
			}, nil
		}
	}
	p.s.SetPos(start)
	x, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

// tryLValue parses a variable reference optionally extended with member or
// index accesses; anything else is not assignable.
func (p *parser) tryLValue() (ast.Expression, bool) {
	save := p.s.Pos()
	p.s.SkipSpace()
	tok, ok := p.s.ScanVariable()
	if !ok {
		p.s.SetPos(save)
		return nil, false
	}
	var x ast.Expression = p.varRefFromToken(tok)
	for {
		if p.s.Peek() == '.' && isWordStart(p.peekAt(1)) {
			dot := p.s.Pos()
			p.s.Match(".")
			name, ok := p.s.ScanIdent()
			if !ok {
				p.s.SetPos(dot)
				break
			}
			if p.s.Peek() == '(' {
				// Method call targets are not assignable.
				p.s.SetPos(save)
				return nil, false
			}
			x = &ast.Member{
				X:    x,
				Name: strings.ToLower(name.Text),
				Raw:  name.Text,
				Pos:  ast.Span{Start: save, End: p.s.Pos()},
			}
			continue
		}
		if p.s.Peek() == '[' {
			idx, err := p.indexSuffix(x, save)
			if err != nil {
				p.s.SetPos(save)
				return nil, false
			}
			x = idx
			continue
		}
		break
	}
	return x, true
}

func (p *parser) assignOp() (string, bool) {
	for _, op := range []string{"+=", "-=", "*=", "/=", "%="} {
		if p.s.Match(op) {
			return op, true
		}
	}
	// `=` alone; `==` is not a PowerShell operator but never consume half.
	if p.s.Peek() == '=' && p.peekAt(1) != '=' {
		p.s.Match("=")
		return "=", true
	}
	return "", false
}

func (p *parser) peekAt(off int) byte {
	pos := p.s.Pos() + off
	if pos >= len(p.src) {
		return 0
	}
	return p.src[pos]
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ----------------------------------------------------------------------------
// Control flow statements
// ----------------------------------------------------------------------------

func (p *parser) condition() (ast.Expression, error) {
	p.s.SkipBlank()
	if !p.s.Match("(") {
		return nil, p.errHere("'('")
	}
	p.s.SkipBlank()
	cond, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	p.s.SkipBlank()
	if !p.s.Match(")") {
		return nil, p.errHere("')'")
	}
	return cond, nil
}

func (p *parser) block() (*ast.Block, error) {
	p.s.SkipBlank()
	start := p.s.Pos()
	if !p.s.Match("{") {
		return nil, p.errHere("'{'")
	}
	stmts, err := p.statementsUntil('}')
	if err != nil {
		return nil, err
	}
	if !p.s.Match("}") {
		return nil, p.errHere("'}'")
	}
	return &ast.Block{Stmts: stmts, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

// statementsUntil parses statements up to (not consuming) the closing byte.
func (p *parser) statementsUntil(close byte) ([]ast.Statement, error) {
	var stmts []ast.Statement
	for {
		p.skipTerminators()
		if p.s.EOF() {
			return nil, p.errHere(string(close))
		}
		if p.s.Peek() == close {
			return stmts, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.s.SkipSpace()
		if !p.s.EOF() && p.s.Peek() != close {
			if err := p.expectTerminator(); err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) ifStmt(start int) (ast.Statement, error) {
	stmt := &ast.If{}
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt.Branches = append(stmt.Branches, ast.CondBlock{Cond: cond, Body: body})
	for {
		save := p.s.Pos()
		p.s.SkipBlank()
		if p.s.MatchFold("elseif") {
			cond, err := p.condition()
			if err != nil {
				return nil, err
			}
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			stmt.Branches = append(stmt.Branches, ast.CondBlock{Cond: cond, Body: body})
			continue
		}
		if p.s.MatchFold("else") {
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			stmt.Else = body
			break
		}
		p.s.SetPos(save)
		break
	}
	stmt.Pos = ast.Span{Start: start, End: p.s.Pos()}
	return stmt, nil
}

func (p *parser) whileStmt(start int) (ast.Statement, error) {
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

func (p *parser) doStmt(start int) (ast.Statement, error) {
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	p.s.SkipBlank()
	until := false
	switch {
	case p.s.MatchFold("while"):
	case p.s.MatchFold("until"):
		until = true
	default:
		return nil, p.errHere("'while' or 'until'")
	}
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	return &ast.DoLoop{
		Body:  body,
		Cond:  cond,
		Until: until,
		Pos:   ast.Span{Start: start, End: p.s.Pos()},
	}, nil
}

func (p *parser) foreachStmt(start int) (ast.Statement, error) {
	p.s.SkipBlank()
	if !p.s.Match("(") {
		return nil, p.errHere("'('")
	}
	p.s.SkipBlank()
	varTok, ok := p.s.ScanVariable()
	if !ok {
		return nil, p.errHere("loop variable")
	}
	ref := p.varRefFromToken(varTok)
	p.s.SkipBlank()
	if !p.s.MatchFold("in") {
		return nil, p.errHere("'in'")
	}
	p.s.SkipBlank()
	iterable, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	p.s.SkipBlank()
	if !p.s.Match(")") {
		return nil, p.errHere("')'")
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.ForEach{
		Var:      ref.Name,
		Iterable: iterable,
		Body:     body,
		Pos:      ast.Span{Start: start, End: p.s.Pos()},
	}, nil
}

func (p *parser) forStmt(start int) (ast.Statement, error) {
	p.s.SkipBlank()
	if !p.s.Match("(") {
		return nil, p.errHere("'('")
	}
	stmt := &ast.For{}
	var err error
	if stmt.Init, err = p.forClause(';'); err != nil {
		return nil, err
	}
	if !p.s.Match(";") {
		return nil, p.errHere("';'")
	}
	p.s.SkipBlank()
	if p.s.Peek() != ';' {
		if stmt.Cond, err = p.pipeline(); err != nil {
			return nil, err
		}
		p.s.SkipBlank()
	}
	if !p.s.Match(";") {
		return nil, p.errHere("';'")
	}
	if stmt.Post, err = p.forClause(')'); err != nil {
		return nil, err
	}
	if !p.s.Match(")") {
		return nil, p.errHere("')'")
	}
	if stmt.Body, err = p.block(); err != nil {
		return nil, err
	}
	stmt.Pos = ast.Span{Start: start, End: p.s.Pos()}
	return stmt, nil
}

// forClause parses the comma separated init/post clauses of a for loop,
// each optionally parenthesised, stopping before the given close byte.
func (p *parser) forClause(close byte) ([]ast.Statement, error) {
	var out []ast.Statement
	for {
		p.s.SkipBlank()
		if p.s.Peek() == close {
			return out, nil
		}
		wrapped := false
		if p.s.Peek() == '(' {
			save := p.s.Pos()
			p.s.Match("(")
			p.s.SkipBlank()
			if p.s.Peek() == '$' {
				wrapped = true
			} else {
				p.s.SetPos(save)
			}
		}
		stmt, err := p.assignOrExprStmt(p.s.Pos())
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		if wrapped {
			p.s.SkipBlank()
			if !p.s.Match(")") {
				return nil, p.errHere("')'")
			}
		}
		p.s.SkipBlank()
		if !p.s.Match(",") {
			return out, nil
		}
	}
}

func (p *parser) switchStmt(start int) (ast.Statement, error) {
	stmt := &ast.Switch{}
	for {
		p.s.SkipSpace()
		if p.s.MatchFold("-regex") {
			stmt.Mode = ast.SwitchRegex
			continue
		}
		if p.s.MatchFold("-wildcard") {
			stmt.Mode = ast.SwitchWildcard
			continue
		}
		if p.s.MatchFold("-exact") {
			stmt.Mode = ast.SwitchDefault
			continue
		}
		break
	}
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	stmt.Scrutinee = cond
	p.s.SkipBlank()
	if !p.s.Match("{") {
		return nil, p.errHere("'{'")
	}
	for {
		p.skipTerminators()
		if p.s.Match("}") {
			break
		}
		if p.s.EOF() {
			return nil, p.errHere("'}'")
		}
		if p.s.MatchFold("default") {
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			stmt.Default = body
			continue
		}
		label, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, ast.SwitchClause{Label: label, Body: body})
	}
	stmt.Pos = ast.Span{Start: start, End: p.s.Pos()}
	return stmt, nil
}

// ----------------------------------------------------------------------------
// Functions
// ----------------------------------------------------------------------------

func (p *parser) funcDecl(start int) (ast.Statement, error) {
	p.s.SkipSpace()
	nameTok, ok := p.s.ScanIdent()
	if !ok {
		return nil, p.errHere("function name")
	}
	fn := &ast.FuncDecl{Name: strings.ToLower(nameTok.Text)}
	p.s.SkipSpace()
	if p.s.Match("(") {
		params, err := p.paramList(')')
		if err != nil {
			return nil, err
		}
		if !p.s.Match(")") {
			return nil, p.errHere("')'")
		}
		fn.Params = params
	}
	p.s.SkipBlank()
	bodyStart := p.s.Pos()
	if !p.s.Match("{") {
		return nil, p.errHere("'{'")
	}
	p.skipTerminators()
	// A param(...) opener inside the body declares the parameters.
	if p.s.MatchFold("param") {
		p.s.SkipBlank()
		if !p.s.Match("(") {
			return nil, p.errHere("'('")
		}
		params, err := p.paramList(')')
		if err != nil {
			return nil, err
		}
		if !p.s.Match(")") {
			return nil, p.errHere("')'")
		}
		if len(fn.Params) == 0 {
			fn.Params = params
		}
	}
	stmts, err := p.statementsUntil('}')
	if err != nil {
		return nil, err
	}
	if !p.s.Match("}") {
		return nil, p.errHere("'}'")
	}
	fn.Body = &ast.Block{Stmts: stmts, Pos: ast.Span{Start: bodyStart, End: p.s.Pos()}}
	fn.Pos = ast.Span{Start: start, End: p.s.Pos()}
	return fn, nil
}

// paramList parses comma separated parameter declarations:
// [type]$name = default, [switch]$flag, $plain.
func (p *parser) paramList(close byte) ([]ast.Param, error) {
	var params []ast.Param
	for {
		p.s.SkipBlank()
		if p.s.Peek() == close {
			return params, nil
		}
		start := p.s.Pos()
		param := ast.Param{}
		if p.s.Peek() == '[' {
			tl, ok := p.tryTypeLit()
			if !ok {
				return nil, p.errHere("type name")
			}
			if tl.Name == "switch" {
				param.Switch = true
			} else {
				param.Type = tl.Name
			}
			p.s.SkipBlank()
		}
		tok, ok := p.s.ScanVariable()
		if !ok {
			return nil, p.errHere("parameter variable")
		}
		param.Name = p.varRefFromToken(tok).Name
		p.s.SkipBlank()
		if p.s.Peek() == '=' && p.peekAt(1) != '=' {
			p.s.Match("=")
			p.s.SkipBlank()
			// Commas separate parameters here, not array elements.
			p.noComma++
			def, err := p.logicalExpr()
			p.noComma--
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		param.Pos = ast.Span{Start: start, End: p.s.Pos()}
		params = append(params, param)
		p.s.SkipBlank()
		if !p.s.Match(",") {
			return params, nil
		}
	}
}

func (p *parser) varRefFromToken(tok lexer.Token) *ast.VarRef {
	text := tok.Text[1:] // strip $
	if strings.HasPrefix(text, "{") {
		text = strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}")
	}
	scope := ""
	if colon := strings.Index(text, ":"); colon >= 0 {
		scope = strings.ToLower(text[:colon])
		text = text[colon+1:]
	}
	return &ast.VarRef{
		Scope: scope,
		Name:  strings.ToLower(text),
		Raw:   tok.Text,
		Pos:   tok.Span,
	}
}
