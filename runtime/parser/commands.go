package parser

import (
	"strings"

	"github.com/radkum/ps-parser/core/ast"
)

// pipeline parses `stage | stage | ...`, collapsing single stages.
func (p *parser) pipeline() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	first, err := p.pipelineStage()
	if err != nil {
		return nil, err
	}
	stages := []ast.Expression{first}
	for {
		p.s.SkipSpace()
		if p.s.Peek() != '|' {
			break
		}
		p.s.Match("|")
		p.s.SkipBlank()
		next, err := p.pipelineStage()
		if err != nil {
			return nil, err
		}
		stages = append(stages, next)
	}
	if len(stages) == 1 {
		return stages[0], nil
	}
	return &ast.Pipeline{Stages: stages, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

// pipelineStage parses one stage: a command invocation, a call operator, or
// a plain expression. A bareword in stage position is always a command;
// barewords are never expressions in PowerShell.
func (p *parser) pipelineStage() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	c := p.s.Peek()
	switch {
	case c == '&':
		p.s.Match("&")
		return p.callOperator(start, false)
	case c == '.' && (p.peekAt(1) == ' ' || p.peekAt(1) == '\t' || p.peekAt(1) == '{'):
		p.s.Match(".")
		return p.callOperator(start, true)
	case c == '%' && !isWordStart(p.peekAt(1)):
		// Alias for ForEach-Object in command position.
		p.s.Match("%")
		return p.commandFrom("foreach-object", "%", start)
	case c == '?' && !isWordStart(p.peekAt(1)):
		p.s.Match("?")
		return p.commandFrom("where-object", "?", start)
	case isWordStart(c):
		save := p.s.Pos()
		tok, ok := p.s.ScanIdent()
		if ok {
			return p.commandFrom(strings.ToLower(tok.Text), tok.Text, start)
		}
		p.s.SetPos(save)
	}
	return p.expression()
}

func (p *parser) callOperator(start int, dot bool) (ast.Expression, error) {
	p.s.SkipBlank()
	var x ast.Expression
	var err error
	switch {
	case p.s.Peek() == '{':
		x, err = p.scriptBlockLiteral(p.s.Pos())
	case p.s.Peek() == '$':
		x, err = p.postfixExpr()
	case p.s.Peek() == '\'' || p.s.Peek() == '"':
		x, err = p.stringAtom()
	default:
		if tok, ok := p.s.ScanIdent(); ok {
			x = &ast.StringLit{Value: tok.Text, Pos: tok.Span}
		} else {
			return nil, p.errHere("script block or command name")
		}
	}
	if err != nil {
		return nil, err
	}
	return &ast.CallOp{Dot: dot, X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

// commandFrom parses the argument list of a command whose name is already
// consumed.
func (p *parser) commandFrom(name, raw string, start int) (ast.Expression, error) {
	cmd := &ast.Command{Name: name, Raw: raw}
	for {
		p.s.SkipSpace()
		c := p.s.Peek()
		if c == 0 || c == '\n' || c == ';' || c == '|' || c == ')' || c == '}' || c == '#' {
			break
		}
		if c == '-' && isWordStart(p.peekAt(1)) {
			tok, _ := p.s.ScanParameter()
			arg := ast.CommandArg{
				Name: strings.ToLower(tok.Text[1:]),
				Raw:  tok.Text,
				Pos:  tok.Span,
			}
			// A following non-parameter value binds to this parameter.
			save := p.s.Pos()
			p.s.SkipSpace()
			nc := p.s.Peek()
			if nc != 0 && nc != '\n' && nc != ';' && nc != '|' && nc != ')' && nc != '}' &&
				!(nc == '-' && isWordStart(p.peekAt(1))) {
				value, err := p.commandArgValue()
				if err != nil {
					return nil, err
				}
				arg.Value = value
				arg.Pos.End = p.s.Pos()
			} else {
				p.s.SetPos(save)
			}
			cmd.Args = append(cmd.Args, arg)
			continue
		}
		value, err := p.commandArgValue()
		if err != nil {
			return nil, err
		}
		cmd.Args = append(cmd.Args, ast.CommandArg{Value: value, Pos: value.Span()})
	}
	cmd.Pos = ast.Span{Start: start, End: p.s.Pos()}
	return cmd, nil
}

// commandArgValue parses one command argument in argument mode: expression
// syntax for parenthesised and sigil-led forms, implicit strings for
// barewords, with comma lists building arrays.
func (p *parser) commandArgValue() (ast.Expression, error) {
	first, err := p.commandArgPrimary()
	if err != nil {
		return nil, err
	}
	p.s.SkipSpace()
	if p.s.Peek() != ',' {
		return first, nil
	}
	elems := []ast.Expression{first}
	start := first.Span().Start
	for p.s.Match(",") {
		p.s.SkipBlank()
		next, err := p.commandArgPrimary()
		if err != nil {
			return nil, err
		}
		elems = append(elems, next)
		p.s.SkipSpace()
	}
	return &ast.ArrayLit{Elems: elems, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

func (p *parser) commandArgPrimary() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	c := p.s.Peek()
	switch {
	case c == '(':
		p.s.Match("(")
		p.s.SkipBlank()
		x, err := p.pipeline()
		if err != nil {
			return nil, err
		}
		p.s.SkipBlank()
		if !p.s.Match(")") {
			return nil, p.errHere("')'")
		}
		return p.postfixFrom(&ast.Paren{X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, start)
	case c == '$' && p.peekAt(1) == '(':
		return p.postfixAtom()
	case c == '$':
		return p.postfixAtom()
	case c == '@' || c == '\'' || c == '"':
		return p.postfixAtom()
	case c == '{':
		return p.scriptBlockLiteral(start)
	case c == '[':
		return p.castExpr()
	case c >= '0' && c <= '9':
		save := p.s.Pos()
		if tok, ok := p.s.ScanNumber(); ok {
			// Numbers followed by bareword tails (e.g. 7z) fall back to a
			// bare string argument.
			next := p.s.Peek()
			if next == 0 || next == ' ' || next == '\t' || next == '\r' || next == '\n' ||
				next == ';' || next == '|' || next == ')' || next == '}' || next == ',' {
				return lowerNumber(tok)
			}
		}
		p.s.SetPos(save)
		fallthrough
	default:
		tok, ok := p.s.ScanBareArgument()
		if !ok {
			return nil, p.errHere("command argument")
		}
		return &ast.StringLit{Value: tok.Text, Pos: tok.Span}, nil
	}
}

// postfixAtom parses an atom followed by its postfix chain, used in
// argument position where infix operators do not apply.
func (p *parser) postfixAtom() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	return p.postfixFrom(x, start)
}
