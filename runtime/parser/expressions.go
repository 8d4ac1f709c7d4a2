package parser

import (
	"strconv"
	"strings"

	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/runtime/lexer"
)

// comparison-tier dashed operators, base spellings; c/i variants accepted
// for all of them.
var comparisonOps = map[string]bool{
	"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true,
	"like": true, "notlike": true, "match": true, "notmatch": true,
	"contains": true, "notcontains": true, "in": true, "notin": true,
	"replace": true, "split": true, "join": true, "is": true, "isnot": true,
}

var bitwiseOps = map[string]bool{"band": true, "bor": true, "bxor": true}

var shiftOps = map[string]bool{"shl": true, "shr": true}

var logicalOps = map[string]bool{"and": true, "or": true, "xor": true}

var unaryDashOps = map[string]bool{"not": true, "bnot": true, "join": true, "split": true}

var formatOp = map[string]bool{"f": true}

// dashOp consumes `-word` when word belongs to the given set (with c/i
// variants when allowed); otherwise the cursor is untouched.
func (p *parser) dashOp(set map[string]bool, caseVariants bool) (string, bool) {
	save := p.s.Pos()
	p.s.SkipSpace()
	if p.s.Peek() != '-' || !isWordStart(p.peekAt(1)) {
		p.s.SetPos(save)
		return "", false
	}
	p.s.Match("-")
	tok, ok := p.s.ScanIdent()
	if !ok {
		p.s.SetPos(save)
		return "", false
	}
	word := strings.ToLower(tok.Text)
	if set[word] {
		return word, true
	}
	if caseVariants && len(word) > 1 && (word[0] == 'c' || word[0] == 'i') && set[word[1:]] {
		return word, true
	}
	p.s.SetPos(save)
	return "", false
}

// expression is the loosest expression tier.
func (p *parser) expression() (ast.Expression, error) {
	return p.logicalExpr()
}

func (p *parser) logicalExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.bitwiseExpr()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.dashOp(logicalOps, false)
		if !ok {
			return left, nil
		}
		p.s.SkipBlank()
		right, err := p.bitwiseExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "-" + op, L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}
	}
}

func (p *parser) bitwiseExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.comparisonExpr()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.dashOp(bitwiseOps, false)
		if !ok {
			return left, nil
		}
		p.s.SkipBlank()
		right, err := p.comparisonExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "-" + op, L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}
	}
}

func (p *parser) comparisonExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.shiftExpr()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.dashOp(comparisonOps, true)
		if !ok {
			return left, nil
		}
		p.s.SkipBlank()
		right, err := p.shiftExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "-" + op, L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}
	}
}

func (p *parser) shiftExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.additiveExpr()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.dashOp(shiftOps, false)
		if !ok {
			return left, nil
		}
		p.s.SkipBlank()
		right, err := p.additiveExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "-" + op, L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}
	}
}

func (p *parser) additiveExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.multiplicativeExpr()
	if err != nil {
		return nil, err
	}
	for {
		p.s.SkipSpace()
		var op string
		switch {
		case p.s.Peek() == '+' && p.peekAt(1) != '+' && p.peekAt(1) != '=':
			p.s.Match("+")
			op = "+"
		case p.s.Peek() == '-' && p.peekAt(1) != '-' && p.peekAt(1) != '=':
			// A dashed word here belongs to another tier or a command
			// parameter; only a true minus continues this tier.
			if isWordStart(p.peekAt(1)) {
				return left, nil
			}
			p.s.Match("-")
			op = "-"
		default:
			return left, nil
		}
		p.s.SkipBlank()
		right, err := p.multiplicativeExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}
	}
}

func (p *parser) multiplicativeExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.formatExpr()
	if err != nil {
		return nil, err
	}
	for {
		p.s.SkipSpace()
		var op string
		switch {
		case p.s.Peek() == '*' && p.peekAt(1) != '=':
			p.s.Match("*")
			op = "*"
		case p.s.Peek() == '/' && p.peekAt(1) != '=':
			p.s.Match("/")
			op = "/"
		case p.s.Peek() == '%' && p.peekAt(1) != '=':
			p.s.Match("%")
			op = "%"
		default:
			return left, nil
		}
		p.s.SkipBlank()
		right, err := p.formatExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}
	}
}

func (p *parser) formatExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.rangeExpr()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.dashOp(formatOp, false); !ok {
			return left, nil
		}
		p.s.SkipBlank()
		right, err := p.rangeExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "-f", L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}
	}
}

func (p *parser) rangeExpr() (ast.Expression, error) {
	start := p.s.Pos()
	left, err := p.commaExpr()
	if err != nil {
		return nil, err
	}
	p.s.SkipSpace()
	if !p.s.Match("..") {
		return left, nil
	}
	p.s.SkipBlank()
	right, err := p.commaExpr()
	if err != nil {
		return nil, err
	}
	return &ast.RangeExpr{L: left, R: right, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

// commaExpr builds array literals: the comma operator binds just below the
// unary tier, so `"b","c"` forms the right operand of -replace and
// `1, 2, 3` is one array. Method argument lists suppress it so their commas
// separate arguments instead.
func (p *parser) commaExpr() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	if p.noComma == 0 && p.s.Peek() == ',' {
		// Unary comma builds a one-element array.
		p.s.Match(",")
		p.s.SkipBlank()
		first, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ArrayLit{Elems: []ast.Expression{first}, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	}
	first, err := p.castExpr()
	if err != nil {
		return nil, err
	}
	if p.noComma > 0 {
		return first, nil
	}
	p.s.SkipSpace()
	if p.s.Peek() != ',' {
		return first, nil
	}
	elems := []ast.Expression{first}
	for p.s.Match(",") {
		p.s.SkipBlank()
		next, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, next)
		p.s.SkipSpace()
	}
	return &ast.ArrayLit{Elems: elems, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

// castExpr handles `[T]operand`. A bracketed type not followed by an
// operand stays a type literal (the base of `::` static access).
func (p *parser) castExpr() (ast.Expression, error) {
	p.s.SkipSpace()
	save := p.s.Pos()
	if p.s.Peek() == '[' {
		tl, ok := p.tryTypeLit()
		if ok {
			afterType := p.s.Pos()
			p.s.SkipSpace()
			if p.startsOperand() {
				x, err := p.castExpr()
				if err != nil {
					return nil, err
				}
				return &ast.Cast{Type: tl.Name, X: x, Pos: ast.Span{Start: save, End: p.s.Pos()}}, nil
			}
			p.s.SetPos(afterType)
			return p.postfixFrom(tl, save)
		}
		p.s.SetPos(save)
	}
	return p.unaryExpr()
}

// startsOperand reports whether the cursor begins a castable operand.
func (p *parser) startsOperand() bool {
	switch c := p.s.Peek(); {
	case c == '$' || c == '\'' || c == '"' || c == '(' || c == '@' || c == '[':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' && p.peekAt(1) >= '0' && p.peekAt(1) <= '9':
		return true
	case c == '-' || c == '+' || c == '!':
		return true
	}
	return false
}

func (p *parser) unaryExpr() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	switch {
	case p.s.Match("++"):
		x, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "++", X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	case p.s.Match("--"):
		x, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "--", X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	case p.s.Peek() == '-' && isWordStart(p.peekAt(1)):
		if op, ok := p.dashOp(unaryDashOps, false); ok {
			p.s.SkipBlank()
			x, err := p.castExpr()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: "-" + op, X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
		}
		return nil, p.errHere("operand")
	case p.s.Peek() == '-' && p.peekAt(1) != '-':
		p.s.Match("-")
		x, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "-", X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	case p.s.Peek() == '+' && p.peekAt(1) != '+':
		p.s.Match("+")
		x, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "+", X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	case p.s.Peek() == '!':
		p.s.Match("!")
		p.s.SkipSpace()
		x, err := p.castExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "!", X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	}
	return p.postfixExpr()
}

func (p *parser) postfixExpr() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	return p.postfixFrom(x, start)
}

// postfixFrom chains member access, static access, method invocation,
// indexing and postfix ++/-- onto a parsed base. Suffixes bind only when
// adjacent, matching PowerShell's lexical rules.
func (p *parser) postfixFrom(x ast.Expression, start int) (ast.Expression, error) {
	for {
		switch {
		case p.s.Peek() == '.' && isWordStart(p.peekAt(1)):
			p.s.Match(".")
			tok, _ := p.s.ScanIdent()
			name := strings.ToLower(tok.Text)
			if p.s.Peek() == '(' {
				args, err := p.argumentList()
				if err != nil {
					return nil, err
				}
				x = &ast.MethodCall{X: x, Name: name, Raw: tok.Text, Args: args,
					Pos: ast.Span{Start: start, End: p.s.Pos()}}
			} else {
				x = &ast.Member{X: x, Name: name, Raw: tok.Text,
					Pos: ast.Span{Start: start, End: p.s.Pos()}}
			}
		case p.s.Peek() == ':' && p.peekAt(1) == ':':
			p.s.Match("::")
			tok, ok := p.s.ScanIdent()
			if !ok {
				return nil, p.errHere("member name")
			}
			name := strings.ToLower(tok.Text)
			if p.s.Peek() == '(' {
				args, err := p.argumentList()
				if err != nil {
					return nil, err
				}
				x = &ast.MethodCall{X: x, Name: name, Raw: tok.Text, Args: args, Static: true,
					Pos: ast.Span{Start: start, End: p.s.Pos()}}
			} else {
				x = &ast.Member{X: x, Name: name, Raw: tok.Text, Static: true,
					Pos: ast.Span{Start: start, End: p.s.Pos()}}
			}
		case p.s.Peek() == '[':
			idx, err := p.indexSuffix(x, start)
			if err != nil {
				return nil, err
			}
			x = idx
		case p.s.Peek() == '+' && p.peekAt(1) == '+':
			p.s.Match("++")
			x = &ast.Unary{Op: "++", X: x, Postfix: true, Pos: ast.Span{Start: start, End: p.s.Pos()}}
		case p.s.Peek() == '-' && p.peekAt(1) == '-':
			p.s.Match("--")
			x = &ast.Unary{Op: "--", X: x, Postfix: true, Pos: ast.Span{Start: start, End: p.s.Pos()}}
		default:
			return x, nil
		}
	}
}

func (p *parser) indexSuffix(x ast.Expression, start int) (ast.Expression, error) {
	if !p.s.Match("[") {
		return nil, p.errHere("'['")
	}
	p.s.SkipBlank()
	// A comma list such as $a[1,3] arrives as one array-valued index.
	arg, err := p.logicalExpr()
	if err != nil {
		return nil, err
	}
	p.s.SkipBlank()
	if !p.s.Match("]") {
		return nil, p.errHere("']'")
	}
	return &ast.Index{X: x, Args: []ast.Expression{arg}, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
}

// argumentList parses `( expr, expr, ... )` for method invocations.
func (p *parser) argumentList() ([]ast.Expression, error) {
	if !p.s.Match("(") {
		return nil, p.errHere("'('")
	}
	var args []ast.Expression
	p.s.SkipBlank()
	if p.s.Match(")") {
		return args, nil
	}
	p.noComma++
	defer func() { p.noComma-- }()
	for {
		arg, err := p.logicalExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.s.SkipBlank()
		if p.s.Match(",") {
			p.s.SkipBlank()
			continue
		}
		if p.s.Match(")") {
			return args, nil
		}
		return nil, p.errHere("',' or ')'")
	}
}

// tryTypeLit parses `[Qualified.Type.Name]` or `[object[]]`.
func (p *parser) tryTypeLit() (*ast.TypeLit, bool) {
	save := p.s.Pos()
	if !p.s.Match("[") {
		return nil, false
	}
	p.s.SkipBlank()
	var sb strings.Builder
	tok, ok := p.s.ScanIdent()
	if !ok {
		p.s.SetPos(save)
		return nil, false
	}
	sb.WriteString(tok.Text)
	for p.s.Peek() == '.' && isWordStart(p.peekAt(1)) {
		p.s.Match(".")
		seg, ok := p.s.ScanIdent()
		if !ok {
			p.s.SetPos(save)
			return nil, false
		}
		sb.WriteString(".")
		sb.WriteString(seg.Text)
	}
	if p.s.Match("[]") {
		sb.WriteString("[]")
	}
	p.s.SkipBlank()
	if !p.s.Match("]") {
		p.s.SetPos(save)
		return nil, false
	}
	return &ast.TypeLit{
		Name: strings.ToLower(sb.String()),
		Raw:  p.src[save:p.s.Pos()],
		Pos:  ast.Span{Start: save, End: p.s.Pos()},
	}, true
}

func (p *parser) atom() (ast.Expression, error) {
	p.s.SkipSpace()
	start := p.s.Pos()
	c := p.s.Peek()
	switch {
	case c == 0:
		return nil, p.errHere("expression")
	case c == '$' && p.peekAt(1) == '(':
		p.s.Match("$(")
		stmts, err := p.statementsUntil(')')
		if err != nil {
			return nil, err
		}
		if !p.s.Match(")") {
			return nil, p.errHere("')'")
		}
		return &ast.SubExpr{Stmts: stmts, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	case c == '$':
		tok, ok := p.s.ScanVariable()
		if !ok {
			return nil, p.errHere("variable")
		}
		return p.varRefFromToken(tok), nil
	case c == '@' && p.peekAt(1) == '(':
		p.s.Match("@(")
		stmts, err := p.statementsUntil(')')
		if err != nil {
			return nil, err
		}
		if !p.s.Match(")") {
			return nil, p.errHere("')'")
		}
		return &ast.ArraySubExpr{Stmts: stmts, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	case c == '@' && p.peekAt(1) == '{':
		return p.hashLiteral(start)
	case c == '\'' || c == '"' || (c == '@' && (p.peekAt(1) == '\'' || p.peekAt(1) == '"')):
		return p.stringAtom()
	case c >= '0' && c <= '9', c == '.' && p.peekAt(1) >= '0' && p.peekAt(1) <= '9':
		tok, ok := p.s.ScanNumber()
		if !ok {
			return nil, p.errHere("number")
		}
		return lowerNumber(tok)
	case c == '(':
		p.s.Match("(")
		p.s.SkipBlank()
		saved := p.noComma
		p.noComma = 0
		defer func() { p.noComma = saved }()
		// Parenthesised assignment yields the assigned value: ($i = 0).
		if target, ok := p.tryLValue(); ok {
			p.s.SkipSpace()
			if op, ok := p.assignOp(); ok {
				p.s.SkipBlank()
				rhs, err := p.pipeline()
				if err != nil {
					return nil, err
				}
				p.s.SkipBlank()
				if !p.s.Match(")") {
					return nil, p.errHere("')'")
				}
				return &ast.AssignExpr{
					Target: target,
					Op:     op,
					Value:  rhs,
					Pos:    ast.Span{Start: start, End: p.s.Pos()},
				}, nil
			}
		}
		p.s.SetPos(start)
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
		return &ast.Paren{X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	case c == '{':
		return p.scriptBlockLiteral(start)
	case c == '[':
		if tl, ok := p.tryTypeLit(); ok {
			return tl, nil
		}
		return nil, p.errHere("type literal")
	case c == '&':
		p.s.Match("&")
		p.s.SkipBlank()
		x, err := p.postfixExpr()
		if err != nil {
			return nil, err
		}
		return &ast.CallOp{X: x, Pos: ast.Span{Start: start, End: p.s.Pos()}}, nil
	}
	return nil, p.errHere("expression")
}

func (p *parser) hashLiteral(start int) (ast.Expression, error) {
	p.s.Match("@{")
	lit := &ast.HashLit{}
	for {
		p.skipTerminators()
		if p.s.Match("}") {
			lit.Pos = ast.Span{Start: start, End: p.s.Pos()}
			return lit, nil
		}
		if p.s.EOF() {
			return nil, p.errHere("'}'")
		}
		raw, err := p.hashKey()
		if err != nil {
			return nil, err
		}
		p.s.SkipBlank()
		if p.s.Peek() != '=' || p.peekAt(1) == '=' {
			return nil, p.errHere("'='")
		}
		p.s.Match("=")
		p.s.SkipBlank()
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		lit.Entries = append(lit.Entries, ast.HashEntry{
			Key:   strings.ToLower(raw),
			Raw:   raw,
			Value: value,
		})
	}
}

func (p *parser) hashKey() (string, error) {
	if tok, ok := p.s.ScanIdent(); ok {
		return tok.Text, nil
	}
	if tok, ok := p.s.ScanString(); ok {
		return decodeVerbatim(tok.Text), nil
	}
	if tok, ok := p.s.ScanNumber(); ok {
		return tok.Text, nil
	}
	return "", p.errHere("hash table key")
}

func (p *parser) scriptBlockLiteral(start int) (ast.Expression, error) {
	if !p.s.Match("{") {
		return nil, p.errHere("'{'")
	}
	lit := &ast.ScriptBlockLit{}
	p.skipTerminators()
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
		lit.Params = params
	}
	stmts, err := p.statementsUntil('}')
	if err != nil {
		return nil, err
	}
	if !p.s.Match("}") {
		return nil, p.errHere("'}'")
	}
	span := ast.Span{Start: start, End: p.s.Pos()}
	lit.Body = &ast.Block{Stmts: stmts, Pos: span}
	lit.Pos = span
	return lit, nil
}

// lowerNumber canonicalizes a numeric token: hex and binary bases parse to
// Int, a multiplier suffix scales, fractional or exponent forms produce a
// Double.
func lowerNumber(tok lexer.Token) (ast.Expression, error) {
	text := tok.Text
	lower := strings.ToLower(text)
	scale := int64(1)
	switch {
	case strings.HasSuffix(lower, "kb"):
		scale = 1 << 10
	case strings.HasSuffix(lower, "mb"):
		scale = 1 << 20
	case strings.HasSuffix(lower, "gb"):
		scale = 1 << 30
	case strings.HasSuffix(lower, "tb"):
		scale = 1 << 40
	case strings.HasSuffix(lower, "pb"):
		scale = 1 << 50
	}
	if scale > 1 {
		lower = lower[:len(lower)-2]
	}
	if strings.HasPrefix(lower, "0x") {
		v, err := strconv.ParseInt(lower[2:], 16, 64)
		if err != nil {
			return nil, &ParseError{Span: tok.Span, Message: "invalid hex literal " + text}
		}
		return &ast.IntLit{Value: v * scale, Pos: tok.Span}, nil
	}
	if strings.HasPrefix(lower, "0b") {
		v, err := strconv.ParseInt(lower[2:], 2, 64)
		if err != nil {
			return nil, &ParseError{Span: tok.Span, Message: "invalid binary literal " + text}
		}
		return &ast.IntLit{Value: v * scale, Pos: tok.Span}, nil
	}
	if strings.ContainsAny(lower, ".e") {
		f, err := strconv.ParseFloat(lower, 64)
		if err != nil {
			return nil, &ParseError{Span: tok.Span, Message: "invalid numeric literal " + text}
		}
		return &ast.DoubleLit{Value: f * float64(scale), Pos: tok.Span}, nil
	}
	v, err := strconv.ParseInt(lower, 10, 64)
	if err != nil {
		return nil, &ParseError{Span: tok.Span, Message: "invalid numeric literal " + text}
	}
	return &ast.IntLit{Value: v * scale, Pos: tok.Span}, nil
}
