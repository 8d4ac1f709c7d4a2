package parser

import (
	"strings"

	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/runtime/lexer"
)

// stringAtom parses any string literal form into its AST node. Expandable
// strings keep their raw text and lower their interior into parts: literal
// runs (escapes decoded), variable references, and subexpressions.
func (p *parser) stringAtom() (ast.Expression, error) {
	tok, ok := p.s.ScanString()
	if !ok {
		return nil, p.errHere("string literal")
	}
	switch tok.Type {
	case lexer.STRING:
		return &ast.StringLit{Value: decodeVerbatim(tok.Text), Pos: tok.Span}, nil
	case lexer.STRING_EXPANDABLE:
		parts, err := p.parseExpandableParts(tok.Span.Start+1, tok.Span.End-1)
		if err != nil {
			return nil, err
		}
		return &ast.ExpandableString{Raw: tok.Text, Parts: parts, Pos: tok.Span}, nil
	case lexer.HERE_STRING:
		return &ast.StringLit{Value: hereStringBody(tok.Text), Pos: tok.Span}, nil
	case lexer.HERE_STRING_EXPAND:
		body := hereStringBody(tok.Text)
		offset := tok.Span.Start + strings.IndexByte(tok.Text, '\n') + 1
		parts, err := p.parseExpandableParts(offset, offset+len(body))
		if err != nil {
			return nil, err
		}
		return &ast.ExpandableString{Raw: tok.Text, Parts: parts, Pos: tok.Span}, nil
	}
	return nil, p.errHere("string literal")
}

// decodeVerbatim strips the surrounding single quotes and collapses the
// doubled interior quote.
func decodeVerbatim(text string) string {
	inner := text[1 : len(text)-1]
	return strings.ReplaceAll(inner, "''", "'")
}

// hereStringBody extracts the content between the opener line and the
// closing delimiter line.
func hereStringBody(text string) string {
	idx := strings.IndexByte(text, '\n')
	if idx < 0 {
		return ""
	}
	body := text[idx+1 : len(text)-2]
	body = strings.TrimSuffix(body, "\r")
	body = strings.TrimSuffix(body, "\n")
	return strings.TrimSuffix(body, "\r")
}

// parseExpandableParts lowers the interior of a double-quoted string.
// Offsets index the original source so spans stay global.
func (p *parser) parseExpandableParts(start, end int) ([]ast.Expression, error) {
	var parts []ast.Expression
	var sb strings.Builder
	textStart := start
	flush := func(endPos int) {
		if sb.Len() > 0 {
			parts = append(parts, &ast.StringText{
				Value: sb.String(),
				Pos:   ast.Span{Start: textStart, End: endPos},
			})
			sb.Reset()
		}
	}
	i := start
	for i < end {
		c := p.src[i]
		switch {
		case c == '`' && i+1 < end:
			sb.WriteString(decodeEscape(p.src[i+1]))
			i += 2
		case c == '"' && i+1 < end && p.src[i+1] == '"':
			sb.WriteByte('"')
			i += 2
		case c == '$' && i+1 < end && p.src[i+1] == '(':
			flush(i)
			sub := &parser{s: lexer.New(p.src), src: p.src}
			sub.s.SetPos(i)
			x, err := sub.atom()
			if err != nil {
				return nil, err
			}
			parts = append(parts, x)
			i = sub.s.Pos()
			textStart = i
		case c == '$' && i+1 < end && startsVariable(p.src[i+1]):
			sc := lexer.New(p.src)
			sc.SetPos(i)
			tok, ok := sc.ScanVariable()
			if !ok {
				sb.WriteByte(c)
				i++
				continue
			}
			flush(i)
			parts = append(parts, p.varRefFromToken(tok))
			i = sc.Pos()
			textStart = i
		default:
			sb.WriteByte(c)
			i++
		}
	}
	flush(end)
	return parts, nil
}

func startsVariable(c byte) bool {
	return isWordStart(c) || c == '{' || c == '?' || (c >= '0' && c <= '9')
}

// decodeEscape maps a backtick escape to its character; unknown escapes
// yield the character itself, matching PowerShell.
func decodeEscape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '0':
		return "\x00"
	case 'a':
		return "\a"
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case 'v':
		return "\v"
	case 'e':
		return "\x1b"
	default:
		return string(c)
	}
}
