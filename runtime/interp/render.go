package interp

import (
	"strings"

	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/core/values"
)

// The renderer produces the deobfuscated text. Expressions that evaluated
// cleanly print as literals; everything else re-renders structurally with
// original command names and lowercased identifiers, so unsafe fragments
// survive verbatim while their safe sub-expressions collapse.

// renderValue prints a literal, except for ranges too long to realize,
// which keep their original a..b spelling.
func (e *Evaluator) renderValue(v values.Val, orig ast.Node) string {
	if r, ok := v.(values.Range); ok && r.Count() > int64(e.sess.Opts.RangeRenderLimit) {
		return e.spanText(orig)
	}
	return values.Literal(v)
}

// renderAssignLine emits the canonical reduced assignment: the scope
// qualifier drops and the name lowercases.
func (e *Evaluator) renderAssignLine(s *ast.Assign, rhs values.Val) string {
	target := ""
	if ref, ok := s.Target.(*ast.VarRef); ok {
		target = "$" + ref.Name
	} else {
		target = e.renderExpr(s.Target)
	}
	return target + " = " + e.renderValue(rhs, s.Value)
}

func (e *Evaluator) renderStmt(s ast.Statement) string {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return e.renderExpr(st.X)
	case *ast.Assign:
		return e.renderExpr(st.Target) + " " + st.Op + " " + e.renderExpr(st.Value)
	default:
		return e.spanText(s)
	}
}

func (e *Evaluator) renderExpr(x ast.Expression) string {
	// Bareword arguments keep their spelling even though they evaluated to
	// strings; quoting them would change the command line's shape.
	if _, isLit := x.(*ast.StringLit); !isLit {
		if v, ok := e.vals[x]; ok {
			return e.renderValue(v, x)
		}
	}
	switch n := x.(type) {
	case *ast.NullLit:
		return "$null"
	case *ast.BoolLit:
		if n.Value {
			return "$true"
		}
		return "$false"
	case *ast.IntLit:
		return values.Literal(values.Int(n.Value))
	case *ast.DoubleLit:
		return values.Literal(values.Double(n.Value))
	case *ast.StringLit:
		if e.isBareword(n) {
			return e.spanText(n)
		}
		return values.Literal(values.Str(n.Value))
	case *ast.ExpandableString:
		return n.Raw
	case *ast.VarRef:
		if n.Scope != "" {
			return "$" + n.Scope + ":" + n.Name
		}
		return "$" + n.Name
	case *ast.Unary:
		inner := e.renderExpr(n.X)
		if n.Postfix {
			return inner + n.Op
		}
		if strings.HasPrefix(n.Op, "-") && len(n.Op) > 1 {
			return n.Op + " " + inner
		}
		return n.Op + inner
	case *ast.Binary:
		return e.renderExpr(n.L) + " " + n.Op + " " + e.renderExpr(n.R)
	case *ast.RangeExpr:
		return e.renderExpr(n.L) + ".." + e.renderExpr(n.R)
	case *ast.Index:
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			parts[i] = e.renderExpr(a)
		}
		return e.renderExpr(n.X) + "[" + strings.Join(parts, ",") + "]"
	case *ast.Member:
		if n.Static {
			return e.renderExpr(n.X) + "::" + n.Name
		}
		return e.renderExpr(n.X) + "." + n.Name
	case *ast.MethodCall:
		sep := "."
		if n.Static {
			sep = "::"
		}
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			parts[i] = e.renderExpr(a)
		}
		return e.renderExpr(n.X) + sep + n.Name + "(" + strings.Join(parts, ",") + ")"
	case *ast.TypeLit:
		return "[" + n.Name + "]"
	case *ast.Cast:
		return "[" + n.Type + "]" + e.renderExpr(n.X)
	case *ast.SubExpr, *ast.ArraySubExpr, *ast.HashLit, *ast.ScriptBlockLit:
		return e.spanText(x)
	case *ast.ArrayLit:
		parts := make([]string, len(n.Elems))
		for i, el := range n.Elems {
			parts[i] = e.renderExpr(el)
		}
		return strings.Join(parts, ",")
	case *ast.Paren:
		return "(" + e.renderExpr(n.X) + ")"
	case *ast.AssignExpr:
		return "(" + e.renderExpr(n.Target) + " " + n.Op + " " + e.renderExpr(n.Value) + ")"
	case *ast.Command:
		return e.renderCommand(n)
	case *ast.Pipeline:
		parts := make([]string, len(n.Stages))
		for i, st := range n.Stages {
			parts[i] = e.renderExpr(st)
		}
		return strings.Join(parts, " | ")
	case *ast.CallOp:
		op := "&"
		if n.Dot {
			op = "."
		}
		return op + " " + e.renderExpr(n.X)
	}
	return e.spanText(x)
}

// renderCommand keeps the command and parameter spellings verbatim while
// substituting safely evaluated argument values.
func (e *Evaluator) renderCommand(n *ast.Command) string {
	parts := []string{n.Raw}
	for _, arg := range n.Args {
		if arg.Name != "" {
			parts = append(parts, arg.Raw)
			if arg.Value != nil {
				parts = append(parts, e.renderExpr(arg.Value))
			}
			continue
		}
		parts = append(parts, e.renderExpr(arg.Value))
	}
	return strings.Join(parts, " ")
}

// isBareword reports whether a string literal came from an unquoted
// command argument, which renders without quotes.
func (e *Evaluator) isBareword(n *ast.StringLit) bool {
	span := n.Span()
	if span.Start >= len(e.src) {
		return false
	}
	c := e.src[span.Start]
	return c != '\'' && c != '"' && c != '@'
}
