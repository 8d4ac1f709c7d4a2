package interp

import (
	"strings"

	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/core/values"
)

// evalExpr evaluates one expression node, charging the step budget and the
// recursion bound, and records the result in the renderer overlay when the
// subtree evaluated cleanly.
func (e *Evaluator) evalExpr(x ast.Expression) values.Val {
	if !e.budget() {
		return values.Unknown{}
	}
	if !e.enter() {
		return values.Null{}
	}
	defer e.leave()

	n0 := len(e.errs)
	v := e.evalExprInner(x)
	clean := len(e.errs) == n0
	if clean && !values.IsUnknown(v) {
		e.vals[x] = v
	}
	e.recordExprToken(x, v, clean)
	return v
}

func (e *Evaluator) recordExprToken(x ast.Expression, v values.Val, clean bool) {
	switch x.(type) {
	case *ast.Binary, *ast.Unary, *ast.Cast, *ast.Index, *ast.MethodCall,
		*ast.SubExpr, *ast.RangeExpr:
		if clean {
			e.recordExpression(e.spanText(x), v)
		}
	}
}

func (e *Evaluator) evalExprInner(x ast.Expression) values.Val {
	switch n := x.(type) {
	case *ast.NullLit:
		return values.Null{}
	case *ast.BoolLit:
		return values.Bool(n.Value)
	case *ast.IntLit:
		return values.Int(n.Value)
	case *ast.DoubleLit:
		return values.Double(n.Value)
	case *ast.StringLit:
		e.recordString(e.spanText(n))
		return values.Str(n.Value)
	case *ast.StringText:
		return values.Str(n.Value)
	case *ast.ExpandableString:
		return e.evalExpandable(n)
	case *ast.VarRef:
		return e.evalVarRef(n)
	case *ast.Unary:
		return e.evalUnary(n)
	case *ast.Binary:
		return e.evalBinary(n)
	case *ast.RangeExpr:
		return e.evalRange(n)
	case *ast.Index:
		return e.evalIndex(n)
	case *ast.Member:
		return e.evalMember(n)
	case *ast.MethodCall:
		return e.evalMethodCall(n)
	case *ast.TypeLit:
		return values.Type{Name: n.Name}
	case *ast.Cast:
		v := e.evalExpr(n.X)
		out, err := values.Cast(n.Type, v)
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return out
	case *ast.SubExpr:
		return e.evalStatementValue(n.Stmts)
	case *ast.ArraySubExpr:
		v := e.evalStatementValue(n.Stmts)
		switch a := v.(type) {
		case *values.Array:
			return a
		case values.Null:
			return &values.Array{}
		case values.Range:
			return a.Realize()
		case values.Unknown:
			return a
		default:
			return values.NewArray(v)
		}
	case *ast.ArrayLit:
		arr := &values.Array{}
		for _, el := range n.Elems {
			arr.Items = append(arr.Items, e.evalExpr(el))
		}
		return arr
	case *ast.HashLit:
		ht := values.NewHashTable()
		for _, entry := range n.Entries {
			ht.Set(entry.Raw, e.evalExpr(entry.Value))
		}
		return ht
	case *ast.ScriptBlockLit:
		return &values.ScriptBlock{
			Params:  n.Params,
			Body:    n.Body,
			Source:  e.spanText(n),
			ScopeID: e.sess.CaptureScope(),
		}
	case *ast.Paren:
		return e.evalExpr(n.X)
	case *ast.AssignExpr:
		return e.evalAssignExpr(n)
	case *ast.Command:
		return e.invokeCommand(n, values.Null{}, false)
	case *ast.Pipeline:
		return e.evalPipeline(n)
	case *ast.CallOp:
		return e.evalCallOp(n)
	}
	e.recordError(values.NewUnsupportedOperation("unsupported expression form"))
	return values.Null{}
}

func (e *Evaluator) evalVarRef(n *ast.VarRef) values.Val {
	if n.Scope == "" && n.Name == "?" {
		return values.Bool(e.sess.Status())
	}
	v, err := e.sess.Get(n.Scope, n.Name)
	if err != nil {
		// Unknown variables poison the statement so it re-emits verbatim.
		e.recordError(err)
		return values.Unknown{}
	}
	return v
}

func (e *Evaluator) evalExpandable(n *ast.ExpandableString) values.Val {
	var sb strings.Builder
	opaque := false
	for _, part := range n.Parts {
		v := e.evalExpr(part)
		if values.IsUnknown(v) {
			opaque = true
			continue
		}
		sb.WriteString(v.Display())
	}
	if opaque {
		return values.Unknown{}
	}
	expanded := sb.String()
	e.recordExpandable(e.spanText(n), expanded)
	return values.Str(expanded)
}

func (e *Evaluator) evalUnary(n *ast.Unary) values.Val {
	switch n.Op {
	case "++", "--":
		return e.evalIncDec(n)
	}
	v := e.evalExpr(n.X)
	var out values.Val
	var err error
	switch n.Op {
	case "-":
		out, err = values.Neg(v)
	case "+":
		out, err = values.Add(values.Int(0), v)
	case "!", "-not":
		if values.IsUnknown(v) {
			return values.Unknown{}
		}
		out = values.Bool(!values.Truthy(v))
	case "-bnot":
		out, err = values.BNot(v)
	case "-join":
		out, err = values.Join(v, "")
	case "-split":
		out, err = values.SplitWhitespace(v)
	default:
		err = values.NewUnsupportedOperation("unknown unary operator " + n.Op)
	}
	if err != nil {
		e.recordError(err)
		return values.Null{}
	}
	return out
}

func (e *Evaluator) evalIncDec(n *ast.Unary) values.Val {
	old := e.evalExpr(n.X)
	delta := values.Int(1)
	if n.Op == "--" {
		delta = values.Int(-1)
	}
	updated, err := values.Add(old, delta)
	if err != nil {
		e.recordError(err)
		return values.Null{}
	}
	e.assignTo(n.X, updated)
	if n.Postfix {
		return old
	}
	return updated
}

func (e *Evaluator) evalRange(n *ast.RangeExpr) values.Val {
	l := e.evalExpr(n.L)
	r := e.evalExpr(n.R)
	if values.IsUnknown(l) || values.IsUnknown(r) {
		return values.Unknown{}
	}
	li, err := values.AsInt(l)
	if err != nil {
		e.recordError(err)
		return values.Null{}
	}
	ri, err := values.AsInt(r)
	if err != nil {
		e.recordError(err)
		return values.Null{}
	}
	return values.Range{Start: li, End: ri}
}

func (e *Evaluator) evalBinary(n *ast.Binary) values.Val {
	op := n.Op
	if len(op) > 1 {
		op = strings.TrimPrefix(op, "-")
	}
	l := e.evalExpr(n.L)
	r := e.evalExpr(n.R)

	base, caseSensitive := splitCasePrefix(op)
	var out values.Val
	var err error
	switch base {
	case "+":
		out, err = values.Add(l, r)
	case "-":
		out, err = values.Sub(l, r)
	case "*":
		out, err = values.Mul(l, r)
	case "/":
		out, err = values.Div(l, r)
	case "%":
		out, err = values.Mod(l, r)
	case "eq", "ne", "lt", "le", "gt", "ge":
		out, err = values.Compare(op, l, r)
	case "like", "notlike":
		out, err = values.Like(l, r, caseSensitive, base == "notlike")
	case "match", "notmatch":
		var res values.MatchResult
		res, err = values.Match(l, r, caseSensitive, base == "notmatch")
		if err == nil {
			out = res.Val
			if res.Matches != nil {
				e.sess.SetSpecial("matches", res.Matches)
			}
		}
	case "replace":
		out, err = values.Replace(l, r, caseSensitive)
	case "split":
		out, err = values.Split(l, r, caseSensitive)
	case "join":
		out, err = values.Join(l, r.Display())
	case "contains", "notcontains":
		out, err = values.Contains(l, r, caseSensitive, base == "notcontains")
	case "in", "notin":
		out, err = values.Contains(r, l, caseSensitive, base == "notin")
	case "band", "bor", "bxor":
		out, err = values.Bitwise(base, l, r)
	case "shl", "shr":
		out, err = values.Bitwise(base, l, r)
	case "and", "or", "xor":
		out, err = values.Logical(base, l, r)
	case "is", "isnot":
		out, err = values.Is(l, r, base == "isnot")
	case "f":
		if values.IsUnknown(l) || values.IsUnknown(r) {
			return values.Unknown{}
		}
		args := values.ToIterable(r)
		out, err = values.Format(l.Display(), args, e.sess.Opts.Culture)
	default:
		err = values.NewUnsupportedOperation("unknown operator -" + base)
	}
	if err != nil {
		e.recordError(err)
		return values.Null{}
	}
	return out
}

// splitCasePrefix strips a c/i case prefix from comparison-family
// operators; arithmetic spellings pass through.
func splitCasePrefix(op string) (string, bool) {
	bases := map[string]bool{
		"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true,
		"like": true, "notlike": true, "match": true, "notmatch": true,
		"replace": true, "split": true, "contains": true, "notcontains": true,
		"in": true, "notin": true,
	}
	if len(op) > 1 {
		switch op[0] {
		case 'c':
			if bases[op[1:]] {
				return op[1:], true
			}
		case 'i':
			if bases[op[1:]] {
				return op[1:], false
			}
		}
	}
	return op, false
}

func (e *Evaluator) evalIndex(n *ast.Index) values.Val {
	recv := e.evalExpr(n.X)
	if len(n.Args) != 1 {
		e.recordError(values.NewArityMismatch("index", 1, len(n.Args)))
		return values.Null{}
	}
	idx := e.evalExpr(n.Args[0])
	if values.IsUnknown(recv) || values.IsUnknown(idx) {
		return values.Unknown{}
	}
	v, err := values.IndexInto(recv, idx)
	if err != nil {
		e.recordError(err)
		return values.Null{}
	}
	return v
}

func (e *Evaluator) evalMember(n *ast.Member) values.Val {
	if n.Static {
		base := e.evalExpr(n.X)
		t, ok := base.(values.Type)
		if !ok {
			e.recordError(values.NewUnknownMember(n.Name, base.TypeName()))
			return values.Null{}
		}
		return e.staticMember(t, n.Name)
	}
	recv := e.evalExpr(n.X)
	if values.IsUnknown(recv) {
		return values.Unknown{}
	}
	v, err := e.memberOf(recv, n.Name)
	if err != nil {
		e.recordError(err)
		return values.Null{}
	}
	return v
}

// memberOf resolves instance properties: hash table keys, string length,
// collection counts.
func (e *Evaluator) memberOf(recv values.Val, name string) (values.Val, error) {
	switch r := recv.(type) {
	case *values.HashTable:
		switch name {
		case "count", "keys", "values":
			switch name {
			case "count":
				return values.Int(r.Len()), nil
			case "keys":
				arr := &values.Array{}
				for _, k := range r.Keys() {
					arr.Items = append(arr.Items, values.Str(k))
				}
				return arr, nil
			default:
				arr := &values.Array{}
				for _, k := range r.Keys() {
					v, _ := r.Get(k)
					arr.Items = append(arr.Items, v)
				}
				return arr, nil
			}
		}
		if v, ok := r.Get(name); ok {
			return v, nil
		}
		return values.Null{}, nil
	case values.Str:
		if v, ok := values.StringProperty(string(r), name); ok {
			return v, nil
		}
	case *values.Array:
		switch name {
		case "count", "length":
			return values.Int(len(r.Items)), nil
		}
		// Member access on a collection projects over its elements.
		arr := &values.Array{}
		for _, it := range r.Items {
			v, err := e.memberOf(it, name)
			if err != nil {
				return values.Null{}, err
			}
			if _, isNull := v.(values.Null); !isNull {
				arr.Items = append(arr.Items, v)
			}
		}
		if len(arr.Items) == 1 {
			return arr.Items[0], nil
		}
		return arr, nil
	case values.Range:
		switch name {
		case "count", "length":
			return values.Int(r.Count()), nil
		}
	case values.Char:
		if v, ok := values.StringProperty(string(rune(r)), name); ok {
			return v, nil
		}
	}
	return values.Null{}, values.NewUnknownMember(name, recv.TypeName())
}

func (e *Evaluator) evalMethodCall(n *ast.MethodCall) values.Val {
	args := make([]values.Val, len(n.Args))
	for i, a := range n.Args {
		args[i] = e.evalExpr(a)
	}
	if n.Static {
		base := e.evalExpr(n.X)
		t, ok := base.(values.Type)
		if !ok {
			e.recordError(values.NewUnknownMember(n.Name, base.TypeName()))
			return values.Null{}
		}
		return e.staticCall(t, n.Name, args)
	}
	recv := e.evalExpr(n.X)
	if values.IsUnknown(recv) {
		return values.Unknown{}
	}
	for _, a := range args {
		if values.IsUnknown(a) {
			return values.Unknown{}
		}
	}
	switch r := recv.(type) {
	case values.Type:
		// Encoding selectors arrive as dotted calls on a static member:
		// [System.Text.Encoding]::Unicode.GetString(...)
		return e.staticCall(r, n.Name, args)
	case values.Str:
		out, err := values.CallStringMethod(string(r), n.Name, args)
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return out
	case values.Char:
		out, err := values.CallStringMethod(string(rune(r)), n.Name, args)
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return out
	case *values.HashTable:
		switch n.Name {
		case "containskey":
			if len(args) != 1 {
				e.recordError(values.NewArityMismatch("ContainsKey", 1, len(args)))
				return values.Null{}
			}
			return values.Bool(r.Has(args[0].Display()))
		case "add":
			if len(args) != 2 {
				e.recordError(values.NewArityMismatch("Add", 2, len(args)))
				return values.Null{}
			}
			r.Set(args[0].Display(), args[1])
			return values.Null{}
		}
	case *values.ScriptBlock:
		switch n.Name {
		case "invoke":
			return e.invokeScriptBlock(r, args, false)
		}
	}
	e.recordError(values.NewUnknownMember(n.Name, recv.TypeName()))
	return values.Null{}
}

// evalStatementValue runs nested statements ($(...) and @(...)) without
// emitting deobfuscation lines and collects their values: none is $null,
// one stays scalar, several form an array.
func (e *Evaluator) evalStatementValue(stmts []ast.Statement) values.Val {
	var collected []values.Val
	for _, stmt := range stmts {
		v, emits := e.execNested(stmt)
		if !emits {
			continue
		}
		if _, isNull := v.(values.Null); isNull {
			continue
		}
		collected = append(collected, v)
	}
	switch len(collected) {
	case 0:
		return values.Null{}
	case 1:
		return collected[0]
	default:
		return &values.Array{Items: collected}
	}
}
