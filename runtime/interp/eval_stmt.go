package interp

import (
	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/core/values"
	"github.com/radkum/ps-parser/runtime/session"
)

// ctrl carries loop and function unwinding out of nested statements.
type ctrl int

const (
	ctrlNone ctrl = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

type stmtResult struct {
	val      values.Val
	produces bool
	flow     ctrl
	ret      values.Val
}

// execTopStmt runs one script-level statement: it emits deobfuscation
// lines, echoes produced values onto the output stream, and settles $?.
func (e *Evaluator) execTopStmt(stmt ast.Statement) {
	errs0 := len(e.errs)
	res := e.execStmt(stmt, true)
	e.sess.SetStatus(len(e.errs) == errs0)
	if res.produces {
		e.last = res.val
	}
}

// execNested runs a statement inside $(...), @(...), blocks invoked as
// values, or function bodies: no rendering, no echo.
func (e *Evaluator) execNested(stmt ast.Statement) (values.Val, bool) {
	res := e.execStmt(stmt, false)
	return res.val, res.produces
}

func (e *Evaluator) execStmt(stmt ast.Statement, emit bool) stmtResult {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		return e.execExprStmt(s, emit)
	case *ast.Assign:
		return e.execAssign(s, emit)
	case *ast.FuncDecl:
		e.sess.SetFunction(&session.Function{Name: s.Name, Params: s.Params, Body: s.Body})
		if emit {
			e.emit(e.spanText(s))
		}
		return stmtResult{val: values.Null{}}
	case *ast.If:
		return e.execIf(s, emit)
	case *ast.While:
		return e.execWhile(s, emit)
	case *ast.DoLoop:
		return e.execDoLoop(s, emit)
	case *ast.For:
		return e.execFor(s, emit)
	case *ast.ForEach:
		return e.execForEach(s, emit)
	case *ast.Switch:
		return e.execSwitch(s, emit)
	case *ast.Break:
		return stmtResult{val: values.Null{}, flow: ctrlBreak}
	case *ast.Continue:
		return stmtResult{val: values.Null{}, flow: ctrlContinue}
	case *ast.Return:
		ret := values.Val(values.Null{})
		if s.X != nil {
			ret = e.evalExpr(s.X)
		}
		return stmtResult{val: ret, flow: ctrlReturn, ret: ret}
	case *ast.Block:
		return e.execBlock(s, emit)
	}
	e.recordError(values.NewUnsupportedOperation("unsupported statement form"))
	return stmtResult{val: values.Null{}}
}

func (e *Evaluator) execExprStmt(s *ast.ExprStmt, emit bool) stmtResult {
	errs0 := len(e.errs)
	v := e.evalExpr(s.X)
	failed := len(e.errs) > errs0
	if emit {
		switch {
		case failed || values.IsUnknown(v):
			e.emit(e.renderStmt(s))
		default:
			if _, isNull := v.(values.Null); !isNull {
				e.emit(values.Literal(v))
				e.write(v.Display())
			}
		}
	}
	return stmtResult{val: v, produces: true}
}

func (e *Evaluator) execAssign(s *ast.Assign, emit bool) stmtResult {
	errs0 := len(e.errs)
	var rhs values.Val
	if s.Op == "=" {
		rhs = e.evalExpr(s.Value)
	} else {
		current := e.evalExpr(s.Target)
		operand := e.evalExpr(s.Value)
		var err error
		switch s.Op {
		case "+=":
			rhs, err = values.Add(current, operand)
		case "-=":
			rhs, err = values.Sub(current, operand)
		case "*=":
			rhs, err = values.Mul(current, operand)
		case "/=":
			rhs, err = values.Div(current, operand)
		case "%=":
			rhs, err = values.Mod(current, operand)
		}
		if err != nil {
			e.recordError(err)
		}
	}
	failed := len(e.errs) > errs0
	if failed || values.IsUnknown(rhs) {
		// The binding stays untouched; the statement re-emits verbatim with
		// any safely evaluated fragments substituted.
		if emit {
			e.emit(e.renderStmt(s))
		}
		return stmtResult{val: values.Null{}}
	}
	e.assignTo(s.Target, rhs)
	if len(e.errs) > errs0 {
		if emit {
			e.emit(e.renderStmt(s))
		}
		return stmtResult{val: values.Null{}}
	}
	if emit {
		e.emit(e.renderAssignLine(s, rhs))
	}
	return stmtResult{val: values.Null{}}
}

// evalAssignExpr performs a parenthesised assignment and yields the
// assigned value. An opaque right side leaves the binding untouched.
func (e *Evaluator) evalAssignExpr(n *ast.AssignExpr) values.Val {
	errs0 := len(e.errs)
	rhs := e.evalExpr(n.Value)
	if n.Op != "=" {
		current := e.evalExpr(n.Target)
		var err error
		switch n.Op {
		case "+=":
			rhs, err = values.Add(current, rhs)
		case "-=":
			rhs, err = values.Sub(current, rhs)
		case "*=":
			rhs, err = values.Mul(current, rhs)
		case "/=":
			rhs, err = values.Div(current, rhs)
		case "%=":
			rhs, err = values.Mod(current, rhs)
		}
		if err != nil {
			e.recordError(err)
		}
	}
	if len(e.errs) > errs0 {
		return values.Null{}
	}
	if values.IsUnknown(rhs) {
		return values.Unknown{}
	}
	e.assignTo(n.Target, rhs)
	return rhs
}

// assignTo writes through a variable, index, or member target.
func (e *Evaluator) assignTo(target ast.Expression, v values.Val) {
	switch t := target.(type) {
	case *ast.VarRef:
		if err := e.sess.Set(t.Scope, t.Name, v); err != nil {
			e.recordError(err)
		}
	case *ast.Index:
		recv := e.evalExpr(t.X)
		if len(t.Args) != 1 {
			e.recordError(values.NewArityMismatch("index", 1, len(t.Args)))
			return
		}
		idx := e.evalExpr(t.Args[0])
		if values.IsUnknown(recv) || values.IsUnknown(idx) {
			return
		}
		if err := values.SetIndex(recv, idx, v); err != nil {
			e.recordError(err)
		}
	case *ast.Member:
		recv := e.evalExpr(t.X)
		if ht, ok := recv.(*values.HashTable); ok {
			ht.Set(t.Raw, v)
			return
		}
		e.recordError(values.NewUnknownMember(t.Name, recv.TypeName()))
	default:
		e.recordError(values.NewUnsupportedOperation("target is not assignable"))
	}
}

func (e *Evaluator) execBlock(b *ast.Block, emit bool) stmtResult {
	last := stmtResult{val: values.Null{}}
	for _, stmt := range b.Stmts {
		res := e.execStmt(stmt, emit)
		if res.flow != ctrlNone {
			return res
		}
		if res.produces {
			last = res
		}
	}
	return last
}

// condOpaque evaluates a control-flow condition; when the condition failed
// or is opaque the whole statement re-emits verbatim and is skipped.
func (e *Evaluator) condOpaque(stmt ast.Statement, cond values.Val, errs0 int, emit bool) bool {
	if len(e.errs) > errs0 || values.IsUnknown(cond) {
		if emit {
			e.emit(e.spanText(stmt))
		}
		return true
	}
	return false
}

func (e *Evaluator) execIf(s *ast.If, emit bool) stmtResult {
	for _, branch := range s.Branches {
		errs0 := len(e.errs)
		cond := e.evalExpr(branch.Cond)
		if e.condOpaque(s, cond, errs0, emit) {
			return stmtResult{val: values.Null{}}
		}
		if values.Truthy(cond) {
			return e.execBlock(branch.Body, emit)
		}
	}
	if s.Else != nil {
		return e.execBlock(s.Else, emit)
	}
	return stmtResult{val: values.Null{}}
}

func (e *Evaluator) execWhile(s *ast.While, emit bool) stmtResult {
	for {
		errs0 := len(e.errs)
		cond := e.evalExpr(s.Cond)
		if e.condOpaque(s, cond, errs0, emit) {
			return stmtResult{val: values.Null{}}
		}
		if !values.Truthy(cond) {
			return stmtResult{val: values.Null{}}
		}
		if !e.budget() {
			return stmtResult{val: values.Null{}}
		}
		res := e.execBlock(s.Body, emit)
		switch res.flow {
		case ctrlBreak:
			return stmtResult{val: values.Null{}}
		case ctrlReturn:
			return res
		}
	}
}

func (e *Evaluator) execDoLoop(s *ast.DoLoop, emit bool) stmtResult {
	for {
		res := e.execBlock(s.Body, emit)
		switch res.flow {
		case ctrlBreak:
			return stmtResult{val: values.Null{}}
		case ctrlReturn:
			return res
		}
		errs0 := len(e.errs)
		cond := e.evalExpr(s.Cond)
		if e.condOpaque(s, cond, errs0, emit) {
			return stmtResult{val: values.Null{}}
		}
		keep := values.Truthy(cond)
		if s.Until {
			keep = !keep
		}
		if !keep {
			return stmtResult{val: values.Null{}}
		}
		if !e.budget() {
			return stmtResult{val: values.Null{}}
		}
	}
}

func (e *Evaluator) execFor(s *ast.For, emit bool) stmtResult {
	for _, init := range s.Init {
		e.execStmt(init, emit)
	}
	for {
		if s.Cond != nil {
			errs0 := len(e.errs)
			cond := e.evalExpr(s.Cond)
			if e.condOpaque(s, cond, errs0, emit) {
				return stmtResult{val: values.Null{}}
			}
			if !values.Truthy(cond) {
				return stmtResult{val: values.Null{}}
			}
		}
		if !e.budget() {
			return stmtResult{val: values.Null{}}
		}
		res := e.execBlock(s.Body, emit)
		switch res.flow {
		case ctrlBreak:
			return stmtResult{val: values.Null{}}
		case ctrlReturn:
			return res
		}
		for _, post := range s.Post {
			e.execStmt(post, false)
		}
	}
}

func (e *Evaluator) execForEach(s *ast.ForEach, emit bool) stmtResult {
	errs0 := len(e.errs)
	iterable := e.evalExpr(s.Iterable)
	if e.condOpaque(s, iterable, errs0, emit) {
		return stmtResult{val: values.Null{}}
	}
	for _, item := range values.ToIterable(iterable) {
		if !e.budget() {
			return stmtResult{val: values.Null{}}
		}
		if err := e.sess.Set("", s.Var, item); err != nil {
			e.recordError(err)
			return stmtResult{val: values.Null{}}
		}
		res := e.execBlock(s.Body, emit)
		switch res.flow {
		case ctrlBreak:
			return stmtResult{val: values.Null{}}
		case ctrlReturn:
			return res
		}
	}
	return stmtResult{val: values.Null{}}
}

func (e *Evaluator) execSwitch(s *ast.Switch, emit bool) stmtResult {
	errs0 := len(e.errs)
	scrutinee := e.evalExpr(s.Scrutinee)
	if e.condOpaque(s, scrutinee, errs0, emit) {
		return stmtResult{val: values.Null{}}
	}
	for _, elem := range values.ToIterable(scrutinee) {
		matchedAny := false
		for _, clause := range s.Clauses {
			label := e.evalExpr(clause.Label)
			matched := false
			switch s.Mode {
			case ast.SwitchWildcard:
				v, err := values.Like(elem, label, false, false)
				if err == nil {
					matched = values.Truthy(v)
				}
			case ast.SwitchRegex:
				res, err := values.Match(elem, label, false, false)
				if err == nil {
					matched = values.Truthy(res.Val)
					if res.Matches != nil {
						e.sess.SetSpecial("matches", res.Matches)
					}
				}
			default:
				v, err := values.Compare("eq", elem, label)
				if err == nil {
					matched = values.Truthy(v)
				}
			}
			if !matched {
				continue
			}
			matchedAny = true
			res := e.execBlock(clause.Body, emit)
			switch res.flow {
			case ctrlBreak:
				return stmtResult{val: values.Null{}}
			case ctrlReturn:
				return res
			}
		}
		if !matchedAny && s.Default != nil {
			res := e.execBlock(s.Default, emit)
			switch res.flow {
			case ctrlBreak:
				return stmtResult{val: values.Null{}}
			case ctrlReturn:
				return res
			}
		}
	}
	return stmtResult{val: values.Null{}}
}
