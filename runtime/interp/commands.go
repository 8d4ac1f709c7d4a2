package interp

import (
	"github.com/radkum/ps-parser/core/ast"
	"github.com/radkum/ps-parser/core/values"
	"github.com/radkum/ps-parser/runtime/session"
)

// invocation is a command with its arguments already evaluated: positional
// values in order, named parameters lowercased, switches present with a
// true value.
type invocation struct {
	cmd        *ast.Command
	positional []values.Val
	named      map[string]values.Val
	switches   map[string]bool
	// input is the pipeline input; hasInput reports whether there was any.
	input    values.Val
	hasInput bool
}

func (inv *invocation) hasSwitch(name string) bool {
	if inv.switches[name] {
		return true
	}
	_, ok := inv.named[name]
	return ok
}

// evalPipeline runs stages left to right, feeding each stage's value into
// the next command. An opaque stage poisons everything downstream that
// depends on its input.
func (e *Evaluator) evalPipeline(p *ast.Pipeline) values.Val {
	var current values.Val = values.Null{}
	for i, stage := range p.Stages {
		switch st := stage.(type) {
		case *ast.Command:
			current = e.invokeCommand(st, current, i > 0)
		case *ast.CallOp:
			current = e.evalCallOpWithInput(st, current, i > 0)
		default:
			current = e.evalExpr(stage)
		}
	}
	return current
}

// invokeCommand dispatches one command: user functions first, then the
// safe-cmdlet table; anything else is unsafe, never executed, and yields
// Unknown after its arguments evaluate for substitution.
func (e *Evaluator) invokeCommand(cmd *ast.Command, input values.Val, hasInput bool) values.Val {
	inv := e.bindInvocation(cmd, input, hasInput)

	var result values.Val
	switch {
	case e.isUserFunction(cmd.Name):
		fn, _ := e.sess.GetFunction(cmd.Name)
		result = e.callFunction(fn, inv)
	case e.isSafeCmdlet(cmd.Name):
		result = e.callCmdlet(cmd.Name, inv)
	default:
		result = values.Unknown{}
	}
	e.recordCommand(e.spanText(cmd), result)
	return result
}

func (e *Evaluator) isUserFunction(name string) bool {
	_, ok := e.sess.GetFunction(name)
	return ok
}

// bindInvocation evaluates every argument expression. Arguments always
// evaluate, even for unsafe commands: their values feed the verbatim
// rendering and the token inventory.
func (e *Evaluator) bindInvocation(cmd *ast.Command, input values.Val, hasInput bool) *invocation {
	inv := &invocation{
		cmd:      cmd,
		named:    map[string]values.Val{},
		switches: map[string]bool{},
		input:    input,
		hasInput: hasInput,
	}
	for _, arg := range cmd.Args {
		if arg.Name != "" {
			if arg.Value == nil {
				inv.switches[arg.Name] = true
				continue
			}
			inv.named[arg.Name] = e.evalArg(arg.Value)
			continue
		}
		inv.positional = append(inv.positional, e.evalArg(arg.Value))
	}
	return inv
}

// evalArg evaluates one argument expression. Script blocks stay lazy as
// values; everything else evaluates eagerly.
func (e *Evaluator) evalArg(x ast.Expression) values.Val {
	return e.evalExpr(x)
}

// callFunction binds parameters and runs a user function body in a fresh
// frame. Named arguments claim their parameters first, positionals fill
// the remaining slots in declaration order, surplus positionals land in
// $args.
func (e *Evaluator) callFunction(fn *session.Function, inv *invocation) values.Val {
	if !e.enter() {
		return values.Null{}
	}
	defer e.leave()

	bound := make(map[string]values.Val, len(fn.Params))
	taken := make(map[string]bool, len(fn.Params))
	for name, v := range inv.named {
		for _, p := range fn.Params {
			if p.Name == name {
				bound[name] = v
				taken[name] = true
				break
			}
		}
	}
	for name := range inv.switches {
		for _, p := range fn.Params {
			if p.Name == name && p.Switch {
				bound[name] = values.Bool(true)
				taken[name] = true
				break
			}
		}
	}
	pos := 0
	for _, p := range fn.Params {
		if taken[p.Name] || p.Switch {
			continue
		}
		if pos < len(inv.positional) {
			bound[p.Name] = inv.positional[pos]
			pos++
		}
	}
	surplus := &values.Array{}
	if pos < len(inv.positional) {
		surplus.Items = append(surplus.Items, inv.positional[pos:]...)
	}

	e.sess.PushFrame()
	defer e.sess.PopFrame()
	for _, p := range fn.Params {
		v, ok := bound[p.Name]
		if !ok {
			switch {
			case p.Switch:
				v = values.Bool(false)
			case p.Default != nil:
				v = e.evalExpr(p.Default)
			default:
				v = values.Null{}
			}
		}
		if p.Type != "" {
			cast, err := values.Cast(p.Type, v)
			if err != nil {
				e.recordError(err)
				cast = values.Null{}
			}
			v = cast
		}
		if err := e.sess.Set("local", p.Name, v); err != nil {
			e.recordError(err)
		}
	}
	if err := e.sess.Set("local", "args", surplus); err != nil {
		e.recordError(err)
	}

	return e.runBody(fn.Body)
}

// runBody executes a function or script block body and produces its
// result: an explicit return value, otherwise the last produced value.
func (e *Evaluator) runBody(body *ast.Block) values.Val {
	var last values.Val = values.Null{}
	for _, stmt := range body.Stmts {
		res := e.execStmt(stmt, false)
		if res.flow == ctrlReturn {
			return res.ret
		}
		if res.flow != ctrlNone {
			break
		}
		if res.produces {
			if _, isNull := res.val.(values.Null); !isNull {
				last = res.val
			}
		}
	}
	return last
}

func (e *Evaluator) evalCallOp(n *ast.CallOp) values.Val {
	return e.evalCallOpWithInput(n, values.Null{}, false)
}

// evalCallOpWithInput applies `&` (fresh scope) or `.` (current scope) to a
// script block or a command name.
func (e *Evaluator) evalCallOpWithInput(n *ast.CallOp, input values.Val, hasInput bool) values.Val {
	target := e.evalExpr(n.X)
	if values.IsUnknown(target) {
		return values.Unknown{}
	}
	switch t := target.(type) {
	case *values.ScriptBlock:
		return e.invokeScriptBlock(t, nil, n.Dot)
	case values.Str:
		name := string(t)
		if fn, ok := e.sess.GetFunction(name); ok {
			return e.callFunction(fn, &invocation{
				named:    map[string]values.Val{},
				switches: map[string]bool{},
				input:    input,
				hasInput: hasInput,
			})
		}
		// Calling an arbitrary command name is unsafe.
		return values.Unknown{}
	}
	e.recordError(values.NewUnsupportedOperation("call operator target must be a script block or command name"))
	return values.Null{}
}

// invokeScriptBlock runs a block value. dotSource keeps the current scope
// so assignments land in the caller; otherwise a fresh frame opens.
func (e *Evaluator) invokeScriptBlock(sb *values.ScriptBlock, args []values.Val, dotSource bool) values.Val {
	if !e.enter() {
		return values.Null{}
	}
	defer e.leave()

	if !dotSource {
		e.sess.PushFrame()
		defer e.sess.PopFrame()
		for i, p := range sb.Params {
			var v values.Val = values.Null{}
			if i < len(args) {
				v = args[i]
			} else if p.Default != nil {
				v = e.evalExpr(p.Default)
			}
			if err := e.sess.Set("local", p.Name, v); err != nil {
				e.recordError(err)
			}
		}
		argv := &values.Array{}
		if len(args) > len(sb.Params) {
			argv.Items = append(argv.Items, args[len(sb.Params):]...)
		}
		if err := e.sess.Set("local", "args", argv); err != nil {
			e.recordError(err)
		}
	}
	return e.runBody(sb.Body)
}

// runBlockWithItem binds $_ / $PSItem and evaluates the block for one
// pipeline element. Nested pipeline blocks restore the outer item.
func (e *Evaluator) runBlockWithItem(sb *values.ScriptBlock, item values.Val) values.Val {
	prev, hadPrev := e.sess.GetSpecial("_")
	e.sess.SetSpecial("_", item)
	e.sess.SetSpecial("psitem", item)
	defer func() {
		if hadPrev {
			e.sess.SetSpecial("_", prev)
			e.sess.SetSpecial("psitem", prev)
		} else {
			e.sess.ClearSpecial("_")
			e.sess.ClearSpecial("psitem")
		}
	}()
	e.sess.PushFrame()
	defer e.sess.PopFrame()
	return e.runBody(sb.Body)
}
