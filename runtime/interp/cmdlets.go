package interp

import (
	"sort"
	"strings"

	"github.com/radkum/ps-parser/core/values"
)

// cmdletFunc implements one safe cmdlet over an already-bound invocation.
type cmdletFunc func(e *Evaluator, inv *invocation) values.Val

// cmdletTable is the safe set: pure, host-invisible commands the evaluator
// executes. Everything else stays opaque.
//
// Populated in init() rather than via a map literal: the literal form
// creates a spurious initialization cycle, since several cmdlet functions
// transitively reference cmdletTable through the evaluator's command
// dispatch path.
var cmdletTable map[string]cmdletFunc

func init() {
	cmdletTable = map[string]cmdletFunc{
		"write-output":   cmdWriteOutput,
		"echo":           cmdWriteOutput,
		"write-host":     cmdWriteHost,
		"where-object":   cmdWhereObject,
		"where":          cmdWhereObject,
		"foreach-object": cmdForEachObject,
		"foreach":        cmdForEachObject,
		"get-variable":   cmdGetVariable,
		"select-object":  cmdSelectObject,
		"select":         cmdSelectObject,
		"sort-object":    cmdSortObject,
		"sort":           cmdSortObject,
		"measure-object": cmdMeasureObject,
		"measure":        cmdMeasureObject,
	}
}

func (e *Evaluator) isSafeCmdlet(name string) bool {
	_, ok := cmdletTable[name]
	return ok
}

func (e *Evaluator) callCmdlet(name string, inv *invocation) values.Val {
	return cmdletTable[name](e, inv)
}

// pipelineElements flattens the cmdlet's working set: pipeline input when
// present, else the positional arguments.
func pipelineElements(inv *invocation, skipFirst int) []values.Val {
	if inv.hasInput {
		return values.ToIterable(inv.input)
	}
	if len(inv.positional) > skipFirst {
		var out []values.Val
		for _, p := range inv.positional[skipFirst:] {
			out = append(out, values.ToIterable(p)...)
		}
		return out
	}
	return nil
}

// cmdWriteOutput returns its arguments; the statement echo places them on
// the output stream.
func cmdWriteOutput(e *Evaluator, inv *invocation) values.Val {
	items := pipelineElements(inv, 0)
	switch len(items) {
	case 0:
		return values.Null{}
	case 1:
		return items[0]
	default:
		return &values.Array{Items: items}
	}
}

// cmdWriteHost joins its arguments with spaces and writes directly to the
// output stream, dropping the console color parameters.
func cmdWriteHost(e *Evaluator, inv *invocation) values.Val {
	for _, v := range inv.positional {
		if values.IsUnknown(v) {
			return values.Unknown{}
		}
	}
	parts := make([]string, len(inv.positional))
	for i, v := range inv.positional {
		parts[i] = v.Display()
	}
	sep := " "
	if s, ok := inv.named["separator"]; ok {
		sep = s.Display()
	}
	e.write(strings.Join(parts, sep))
	return values.Null{}
}

// cmdWhereObject filters elements. Two forms: a script block evaluated
// with $_ bound per element, or the property form
// `Where-Object Name -GT value`.
func cmdWhereObject(e *Evaluator, inv *invocation) values.Val {
	if values.IsUnknown(inv.input) {
		return values.Unknown{}
	}
	if len(inv.positional) > 0 {
		if sb, ok := inv.positional[0].(*values.ScriptBlock); ok {
			out := &values.Array{}
			for _, item := range pipelineElements(inv, 1) {
				if !e.budget() {
					return values.Unknown{}
				}
				if values.Truthy(e.runBlockWithItem(sb, item)) {
					out.Items = append(out.Items, item)
				}
			}
			return out
		}
		return e.wherePropertyForm(inv)
	}
	if sb, ok := inv.named["filterscript"].(*values.ScriptBlock); ok {
		out := &values.Array{}
		for _, item := range values.ToIterable(inv.input) {
			if values.Truthy(e.runBlockWithItem(sb, item)) {
				out.Items = append(out.Items, item)
			}
		}
		return out
	}
	e.recordError(values.NewArityMismatch("Where-Object", 1, 0))
	return values.Null{}
}

// wherePropertyForm compares a named property of each element against the
// operator parameter: -EQ, -NE, -GT, -GE, -LT, -LE, -Like, -Match.
func (e *Evaluator) wherePropertyForm(inv *invocation) values.Val {
	property := inv.positional[0].Display()
	var op string
	var operand values.Val
	for name, v := range inv.named {
		switch name {
		case "eq", "ne", "gt", "ge", "lt", "le", "like", "notlike", "match", "notmatch", "contains":
			op = name
			operand = v
		}
	}
	if op == "" {
		e.recordError(values.NewUnsupportedOperation("Where-Object property form needs a comparison parameter"))
		return values.Null{}
	}
	out := &values.Array{}
	for _, item := range values.ToIterable(inv.input) {
		prop, err := e.memberOf(item, strings.ToLower(property))
		if err != nil {
			continue
		}
		var verdict values.Val
		switch op {
		case "like", "notlike":
			verdict, err = values.Like(prop, operand, false, op == "notlike")
		case "match", "notmatch":
			var res values.MatchResult
			res, err = values.Match(prop, operand, false, op == "notmatch")
			verdict = res.Val
		case "contains":
			verdict, err = values.Contains(prop, operand, false, false)
		default:
			verdict, err = values.Compare(op, prop, operand)
		}
		if err == nil && values.Truthy(verdict) {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// cmdForEachObject maps a script block (or member projection) over the
// elements and collects non-null results.
func cmdForEachObject(e *Evaluator, inv *invocation) values.Val {
	if values.IsUnknown(inv.input) {
		return values.Unknown{}
	}
	if len(inv.positional) == 0 {
		e.recordError(values.NewArityMismatch("ForEach-Object", 1, 0))
		return values.Null{}
	}
	out := &values.Array{}
	if sb, ok := inv.positional[0].(*values.ScriptBlock); ok {
		for _, item := range pipelineElements(inv, 1) {
			if !e.budget() {
				return values.Unknown{}
			}
			v := e.runBlockWithItem(sb, item)
			if _, isNull := v.(values.Null); !isNull {
				out.Items = append(out.Items, v)
			}
		}
		return out
	}
	// Member projection form: ForEach-Object Name
	name := strings.ToLower(inv.positional[0].Display())
	for _, item := range pipelineElements(inv, 1) {
		v, err := e.memberOf(item, name)
		if err != nil {
			continue
		}
		if _, isNull := v.(values.Null); !isNull {
			out.Items = append(out.Items, v)
		}
	}
	return out
}

// cmdGetVariable resolves a variable by bare name.
func cmdGetVariable(e *Evaluator, inv *invocation) values.Val {
	if len(inv.positional) != 1 {
		e.recordError(values.NewArityMismatch("Get-Variable", 1, len(inv.positional)))
		return values.Null{}
	}
	name := inv.positional[0].Display()
	out, err := e.sess.Get("", name)
	if err != nil {
		e.recordError(err)
		return values.Unknown{}
	}
	return out
}

// cmdSelectObject projects and slices: -First, -Last, -Unique,
// -Property (hash table projection), -ExpandProperty.
func cmdSelectObject(e *Evaluator, inv *invocation) values.Val {
	if values.IsUnknown(inv.input) {
		return values.Unknown{}
	}
	items := pipelineElements(inv, 0)
	if expand, ok := inv.named["expandproperty"]; ok {
		out := &values.Array{}
		for _, item := range items {
			v, err := e.memberOf(item, strings.ToLower(expand.Display()))
			if err == nil {
				out.Items = append(out.Items, v)
			}
		}
		items = out.Items
	} else if props, ok := inv.named["property"]; ok {
		names := values.ToIterable(props)
		out := &values.Array{}
		for _, item := range items {
			ht := values.NewHashTable()
			for _, n := range names {
				v, err := e.memberOf(item, strings.ToLower(n.Display()))
				if err != nil {
					v = values.Null{}
				}
				ht.Set(n.Display(), v)
			}
			out.Items = append(out.Items, ht)
		}
		items = out.Items
	}
	if inv.hasSwitch("unique") {
		var uniq []values.Val
		for _, item := range items {
			dup := false
			for _, seen := range uniq {
				if values.Equal(seen, item) {
					dup = true
					break
				}
			}
			if !dup {
				uniq = append(uniq, item)
			}
		}
		items = uniq
	}
	if n, ok := inv.named["first"]; ok {
		if c, err := values.AsInt(n); err == nil && int64(len(items)) > c {
			items = items[:c]
		}
	}
	if n, ok := inv.named["last"]; ok {
		if c, err := values.AsInt(n); err == nil && int64(len(items)) > c {
			items = items[int64(len(items))-c:]
		}
	}
	return &values.Array{Items: items}
}

// cmdSortObject orders scalars, optionally by property, descending, or
// unique.
func cmdSortObject(e *Evaluator, inv *invocation) values.Val {
	if values.IsUnknown(inv.input) {
		return values.Unknown{}
	}
	items := append([]values.Val(nil), pipelineElements(inv, 0)...)
	keyOf := func(v values.Val) values.Val { return v }
	if len(inv.positional) > 0 {
		prop := strings.ToLower(inv.positional[0].Display())
		keyOf = func(v values.Val) values.Val {
			k, err := e.memberOf(v, prop)
			if err != nil {
				return values.Null{}
			}
			return k
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		v, err := values.Compare("lt", keyOf(items[i]), keyOf(items[j]))
		return err == nil && values.Truthy(v)
	})
	if inv.hasSwitch("descending") {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	if inv.hasSwitch("unique") {
		var uniq []values.Val
		for _, item := range items {
			if len(uniq) == 0 || !values.Equal(uniq[len(uniq)-1], item) {
				uniq = append(uniq, item)
			}
		}
		items = uniq
	}
	return &values.Array{Items: items}
}

// cmdMeasureObject counts elements and aggregates numeric input on
// request: -Sum, -Average, -Minimum, -Maximum.
func cmdMeasureObject(e *Evaluator, inv *invocation) values.Val {
	if values.IsUnknown(inv.input) {
		return values.Unknown{}
	}
	items := pipelineElements(inv, 0)
	out := values.NewHashTable()
	out.Set("Count", values.Int(int64(len(items))))

	wantSum := inv.hasSwitch("sum")
	wantAvg := inv.hasSwitch("average")
	wantMin := inv.hasSwitch("minimum")
	wantMax := inv.hasSwitch("maximum")
	if !(wantSum || wantAvg || wantMin || wantMax) {
		return out
	}
	var sum values.Val = values.Int(0)
	var min, max values.Val
	for _, item := range items {
		s, err := values.Add(sum, item)
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		sum = s
		if min == nil {
			min, max = item, item
			continue
		}
		if lt, err := values.Compare("lt", item, min); err == nil && values.Truthy(lt) {
			min = item
		}
		if gt, err := values.Compare("gt", item, max); err == nil && values.Truthy(gt) {
			max = item
		}
	}
	if wantSum {
		out.Set("Sum", sum)
	}
	if wantAvg && len(items) > 0 {
		avg, err := values.Div(sum, values.Int(int64(len(items))))
		if err == nil {
			out.Set("Average", avg)
		}
	}
	if wantMin && min != nil {
		out.Set("Minimum", min)
	}
	if wantMax && max != nil {
		out.Set("Maximum", max)
	}
	return out
}
