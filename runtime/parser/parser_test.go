package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radkum/ps-parser/core/ast"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse(src)
	require.NoError(t, err, "input: %s", src)
	return prog
}

func firstExpr(t *testing.T, src string) ast.Expression {
	t.Helper()
	prog := mustParse(t, src)
	require.NotEmpty(t, prog.Stmts)
	es, ok := prog.Stmts[0].(*ast.ExprStmt)
	require.True(t, ok, "statement is %T", prog.Stmts[0])
	return es.X
}

func TestParseDeterminism(t *testing.T) {
	src := `
$a = @('a','b','c')
$b = $a[2]
1..10 | Where-Object { $_ % 2 -eq 0 }
"value: $(($a + 1))"
`
	first := mustParse(t, src)
	second := mustParse(t, src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated parses differ (-first +second):\n%s", diff)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	// 2+3*4 groups the product under the sum.
	x := firstExpr(t, "2+3*4")
	sum, ok := x.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", sum.Op)
	prod, ok := sum.R.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", prod.Op)

	// (2+3)*4 groups the sum first.
	x = firstExpr(t, "(2+3)*4")
	prod, ok = x.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", prod.Op)
	_, ok = prod.L.(*ast.Paren)
	assert.True(t, ok)
}

func TestComparisonTier(t *testing.T) {
	x := firstExpr(t, "$_ % 2 -eq 0")
	cmpExpr, ok := x.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "-eq", cmpExpr.Op)
	mod, ok := cmpExpr.L.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "%", mod.Op)
}

func TestNumericLiterals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ast.Expression
	}{
		{name: "int", src: "42", want: &ast.IntLit{Value: 42}},
		{name: "hex", src: "0x4d", want: &ast.IntLit{Value: 77}},
		{name: "binary", src: "0b1101", want: &ast.IntLit{Value: 13}},
		{name: "kb", src: "2KB", want: &ast.IntLit{Value: 2048}},
		{name: "mb", src: "20MB", want: &ast.IntLit{Value: 20971520}},
		{name: "float", src: "3.25", want: &ast.DoubleLit{Value: 3.25}},
		{name: "scientific", src: "1e3", want: &ast.DoubleLit{Value: 1000}},
		{name: "float_mb", src: "1.5mb", want: &ast.DoubleLit{Value: 1572864}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := firstExpr(t, tt.src)
			switch want := tt.want.(type) {
			case *ast.IntLit:
				got, ok := x.(*ast.IntLit)
				require.True(t, ok, "got %T", x)
				assert.Equal(t, want.Value, got.Value)
			case *ast.DoubleLit:
				got, ok := x.(*ast.DoubleLit)
				require.True(t, ok, "got %T", x)
				assert.Equal(t, want.Value, got.Value)
			}
		})
	}
}

func TestRangeStopsNumber(t *testing.T) {
	x := firstExpr(t, "1..10")
	r, ok := x.(*ast.RangeExpr)
	require.True(t, ok, "got %T", x)
	assert.Equal(t, int64(1), r.L.(*ast.IntLit).Value)
	assert.Equal(t, int64(10), r.R.(*ast.IntLit).Value)
}

func TestAssignmentForms(t *testing.T) {
	prog := mustParse(t, "$global:var = 1; $x += 2\n$a[0] = 3")
	require.Len(t, prog.Stmts, 3)

	a0 := prog.Stmts[0].(*ast.Assign)
	ref := a0.Target.(*ast.VarRef)
	assert.Equal(t, "global", ref.Scope)
	assert.Equal(t, "var", ref.Name)
	assert.Equal(t, "=", a0.Op)

	a1 := prog.Stmts[1].(*ast.Assign)
	assert.Equal(t, "+=", a1.Op)

	a2 := prog.Stmts[2].(*ast.Assign)
	_, ok := a2.Target.(*ast.Index)
	assert.True(t, ok)
}

func TestVariableSpellingFoldedToLower(t *testing.T) {
	prog := mustParse(t, "$EvenNumbers = 1")
	ref := prog.Stmts[0].(*ast.Assign).Target.(*ast.VarRef)
	assert.Equal(t, "evennumbers", ref.Name)
	assert.Equal(t, "$EvenNumbers", ref.Raw)
}

func TestPipelineAndCommand(t *testing.T) {
	x := firstExpr(t, "Get-Process | Where-Object WorkingSet -GT (20MB)")
	pipe, ok := x.(*ast.Pipeline)
	require.True(t, ok, "got %T", x)
	require.Len(t, pipe.Stages, 2)

	gp := pipe.Stages[0].(*ast.Command)
	assert.Equal(t, "get-process", gp.Name)
	assert.Equal(t, "Get-Process", gp.Raw)

	wo := pipe.Stages[1].(*ast.Command)
	assert.Equal(t, "where-object", wo.Name)
	require.Len(t, wo.Args, 2)
	assert.Equal(t, "", wo.Args[0].Name)
	assert.Equal(t, "WorkingSet", wo.Args[0].Value.(*ast.StringLit).Value)
	assert.Equal(t, "gt", wo.Args[1].Name)
	require.NotNil(t, wo.Args[1].Value)
}

func TestCommandAliases(t *testing.T) {
	x := firstExpr(t, "1..4 | ? { $_ -gt 2 } | % { $_ * 10 }")
	pipe := x.(*ast.Pipeline)
	require.Len(t, pipe.Stages, 3)
	assert.Equal(t, "where-object", pipe.Stages[1].(*ast.Command).Name)
	assert.Equal(t, "foreach-object", pipe.Stages[2].(*ast.Command).Name)
}

func TestCastAndStaticAccess(t *testing.T) {
	x := firstExpr(t, "[char]([byte]0x4d)")
	cast, ok := x.(*ast.Cast)
	require.True(t, ok, "got %T", x)
	assert.Equal(t, "char", cast.Type)

	x = firstExpr(t, `[System.Convert]::FromBase64String("QQ==")`)
	call, ok := x.(*ast.MethodCall)
	require.True(t, ok, "got %T", x)
	assert.True(t, call.Static)
	assert.Equal(t, "frombase64string", call.Name)
	tl, ok := call.X.(*ast.TypeLit)
	require.True(t, ok)
	assert.Equal(t, "system.convert", tl.Name)

	// Chained member after static: [System.Text.Encoding]::Unicode.GetString(...)
	x = firstExpr(t, `[System.Text.Encoding]::Unicode.GetString($b)`)
	call, ok = x.(*ast.MethodCall)
	require.True(t, ok, "got %T", x)
	assert.Equal(t, "getstring", call.Name)
	member := call.X.(*ast.Member)
	assert.True(t, member.Static)
	assert.Equal(t, "unicode", member.Name)
}

func TestExpandableStringParts(t *testing.T) {
	x := firstExpr(t, `"Addition: $(($a + $b)) by $name"`)
	es, ok := x.(*ast.ExpandableString)
	require.True(t, ok, "got %T", x)
	require.Len(t, es.Parts, 4)
	assert.Equal(t, "Addition: ", es.Parts[0].(*ast.StringText).Value)
	_, ok = es.Parts[1].(*ast.SubExpr)
	assert.True(t, ok)
	assert.Equal(t, " by ", es.Parts[2].(*ast.StringText).Value)
	assert.Equal(t, "name", es.Parts[3].(*ast.VarRef).Name)
}

func TestExpandableStringEscapes(t *testing.T) {
	x := firstExpr(t, "\"line`none`ttab`\"q\"")
	es := x.(*ast.ExpandableString)
	require.Len(t, es.Parts, 1)
	assert.Equal(t, "line\none\ttab\"q", es.Parts[0].(*ast.StringText).Value)
}

func TestVerbatimStringNoInterpolation(t *testing.T) {
	x := firstExpr(t, `'Hello, $name'`)
	lit := x.(*ast.StringLit)
	assert.Equal(t, "Hello, $name", lit.Value)

	x = firstExpr(t, `'it''s'`)
	assert.Equal(t, "it's", x.(*ast.StringLit).Value)
}

func TestHashLiteralKeepsOrder(t *testing.T) {
	x := firstExpr(t, "@{ Theme = 'Dark'; Language = 'en-US' }")
	h := x.(*ast.HashLit)
	require.Len(t, h.Entries, 2)
	assert.Equal(t, "theme", h.Entries[0].Key)
	assert.Equal(t, "Theme", h.Entries[0].Raw)
	assert.Equal(t, "language", h.Entries[1].Key)
}

func TestArrayLiterals(t *testing.T) {
	x := firstExpr(t, "1, 2, 3")
	arr := x.(*ast.ArrayLit)
	assert.Len(t, arr.Elems, 3)

	x = firstExpr(t, "@(1, 2, @(3, 4))")
	_, ok := x.(*ast.ArraySubExpr)
	assert.True(t, ok)
}

func TestParseErrorRejectsWholeInput(t *testing.T) {
	_, err := Parse("$a = ")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)

	_, err = Parse("if ($x { }")
	require.Error(t, err)

	_, err = Parse("'unterminated")
	require.Error(t, err)
}

func TestComments(t *testing.T) {
	prog := mustParse(t, `
# line comment
$a = 1; $b = 2 # trailing
<#
 block comment
#>
$c = 3
`)
	assert.Len(t, prog.Stmts, 3)
}
