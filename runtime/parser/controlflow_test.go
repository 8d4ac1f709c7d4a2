package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radkum/ps-parser/core/ast"
)

func TestIfElseifElse(t *testing.T) {
	prog := mustParse(t, `
if ($score -ge 90) {
    $grade = "A"
} elseif ($score -ge 80) {
    $grade = "B"
} else {
    $grade = "C"
}
`)
	require.Len(t, prog.Stmts, 1)
	stmt := prog.Stmts[0].(*ast.If)
	assert.Len(t, stmt.Branches, 2)
	require.NotNil(t, stmt.Else)
	assert.Len(t, stmt.Else.Stmts, 1)
}

func TestWhileAndDoLoops(t *testing.T) {
	prog := mustParse(t, `
while ($true) {
    if ($someCondition) {
        break
    }
}
do {
    $i += 1
} while ($i -lt 3)
do {
    $j += 1
} until ($j -ge 3)
`)
	require.Len(t, prog.Stmts, 3)
	_, ok := prog.Stmts[0].(*ast.While)
	assert.True(t, ok)
	dw := prog.Stmts[1].(*ast.DoLoop)
	assert.False(t, dw.Until)
	du := prog.Stmts[2].(*ast.DoLoop)
	assert.True(t, du.Until)
}

func TestForLoop(t *testing.T) {
	prog := mustParse(t, `
for (($i = 0), ($j = 0); $i -lt 10; $i++)
{
    "i:$i"
}
`)
	require.Len(t, prog.Stmts, 1)
	f := prog.Stmts[0].(*ast.For)
	assert.Len(t, f.Init, 2)
	require.NotNil(t, f.Cond)
	require.Len(t, f.Post, 1)
	post := f.Post[0].(*ast.ExprStmt).X.(*ast.Unary)
	assert.Equal(t, "++", post.Op)
	assert.True(t, post.Postfix)
}

func TestForeachStatementVsAlias(t *testing.T) {
	prog := mustParse(t, `
foreach ($n in $numbers) {
    Write-Output $n
}
`)
	fe := prog.Stmts[0].(*ast.ForEach)
	assert.Equal(t, "n", fe.Var)

	// Mid-pipeline `foreach` is the ForEach-Object alias.
	prog = mustParse(t, "1..3 | foreach { $_ }")
	pipe := prog.Stmts[0].(*ast.ExprStmt).X.(*ast.Pipeline)
	cmd := pipe.Stages[1].(*ast.Command)
	assert.Equal(t, "foreach", cmd.Name)
}

func TestSwitchStatement(t *testing.T) {
	prog := mustParse(t, `
switch ($var) {
    "a" { Write-Output "A" }
    1 { Write-Output "One" }
    default { Write-Output "Other" }
}
`)
	sw := prog.Stmts[0].(*ast.Switch)
	assert.Len(t, sw.Clauses, 2)
	require.NotNil(t, sw.Default)
	assert.Equal(t, ast.SwitchDefault, sw.Mode)

	prog = mustParse(t, `switch -Regex ($x) { "^a" { 1 } }`)
	sw = prog.Stmts[0].(*ast.Switch)
	assert.Equal(t, ast.SwitchRegex, sw.Mode)
}

func TestFunctionDeclarations(t *testing.T) {
	prog := mustParse(t, `
function Get-Square {
    param($x)
    return $x * $x
}

function Say-Hello($name, [int]$times = 1, [switch]$loud) {
    Write-Output "Hello $name"
}
`)
	require.Len(t, prog.Stmts, 2)

	f0 := prog.Stmts[0].(*ast.FuncDecl)
	assert.Equal(t, "get-square", f0.Name)
	require.Len(t, f0.Params, 1)
	assert.Equal(t, "x", f0.Params[0].Name)
	require.Len(t, f0.Body.Stmts, 1)
	_, ok := f0.Body.Stmts[0].(*ast.Return)
	assert.True(t, ok)

	f1 := prog.Stmts[1].(*ast.FuncDecl)
	require.Len(t, f1.Params, 3)
	assert.Equal(t, "int", f1.Params[1].Type)
	require.NotNil(t, f1.Params[1].Default)
	assert.True(t, f1.Params[2].Switch)
}

func TestScriptBlockAndCallOperators(t *testing.T) {
	prog := mustParse(t, "$v = 5;& { $v = 10};$v")
	require.Len(t, prog.Stmts, 3)
	call := prog.Stmts[1].(*ast.ExprStmt).X.(*ast.CallOp)
	assert.False(t, call.Dot)
	_, ok := call.X.(*ast.ScriptBlockLit)
	assert.True(t, ok)

	prog = mustParse(t, "$v = 5;. { $v = 10};$v")
	call = prog.Stmts[1].(*ast.ExprStmt).X.(*ast.CallOp)
	assert.True(t, call.Dot)
}

func TestWhereObjectScriptBlock(t *testing.T) {
	prog := mustParse(t, "$e = 1..10 | Where-Object { $_ % 2 -eq 0 }")
	assign := prog.Stmts[0].(*ast.Assign)
	pipe := assign.Value.(*ast.Pipeline)
	wo := pipe.Stages[1].(*ast.Command)
	require.Len(t, wo.Args, 1)
	sb := wo.Args[0].Value.(*ast.ScriptBlockLit)
	require.Len(t, sb.Body.Stmts, 1)
}

func TestSpansCoverOriginalText(t *testing.T) {
	src := "$arg = 20MB*$y"
	prog := mustParse(t, src)
	assign := prog.Stmts[0].(*ast.Assign)
	assert.Equal(t, "20MB*$y", assign.Value.Span().Text(src))
	assert.Equal(t, src, assign.Span().Text(src))
}
