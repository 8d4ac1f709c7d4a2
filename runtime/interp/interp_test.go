package interp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radkum/ps-parser/core/values"
	"github.com/radkum/ps-parser/runtime/parser"
	"github.com/radkum/ps-parser/runtime/session"
)

func runScript(t *testing.T, sess *session.Session, src string) Result {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err, "input: %s", src)
	return New(sess).Run(prog)
}

func run(t *testing.T, src string) Result {
	t.Helper()
	return runScript(t, session.New(), src)
}

func TestAssignmentReducesToLiteral(t *testing.T) {
	res := run(t, "$y = 2/4; $arg = 20MB*$y")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$y = 0.5", "$arg = 10485760"}, res.Deobfuscated)
	assert.Empty(t, res.Output)
}

func TestArrayIndexAndEcho(t *testing.T) {
	res := run(t, "$a = @('a','b','c'); $b = $a[2]; $b")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$a = @('a','b','c')", "$b = 'c'", "'c'"}, res.Deobfuscated)
	assert.Equal(t, []string{"c"}, res.Output)
	assert.Equal(t, values.Str("c"), res.Last)
}

func TestRangeAssignment(t *testing.T) {
	res := run(t, "$numbers = 1..10")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$numbers = @(1,2,3,4,5,6,7,8,9,10)"}, res.Deobfuscated)
}

func TestWhereObjectPipelineReduces(t *testing.T) {
	res := run(t, "$e = 1..10 | Where-Object { $_ % 2 -eq 0 }")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$e = @(2,4,6,8,10)"}, res.Deobfuscated)
}

func TestForEachObjectAlias(t *testing.T) {
	res := run(t, "$x = 1..3 | % { $_ * 10 }")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$x = @(10,20,30)"}, res.Deobfuscated)
}

func TestUnsafeCommandStaysVerbatim(t *testing.T) {
	res := run(t, "Get-Process | Where-Object WorkingSet -GT (20MB)")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"Get-Process | Where-Object WorkingSet -GT 20971520"}, res.Deobfuscated)
	assert.Empty(t, res.Output, "unsafe commands must not produce output")
}

func TestUnsafeAssignmentLeavesVariableUnbound(t *testing.T) {
	sess := session.New()
	res := runScript(t, sess, "$p = Get-Process; $p")
	assert.Equal(t, "$p = Get-Process", res.Deobfuscated[0])
	// $p was never bound, so the trailing read records an error.
	require.Len(t, res.Errors, 1)
	assert.Equal(t, `VariableError: Variable "p" is not defined`, res.Errors[0].Error())
}

func TestBase64DecodingChain(t *testing.T) {
	src := `[System.Text.Encoding]::Unicode.GetString([System.Convert]::FromBase64String("ZABlAGMAbwBkAGUAZAA="))`
	res := run(t, src)
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"decoded"}, res.Output)

	res = run(t, "$x = "+src)
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$x = 'decoded'"}, res.Deobfuscated)
}

func TestInvalidCastRecordsErrorAndSkipsBinding(t *testing.T) {
	sess := session.New()
	res := runScript(t, sess, `$var = 1 + "Hello, World!"`)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, `ValError: Cannot convert value "String" to type "Int"`, res.Errors[0].Error())
	assert.False(t, sess.Status(), "$? must read false after a failing statement")
	_, err := sess.Get("", "var")
	assert.Error(t, err, "$var must stay unbound")
	assert.Equal(t, []string{"$var = 1 + 'Hello, World!'"}, res.Deobfuscated)
}

func TestStatusLaw(t *testing.T) {
	sess := session.New()
	runScript(t, sess, "[int]'a'")
	res := runScript(t, sess, "$ok = $?")
	assert.Equal(t, []string{"$ok = $false"}, res.Deobfuscated)

	runScript(t, sess, "$fine = 1")
	res = runScript(t, sess, "$ok = $?")
	assert.Equal(t, []string{"$ok = $true"}, res.Deobfuscated)
}

func TestIfReducesToTakenBranch(t *testing.T) {
	res := run(t, `
if ($true) {
    $if_result = "condition true"
}

if ($false) {
    $else_result = "false branch"
} else {
    $else_result = "true branch"
}

$score = 85
if ($score -ge 90) {
    $grade = "A"
} elseif ($score -ge 80) {
    $grade = "B"
} else {
    $grade = "C"
}
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{
		"$if_result = 'condition true'",
		"$else_result = 'true branch'",
		"$score = 85",
		"$grade = 'B'",
	}, res.Deobfuscated)
}

func TestLoopsExecute(t *testing.T) {
	res := run(t, `
$sum = 0
foreach ($n in 1..4) {
    $sum += $n
}
$sum
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Int(10), res.Last)

	res = run(t, `
$i = 0
while ($i -lt 3) {
    $i += 1
}
$i
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Int(3), res.Last)

	res = run(t, `
for ($i = 0; $i -lt 5; $i++) {
    if ($i -eq 3) { break }
}
$i
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Int(3), res.Last)

	res = run(t, `
$j = 0
do { $j++ } until ($j -ge 2)
$j
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Int(2), res.Last)
}

func TestSwitchMatchesClauses(t *testing.T) {
	res := run(t, `
$var = "a"
switch ($var) {
    "a" { $hit = "A" }
    1 { $hit = "One" }
    default { $hit = "Other" }
}
$hit
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Str("A"), res.Last)

	res = run(t, `
switch (5) {
    1 { $hit = "One" }
    default { $hit = "Other" }
}
$hit
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Str("Other"), res.Last)
}

func TestFunctionCallAndReturn(t *testing.T) {
	res := run(t, `
function Get-Square {
    param($x)
    return $x * $x
}
"Square of 5: $(Get-Square 5)"
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Str("Square of 5: 25"), res.Last)
	assert.Equal(t, []string{"Square of 5: 25"}, res.Output)
}

func TestFunctionParameterBinding(t *testing.T) {
	res := run(t, `
function Join-Parts($a, $b, [switch]$upper) {
    $joined = "$a-$b"
    if ($upper) { $joined = $joined.ToUpper() }
    $joined
}
$r1 = Join-Parts one two
$r2 = Join-Parts -b right -a left
$r3 = Join-Parts x y -Upper
`)
	require.Empty(t, res.Errors)
	assert.Contains(t, res.Deobfuscated, "$r1 = 'one-two'")
	assert.Contains(t, res.Deobfuscated, "$r2 = 'left-right'")
	assert.Contains(t, res.Deobfuscated, "$r3 = 'X-Y'")
}

func TestCallOperatorScopes(t *testing.T) {
	sess := session.New()
	res := runScript(t, sess, "$v = 5;& { $v = 10};$v")
	assert.Equal(t, "5", res.Last.Display())

	sess = session.New()
	res = runScript(t, sess, "$v = 5;. { $v = 10};$v")
	assert.Equal(t, "10", res.Last.Display())
}

func TestWriteOutputAndHost(t *testing.T) {
	res := run(t, `
Write-Host "=== Banner ===" -ForegroundColor Green
$a = 10
$b = 5
Write-Output "Addition: $(($a + $b))"
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"=== Banner ===", "Addition: 15"}, res.Output)
	assert.Equal(t, values.Str("Addition: 15"), res.Last)
}

func TestExpandableStringTokens(t *testing.T) {
	res := run(t, `
$a = 10
$b = 5
Write-Output "Addition: $(($a + $b))"
`)
	require.Empty(t, res.Errors)
	require.NotEmpty(t, res.Tokens.ExpandableStrings)
	tok := res.Tokens.ExpandableStrings[0]
	assert.Equal(t, `"Addition: $(($a + $b))"`, tok.Original)
	assert.Equal(t, "Addition: 15", tok.Expanded)

	found := false
	for _, expr := range res.Tokens.Expressions {
		if expr.Original == "$a + $b" {
			found = true
			assert.Equal(t, values.Int(15), expr.Val)
		}
	}
	assert.True(t, found, "expression token $a + $b must be recorded")
}

func TestCommandTokens(t *testing.T) {
	res := run(t, "Get-Process")
	require.Len(t, res.Tokens.Commands, 1)
	assert.Equal(t, "Get-Process", res.Tokens.Commands[0].Original)
	assert.True(t, values.IsUnknown(res.Tokens.Commands[0].Val))
}

func TestMatchesAutomaticVariable(t *testing.T) {
	sess := session.New()
	res := runScript(t, sess, `$ok = "version 10.4" -match "(\d+)\.(\d+)"; $major = $matches[1]`)
	require.Empty(t, res.Errors)
	assert.Contains(t, res.Deobfuscated, "$ok = $true")
	assert.Contains(t, res.Deobfuscated, "$major = '10'")
}

func TestSelectSortMeasure(t *testing.T) {
	res := run(t, "$s = 3,1,2 | Sort-Object")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$s = @(1,2,3)"}, res.Deobfuscated)

	res = run(t, "$d = 3,1,2 | Sort-Object -Descending")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$d = @(3,2,1)"}, res.Deobfuscated)

	res = run(t, "$f = 1..5 | Select-Object -First 2")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"$f = @(1,2)"}, res.Deobfuscated)

	sess := session.New()
	res = runScript(t, sess, "$m = (1..4 | Measure-Object -Sum -Average)\n$m.Sum\n$m.Average")
	require.Empty(t, res.Errors)
	v, err := sess.Get("", "m")
	require.NoError(t, err)
	ht := v.(*values.HashTable)
	sum, _ := ht.Get("sum")
	assert.Equal(t, values.Int(10), sum)
	avg, _ := ht.Get("average")
	assert.Equal(t, values.Double(2.5), avg)
}

func TestHashTableMembers(t *testing.T) {
	sess := session.New()
	res := runScript(t, sess, `
$nestedData = @{
    Users = @(
        @{ Name = "Alice"; Age = 30 }
        @{ Name = "Bob"; Age = 25 }
    )
    Settings = @{
        Theme = "Dark"
    }
}
"$nestedData"
`)
	require.Empty(t, res.Errors)
	assert.Equal(t, values.Str("System.Collections.Hashtable"), res.Last)

	res = runScript(t, sess, "$nesteddata.settings.theme")
	require.Empty(t, res.Errors)
	assert.Equal(t, "Dark", res.Last.Display())

	res = runScript(t, sess, "$nesteddata.users[0]['name']")
	require.Empty(t, res.Errors)
	assert.Equal(t, "Alice", res.Last.Display())

	res = runScript(t, sess, "$nesteddata.users[0].NAME")
	require.Empty(t, res.Errors)
	assert.Equal(t, "Alice", res.Last.Display())
}

func TestRecursionLimit(t *testing.T) {
	sess := session.New()
	sess.Opts.MaxDepth = 16
	res := runScript(t, sess, `
function Loop-Forever($n) { Loop-Forever ($n + 1) }
Loop-Forever 0
`)
	require.NotEmpty(t, res.Errors)
	found := false
	for _, err := range res.Errors {
		if strings.Contains(err.Error(), "recursion limit") {
			found = true
		}
	}
	assert.True(t, found, "errors: %v", res.Errors)
}

func TestStepBudgetTurnsOpaque(t *testing.T) {
	sess := session.New()
	sess.Opts.StepBudget = 50
	res := runScript(t, sess, `
$i = 0
while ($i -lt 100000) { $i += 1 }
`)
	require.NotEmpty(t, res.Errors)
	budgeted := false
	for _, err := range res.Errors {
		if strings.Contains(err.Error(), "budget") {
			budgeted = true
		}
	}
	assert.True(t, budgeted, "errors: %v", res.Errors)
}

func TestRenderIdempotence(t *testing.T) {
	srcs := []string{
		"$y = 2/4; $arg = 20MB*$y",
		"$a = @('a','b','c'); $b = $a[2]; $b",
		"$e = 1..10 | Where-Object { $_ % 2 -eq 0 }",
	}
	for _, src := range srcs {
		first := run(t, src)
		require.Empty(t, first.Errors, src)
		deob := strings.Join(first.Deobfuscated, "\n")
		second := run(t, deob)
		require.Empty(t, second.Errors, deob)
		assert.Equal(t, deob, strings.Join(second.Deobfuscated, "\n"), "src: %s", src)
	}
}

func TestForceVarEval(t *testing.T) {
	sess := session.New()
	sess.Opts.ForceVarEval = true
	res := runScript(t, sess, "$global:var = $env:programfiles;[int]'a'")
	assert.Equal(t, []string{"$var = $null", "[int]'a'"}, res.Deobfuscated)
	require.Len(t, res.Errors, 1)
}

func TestUndefinedEnvKeepsStatementVerbatim(t *testing.T) {
	res := run(t, "$local:var = $env:programfiles;[int]'a';$var")
	assert.Equal(t, []string{
		"$local:var = $env:programfiles",
		"[int]'a'",
		"$var",
	}, res.Deobfuscated)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, `VariableError: Variable "programfiles" is not defined`, res.Errors[0].Error())
	assert.Equal(t, `ValError: Cannot convert value "String" to type "Int"`, res.Errors[1].Error())
	assert.Equal(t, `VariableError: Variable "var" is not defined`, res.Errors[2].Error())
}

func TestEnvironmentRead(t *testing.T) {
	sess := session.New()
	sess.SetEnv("ProgramFiles", values.Str(`C:\Program Files`))
	res := runScript(t, sess, "$global:var = $env:programfiles;$var")
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{
		`$var = 'C:\Program Files'`,
		`'C:\Program Files'`,
	}, res.Deobfuscated)
}
