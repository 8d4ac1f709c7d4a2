package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSemantics(t *testing.T) {
	tests := []struct {
		name string
		a, b Val
		want Val
	}{
		{name: "int_int", a: Int(2), b: Int(3), want: Int(5)},
		{name: "int_double_promotes", a: Int(1), b: Double(0.5), want: Double(1.5)},
		{name: "null_absorbs_left", a: Null{}, b: Int(7), want: Int(7)},
		{name: "string_concat_coerces_right", a: Str("n="), b: Int(4), want: Str("n=4")},
		{name: "string_plus_bool", a: Str("is "), b: Bool(true), want: Str("is True")},
		{name: "int_plus_numeric_string", a: Int(1), b: Str("41"), want: Int(42)},
		{name: "char_plus_char_concats", a: Char('a'), b: Char('b'), want: Str("ab")},
		{name: "char_plus_int_is_code_math", a: Char('a'), b: Int(1), want: Int(98)},
		{name: "array_append_scalar", a: NewArray(Int(1)), b: Int(2), want: NewArray(Int(1), Int(2))},
		{
			name: "array_concat_array",
			a:    NewArray(Int(1)), b: NewArray(Int(2), Int(3)),
			want: NewArray(Int(1), Int(2), Int(3)),
		},
		{name: "unknown_poisons", a: Int(1), b: Unknown{}, want: Unknown{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Add(tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got) || got.Kind() == tt.want.Kind() && got.Display() == tt.want.Display(),
				"want %s, got %s", Sprint(tt.want), Sprint(got))
		})
	}
}

func TestAddInvalidCast(t *testing.T) {
	_, err := Add(Int(1), Str("Hello, World!"))
	require.Error(t, err)
	assert.Equal(t, `ValError: Cannot convert value "String" to type "Int"`, err.Error())
}

func TestHashTableMergeDuplicateKey(t *testing.T) {
	a := NewHashTable()
	a.Set("Key", Int(1))
	b := NewHashTable()
	b.Set("key", Int(2))
	_, err := Add(a, b)
	require.Error(t, err)

	c := NewHashTable()
	c.Set("Other", Int(2))
	merged, err := Add(a, c)
	require.NoError(t, err)
	ht := merged.(*HashTable)
	assert.Equal(t, 2, ht.Len())
	v, ok := ht.Get("OTHER")
	require.True(t, ok)
	assert.Equal(t, Int(2), v)
}

func TestMulSemantics(t *testing.T) {
	tests := []struct {
		name string
		a, b Val
		want Val
	}{
		{name: "int_int", a: Int(6), b: Int(7), want: Int(42)},
		{name: "string_repeat", a: Str("ab"), b: Int(3), want: Str("ababab")},
		{name: "string_repeat_negative_is_empty", a: Str("text"), b: Int(-1), want: Str("")},
		{name: "string_repeat_zero_is_empty", a: Str("text"), b: Int(0), want: Str("")},
		{
			name: "array_repeat",
			a:    NewArray(Int(1), Int(2)), b: Int(2),
			want: NewArray(Int(1), Int(2), Int(1), Int(2)),
		},
		{name: "suffix_scaling_shape", a: Int(20 * 1024 * 1024), b: Double(0.5), want: Double(10485760)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Mul(tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "want %s, got %s", Sprint(tt.want), Sprint(got))
		})
	}
}

func TestDivSemantics(t *testing.T) {
	got, err := Div(Int(2), Int(4))
	require.NoError(t, err)
	assert.Equal(t, Double(0.5), got)

	got, err = Div(Int(10), Int(5))
	require.NoError(t, err)
	assert.Equal(t, Int(2), got)

	_, err = Div(Int(1), Int(0))
	require.Error(t, err)
	assert.Equal(t, "ValError: Can't divide by zero", err.Error())
}

func TestCompareCoercesRightToLeft(t *testing.T) {
	tests := []struct {
		name string
		op   string
		a, b Val
		want bool
	}{
		{name: "string_eq_case_insensitive", op: "eq", a: Str("ABC"), b: Str("abc"), want: true},
		{name: "ceq_case_sensitive", op: "ceq", a: Str("ABC"), b: Str("abc"), want: false},
		{name: "int_eq_string", op: "eq", a: Int(5), b: Str("5"), want: true},
		{name: "string_eq_int", op: "eq", a: Str("5"), b: Int(5), want: true},
		{name: "lt_numeric", op: "lt", a: Int(3), b: Int(4), want: true},
		{name: "ge_numeric", op: "ge", a: Double(2.5), b: Int(2), want: true},
		{name: "bool_left_booleanizes_right", op: "eq", a: Bool(true), b: Int(17), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.op, tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, Bool(tt.want), got)
		})
	}
}

func TestCompareArrayLeftFilters(t *testing.T) {
	arr := NewArray(Int(1), Int(2), Int(3), Int(2))
	got, err := Compare("eq", arr, Int(2))
	require.NoError(t, err)
	assert.True(t, Equal(NewArray(Int(2), Int(2)), got), Sprint(got))
}

func TestLikeWildcards(t *testing.T) {
	got, err := Like(Str("PowerShell"), Str("power*"), false, false)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), got)

	got, err = Like(Str("cat"), Str("c?t"), false, false)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), got)

	got, err = Like(Str("cat"), Str("b*"), false, true)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), got)
}

func TestMatchCapturesGroups(t *testing.T) {
	res, err := Match(Str("version 10.4"), Str(`(\d+)\.(\d+)`), false, false)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), res.Val)
	require.NotNil(t, res.Matches)
	whole, _ := res.Matches.Get("0")
	assert.Equal(t, Str("10.4"), whole)
	major, _ := res.Matches.Get("1")
	assert.Equal(t, Str("10"), major)
}

func TestReplaceForms(t *testing.T) {
	// Two-argument form.
	got, err := Replace(Str("9e4e"), NewArray(Str("e"), Str("")), false)
	require.NoError(t, err)
	assert.Equal(t, Str("94"), got)

	// One-argument form deletes matches.
	got, err = Replace(Str("9e4e"), Str("e"), false)
	require.NoError(t, err)
	assert.Equal(t, Str("94"), got)

	// Case-insensitive by default.
	got, err = Replace(Str("AbAb"), NewArray(Str("a"), Str("x")), false)
	require.NoError(t, err)
	assert.Equal(t, Str("xbxb"), got)

	// Unicode category classes reach the regexp engine untouched.
	got, err = Replace(Str("Ámsi"), Str(`\p{Mn}`), false)
	require.NoError(t, err)
	assert.Equal(t, Str("Amsi"), got)
}

func TestSplitJoin(t *testing.T) {
	got, err := Split(Str("a,b,,c"), Str(","), false)
	require.NoError(t, err)
	assert.True(t, Equal(NewArray(Str("a"), Str("b"), Str(""), Str("c")), got), Sprint(got))

	got, err = SplitWhitespace(Str("  a\tb  c "))
	require.NoError(t, err)
	assert.True(t, Equal(NewArray(Str("a"), Str("b"), Str("c")), got), Sprint(got))

	joined, err := Join(NewArray(Int(1), Int(2), Int(3)), "-")
	require.NoError(t, err)
	assert.Equal(t, Str("1-2-3"), joined)
}

func TestContainsMembership(t *testing.T) {
	arr := NewArray(Str("Alpha"), Str("beta"))
	got, err := Contains(arr, Str("ALPHA"), false, false)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), got)

	got, err = Contains(arr, Str("gamma"), false, true)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), got)
}

func TestBitwiseAndLogical(t *testing.T) {
	got, err := Bitwise("band", Int(0b1100), Int(0b1010))
	require.NoError(t, err)
	assert.Equal(t, Int(0b1000), got)

	got, err = Bitwise("shl", Int(1), Int(4))
	require.NoError(t, err)
	assert.Equal(t, Int(16), got)

	got, err = BNot(Int(0))
	require.NoError(t, err)
	assert.Equal(t, Int(-1), got)

	got, err = Logical("xor", Bool(true), Str(""))
	require.NoError(t, err)
	assert.Equal(t, Bool(true), got)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(Null{}))
	assert.False(t, Truthy(Int(0)))
	assert.False(t, Truthy(Str("")))
	assert.False(t, Truthy(&Array{}))
	assert.True(t, Truthy(Str("any")))
	assert.True(t, Truthy(Int(-1)))
	assert.True(t, Truthy(NewArray(Int(0), Int(0))))
	assert.False(t, Truthy(NewArray(Int(0))))
}
