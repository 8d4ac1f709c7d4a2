package values

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numeric coercion used by the arithmetic operators: $null counts as 0,
// booleans as 0/1, chars as their code point, strings parse as int then
// float.
func toNumber(v Val) (Val, *ValError) {
	switch x := v.(type) {
	case Null:
		return Int(0), nil
	case Bool:
		if x {
			return Int(1), nil
		}
		return Int(0), nil
	case Int, Double:
		return v, nil
	case Char:
		return Int(x), nil
	case Str:
		return parseNumericString(string(x))
	case *Array:
		if len(x.Items) == 1 {
			return toNumber(x.Items[0])
		}
	}
	return nil, NewInvalidCast(v.TypeName(), "Int")
}

func parseNumericString(s string) (Val, *ValError) {
	t := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return Int(i), nil
	}
	if strings.HasPrefix(strings.ToLower(t), "0x") {
		if i, err := strconv.ParseInt(strings.ToLower(t)[2:], 16, 64); err == nil {
			return Int(i), nil
		}
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return Double(f), nil
	}
	return nil, NewInvalidCast("String", "Int")
}

func bothUnknown(a, b Val) bool { return IsUnknown(a) || IsUnknown(b) }

// Add implements PowerShell `+`. The left operand picks the semantics:
// numeric addition with Int-overflow promotion to Double, string
// concatenation, array append, hash table merge.
func Add(a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	switch l := a.(type) {
	case Null:
		return CloneVal(b), nil
	case Str:
		return Str(string(l) + b.Display()), nil
	case Char:
		switch r := b.(type) {
		case Char:
			return Str(string(rune(l)) + string(rune(r))), nil
		case Str:
			return Str(string(rune(l)) + string(r)), nil
		default:
			rn, err := toNumber(b)
			if err != nil {
				return Null{}, err
			}
			return addNumeric(Int(l), rn)
		}
	case *Array:
		out := CloneVal(l).(*Array)
		switch r := b.(type) {
		case *Array:
			for _, it := range r.Items {
				out.Items = append(out.Items, CloneVal(it))
			}
		case Range:
			out.Items = append(out.Items, r.Realize().Items...)
		default:
			out.Items = append(out.Items, CloneVal(b))
		}
		return out, nil
	case *HashTable:
		r, ok := b.(*HashTable)
		if !ok {
			return Null{}, NewTypeMismatch("+", a.TypeName(), b.TypeName())
		}
		out := l.Clone()
		for _, k := range r.Keys() {
			if out.Has(k) {
				return Null{}, NewUnsupportedOperation(
					"Item has already been added. Key in dictionary: '" + k + "'")
			}
			rv, _ := r.Get(k)
			out.Set(k, CloneVal(rv))
		}
		return out, nil
	case Range:
		return Add(l.Realize(), b)
	}
	ln, err := toNumber(a)
	if err != nil {
		return Null{}, err
	}
	rn, err := toNumber(b)
	if err != nil {
		return Null{}, err
	}
	return addNumeric(ln, rn)
}

func addNumeric(a, b Val) (Val, error) {
	if ai, ok := a.(Int); ok {
		if bi, ok := b.(Int); ok {
			sum := int64(ai) + int64(bi)
			if (int64(ai) > 0 && int64(bi) > 0 && sum < 0) ||
				(int64(ai) < 0 && int64(bi) < 0 && sum > 0) {
				return Double(float64(ai) + float64(bi)), nil
			}
			return Int(sum), nil
		}
	}
	return Double(numAsFloat(a) + numAsFloat(b)), nil
}

func numAsFloat(v Val) float64 {
	switch x := v.(type) {
	case Int:
		return float64(x)
	case Double:
		return float64(x)
	}
	return 0
}

// Sub implements `-`.
func Sub(a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	ln, err := toNumber(a)
	if err != nil {
		return Null{}, err
	}
	rn, err := toNumber(b)
	if err != nil {
		return Null{}, err
	}
	if ai, ok := ln.(Int); ok {
		if bi, ok := rn.(Int); ok {
			return Int(int64(ai) - int64(bi)), nil
		}
	}
	return Double(numAsFloat(ln) - numAsFloat(rn)), nil
}

// Mul implements `*`: numeric product, string repetition, array
// repetition. A non-positive count yields the empty string or array.
func Mul(a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	switch l := a.(type) {
	case Str:
		n, err := repeatCount(b)
		if err != nil {
			return Null{}, err
		}
		return Str(strings.Repeat(string(l), n)), nil
	case *Array:
		n, err := repeatCount(b)
		if err != nil {
			return Null{}, err
		}
		out := &Array{}
		for i := 0; i < n; i++ {
			for _, it := range l.Items {
				out.Items = append(out.Items, CloneVal(it))
			}
		}
		return out, nil
	}
	ln, err := toNumber(a)
	if err != nil {
		return Null{}, err
	}
	rn, err := toNumber(b)
	if err != nil {
		return Null{}, err
	}
	if ai, ok := ln.(Int); ok {
		if bi, ok := rn.(Int); ok {
			prod := int64(ai) * int64(bi)
			if ai != 0 && prod/int64(ai) != int64(bi) {
				return Double(float64(ai) * float64(bi)), nil
			}
			return Int(prod), nil
		}
	}
	return Double(numAsFloat(ln) * numAsFloat(rn)), nil
}

func repeatCount(v Val) (int, *ValError) {
	n, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	c := int(numAsFloat(n))
	if c < 0 {
		c = 0
	}
	return c, nil
}

// Div implements `/`. Integer division that does not divide evenly
// produces a Double, matching PowerShell.
func Div(a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	ln, err := toNumber(a)
	if err != nil {
		return Null{}, err
	}
	rn, err := toNumber(b)
	if err != nil {
		return Null{}, err
	}
	if numAsFloat(rn) == 0 {
		return Null{}, NewDivideByZero()
	}
	if ai, ok := ln.(Int); ok {
		if bi, ok := rn.(Int); ok {
			if int64(ai)%int64(bi) == 0 {
				return Int(int64(ai) / int64(bi)), nil
			}
			return Double(float64(ai) / float64(bi)), nil
		}
	}
	return Double(numAsFloat(ln) / numAsFloat(rn)), nil
}

// Mod implements `%`.
func Mod(a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	ln, err := toNumber(a)
	if err != nil {
		return Null{}, err
	}
	rn, err := toNumber(b)
	if err != nil {
		return Null{}, err
	}
	if numAsFloat(rn) == 0 {
		return Null{}, NewDivideByZero()
	}
	if ai, ok := ln.(Int); ok {
		if bi, ok := rn.(Int); ok {
			return Int(int64(ai) % int64(bi)), nil
		}
	}
	return Double(math.Mod(numAsFloat(ln), numAsFloat(rn))), nil
}

// Neg implements unary minus.
func Neg(v Val) (Val, error) {
	if IsUnknown(v) {
		return Unknown{}, nil
	}
	n, err := toNumber(v)
	if err != nil {
		return Null{}, err
	}
	if i, ok := n.(Int); ok {
		return Int(-i), nil
	}
	return Double(-n.(Double)), nil
}

// ----------------------------------------------------------------------------
// Comparison
// ----------------------------------------------------------------------------

// Compare implements -eq -ne -lt -le -gt -ge and their c/i variants. The
// right operand coerces to the left operand's type. When the left operand
// is a collection PowerShell returns the matching elements instead of a
// boolean; callers that need a boolean should booleanize the result.
func Compare(op string, a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	caseSensitive := strings.HasPrefix(op, "c")
	base := strings.TrimPrefix(strings.TrimPrefix(op, "c"), "i")

	if arr, ok := a.(*Array); ok {
		out := &Array{}
		for _, it := range arr.Items {
			keep, err := compareScalar(base, it, b, caseSensitive)
			if err != nil {
				return Null{}, err
			}
			if keep {
				out.Items = append(out.Items, it)
			}
		}
		return out, nil
	}
	if r, ok := a.(Range); ok {
		return Compare(op, r.Realize(), b)
	}
	res, err := compareScalar(base, a, b, caseSensitive)
	if err != nil {
		return Null{}, err
	}
	return Bool(res), nil
}

func compareScalar(base string, a, b Val, caseSensitive bool) (bool, error) {
	switch base {
	case "eq":
		return compareEq(a, b, caseSensitive)
	case "ne":
		eq, err := compareEq(a, b, caseSensitive)
		return !eq, err
	}
	ord, err := compareOrder(a, b, caseSensitive)
	if err != nil {
		return false, err
	}
	switch base {
	case "lt":
		return ord < 0, nil
	case "le":
		return ord <= 0, nil
	case "gt":
		return ord > 0, nil
	case "ge":
		return ord >= 0, nil
	}
	return false, NewUnsupportedOperation("unknown comparison operator -" + base)
}

func compareEq(a, b Val, caseSensitive bool) (bool, error) {
	switch l := a.(type) {
	case Null:
		_, isNull := b.(Null)
		return isNull, nil
	case Bool:
		return bool(l) == Truthy(b), nil
	case Int, Double:
		rn, err := toNumber(b)
		if err != nil {
			// Numeric left compared to a non-number is simply unequal.
			return false, nil
		}
		return numAsFloat(numOrSelf(a)) == numAsFloat(rn), nil
	case Char:
		switch r := b.(type) {
		case Char:
			return compareStrings(string(rune(l)), string(rune(r)), caseSensitive) == 0, nil
		case Str:
			return compareStrings(string(rune(l)), string(r), caseSensitive) == 0, nil
		}
		rn, err := toNumber(b)
		if err != nil {
			return false, nil
		}
		return float64(l) == numAsFloat(rn), nil
	case Str:
		return compareStrings(string(l), b.Display(), caseSensitive) == 0, nil
	case *Array:
		r, ok := b.(*Array)
		if !ok || len(l.Items) != len(r.Items) {
			return false, nil
		}
		for i := range l.Items {
			eq, err := compareEq(l.Items[i], r.Items[i], caseSensitive)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *HashTable:
		r, ok := b.(*HashTable)
		if !ok || l.Len() != r.Len() {
			return false, nil
		}
		for _, k := range l.Keys() {
			rv, present := r.Get(k)
			if !present {
				return false, nil
			}
			lv, _ := l.Get(k)
			eq, err := compareEq(lv, rv, caseSensitive)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case Range:
		return compareEq(l.Realize(), b, caseSensitive)
	case Type:
		if r, ok := b.(Type); ok {
			return l.Name == r.Name, nil
		}
		return strings.EqualFold(l.Name, b.Display()), nil
	}
	return false, nil
}

func numOrSelf(v Val) Val {
	n, err := toNumber(v)
	if err != nil {
		return Int(0)
	}
	return n
}

func compareOrder(a, b Val, caseSensitive bool) (int, error) {
	switch l := a.(type) {
	case Str:
		return compareStrings(string(l), b.Display(), caseSensitive), nil
	case Char:
		return compareStrings(string(rune(l)), b.Display(), caseSensitive), nil
	}
	ln, err := toNumber(a)
	if err != nil {
		return 0, NewTypeMismatch("comparison", a.TypeName(), b.TypeName())
	}
	rn, err := toNumber(b)
	if err != nil {
		return 0, err
	}
	lf, rf := numAsFloat(ln), numAsFloat(rn)
	switch {
	case lf < rf:
		return -1, nil
	case lf > rf:
		return 1, nil
	default:
		return 0, nil
	}
}

func compareStrings(a, b string, caseSensitive bool) int {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return strings.Compare(a, b)
}

// ----------------------------------------------------------------------------
// Pattern operators
// ----------------------------------------------------------------------------

// Like implements -like / -notlike wildcard matching with * and ?.
func Like(a, b Val, caseSensitive, negate bool) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	pattern := wildcardToRegex(b.Display(), caseSensitive)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Null{}, NewUnsupportedOperation("invalid wildcard pattern: " + b.Display())
	}
	if arr, ok := a.(*Array); ok {
		out := &Array{}
		for _, it := range arr.Items {
			if re.MatchString(it.Display()) != negate {
				out.Items = append(out.Items, it)
			}
		}
		return out, nil
	}
	return Bool(re.MatchString(a.Display()) != negate), nil
}

func wildcardToRegex(pattern string, caseSensitive bool) string {
	var sb strings.Builder
	if !caseSensitive {
		sb.WriteString("(?i)")
	}
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// MatchResult carries the -match verdict plus the capture groups that feed
// the $matches automatic variable.
type MatchResult struct {
	Val     Val
	Matches *HashTable // nil when no match
}

// Match implements -match / -notmatch. Regular expressions are
// case-insensitive unless the c-variant was used.
func Match(a, b Val, caseSensitive, negate bool) (MatchResult, error) {
	if bothUnknown(a, b) {
		return MatchResult{Val: Unknown{}}, nil
	}
	re, verr := compileRegex(b.Display(), caseSensitive)
	if verr != nil {
		return MatchResult{Val: Null{}}, verr
	}
	if arr, ok := a.(*Array); ok {
		out := &Array{}
		for _, it := range arr.Items {
			if re.MatchString(it.Display()) != negate {
				out.Items = append(out.Items, it)
			}
		}
		return MatchResult{Val: out}, nil
	}
	m := re.FindStringSubmatch(a.Display())
	matched := m != nil
	res := MatchResult{Val: Bool(matched != negate)}
	if matched {
		ht := NewHashTable()
		names := re.SubexpNames()
		for i, g := range m {
			if i < len(names) && names[i] != "" {
				ht.Set(names[i], Str(g))
			} else {
				ht.Set(strconv.Itoa(i), Str(g))
			}
		}
		res.Matches = ht
	}
	return res, nil
}

func compileRegex(pattern string, caseSensitive bool) (*regexp.Regexp, *ValError) {
	p := pattern
	if !caseSensitive {
		p = "(?i)" + p
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, NewUnsupportedOperation("invalid regular expression: " + pattern)
	}
	return re, nil
}

// Replace implements -replace. The right operand is either a pattern, or a
// two element array of pattern and replacement; the one-argument form
// deletes matches.
func Replace(a, b Val, caseSensitive bool) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	pattern, replacement := "", ""
	switch r := b.(type) {
	case *Array:
		if len(r.Items) == 0 {
			return a, nil
		}
		pattern = r.Items[0].Display()
		if len(r.Items) > 1 {
			replacement = r.Items[1].Display()
		}
	default:
		pattern = b.Display()
	}
	re, verr := compileRegex(pattern, caseSensitive)
	if verr != nil {
		return Null{}, verr
	}
	if arr, ok := a.(*Array); ok {
		out := &Array{}
		for _, it := range arr.Items {
			out.Items = append(out.Items, Str(re.ReplaceAllString(it.Display(), replacement)))
		}
		return out, nil
	}
	return Str(re.ReplaceAllString(a.Display(), replacement)), nil
}

// Split implements binary -split: the separator is a regular expression,
// case-insensitive by default. An optional second element bounds the count.
func Split(a, b Val, caseSensitive bool) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	pattern := b.Display()
	limit := -1
	if arr, ok := b.(*Array); ok && len(arr.Items) > 0 {
		pattern = arr.Items[0].Display()
		if len(arr.Items) > 1 {
			n, err := toNumber(arr.Items[1])
			if err == nil {
				limit = int(numAsFloat(n))
			}
		}
	}
	re, verr := compileRegex(pattern, caseSensitive)
	if verr != nil {
		return Null{}, verr
	}
	parts := re.Split(a.Display(), limit)
	out := &Array{}
	for _, p := range parts {
		out.Items = append(out.Items, Str(p))
	}
	return out, nil
}

// SplitWhitespace implements unary -split.
func SplitWhitespace(v Val) (Val, error) {
	if IsUnknown(v) {
		return Unknown{}, nil
	}
	out := &Array{}
	for _, p := range strings.Fields(v.Display()) {
		out.Items = append(out.Items, Str(p))
	}
	return out, nil
}

// Join implements -join. The unary form joins with the empty separator.
func Join(a Val, sep string) (Val, error) {
	if IsUnknown(a) {
		return Unknown{}, nil
	}
	items := ToIterable(a)
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Display()
	}
	return Str(strings.Join(parts, sep)), nil
}

// Contains implements -contains / -notcontains: membership of the right
// value in the left collection.
func Contains(a, b Val, caseSensitive, negate bool) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	found := false
	for _, it := range ToIterable(a) {
		eq, err := compareEq(it, b, caseSensitive)
		if err != nil {
			return Null{}, err
		}
		if eq {
			found = true
			break
		}
	}
	return Bool(found != negate), nil
}

// ----------------------------------------------------------------------------
// Bitwise and logical
// ----------------------------------------------------------------------------

func toInt64(v Val) (int64, *ValError) {
	n, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	if i, ok := n.(Int); ok {
		return int64(i), nil
	}
	return int64(math.RoundToEven(float64(n.(Double)))), nil
}

// Bitwise implements -band -bor -bxor -shl -shr.
func Bitwise(op string, a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	l, err := toInt64(a)
	if err != nil {
		return Null{}, err
	}
	r, err := toInt64(b)
	if err != nil {
		return Null{}, err
	}
	switch op {
	case "band":
		return Int(l & r), nil
	case "bor":
		return Int(l | r), nil
	case "bxor":
		return Int(l ^ r), nil
	case "shl":
		return Int(l << uint64(r&63)), nil
	case "shr":
		return Int(l >> uint64(r&63)), nil
	}
	return Null{}, NewUnsupportedOperation("unknown bitwise operator -" + op)
}

// BNot implements unary -bnot.
func BNot(v Val) (Val, error) {
	if IsUnknown(v) {
		return Unknown{}, nil
	}
	i, err := toInt64(v)
	if err != nil {
		return Null{}, err
	}
	return Int(^i), nil
}

// Logical implements -and -or -xor over booleanized operands.
func Logical(op string, a, b Val) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	l, r := Truthy(a), Truthy(b)
	switch op {
	case "and":
		return Bool(l && r), nil
	case "or":
		return Bool(l || r), nil
	case "xor":
		return Bool(l != r), nil
	}
	return Null{}, NewUnsupportedOperation("unknown logical operator -" + op)
}

// Is implements -is / -isnot type tests. The right operand is a type
// literal or a type name string.
func Is(a, b Val, negate bool) (Val, error) {
	if bothUnknown(a, b) {
		return Unknown{}, nil
	}
	name := ""
	switch r := b.(type) {
	case Type:
		name = r.Name
	default:
		name = strings.ToLower(b.Display())
	}
	name = strings.TrimPrefix(name, "system.")
	match := false
	switch name {
	case "int", "int32", "int64", "long":
		_, match = a.(Int)
	case "double", "float", "single":
		_, match = a.(Double)
	case "string":
		_, match = a.(Str)
	case "char":
		_, match = a.(Char)
	case "bool", "boolean":
		_, match = a.(Bool)
	case "array", "object[]":
		_, match = a.(*Array)
		if !match {
			_, match = a.(Range)
		}
	case "hashtable", "collections.hashtable":
		_, match = a.(*HashTable)
	case "scriptblock", "management.automation.scriptblock":
		_, match = a.(*ScriptBlock)
	}
	return Bool(match != negate), nil
}
