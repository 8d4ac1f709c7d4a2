package values

import (
	"math"
	"strconv"
	"strings"
)

// canonicalType maps the accepted spellings of a cast target to its
// canonical name. Unlisted names are not castable (but may still be valid
// static-method receivers, which the evaluator resolves separately).
var canonicalType = map[string]string{
	"int":       "int",
	"int32":     "int",
	"int64":     "long",
	"long":      "long",
	"byte":      "byte",
	"char":      "char",
	"double":    "double",
	"float":     "double",
	"single":    "double",
	"string":    "string",
	"bool":      "bool",
	"boolean":   "bool",
	"array":     "array",
	"object[]":  "array",
	"hashtable": "hashtable",
	"type":      "type",
	"regex":     "string",
}

// IsCastType reports whether name (lowercase, optionally System.-prefixed)
// is a recognized cast target.
func IsCastType(name string) bool {
	_, ok := canonicalType[strings.TrimPrefix(name, "system.")]
	return ok
}

// Cast implements `[T]expr`. Failures return InvalidCast and the caller
// records the error, yields $null and clears $?.
func Cast(typeName string, v Val) (Val, error) {
	if IsUnknown(v) {
		return Unknown{}, nil
	}
	canon, ok := canonicalType[strings.TrimPrefix(strings.ToLower(typeName), "system.")]
	if !ok {
		return Null{}, NewUnknownType(typeName)
	}
	switch canon {
	case "int", "long":
		return castInt(v)
	case "byte":
		return castByte(v)
	case "char":
		return castChar(v)
	case "double":
		return castDouble(v)
	case "string":
		return Str(v.Display()), nil
	case "bool":
		return Bool(Truthy(v)), nil
	case "array":
		switch x := v.(type) {
		case *Array:
			return x, nil
		case Range:
			return x.Realize(), nil
		case Null:
			return &Array{}, nil
		default:
			return NewArray(v), nil
		}
	case "hashtable":
		if h, ok := v.(*HashTable); ok {
			return h, nil
		}
		return Null{}, NewInvalidCast(v.TypeName(), "HashTable")
	case "type":
		return Type{Name: strings.ToLower(v.Display())}, nil
	}
	return Null{}, NewUnknownType(typeName)
}

func castInt(v Val) (Val, error) {
	switch x := v.(type) {
	case Null:
		return Int(0), nil
	case Bool:
		if x {
			return Int(1), nil
		}
		return Int(0), nil
	case Int:
		return x, nil
	case Double:
		// .NET rounds to even on conversion to integer.
		return Int(int64(math.RoundToEven(float64(x)))), nil
	case Char:
		return Int(x), nil
	case Str:
		t := strings.TrimSpace(string(x))
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return Int(i), nil
		}
		if strings.HasPrefix(strings.ToLower(t), "0x") {
			if i, err := strconv.ParseInt(strings.ToLower(t)[2:], 16, 64); err == nil {
				return Int(i), nil
			}
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return Int(int64(math.RoundToEven(f))), nil
		}
		return Null{}, NewInvalidCast("String", "Int")
	}
	return Null{}, NewInvalidCast(v.TypeName(), "Int")
}

func castByte(v Val) (Val, error) {
	iv, err := castInt(v)
	if err != nil {
		return Null{}, NewInvalidCast(v.TypeName(), "Byte")
	}
	i := int64(iv.(Int))
	if i < 0 || i > 255 {
		return Null{}, NewInvalidCast(v.TypeName(), "Byte")
	}
	return Int(i), nil
}

func castChar(v Val) (Val, error) {
	switch x := v.(type) {
	case Char:
		return x, nil
	case Int:
		if x < 0 || x > 0x10FFFF {
			return Null{}, NewInvalidCast("Int", "Char")
		}
		return Char(rune(x)), nil
	case Double:
		return castChar(Int(int64(math.RoundToEven(float64(x)))))
	case Str:
		runes := []rune(string(x))
		if len(runes) != 1 {
			return Null{}, NewInvalidCast("String", "Char")
		}
		return Char(runes[0]), nil
	}
	return Null{}, NewInvalidCast(v.TypeName(), "Char")
}

func castDouble(v Val) (Val, error) {
	switch x := v.(type) {
	case Null:
		return Double(0), nil
	case Bool:
		if x {
			return Double(1), nil
		}
		return Double(0), nil
	case Int:
		return Double(x), nil
	case Double:
		return x, nil
	case Char:
		return Double(x), nil
	case Str:
		if f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64); err == nil {
			return Double(f), nil
		}
		return Null{}, NewInvalidCast("String", "Double")
	}
	return Null{}, NewInvalidCast(v.TypeName(), "Double")
}
