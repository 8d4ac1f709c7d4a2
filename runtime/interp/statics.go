package interp

import (
	"encoding/base64"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/radkum/ps-parser/core/values"
)

// normalizeTypeName canonicalizes a static receiver: the System. prefix is
// optional and case never matters.
func normalizeTypeName(name string) string {
	return strings.TrimPrefix(strings.ToLower(name), "system.")
}

// staticMember resolves `[T]::Name` without invocation. Encoding selectors
// extend the type path so the subsequent GetString call can dispatch on it.
func (e *Evaluator) staticMember(t values.Type, name string) values.Val {
	switch normalizeTypeName(t.Name) {
	case "text.encoding":
		switch name {
		case "unicode", "utf8", "ascii", "utf32", "bigendianunicode":
			return values.Type{Name: t.Name + "::" + name}
		}
	case "math":
		switch name {
		case "pi":
			return values.Double(math.Pi)
		case "e":
			return values.Double(math.E)
		}
	}
	e.recordError(values.NewUnknownMember(name, "["+t.Name+"]"))
	return values.Null{}
}

// staticCall dispatches the whitelisted static method table. Anything
// outside it records an error; the enclosing statement then re-emits
// verbatim.
func (e *Evaluator) staticCall(t values.Type, name string, args []values.Val) values.Val {
	for _, a := range args {
		if values.IsUnknown(a) {
			return values.Unknown{}
		}
	}
	typeName := normalizeTypeName(t.Name)
	if base, encoding, ok := strings.Cut(typeName, "::"); ok && base == "text.encoding" {
		return e.encodingCall(encoding, name, args)
	}
	switch typeName {
	case "convert":
		return e.convertCall(name, args)
	case "math":
		return e.mathCall(name, args)
	case "string":
		return e.stringStaticCall(name, args)
	}
	e.recordError(values.NewUnknownMember(name, "["+t.Name+"]"))
	return values.Null{}
}

func (e *Evaluator) convertCall(name string, args []values.Val) values.Val {
	switch name {
	case "frombase64string":
		if len(args) != 1 {
			e.recordError(values.NewArityMismatch("FromBase64String", 1, len(args)))
			return values.Null{}
		}
		raw, err := base64.StdEncoding.DecodeString(args[0].Display())
		if err != nil {
			e.recordError(values.NewInvalidCast("String", "Base64"))
			return values.Null{}
		}
		out := &values.Array{}
		for _, b := range raw {
			out.Items = append(out.Items, values.Int(b))
		}
		return out
	case "tobase64string":
		if len(args) != 1 {
			e.recordError(values.NewArityMismatch("ToBase64String", 1, len(args)))
			return values.Null{}
		}
		raw, verr := byteSlice(args[0])
		if verr != nil {
			e.recordError(verr)
			return values.Null{}
		}
		return values.Str(base64.StdEncoding.EncodeToString(raw))
	case "toint32":
		if len(args) == 0 {
			e.recordError(values.NewArityMismatch("ToInt32", 1, 0))
			return values.Null{}
		}
		if len(args) == 2 {
			base, err := values.AsInt(args[1])
			if err != nil {
				e.recordError(err)
				return values.Null{}
			}
			v, perr := parseIntBase(args[0].Display(), int(base))
			if perr != nil {
				e.recordError(perr)
				return values.Null{}
			}
			return values.Int(v)
		}
		out, err := values.Cast("int", args[0])
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return out
	case "tochar":
		if len(args) != 1 {
			e.recordError(values.NewArityMismatch("ToChar", 1, len(args)))
			return values.Null{}
		}
		out, err := values.Cast("char", args[0])
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return out
	}
	e.recordError(values.NewUnknownMember(name, "[System.Convert]"))
	return values.Null{}
}

func parseIntBase(s string, base int) (int64, error) {
	var v int64
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		var d int64
		switch {
		case r >= '0' && r <= '9':
			d = int64(r - '0')
		case r >= 'a' && r <= 'z':
			d = int64(r-'a') + 10
		default:
			return 0, values.NewInvalidCast("String", "Int")
		}
		if d >= int64(base) {
			return 0, values.NewInvalidCast("String", "Int")
		}
		v = v*int64(base) + d
	}
	return v, nil
}

// byteSlice coerces an array of numbers into raw bytes.
func byteSlice(v values.Val) ([]byte, error) {
	items := values.ToIterable(v)
	out := make([]byte, 0, len(items))
	for _, it := range items {
		i, err := values.AsInt(it)
		if err != nil {
			return nil, err
		}
		if i < 0 || i > 255 {
			return nil, values.NewInvalidCast(it.TypeName(), "Byte")
		}
		out = append(out, byte(i))
	}
	return out, nil
}

// encodingCall implements GetString/GetBytes for the whitelisted encodings.
func (e *Evaluator) encodingCall(encoding, name string, args []values.Val) values.Val {
	switch name {
	case "getstring":
		if len(args) != 1 {
			e.recordError(values.NewArityMismatch("GetString", 1, len(args)))
			return values.Null{}
		}
		raw, err := byteSlice(args[0])
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return values.Str(decodeBytes(encoding, raw))
	case "getbytes":
		if len(args) != 1 {
			e.recordError(values.NewArityMismatch("GetBytes", 1, len(args)))
			return values.Null{}
		}
		raw := encodeBytes(encoding, args[0].Display())
		out := &values.Array{}
		for _, b := range raw {
			out.Items = append(out.Items, values.Int(b))
		}
		return out
	}
	e.recordError(values.NewUnknownMember(name, "[System.Text.Encoding]"))
	return values.Null{}
}

func decodeBytes(encoding string, raw []byte) string {
	switch encoding {
	case "unicode":
		u16 := make([]uint16, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			u16 = append(u16, uint16(raw[i])|uint16(raw[i+1])<<8)
		}
		return string(utf16.Decode(u16))
	case "bigendianunicode":
		u16 := make([]uint16, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			u16 = append(u16, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(u16))
	default:
		// UTF-8 and ASCII payloads decode byte-for-byte.
		return string(raw)
	}
}

func encodeBytes(encoding, s string) []byte {
	switch encoding {
	case "unicode":
		u16 := utf16.Encode([]rune(s))
		out := make([]byte, 0, len(u16)*2)
		for _, u := range u16 {
			out = append(out, byte(u), byte(u>>8))
		}
		return out
	case "bigendianunicode":
		u16 := utf16.Encode([]rune(s))
		out := make([]byte, 0, len(u16)*2)
		for _, u := range u16 {
			out = append(out, byte(u>>8), byte(u))
		}
		return out
	default:
		return []byte(s)
	}
}

func (e *Evaluator) mathCall(name string, args []values.Val) values.Val {
	floats := make([]float64, len(args))
	for i, a := range args {
		iv, err := values.Cast("double", a)
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		floats[i] = float64(iv.(values.Double))
	}
	need := func(n int) bool {
		if len(floats) != n {
			e.recordError(values.NewArityMismatch(name, n, len(floats)))
			return false
		}
		return true
	}
	numeric := func(f float64) values.Val {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return values.Int(int64(f))
		}
		return values.Double(f)
	}
	switch name {
	case "abs":
		if !need(1) {
			return values.Null{}
		}
		return numeric(math.Abs(floats[0]))
	case "floor":
		if !need(1) {
			return values.Null{}
		}
		return numeric(math.Floor(floats[0]))
	case "ceiling":
		if !need(1) {
			return values.Null{}
		}
		return numeric(math.Ceil(floats[0]))
	case "round":
		if len(floats) == 2 {
			shift := math.Pow(10, floats[1])
			return values.Double(math.RoundToEven(floats[0]*shift) / shift)
		}
		if !need(1) {
			return values.Null{}
		}
		return numeric(math.RoundToEven(floats[0]))
	case "pow":
		if !need(2) {
			return values.Null{}
		}
		return numeric(math.Pow(floats[0], floats[1]))
	case "sqrt":
		if !need(1) {
			return values.Null{}
		}
		return numeric(math.Sqrt(floats[0]))
	case "max":
		if !need(2) {
			return values.Null{}
		}
		return numeric(math.Max(floats[0], floats[1]))
	case "min":
		if !need(2) {
			return values.Null{}
		}
		return numeric(math.Min(floats[0], floats[1]))
	}
	e.recordError(values.NewUnknownMember(name, "[Math]"))
	return values.Null{}
}

func (e *Evaluator) stringStaticCall(name string, args []values.Val) values.Val {
	switch name {
	case "join":
		if len(args) < 2 {
			e.recordError(values.NewArityMismatch("Join", 2, len(args)))
			return values.Null{}
		}
		var rest values.Val
		if len(args) == 2 {
			rest = args[1]
		} else {
			rest = &values.Array{Items: args[1:]}
		}
		out, err := values.Join(rest, args[0].Display())
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return out
	case "format":
		if len(args) < 1 {
			e.recordError(values.NewArityMismatch("Format", 1, len(args)))
			return values.Null{}
		}
		out, err := values.Format(args[0].Display(), args[1:], e.sess.Opts.Culture)
		if err != nil {
			e.recordError(err)
			return values.Null{}
		}
		return out
	case "isnullorempty":
		if len(args) != 1 {
			e.recordError(values.NewArityMismatch("IsNullOrEmpty", 1, len(args)))
			return values.Null{}
		}
		_, isNull := args[0].(values.Null)
		return values.Bool(isNull || args[0].Display() == "")
	}
	e.recordError(values.NewUnknownMember(name, "[String]"))
	return values.Null{}
}
