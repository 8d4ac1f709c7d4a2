package values

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CallStringMethod dispatches the safe String instance methods used by
// obfuscated scripts. Method names match case-insensitively, like
// PowerShell. The receiver has already been display-coerced to a string.
func CallStringMethod(recv string, method string, args []Val) (Val, error) {
	switch strings.ToLower(method) {
	case "tolower", "tolowerinvariant":
		return Str(strings.ToLower(recv)), nil
	case "toupper", "toupperinvariant":
		return Str(strings.ToUpper(recv)), nil
	case "trim":
		if len(args) == 0 {
			return Str(strings.TrimSpace(recv)), nil
		}
		return Str(strings.Trim(recv, trimSet(args))), nil
	case "trimstart":
		if len(args) == 0 {
			return Str(strings.TrimLeft(recv, " \t\r\n")), nil
		}
		return Str(strings.TrimLeft(recv, trimSet(args))), nil
	case "trimend":
		if len(args) == 0 {
			return Str(strings.TrimRight(recv, " \t\r\n")), nil
		}
		return Str(strings.TrimRight(recv, trimSet(args))), nil
	case "padleft":
		return pad(recv, args, true)
	case "padright":
		return pad(recv, args, false)
	case "contains":
		if len(args) != 1 {
			return Null{}, NewArityMismatch("Contains", 1, len(args))
		}
		return Bool(strings.Contains(recv, args[0].Display())), nil
	case "startswith":
		if len(args) != 1 {
			return Null{}, NewArityMismatch("StartsWith", 1, len(args))
		}
		return Bool(strings.HasPrefix(recv, args[0].Display())), nil
	case "endswith":
		if len(args) != 1 {
			return Null{}, NewArityMismatch("EndsWith", 1, len(args))
		}
		return Bool(strings.HasSuffix(recv, args[0].Display())), nil
	case "replace":
		if len(args) < 1 || len(args) > 2 {
			return Null{}, NewArityMismatch("Replace", 2, len(args))
		}
		with := ""
		if len(args) == 2 {
			with = args[1].Display()
		}
		// String.Replace is literal and case-sensitive, unlike -replace.
		return Str(strings.ReplaceAll(recv, args[0].Display(), with)), nil
	case "substring":
		return substring(recv, args)
	case "indexof":
		if len(args) != 1 {
			return Null{}, NewArityMismatch("IndexOf", 1, len(args))
		}
		return Int(strings.Index(recv, args[0].Display())), nil
	case "split":
		if len(args) == 0 {
			return SplitWhitespace(Str(recv))
		}
		out := &Array{}
		for _, p := range strings.Split(recv, args[0].Display()) {
			out.Items = append(out.Items, Str(p))
		}
		return out, nil
	case "tochararray":
		out := &Array{}
		for _, r := range recv {
			out.Items = append(out.Items, Char(r))
		}
		return out, nil
	case "normalize":
		return normalize(recv, args)
	case "tostring":
		return Str(recv), nil
	}
	return Null{}, NewUnknownMember(method, "String")
}

// StringProperty resolves the safe String properties.
func StringProperty(recv string, name string) (Val, bool) {
	switch strings.ToLower(name) {
	case "length":
		return Int(len([]rune(recv))), true
	}
	return Null{}, false
}

func trimSet(args []Val) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a.Display())
	}
	return sb.String()
}

func pad(recv string, args []Val, left bool) (Val, error) {
	if len(args) < 1 || len(args) > 2 {
		return Null{}, NewArityMismatch("Pad", 1, len(args))
	}
	width, err := toInt64(args[0])
	if err != nil {
		return Null{}, err
	}
	fill := " "
	if len(args) == 2 {
		fill = args[1].Display()
		if fill == "" {
			fill = " "
		}
	}
	n := int(width) - len([]rune(recv))
	if n <= 0 {
		return Str(recv), nil
	}
	padding := strings.Repeat(string([]rune(fill)[0]), n)
	if left {
		return Str(padding + recv), nil
	}
	return Str(recv + padding), nil
}

func substring(recv string, args []Val) (Val, error) {
	if len(args) < 1 || len(args) > 2 {
		return Null{}, NewArityMismatch("Substring", 1, len(args))
	}
	runes := []rune(recv)
	start, err := toInt64(args[0])
	if err != nil {
		return Null{}, err
	}
	if start < 0 || int(start) > len(runes) {
		return Null{}, NewIndexOutOfBounds(start, len(runes))
	}
	if len(args) == 1 {
		return Str(string(runes[start:])), nil
	}
	length, err := toInt64(args[1])
	if err != nil {
		return Null{}, err
	}
	if length < 0 || int(start+length) > len(runes) {
		return Null{}, NewIndexOutOfBounds(start+length, len(runes))
	}
	return Str(string(runes[start : start+length])), nil
}

// normalize implements String.Normalize with the .NET normalization form
// names. The no-argument form normalizes to FormC.
func normalize(recv string, args []Val) (Val, error) {
	form := "formc"
	if len(args) > 0 {
		form = strings.ToLower(args[0].Display())
	}
	var f norm.Form
	switch form {
	case "formc":
		f = norm.NFC
	case "formd":
		f = norm.NFD
	case "formkc":
		f = norm.NFKC
	case "formkd":
		f = norm.NFKD
	default:
		return Null{}, NewInvalidCast("String", "NormalizationForm")
	}
	return Str(f.String(recv)), nil
}
