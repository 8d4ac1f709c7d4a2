package values

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Format implements the -f operator: .NET composite formatting with
// positional placeholders {index[,alignment][:spec]}. The culture tag
// (session option) drives group and decimal separators for the N and P
// specifiers. Unknown specifiers fall back to the default rendering.
func Format(format string, args []Val, culture string) (Val, error) {
	for _, a := range args {
		if IsUnknown(a) {
			return Unknown{}, nil
		}
	}
	var sb strings.Builder
	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '{':
			if i+1 < len(runes) && runes[i+1] == '{' {
				sb.WriteRune('{')
				i++
				continue
			}
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '}' {
					end = j
					break
				}
			}
			if end < 0 {
				return Null{}, NewUnsupportedOperation("unbalanced brace in format string: " + format)
			}
			item, err := formatItem(string(runes[i+1:end]), args, culture)
			if err != nil {
				return Null{}, err
			}
			sb.WriteString(item)
			i = end
		case '}':
			if i+1 < len(runes) && runes[i+1] == '}' {
				sb.WriteRune('}')
				i++
				continue
			}
			return Null{}, NewUnsupportedOperation("unbalanced brace in format string: " + format)
		default:
			sb.WriteRune(r)
		}
	}
	return Str(sb.String()), nil
}

func formatItem(item string, args []Val, culture string) (string, error) {
	spec := ""
	if colon := strings.Index(item, ":"); colon >= 0 {
		spec = item[colon+1:]
		item = item[:colon]
	}
	align := 0
	if comma := strings.Index(item, ","); comma >= 0 {
		a, err := strconv.Atoi(strings.TrimSpace(item[comma+1:]))
		if err != nil {
			return "", NewUnsupportedOperation("bad alignment in format item: " + item)
		}
		align = a
		item = item[:comma]
	}
	index, err := strconv.Atoi(strings.TrimSpace(item))
	if err != nil {
		return "", NewUnsupportedOperation("bad index in format item: " + item)
	}
	if index < 0 || index >= len(args) {
		return "", NewIndexOutOfBounds(int64(index), len(args))
	}
	s := applySpec(args[index], spec, culture)
	if align > 0 && len(s) < align {
		s = strings.Repeat(" ", align-len(s)) + s
	} else if align < 0 && len(s) < -align {
		s = s + strings.Repeat(" ", -align-len(s))
	}
	return s, nil
}

func applySpec(v Val, spec string, culture string) string {
	if spec == "" {
		return v.Display()
	}
	kind := spec[:1]
	digits := -1
	if len(spec) > 1 {
		if d, err := strconv.Atoi(spec[1:]); err == nil {
			digits = d
		}
	}
	n, nerr := toNumber(v)
	if nerr != nil {
		return v.Display()
	}
	f := numAsFloat(n)
	switch kind {
	case "x", "X":
		i := int64(math.RoundToEven(f))
		s := strconv.FormatInt(i, 16)
		if kind == "X" {
			s = strings.ToUpper(s)
		}
		if digits > len(s) {
			s = strings.Repeat("0", digits-len(s)) + s
		}
		return s
	case "d", "D":
		s := strconv.FormatInt(int64(math.RoundToEven(f)), 10)
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		if digits > len(s) {
			s = strings.Repeat("0", digits-len(s)) + s
		}
		if neg {
			s = "-" + s
		}
		return s
	case "f", "F":
		if digits < 0 {
			digits = 2
		}
		return strconv.FormatFloat(f, 'f', digits, 64)
	case "n", "N":
		if digits < 0 {
			digits = 2
		}
		p := message.NewPrinter(cultureTag(culture))
		return p.Sprintf("%v", formatFixed(digits, f))
	case "p", "P":
		if digits < 0 {
			digits = 2
		}
		p := message.NewPrinter(cultureTag(culture))
		return p.Sprintf("%v", formatFixed(digits, f*100)) + " %"
	case "e", "E":
		if digits < 0 {
			digits = 6
		}
		s := strconv.FormatFloat(f, 'e', digits, 64)
		if kind == "E" {
			s = strings.ToUpper(s)
		}
		return s
	case "g", "G":
		return strconv.FormatFloat(f, 'g', -1, 64)
	case "c", "C":
		if digits < 0 {
			digits = 2
		}
		p := message.NewPrinter(cultureTag(culture))
		return p.Sprintf("%v", formatFixed(digits, f))
	}
	// Unknown specifier: fall back to the default rendering.
	return v.Display()
}

// formatFixed renders f with exactly digits fractional digits using the
// printer's locale for separators.
func formatFixed(digits int, f float64) number.Formatter {
	return number.Decimal(f,
		number.MinFractionDigits(digits),
		number.MaxFractionDigits(digits))
}

func cultureTag(culture string) language.Tag {
	if culture == "" {
		return language.English
	}
	tag, err := language.Parse(culture)
	if err != nil {
		return language.English
	}
	return tag
}

// Sprint renders a value for diagnostics with its type tag, e.g.
// Int(42). Tests use it.
func Sprint(v Val) string {
	switch x := v.(type) {
	case Null:
		return "Null"
	case *Array:
		parts := make([]string, len(x.Items))
		for i, it := range x.Items {
			parts[i] = Sprint(it)
		}
		return "Array(" + strings.Join(parts, ", ") + ")"
	case *HashTable:
		parts := make([]string, 0, x.Len())
		for _, k := range x.Keys() {
			v, _ := x.Get(k)
			parts = append(parts, k+": "+Sprint(v))
		}
		return "HashTable{" + strings.Join(parts, ", ") + "}"
	case Str:
		return fmt.Sprintf("String(%q)", string(x))
	default:
		return fmt.Sprintf("%s(%s)", v.TypeName(), v.Display())
	}
}
