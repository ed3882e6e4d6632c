package classfile

import (
	"fmt"
	"strings"
)

// FieldType renders a field descriptor as Java source, e.g.
// "[Ljava/lang/String;" -> "String[]".
func FieldType(desc string) (string, error) {
	t, rest, err := parseType(desc)
	if err != nil {
		return "", err
	}
	if rest != "" {
		return "", fmt.Errorf("%w: trailing data in descriptor %q", ErrMalformed, desc)
	}
	return t, nil
}

// MethodType renders a method descriptor as parameter and return types.
func MethodType(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("%w: method descriptor %q", ErrMalformed, desc)
	}
	rest := desc[1:]
	for !strings.HasPrefix(rest, ")") {
		if rest == "" {
			return nil, "", fmt.Errorf("%w: unterminated method descriptor %q", ErrMalformed, desc)
		}
		var t string
		t, rest, err = parseType(rest)
		if err != nil {
			return nil, "", err
		}
		params = append(params, t)
	}
	rest = rest[1:]
	if rest == "V" {
		return params, "void", nil
	}
	ret, err = FieldType(rest)
	if err != nil {
		return nil, "", err
	}
	return params, ret, nil
}

func parseType(desc string) (string, string, error) {
	if desc == "" {
		return "", "", fmt.Errorf("%w: empty type descriptor", ErrMalformed)
	}
	switch desc[0] {
	case 'B':
		return "byte", desc[1:], nil
	case 'C':
		return "char", desc[1:], nil
	case 'D':
		return "double", desc[1:], nil
	case 'F':
		return "float", desc[1:], nil
	case 'I':
		return "int", desc[1:], nil
	case 'J':
		return "long", desc[1:], nil
	case 'S':
		return "short", desc[1:], nil
	case 'Z':
		return "boolean", desc[1:], nil
	case 'L':
		end := strings.IndexByte(desc, ';')
		if end < 0 {
			return "", "", fmt.Errorf("%w: unterminated class type in %q", ErrMalformed, desc)
		}
		return SourceTypeName(desc[1:end]), desc[end+1:], nil
	case '[':
		elem, rest, err := parseType(desc[1:])
		if err != nil {
			return "", "", err
		}
		return elem + "[]", rest, nil
	default:
		return "", "", fmt.Errorf("%w: unknown type %q", ErrMalformed, desc[0])
	}
}

// SourceTypeName renders an internal class name the way it is written in
// source: java.lang types unqualified, nested classes with dots.
func SourceTypeName(internal string) string {
	if strings.HasPrefix(internal, "java/lang/") && !strings.Contains(internal[len("java/lang/"):], "/") {
		internal = internal[len("java/lang/"):]
	}
	return strings.ReplaceAll(InternalToQualified(internal), "$", ".")
}
