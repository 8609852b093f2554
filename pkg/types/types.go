// Package types provides immutable references to the types, methods and fields
// of an analyzed program, plus the site references a method body exposes to
// the call-graph builder.
//
// References are plain comparable values. Two references denote the same entity
// iff they compare equal with ==, so they can be used directly as map keys and
// shared freely across goroutines.
package types

import (
	"fmt"
	"strings"
)

// TypeReference names a type by its JVM internal name, without the trailing
// semicolon (e.g. "Ljava/util/ArrayList", "[Ljava/lang/String", "I").
// The zero value means "no type".
type TypeReference struct {
	name string
}

// Well-known types.
var (
	JavaLangObject                 = NewTypeReference("Ljava/lang/Object")
	JavaLangClass                  = NewTypeReference("Ljava/lang/Class")
	JavaLangString                 = NewTypeReference("Ljava/lang/String")
	JavaLangThrowable              = NewTypeReference("Ljava/lang/Throwable")
	JavaLangClassNotFoundException = NewTypeReference("Ljava/lang/ClassNotFoundException")
	Void                           = NewTypeReference("V")
)

// NewTypeReference returns a reference for the given internal name.
// A trailing ';' is accepted and dropped.
func NewTypeReference(name string) TypeReference {
	return TypeReference{name: strings.TrimSuffix(name, ";")}
}

// TypeFromClassName converts a source-level class name such as
// "java.util.ArrayList" into its type reference. It returns the zero value
// for names that cannot denote a class.
func TypeFromClassName(className string) TypeReference {
	className = strings.TrimSpace(className)
	if className == "" || strings.ContainsAny(className, " ;/[") {
		return TypeReference{}
	}
	return TypeReference{name: "L" + strings.ReplaceAll(className, ".", "/")}
}

// Name returns the internal name.
func (t TypeReference) Name() string { return t.name }

// IsZero reports whether t denotes no type.
func (t TypeReference) IsZero() bool { return t.name == "" }

// IsClass reports whether t is a class (or interface) type, as opposed to a
// primitive or array type.
func (t TypeReference) IsClass() bool { return strings.HasPrefix(t.name, "L") }

// IsArray reports whether t is an array type.
func (t TypeReference) IsArray() bool { return strings.HasPrefix(t.name, "[") }

// ClassName returns the source-level name ("java.util.ArrayList") of a class
// type, or the internal name for anything else.
func (t TypeReference) ClassName() string {
	if !t.IsClass() {
		return t.name
	}
	return strings.ReplaceAll(t.name[1:], "/", ".")
}

func (t TypeReference) String() string { return t.name }

// Descriptor is a method descriptor in JVM form, e.g.
// "(Ljava/lang/String;)Ljava/lang/Class;".
type Descriptor string

// ParseDescriptor validates d and splits it into parameter and return types.
func ParseDescriptor(d string) (params []TypeReference, ret TypeReference, err error) {
	if !strings.HasPrefix(d, "(") {
		return nil, TypeReference{}, fmt.Errorf("descriptor %q: missing '('", d)
	}
	end := strings.IndexByte(d, ')')
	if end < 0 {
		return nil, TypeReference{}, fmt.Errorf("descriptor %q: missing ')'", d)
	}

	rest := d[1:end]
	for rest != "" {
		name, n, err := scanFieldType(rest)
		if err != nil {
			return nil, TypeReference{}, fmt.Errorf("descriptor %q: %w", d, err)
		}
		params = append(params, NewTypeReference(name))
		rest = rest[n:]
	}

	retText := d[end+1:]
	if retText == "V" {
		return params, Void, nil
	}
	name, n, err := scanFieldType(retText)
	if err != nil {
		return nil, TypeReference{}, fmt.Errorf("descriptor %q: return type: %w", d, err)
	}
	if n != len(retText) {
		return nil, TypeReference{}, fmt.Errorf("descriptor %q: trailing characters after return type", d)
	}
	return params, NewTypeReference(name), nil
}

// scanFieldType reads one field type from the front of s and returns its
// internal name and the number of bytes consumed.
func scanFieldType(s string) (string, int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i == len(s) {
		return "", 0, fmt.Errorf("truncated type %q", s)
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return s[:i+1], i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi < 0 {
			return "", 0, fmt.Errorf("unterminated class type %q", s)
		}
		return s[:i+semi], i + semi + 1, nil
	default:
		return "", 0, fmt.Errorf("invalid type character %q in %q", s[i], s)
	}
}

// Parameters returns the declared parameter types. The descriptor is assumed
// valid; an invalid descriptor yields nil.
func (d Descriptor) Parameters() []TypeReference {
	params, _, err := ParseDescriptor(string(d))
	if err != nil {
		return nil
	}
	return params
}

// NumberOfParameters returns the number of declared parameters.
func (d Descriptor) NumberOfParameters() int { return len(d.Parameters()) }

// ReturnType returns the declared return type.
func (d Descriptor) ReturnType() TypeReference {
	_, ret, err := ParseDescriptor(string(d))
	if err != nil {
		return TypeReference{}
	}
	return ret
}

// ReturnsVoid reports whether the method returns nothing.
func (d Descriptor) ReturnsVoid() bool { return strings.HasSuffix(string(d), ")V") }

func (d Descriptor) String() string { return string(d) }
