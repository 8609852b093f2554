package types

import (
	"fmt"
	"strings"
)

// Well-known method names.
const (
	InitName   = "<init>"
	ClinitName = "<clinit>"
)

// MethodReference identifies a method signature.
type MethodReference struct {
	Declaring  TypeReference
	Name       string
	Descriptor Descriptor
}

// NewMethodReference returns the reference for declaring.name descriptor.
func NewMethodReference(declaring TypeReference, name string, descriptor Descriptor) MethodReference {
	return MethodReference{Declaring: declaring, Name: name, Descriptor: descriptor}
}

// ParseMethodReference parses the String form of a MethodReference,
// e.g. "Ljava/lang/Class.forName(Ljava/lang/String;)Ljava/lang/Class;".
func ParseMethodReference(s string) (MethodReference, error) {
	paren := strings.IndexByte(s, '(')
	if paren < 0 {
		return MethodReference{}, fmt.Errorf("method reference %q: missing descriptor", s)
	}
	dot := strings.LastIndexByte(s[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return MethodReference{}, fmt.Errorf("method reference %q: missing type or name", s)
	}
	desc := s[paren:]
	if _, _, err := ParseDescriptor(desc); err != nil {
		return MethodReference{}, fmt.Errorf("method reference %q: %w", s, err)
	}
	return MethodReference{
		Declaring:  NewTypeReference(s[:dot]),
		Name:       s[dot+1 : paren],
		Descriptor: Descriptor(desc),
	}, nil
}

// IsZero reports whether m is the zero reference.
func (m MethodReference) IsZero() bool { return m == MethodReference{} }

// IsInit reports whether m is a constructor.
func (m MethodReference) IsInit() bool { return m.Name == InitName }

// Selector returns the declaring-type independent part, name+descriptor.
func (m MethodReference) Selector() string { return m.Name + string(m.Descriptor) }

// WithDeclaring returns m re-targeted to another declaring type.
func (m MethodReference) WithDeclaring(t TypeReference) MethodReference {
	m.Declaring = t
	return m
}

func (m MethodReference) String() string {
	return m.Declaring.Name() + "." + m.Name + string(m.Descriptor)
}

// FieldReference identifies a field.
type FieldReference struct {
	Declaring TypeReference
	Name      string
	Type      TypeReference
}

// ParseFieldReference parses "Lpkg/C.name:Ltype;".
func ParseFieldReference(s string) (FieldReference, error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return FieldReference{}, fmt.Errorf("field reference %q: missing ':type'", s)
	}
	dot := strings.LastIndexByte(s[:colon], '.')
	if dot <= 0 || dot == colon-1 {
		return FieldReference{}, fmt.Errorf("field reference %q: missing type or name", s)
	}
	typeText := s[colon+1:]
	name, n, err := scanFieldType(typeText)
	if err != nil || n != len(typeText) {
		return FieldReference{}, fmt.Errorf("field reference %q: bad field type", s)
	}
	return FieldReference{
		Declaring: NewTypeReference(s[:dot]),
		Name:      s[dot+1 : colon],
		Type:      NewTypeReference(name),
	}, nil
}

func (f FieldReference) String() string {
	t := f.Type.Name()
	if f.Type.IsClass() {
		t += ";"
	}
	return f.Declaring.Name() + "." + f.Name + ":" + t
}

// NewSiteReference declares an allocation of Type at program point PC.
type NewSiteReference struct {
	PC   int
	Type TypeReference
}

func (s NewSiteReference) String() string {
	return fmt.Sprintf("new %s@%d", s.Type, s.PC)
}

// InvokeKind is the dispatch mode of a call site.
type InvokeKind int

const (
	InvokeStatic InvokeKind = iota
	InvokeSpecial
	InvokeVirtual
	InvokeInterface
)

var invokeKindNames = [...]string{
	InvokeStatic:    "invokestatic",
	InvokeSpecial:   "invokespecial",
	InvokeVirtual:   "invokevirtual",
	InvokeInterface: "invokeinterface",
}

// ParseInvokeKind maps an opcode mnemonic to its kind.
func ParseInvokeKind(s string) (InvokeKind, bool) {
	for k, name := range invokeKindNames {
		if name == s {
			return InvokeKind(k), true
		}
	}
	return 0, false
}

// IsDispatch reports whether the call target depends on the receiver's
// run-time type.
func (k InvokeKind) IsDispatch() bool { return k == InvokeVirtual || k == InvokeInterface }

// HasReceiver reports whether the call passes a receiver as its first argument.
func (k InvokeKind) HasReceiver() bool { return k != InvokeStatic }

func (k InvokeKind) String() string {
	if int(k) < len(invokeKindNames) {
		return invokeKindNames[k]
	}
	return fmt.Sprintf("InvokeKind(%d)", int(k))
}

// CallSiteReference declares a call of Target at program point PC.
type CallSiteReference struct {
	PC     int
	Target MethodReference
	Kind   InvokeKind
}

func (s CallSiteReference) String() string {
	return fmt.Sprintf("%s %s@%d", s.Kind, s.Target, s.PC)
}
