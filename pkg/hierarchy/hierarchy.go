// Package hierarchy provides the class hierarchy of an analyzed program:
// classes, their methods and bodies, and method resolution and dispatch.
package hierarchy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// Method is a method declared by a class.
type Method struct {
	Ref      types.MethodReference
	Static   bool
	Abstract bool
	Native   bool

	// Body is the method's instruction sequence. Abstract and native methods
	// have none.
	Body []ssa.Instruction
}

// HasBody reports whether m has analyzable instructions.
func (m *Method) HasBody() bool { return !m.Abstract && !m.Native && m.Body != nil }

// Class is a class or interface.
type Class struct {
	Type       types.TypeReference
	Super      types.TypeReference
	Interfaces []types.TypeReference
	Abstract   bool
	Interface  bool

	// Methods is keyed by selector (name + descriptor).
	Methods map[string]*Method
}

// NewClass returns an empty class of type t extending super.
func NewClass(t, super types.TypeReference) *Class {
	return &Class{Type: t, Super: super, Methods: make(map[string]*Method)}
}

// AddMethod declares m on c, re-targeting its reference to c.
func (c *Class) AddMethod(m *Method) {
	m.Ref = m.Ref.WithDeclaring(c.Type)
	c.Methods[m.Ref.Selector()] = m
}

// Method returns the method c itself declares for selector, or nil.
func (c *Class) Method(selector string) *Method { return c.Methods[selector] }

// IsInstantiable reports whether objects of c may exist.
func (c *Class) IsInstantiable() bool { return !c.Abstract && !c.Interface }

// Hierarchy is a concurrent-safe table of classes.
type Hierarchy struct {
	classes *xsync.Map[types.TypeReference, *Class]
}

// New returns an empty hierarchy.
func New() *Hierarchy {
	return &Hierarchy{classes: xsync.NewMap[types.TypeReference, *Class]()}
}

// AddClass registers c. It fails if a class of the same type exists.
func (h *Hierarchy) AddClass(c *Class) error {
	if c.Type.IsZero() || !c.Type.IsClass() {
		return fmt.Errorf("add class: invalid type %q", c.Type)
	}
	if _, loaded := h.classes.LoadOrStore(c.Type, c); loaded {
		return fmt.Errorf("add class %s: already defined", c.Type)
	}
	return nil
}

// Lookup returns the class of type t.
func (h *Hierarchy) Lookup(t types.TypeReference) (*Class, bool) {
	return h.classes.Load(t)
}

// LookupClassName resolves a source-level name such as "java.util.ArrayList".
func (h *Hierarchy) LookupClassName(name string) (*Class, bool) {
	t := types.TypeFromClassName(name)
	if t.IsZero() {
		return nil, false
	}
	return h.Lookup(t)
}

// Classes returns every class sorted by type name.
func (h *Hierarchy) Classes() []*Class {
	out := make([]*Class, 0, h.classes.Size())
	h.classes.Range(func(_ types.TypeReference, c *Class) bool {
		out = append(out, c)
		return true
	})
	slices.SortFunc(out, func(a, b *Class) int { return strings.Compare(a.Type.Name(), b.Type.Name()) })
	return out
}

// Size returns the number of classes.
func (h *Hierarchy) Size() int { return h.classes.Size() }

// supers returns t followed by its transitive super classes.
func (h *Hierarchy) supers(t types.TypeReference) []*Class {
	var out []*Class
	seen := make(map[types.TypeReference]bool)
	for !t.IsZero() && !seen[t] {
		seen[t] = true
		c, ok := h.Lookup(t)
		if !ok {
			break
		}
		out = append(out, c)
		t = c.Super
	}
	return out
}

// Resolve finds the declaration m denotes, searching the declaring class,
// then its super classes, then its super interfaces.
func (h *Hierarchy) Resolve(m types.MethodReference) (*Method, bool) {
	sel := m.Selector()
	chain := h.supers(m.Declaring)
	for _, c := range chain {
		if d := c.Method(sel); d != nil {
			return d, true
		}
	}
	for _, c := range chain {
		for _, i := range h.allInterfaces(c) {
			if d := i.Method(sel); d != nil {
				return d, true
			}
		}
	}
	return nil, false
}

// Dispatch returns the implementation of m invoked on a receiver of run-time
// type receiver: the first non-abstract declaration found walking up from
// receiver.
func (h *Hierarchy) Dispatch(receiver types.TypeReference, m types.MethodReference) (*Method, bool) {
	sel := m.Selector()
	for _, c := range h.supers(receiver) {
		if d := c.Method(sel); d != nil && !d.Abstract {
			return d, true
		}
	}
	return nil, false
}

// allInterfaces returns the interfaces c implements, directly or through its
// super interfaces, in breadth-first order.
func (h *Hierarchy) allInterfaces(c *Class) []*Class {
	var out []*Class
	seen := make(map[types.TypeReference]bool)
	queue := slices.Clone(c.Interfaces)
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if seen[t] {
			continue
		}
		seen[t] = true
		i, ok := h.Lookup(t)
		if !ok {
			continue
		}
		out = append(out, i)
		queue = append(queue, i.Interfaces...)
	}
	return out
}

// IsSubtype reports whether sub is super or inherits from it, through super
// classes or implemented interfaces.
func (h *Hierarchy) IsSubtype(sub, super types.TypeReference) bool {
	if sub == super {
		return true
	}
	if super == types.JavaLangObject && sub.IsClass() {
		return true
	}
	for _, c := range h.supers(sub) {
		if c.Type == super {
			return true
		}
		for _, i := range h.allInterfaces(c) {
			if i.Type == super {
				return true
			}
		}
	}
	return false
}
