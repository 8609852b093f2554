package reflection

import (
	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/interp"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// ContextSelector gives reflective callees a type context derived from the
// caller's def-use chains and leaves every other callee context-insensitive.
type ContextSelector struct {
	h *hierarchy.Hierarchy
}

var _ interp.ContextSelector = (*ContextSelector)(nil)

func NewContextSelector(h *hierarchy.Hierarchy) *ContextSelector {
	return &ContextSelector{h: h}
}

// Select returns:
//   - for forName, the class a constant argument names, if h defines it;
//   - for getClass, the type of a receiver allocated in the caller;
//   - for newInstance, the instantiable class a receiver was loaded from;
//   - Everywhere for other callees.
//
// Reflective callees whose type cannot be determined get an unknown type
// context.
func (s *ContextSelector) Select(callee types.MethodReference, site types.CallSiteReference, caller *ssa.IR, du *ssa.DefUse) callgraph.Context {
	switch callee {
	case ForNameRef, hierarchy.ObjectGetClass, hierarchy.ClassNewInstance:
	default:
		return callgraph.Everywhere
	}

	inv := invokeAt(caller, site)
	if inv == nil || len(inv.Args) == 0 {
		return callgraph.UnknownTypeContext()
	}
	var (
		t  types.TypeReference
		ok bool
	)
	switch callee {
	case ForNameRef:
		t, ok = s.constantClass(inv.Args[0], du)
	case hierarchy.ObjectGetClass:
		t, ok = allocatedType(inv.Args[0], du)
	case hierarchy.ClassNewInstance:
		t, ok = s.loadedClass(inv.Args[0], du)
		if ok {
			c, found := s.h.Lookup(t)
			ok = found && c.IsInstantiable()
		}
	}
	if !ok {
		return callgraph.UnknownTypeContext()
	}
	return callgraph.NewTypeContext(t)
}

func invokeAt(ir *ssa.IR, site types.CallSiteReference) *ssa.Invoke {
	if ir == nil || site.PC < 0 || site.PC >= len(ir.Instructions) {
		return nil
	}
	inv, _ := ir.Instructions[site.PC].(*ssa.Invoke)
	return inv
}

// constantClass resolves v when it holds a string constant naming a class.
func (s *ContextSelector) constantClass(v int, du *ssa.DefUse) (types.TypeReference, bool) {
	def, _, ok := du.Def(v)
	if !ok {
		return types.TypeReference{}, false
	}
	c, isConst := def.(*ssa.Const)
	if !isConst {
		return types.TypeReference{}, false
	}
	class, found := s.h.LookupClassName(c.Value)
	if !found {
		return types.TypeReference{}, false
	}
	return class.Type, true
}

func allocatedType(v int, du *ssa.DefUse) (types.TypeReference, bool) {
	def, _, ok := du.Def(v)
	if !ok {
		return types.TypeReference{}, false
	}
	if n, isNew := def.(*ssa.New); isNew {
		return n.Site.Type, true
	}
	return types.TypeReference{}, false
}

// loadedClass resolves a class object v: a loadclass, a forName of a
// constant, or getClass on a local allocation.
func (s *ContextSelector) loadedClass(v int, du *ssa.DefUse) (types.TypeReference, bool) {
	def, _, ok := du.Def(v)
	if !ok {
		return types.TypeReference{}, false
	}
	switch d := def.(type) {
	case *ssa.LoadClass:
		return d.Type, true
	case *ssa.Invoke:
		if d.Def != v || len(d.Args) == 0 {
			return types.TypeReference{}, false
		}
		switch {
		case d.Site.Target == ForNameRef:
			return s.constantClass(d.Args[0], du)
		case d.Site.Target.Selector() == hierarchy.ObjectGetClass.Selector():
			// getClass is final, so any receiver type resolves to Object's.
			return allocatedType(d.Args[0], du)
		}
	}
	return types.TypeReference{}, false
}
