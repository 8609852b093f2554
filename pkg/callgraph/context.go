// Package callgraph provides analysis contexts, call-graph nodes and the
// call graph itself.
package callgraph

import (
	"github.com/715d/reflectcg/pkg/types"
)

// Context is an analysis-computed fact that distinguishes behaviorally
// different uses of the same method. The set of contexts is closed:
// Everywhere and TypeContext.
type Context interface {
	String() string

	context()
}

type everywhere struct{}

func (everywhere) context()       {}
func (everywhere) String() string { return "Everywhere" }

// Everywhere is the default context: the method analyzed once for all uses.
var Everywhere Context = everywhere{}

// TypeContext carries the concrete type the analysis inferred for a node, or
// explicitly carries none when the analysis could not determine it.
type TypeContext struct {
	typ types.TypeReference
}

func (TypeContext) context() {}

// NewTypeContext returns a context carrying t. A zero t yields the unknown
// type context.
func NewTypeContext(t types.TypeReference) TypeContext {
	return TypeContext{typ: t}
}

// UnknownTypeContext returns a type context that carries no type.
func UnknownTypeContext() TypeContext {
	return TypeContext{}
}

// Type returns the carried type and whether there is one.
func (c TypeContext) Type() (types.TypeReference, bool) {
	return c.typ, !c.typ.IsZero()
}

func (c TypeContext) String() string {
	if c.typ.IsZero() {
		return "Type(?)"
	}
	return "Type(" + c.typ.Name() + ")"
}
