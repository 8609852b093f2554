// Package reflection models reflective library calls with synthetic bodies
// specialized to the type context the call-graph builder assigned them.
package reflection

import (
	"iter"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/interp"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// ForNameRef is Class.forName(String).
var ForNameRef = hierarchy.ClassForName

// ForNameInterpreter interprets Class.forName(String) nodes that carry a
// type context. When the context names a type T the synthesized body is
//
//	v1 = loadclass T
//	return v1
//
// and when the type is unknown the body is a single "throw v1", v1 being the
// string argument slot: the call resolves nothing the analysis can see.
//
// The interpreter holds no state; each IR call builds a fresh IR.
type ForNameInterpreter struct{}

var _ interp.ContextInterpreter = ForNameInterpreter{}

// contextType returns the type carried by node's type context.
func contextType(node *callgraph.Node) (types.TypeReference, bool) {
	tc, ok := node.Context().(callgraph.TypeContext)
	if !ok {
		return types.TypeReference{}, false
	}
	return tc.Type()
}

// Understands reports whether node is Class.forName(String) under a type
// context, known or not.
func (ForNameInterpreter) Understands(node *callgraph.Node) bool {
	interp.RequireNode(node)
	if _, ok := node.Context().(callgraph.TypeContext); !ok {
		return false
	}
	return node.Method() == ForNameRef
}

func (f ForNameInterpreter) instructions(node *callgraph.Node) []ssa.Instruction {
	interp.MustUnderstand(f, node)
	t, ok := contextType(node)
	if !ok {
		return []ssa.Instruction{&ssa.Throw{Exception: 1}}
	}
	return []ssa.Instruction{
		&ssa.LoadClass{Def: 1, Type: t},
		&ssa.Return{Result: 1},
	}
}

func (f ForNameInterpreter) IR(node *callgraph.Node) *ssa.IR {
	instrs := f.instructions(node)
	return ssa.NewIR(node.Method(), node.Context(), true, instrs)
}

func (f ForNameInterpreter) NumberOfStatements(node *callgraph.Node) int {
	interp.MustUnderstand(f, node)
	if _, ok := contextType(node); ok {
		return 2
	}
	return 1
}

// NewSites yields the class object the load produces, at pc 0.
func (f ForNameInterpreter) NewSites(node *callgraph.Node) iter.Seq[types.NewSiteReference] {
	interp.MustUnderstand(f, node)
	t, ok := contextType(node)
	if !ok {
		return interp.Empty[types.NewSiteReference]()
	}
	return interp.Single(types.NewSiteReference{PC: 0, Type: t})
}

func (f ForNameInterpreter) CallSites(node *callgraph.Node) iter.Seq[types.CallSiteReference] {
	interp.MustUnderstand(f, node)
	return interp.Empty[types.CallSiteReference]()
}

func (f ForNameInterpreter) FieldsRead(node *callgraph.Node) iter.Seq[types.FieldReference] {
	interp.MustUnderstand(f, node)
	return interp.Empty[types.FieldReference]()
}

func (f ForNameInterpreter) FieldsWritten(node *callgraph.Node) iter.Seq[types.FieldReference] {
	interp.MustUnderstand(f, node)
	return interp.Empty[types.FieldReference]()
}

func (f ForNameInterpreter) CFG(node *callgraph.Node) *ssa.CFG {
	return ssa.NewCFG(f.instructions(node))
}

func (f ForNameInterpreter) DefUse(node *callgraph.Node) *ssa.DefUse {
	return ssa.NewDefUse(f.instructions(node))
}

// RecordFactoryType reports false; the body depends on the context alone.
func (f ForNameInterpreter) RecordFactoryType(node *callgraph.Node, _ *hierarchy.Class) bool {
	interp.MustUnderstand(f, node)
	return false
}
