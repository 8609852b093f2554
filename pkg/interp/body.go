package interp

import (
	"iter"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// BodyInterpreter interprets methods whose bodies are present in the class
// hierarchy. The context does not affect the result.
type BodyInterpreter struct {
	h *hierarchy.Hierarchy
}

var _ ContextInterpreter = (*BodyInterpreter)(nil)

func NewBodyInterpreter(h *hierarchy.Hierarchy) *BodyInterpreter {
	return &BodyInterpreter{h: h}
}

// method returns the declaration node stands for, if it has a body.
func (b *BodyInterpreter) method(node *callgraph.Node) (*hierarchy.Method, bool) {
	m, ok := b.h.Resolve(node.Method())
	if !ok || m.Ref != node.Method() || !m.HasBody() {
		return nil, false
	}
	return m, true
}

// Understands reports whether node's method is declared, with a body, by the
// class its reference names.
func (b *BodyInterpreter) Understands(node *callgraph.Node) bool {
	RequireNode(node)
	_, ok := b.method(node)
	return ok
}

func (b *BodyInterpreter) body(node *callgraph.Node) []ssa.Instruction {
	MustUnderstand(b, node)
	m, _ := b.method(node)
	return m.Body
}

func (b *BodyInterpreter) IR(node *callgraph.Node) *ssa.IR {
	MustUnderstand(b, node)
	m, _ := b.method(node)
	return ssa.NewIR(node.Method(), node.Context(), m.Static, m.Body)
}

func (b *BodyInterpreter) NumberOfStatements(node *callgraph.Node) int {
	return len(b.body(node))
}

func (b *BodyInterpreter) NewSites(node *callgraph.Node) iter.Seq[types.NewSiteReference] {
	return NewSitesOf(b.body(node))
}

func (b *BodyInterpreter) CallSites(node *callgraph.Node) iter.Seq[types.CallSiteReference] {
	return CallSitesOf(b.body(node))
}

func (b *BodyInterpreter) FieldsRead(node *callgraph.Node) iter.Seq[types.FieldReference] {
	return FieldsReadOf(b.body(node))
}

func (b *BodyInterpreter) FieldsWritten(node *callgraph.Node) iter.Seq[types.FieldReference] {
	return FieldsWrittenOf(b.body(node))
}

func (b *BodyInterpreter) CFG(node *callgraph.Node) *ssa.CFG {
	return ssa.NewCFG(b.body(node))
}

func (b *BodyInterpreter) DefUse(node *callgraph.Node) *ssa.DefUse {
	return ssa.NewDefUse(b.body(node))
}

// RecordFactoryType always reports false: bodies are fixed.
func (b *BodyInterpreter) RecordFactoryType(node *callgraph.Node, _ *hierarchy.Class) bool {
	MustUnderstand(b, node)
	return false
}
