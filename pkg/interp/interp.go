// Package interp defines how the call-graph builder obtains the analyzable
// form of a call-graph node, whether the node's method has a real body or its
// behavior is modeled by a synthetic one.
package interp

import (
	"fmt"
	"iter"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// ContextInterpreter owns the semantics of some set of call-graph nodes.
//
// Understands is the routing key: it must be total, cheap and free of side
// effects. Every other method requires Understands(node) to hold and panics
// otherwise. Implementations must be safe for concurrent use on distinct
// nodes.
type ContextInterpreter interface {
	// Understands reports whether the interpreter owns node.
	Understands(node *callgraph.Node) bool

	// IR returns the node's instruction sequence and induced CFG.
	IR(node *callgraph.Node) *ssa.IR

	// NumberOfStatements returns the length of the node's instruction sequence.
	NumberOfStatements(node *callgraph.Node) int

	// NewSites enumerates the allocations the node performs.
	NewSites(node *callgraph.Node) iter.Seq[types.NewSiteReference]

	// CallSites enumerates the calls the node makes.
	CallSites(node *callgraph.Node) iter.Seq[types.CallSiteReference]

	// FieldsRead enumerates the fields the node reads.
	FieldsRead(node *callgraph.Node) iter.Seq[types.FieldReference]

	// FieldsWritten enumerates the fields the node writes.
	FieldsWritten(node *callgraph.Node) iter.Seq[types.FieldReference]

	// CFG returns the control-flow graph of the node's IR.
	CFG(node *callgraph.Node) *ssa.CFG

	// DefUse returns the def-use chains of the node's IR.
	DefUse(node *callgraph.Node) *ssa.DefUse

	// RecordFactoryType tells a factory-style interpreter that klass may be
	// produced at node. It reports whether the interpreter's output for node
	// changed as a result.
	RecordFactoryType(node *callgraph.Node, klass *hierarchy.Class) bool
}

// RequireNode panics if node is nil.
func RequireNode(node *callgraph.Node) {
	if node == nil {
		panic("interp: node is nil")
	}
}

// MustUnderstand panics unless i understands node. Interpreters call it on
// entry to every node-specific operation.
func MustUnderstand(i ContextInterpreter, node *callgraph.Node) {
	RequireNode(node)
	if checkPreconditions && !i.Understands(node) {
		panic(fmt.Sprintf("interp: %T does not understand %s", i, node))
	}
}

// Empty returns a sequence yielding nothing.
func Empty[T any]() iter.Seq[T] {
	return func(func(T) bool) {}
}

// Single returns a sequence yielding v once.
func Single[T any](v T) iter.Seq[T] {
	return func(yield func(T) bool) {
		yield(v)
	}
}

// NewSitesOf enumerates the allocation sites declared by instrs. A loadclass
// produces a class object, so it is a site at its own pc.
func NewSitesOf(instrs []ssa.Instruction) iter.Seq[types.NewSiteReference] {
	return func(yield func(types.NewSiteReference) bool) {
		for pc, instr := range instrs {
			var site types.NewSiteReference
			switch in := instr.(type) {
			case *ssa.New:
				site = in.Site
			case *ssa.LoadClass:
				site = types.NewSiteReference{PC: pc, Type: in.Type}
			default:
				continue
			}
			if !yield(site) {
				return
			}
		}
	}
}

// CallSitesOf enumerates the call sites declared by instrs.
func CallSitesOf(instrs []ssa.Instruction) iter.Seq[types.CallSiteReference] {
	return func(yield func(types.CallSiteReference) bool) {
		for _, instr := range instrs {
			if inv, ok := instr.(*ssa.Invoke); ok && !yield(inv.Site) {
				return
			}
		}
	}
}

// FieldsReadOf enumerates the fields read by instrs.
func FieldsReadOf(instrs []ssa.Instruction) iter.Seq[types.FieldReference] {
	return func(yield func(types.FieldReference) bool) {
		for _, instr := range instrs {
			if g, ok := instr.(*ssa.GetField); ok && !yield(g.Field) {
				return
			}
		}
	}
}

// FieldsWrittenOf enumerates the fields written by instrs.
func FieldsWrittenOf(instrs []ssa.Instruction) iter.Seq[types.FieldReference] {
	return func(yield func(types.FieldReference) bool) {
		for _, instr := range instrs {
			if p, ok := instr.(*ssa.PutField); ok && !yield(p.Field) {
				return
			}
		}
	}
}

// ContextSelector picks the context a callee is analyzed under at one call
// site. caller is the IR containing the site and du its def-use chains.
type ContextSelector interface {
	Select(callee types.MethodReference, site types.CallSiteReference, caller *ssa.IR, du *ssa.DefUse) callgraph.Context
}

// EverywhereSelector analyzes every callee context-insensitively.
type EverywhereSelector struct{}

func (EverywhereSelector) Select(types.MethodReference, types.CallSiteReference, *ssa.IR, *ssa.DefUse) callgraph.Context {
	return callgraph.Everywhere
}
