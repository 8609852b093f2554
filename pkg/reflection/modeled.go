package reflection

import (
	"iter"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/interp"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// modeled interprets one instance method under a type context by expanding
// a template. v1 is the receiver; the template's locals start at v2.
type modeled struct {
	method   types.MethodReference
	template func(t types.TypeReference) []ssa.Instruction
}

func (m *modeled) Understands(node *callgraph.Node) bool {
	interp.RequireNode(node)
	if _, ok := node.Context().(callgraph.TypeContext); !ok {
		return false
	}
	return node.Method() == m.method
}

func (m *modeled) instructions(node *callgraph.Node) []ssa.Instruction {
	interp.MustUnderstand(m, node)
	t, ok := contextType(node)
	if !ok {
		return []ssa.Instruction{&ssa.Throw{Exception: 1}}
	}
	return m.template(t)
}

func (m *modeled) IR(node *callgraph.Node) *ssa.IR {
	instrs := m.instructions(node)
	return ssa.NewIR(node.Method(), node.Context(), false, instrs)
}

func (m *modeled) NumberOfStatements(node *callgraph.Node) int {
	return len(m.instructions(node))
}

func (m *modeled) NewSites(node *callgraph.Node) iter.Seq[types.NewSiteReference] {
	return interp.NewSitesOf(m.instructions(node))
}

func (m *modeled) CallSites(node *callgraph.Node) iter.Seq[types.CallSiteReference] {
	return interp.CallSitesOf(m.instructions(node))
}

func (m *modeled) FieldsRead(node *callgraph.Node) iter.Seq[types.FieldReference] {
	return interp.FieldsReadOf(m.instructions(node))
}

func (m *modeled) FieldsWritten(node *callgraph.Node) iter.Seq[types.FieldReference] {
	return interp.FieldsWrittenOf(m.instructions(node))
}

func (m *modeled) CFG(node *callgraph.Node) *ssa.CFG {
	return ssa.NewCFG(m.instructions(node))
}

func (m *modeled) DefUse(node *callgraph.Node) *ssa.DefUse {
	return ssa.NewDefUse(m.instructions(node))
}

func (m *modeled) RecordFactoryType(node *callgraph.Node, _ *hierarchy.Class) bool {
	interp.MustUnderstand(m, node)
	return false
}

// GetClassInterpreter interprets Object.getClass() on a receiver whose
// exact type the context names:
//
//	v2 = loadclass T
//	return v2
type GetClassInterpreter struct{ modeled }

var _ interp.ContextInterpreter = (*GetClassInterpreter)(nil)

func NewGetClassInterpreter() *GetClassInterpreter {
	return &GetClassInterpreter{modeled{
		method: hierarchy.ObjectGetClass,
		template: func(t types.TypeReference) []ssa.Instruction {
			return []ssa.Instruction{
				&ssa.LoadClass{Def: 2, Type: t},
				&ssa.Return{Result: 2},
			}
		},
	}}
}

// NewInstanceInterpreter interprets Class.newInstance() on the class object
// of T by allocating T and running its no-argument constructor:
//
//	v2 = new T
//	invokespecial T.<init>()V v2
//	return v2
type NewInstanceInterpreter struct{ modeled }

var _ interp.ContextInterpreter = (*NewInstanceInterpreter)(nil)

func NewNewInstanceInterpreter() *NewInstanceInterpreter {
	return &NewInstanceInterpreter{modeled{
		method: hierarchy.ClassNewInstance,
		template: func(t types.TypeReference) []ssa.Instruction {
			return []ssa.Instruction{
				&ssa.New{Def: 2, Site: types.NewSiteReference{PC: 0, Type: t}},
				&ssa.Invoke{
					Def:       ssa.NoValue,
					Exception: 3,
					Site: types.CallSiteReference{
						PC:     1,
						Target: types.NewMethodReference(t, types.InitName, "()V"),
						Kind:   types.InvokeSpecial,
					},
					Args: []int{2},
				},
				&ssa.Return{Result: 2},
			}
		},
	}}
}

// NewDispatcher returns a dispatcher routing reflective nodes to their
// models and everything else to the bodies in h.
func NewDispatcher(h *hierarchy.Hierarchy) *interp.Dispatcher {
	return interp.NewDispatcher(
		ForNameInterpreter{},
		NewGetClassInterpreter(),
		NewNewInstanceInterpreter(),
		interp.NewBodyInterpreter(h),
	)
}
