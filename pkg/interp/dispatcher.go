package interp

import (
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// Dispatcher routes each node to the first registered interpreter that
// understands it and caches the IR it produces. It satisfies
// ContextInterpreter itself, so the builder sees a single interpreter.
//
// Registration must finish before the dispatcher is used; every other method
// is safe for concurrent use.
type Dispatcher struct {
	interpreters []ContextInterpreter
	irs          *xsync.Map[*callgraph.Node, *ssa.IR]
	defUses      *xsync.Map[*callgraph.Node, *ssa.DefUse]
	syntheses    atomic.Int64
}

var _ ContextInterpreter = (*Dispatcher)(nil)

// NewDispatcher returns a dispatcher consulting interpreters in order.
func NewDispatcher(interpreters ...ContextInterpreter) *Dispatcher {
	return &Dispatcher{
		interpreters: interpreters,
		irs:          xsync.NewMap[*callgraph.Node, *ssa.IR](),
		defUses:      xsync.NewMap[*callgraph.Node, *ssa.DefUse](),
	}
}

// Register appends i to the routing order.
func (d *Dispatcher) Register(i ContextInterpreter) {
	d.interpreters = append(d.interpreters, i)
}

// Interpreter returns the interpreter that owns node.
func (d *Dispatcher) Interpreter(node *callgraph.Node) (ContextInterpreter, bool) {
	RequireNode(node)
	for _, i := range d.interpreters {
		if i.Understands(node) {
			return i, true
		}
	}
	return nil, false
}

func (d *Dispatcher) owner(node *callgraph.Node) ContextInterpreter {
	i, ok := d.Interpreter(node)
	if !ok {
		panic(fmt.Sprintf("interp: no interpreter understands %s", node))
	}
	return i
}

func (d *Dispatcher) Understands(node *callgraph.Node) bool {
	_, ok := d.Interpreter(node)
	return ok
}

// IR returns the owner's IR for node, synthesizing it at most once no matter
// how many goroutines ask concurrently.
func (d *Dispatcher) IR(node *callgraph.Node) *ssa.IR {
	ir, _ := d.irs.LoadOrCompute(node, func() (*ssa.IR, bool) {
		d.syntheses.Add(1)
		return d.owner(node).IR(node), false
	})
	return ir
}

// Syntheses returns how many IRs the dispatcher has requested from its
// interpreters.
func (d *Dispatcher) Syntheses() int64 { return d.syntheses.Load() }

// Invalidate drops the cached IR and def-use of node.
func (d *Dispatcher) Invalidate(node *callgraph.Node) {
	d.irs.Delete(node)
	d.defUses.Delete(node)
}

func (d *Dispatcher) NumberOfStatements(node *callgraph.Node) int {
	return d.owner(node).NumberOfStatements(node)
}

func (d *Dispatcher) NewSites(node *callgraph.Node) iter.Seq[types.NewSiteReference] {
	return d.owner(node).NewSites(node)
}

func (d *Dispatcher) CallSites(node *callgraph.Node) iter.Seq[types.CallSiteReference] {
	return d.owner(node).CallSites(node)
}

func (d *Dispatcher) FieldsRead(node *callgraph.Node) iter.Seq[types.FieldReference] {
	return d.owner(node).FieldsRead(node)
}

func (d *Dispatcher) FieldsWritten(node *callgraph.Node) iter.Seq[types.FieldReference] {
	return d.owner(node).FieldsWritten(node)
}

// CFG returns the CFG of the cached IR.
func (d *Dispatcher) CFG(node *callgraph.Node) *ssa.CFG {
	return d.IR(node).CFG
}

// DefUse returns the def-use chains of the cached IR, computed once.
func (d *Dispatcher) DefUse(node *callgraph.Node) *ssa.DefUse {
	du, _ := d.defUses.LoadOrCompute(node, func() (*ssa.DefUse, bool) {
		return d.IR(node).DefUse(), false
	})
	return du
}

// RecordFactoryType forwards to the owner and invalidates the cache when the
// owner's output changed.
func (d *Dispatcher) RecordFactoryType(node *callgraph.Node, klass *hierarchy.Class) bool {
	if !d.owner(node).RecordFactoryType(node, klass) {
		return false
	}
	d.Invalidate(node)
	return true
}
