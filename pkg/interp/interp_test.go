package interp

import (
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

var (
	appMain  = types.NewMethodReference(types.NewTypeReference("Lapp/Main"), "main", "([Ljava/lang/String;)V")
	appField = types.FieldReference{Declaring: types.NewTypeReference("Lapp/Main"), Name: "x", Type: types.JavaLangObject}
)

// stub understands one method and counts its syntheses.
type stub struct {
	method  types.MethodReference
	calls   atomic.Int64
	factory bool
}

func (s *stub) Understands(node *callgraph.Node) bool {
	RequireNode(node)
	return node.Method() == s.method
}

func (s *stub) IR(node *callgraph.Node) *ssa.IR {
	MustUnderstand(s, node)
	s.calls.Add(1)
	return ssa.NewIR(node.Method(), node.Context(), true, []ssa.Instruction{&ssa.Return{Result: ssa.NoValue}})
}

func (s *stub) NumberOfStatements(node *callgraph.Node) int { return len(s.IR(node).Instructions) }

func (s *stub) NewSites(node *callgraph.Node) iter.Seq[types.NewSiteReference] {
	MustUnderstand(s, node)
	return Empty[types.NewSiteReference]()
}

func (s *stub) CallSites(node *callgraph.Node) iter.Seq[types.CallSiteReference] {
	MustUnderstand(s, node)
	return Empty[types.CallSiteReference]()
}

func (s *stub) FieldsRead(node *callgraph.Node) iter.Seq[types.FieldReference] {
	MustUnderstand(s, node)
	return Single(appField)
}

func (s *stub) FieldsWritten(node *callgraph.Node) iter.Seq[types.FieldReference] {
	MustUnderstand(s, node)
	return Empty[types.FieldReference]()
}

func (s *stub) CFG(node *callgraph.Node) *ssa.CFG       { return s.IR(node).CFG }
func (s *stub) DefUse(node *callgraph.Node) *ssa.DefUse { return s.IR(node).DefUse() }

func (s *stub) RecordFactoryType(node *callgraph.Node, _ *hierarchy.Class) bool {
	MustUnderstand(s, node)
	return s.factory
}

func TestMustUnderstand(t *testing.T) {
	s := &stub{method: appMain}
	require.PanicsWithValue(t, "interp: node is nil", func() { MustUnderstand(s, nil) })
	require.Panics(t, func() { MustUnderstand(s, callgraph.NewNode(hierarchy.ClassForName, nil)) })
	require.NotPanics(t, func() { MustUnderstand(s, callgraph.NewNode(appMain, nil)) })
}

func TestSequences(t *testing.T) {
	require.Empty(t, slices.Collect(Empty[int]()))
	seq := Single(7)
	require.Equal(t, []int{7}, slices.Collect(seq))
	require.Equal(t, []int{7}, slices.Collect(seq), "restartable")

	instrs := []ssa.Instruction{
		&ssa.New{Def: 2, Site: types.NewSiteReference{PC: 0, Type: types.JavaLangString}},
		&ssa.Invoke{Def: ssa.NoValue, Exception: ssa.NoValue, Site: types.CallSiteReference{PC: 1, Target: hierarchy.ObjectInit, Kind: types.InvokeSpecial}, Args: []int{2}},
		&ssa.GetField{Def: 3, Ref: ssa.NoValue, Field: appField},
		&ssa.PutField{Ref: ssa.NoValue, Val: 3, Field: appField},
		&ssa.Return{Result: ssa.NoValue},
	}
	require.Equal(t, []types.NewSiteReference{{PC: 0, Type: types.JavaLangString}}, slices.Collect(NewSitesOf(instrs)))

	loads := []ssa.Instruction{
		&ssa.Const{Def: 2, Value: "x"},
		&ssa.LoadClass{Def: 3, Type: types.JavaLangString},
		&ssa.Return{Result: 3},
	}
	require.Equal(t, []types.NewSiteReference{{PC: 1, Type: types.JavaLangString}}, slices.Collect(NewSitesOf(loads)))
	require.Len(t, slices.Collect(CallSitesOf(instrs)), 1)
	require.Equal(t, []types.FieldReference{appField}, slices.Collect(FieldsReadOf(instrs)))
	require.Equal(t, []types.FieldReference{appField}, slices.Collect(FieldsWrittenOf(instrs)))

	// Early termination stops the walk.
	var n int
	for range NewSitesOf(append(instrs, instrs...)) {
		n++
		break
	}
	require.Equal(t, 1, n)
}

func TestDispatcher_Routing(t *testing.T) {
	first := &stub{method: appMain}
	second := &stub{method: appMain}
	d := NewDispatcher(first, second)

	node := callgraph.NewNode(appMain, nil)
	owner, ok := d.Interpreter(node)
	require.True(t, ok)
	require.Same(t, first, owner, "first registered interpreter wins")

	require.False(t, d.Understands(callgraph.NewNode(hierarchy.ClassForName, nil)))
	require.Panics(t, func() { d.IR(callgraph.NewNode(hierarchy.ClassForName, nil)) })
	require.Panics(t, func() { d.Understands(nil) })

	require.Equal(t, 1, d.NumberOfStatements(node))
	require.Equal(t, []types.FieldReference{appField}, slices.Collect(d.FieldsRead(node)))
	require.Empty(t, slices.Collect(d.NewSites(node)))
	require.Empty(t, slices.Collect(d.CallSites(node)))
	require.Empty(t, slices.Collect(d.FieldsWritten(node)))
}

func TestDispatcher_CacheAndInvalidate(t *testing.T) {
	s := &stub{method: appMain, factory: true}
	d := NewDispatcher(s)
	node := callgraph.NewNode(appMain, nil)

	ir := d.IR(node)
	require.Same(t, ir, d.IR(node))
	require.Same(t, ir.CFG, d.CFG(node))
	require.Same(t, d.DefUse(node), d.DefUse(node))
	require.EqualValues(t, 1, s.calls.Load())

	require.True(t, d.RecordFactoryType(node, nil))
	require.NotSame(t, ir, d.IR(node), "recording a factory type drops the cache")
	require.EqualValues(t, 2, d.Syntheses())

	s.factory = false
	cached := d.IR(node)
	require.False(t, d.RecordFactoryType(node, nil))
	require.Same(t, cached, d.IR(node))
}

func TestDispatcher_ConcurrentFirstAccess(t *testing.T) {
	s := &stub{method: appMain}
	d := NewDispatcher(s)
	node := callgraph.NewNode(appMain, nil)

	var wg sync.WaitGroup
	irs := make([]*ssa.IR, 16)
	for i := range irs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			irs[i] = d.IR(node)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, s.calls.Load())
	for _, ir := range irs {
		require.Same(t, irs[0], ir)
	}
}

func TestBodyInterpreter(t *testing.T) {
	h := hierarchy.Bootstrap()
	b := NewBodyInterpreter(h)

	objInit := callgraph.NewNode(hierarchy.ObjectInit, nil)
	require.True(t, b.Understands(objInit))
	require.Equal(t, 1, b.NumberOfStatements(objInit))
	ir := b.IR(objInit)
	require.Equal(t, 1, ir.NumberOfParameters, "receiver only")
	require.Len(t, ir.CFG.NormalExitPredecessors(), 1)
	require.False(t, b.RecordFactoryType(objInit, nil))

	throwableInit := callgraph.NewNode(types.NewMethodReference(types.JavaLangThrowable, types.InitName, "()V"), nil)
	require.Equal(t, []types.CallSiteReference{{PC: 0, Target: hierarchy.ObjectInit, Kind: types.InvokeSpecial}},
		slices.Collect(b.CallSites(throwableInit)))
	require.Empty(t, slices.Collect(b.NewSites(throwableInit)))
	require.Equal(t, []int{0}, b.DefUse(throwableInit).Uses(1))
	require.NotNil(t, b.CFG(throwableInit))

	// Native, inherited-only and missing methods have no body here.
	require.False(t, b.Understands(callgraph.NewNode(hierarchy.ClassForName, nil)))
	require.False(t, b.Understands(callgraph.NewNode(types.NewMethodReference(types.JavaLangString, types.InitName, "()V"), nil)))
	require.False(t, b.Understands(callgraph.NewNode(appMain, nil)))
	require.Panics(t, func() { b.IR(callgraph.NewNode(appMain, nil)) })
	require.Panics(t, func() { b.Understands(nil) })
}
