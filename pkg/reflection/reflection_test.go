package reflection

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/interp"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

var (
	arrayList = types.TypeFromClassName("java.util.ArrayList")
	listType  = types.TypeFromClassName("java.util.List")
	appMain   = types.NewMethodReference(types.NewTypeReference("Lapp/Main"), "main", "([Ljava/lang/String;)V")
)

func forNameNode(ctx callgraph.Context) *callgraph.Node {
	return callgraph.NewNode(ForNameRef, ctx)
}

func TestForNameRef(t *testing.T) {
	ref, err := types.ParseMethodReference("Ljava/lang/Class.forName(Ljava/lang/String;)Ljava/lang/Class;")
	require.NoError(t, err)
	require.Equal(t, ref, ForNameRef)
}

func TestForName_Understands(t *testing.T) {
	f := ForNameInterpreter{}
	tests := []struct {
		name     string
		node     *callgraph.Node
		expected bool
	}{
		{"known type", forNameNode(callgraph.NewTypeContext(arrayList)), true},
		{"unknown type", forNameNode(callgraph.UnknownTypeContext()), true},
		{"everywhere", forNameNode(callgraph.Everywhere), false},
		{"type context on other method", callgraph.NewNode(appMain, callgraph.NewTypeContext(arrayList)), false},
		{"type context on getClass", callgraph.NewNode(hierarchy.ObjectGetClass, callgraph.NewTypeContext(arrayList)), false},
		{"forName with other descriptor", callgraph.NewNode(
			types.NewMethodReference(types.JavaLangClass, "forName", "(Ljava/lang/String;ZLjava/lang/ClassLoader;)Ljava/lang/Class;"),
			callgraph.NewTypeContext(arrayList)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, f.Understands(tt.node))
		})
	}

	require.Panics(t, func() { f.Understands(nil) })
}

func TestForName_KnownType(t *testing.T) {
	f := ForNameInterpreter{}
	node := forNameNode(callgraph.NewTypeContext(arrayList))

	ir := f.IR(node)
	require.Equal(t, []ssa.Instruction{
		&ssa.LoadClass{Def: 1, Type: arrayList},
		&ssa.Return{Result: 1},
	}, ir.Instructions)
	require.Equal(t, ForNameRef, ir.Method)
	require.Equal(t, node.Context(), ir.Context)
	require.Equal(t, 1, ir.NumberOfParameters)

	require.Equal(t, 2, f.NumberOfStatements(node))
	require.Equal(t, []types.NewSiteReference{{PC: 0, Type: arrayList}}, slices.Collect(f.NewSites(node)))
	require.Empty(t, slices.Collect(f.CallSites(node)))
	require.Empty(t, slices.Collect(f.FieldsRead(node)))
	require.Empty(t, slices.Collect(f.FieldsWritten(node)))

	cfg := f.CFG(node)
	require.Len(t, cfg.Blocks, 2)
	require.Equal(t, []*ssa.BasicBlock{cfg.Entry()}, cfg.NormalExitPredecessors())
	require.Empty(t, cfg.ExceptionalExitPredecessors())
	require.Empty(t, cfg.Unreachable())
	last := cfg.BlockForInstruction(1)
	require.Same(t, cfg.Entry(), last, "the return ends the only instruction block")

	du := f.DefUse(node)
	def, pc, ok := du.Def(1)
	require.True(t, ok)
	require.Equal(t, 0, pc)
	require.IsType(t, &ssa.LoadClass{}, def)
	require.Equal(t, []int{1}, du.Uses(1))
}

func TestForName_UnknownType(t *testing.T) {
	f := ForNameInterpreter{}
	node := forNameNode(callgraph.UnknownTypeContext())

	ir := f.IR(node)
	require.Equal(t, []ssa.Instruction{&ssa.Throw{Exception: ir.Parameter(0)}}, ir.Instructions)
	require.Equal(t, 1, f.NumberOfStatements(node))
	require.Empty(t, slices.Collect(f.NewSites(node)))
	require.Empty(t, slices.Collect(f.CallSites(node)))

	cfg := f.CFG(node)
	require.Len(t, cfg.Blocks, 2)
	require.Empty(t, cfg.NormalExitPredecessors())
	require.Equal(t, []*ssa.BasicBlock{cfg.Entry()}, cfg.ExceptionalExitPredecessors())
	require.Empty(t, cfg.Unreachable())

	du := f.DefUse(node)
	_, _, ok := du.Def(1)
	require.False(t, ok, "the argument slot is a parameter")
	require.Equal(t, []int{0}, du.Uses(1))
}

func TestForName_Properties(t *testing.T) {
	f := ForNameInterpreter{}
	nodes := []*callgraph.Node{
		forNameNode(callgraph.NewTypeContext(arrayList)),
		forNameNode(callgraph.NewTypeContext(types.JavaLangString)),
		forNameNode(callgraph.UnknownTypeContext()),
	}
	for _, node := range nodes {
		t.Run(node.String(), func(t *testing.T) {
			first, second := f.IR(node), f.IR(node)
			require.NotSame(t, first, second, "synthesis is not cached")
			require.True(t, first.Equal(second))
			require.Equal(t, len(first.Instructions), f.NumberOfStatements(node))

			sites := f.NewSites(node)
			require.Equal(t, slices.Collect(sites), slices.Collect(sites), "sequences restart")

			require.False(t, f.RecordFactoryType(node, nil))
			class := hierarchy.NewClass(arrayList, types.JavaLangObject)
			require.False(t, f.RecordFactoryType(node, class))
			require.True(t, first.Equal(f.IR(node)), "recording a type changes nothing")
		})
	}
}

func TestForName_PreconditionFaults(t *testing.T) {
	f := ForNameInterpreter{}
	foreign := callgraph.NewNode(appMain, callgraph.NewTypeContext(arrayList))
	everywhere := forNameNode(callgraph.Everywhere)

	ops := map[string]func(*callgraph.Node){
		"IR":                 func(n *callgraph.Node) { f.IR(n) },
		"NumberOfStatements": func(n *callgraph.Node) { f.NumberOfStatements(n) },
		"NewSites":           func(n *callgraph.Node) { f.NewSites(n) },
		"CallSites":          func(n *callgraph.Node) { f.CallSites(n) },
		"FieldsRead":         func(n *callgraph.Node) { f.FieldsRead(n) },
		"FieldsWritten":      func(n *callgraph.Node) { f.FieldsWritten(n) },
		"CFG":                func(n *callgraph.Node) { f.CFG(n) },
		"DefUse":             func(n *callgraph.Node) { f.DefUse(n) },
		"RecordFactoryType":  func(n *callgraph.Node) { f.RecordFactoryType(n, nil) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			require.Panics(t, func() { op(foreign) })
			require.Panics(t, func() { op(everywhere) })
			require.Panics(t, func() { op(nil) })
		})
	}
}

func TestForName_Concurrent(t *testing.T) {
	f := ForNameInterpreter{}
	typesUnderTest := []types.TypeReference{arrayList, types.JavaLangString, listType, {}}

	var wg sync.WaitGroup
	for i := range 64 {
		typ := typesUnderTest[i%len(typesUnderTest)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			node := forNameNode(callgraph.NewTypeContext(typ))
			ir := f.IR(node)
			if typ.IsZero() {
				assert.Len(t, ir.Instructions, 1)
				return
			}
			assert.Equal(t, []ssa.Instruction{
				&ssa.LoadClass{Def: 1, Type: typ},
				&ssa.Return{Result: 1},
			}, ir.Instructions)
		}()
	}
	wg.Wait()
}

func TestGetClassInterpreter(t *testing.T) {
	g := NewGetClassInterpreter()
	node := callgraph.NewNode(hierarchy.ObjectGetClass, callgraph.NewTypeContext(arrayList))
	require.True(t, g.Understands(node))
	require.False(t, g.Understands(callgraph.NewNode(hierarchy.ObjectGetClass, callgraph.Everywhere)))
	require.False(t, g.Understands(forNameNode(callgraph.NewTypeContext(arrayList))))

	ir := g.IR(node)
	require.Equal(t, []ssa.Instruction{
		&ssa.LoadClass{Def: 2, Type: arrayList},
		&ssa.Return{Result: 2},
	}, ir.Instructions)
	require.Equal(t, 1, ir.NumberOfParameters)
	require.Equal(t, 2, g.NumberOfStatements(node))
	require.Equal(t, []types.NewSiteReference{{PC: 0, Type: arrayList}}, slices.Collect(g.NewSites(node)),
		"the class object is a new site")

	unknown := callgraph.NewNode(hierarchy.ObjectGetClass, callgraph.UnknownTypeContext())
	require.Equal(t, []ssa.Instruction{&ssa.Throw{Exception: 1}}, g.IR(unknown).Instructions)
	require.Panics(t, func() { g.IR(forNameNode(callgraph.NewTypeContext(arrayList))) })
}

func TestNewInstanceInterpreter(t *testing.T) {
	n := NewNewInstanceInterpreter()
	node := callgraph.NewNode(hierarchy.ClassNewInstance, callgraph.NewTypeContext(arrayList))
	require.True(t, n.Understands(node))

	ctor := types.NewMethodReference(arrayList, types.InitName, "()V")
	require.Equal(t, []types.NewSiteReference{{PC: 0, Type: arrayList}}, slices.Collect(n.NewSites(node)))
	require.Equal(t, []types.CallSiteReference{{PC: 1, Target: ctor, Kind: types.InvokeSpecial}}, slices.Collect(n.CallSites(node)))
	require.Equal(t, 3, n.NumberOfStatements(node))
	require.Empty(t, slices.Collect(n.FieldsRead(node)))
	require.Empty(t, slices.Collect(n.FieldsWritten(node)))

	cfg := n.CFG(node)
	require.Len(t, cfg.NormalExitPredecessors(), 1)
	require.Len(t, cfg.Blocks, 4, "three instruction blocks and the exit")
	require.Len(t, cfg.ExceptionalExitPredecessors(), 2, "the allocation and the constructor call may throw")
	require.Empty(t, cfg.Unreachable())
	require.Equal(t, 2, n.DefUse(node).NumberOfUses(2))
	require.False(t, n.RecordFactoryType(node, nil))

	unknown := callgraph.NewNode(hierarchy.ClassNewInstance, callgraph.UnknownTypeContext())
	require.Equal(t, 1, n.NumberOfStatements(unknown))
	require.Empty(t, slices.Collect(n.CallSites(unknown)))
}

func TestNewDispatcher_Routing(t *testing.T) {
	h := hierarchy.Bootstrap()
	d := NewDispatcher(h)

	tests := []struct {
		name     string
		node     *callgraph.Node
		expected any
	}{
		{"forName", forNameNode(callgraph.NewTypeContext(arrayList)), ForNameInterpreter{}},
		{"getClass", callgraph.NewNode(hierarchy.ObjectGetClass, callgraph.UnknownTypeContext()), &GetClassInterpreter{}},
		{"newInstance", callgraph.NewNode(hierarchy.ClassNewInstance, callgraph.NewTypeContext(arrayList)), &NewInstanceInterpreter{}},
		{"body", callgraph.NewNode(hierarchy.ObjectInit, callgraph.Everywhere), &interp.BodyInterpreter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, ok := d.Interpreter(tt.node)
			require.True(t, ok)
			require.IsType(t, tt.expected, i)
		})
	}

	_, ok := d.Interpreter(forNameNode(callgraph.Everywhere))
	require.False(t, ok, "native forName without a type context is unmodeled")
}
