package callgraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcg/pkg/types"
)

func mustMethod(t *testing.T, s string) types.MethodReference {
	t.Helper()
	m, err := types.ParseMethodReference(s)
	require.NoError(t, err)
	return m
}

func TestTypeContext(t *testing.T) {
	arrayList := types.NewTypeReference("Ljava/util/ArrayList")

	known := NewTypeContext(arrayList)
	typ, ok := known.Type()
	require.True(t, ok)
	require.Equal(t, arrayList, typ)
	require.Equal(t, "Type(Ljava/util/ArrayList)", known.String())

	unknown := UnknownTypeContext()
	_, ok = unknown.Type()
	require.False(t, ok)
	require.Equal(t, "Type(?)", unknown.String())

	// A zero type collapses to the unknown context; there is no third state.
	require.Equal(t, unknown, NewTypeContext(types.TypeReference{}))

	// Contexts are comparable values.
	require.True(t, Context(known) == Context(NewTypeContext(arrayList)))
	require.False(t, Context(known) == Context(unknown))
	require.False(t, Context(unknown) == Everywhere)
}

func TestGraph_FindOrCreateNode(t *testing.T) {
	g := NewGraph()
	m := mustMethod(t, "Lapp/Main.main([Ljava/lang/String;)V")

	n1, created := g.FindOrCreateNode(m, Everywhere)
	require.True(t, created)
	n2, created := g.FindOrCreateNode(m, nil)
	require.False(t, created, "nil context defaults to Everywhere")
	require.Same(t, n1, n2)

	n3, created := g.FindOrCreateNode(m, UnknownTypeContext())
	require.True(t, created)
	require.NotSame(t, n1, n3)

	require.Equal(t, int64(0), n1.ID())
	require.Equal(t, int64(1), n3.ID())
	require.Same(t, n3, g.NodeByID(1))
	require.Nil(t, g.NodeByID(2))
	require.Same(t, n1, g.Node(m, Everywhere))
	require.Len(t, g.NodesFor(m), 2)
	require.Equal(t, 2, g.NumberOfNodes())
}

func TestGraph_Edges(t *testing.T) {
	g := NewGraph()
	main := mustMethod(t, "Lapp/Main.main([Ljava/lang/String;)V")
	forName := mustMethod(t, "Ljava/lang/Class.forName(Ljava/lang/String;)Ljava/lang/Class;")

	caller, _ := g.FindOrCreateNode(main, Everywhere)
	g.AddRoot(caller)
	g.AddRoot(caller)
	callee, _ := g.FindOrCreateNode(forName, UnknownTypeContext())
	site := types.CallSiteReference{PC: 3, Target: forName, Kind: types.InvokeStatic}

	require.True(t, g.AddEdge(caller, site, callee))
	require.False(t, g.AddEdge(caller, site, callee), "duplicate edge")
	require.Equal(t, 1, g.NumberOfEdges())
	require.Equal(t, []*Node{callee}, g.Targets(caller, site))
	require.Equal(t, []types.CallSiteReference{site}, g.CallSites(caller))
	require.Equal(t, []*Node{callee}, g.Successors(caller))
	require.Equal(t, []*Node{caller}, g.Predecessors(callee))
	require.Equal(t, []*Node{caller}, g.Roots())
}

func TestGraph_StronglyConnected(t *testing.T) {
	g := NewGraph()
	a, _ := g.FindOrCreateNode(mustMethod(t, "Lapp/A.a()V"), Everywhere)
	b, _ := g.FindOrCreateNode(mustMethod(t, "Lapp/B.b()V"), Everywhere)
	c, _ := g.FindOrCreateNode(mustMethod(t, "Lapp/C.c()V"), Everywhere)
	d, _ := g.FindOrCreateNode(mustMethod(t, "Lapp/D.d()V"), Everywhere)

	site := func(pc int, n *Node) types.CallSiteReference {
		return types.CallSiteReference{PC: pc, Target: n.Method(), Kind: types.InvokeStatic}
	}
	g.AddEdge(a, site(0, b), b)
	g.AddEdge(b, site(0, a), a)
	g.AddEdge(b, site(1, c), c)
	g.AddEdge(d, site(0, d), d)

	comps := g.StronglyConnected()
	require.Equal(t, [][]*Node{{a, b}, {d}}, comps)
}

func TestGraph_DOT(t *testing.T) {
	g := NewGraph()
	a, _ := g.FindOrCreateNode(mustMethod(t, "Lapp/A.a()V"), Everywhere)
	b, _ := g.FindOrCreateNode(mustMethod(t, "Lapp/B.b()V"), Everywhere)
	g.AddEdge(a, types.CallSiteReference{Target: b.Method()}, b)

	out, err := g.DOT("cg")
	require.NoError(t, err)
	require.Contains(t, string(out), "digraph")
	require.Contains(t, string(out), "n0")
	require.Contains(t, string(out), "n1")
	require.NotContains(t, string(out), "n0 -> n0")

	g.AddEdge(b, types.CallSiteReference{PC: 1, Target: b.Method()}, b)
	out, err = g.DOT("cg")
	require.NoError(t, err)
	require.Contains(t, string(out), "n1 -> n1;")
	require.True(t, strings.HasSuffix(strings.TrimSpace(string(out)), "}"))
	require.Equal(t, 1, strings.Count(string(out), "n1 -> n1"))
}
