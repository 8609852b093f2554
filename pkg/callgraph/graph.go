package callgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/715d/reflectcg/pkg/types"
)

// Node is one (method, context) pair visited by the call-graph builder.
type Node struct {
	id      int64
	method  types.MethodReference
	context Context
}

// ID returns the node's identifier, unique within its graph.
func (n *Node) ID() int64 { return n.id }

// Method returns the node's method.
func (n *Node) Method() types.MethodReference { return n.method }

// Context returns the node's context.
func (n *Node) Context() Context { return n.context }

func (n *Node) String() string {
	return fmt.Sprintf("Node(%s, %s)", n.method, n.context)
}

// NewNode returns a node outside of any graph, with ID -1. It is meant for
// callers that query interpreters directly.
func NewNode(method types.MethodReference, ctx Context) *Node {
	if ctx == nil {
		ctx = Everywhere
	}
	return &Node{id: -1, method: method, context: ctx}
}

type nodeKey struct {
	method  types.MethodReference
	context Context
}

// Graph is a context-sensitive call graph. It is not safe for concurrent
// mutation; concurrent readers are fine once construction is done.
type Graph struct {
	nodes []*Node
	index map[nodeKey]*Node
	roots []*Node

	// out maps caller -> call site -> callees, callees in insertion order.
	out  map[*Node]map[types.CallSiteReference][]*Node
	in   map[*Node][]*Node
	nEdg int
}

// NewGraph returns an empty call graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[nodeKey]*Node),
		out:   make(map[*Node]map[types.CallSiteReference][]*Node),
		in:    make(map[*Node][]*Node),
	}
}

// FindOrCreateNode returns the node for (method, ctx), creating it if needed.
// The boolean reports whether the node was created.
func (g *Graph) FindOrCreateNode(method types.MethodReference, ctx Context) (*Node, bool) {
	if ctx == nil {
		ctx = Everywhere
	}
	key := nodeKey{method: method, context: ctx}
	if n, ok := g.index[key]; ok {
		return n, false
	}
	n := &Node{id: int64(len(g.nodes)), method: method, context: ctx}
	g.nodes = append(g.nodes, n)
	g.index[key] = n
	return n, true
}

// Node returns the node for (method, ctx), or nil.
func (g *Graph) Node(method types.MethodReference, ctx Context) *Node {
	if ctx == nil {
		ctx = Everywhere
	}
	return g.index[nodeKey{method: method, context: ctx}]
}

// NodeByID returns the node with the given ID, or nil.
func (g *Graph) NodeByID(id int64) *Node {
	if id < 0 || id >= int64(len(g.nodes)) {
		return nil
	}
	return g.nodes[id]
}

// AddRoot marks n as an entrypoint.
func (g *Graph) AddRoot(n *Node) {
	if !slices.Contains(g.roots, n) {
		g.roots = append(g.roots, n)
	}
}

// Roots returns the entrypoint nodes.
func (g *Graph) Roots() []*Node { return slices.Clone(g.roots) }

// Nodes returns all nodes in creation (ID) order.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// NodesFor returns every node of method, one per context.
func (g *Graph) NodesFor(method types.MethodReference) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.method == method {
			out = append(out, n)
		}
	}
	return out
}

// NumberOfNodes returns the node count.
func (g *Graph) NumberOfNodes() int { return len(g.nodes) }

// NumberOfEdges returns the count of distinct (caller, site, callee) edges.
func (g *Graph) NumberOfEdges() int { return g.nEdg }

// AddEdge records that caller may invoke callee at site. It reports whether
// the edge is new.
func (g *Graph) AddEdge(caller *Node, site types.CallSiteReference, callee *Node) bool {
	sites := g.out[caller]
	if sites == nil {
		sites = make(map[types.CallSiteReference][]*Node)
		g.out[caller] = sites
	}
	if slices.Contains(sites[site], callee) {
		return false
	}
	sites[site] = append(sites[site], callee)
	if !slices.Contains(g.in[callee], caller) {
		g.in[callee] = append(g.in[callee], caller)
	}
	g.nEdg++
	return true
}

// Targets returns the callees of caller at site.
func (g *Graph) Targets(caller *Node, site types.CallSiteReference) []*Node {
	return slices.Clone(g.out[caller][site])
}

// CallSites returns the call sites of caller that have at least one edge,
// ordered by program point.
func (g *Graph) CallSites(caller *Node) []types.CallSiteReference {
	sites := make([]types.CallSiteReference, 0, len(g.out[caller]))
	for s := range g.out[caller] {
		sites = append(sites, s)
	}
	slices.SortFunc(sites, func(a, b types.CallSiteReference) int {
		if a.PC != b.PC {
			return a.PC - b.PC
		}
		return strings.Compare(a.Target.String(), b.Target.String())
	})
	return sites
}

// Successors returns the distinct callees of n in ID order.
func (g *Graph) Successors(n *Node) []*Node {
	var out []*Node
	for _, callees := range g.out[n] {
		for _, c := range callees {
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	slices.SortFunc(out, byID)
	return out
}

// Predecessors returns the distinct callers of n in ID order.
func (g *Graph) Predecessors(n *Node) []*Node {
	out := slices.Clone(g.in[n])
	slices.SortFunc(out, byID)
	return out
}

func byID(a, b *Node) int {
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	}
	return 0
}
