package callgraph

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// gNode adapts a Node to gonum's graph.Node and dot.Node.
type gNode struct {
	*Node
}

// DOTID implements dot.Node.
func (n gNode) DOTID() string { return "n" + strconv.FormatInt(n.id, 10) }

// Attributes implements encoding.Attributer.
func (n gNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{
		Key:   "label",
		Value: strconv.Quote(fmt.Sprintf("%s.%s %s", n.method.Declaring.ClassName(), n.method.Name, n.context)),
	}}
}

// directed converts g to a gonum directed graph. Self edges are not
// representable in simple.DirectedGraph; the set of self-calling nodes is
// returned alongside.
func (g *Graph) directed() (*simple.DirectedGraph, map[int64]bool) {
	dg := simple.NewDirectedGraph()
	for _, n := range g.nodes {
		dg.AddNode(gNode{n})
	}
	selfLoops := make(map[int64]bool)
	for _, caller := range g.nodes {
		for _, callee := range g.Successors(caller) {
			if callee == caller {
				selfLoops[caller.id] = true
				continue
			}
			dg.SetEdge(dg.NewEdge(dg.Node(caller.id), dg.Node(callee.id)))
		}
	}
	return dg, selfLoops
}

// StronglyConnected returns the recursive components of the graph: every
// strongly connected component with more than one node, plus single nodes
// that call themselves. Components and their members are in ID order.
func (g *Graph) StronglyConnected() [][]*Node {
	dg, selfLoops := g.directed()

	var out [][]*Node
	for _, comp := range topo.TarjanSCC(dg) {
		if len(comp) == 1 && !selfLoops[comp[0].ID()] {
			continue
		}
		members := make([]*Node, 0, len(comp))
		for _, gn := range comp {
			members = append(members, g.nodes[gn.ID()])
		}
		slices.SortFunc(members, byID)
		out = append(out, members)
	}
	slices.SortFunc(out, func(a, b []*Node) int { return byID(a[0], b[0]) })
	return out
}

// DOT renders the graph in Graphviz format. Self calls, which the gonum
// graph cannot hold, are appended as edges before the closing brace.
func (g *Graph) DOT(name string) ([]byte, error) {
	dg, selfLoops := g.directed()
	b, err := dot.Marshal(dg, name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dot: %w", err)
	}
	if len(selfLoops) == 0 {
		return b, nil
	}

	end := bytes.LastIndexByte(b, '}')
	if end < 0 {
		return nil, fmt.Errorf("marshal dot: no closing brace")
	}
	var buf bytes.Buffer
	buf.Write(b[:end])
	for _, id := range slices.Sorted(maps.Keys(selfLoops)) {
		n := gNode{g.nodes[id]}.DOTID()
		fmt.Fprintf(&buf, "  %s -> %s;\n", n, n)
	}
	buf.Write(b[end:])
	return buf.Bytes(), nil
}

var _ graph.Node = gNode{}
