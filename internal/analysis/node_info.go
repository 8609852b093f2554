// Package analysis provides per-node report records for a built call graph.
package analysis

import (
	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/interp"
	"github.com/715d/reflectcg/pkg/ssa"
)

// NodeInfo represents what the analysis learned about one call-graph node.
type NodeInfo struct {
	// ID is the node's identifier within its graph.
	ID int64 `json:"id"`

	// Name is the source name of the node's method.
	Name string `json:"name"`

	// Context is the label of the node's context, e.g. "Type(Ljava/util/ArrayList)".
	Context string `json:"context"`

	// Statements counts the instructions of the node's IR.
	Statements int `json:"statements"`

	// NewSites holds the source names of the types the node allocates or loads.
	NewSites []string `json:"new_sites,omitempty"`

	// Callees holds the IDs of the nodes the node calls.
	Callees []int64 `json:"callees,omitempty"`

	// IsRoot indicates whether the node is an entrypoint.
	IsRoot bool `json:"root,omitempty"`

	// ThrowsOnly indicates whether every path through the node ends in a throw.
	ThrowsOnly bool `json:"throws_only,omitempty"`

	// IsUnresolved indicates whether the node carries a type context without a type.
	IsUnresolved bool `json:"unresolved,omitempty"`

	// IsUnmodeled indicates whether no interpreter understands the node.
	IsUnmodeled bool `json:"unmodeled,omitempty"`

	// IsExcluded indicates whether the node's class is excluded from analysis.
	IsExcluded bool `json:"excluded,omitempty"`
}

// NewNodeInfo describes node as built into g. The interpreter is consulted
// only for nodes that are neither excluded nor unmodeled.
func NewNodeInfo(node *callgraph.Node, g *callgraph.Graph, in interp.ContextInterpreter, excluded bool, nameCache *NameCache) *NodeInfo {
	ni := &NodeInfo{
		ID:         node.ID(),
		Name:       nameCache.ComputeMethodName(node.Method()),
		Context:    node.Context().String(),
		IsExcluded: excluded,
	}
	if tc, ok := node.Context().(callgraph.TypeContext); ok {
		_, known := tc.Type()
		ni.IsUnresolved = !known
	}
	for _, r := range g.Roots() {
		if r == node {
			ni.IsRoot = true
		}
	}
	for _, callee := range g.Successors(node) {
		ni.Callees = append(ni.Callees, callee.ID())
	}

	if excluded {
		return ni
	}
	if !in.Understands(node) {
		ni.IsUnmodeled = true
		return ni
	}

	ni.Statements = in.NumberOfStatements(node)
	for site := range in.NewSites(node) {
		ni.NewSites = append(ni.NewSites, nameCache.ComputeTypeName(site.Type))
	}
	ni.ThrowsOnly = throwsOnly(in.CFG(node))
	return ni
}

// throwsOnly reports whether cfg never reaches its exit normally.
func throwsOnly(cfg *ssa.CFG) bool {
	return len(cfg.NormalExitPredecessors()) == 0 && len(cfg.ExceptionalExitPredecessors()) > 0
}

// ShouldReport determines if this node should be reported: a reflective
// call whose target type the analysis could not determine.
// Returns true if:
// - the node is unresolved, AND
// - the node is analyzed (not excluded)
func (ni *NodeInfo) ShouldReport() bool {
	if ni.IsExcluded {
		return false
	}
	return ni.IsUnresolved
}

// Reason describes why the node is reported, or "" if it is not.
func (ni *NodeInfo) Reason() string {
	switch {
	case !ni.ShouldReport():
		return ""
	case ni.ThrowsOnly:
		return "reflective target unknown; modeled as throwing"
	case ni.IsUnmodeled:
		return "reflective target unknown; no model"
	}
	return "reflective target unknown"
}
