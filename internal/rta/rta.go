// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style.
// license that can be found in the LICENSE file.

// Package rta builds a context-sensitive call graph by Rapid Type Analysis.
// The algorithm was first described in:
//
// David F. Bacon and Peter F. Sweeney. 1996.
// Fast static analysis of C++ virtual function calls. (OOPSLA '96)
// http://doi.acm.org/10.1145/236337.236371
//
// The algorithm tabulates the cross-product of the set of instantiated types
// with the set of known virtual call sites. As each new type is instantiated,
// its implementations become reachable from each compatible call site, and as
// each new call site is discovered, each instantiated subtype of its
// receiver becomes a dispatch target.
//
// Nodes are (method, context) pairs. A ContextSelector decides the context of
// each callee from the caller's IR, so reflective calls whose arguments the
// caller fixes reach specialized synthetic bodies. Every node's IR comes
// from a ContextInterpreter.
//
// The worklist is processed in rounds. Each round first obtains the IR of
// every node on the frontier in parallel, then visits the nodes serially,
// which keeps the graph and the tables below single-threaded.
package rta

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/exclude"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/interp"
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// Options configures Build.
type Options struct {
	Hierarchy   *hierarchy.Hierarchy
	Interpreter interp.ContextInterpreter
	Selector    interp.ContextSelector
	Exclusions  *exclude.Set

	// Entrypoints are resolved in Hierarchy and analyzed under Everywhere.
	Entrypoints []types.MethodReference

	// Parallelism bounds concurrent IR synthesis. Zero means runtime.NumCPU().
	Parallelism int
}

// A Result holds the call graph and the facts gathered while building it.
type Result struct {
	Graph *callgraph.Graph

	// Instantiated holds every type allocated by a reachable node, sorted.
	Instantiated []types.TypeReference

	// LoadedClasses holds the types whose class objects reachable nodes load.
	LoadedClasses []types.TypeReference

	FieldsRead    []types.FieldReference
	FieldsWritten []types.FieldReference

	// Unresolved holds the nodes analyzed under a type context that carries
	// no type: reflective calls whose target the analysis could not see.
	Unresolved []*callgraph.Node

	// Unmodeled holds the nodes no interpreter understands, such as native
	// methods. They have no outgoing edges.
	Unmodeled []*callgraph.Node

	// Excluded holds the nodes whose declaring class is excluded.
	Excluded []*callgraph.Node

	// MissingTargets holds call targets that resolve to no declaration.
	MissingTargets []types.MethodReference

	// Rounds counts worklist iterations.
	Rounds int
}

// dispatchSite is a virtual or interface call site of a reachable node.
type dispatchSite struct {
	caller *callgraph.Node
	site   types.CallSiteReference
	ir     *ssa.IR
	du     *ssa.DefUse
}

// Working state of the RTA algorithm.
type rta struct {
	opts   Options
	result *Result
	graph  *callgraph.Graph

	worklist []*callgraph.Node

	// dispatchSites contains all dispatching call sites, in discovery order.
	dispatchSites []dispatchSite

	// instantiated is the set of allocated types. Result.Instantiated keeps
	// discovery order until finish sorts it.
	instantiated map[types.TypeReference]bool
	loaded       map[types.TypeReference]bool
	read         map[types.FieldReference]bool
	written      map[types.FieldReference]bool
	missing      map[types.MethodReference]bool
}

// addReachable marks node as reachable and ensures that it gets processed.
func (r *rta) addReachable(method types.MethodReference, ctx callgraph.Context) *callgraph.Node {
	node, created := r.graph.FindOrCreateNode(method, ctx)
	if created {
		r.worklist = append(r.worklist, node)
	}
	return node
}

// addEdge makes callee under ctx reachable from caller at site.
func (r *rta) addEdge(caller *callgraph.Node, site types.CallSiteReference, callee types.MethodReference, ctx callgraph.Context) {
	node := r.addReachable(callee, ctx)
	if r.graph.AddEdge(caller, site, node) {
		slog.Debug("call edge", "caller", caller, "pc", site.PC, "callee", node)
	}
}

func (r *rta) addMissing(m types.MethodReference) {
	if !r.missing[m] {
		r.missing[m] = true
		slog.Debug("unresolved call target", "method", m)
	}
}

// ---------- instantiated types × dispatch sites ----------

// addInvokeEdge is called for each new pair (site, C) in the matrix.
func (r *rta) addInvokeEdge(d dispatchSite, c types.TypeReference) {
	if !r.opts.Hierarchy.IsSubtype(c, d.site.Target.Declaring) {
		return
	}
	m, ok := r.opts.Hierarchy.Dispatch(c, d.site.Target)
	if !ok {
		// Abstract in c or absent: nothing to call on this receiver.
		return
	}
	ctx := r.opts.Selector.Select(m.Ref, d.site, d.ir, d.du)
	r.addEdge(d.caller, d.site, m.Ref, ctx)
}

// visitDispatch is called each time the algorithm encounters a virtual or
// interface call.
func (r *rta) visitDispatch(d dispatchSite) {
	r.dispatchSites = append(r.dispatchSites, d)

	// Add an edge for each instantiated type, in a stable order.
	for _, c := range r.result.Instantiated {
		r.addInvokeEdge(d, c)
	}
}

// addInstantiated records an allocation of c and connects it to every
// known dispatch site.
func (r *rta) addInstantiated(c types.TypeReference) {
	if r.instantiated[c] {
		return
	}
	r.instantiated[c] = true
	r.result.Instantiated = append(r.result.Instantiated, c)
	slog.Debug("instantiated", "type", c)

	for _, d := range r.dispatchSites {
		r.addInvokeEdge(d, c)
	}
}

// ---------- main algorithm ----------

// visitNode processes one reachable node whose IR is ir.
func (r *rta) visitNode(node *callgraph.Node, ir *ssa.IR, du *ssa.DefUse) {
	in := r.opts.Interpreter

	for site := range in.NewSites(node) {
		// A new site naming a loaded class stands for its class object.
		if site.PC >= 0 && site.PC < len(ir.Instructions) {
			if _, ok := ir.Instructions[site.PC].(*ssa.LoadClass); ok {
				r.loaded[site.Type] = true
				r.addInstantiated(types.JavaLangClass)
				continue
			}
		}
		r.addInstantiated(site.Type)
	}

	for site := range in.CallSites(node) {
		if site.Kind.IsDispatch() {
			r.visitDispatch(dispatchSite{caller: node, site: site, ir: ir, du: du})
			continue
		}
		m, ok := r.opts.Hierarchy.Resolve(site.Target)
		if !ok {
			r.addMissing(site.Target)
			continue
		}
		ctx := r.opts.Selector.Select(m.Ref, site, ir, du)
		r.addEdge(node, site, m.Ref, ctx)
	}

	for f := range in.FieldsRead(node) {
		r.read[f] = true
	}
	for f := range in.FieldsWritten(node) {
		r.written[f] = true
	}
}

// synthesized is the IR of one frontier node; ir is nil for nodes that are
// excluded or not understood.
type synthesized struct {
	ir *ssa.IR
	du *ssa.DefUse
}

// synthesize obtains the IR of every frontier node, at most parallelism at
// a time.
func (r *rta) synthesize(ctx context.Context, frontier []*callgraph.Node) ([]synthesized, error) {
	out := make([]synthesized, len(frontier))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for i, node := range frontier {
		if r.isExcluded(node) || !r.opts.Interpreter.Understands(node) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = synthesized{
				ir: r.opts.Interpreter.IR(node),
				du: r.opts.Interpreter.DefUse(node),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rta) isExcluded(node *callgraph.Node) bool {
	excluded, _ := r.opts.Exclusions.IsExcluded(node.Method().Declaring)
	return excluded
}

// Build runs the analysis from opts.Entrypoints to a fixed point.
//
// It returns an error if an entrypoint cannot be resolved or ctx is
// cancelled.
func Build(ctx context.Context, opts Options) (*Result, error) {
	if opts.Hierarchy == nil || opts.Interpreter == nil {
		return nil, fmt.Errorf("build call graph: hierarchy and interpreter are required")
	}
	if opts.Selector == nil {
		opts.Selector = interp.EverywhereSelector{}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}

	r := &rta{
		opts:         opts,
		graph:        callgraph.NewGraph(),
		instantiated: make(map[types.TypeReference]bool),
		loaded:       make(map[types.TypeReference]bool),
		read:         make(map[types.FieldReference]bool),
		written:      make(map[types.FieldReference]bool),
		missing:      make(map[types.MethodReference]bool),
	}
	r.result = &Result{Graph: r.graph}

	for _, ep := range opts.Entrypoints {
		m, ok := opts.Hierarchy.Resolve(ep)
		if !ok {
			return nil, fmt.Errorf("resolve entrypoint %s: not found", ep)
		}
		r.graph.AddRoot(r.addReachable(m.Ref, callgraph.Everywhere))
	}

	// Visit nodes, processing their IR and adding new nodes to the worklist,
	// until a fixed point is reached. The worklist is double-buffered.
	var shadow []*callgraph.Node
	for len(r.worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build call graph: %w", err)
		}
		shadow, r.worklist = r.worklist, shadow[:0]
		r.result.Rounds++
		slog.Debug("rta round", "round", r.result.Rounds, "frontier", len(shadow))

		irs, err := r.synthesize(ctx, shadow)
		if err != nil {
			return nil, fmt.Errorf("build call graph: %w", err)
		}
		for i, node := range shadow {
			switch {
			case r.isExcluded(node):
				r.result.Excluded = append(r.result.Excluded, node)
			case irs[i].ir == nil:
				r.result.Unmodeled = append(r.result.Unmodeled, node)
			default:
				r.visitNode(node, irs[i].ir, irs[i].du)
			}
		}
	}

	r.finish()
	slog.Debug("call graph built",
		"nodes", r.graph.NumberOfNodes(),
		"edges", r.graph.NumberOfEdges(),
		"rounds", r.result.Rounds,
		"instantiated", len(r.result.Instantiated))
	return r.result, nil
}

// finish sorts the result and collects unresolved nodes.
func (r *rta) finish() {
	byName := func(a, b types.TypeReference) int { return strings.Compare(a.Name(), b.Name()) }
	byID := func(a, b *callgraph.Node) int { return cmp.Compare(a.ID(), b.ID()) }
	byField := func(a, b types.FieldReference) int { return strings.Compare(a.String(), b.String()) }

	slices.SortFunc(r.result.Instantiated, byName)
	r.result.LoadedClasses = slices.SortedFunc(maps.Keys(r.loaded), byName)
	r.result.FieldsRead = slices.SortedFunc(maps.Keys(r.read), byField)
	r.result.FieldsWritten = slices.SortedFunc(maps.Keys(r.written), byField)
	r.result.MissingTargets = slices.SortedFunc(maps.Keys(r.missing), func(a, b types.MethodReference) int {
		return strings.Compare(a.String(), b.String())
	})

	for _, n := range r.graph.Nodes() {
		if tc, ok := n.Context().(callgraph.TypeContext); ok {
			if _, known := tc.Type(); !known {
				r.result.Unresolved = append(r.result.Unresolved, n)
			}
		}
	}
	slices.SortFunc(r.result.Unresolved, byID)
	slices.SortFunc(r.result.Unmodeled, byID)
	slices.SortFunc(r.result.Excluded, byID)
}
