package reflectcg

import (
	"context"
	"fmt"
	"log/slog"
	goruntime "runtime"

	"golang.org/x/sync/errgroup"

	"github.com/715d/reflectcg/internal/analysis"
	"github.com/715d/reflectcg/internal/rta"
	"github.com/715d/reflectcg/pkg/exclude"
	"github.com/715d/reflectcg/pkg/reflection"
	"github.com/715d/reflectcg/pkg/types"
)

// AnalyzerOptions holds configuration options for the analyzer.
type AnalyzerOptions struct {
	// Parallelism bounds concurrent IR synthesis. Zero means runtime.NumCPU().
	Parallelism int

	// Exclusions are applied in addition to the program's own.
	Exclusions *exclude.Set

	// ContextInsensitive analyzes every method under Everywhere, which leaves
	// reflective calls unmodeled.
	ContextInsensitive bool
}

// Analyzer orchestrates call-graph construction and reporting.
type Analyzer struct {
	nameCache *analysis.NameCache
	opts      AnalyzerOptions
}

// NewAnalyzer creates a new analyzer with the given options.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	if opts.Parallelism <= 0 {
		opts.Parallelism = goruntime.NumCPU()
	}
	return &Analyzer{
		nameCache: analysis.NewNameCache(),
		opts:      opts,
	}
}

// Analyze builds the call graph of prog and describes every node in it.
func (a *Analyzer) Analyze(ctx context.Context, prog *Program) (*Report, error) {
	if prog == nil || prog.Hierarchy == nil {
		return nil, fmt.Errorf("no program provided")
	}

	exclusions := prog.Exclusions.Merge(a.opts.Exclusions)
	dispatcher := reflection.NewDispatcher(prog.Hierarchy)
	opts := rta.Options{
		Hierarchy:   prog.Hierarchy,
		Interpreter: dispatcher,
		Exclusions:  exclusions,
		Entrypoints: prog.Entrypoints,
		Parallelism: a.opts.Parallelism,
	}
	if !a.opts.ContextInsensitive {
		opts.Selector = reflection.NewContextSelector(prog.Hierarchy)
	}

	res, err := rta.Build(ctx, opts)
	if err != nil {
		return nil, err
	}

	nodes := res.Graph.Nodes()
	// Each goroutine writes only its own index.
	infos := make([]*analysis.NodeInfo, len(nodes))
	var wg errgroup.Group
	wg.SetLimit(a.opts.Parallelism)
	for idx, node := range nodes {
		wg.Go(func() error {
			excluded, _ := exclusions.IsExcluded(node.Method().Declaring)
			infos[idx] = analysis.NewNodeInfo(node, res.Graph, dispatcher, excluded, a.nameCache)
			return nil
		})
	}
	_ = wg.Wait()

	report := &Report{
		Nodes:          infos,
		Instantiated:   a.typeNames(res.Instantiated),
		LoadedClasses:  a.typeNames(res.LoadedClasses),
		FieldsRead:     stringsOf(res.FieldsRead),
		FieldsWritten:  stringsOf(res.FieldsWritten),
		MissingTargets: stringsOf(res.MissingTargets),
		Graph:          res.Graph,
	}
	for _, ni := range infos {
		if ni.ShouldReport() {
			report.Unresolved = append(report.Unresolved, ni)
		}
	}
	report.Stats = Stats{
		Nodes:        res.Graph.NumberOfNodes(),
		Edges:        res.Graph.NumberOfEdges(),
		Recursive:    len(res.Graph.StronglyConnected()),
		Instantiated: len(res.Instantiated),
		Unresolved:   len(report.Unresolved),
		Unmodeled:    len(res.Unmodeled),
		Excluded:     len(res.Excluded),
		Rounds:       res.Rounds,
		Syntheses:    int(dispatcher.Syntheses()),
	}
	slog.Debug("analysis complete",
		"nodes", report.Stats.Nodes,
		"unresolved", report.Stats.Unresolved,
		"syntheses", report.Stats.Syntheses)
	return report, nil
}

func (a *Analyzer) typeNames(ts []types.TypeReference) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = a.nameCache.ComputeTypeName(t)
	}
	return out
}

func stringsOf[T fmt.Stringer](xs []T) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}
