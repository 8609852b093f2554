// Package main implements the CLI driver for the reflectcg call-graph builder.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/715d/reflectcg/pkg/exclude"
	"github.com/715d/reflectcg/pkg/reflectcg"
)

// Config holds all command-line configuration options for reflectcg.
type Config struct {
	Program            string // the program description to analyze
	Verbose            bool   // enables detailed output and statistics
	JSON               bool   // enables JSON output format
	DOT                bool   // writes the call graph in Graphviz format
	Exclusions         string // file of extra exclusion patterns
	Parallelism        int    // bound on concurrent IR synthesis
	ContextInsensitive bool   // analyze every method under Everywhere
	FailOnUnresolved   bool   // exit non-zero if a reflective target is unknown
	Profile            bool   // enables CPU and memory profiling
}

const (
	exitUnresolvedFound = 1
	exitError           = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	var rootCmd = &cobra.Command{
		Use:   "reflectcg program.yaml",
		Short: "Build reflection-aware call graphs",
		Long: `reflectcg builds the call graph of a program described in YAML.

Calls to Class.forName, Object.getClass and Class.newInstance are analyzed
in the context of the type their caller fixes, so classes loaded by a
constant name are allocated and dispatched to like ordinary ones.

It reports:
- Reflective calls whose target type could not be determined
- With --verbose: every call-graph node, its context and callees`,
		Example: `  reflectcg program.yaml                      # Report unresolved reflection
  reflectcg -v program.yaml                   # List every node
  reflectcg --json program.yaml > report.json # JSON output to file
  reflectcg --dot program.yaml | dot -Tsvg    # Render the call graph`,
		Args:               cobra.ExactArgs(1),
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	// Set custom version template to include build info.
	rootCmd.SetVersionTemplate(fmt.Sprintf("reflectcg version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	// Define flags.
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&cfg.DOT, "dot", false, "Output the call graph in Graphviz DOT format")
	rootCmd.PersistentFlags().StringVar(&cfg.Exclusions, "exclusions", "", "File of class patterns to leave unanalyzed, in addition to the program's own")
	rootCmd.PersistentFlags().IntVar(&cfg.Parallelism, "parallelism", 0, "Maximum concurrent IR syntheses (0 means one per CPU)")
	rootCmd.PersistentFlags().BoolVar(&cfg.ContextInsensitive, "context-insensitive", false, "Analyze every method once, leaving reflection unmodeled")
	rootCmd.PersistentFlags().BoolVar(&cfg.FailOnUnresolved, "fail-on-unresolved", false, "Exit with status 1 if a reflective target is unknown")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")
	rootCmd.MarkFlagsMutuallyExclusive("json", "dot")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg.Program = args[0]
	slog.Info("starting call graph construction", "program", cfg.Program)

	result, err := runAnalysis(cmd.Context(), &cfg)
	if err != nil {
		return errWithCode(fmt.Errorf("analyze: %w", err), exitError)
	}

	if err := writeResults(os.Stdout, result, &cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if cfg.FailOnUnresolved && len(result.Report.Unresolved) > 0 {
		return errWithCode(nil, exitUnresolvedFound)
	}
	return nil
}

// Result is a report together with how long it took to produce.
type Result struct {
	Report   *reflectcg.Report
	Duration time.Duration
}

func runAnalysis(ctx context.Context, cfg *Config) (*Result, error) {
	start := time.Now()

	prog, err := reflectcg.LoadProgram(cfg.Program)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded program", "classes", prog.Hierarchy.Size(), "entrypoints", len(prog.Entrypoints))

	var exclusions *exclude.Set
	if cfg.Exclusions != "" {
		if exclusions, err = exclude.Load(cfg.Exclusions); err != nil {
			return nil, err
		}
		slog.Info("using exclusions", "file", cfg.Exclusions, "patterns", exclusions.Len())
	}

	if ctx == nil {
		ctx = context.Background()
	}
	analyzer := reflectcg.NewAnalyzer(reflectcg.AnalyzerOptions{
		Parallelism:        cfg.Parallelism,
		Exclusions:         exclusions,
		ContextInsensitive: cfg.ContextInsensitive,
	})
	report, err := analyzer.Analyze(ctx, prog)
	if err != nil {
		return nil, fmt.Errorf("build call graph: %w", err)
	}
	duration := time.Since(start)
	slog.Info("analysis completed", "dur", duration)

	return &Result{Report: report, Duration: duration}, nil
}

func writeResults(w io.Writer, result *Result, cfg *Config) error {
	var output string
	var err error

	switch {
	case cfg.JSON:
		output, err = formatJSONOutput(result)
	case cfg.DOT:
		output, err = formatDOTOutput(result)
	default:
		output = formatTextOutput(result, cfg)
	}

	if err != nil {
		return err
	}

	_, err = io.WriteString(w, output)
	return err
}

func formatJSONOutput(result *Result) (string, error) {
	data, err := json.MarshalIndent(jOutput{
		Report:    result.Report,
		Duration:  result.Duration.String(),
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data) + "\n", nil
}

func formatDOTOutput(result *Result) (string, error) {
	data, err := result.Report.Graph.DOT("callgraph")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func formatTextOutput(result *Result, cfg *Config) string {
	var output strings.Builder
	report := result.Report

	if cfg.Verbose {
		slog.Info("",
			"nodes", report.Stats.Nodes,
			"edges", report.Stats.Edges,
			"recursive_components", report.Stats.Recursive,
			"instantiated", report.Stats.Instantiated,
			"unresolved", report.Stats.Unresolved,
			"syntheses", report.Stats.Syntheses,
			"rounds", report.Stats.Rounds,
			"analysis_duration", result.Duration.String())

		output.WriteString(bold("call graph") + "\n")
		for _, ni := range report.Nodes {
			// Format: id name [context] (statements) -> callees
			fmt.Fprintf(&output, "  %d %s [%s]", ni.ID, ni.Name, ni.Context)
			switch {
			case ni.IsExcluded:
				output.WriteString(faint(" excluded"))
			case ni.IsUnmodeled:
				output.WriteString(faint(" unmodeled"))
			default:
				fmt.Fprintf(&output, " (%d)", ni.Statements)
			}
			if len(ni.Callees) > 0 {
				fmt.Fprintf(&output, " -> %v", ni.Callees)
			}
			output.WriteByte('\n')
		}
		if len(report.LoadedClasses) > 0 {
			fmt.Fprintf(&output, "%s %s\n", bold("loaded classes:"), strings.Join(report.LoadedClasses, ", "))
		}
		for _, m := range report.MissingTargets {
			fmt.Fprintf(&output, "%s %s\n", yellow("missing target:"), m)
		}
	}

	if len(report.Unresolved) == 0 {
		slog.Info("no unresolved reflection found")
		return output.String()
	}

	for _, ni := range report.Unresolved {
		if !cfg.Verbose {
			// Compact format for non-verbose mode.
			fmt.Fprintf(&output, "%s %s\n", red("unresolved"), ni.Name)
		} else {
			fmt.Fprintf(&output, "%s %s (%s)\n", red("unresolved"), ni.Name, ni.Reason())
		}
	}
	return output.String()
}

type jOutput struct {
	Report    *reflectcg.Report `json:"report"`
	Duration  string            `json:"analysis_duration"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	cpuProfile = nil
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e codedError) Unwrap() error { return e.err }
