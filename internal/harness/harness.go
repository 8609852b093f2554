package harness

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcg/internal/analysis"
	"github.com/715d/reflectcg/pkg/reflectcg"
)

// TestCase represents a single test scenario.
type TestCase struct {
	// Dir is the directory containing program.yaml.
	Dir string `yaml:"-"`

	// Configurations defines the ways the program is analyzed.
	Configurations []Configuration `yaml:"configurations"`
}

// TestHarness manages test execution.
type TestHarness struct {
	// root is the root directory for test data
	root string
}

// NewHarness creates a new test harness.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// Run executes a test case with all its configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	require.NotEmpty(t, tc.Configurations, "test case has no configurations")

	var results []ConfigurationResult
	var allSuccess = true

	// Run each configuration.
	for _, cfg := range tc.Configurations {
		cfgResult := h.runConfiguration(t, tc, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	// Create overall result message.
	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(tc.Configurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(tc.Configurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration executes analysis for a single configuration
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, cfg Configuration) *ConfigurationResult {
	t.Helper()
	dir := filepath.Join(h.root, tc.Dir)

	report, err := h.analyze(t, dir, cfg)
	if err != nil {
		// Check if this error was expected.
		for _, expectedErr := range cfg.ExpectedErrors {
			if strings.Contains(err.Error(), expectedErr) {
				return &ConfigurationResult{
					Configuration: cfg,
					Success:       true,
					Message:       fmt.Sprintf("Got expected error: %v", err),
				}
			}
		}
		require.NoError(t, err)
	}
	if len(cfg.ExpectedErrors) > 0 {
		return &ConfigurationResult{
			Configuration: cfg,
			Report:        report,
			Message:       "Expected an error",
			Details:       cfg.ExpectedErrors,
		}
	}
	return h.validateConfigurationResults(cfg, report)
}

func (h *TestHarness) analyze(t *testing.T, dir string, cfg Configuration) (*reflectcg.Report, error) {
	t.Helper()
	prog, err := LoadProgram(dir)
	if err != nil {
		return nil, err
	}
	analyzer := reflectcg.NewAnalyzer(reflectcg.AnalyzerOptions{
		Exclusions:         LoadExclusions(t, dir, cfg.Exclusions),
		ContextInsensitive: cfg.ContextInsensitive,
	})
	return analyzer.Analyze(t.Context(), prog)
}

// validateConfigurationResults compares actual results with expected for a specific configuration
func (h *TestHarness) validateConfigurationResults(cfg Configuration, report *reflectcg.Report) *ConfigurationResult {
	cfgResult := ConfigurationResult{
		Configuration: cfg,
		Report:        report,
	}

	// First validate the configuration has valid expected nodes.
	for _, list := range [][]ExpectedNode{cfg.ExpectedNodes, cfg.AbsentNodes, cfg.ExpectedUnresolved} {
		if err := validateExpectedNodes(list); err != nil {
			cfgResult.Success = false
			cfgResult.Message = fmt.Sprintf("Invalid expected.yaml: %v", err)
			cfgResult.Details = []string{err.Error()}
			return &cfgResult
		}
	}

	validateResults(&cfgResult, cfg, report)
	return &cfgResult
}

// ConfigurationResult represents the result of running a single configuration.
type ConfigurationResult struct {
	// Configuration is the configuration that was run.
	Configuration Configuration

	// Report is the raw result from the analyzer.
	Report *reflectcg.Report

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Skipped indicates if the test was skipped.
	Skipped bool

	// Message provides a summary of the result.
	Message string
}

// validateExpectedNodes validates that expected nodes have required fields
func validateExpectedNodes(expected []ExpectedNode) error {
	for i, exp := range expected {
		if strings.TrimSpace(exp.Method) == "" {
			return fmt.Errorf("expected node at index %d has empty or missing 'method' field", i)
		}
	}
	return nil
}

func matches(exp ExpectedNode, ni *analysis.NodeInfo) bool {
	return exp.Method == ni.Name && (exp.Context == "" || exp.Context == ni.Context)
}

func findNode(exp ExpectedNode, nodes []*analysis.NodeInfo) bool {
	for _, ni := range nodes {
		if matches(exp, ni) {
			return true
		}
	}
	return false
}

func validateResults(cfgResult *ConfigurationResult, cfg Configuration, report *reflectcg.Report) {
	var details []string

	for _, exp := range cfg.ExpectedNodes {
		if !findNode(exp, report.Nodes) {
			details = append(details, "Should have been reachable: "+exp.String())
		}
	}
	for _, exp := range cfg.AbsentNodes {
		if findNode(exp, report.Nodes) {
			details = append(details, "Should not have been reachable: "+exp.String())
		}
	}

	// Check for missing expected unresolved nodes.
	var missing []string
	for _, exp := range cfg.ExpectedUnresolved {
		if !findNode(exp, report.Unresolved) {
			missing = append(missing, fmt.Sprintf("%s (%s)", exp, exp.Reason))
		}
	}

	// Check for unexpected unresolved nodes.
	var unexpected []string
	for _, ni := range report.Unresolved {
		found := false
		for _, exp := range cfg.ExpectedUnresolved {
			found = found || matches(exp, ni)
		}
		if !found {
			unexpected = append(unexpected, fmt.Sprintf("%s [%s]", ni.Name, ni.Context))
		}
	}

	// Sort for consistent output.
	sort.Strings(missing)
	sort.Strings(unexpected)
	for _, m := range missing {
		details = append(details, "Should have been reported unresolved: "+m)
	}
	for _, u := range unexpected {
		details = append(details, "Should have been resolved: "+u)
	}

	if cfg.ExpectedInstantiated != nil && !slices.Equal(cfg.ExpectedInstantiated, report.Instantiated) {
		details = append(details, fmt.Sprintf("Instantiated mismatch: expected %v, got %v",
			cfg.ExpectedInstantiated, report.Instantiated))
	}
	if cfg.ExpectedLoaded != nil && !slices.Equal(cfg.ExpectedLoaded, report.LoadedClasses) {
		details = append(details, fmt.Sprintf("Loaded classes mismatch: expected %v, got %v",
			cfg.ExpectedLoaded, report.LoadedClasses))
	}

	success := len(details) == 0
	var message string
	if success {
		message = fmt.Sprintf("All %d expected unresolved nodes found", len(cfg.ExpectedUnresolved))
	} else {
		message = fmt.Sprintf("Test failed: %d missing, %d unexpected, %d other", len(missing), len(unexpected),
			len(details)-len(missing)-len(unexpected))
	}

	cfgResult.Success = success
	cfgResult.Message = message
	cfgResult.Details = details
}
