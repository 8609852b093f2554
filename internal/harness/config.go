// Package harness provides test harness infrastructure for validating the
// analyzer against the programs under testdata.
package harness

// Configuration is one way of analyzing a test case's program.
type Configuration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// ContextInsensitive disables the reflection context selector.
	ContextInsensitive bool `yaml:"context_insensitive"`

	// Exclusions names an exclusions file relative to the test case directory.
	Exclusions string `yaml:"exclusions,omitempty"`

	// ExpectedNodes lists nodes that must be in the call graph.
	ExpectedNodes []ExpectedNode `yaml:"expected_nodes"`

	// AbsentNodes lists nodes that must not be in the call graph.
	AbsentNodes []ExpectedNode `yaml:"absent_nodes"`

	// ExpectedUnresolved lists exactly the nodes expected to be reported.
	ExpectedUnresolved []ExpectedNode `yaml:"expected_unresolved"`

	// ExpectedInstantiated, if set, lists exactly the instantiated types.
	ExpectedInstantiated []string `yaml:"expected_instantiated"`

	// ExpectedLoaded, if set, lists exactly the types whose class objects
	// are loaded.
	ExpectedLoaded []string `yaml:"expected_loaded"`

	// ExpectedErrors lists any expected error messages for this configuration.
	ExpectedErrors []string `yaml:"expected_errors"`
}

// ExpectedNode identifies a call-graph node by source name and context.
type ExpectedNode struct {
	// Method is the method's source name, e.g.
	// "java.lang.Class.forName(java.lang.String)".
	Method string `yaml:"method"`

	// Context is the context label, e.g. "Everywhere" or "Type(?)". Empty
	// matches any context.
	Context string `yaml:"context,omitempty"`

	// Reason describes why the node is expected.
	Reason string `yaml:"reason,omitempty"`
}

func (e ExpectedNode) String() string {
	if e.Context == "" {
		return e.Method
	}
	return e.Method + " [" + e.Context + "]"
}
