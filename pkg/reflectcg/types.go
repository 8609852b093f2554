package reflectcg

import (
	"github.com/715d/reflectcg/internal/analysis"
	"github.com/715d/reflectcg/pkg/callgraph"
)

// Report is the outcome of analyzing a program.
type Report struct {
	// Nodes describes every call-graph node, in creation order.
	Nodes []*analysis.NodeInfo `json:"nodes"`

	// Unresolved lists the nodes to report: reflective calls whose target
	// type could not be determined.
	Unresolved []*analysis.NodeInfo `json:"unresolved"`

	Instantiated   []string `json:"instantiated"`
	LoadedClasses  []string `json:"loaded_classes"`
	FieldsRead     []string `json:"fields_read,omitempty"`
	FieldsWritten  []string `json:"fields_written,omitempty"`
	MissingTargets []string `json:"missing_targets,omitempty"`

	Stats Stats `json:"stats"`

	// Graph is the call graph itself.
	Graph *callgraph.Graph `json:"-"`
}

// Stats summarizes a Report.
type Stats struct {
	Nodes        int `json:"nodes"`
	Edges        int `json:"edges"`
	Recursive    int `json:"recursive_components"`
	Instantiated int `json:"instantiated"`
	Unresolved   int `json:"unresolved"`
	Unmodeled    int `json:"unmodeled"`
	Excluded     int `json:"excluded"`
	Rounds       int `json:"rounds"`
	Syntheses    int `json:"syntheses"`
}
