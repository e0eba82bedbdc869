package cpm

import (
	"errors"
	"fmt"
)

// ErrSchedulingFailed marks a structural defect in the inferred graph.
// Callers should fall back to an unscheduled due-date list.
var ErrSchedulingFailed = errors.New("scheduling computation failed")

// StructuralError describes why a solve was rejected.
type StructuralError struct {
	Reason string
	Nodes  []int // arena indices involved, when known
}

func (e *StructuralError) Error() string {
	if len(e.Nodes) > 0 {
		return fmt.Sprintf("%s: %s %v", ErrSchedulingFailed, e.Reason, e.Nodes)
	}
	return fmt.Sprintf("%s: %s", ErrSchedulingFailed, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return ErrSchedulingFailed
}

// Result holds the project-level outcome of a solve. Per-node timing is
// written into the graph's nodes.
type Result struct {
	ProjectEnd   int    `json:"project_end"`
	CriticalPath []int  `json:"critical_path"` // critical nodes in topological order
	Waves        []Wave `json:"waves"`
	TopoOrder    []int  `json:"topo_order"`
}

// Wave groups nodes that share the same earliest start.
type Wave struct {
	Index      int   `json:"index"`
	ES         int   `json:"es"`
	Nodes      []int `json:"nodes"`
	IsCritical bool  `json:"is_critical"` // true if wave contains critical nodes
}
