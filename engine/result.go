package engine

import (
	"time"

	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/history"
)

// Status is the final status of a run.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusBudgetExceeded Status = "budget_exceeded"
	StatusTimeout        Status = "timeout"
	StatusCanceled       Status = "canceled"
	StatusStalled        Status = "stalled"
)

// Result is the outcome of a run.
type Result struct {
	RunID       string           `json:"run_id"`
	Workflow    string           `json:"workflow,omitempty"`
	Status      Status           `json:"status"`
	Steps       int              `json:"steps"`
	Variables   map[string]any   `json:"variables"`
	Outputs     map[string]any   `json:"outputs"`
	FailedNodes []string         `json:"failed_nodes,omitempty"`
	Error       string           `json:"error,omitempty"`
	Nodes       []graph.NodeInfo `json:"nodes"`
	Progress    float64          `json:"progress"`
	Duration    time.Duration    `json:"duration"`

	// History holds the node-level execution records of the run.
	History *history.Run `json:"-"`

	err error
}

// Err returns the error that ended the run, or nil when it completed. A
// failed run returns a *NodeFailedError.
func (r *Result) Err() error {
	return r.err
}

// Succeeded reports whether the run completed.
func (r *Result) Succeeded() bool {
	return r.Status == StatusCompleted
}

// Output returns the result recorded by a completed node.
func (r *Result) Output(nodeID string) (any, bool) {
	v, ok := r.Outputs[nodeID]
	return v, ok
}
