package history

import (
	"encoding/json"
	"sync"
	"time"
)

// Status is the status of a run or of a single node execution.
type Status string

const (
	StatusRunning        Status = "running"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusSkipped        Status = "skipped"
	StatusBudgetExceeded Status = "budget_exceeded"
	StatusTimeout        Status = "timeout"
	StatusCanceled       Status = "canceled"
	StatusStalled        Status = "stalled"
)

// IsTerminal reports whether a run with this status has finished.
func (s Status) IsTerminal() bool {
	return s != StatusRunning && s != ""
}

// NodeExecution records one dispatch of a node.
type NodeExecution struct {
	NodeID    string        `json:"node_id"`
	NodeType  string        `json:"node_type"`
	Iteration int           `json:"iteration,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Run is the execution history of one graph run.
type Run struct {
	RunID     string           `json:"run_id"`
	Workflow  string           `json:"workflow"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Status    Status           `json:"status"`
	Steps     int              `json:"steps"`
	Nodes     []*NodeExecution `json:"nodes"`
	Error     string           `json:"error,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`

	mu  sync.RWMutex
	now func() time.Time
}

// NewRun starts a history for the given run.
func NewRun(runID, workflow string) *Run {
	r := &Run{
		RunID:    runID,
		Workflow: workflow,
		Status:   StatusRunning,
		Nodes:    make([]*NodeExecution, 0),
		Metadata: make(map[string]any),
		now:      time.Now,
	}
	r.StartTime = r.now()
	return r
}

// RecordNodeStart appends a running record for a node dispatch.
func (r *Run) RecordNodeStart(nodeID, nodeType string, iteration int) *NodeExecution {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := &NodeExecution{
		NodeID:    nodeID,
		NodeType:  nodeType,
		Iteration: iteration,
		StartTime: r.clock(),
		Status:    StatusRunning,
	}
	r.Nodes = append(r.Nodes, node)
	return node
}

// RecordNodeEnd closes a node record.
func (r *Run) RecordNodeEnd(node *NodeExecution, output any, err error) {
	if node == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	node.EndTime = r.clock()
	node.Duration = node.EndTime.Sub(node.StartTime)
	if err != nil {
		node.Status = StatusFailed
		node.Error = err.Error()
		return
	}
	node.Status = StatusCompleted
	node.Output = output
}

// RecordSkipped appends a record for a node that was pruned without running.
func (r *Run) RecordSkipped(nodeID, nodeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.clock()
	r.Nodes = append(r.Nodes, &NodeExecution{
		NodeID:    nodeID,
		NodeType:  nodeType,
		StartTime: at,
		EndTime:   at,
		Status:    StatusSkipped,
	})
}

// Complete marks the run finished with the given status.
func (r *Run) Complete(status Status, steps int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.EndTime = r.clock()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Status = status
	r.Steps = steps
	if err != nil {
		r.Error = err.Error()
	}
}

// GetNodes returns a copy of the node records.
func (r *Run) GetNodes() []*NodeExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]*NodeExecution, len(r.Nodes))
	copy(nodes, r.Nodes)
	return nodes
}

// NodeRecords returns every record of a node, one per dispatch.
func (r *Run) NodeRecords(nodeID string) []*NodeExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*NodeExecution
	for _, node := range r.Nodes {
		if node.NodeID == nodeID {
			out = append(out, node)
		}
	}
	return out
}

func (r *Run) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

type runAlias Run

// MarshalJSON encodes the run under its read lock.
func (r *Run) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal((*runAlias)(r))
}
