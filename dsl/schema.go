package dsl

import (
	"time"

	"github.com/BaSui01/plangraph/delegate"
)

// PlanDef is the top-level structure of a plan document. The same schema
// is accepted as YAML or JSON.
type PlanDef struct {
	// Version of the plan format; empty means "1"
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	// Name of the workflow
	Name string `yaml:"name" json:"name"`
	// Description of the workflow
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Variables declares run variables with optional defaults
	Variables map[string]VariableDef `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Delegates declares named, wrapped delegates nodes can refer to
	Delegates map[string]DelegateDef `yaml:"delegates,omitempty" json:"delegates,omitempty"`

	// Nodes of the graph, in insertion order
	Nodes []NodeDef `yaml:"nodes" json:"nodes"`

	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// VariableDef declares a run variable.
type VariableDef struct {
	Type        string `yaml:"type,omitempty" json:"type,omitempty"` // string, int, float, bool, list, map
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// DelegateDef wraps a registered delegate with defaults and resilience
// middleware.
type DelegateDef struct {
	// Type names the registered delegate being wrapped
	Type           string                         `yaml:"type" json:"type"`
	Params         map[string]any                 `yaml:"params,omitempty" json:"params,omitempty"`
	Timeout        time.Duration                  `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retry          *delegate.RetryPolicy          `yaml:"retry,omitempty" json:"retry,omitempty"`
	RateLimit      *RateLimitDef                  `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	CircuitBreaker *delegate.CircuitBreakerConfig `yaml:"circuit_breaker,omitempty" json:"circuit_breaker,omitempty"`
}

// RateLimitDef configures a token bucket.
type RateLimitDef struct {
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// Node types accepted in plan documents.
const (
	NodeTask     = "task"
	NodeDecision = "decision"
	NodeLoop     = "loop"
)

// NodeDef declares one node and its outgoing edges.
type NodeDef struct {
	ID          string `yaml:"id" json:"id"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"` // task (default), decision, loop
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Task: delegate name (defaults to the node id) and its parameters.
	// Strings in Params may contain ${var} references.
	Delegate string         `yaml:"delegate,omitempty" json:"delegate,omitempty"`
	Params   map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Next lists successors. Decision branch targets and a loop body are
	// added as successors automatically.
	Next []string `yaml:"next,omitempty" json:"next,omitempty"`

	// Decision and loop condition expression
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
	// Decision: outcome label -> target node
	Branches map[string]string `yaml:"branches,omitempty" json:"branches,omitempty"`

	// Loop: body node (defaults to the first successor) and iteration bound
	Body          string `yaml:"body,omitempty" json:"body,omitempty"`
	MaxIterations int    `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

func (n NodeDef) kind() string {
	if n.Type == "" {
		return NodeTask
	}
	return n.Type
}
