package graph

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a node.
type State int32

const (
	// StatePending waits for its predecessors
	StatePending State = iota
	// StateReady has all dependencies satisfied and may be dispatched
	StateReady
	// StateRunning is being executed by the driver loop
	StateRunning
	// StateCompleted finished successfully
	StateCompleted
	// StateFailed finished with an error
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is Completed or Failed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// NodeType identifies the payload carried by a node.
type NodeType string

const (
	// NodeTypeTask dispatches work to a delegate
	NodeTypeTask NodeType = "task"
	// NodeTypeDecision selects exactly one successor
	NodeTypeDecision NodeType = "decision"
	// NodeTypeLoop repeats a body node
	NodeTypeLoop NodeType = "loop"
)

// Kind is the type-specific payload of a node. It is implemented only by
// Task, Decision and Loop.
type Kind interface {
	Type() NodeType
	isKind()
}

// Task runs a delegate. An empty Delegate means the node ID is used as the
// delegate name.
type Task struct {
	Delegate string
}

// Decision evaluates Condition and follows the branch whose label matches
// the outcome. Branches maps outcome label to successor node ID.
type Decision struct {
	Condition string
	Branches  map[string]string
}

// DefaultBranch is the branch label used when no other label matches.
const DefaultBranch = "default"

// Loop repeats Body until MaxIterations is reached or Condition evaluates
// false. An empty Body resolves to the first successor.
type Loop struct {
	Body          string
	Condition     string
	MaxIterations int
}

func (Task) Type() NodeType     { return NodeTypeTask }
func (Decision) Type() NodeType { return NodeTypeDecision }
func (Loop) Type() NodeType     { return NodeTypeLoop }

func (Task) isKind()     {}
func (Decision) isKind() {}
func (Loop) isKind()     {}

// Node is a single unit of work in a Graph.
type Node struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Metadata    map[string]any

	// arena bookkeeping, set by Graph.AddNode
	index int
	preds []int
	succs []int

	state     atomic.Int32
	iteration atomic.Int32
	skipped   atomic.Bool
	done      atomic.Bool
	held      atomic.Bool
	selected  atomic.Int32 // successor handle chosen by a decision, -1 if none

	mu     sync.Mutex
	result any
	errMsg string
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithName sets the human-readable name.
func WithName(name string) NodeOption {
	return func(n *Node) { n.Name = name }
}

// WithDescription sets the description.
func WithDescription(desc string) NodeOption {
	return func(n *Node) { n.Description = desc }
}

// WithMetadata sets a metadata value. Task metadata is passed to the
// delegate as parameters.
func WithMetadata(key string, value any) NodeOption {
	return func(n *Node) { n.Metadata[key] = value }
}

// NewNode creates a node with the given payload.
func NewNode(id string, kind Kind, opts ...NodeOption) *Node {
	n := &Node{
		ID:       id,
		Name:     id,
		Kind:     kind,
		Metadata: make(map[string]any),
		index:    -1,
	}
	n.selected.Store(-1)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewTask creates a task node dispatched to the named delegate.
func NewTask(id, delegate string, opts ...NodeOption) *Node {
	return NewNode(id, Task{Delegate: delegate}, opts...)
}

// NewDecision creates a decision node.
func NewDecision(id, condition string, branches map[string]string, opts ...NodeOption) *Node {
	return NewNode(id, Decision{Condition: condition, Branches: branches}, opts...)
}

// NewLoop creates a loop node.
func NewLoop(id string, loop Loop, opts ...NodeOption) *Node {
	return NewNode(id, loop, opts...)
}

// Type returns the node type, or "" if the node has no payload.
func (n *Node) Type() NodeType {
	if n.Kind == nil {
		return ""
	}
	return n.Kind.Type()
}

// State returns the current state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Iteration returns the number of completed iterations of a loop node.
func (n *Node) Iteration() int {
	return int(n.iteration.Load())
}

// Skipped reports whether the node was pruned because no active path
// reaches it (an unselected decision branch, or a loop body that never ran).
func (n *Node) Skipped() bool {
	return n.skipped.Load()
}

// Result returns the value recorded by the last successful completion.
func (n *Node) Result() any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// ErrorMessage returns the failure reason recorded by the last failure.
func (n *Node) ErrorMessage() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errMsg
}

// transition moves the node from one state to another atomically.
func (n *Node) transition(from, to State) bool {
	return n.state.CompareAndSwap(int32(from), int32(to))
}

// finish moves a running node to a terminal state. The outcome is written
// under n.mu in the same critical section as the transition, so only the
// caller that wins records anything. A decision's selection is stored before
// the node becomes visible as Completed; pass -1 for other nodes.
func (n *Node) finish(to State, result any, errMsg string, selected int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.State() != StateRunning {
		return false
	}
	n.result, n.errMsg = result, errMsg
	if selected >= 0 {
		n.selected.Store(int32(selected))
	}
	return n.transition(StateRunning, to)
}

// clear returns the node to a fresh Pending state.
func (n *Node) clear() {
	n.held.Store(false)
	n.done.Store(false)
	n.reset()
}

// rearm prepares a loop body for its next iteration. The hold is taken
// before the state changes so the body is never Pending and unheld.
func (n *Node) rearm() {
	n.held.Store(true)
	n.reset()
}

func (n *Node) reset() {
	n.state.Store(int32(StatePending))
	n.iteration.Store(0)
	n.skipped.Store(false)
	n.selected.Store(-1)
	n.mu.Lock()
	n.result = nil
	n.errMsg = ""
	n.mu.Unlock()
}
