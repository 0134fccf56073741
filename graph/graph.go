package graph

import (
	"sync"
	"sync/atomic"
)

// Graph owns a set of nodes stored in an arena and the directed edges
// between them. Nodes are addressed internally by their dense arena index;
// adjacency is kept on both endpoints.
//
// Structure (AddNode/AddEdge) must be built before execution starts. State
// transitions are lock-free per node and safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes []*Node
	index map[string]int

	doneCount atomic.Int64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
	}
}

// AddNode registers a node. The node must not belong to another graph.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return ErrInvalidNode
	}
	if n.Kind == nil {
		return invalidNode(n.ID, "node has no kind")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.index[n.ID]; exists {
		return duplicate(n.ID)
	}
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.index = len(g.nodes)
	n.clear()
	g.nodes = append(g.nodes, n)
	g.index[n.ID] = n.index
	return nil
}

// AddEdge records that target depends on source. Both nodes must already be
// registered. Adding an existing edge again is a no-op.
func (g *Graph) AddEdge(sourceID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	src, ok := g.index[sourceID]
	if !ok {
		return notFound(sourceID)
	}
	dst, ok := g.index[targetID]
	if !ok {
		return notFound(targetID)
	}

	from := g.nodes[src]
	for _, h := range from.succs {
		if h == dst {
			return nil
		}
	}
	from.succs = append(from.succs, dst)
	g.nodes[dst].preds = append(g.nodes[dst].preds, src)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[h], true
}

// Handle returns the arena index of a node.
func (g *Graph) Handle(id string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.index[id]
	return h, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Predecessors returns the ids of the nodes the given node depends on.
func (g *Graph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.nodes[h].preds)
}

// Successors returns the ids of the nodes that depend on the given node.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.nodes[h].succs)
}

func (g *Graph) ids(handles []int) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = g.nodes[h].ID
	}
	return out
}

// InitialNodes returns all nodes without predecessors.
func (g *Graph) InitialNodes() []*Node {
	return g.filter(func(n *Node) bool { return len(n.preds) == 0 })
}

// TerminalNodes returns all nodes without successors.
func (g *Graph) TerminalNodes() []*Node {
	return g.filter(func(n *Node) bool { return len(n.succs) == 0 })
}

// ReadyNodes returns all nodes in the Ready state, in insertion order.
// Loop bodies being driven by their loop are excluded.
func (g *Graph) ReadyNodes() []*Node {
	return g.filter(func(n *Node) bool {
		return n.State() == StateReady && !n.held.Load()
	})
}

func (g *Graph) filter(keep func(*Node) bool) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, n := range g.nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// AllPredecessorsCompleted reports whether every predecessor of the node is
// Completed. It returns false for unknown ids.
func (g *Graph) AllPredecessorsCompleted(id string) bool {
	n, ok := g.Node(id)
	if !ok {
		return false
	}
	for _, h := range n.preds {
		if g.at(h).State() != StateCompleted {
			return false
		}
	}
	return true
}

// MarkReady moves a Pending node to Ready.
func (g *Graph) MarkReady(id string) error {
	n, ok := g.Node(id)
	if !ok {
		return notFound(id)
	}
	if !n.transition(StatePending, StateReady) {
		return badTransition(n, StatePending, StateReady)
	}
	return nil
}

// MarkRunning moves a Ready node to Running. Only one caller can win the
// transition; the others get ErrInvalidTransition.
func (g *Graph) MarkRunning(id string) error {
	n, ok := g.Node(id)
	if !ok {
		return notFound(id)
	}
	if !n.transition(StateReady, StateRunning) {
		return badTransition(n, StateReady, StateRunning)
	}
	return nil
}

// CompleteNode records a successful result and propagates readiness to the
// node's successors.
func (g *Graph) CompleteNode(id string, result any) error {
	n, ok := g.Node(id)
	if !ok {
		return notFound(id)
	}
	if err := g.complete(n, result, -1); err != nil {
		return err
	}
	if !n.held.Load() {
		g.propagate(n)
	}
	return nil
}

// CompleteDecision completes a decision node that selected target. Only the
// selected successor is treated as reachable through this node.
func (g *Graph) CompleteDecision(id, label, target string) error {
	n, ok := g.Node(id)
	if !ok {
		return notFound(id)
	}
	h, ok := g.Handle(target)
	if !ok {
		return notFound(target)
	}
	if !contains(n.succs, h) {
		return branchError(id, "target %q is not a successor", target)
	}
	if err := g.complete(n, label, h); err != nil {
		return err
	}
	if !n.held.Load() {
		g.propagate(n)
	}
	return nil
}

// FailNode records a failure. Successors are not touched; whether the run
// continues is up to the driver.
func (g *Graph) FailNode(id, errorMessage string) error {
	n, ok := g.Node(id)
	if !ok {
		return notFound(id)
	}
	if !n.finish(StateFailed, nil, errorMessage, -1) {
		return badTransition(n, StateRunning, StateFailed)
	}
	return nil
}

func (g *Graph) complete(n *Node, result any, selected int) error {
	if !n.finish(StateCompleted, result, "", selected) {
		return badTransition(n, StateRunning, StateCompleted)
	}
	g.markDone(n)
	return nil
}

func (g *Graph) markDone(n *Node) {
	if n.done.CompareAndSwap(false, true) {
		g.doneCount.Add(1)
	}
}

// IsComplete reports whether every terminal node has completed (or was
// pruned) and no node is left outstanding.
func (g *Graph) IsComplete() bool {
	g.mu.RLock()
	total := int64(len(g.nodes))
	g.mu.RUnlock()
	if total == 0 || g.doneCount.Load() != total {
		return false
	}
	for _, n := range g.TerminalNodes() {
		if n.State() != StateCompleted && !n.Skipped() {
			return false
		}
	}
	return true
}

// IsFailed reports whether any node has failed.
func (g *Graph) IsFailed() bool {
	return len(g.FailedNodes()) > 0
}

// FailedNodes returns the failed nodes in insertion order.
func (g *Graph) FailedNodes() []*Node {
	return g.filter(func(n *Node) bool { return n.State() == StateFailed })
}

// Progress returns the percentage of nodes that have completed or been
// pruned. It never decreases between resets.
func (g *Graph) Progress() float64 {
	g.mu.RLock()
	total := len(g.nodes)
	g.mu.RUnlock()
	if total == 0 {
		return 0
	}
	return float64(g.doneCount.Load()) / float64(total) * 100
}

// Reset returns every node to Pending and clears results, errors,
// iteration counters and progress.
func (g *Graph) Reset() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		n.clear()
	}
	g.doneCount.Store(0)
}

// NodeInfo is a point-in-time view of a node for monitoring.
type NodeInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      NodeType `json:"type"`
	State     string   `json:"state"`
	Iteration int      `json:"iteration,omitempty"`
	Skipped   bool     `json:"skipped,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Snapshot returns the state of every node in insertion order.
func (g *Graph) Snapshot() []NodeInfo {
	nodes := g.Nodes()
	out := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		info := NodeInfo{
			ID:      n.ID,
			Name:    n.Name,
			Type:    n.Type(),
			State:   n.State().String(),
			Skipped: n.Skipped(),
			Error:   n.ErrorMessage(),
		}
		if n.Type() == NodeTypeLoop {
			info.Iteration = n.Iteration()
		}
		out = append(out, info)
	}
	return out
}

func (g *Graph) at(h int) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[h]
}

func contains(handles []int, h int) bool {
	for _, x := range handles {
		if x == h {
			return true
		}
	}
	return false
}
