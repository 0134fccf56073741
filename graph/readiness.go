package graph

// edge status as seen from the target of the edge
type edgeStatus int

const (
	edgeUnsettled edgeStatus = iota
	edgeActive
	edgeInactive
)

// status classifies the edge p -> s. A completed decision only activates the
// successor it selected; a pruned predecessor never activates anything.
func (g *Graph) status(p, s *Node) edgeStatus {
	if p.Skipped() {
		return edgeInactive
	}
	if p.held.Load() || p.State() != StateCompleted {
		return edgeUnsettled
	}
	if p.Type() == NodeTypeDecision && int(p.selected.Load()) != s.index {
		return edgeInactive
	}
	return edgeActive
}

type settleResult int

const (
	settleNone settleResult = iota
	settleReady
	settleSkipped
)

// settle re-evaluates a Pending node after one of its predecessors changed.
// The Pending -> Ready move is a compare-and-swap, so two predecessors that
// complete concurrently cannot both promote the same node.
func (g *Graph) settle(s *Node) settleResult {
	if s.State() != StatePending || s.Skipped() || s.held.Load() {
		return settleNone
	}
	active := false
	for _, h := range s.preds {
		switch g.status(g.at(h), s) {
		case edgeUnsettled:
			return settleNone
		case edgeActive:
			active = true
		}
	}
	if active {
		if s.transition(StatePending, StateReady) {
			return settleReady
		}
		return settleNone
	}
	if s.skipped.CompareAndSwap(false, true) {
		g.markDone(s)
		return settleSkipped
	}
	return settleNone
}

// propagate settles the successors of from. Skips cascade through an
// explicit worklist.
func (g *Graph) propagate(from *Node) {
	stack := []*Node{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, h := range n.succs {
			s := g.at(h)
			if g.settle(s) == settleSkipped {
				stack = append(stack, s)
			}
		}
	}
}

// prune marks a node that can no longer run as skipped and cascades.
func (g *Graph) prune(n *Node) {
	if n.skipped.CompareAndSwap(false, true) {
		g.markDone(n)
		g.propagate(n)
	}
}

// LoopBody resolves the body of a loop node: the configured body, or the
// first successor.
func (g *Graph) LoopBody(loopID string) (*Node, error) {
	n, ok := g.Node(loopID)
	if !ok {
		return nil, notFound(loopID)
	}
	return g.loopBody(n)
}

func (g *Graph) loopBody(n *Node) (*Node, error) {
	loop, ok := n.Kind.(Loop)
	if !ok {
		return nil, loopError(n.ID, "node is a %s", n.Type())
	}
	if loop.Body != "" {
		body, ok := g.Node(loop.Body)
		if !ok {
			return nil, loopError(n.ID, "body %q not found", loop.Body)
		}
		return body, nil
	}
	if len(n.succs) == 0 {
		return nil, loopError(n.ID, "no body and no successors")
	}
	return g.at(n.succs[0]), nil
}

// ResetForIteration returns a loop body to Pending so it can run again.
// The body stays held by its loop until CompleteLoop: its completion does
// not propagate to its successors in the meantime.
func (g *Graph) ResetForIteration(bodyID string) error {
	n, ok := g.Node(bodyID)
	if !ok {
		return notFound(bodyID)
	}
	st := n.State()
	if st == StateReady || st == StateRunning {
		return badTransition(n, st, StatePending)
	}
	n.rearm()
	return nil
}

// IncrementIteration bumps a loop's iteration counter and returns the new
// value.
func (g *Graph) IncrementIteration(loopID string) (int, error) {
	n, ok := g.Node(loopID)
	if !ok {
		return 0, notFound(loopID)
	}
	if n.Type() != NodeTypeLoop {
		return 0, loopError(loopID, "node is a %s", n.Type())
	}
	return int(n.iteration.Add(1)), nil
}

// CompleteLoop completes a running loop node and releases its body. A body
// that never ran is pruned. When the loop is itself the body of an outer
// loop, the release is deferred until the outer loop completes.
func (g *Graph) CompleteLoop(loopID string, result any) error {
	n, ok := g.Node(loopID)
	if !ok {
		return notFound(loopID)
	}
	body, err := g.loopBody(n)
	if err != nil {
		return err
	}
	if n.held.Load() {
		return g.complete(n, result, -1)
	}
	body.held.Store(true)
	if err := g.complete(n, result, -1); err != nil {
		return err
	}
	g.propagate(n)
	g.release(body)
	return nil
}

// release lifts the loop hold from a body and settles what depends on it,
// descending into nested loop bodies. The inner body is held before the
// outer one is released so it cannot be promoted by the generic rule.
func (g *Graph) release(body *Node) {
	for body != nil {
		var inner *Node
		if body.Type() == NodeTypeLoop && body.State() == StateCompleted {
			if in, err := g.loopBody(body); err == nil {
				inner = in
				inner.held.Store(true)
			}
		}
		body.held.Store(false)
		switch body.State() {
		case StateCompleted:
			g.propagate(body)
		case StatePending:
			g.prune(body)
			return
		default:
			return
		}
		body = inner
	}
}
