package graph

import (
	"github.com/BaSui01/plangraph/types"
)

// Validate checks the structural invariants of the graph and fails fast with
// the first violation: no nodes, no initial nodes, no terminal nodes, an
// isolated node, a cycle, or a misconfigured decision or loop.
func (g *Graph) Validate() error {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return ErrEmptyGraph
	}

	if len(g.InitialNodes()) == 0 {
		return ErrNoInitialNodes
	}
	if len(g.TerminalNodes()) == 0 {
		return ErrNoTerminalNodes
	}

	if len(nodes) > 1 {
		for _, n := range nodes {
			if len(n.preds) == 0 && len(n.succs) == 0 {
				return types.Errorf(types.ErrIsolatedNode,
					"node %q has no predecessors and no successors", n.ID).WithNode(n.ID)
			}
		}
	}

	if _, err := g.TopologicalOrder(); err != nil {
		return err
	}

	for _, n := range nodes {
		if err := g.validateKind(n); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) validateKind(n *Node) error {
	switch k := n.Kind.(type) {
	case Task:
		return nil

	case Decision:
		if k.Condition == "" {
			return branchError(n.ID, "condition is empty")
		}
		if len(k.Branches) == 0 {
			return branchError(n.ID, "no branches configured")
		}
		for label, target := range k.Branches {
			h, ok := g.Handle(target)
			if !ok {
				return branchError(n.ID, "branch %q targets unknown node %q", label, target)
			}
			if !contains(n.succs, h) {
				return branchError(n.ID, "branch %q target %q is not a successor", label, target)
			}
		}
		return nil

	case Loop:
		if k.MaxIterations < 1 {
			return loopError(n.ID, "max iterations must be at least 1, got %d", k.MaxIterations)
		}
		body, err := g.loopBody(n)
		if err != nil {
			return err
		}
		if !contains(n.succs, body.index) {
			return loopError(n.ID, "body %q is not a successor", body.ID)
		}
		if len(body.preds) != 1 {
			return loopError(n.ID, "body %q must have the loop as its only predecessor, has %d", body.ID, len(body.preds))
		}
		return nil

	default:
		return invalidNode(n.ID, "unknown node kind")
	}
}

const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // finished
)

// TopologicalOrder returns the nodes ordered so that every predecessor comes
// before its successors. It runs an iterative depth-first search with three
// colours and reports ErrCycleDetected when it meets a grey node again.
//
// Loop repetition is not an edge: a loop reaches its body through a normal
// forward edge, so loops never appear as cycles here.
func (g *Graph) TopologicalOrder() ([]*Node, error) {
	nodes := g.Nodes()
	color := make([]int, len(nodes))
	post := make([]int, 0, len(nodes))

	type frame struct {
		node int
		next int // next successor position to visit
	}

	for root := range nodes {
		if color[root] != white {
			continue
		}
		stack := []frame{{node: root}}
		color[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succs := nodes[top.node].succs
			if top.next < len(succs) {
				s := succs[top.next]
				top.next++
				switch color[s] {
				case white:
					color[s] = grey
					stack = append(stack, frame{node: s})
				case grey:
					return nil, types.Errorf(types.ErrCycleDetected,
						"cycle detected: %q -> %q", nodes[top.node].ID, nodes[s].ID).WithNode(nodes[s].ID)
				}
				continue
			}
			color[top.node] = black
			post = append(post, top.node)
			stack = stack[:len(stack)-1]
		}
	}

	order := make([]*Node, len(post))
	for i, h := range post {
		order[len(post)-1-i] = nodes[h]
	}
	return order, nil
}
