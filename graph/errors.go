package graph

import "github.com/BaSui01/plangraph/types"

// Structural errors. Returned errors carry detail but match these with
// errors.Is.
var (
	ErrInvalidNode       = types.NewError(types.ErrInvalidNode, "invalid node")
	ErrDuplicateNode     = types.NewError(types.ErrDuplicateNode, "duplicate node id")
	ErrNodeNotFound      = types.NewError(types.ErrNodeNotFound, "node not found")
	ErrEmptyGraph        = types.NewError(types.ErrEmptyGraph, "graph has no nodes")
	ErrNoInitialNodes    = types.NewError(types.ErrNoInitialNodes, "graph has no initial nodes")
	ErrNoTerminalNodes   = types.NewError(types.ErrNoTerminalNodes, "graph has no terminal nodes")
	ErrIsolatedNode      = types.NewError(types.ErrIsolatedNode, "isolated node")
	ErrCycleDetected     = types.NewError(types.ErrCycleDetected, "cycle detected")
	ErrInvalidBranch     = types.NewError(types.ErrInvalidBranch, "invalid decision branch")
	ErrInvalidLoop       = types.NewError(types.ErrInvalidLoop, "invalid loop configuration")
	ErrInvalidTransition = types.NewError(types.ErrInvalidTransition, "invalid state transition")
)

func notFound(id string) error {
	return types.Errorf(types.ErrNodeNotFound, "node %q not found", id).WithNode(id)
}

func badTransition(n *Node, from, to State) error {
	return types.Errorf(types.ErrInvalidTransition,
		"cannot move %q from %s to %s (current %s)", n.ID, from, to, n.State()).WithNode(n.ID)
}

func invalidNode(id, reason string) error {
	return types.Errorf(types.ErrInvalidNode, "invalid node %q: %s", id, reason).WithNode(id)
}

func duplicate(id string) error {
	return types.Errorf(types.ErrDuplicateNode, "node %q already exists", id).WithNode(id)
}

func branchError(id, format string, args ...any) error {
	return types.Errorf(types.ErrInvalidBranch, "decision %q: "+format, append([]any{id}, args...)...).WithNode(id)
}

func loopError(id, format string, args ...any) error {
	return types.Errorf(types.ErrInvalidLoop, "loop %q: "+format, append([]any{id}, args...)...).WithNode(id)
}
