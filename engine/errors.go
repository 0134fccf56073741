package engine

import (
	"fmt"
	"strings"

	"github.com/BaSui01/plangraph/types"
)

// Run termination errors. Returned errors carry detail and match these with
// errors.Is.
var (
	ErrStepBudgetExceeded = types.NewError(types.ErrStepBudgetExceeded, "step budget exceeded")
	ErrTimeout            = types.NewError(types.ErrTimeout, "run timed out")
	ErrCanceled           = types.NewError(types.ErrCanceled, "run canceled")
	ErrStalled            = types.NewError(types.ErrStalled, "run stalled")
	ErrNoBranch           = types.NewError(types.ErrNoBranch, "no branch matches the decision outcome")
	ErrNodeFailed         = types.NewError(types.ErrNodeFailed, "node failed")
)

// NodeFailure is the failure of one node.
type NodeFailure struct {
	NodeID string
	Err    error
}

// NodeFailedError reports the nodes that failed during a run. It matches
// ErrNodeFailed and unwraps to the individual node errors.
type NodeFailedError struct {
	Failures []NodeFailure
}

func (e *NodeFailedError) Error() string {
	switch len(e.Failures) {
	case 0:
		return "run failed"
	case 1:
		return fmt.Sprintf("node %s failed: %v", e.Failures[0].NodeID, e.Failures[0].Err)
	}
	return fmt.Sprintf("%d nodes failed (%s); first: %v",
		len(e.Failures), strings.Join(e.NodeIDs(), ", "), e.Failures[0].Err)
}

// Is matches ErrNodeFailed.
func (e *NodeFailedError) Is(target error) bool {
	t, ok := target.(*types.Error)
	return ok && t.Code == types.ErrNodeFailed
}

// Unwrap returns the node errors.
func (e *NodeFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// NodeIDs returns the ids of the failed nodes in failure order.
func (e *NodeFailedError) NodeIDs() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.NodeID
	}
	return ids
}

// fatalError marks an error that aborts the whole run rather than failing
// a single node.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	if _, ok := err.(*fatalError); ok {
		return err
	}
	return &fatalError{err: err}
}
