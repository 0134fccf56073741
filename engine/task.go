package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/delegate"
	"github.com/BaSui01/plangraph/dsl"
	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/types"
)

// runTask dispatches a task node to its delegate. Node metadata is
// interpolated against the run variables at dispatch time.
func (r *run) runTask(ctx context.Context, n *graph.Node, task graph.Task, iteration int) (any, error) {
	name := task.Delegate
	if name == "" {
		name = n.ID
	}
	d, err := r.e.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}
	// a panicking delegate fails its node like any other delegate error
	d = delegate.WithRecovery()(d)

	vars := r.scope(iteration)
	req := delegate.Request{
		NodeID:    n.ID,
		NodeName:  n.Name,
		Delegate:  name,
		Params:    dsl.InterpolateParams(n.Metadata, vars),
		Vars:      vars,
		Iteration: iteration,
	}

	out, err := d.Execute(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fatal(ctx.Err())
		}
		return nil, err
	}

	value, set := delegate.Unwrap(out)
	r.publish(n.ID, value, set)
	if err := r.g.CompleteNode(n.ID, value); err != nil {
		return nil, fatal(err)
	}
	return value, nil
}

// runDecision evaluates a decision's condition and completes it with the
// selected branch. Only the selected successor can become ready.
func (r *run) runDecision(n *graph.Node, dec graph.Decision, iteration int) (any, error) {
	out, err := r.e.evaluator.Evaluate(dec.Condition, r.scope(iteration))
	if err != nil {
		return nil, err
	}

	label := out.Label()
	target, ok := dec.Branches[label]
	if !ok {
		target, ok = dec.Branches[graph.DefaultBranch]
	}
	if !ok {
		return nil, types.Errorf(types.ErrNoBranch,
			"decision %q: no branch for outcome %q", n.ID, label).WithNode(n.ID)
	}

	r.publish(n.ID, label, nil)
	if err := r.g.CompleteDecision(n.ID, label, target); err != nil {
		return nil, fatal(err)
	}
	r.logger.Debug("branch selected",
		zap.String("node_id", n.ID),
		zap.String("label", label),
		zap.String("target", target))
	return label, nil
}
