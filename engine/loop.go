package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/types"
)

// runLoop repeats the loop body with while semantics: before every
// iteration the iteration cap and then the condition are checked, with
// loop_iteration bound to the number of completed iterations. Iterations
// run strictly one after another; a body that is itself a loop is driven
// recursively. The loop's result is its iteration count.
func (r *run) runLoop(ctx context.Context, n *graph.Node, loop graph.Loop) (any, error) {
	body, err := r.g.LoopBody(n.ID)
	if err != nil {
		return nil, err
	}

	for {
		it := n.Iteration()
		if it >= loop.MaxIterations {
			r.logger.Debug("loop reached max iterations",
				zap.String("node_id", n.ID),
				zap.Int("max_iterations", loop.MaxIterations))
			break
		}
		if loop.Condition != "" {
			out, err := r.e.evaluator.Evaluate(loop.Condition, r.scope(it))
			if err != nil {
				return nil, err
			}
			if !out.Bool() {
				break
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, fatal(err)
		}

		if err := r.g.ResetForIteration(body.ID); err != nil {
			return nil, fatal(err)
		}
		if err := r.g.MarkReady(body.ID); err != nil {
			return nil, fatal(err)
		}
		if err := r.dispatch(ctx, body, it); err != nil {
			return nil, fatal(err)
		}
		if body.State() == graph.StateFailed {
			return nil, types.Errorf(types.ErrNodeFailed,
				"loop %q: body %q failed in iteration %d: %s", n.ID, body.ID, it, body.ErrorMessage()).WithNode(n.ID)
		}

		if _, err := r.g.IncrementIteration(n.ID); err != nil {
			return nil, fatal(err)
		}
		r.e.metrics.RecordLoopIteration(r.workflow)
	}

	iterations := n.Iteration()
	r.publish(n.ID, iterations, nil)
	if err := r.g.CompleteLoop(n.ID, iterations); err != nil {
		return nil, fatal(err)
	}
	r.logger.Debug("loop finished",
		zap.String("node_id", n.ID),
		zap.Int("iterations", iterations))
	return iterations, nil
}
