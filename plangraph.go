// Package plangraph provides a top-level convenience entry point for running
// plan documents with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/plangraph"
//
//	res, err := plangraph.Run(ctx, doc, map[string]any{"topic": "graphs"})
//	res, err := plangraph.RunFile(ctx, "plan.yaml", nil, plangraph.WithMaxSteps(200))
//
// Run parses the document with the builtin delegates, applies the declared
// variable defaults and drives the graph with [engine.Executor]. Use the
// dsl and engine packages directly for custom registries or to reuse a
// parsed plan.
package plangraph

import (
	"context"

	"github.com/BaSui01/plangraph/dsl"
	"github.com/BaSui01/plangraph/engine"
)

// Option configures the executor used by [Run].
type Option = engine.Option

// Result is the outcome of a run.
type Result = engine.Result

// Run parses a YAML or JSON plan document and executes it with input.
func Run(ctx context.Context, doc []byte, input map[string]any, opts ...Option) (*Result, error) {
	plan, err := dsl.NewParser(nil, nil).Parse(doc)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, plan, input, opts...)
}

// RunFile is [Run] for a plan file.
func RunFile(ctx context.Context, path string, input map[string]any, opts ...Option) (*Result, error) {
	plan, err := dsl.NewParser(nil, nil).ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, plan, input, opts...)
}

// Execute runs an already parsed plan. Options given here override the
// workflow name taken from the plan.
func Execute(ctx context.Context, plan *dsl.Plan, input map[string]any, opts ...Option) (*Result, error) {
	vars, err := plan.Inputs(input)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{engine.WithWorkflowName(plan.Name)}, opts...)
	return engine.NewExecutor(plan.Delegates, opts...).Execute(ctx, plan.Graph, vars)
}

// Re-export executor options so callers never need to import engine/.

// WithLogger sets a custom zap logger.
var WithLogger = engine.WithLogger

// WithMaxSteps bounds the number of node dispatches.
var WithMaxSteps = engine.WithMaxSteps

// WithTimeout bounds the wall-clock duration of a run.
var WithTimeout = engine.WithTimeout

// WithParallelism sets how many ready nodes may run at once.
var WithParallelism = engine.WithParallelism

// WithFailurePolicy sets what happens after a node fails.
var WithFailurePolicy = engine.WithFailurePolicy

// WithHistory saves the run history to a store.
var WithHistory = engine.WithHistory
