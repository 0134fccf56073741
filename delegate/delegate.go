package delegate

import (
	"context"
	"maps"
)

// Delegate performs the work behind a task node. The executor does not care
// what a delegate does: an LLM call, a tool invocation or a sub-workflow.
type Delegate interface {
	Execute(ctx context.Context, req Request) (any, error)
}

// Func adapts an ordinary function to a Delegate.
type Func func(ctx context.Context, req Request) (any, error)

// Execute implements Delegate.
func (f Func) Execute(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Request carries everything a delegate may need about the node it runs for.
type Request struct {
	NodeID   string
	NodeName string
	// Delegate is the name the node was resolved by.
	Delegate string
	// Params holds the node's metadata after ${var} interpolation.
	Params map[string]any
	// Vars is a read-only copy of the run variables.
	Vars map[string]any
	// Iteration is the iteration of the innermost enclosing loop, or 0.
	Iteration int
}

// Param returns a parameter value, falling back to def when it is missing.
func (r Request) Param(key string, def any) any {
	if v, ok := r.Params[key]; ok {
		return v
	}
	return def
}

// Output lets a delegate publish run variables next to its result. The
// executor records Value as the node result and merges Set into the run
// variables.
type Output struct {
	Value any
	Set   map[string]any
}

// Unwrap splits a delegate return value into the node result and the
// variables it sets.
func Unwrap(v any) (any, map[string]any) {
	switch o := v.(type) {
	case Output:
		return o.Value, o.Set
	case *Output:
		if o == nil {
			return nil, nil
		}
		return o.Value, o.Set
	default:
		return v, nil
	}
}

func cloneParams(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	return maps.Clone(m)
}
