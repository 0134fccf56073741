package delegate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/plangraph/types"
)

// Builtin delegate names.
const (
	BuiltinEcho    = "echo"
	BuiltinSet     = "set"
	BuiltinSleep   = "sleep"
	BuiltinFail    = "fail"
	BuiltinCounter = "counter"
)

// RegisterBuiltins registers the builtin delegates:
//
//   - echo:    returns params["value"], or all params when there is none
//   - set:     publishes every param as a run variable
//   - sleep:   waits params["duration"] ("250ms" or milliseconds)
//   - fail:    fails with params["message"]; params["retryable"] marks it retryable
//   - counter: counts calls per params["key"] (default: node id) and
//     publishes the count under that key
func RegisterBuiltins(r *Registry) error {
	c := &counter{counts: make(map[string]int)}
	builtins := map[string]Delegate{
		BuiltinEcho:    Func(echo),
		BuiltinSet:     Func(set),
		BuiltinSleep:   Func(sleep),
		BuiltinFail:    Func(fail),
		BuiltinCounter: Func(c.execute),
	}
	for _, name := range []string{BuiltinEcho, BuiltinSet, BuiltinSleep, BuiltinFail, BuiltinCounter} {
		if err := r.Register(name, builtins[name]); err != nil {
			return err
		}
	}
	return nil
}

func echo(_ context.Context, req Request) (any, error) {
	if v, ok := req.Params["value"]; ok {
		return v, nil
	}
	return cloneParams(req.Params), nil
}

func set(_ context.Context, req Request) (any, error) {
	vars := cloneParams(req.Params)
	return Output{Value: cloneParams(vars), Set: vars}, nil
}

func sleep(ctx context.Context, req Request) (any, error) {
	d, err := ParseDuration(req.Param("duration", 0))
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return d.String(), nil
	}
}

func fail(_ context.Context, req Request) (any, error) {
	msg := fmt.Sprint(req.Param("message", "delegate failed"))
	retryable, _ := req.Param("retryable", false).(bool)
	return nil, types.NewError(types.ErrNodeFailed, msg).WithNode(req.NodeID).WithRetryable(retryable)
}

type counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *counter) execute(_ context.Context, req Request) (any, error) {
	key := fmt.Sprint(req.Param("key", req.NodeID))
	c.mu.Lock()
	c.counts[key]++
	n := c.counts[key]
	c.mu.Unlock()
	return Output{Value: n, Set: map[string]any{key: n}}, nil
}

// ParseDuration accepts a Go duration string or a number of milliseconds.
func ParseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", d, err)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Millisecond, nil
	case int64:
		return time.Duration(d) * time.Millisecond, nil
	case float64:
		return time.Duration(d * float64(time.Millisecond)), nil
	default:
		return 0, fmt.Errorf("invalid duration type %T", v)
	}
}
