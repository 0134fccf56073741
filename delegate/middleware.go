package delegate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/BaSui01/plangraph/types"
)

// Middleware wraps a delegate with additional behaviour.
type Middleware func(next Delegate) Delegate

// Chain is an ordered list of middleware. The first middleware added is the
// outermost one.
type Chain struct {
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewChain creates a chain.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use appends a middleware.
func (c *Chain) Use(m Middleware) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, m)
	return c
}

// Then wraps d with every middleware in the chain.
func (c *Chain) Then(d Delegate) Delegate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.middlewares) - 1; i >= 0; i-- {
		d = c.middlewares[i](d)
	}
	return d
}

// Len returns the number of middleware.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.middlewares)
}

// WithTimeout bounds each call with its own deadline.
func WithTimeout(timeout time.Duration) Middleware {
	return func(next Delegate) Delegate {
		if timeout <= 0 {
			return next
		}
		return Func(func(ctx context.Context, req Request) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next.Execute(ctx, req)
		})
	}
}

// BlockingRateLimiter waits until a call is allowed. *rate.Limiter
// satisfies it.
type BlockingRateLimiter interface {
	Wait(ctx context.Context) error
}

// WithRateLimiter delays calls until limiter admits them.
func WithRateLimiter(limiter BlockingRateLimiter) Middleware {
	return func(next Delegate) Delegate {
		return Func(func(ctx context.Context, req Request) (any, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
			return next.Execute(ctx, req)
		})
	}
}

// WithRateLimit admits at most rps calls per second with the given burst.
func WithRateLimit(rps float64, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	return WithRateLimiter(rate.NewLimiter(rate.Limit(rps), burst))
}

// WithDefaults fills parameters the node does not set.
func WithDefaults(params map[string]any) Middleware {
	return func(next Delegate) Delegate {
		if len(params) == 0 {
			return next
		}
		return Func(func(ctx context.Context, req Request) (any, error) {
			merged := cloneParams(params)
			for k, v := range req.Params {
				merged[k] = v
			}
			req.Params = merged
			return next.Execute(ctx, req)
		})
	}
}

// PanicError is returned when a delegate panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("delegate panic: %v", e.Value)
}

// WithRecovery turns a panic inside the delegate into a non-retryable
// node error.
func WithRecovery() Middleware {
	return func(next Delegate) Delegate {
		return Func(func(ctx context.Context, req Request) (out any, err error) {
			defer func() {
				if r := recover(); r != nil {
					out = nil
					err = types.NewError(types.ErrNodeFailed, "delegate panicked").
						WithNode(req.NodeID).
						WithCause(&PanicError{Value: r})
				}
			}()
			return next.Execute(ctx, req)
		})
	}
}
