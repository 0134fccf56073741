package delegate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	Jitter       bool          `yaml:"jitter" json:"jitter"`

	// RetryIf decides whether an error is worth another attempt. Nil retries
	// everything except context cancellation and an open circuit.
	RetryIf func(error) bool `yaml:"-" json:"-"`
	// OnRetry is called before each new attempt.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" json:"-"`
}

// DefaultRetryPolicy returns three retries with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	return p
}

// Delay returns the wait before the given attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < float64(p.InitialDelay) {
		delay = float64(p.InitialDelay)
	}
	return time.Duration(delay)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrCircuitOpen)
}

// WithRetry re-runs a failing delegate with exponential backoff. The wait
// between attempts honours context cancellation.
func WithRetry(policy RetryPolicy, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy = policy.normalized()
	logger = logger.With(zap.String("component", "delegate_retry"))

	return func(next Delegate) Delegate {
		return Func(func(ctx context.Context, req Request) (any, error) {
			var lastErr error
			for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
				if attempt > 0 {
					delay := policy.Delay(attempt)
					logger.Debug("retrying delegate",
						zap.String("node_id", req.NodeID),
						zap.Int("attempt", attempt),
						zap.Int("max_retries", policy.MaxRetries),
						zap.Duration("delay", delay),
						zap.Error(lastErr))
					if policy.OnRetry != nil {
						policy.OnRetry(attempt, lastErr, delay)
					}

					timer := time.NewTimer(delay)
					select {
					case <-ctx.Done():
						timer.Stop()
						return nil, fmt.Errorf("retry canceled: %w", ctx.Err())
					case <-timer.C:
					}
				}

				out, err := next.Execute(ctx, req)
				if err == nil {
					if attempt > 0 {
						logger.Info("delegate succeeded after retry",
							zap.String("node_id", req.NodeID),
							zap.Int("attempt", attempt))
					}
					return out, nil
				}
				lastErr = err
				if !policy.retryable(err) {
					return nil, err
				}
			}

			logger.Warn("delegate retries exhausted",
				zap.String("node_id", req.NodeID),
				zap.Int("attempts", policy.MaxRetries+1),
				zap.Error(lastErr))
			return nil, fmt.Errorf("failed after %d retries: %w", policy.MaxRetries, lastErr)
		})
	}
}
