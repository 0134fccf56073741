package engine

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/config"
	"github.com/BaSui01/plangraph/dsl"
	"github.com/BaSui01/plangraph/history"
)

// Defaults used when an option is not set.
const (
	DefaultMaxSteps    = 1000
	DefaultParallelism = 4
)

// FailurePolicy decides what the driver loop does after a node fails.
type FailurePolicy int

const (
	// FailFast stops dispatching once any node has failed.
	FailFast FailurePolicy = iota
	// Continue keeps running every node that is still reachable.
	Continue
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses "fail_fast" or "continue". An empty string is
// FailFast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail_fast":
		return FailFast, nil
	case "continue":
		return Continue, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(evaluator dsl.Evaluator) Option {
	return func(e *Executor) {
		if evaluator != nil {
			e.evaluator = evaluator
		}
	}
}

// WithMaxSteps bounds the number of node dispatches per run, counted across
// every loop nesting level.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithTimeout bounds the wall-clock duration of a run. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

// WithParallelism sets how many ready nodes may run at once. 1 dispatches
// sequentially in insertion order.
func WithParallelism(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithFailurePolicy sets the failure policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer used for run and node spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Executor) {
		if mp != nil {
			e.meterProvider = mp
		}
	}
}

// WithHistory saves every run's history to store.
func WithHistory(store history.Store) Option {
	return func(e *Executor) { e.history = store }
}

// WithWorkflowName names the workflow in logs, spans, metrics and history.
func WithWorkflowName(name string) Option {
	return func(e *Executor) { e.workflow = name }
}

// FromConfig applies an engine configuration. Zero values keep the
// defaults; an unknown failure policy is ignored.
func FromConfig(cfg config.EngineConfig) Option {
	return func(e *Executor) {
		WithMaxSteps(cfg.MaxSteps)(e)
		WithTimeout(cfg.Timeout)(e)
		WithParallelism(cfg.Parallelism)(e)
		if p, err := ParseFailurePolicy(cfg.FailurePolicy); err == nil {
			e.policy = p
		}
	}
}
