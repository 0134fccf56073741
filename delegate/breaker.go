package delegate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/types"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = types.NewError(types.ErrCircuitOpen, "circuit breaker open")

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets every call through
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects every call
	CircuitOpen
	// CircuitHalfOpen admits a limited number of probes
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before probing
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	// HalfOpenMaxProbes limits calls admitted while half-open
	HalfOpenMaxProbes int `yaml:"half_open_max_probes" json:"half_open_max_probes"`
	// SuccessThreshold consecutive half-open successes close the circuit
	SuccessThreshold int `yaml:"success_threshold" json:"success_threshold"`
}

// DefaultCircuitBreakerConfig returns the default breaker settings.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 3,
		SuccessThreshold:  2,
	}
}

func (c CircuitBreakerConfig) normalized() CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	return c
}

// CircuitBreakerEvent describes a state change.
type CircuitBreakerEvent struct {
	Name      string       `json:"name"`
	OldState  CircuitState `json:"old_state"`
	NewState  CircuitState `json:"new_state"`
	Timestamp time.Time    `json:"timestamp"`
	Reason    string       `json:"reason"`
	Failures  int          `json:"failures"`
}

// CircuitBreaker guards a delegate that keeps failing.
type CircuitBreaker struct {
	name            string
	config          CircuitBreakerConfig
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	probeCount      int
	onChange        func(CircuitBreakerEvent)
	logger          *zap.Logger
	now             func() time.Time
	mu              sync.Mutex
}

// NewCircuitBreaker creates a closed breaker. onChange may be nil; it is
// called synchronously outside the breaker lock.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, onChange func(CircuitBreakerEvent), logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:     name,
		config:   config.normalized(),
		state:    CircuitClosed,
		onChange: onChange,
		logger:   logger.With(zap.String("component", "circuit_breaker"), zap.String("delegate", name)),
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	var ev *CircuitBreakerEvent
	defer func() {
		cb.mu.Unlock()
		cb.emit(ev)
	}()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.config.RecoveryTimeout {
			return types.Errorf(types.ErrCircuitOpen, "circuit breaker open for %s after %d consecutive failures",
				cb.name, cb.failures)
		}
		ev = cb.transitionTo(CircuitHalfOpen, "recovery timeout elapsed")
		cb.probeCount = 1
		cb.successes = 0
		return nil

	case CircuitHalfOpen:
		if cb.probeCount < cb.config.HalfOpenMaxProbes {
			cb.probeCount++
			return nil
		}
		return types.Errorf(types.ErrCircuitOpen, "circuit breaker half-open for %s: max probes (%d) reached",
			cb.name, cb.config.HalfOpenMaxProbes)

	default:
		return nil
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var ev *CircuitBreakerEvent
	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			ev = cb.transitionTo(CircuitClosed, "probes succeeded")
			cb.failures = 0
			cb.successes = 0
		}
	}
	cb.mu.Unlock()
	cb.emit(ev)
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	var ev *CircuitBreakerEvent
	cb.failures++
	cb.lastFailureTime = cb.now()
	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			ev = cb.transitionTo(CircuitOpen, "failure threshold reached")
		}
	case CircuitHalfOpen:
		cb.successes = 0
		ev = cb.transitionTo(CircuitOpen, "failure in half-open state")
	}
	cb.mu.Unlock()
	cb.emit(ev)
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var ev *CircuitBreakerEvent
	if cb.state != CircuitClosed {
		ev = cb.transitionTo(CircuitClosed, "manual reset")
	}
	cb.failures = 0
	cb.successes = 0
	cb.probeCount = 0
	cb.mu.Unlock()
	cb.emit(ev)
}

// transitionTo must be called with cb.mu held.
func (cb *CircuitBreaker) transitionTo(newState CircuitState, reason string) *CircuitBreakerEvent {
	oldState := cb.state
	cb.state = newState

	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.String("reason", reason),
		zap.Int("failures", cb.failures))

	return &CircuitBreakerEvent{
		Name:      cb.name,
		OldState:  oldState,
		NewState:  newState,
		Timestamp: cb.now(),
		Reason:    reason,
		Failures:  cb.failures,
	}
}

func (cb *CircuitBreaker) emit(ev *CircuitBreakerEvent) {
	if ev != nil && cb.onChange != nil {
		cb.onChange(*ev)
	}
}

// WithCircuitBreaker rejects calls while cb is open. Context cancellation
// is not counted as a failure.
func WithCircuitBreaker(cb *CircuitBreaker) Middleware {
	return func(next Delegate) Delegate {
		return Func(func(ctx context.Context, req Request) (any, error) {
			if err := cb.Allow(); err != nil {
				return nil, err
			}
			out, err := next.Execute(ctx, req)
			switch {
			case err == nil:
				cb.RecordSuccess()
			case ctx.Err() != nil:
			default:
				cb.RecordFailure()
			}
			return out, err
		})
	}
}
