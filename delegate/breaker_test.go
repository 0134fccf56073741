package delegate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(events *[]CircuitBreakerEvent) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("flaky", CircuitBreakerConfig{
		FailureThreshold:  2,
		RecoveryTimeout:   time.Minute,
		HalfOpenMaxProbes: 1,
		SuccessThreshold:  1,
	}, func(ev CircuitBreakerEvent) {
		if events != nil {
			*events = append(*events, ev)
		}
	}, zap.NewNop())
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	var events []CircuitBreakerEvent
	cb, clock := newTestBreaker(&events)

	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 2, cb.Failures())

	err := cb.Allow()
	assert.ErrorIs(t, err, ErrCircuitOpen)

	clock.advance(time.Minute)
	require.NoError(t, cb.Allow(), "first call after recovery timeout")
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen, "half-open budget spent")

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.Failures())

	require.Len(t, events, 3)
	assert.Equal(t, CircuitOpen, events[0].NewState)
	assert.Equal(t, CircuitHalfOpen, events[1].NewState)
	assert.Equal(t, CircuitClosed, events[2].NewState)
	assert.Equal(t, "flaky", events[0].Name)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(nil)
	cb.RecordFailure()
	cb.RecordFailure()
	clock.advance(2 * time.Minute)
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestWithCircuitBreaker(t *testing.T) {
	cb, _ := newTestBreaker(nil)
	calls := 0
	boom := errors.New("down")
	d := WithCircuitBreaker(cb)(Func(func(context.Context, Request) (any, error) {
		calls++
		return nil, boom
	}))

	for i := 0; i < 2; i++ {
		_, err := d.Execute(context.Background(), Request{})
		assert.ErrorIs(t, err, boom)
	}
	_, err := d.Execute(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestWithCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := WithCircuitBreaker(cb)(Func(func(ctx context.Context, _ Request) (any, error) {
		return nil, ctx.Err()
	}))
	for i := 0; i < 5; i++ {
		_, _ = d.Execute(ctx, Request{})
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half_open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
