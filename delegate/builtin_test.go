package delegate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/plangraph/types"
)

func builtins(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(nil)
	require.NoError(t, RegisterBuiltins(r))
	return r
}

func run(t *testing.T, r *Registry, name string, req Request) (any, error) {
	t.Helper()
	d, err := r.Resolve(name)
	require.NoError(t, err)
	return d.Execute(context.Background(), req)
}

func TestBuiltins_Registered(t *testing.T) {
	r := builtins(t)
	assert.Equal(t, []string{"counter", "echo", "fail", "set", "sleep"}, r.Names())
	assert.Error(t, RegisterBuiltins(r), "second registration collides")
}

func TestBuiltin_Echo(t *testing.T) {
	r := builtins(t)

	out, err := run(t, r, BuiltinEcho, Request{Params: map[string]any{"value": 7}})
	require.NoError(t, err)
	assert.Equal(t, 7, out)

	out, err = run(t, r, BuiltinEcho, Request{Params: map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, out)
}

func TestBuiltin_Set(t *testing.T) {
	r := builtins(t)
	out, err := run(t, r, BuiltinSet, Request{Params: map[string]any{"approved": true}})
	require.NoError(t, err)

	v, vars := Unwrap(out)
	assert.Equal(t, map[string]any{"approved": true}, v)
	assert.Equal(t, map[string]any{"approved": true}, vars)
}

func TestBuiltin_Sleep(t *testing.T) {
	r := builtins(t)
	out, err := run(t, r, BuiltinSleep, Request{Params: map[string]any{"duration": "1ms"}})
	require.NoError(t, err)
	assert.Equal(t, "1ms", out)

	d, _ := r.Resolve(BuiltinSleep)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Execute(ctx, Request{Params: map[string]any{"duration": 5000}})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = run(t, r, BuiltinSleep, Request{Params: map[string]any{"duration": "soon"}})
	assert.Error(t, err)
}

func TestBuiltin_Fail(t *testing.T) {
	r := builtins(t)
	_, err := run(t, r, BuiltinFail, Request{NodeID: "x", Params: map[string]any{"message": "nope", "retryable": true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.True(t, types.IsRetryable(err))

	var e *types.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "x", e.NodeID)
}

func TestBuiltin_Counter(t *testing.T) {
	r := builtins(t)
	for i := 1; i <= 3; i++ {
		out, err := run(t, r, BuiltinCounter, Request{NodeID: "tick"})
		require.NoError(t, err)
		v, vars := Unwrap(out)
		assert.Equal(t, i, v)
		assert.Equal(t, map[string]any{"tick": i}, vars)
	}
	out, err := run(t, r, BuiltinCounter, Request{NodeID: "tick", Params: map[string]any{"key": "other"}})
	require.NoError(t, err)
	v, _ := Unwrap(out)
	assert.Equal(t, 1, v)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      any
		want    time.Duration
		wantErr bool
	}{
		{in: nil, want: 0},
		{in: "2s", want: 2 * time.Second},
		{in: 250, want: 250 * time.Millisecond},
		{in: int64(5), want: 5 * time.Millisecond},
		{in: 1.5, want: 1500 * time.Microsecond},
		{in: time.Minute, want: time.Minute},
		{in: "later", wantErr: true},
		{in: true, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
