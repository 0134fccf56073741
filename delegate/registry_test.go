package delegate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func constant(v any) Delegate {
	return Func(func(context.Context, Request) (any, error) { return v, nil })
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("a", constant(1)))

	d, err := r.Resolve("a")
	require.NoError(t, err)
	out, err := d.Execute(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, ErrDelegateNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("a", constant(1)))
	assert.ErrorIs(t, r.Register("a", constant(2)), ErrDuplicateDelegate)
	assert.Panics(t, func() { r.MustRegister("a", constant(3)) })
	assert.Error(t, r.Register("", constant(1)))
	assert.Error(t, r.Register("nil", nil))
}

func TestRegistry_Scope(t *testing.T) {
	parent := NewRegistry(nil)
	parent.MustRegister("shared", constant("parent"))
	parent.MustRegister("shadowed", constant("parent"))

	child := parent.Scope()
	child.MustRegister("shadowed", constant("child"))
	child.MustRegister("local", constant("child"))

	resolve := func(r *Registry, name string) any {
		d, err := r.Resolve(name)
		require.NoError(t, err)
		out, err := d.Execute(context.Background(), Request{})
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, "parent", resolve(child, "shared"))
	assert.Equal(t, "child", resolve(child, "shadowed"))
	assert.Equal(t, "parent", resolve(parent, "shadowed"))

	_, err := parent.Resolve("local")
	assert.ErrorIs(t, err, ErrDelegateNotFound)

	assert.Equal(t, []string{"local", "shadowed", "shared"}, child.Names())
	assert.Equal(t, []string{"shadowed", "shared"}, parent.Names())
}

func TestRegistry_RegisterFunc(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.RegisterFunc("id", func(_ context.Context, req Request) (any, error) {
		return req.NodeID, nil
	}))
	d, err := r.Resolve("id")
	require.NoError(t, err)
	out, err := d.Execute(context.Background(), Request{NodeID: "n1"})
	require.NoError(t, err)
	assert.Equal(t, "n1", out)
}

func TestUnwrap(t *testing.T) {
	v, set := Unwrap(Output{Value: 1, Set: map[string]any{"k": 2}})
	assert.Equal(t, 1, v)
	assert.Equal(t, map[string]any{"k": 2}, set)

	v, set = Unwrap(&Output{Value: "x"})
	assert.Equal(t, "x", v)
	assert.Nil(t, set)

	var nilOut *Output
	v, set = Unwrap(nilOut)
	assert.Nil(t, v)
	assert.Nil(t, set)

	v, set = Unwrap(42)
	assert.Equal(t, 42, v)
	assert.Nil(t, set)
}
