package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/plangraph/delegate"
	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/testutil/mocks"
)

// newRegistry returns a registry with the builtins and a "record" delegate
// backed by c; it logs every call and returns the node id.
func newRegistry(t testing.TB, c *mocks.MockDelegate) *delegate.Registry {
	t.Helper()
	reg := delegate.NewRegistry(nil)
	require.NoError(t, delegate.RegisterBuiltins(reg))
	require.NoError(t, reg.Register("record", c))
	return reg
}

func task(id string, opts ...graph.NodeOption) *graph.Node {
	return graph.NewTask(id, "record", opts...)
}

func nodeState(t testing.TB, res *Result, id string) graph.NodeInfo {
	t.Helper()
	for _, info := range res.Nodes {
		if info.ID == id {
			return info
		}
	}
	t.Fatalf("node %q not in snapshot", id)
	return graph.NodeInfo{}
}
