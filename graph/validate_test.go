package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/plangraph/types"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(t *testing.T) *Graph
		want  error
	}{
		{
			name:  "empty graph",
			build: func(t *testing.T) *Graph { return New() },
			want:  ErrEmptyGraph,
		},
		{
			name: "single node",
			build: func(t *testing.T) *Graph {
				g := New()
				addTasks(t, g, "only")
				return g
			},
		},
		{
			name: "no initial nodes",
			build: func(t *testing.T) *Graph {
				g := New()
				addTasks(t, g, "a", "b")
				addEdges(t, g, "a", "b", "b", "a")
				return g
			},
			want: ErrNoInitialNodes,
		},
		{
			name: "no terminal nodes",
			build: func(t *testing.T) *Graph {
				g := New()
				addTasks(t, g, "a", "b", "c")
				addEdges(t, g, "a", "b", "b", "c", "c", "b")
				return g
			},
			want: ErrNoTerminalNodes,
		},
		{
			name: "isolated node",
			build: func(t *testing.T) *Graph {
				g := New()
				addTasks(t, g, "a", "b", "lonely")
				addEdges(t, g, "a", "b")
				return g
			},
			want: ErrIsolatedNode,
		},
		{
			name: "cycle",
			build: func(t *testing.T) *Graph {
				g := New()
				addTasks(t, g, "a", "b", "c", "d")
				addEdges(t, g, "a", "b", "b", "c", "c", "b", "c", "d")
				return g
			},
			want: ErrCycleDetected,
		},
		{
			name: "decision without condition",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewDecision("d", "", map[string]string{"x": "x"})))
				addTasks(t, g, "x")
				addEdges(t, g, "d", "x")
				return g
			},
			want: ErrInvalidBranch,
		},
		{
			name: "decision without branches",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewDecision("d", "flag", nil)))
				addTasks(t, g, "x")
				addEdges(t, g, "d", "x")
				return g
			},
			want: ErrInvalidBranch,
		},
		{
			name: "decision branch to unknown node",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewDecision("d", "flag", map[string]string{"true": "ghost"})))
				addTasks(t, g, "x")
				addEdges(t, g, "d", "x")
				return g
			},
			want: ErrInvalidBranch,
		},
		{
			name: "decision branch to non-successor",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewDecision("d", "flag", map[string]string{"true": "y"})))
				addTasks(t, g, "x", "y")
				addEdges(t, g, "d", "x", "x", "y")
				return g
			},
			want: ErrInvalidBranch,
		},
		{
			name: "loop with zero max iterations",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewLoop("l", Loop{})))
				addTasks(t, g, "body")
				addEdges(t, g, "l", "body")
				return g
			},
			want: ErrInvalidLoop,
		},
		{
			name: "loop body not a successor",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewLoop("l", Loop{Body: "far", MaxIterations: 2})))
				addTasks(t, g, "near", "far")
				addEdges(t, g, "l", "near", "near", "far")
				return g
			},
			want: ErrInvalidLoop,
		},
		{
			name: "loop body unknown",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewLoop("l", Loop{Body: "ghost", MaxIterations: 2})))
				addTasks(t, g, "near")
				addEdges(t, g, "l", "near")
				return g
			},
			want: ErrInvalidLoop,
		},
		{
			name: "loop body with a second predecessor",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewLoop("l", Loop{Body: "b", MaxIterations: 2})))
				addTasks(t, g, "s", "x", "b")
				addEdges(t, g, "s", "x", "s", "l", "l", "b", "x", "b")
				return g
			},
			want: ErrInvalidLoop,
		},
		{
			name: "decision into loop",
			build: func(t *testing.T) *Graph {
				g := New()
				require.NoError(t, g.AddNode(NewDecision("d", "again", map[string]string{"true": "l", "false": "end"})))
				require.NoError(t, g.AddNode(NewLoop("l", Loop{MaxIterations: 3})))
				addTasks(t, g, "body", "end")
				addEdges(t, g, "d", "l", "d", "end", "l", "body")
				return g
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build(t).Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_ErrorCarriesNode(t *testing.T) {
	t.Parallel()

	g := New()
	addTasks(t, g, "a", "b", "lonely")
	addEdges(t, g, "a", "b")

	err := g.Validate()
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, types.ErrIsolatedNode, e.Code)
	assert.Equal(t, "lonely", e.NodeID)
}

func TestTopologicalOrder(t *testing.T) {
	t.Parallel()

	g := New()
	addTasks(t, g, "e", "d", "c", "b", "a")
	addEdges(t, g, "a", "b", "a", "c", "b", "d", "c", "d", "d", "e")

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, 5)
	assertTopological(t, g, order)
	assert.Equal(t, "a", order[0].ID)
	assert.Equal(t, "e", order[4].ID)
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	t.Parallel()

	g := New()
	addTasks(t, g, "a", "b", "c")
	addEdges(t, g, "a", "b", "b", "c", "c", "a")

	order, err := g.TopologicalOrder()
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.Equal(t, types.ErrCycleDetected, types.GetErrorCode(err))
}

func TestTopologicalOrder_DeepChain(t *testing.T) {
	t.Parallel()

	// Deep enough to overflow a recursive walk with a small stack budget.
	const depth = 50000
	g := New()
	prev := ""
	for i := 0; i < depth; i++ {
		id := nodeID(i)
		addTasks(t, g, id)
		if prev != "" {
			require.NoError(t, g.AddEdge(prev, id))
		}
		prev = id
	}

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, depth)
	assert.Equal(t, nodeID(0), order[0].ID)
	assert.Equal(t, nodeID(depth-1), order[depth-1].ID)
}

func assertTopological(t *testing.T, g *Graph, order []*Node) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n.ID] = i
	}
	for _, n := range order {
		for _, s := range g.Successors(n.ID) {
			assert.Less(t, pos[n.ID], pos[s], "%s must precede %s", n.ID, s)
		}
	}
}
