package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func nodeID(i int) string {
	return fmt.Sprintf("n%05d", i)
}

// randomDAG draws a graph whose edges only point from lower to higher
// insertion index, so it is acyclic by construction.
func randomDAG(t *rapid.T) *Graph {
	n := rapid.IntRange(1, 25).Draw(t, "nodes")
	g := New()
	for i := 0; i < n; i++ {
		if err := g.AddNode(NewTask(nodeID(i), "")); err != nil {
			t.Fatalf("add node: %v", err)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("edge_%d_%d", i, j)) == 0 {
				if err := g.AddEdge(nodeID(i), nodeID(j)); err != nil {
					t.Fatalf("add edge: %v", err)
				}
			}
		}
	}
	return g
}

// Property: TopologicalOrder of an acyclic graph lists every node once and
// places every predecessor before its successors.
func TestProperty_TopologicalOrderRespectsEdges(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := randomDAG(rt)

		order, err := g.TopologicalOrder()
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(order) != g.Len() {
			rt.Fatalf("order has %d nodes, graph has %d", len(order), g.Len())
		}
		pos := make(map[string]int, len(order))
		for i, n := range order {
			if _, dup := pos[n.ID]; dup {
				rt.Fatalf("node %s listed twice", n.ID)
			}
			pos[n.ID] = i
		}
		for _, n := range order {
			for _, s := range g.Successors(n.ID) {
				if pos[n.ID] >= pos[s] {
					rt.Fatalf("%s (pos %d) not before %s (pos %d)", n.ID, pos[n.ID], s, pos[s])
				}
			}
		}
	})
}

// Property: driving a DAG in any ready order completes every node, never
// lowers progress, and reports IsComplete exactly when progress hits 100.
func TestProperty_ProgressIsMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := randomDAG(rt)
		for _, n := range g.InitialNodes() {
			if err := g.MarkReady(n.ID); err != nil {
				rt.Fatalf("mark ready: %v", err)
			}
		}

		last := g.Progress()
		for steps := 0; ; steps++ {
			if steps > g.Len() {
				rt.Fatalf("more steps than nodes")
			}
			ready := g.ReadyNodes()
			if len(ready) == 0 {
				break
			}
			pick := ready[rapid.IntRange(0, len(ready)-1).Draw(rt, "pick")]
			if err := g.MarkRunning(pick.ID); err != nil {
				rt.Fatalf("mark running: %v", err)
			}
			if err := g.CompleteNode(pick.ID, steps); err != nil {
				rt.Fatalf("complete: %v", err)
			}

			p := g.Progress()
			if p < last {
				rt.Fatalf("progress went from %.2f to %.2f", last, p)
			}
			if g.IsComplete() != (p == 100) {
				rt.Fatalf("IsComplete=%v at progress %.2f", g.IsComplete(), p)
			}
			last = p
		}

		if !g.IsComplete() {
			rt.Fatalf("graph not complete, progress %.2f", g.Progress())
		}
	})
}

// Property: Reset is idempotent and leaves a graph that can be driven again.
func TestProperty_ResetIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := randomDAG(rt)
		for _, n := range g.InitialNodes() {
			_ = g.MarkReady(n.ID)
		}
		for _, n := range g.ReadyNodes() {
			_ = g.MarkRunning(n.ID)
			_ = g.CompleteNode(n.ID, "x")
		}

		g.Reset()
		first := g.Snapshot()
		g.Reset()
		second := g.Snapshot()

		require.Equal(rt, first, second)
		for _, info := range second {
			if info.State != StatePending.String() || info.Skipped || info.Error != "" {
				rt.Fatalf("node %s not reset: %+v", info.ID, info)
			}
		}
		if g.Progress() != 0 {
			rt.Fatalf("progress after reset: %.2f", g.Progress())
		}
	})
}
