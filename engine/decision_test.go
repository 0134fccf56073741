package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/plangraph/dsl"
	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/testutil"
	"github.com/BaSui01/plangraph/testutil/fixtures"
	"github.com/BaSui01/plangraph/testutil/mocks"
)

// review: check -> {approve | reject} -> notify
func reviewGraph(t *testing.T, branches map[string]string) *graph.Graph {
	return fixtures.Build(t, []*graph.Node{
		task("draft"),
		graph.NewDecision("check", "score > 0.5", branches),
		task("approve"),
		task("reject"),
		task("notify"),
	},
		"draft", "check",
		"check", "approve", "check", "reject",
		"approve", "notify", "reject", "notify",
	)
}

func TestDecision_OnlySelectedBranchRuns(t *testing.T) {
	for _, tc := range []struct {
		score    float64
		ran      string
		notRan   string
		decision string
	}{
		{score: 0.9, ran: "approve", notRan: "reject", decision: "true"},
		{score: 0.1, ran: "reject", notRan: "approve", decision: "false"},
	} {
		t.Run(tc.ran, func(t *testing.T) {
			c := mocks.NewMockDelegate()
			g := reviewGraph(t, map[string]string{"true": "approve", "false": "reject"})

			res, err := NewExecutor(newRegistry(t, c), WithParallelism(1)).
				Execute(testutil.TestContext(t), g, map[string]any{"score": tc.score})
			require.NoError(t, err)

			assert.Equal(t, StatusCompleted, res.Status)
			assert.Equal(t, []string{"draft", tc.ran, "notify"}, c.NodeOrder())
			assert.Equal(t, tc.decision, res.Outputs["check"])
			assert.NotContains(t, res.Outputs, tc.notRan)

			skipped := nodeState(t, res, tc.notRan)
			assert.True(t, skipped.Skipped)
			assert.Equal(t, "pending", skipped.State)
			assert.Equal(t, 100.0, res.Progress)
			assert.True(t, g.IsComplete())
		})
	}
}

func TestDecision_DefaultBranch(t *testing.T) {
	c := mocks.NewMockDelegate()
	g := fixtures.Build(t, []*graph.Node{
		graph.NewDecision("route", "category", map[string]string{
			"billing": "billing",
			"default": "general",
		}),
		task("billing"),
		task("general"),
	}, "route", "billing", "route", "general")

	res, err := NewExecutor(newRegistry(t, c)).Execute(testutil.TestContext(t), g, map[string]any{"category": "shipping"})
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, c.NodeOrder())
	assert.Equal(t, "shipping", res.Outputs["route"])
}

func TestDecision_NoMatchingBranchFails(t *testing.T) {
	c := mocks.NewMockDelegate()
	g := fixtures.Build(t, []*graph.Node{
		graph.NewDecision("route", "category", map[string]string{"billing": "billing"}),
		task("billing"),
	}, "route", "billing")

	res, err := NewExecutor(newRegistry(t, c)).Execute(testutil.TestContext(t), g, map[string]any{"category": "other"})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, err, ErrNoBranch)
	assert.Equal(t, []string{"route"}, res.FailedNodes)
	assert.Empty(t, c.NodeOrder())
}

func TestDecision_EvaluationErrorFailsNode(t *testing.T) {
	g := fixtures.Build(t, []*graph.Node{
		graph.NewDecision("route", "1 / 0", map[string]string{"true": "next"}),
		task("next"),
	}, "route", "next")

	res, err := NewExecutor(newRegistry(t, mocks.NewMockDelegate())).Execute(testutil.TestContext(t), g, nil)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"route"}, res.FailedNodes)
}

func TestDecision_ReadsNodeResults(t *testing.T) {
	c := mocks.NewMockDelegate()
	g := fixtures.Build(t, []*graph.Node{
		graph.NewTask("classify", "echo", graph.WithMetadata("value", "urgent")),
		graph.NewDecision("route", `results.classify == "urgent"`, map[string]string{
			"true":  "page",
			"false": "queue",
		}),
		task("page"),
		task("queue"),
	}, "classify", "route", "route", "page", "route", "queue")

	_, err := NewExecutor(newRegistry(t, c)).Execute(testutil.TestContext(t), g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"page"}, c.NodeOrder())
}

func TestDecision_CustomEvaluator(t *testing.T) {
	c := mocks.NewMockDelegate()
	g := reviewGraph(t, map[string]string{"yes": "approve", "no": "reject"})

	eval := dsl.EvaluatorFunc(func(string, map[string]any) (dsl.Outcome, error) {
		return dsl.NewOutcome("no"), nil
	})
	_, err := NewExecutor(newRegistry(t, c), WithEvaluator(eval), WithParallelism(1)).
		Execute(testutil.TestContext(t), g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "reject", "notify"}, c.NodeOrder())
}

func TestDecision_PrunedBranchCascades(t *testing.T) {
	c := mocks.NewMockDelegate()
	// gate -> {fast | slow}; slow -> s1 -> s2; s2 and fast -> done
	g := fixtures.Build(t, []*graph.Node{
		graph.NewDecision("gate", "quick", map[string]string{"true": "fast", "false": "slow"}),
		task("fast"), task("slow"), task("s1"), task("s2"), task("done"),
	},
		"gate", "fast", "gate", "slow",
		"slow", "s1", "s1", "s2",
		"s2", "done", "fast", "done",
	)

	res, err := NewExecutor(newRegistry(t, c), WithParallelism(1)).
		Execute(testutil.TestContext(t), g, map[string]any{"quick": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", "done"}, c.NodeOrder())
	for _, id := range []string{"slow", "s1", "s2"} {
		assert.True(t, nodeState(t, res, id).Skipped, id)
	}
	assert.Equal(t, 100.0, res.Progress)
}
