package dsl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/delegate"
	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/types"
)

const reviewPlan = `
version: "1"
name: review
description: draft, review and polish
variables:
  topic:
    type: string
    required: true
  rounds:
    type: int
    default: 2
delegates:
  writer:
    type: echo
    params:
      value: "draft on ${topic}"
    timeout: 2s
    retry:
      max_retries: 2
      initial_delay: 10ms
    rate_limit:
      rps: 100
      burst: 10
    circuit_breaker:
      failure_threshold: 3
      recovery_timeout: 1s
nodes:
  - id: draft
    delegate: writer
    next: [check]
  - id: check
    type: decision
    condition: approved
    branches:
      "true": publish
      "false": polish
  - id: polish
    type: loop
    condition: loop_iteration < rounds
    max_iterations: 5
    next: [edit]
  - id: edit
    delegate: echo
    params:
      value: "${topic}"
    next: [publish]
  - id: publish
    name: Publish
    delegate: echo
`

func TestParser_Parse(t *testing.T) {
	plan, err := NewParser(nil, zap.NewNop()).Parse([]byte(reviewPlan))
	require.NoError(t, err)

	assert.Equal(t, "review", plan.Name)
	assert.Equal(t, "1", plan.Version)

	g := plan.Graph
	require.Equal(t, 5, g.Len())
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"check"}, g.Successors("draft"))
	assert.ElementsMatch(t, []string{"publish", "polish"}, g.Successors("check"))
	assert.Equal(t, []string{"edit"}, g.Successors("polish"))
	assert.ElementsMatch(t, []string{"check", "edit"}, g.Predecessors("publish"))

	check, ok := g.Node("check")
	require.True(t, ok)
	dec, ok := check.Kind.(graph.Decision)
	require.True(t, ok)
	assert.Equal(t, "approved", dec.Condition)
	assert.Equal(t, map[string]string{"true": "publish", "false": "polish"}, dec.Branches)

	polish, _ := g.Node("polish")
	loop, ok := polish.Kind.(graph.Loop)
	require.True(t, ok)
	assert.Equal(t, 5, loop.MaxIterations)
	assert.Equal(t, "loop_iteration < rounds", loop.Condition)
	body, err := g.LoopBody("polish")
	require.NoError(t, err)
	assert.Equal(t, "edit", body.ID)

	edit, _ := g.Node("edit")
	assert.Equal(t, "${topic}", edit.Metadata["value"])
	publish, _ := g.Node("publish")
	assert.Equal(t, "Publish", publish.Name)
}

func TestParser_PlanDelegates(t *testing.T) {
	plan, err := NewParser(nil, nil).Parse([]byte(reviewPlan))
	require.NoError(t, err)

	writer, err := plan.Delegates.Resolve("writer")
	require.NoError(t, err)
	out, err := writer.Execute(context.Background(), delegate.Request{NodeID: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "draft on ${topic}", out, "defaults are applied, interpolation is the executor's job")

	_, err = plan.Delegates.Resolve("echo")
	assert.NoError(t, err, "plan registry falls back to the parser registry")
}

func TestPlan_Inputs(t *testing.T) {
	plan, err := NewParser(nil, nil).Parse([]byte(reviewPlan))
	require.NoError(t, err)

	vars, err := plan.Inputs(map[string]any{"topic": "graphs"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "graphs", "rounds": 2}, vars)

	vars, err = plan.Inputs(map[string]any{"topic": "graphs", "rounds": 4})
	require.NoError(t, err)
	assert.Equal(t, 4, vars["rounds"])

	_, err = plan.Inputs(nil)
	assert.Equal(t, types.ErrMissingVariable, types.GetErrorCode(err))
}

func TestParser_JSON(t *testing.T) {
	doc := `{
  "name": "json-plan",
  "nodes": [
    {"id": "start", "delegate": "echo", "next": ["loop"]},
    {"id": "loop", "type": "loop", "max_iterations": 3, "body": "tick", "next": ["end"]},
    {"id": "tick", "delegate": "counter", "next": ["end"]},
    {"id": "end", "delegate": "echo"}
  ]
}`
	plan, err := NewParser(nil, nil).Parse([]byte(doc))
	require.NoError(t, err)

	succ := plan.Graph.Successors("loop")
	assert.Equal(t, []string{"tick", "end"}, succ, "explicit body becomes the first successor")
}

func TestParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(reviewPlan), 0o600))

	plan, err := NewParser(nil, nil).ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "review", plan.Name)

	_, err = NewParser(nil, nil).ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{name: "bad yaml", doc: "name: [unclosed", wantMsg: "parse plan"},
		{
			name:    "unknown delegate",
			doc:     "name: x\nnodes:\n  - id: a\n    delegate: nope\n",
			wantMsg: `delegate "nope" is not defined`,
		},
		{
			name: "cycle",
			doc: `name: x
nodes:
  - id: a
    delegate: echo
    next: [b]
  - id: b
    delegate: echo
    next: [c]
  - id: c
    delegate: echo
    next: [b, d]
  - id: d
    delegate: echo
`,
			wantMsg: "CYCLE_DETECTED",
		},
		{
			name: "isolated node",
			doc: `name: x
nodes:
  - id: a
    delegate: echo
    next: [b]
  - id: b
    delegate: echo
  - id: c
    delegate: echo
`,
			wantMsg: "ISOLATED_NODE",
		},
		{
			name: "loop body with another dependency",
			doc: `name: x
nodes:
  - id: s
    delegate: echo
    next: [x, l]
  - id: x
    delegate: echo
    next: [b]
  - id: l
    type: loop
    body: b
    max_iterations: 2
  - id: b
    delegate: echo
`,
			wantMsg: "INVALID_LOOP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(nil, nil).Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalidPlan, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParser_CustomRegistry(t *testing.T) {
	reg := delegate.NewRegistry(nil)
	reg.MustRegister("summarize", delegate.Func(func(context.Context, delegate.Request) (any, error) {
		return "summary", nil
	}))

	doc := "name: custom\nnodes:\n  - id: summarize\n"
	plan, err := NewParser(reg, nil).Parse([]byte(doc))
	require.NoError(t, err)

	n, ok := plan.Graph.Node("summarize")
	require.True(t, ok)
	assert.Equal(t, graph.NodeTypeTask, n.Type())
	_, err = plan.Delegates.Resolve("summarize")
	assert.NoError(t, err)
	_, err = plan.Delegates.Resolve("echo")
	assert.ErrorIs(t, err, delegate.ErrDelegateNotFound, "custom registry has no builtins")
}

func TestParser_DelegateHooks(t *testing.T) {
	doc := `
name: hooks
delegates:
  flaky:
    type: fail
    params:
      message: down
    retry:
      max_retries: 2
      initial_delay: 1ms
    circuit_breaker:
      failure_threshold: 1
      recovery_timeout: 1m
nodes:
  - id: call
    delegate: flaky
`
	var retries []int
	var events []delegate.CircuitBreakerEvent
	parser := NewParser(nil, nil,
		WithRetryHook(func(name string, attempt int, err error) {
			assert.Equal(t, "flaky", name)
			assert.Error(t, err)
			retries = append(retries, attempt)
		}),
		WithBreakerHook(func(ev delegate.CircuitBreakerEvent) {
			events = append(events, ev)
		}),
	)
	plan, err := parser.Parse([]byte(doc))
	require.NoError(t, err)

	flaky, err := plan.Delegates.Resolve("flaky")
	require.NoError(t, err)
	_, err = flaky.Execute(context.Background(), delegate.Request{NodeID: "call"})
	require.Error(t, err)

	assert.Equal(t, []int{1, 2}, retries)
	require.Len(t, events, 1)
	assert.Equal(t, "flaky", events[0].Name)
	assert.Equal(t, delegate.CircuitOpen, events[0].NewState)

	_, err = flaky.Execute(context.Background(), delegate.Request{NodeID: "call"})
	assert.ErrorIs(t, err, delegate.ErrCircuitOpen)
	assert.Len(t, retries, 2, "an open breaker short-circuits before the retry loop")
}
