// 预置计划图与计划文档。
//
// 所有任务节点都分发到调用方给出的委托名，便于配合 mocks.MockDelegate 记录调用。
package fixtures

import (
	"fmt"
	"testing"

	"github.com/BaSui01/plangraph/graph"
)

// Build 按节点与 (source, target) 边对组装图，任一步失败即终止测试
func Build(t testing.TB, nodes []*graph.Node, edges ...string) *graph.Graph {
	t.Helper()
	if len(edges)%2 != 0 {
		t.Fatalf("edges come in pairs, got %d values", len(edges))
	}
	g := graph.New()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("add node %q: %v", n.ID, err)
		}
	}
	for i := 0; i < len(edges); i += 2 {
		if err := g.AddEdge(edges[i], edges[i+1]); err != nil {
			t.Fatalf("add edge %s -> %s: %v", edges[i], edges[i+1], err)
		}
	}
	return g
}

// Linear 返回 n0 -> n1 -> ... -> n(n-1)
func Linear(t testing.TB, delegateName string, n int) *graph.Graph {
	t.Helper()
	nodes := make([]*graph.Node, n)
	var edges []string
	for i := range n {
		nodes[i] = graph.NewTask(fmt.Sprintf("n%d", i), delegateName)
		if i > 0 {
			edges = append(edges, fmt.Sprintf("n%d", i-1), fmt.Sprintf("n%d", i))
		}
	}
	return Build(t, nodes, edges...)
}

// Diamond 返回 start -> {left, right} -> join
func Diamond(t testing.TB, delegateName string) *graph.Graph {
	t.Helper()
	return Build(t, []*graph.Node{
		graph.NewTask("start", delegateName),
		graph.NewTask("left", delegateName),
		graph.NewTask("right", delegateName),
		graph.NewTask("join", delegateName),
	}, "start", "left", "start", "right", "left", "join", "right", "join")
}

// Review 返回草稿审阅流程：
//
//	draft -> check -(true)-> publish
//	              -(false)-> polish (loop over edit, loop_iteration < rounds) -> publish
func Review(t testing.TB, delegateName string) *graph.Graph {
	t.Helper()
	return Build(t, []*graph.Node{
		graph.NewTask("draft", delegateName),
		graph.NewDecision("check", "approved", map[string]string{"true": "publish", "false": "polish"}),
		graph.NewLoop("polish", graph.Loop{Body: "edit", Condition: "loop_iteration < rounds", MaxIterations: 5}),
		graph.NewTask("edit", delegateName),
		graph.NewTask("publish", delegateName),
	},
		"draft", "check",
		"check", "publish", "check", "polish",
		"polish", "edit",
		"edit", "publish",
	)
}

// ReviewPlan 是 Review 的 YAML 计划文档，任务分发到 echo
const ReviewPlan = `version: "1"
name: review
variables:
  approved:
    type: bool
    default: false
  rounds:
    type: int
    default: 2
nodes:
  - id: draft
    delegate: echo
    params:
      value: draft
    next: [check]
  - id: check
    type: decision
    condition: approved
    branches:
      "true": publish
      "false": polish
  - id: polish
    type: loop
    body: edit
    condition: loop_iteration < rounds
    max_iterations: 5
    next: [publish]
  - id: edit
    delegate: counter
    params:
      key: edits
    next: [publish]
  - id: publish
    delegate: echo
    params:
      value: "published after ${edits} edits"
`
