package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey  contextKey = "trace_id"
	runIDKey    contextKey = "run_id"
	nodeIDKey   contextKey = "node_id"
	workflowKey contextKey = "workflow"
)

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	return get(ctx, traceIDKey)
}

// WithRunID 设置 RunID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取 RunID
func RunID(ctx context.Context) (string, bool) {
	return get(ctx, runIDKey)
}

// WithNodeID 设置当前分发的节点 ID
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, nodeIDKey, nodeID)
}

// NodeID 获取当前分发的节点 ID
func NodeID(ctx context.Context) (string, bool) {
	return get(ctx, nodeIDKey)
}

// WithWorkflow 设置工作流名称
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return context.WithValue(ctx, workflowKey, workflow)
}

// Workflow 获取工作流名称
func Workflow(ctx context.Context) (string, bool) {
	return get(ctx, workflowKey)
}

func get(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
