// MockDelegate 与 MockAgent 的测试模拟实现。
//
// 支持固定结果、错误注入、前 N 次失败与延迟场景。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/plangraph/delegate"
)

// ErrMockFailure 是 WithFailTimes 注入的默认错误
var ErrMockFailure = errors.New("mock delegate failure")

// --- MockDelegate 结构 ---

// MockDelegate 是 delegate.Delegate 的模拟实现
type MockDelegate struct {
	mu sync.Mutex

	// 响应配置
	result    any
	err       error
	failTimes int
	delay     time.Duration
	fn        func(ctx context.Context, req delegate.Request) (any, error)

	// 调用记录
	calls []delegate.Request
}

// NewMockDelegate 创建新的 MockDelegate，默认返回节点 ID
func NewMockDelegate() *MockDelegate {
	return &MockDelegate{}
}

// WithResult 设置固定结果
func (m *MockDelegate) WithResult(result any) *MockDelegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	return m
}

// WithError 设置每次调用都返回的错误
func (m *MockDelegate) WithError(err error) *MockDelegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailTimes 设置前 n 次调用失败
func (m *MockDelegate) WithFailTimes(n int) *MockDelegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTimes = n
	return m
}

// WithDelay 设置响应延迟，延迟期间响应 ctx 取消
func (m *MockDelegate) WithDelay(d time.Duration) *MockDelegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFunc 设置自定义执行函数，优先于其他配置
func (m *MockDelegate) WithFunc(fn func(ctx context.Context, req delegate.Request) (any, error)) *MockDelegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// --- Delegate 接口实现 ---

// Execute 实现 delegate.Delegate
func (m *MockDelegate) Execute(ctx context.Context, req delegate.Request) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	attempt := len(m.calls)
	result, err, failTimes, delay, fn := m.result, m.err, m.failTimes, m.delay, m.fn
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if attempt <= failTimes {
		return nil, ErrMockFailure
	}
	if result == nil {
		return req.NodeID, nil
	}
	return result, nil
}

// --- 调用记录 ---

// Calls 返回所有调用请求的副本
func (m *MockDelegate) Calls() []delegate.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delegate.Request(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockDelegate) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// NodeOrder 返回按调用顺序排列的节点 ID
func (m *MockDelegate) NodeOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.calls))
	for i, c := range m.calls {
		ids[i] = c.NodeID
	}
	return ids
}

// CallCountFor 返回某个节点的调用次数
func (m *MockDelegate) CallCountFor(nodeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.NodeID == nodeID {
			n++
		}
	}
	return n
}

// Iterations 返回某个节点每次调用时的循环迭代序号
func (m *MockDelegate) Iterations(nodeID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var iters []int
	for _, c := range m.calls {
		if c.NodeID == nodeID {
			iters = append(iters, c.Iteration)
		}
	}
	return iters
}

// Reset 清空调用记录
func (m *MockDelegate) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// --- MockAgent ---

// MockAgent 是 delegate.AgentExecutor 的模拟实现
type MockAgent struct {
	id     string
	mu     sync.Mutex
	inputs []any
	fn     func(ctx context.Context, input any) (any, error)
}

// NewMockAgent 创建回显输入的 MockAgent
func NewMockAgent(id string) *MockAgent {
	return &MockAgent{id: id}
}

// WithFunc 设置自定义执行函数
func (a *MockAgent) WithFunc(fn func(ctx context.Context, input any) (any, error)) *MockAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fn = fn
	return a
}

// Execute 实现 delegate.AgentExecutor
func (a *MockAgent) Execute(ctx context.Context, input any) (any, error) {
	a.mu.Lock()
	a.inputs = append(a.inputs, input)
	fn := a.fn
	a.mu.Unlock()
	if fn != nil {
		return fn(ctx, input)
	}
	return input, nil
}

// ID 返回 Agent ID
func (a *MockAgent) ID() string { return a.id }

// Name 返回 Agent 名称
func (a *MockAgent) Name() string { return "mock-" + a.id }

// Inputs 返回收到的输入
func (a *MockAgent) Inputs() []any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]any(nil), a.inputs...)
}

var (
	_ delegate.Delegate      = (*MockDelegate)(nil)
	_ delegate.AgentExecutor = (*MockAgent)(nil)
)
