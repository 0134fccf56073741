package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/delegate"
	"github.com/BaSui01/plangraph/engine"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现 engine.MetricsRecorder
type Collector struct {
	// 运行指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runSteps    *prometheus.HistogramVec

	// 节点指标
	nodeExecutionsTotal *prometheus.CounterVec
	nodeDuration        *prometheus.HistogramVec
	loopIterationsTotal *prometheus.CounterVec
	readyNodes          *prometheus.GaugeVec

	// 委托指标
	delegateRetriesTotal *prometheus.CounterVec
	breakerState         *prometheus.GaugeVec

	// 历史存储指标
	historyOpDuration *prometheus.HistogramVec

	logger *zap.Logger
}

var _ engine.MetricsRecorder = (*Collector)(nil)

// NewCollector 创建指标收集器并注册到 reg；reg 为 nil 时使用默认注册表
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 运行指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of plan runs",
		},
		[]string{"workflow", "status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Plan run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workflow"},
	)

	c.runSteps = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Node dispatches per run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"workflow"},
	)

	// 节点指标
	c.nodeExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of node dispatches",
		},
		[]string{"type", "status"},
	)

	c.nodeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	c.loopIterationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Total number of completed loop iterations",
		},
		[]string{"workflow"},
	)

	c.readyNodes = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready_nodes",
			Help:      "Nodes ready for dispatch in the last driver round",
		},
		[]string{"workflow"},
	)

	// 委托指标
	c.delegateRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegate_retries_total",
			Help:      "Total number of delegate retries",
		},
		[]string{"delegate"},
	)

	c.breakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"delegate"},
	)

	// 历史存储指标
	c.historyOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_operation_duration_seconds",
			Help:      "Run history store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 运行与节点指标
// =============================================================================

// RecordRun 记录一次运行
func (c *Collector) RecordRun(workflow string, status engine.Status, steps int, duration time.Duration) {
	workflow = label(workflow)
	c.runsTotal.WithLabelValues(workflow, string(status)).Inc()
	c.runDuration.WithLabelValues(workflow).Observe(duration.Seconds())
	c.runSteps.WithLabelValues(workflow).Observe(float64(steps))
}

// RecordNode 记录一次节点分发
func (c *Collector) RecordNode(nodeType, status string, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordLoopIteration 记录一次完成的循环迭代
func (c *Collector) RecordLoopIteration(workflow string) {
	c.loopIterationsTotal.WithLabelValues(label(workflow)).Inc()
}

// SetReadyNodes 记录就绪节点数
func (c *Collector) SetReadyNodes(workflow string, n int) {
	c.readyNodes.WithLabelValues(label(workflow)).Set(float64(n))
}

// =============================================================================
// 🔁 委托指标
// =============================================================================

// RecordDelegateRetry 记录委托重试，签名与 dsl.WithRetryHook 一致
func (c *Collector) RecordDelegateRetry(delegateName string, _ int, _ error) {
	c.delegateRetriesTotal.WithLabelValues(delegateName).Inc()
}

// RecordBreakerEvent 记录熔断器状态变化，签名与 dsl.WithBreakerHook 一致
func (c *Collector) RecordBreakerEvent(ev delegate.CircuitBreakerEvent) {
	c.breakerState.WithLabelValues(ev.Name).Set(float64(ev.NewState))
	c.logger.Debug("circuit breaker state changed",
		zap.String("delegate", ev.Name),
		zap.String("from", ev.OldState.String()),
		zap.String("to", ev.NewState.String()))
}

// =============================================================================
// 🗄️ 历史存储指标
// =============================================================================

// RecordHistoryOp 记录历史存储操作
func (c *Collector) RecordHistoryOp(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.historyOpDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// label 将空的 workflow 名称归为 "anonymous"
func label(workflow string) string {
	if workflow == "" {
		return "anonymous"
	}
	return workflow
}
