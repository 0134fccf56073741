package engine

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/BaSui01/plangraph/engine"

// Span and attribute names.
const (
	spanRun  = "plangraph.run"
	spanNode = "plangraph.node"

	attrRunID     = attribute.Key("plangraph.run_id")
	attrWorkflow  = attribute.Key("plangraph.workflow")
	attrStatus    = attribute.Key("plangraph.status")
	attrSteps     = attribute.Key("plangraph.steps")
	attrNodeID    = attribute.Key("plangraph.node.id")
	attrNodeType  = attribute.Key("plangraph.node.type")
	attrIteration = attribute.Key("plangraph.iteration")
)

// MetricsRecorder receives run and node measurements. internal/metrics
// provides a Prometheus implementation.
type MetricsRecorder interface {
	RecordRun(workflow string, status Status, steps int, duration time.Duration)
	RecordNode(nodeType, status string, duration time.Duration)
	RecordLoopIteration(workflow string)
	SetReadyNodes(workflow string, n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(string, Status, int, time.Duration) {}
func (noopMetrics) RecordNode(string, string, time.Duration)    {}
func (noopMetrics) RecordLoopIteration(string)                  {}
func (noopMetrics) SetReadyNodes(string, int)                   {}

func newDispatchCounter(mp metric.MeterProvider) (metric.Int64Counter, error) {
	c, err := mp.Meter(instrumentationName).Int64Counter("plangraph.node.dispatches",
		metric.WithDescription("Number of node dispatches"),
		metric.WithUnit("{dispatch}"))
	if err != nil {
		return noop.Int64Counter{}, err
	}
	return c, nil
}
