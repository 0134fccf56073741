package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/plangraph/delegate"
	"github.com/BaSui01/plangraph/dsl"
	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/history"
	"github.com/BaSui01/plangraph/internal/ctxkeys"
	"github.com/BaSui01/plangraph/types"
)

// Resolver looks up the delegate a task node dispatches to.
// *delegate.Registry implements it.
type Resolver interface {
	Resolve(name string) (delegate.Delegate, error)
}

// Executor drives graphs to completion. It holds no per-run state and can
// execute several graphs concurrently.
type Executor struct {
	resolver  Resolver
	evaluator dsl.Evaluator
	logger    *zap.Logger

	maxSteps    int
	timeout     time.Duration
	parallelism int
	policy      FailurePolicy
	workflow    string

	metrics       MetricsRecorder
	tracer        trace.Tracer
	meterProvider metric.MeterProvider
	dispatches    metric.Int64Counter
	history       history.Store
}

// NewExecutor creates an executor that resolves task delegates through
// resolver.
func NewExecutor(resolver Resolver, opts ...Option) *Executor {
	e := &Executor{
		resolver:      resolver,
		evaluator:     dsl.NewEvaluator(),
		logger:        zap.NewNop(),
		maxSteps:      DefaultMaxSteps,
		parallelism:   DefaultParallelism,
		policy:        FailFast,
		metrics:       noopMetrics{},
		tracer:        otel.Tracer(instrumentationName),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "executor"))

	counter, err := newDispatchCounter(e.meterProvider)
	if err != nil {
		e.logger.Warn("failed to create dispatch counter", zap.Error(err))
	}
	e.dispatches = counter
	return e
}

// run is the state of a single Execute call.
type run struct {
	e        *Executor
	id       string
	workflow string
	g        *graph.Graph
	logger   *zap.Logger
	hist     *history.Run

	steps atomic.Int64

	mu       sync.RWMutex
	vars     map[string]any
	results  map[string]any
	failures []NodeFailure
}

// Execute runs g until it completes, fails, exhausts the step budget or
// times out. The graph must be freshly built or Reset. input seeds the run
// variables.
//
// Once the run has started a Result is always returned; the error is nil
// only when the run completed and equals Result.Err() otherwise.
func (e *Executor) Execute(ctx context.Context, g *graph.Graph, input map[string]any) (*Result, error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	for _, n := range g.Nodes() {
		if n.State() != graph.StatePending || n.Skipped() {
			return nil, types.Errorf(types.ErrInvalidTransition,
				"node %q is %s: reset the graph before executing it again", n.ID, n.State()).WithNode(n.ID)
		}
	}

	r := e.newRun(g, input)
	ctx = ctxkeys.WithRunID(ctx, r.id)
	if r.workflow != "" {
		ctx = ctxkeys.WithWorkflow(ctx, r.workflow)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, spanRun, trace.WithAttributes(
		attrRunID.String(r.id),
		attrWorkflow.String(r.workflow),
		attribute.Int("plangraph.nodes", g.Len()),
	))
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = ctxkeys.WithTraceID(ctx, sc.TraceID().String())
	}

	start := time.Now()
	r.logger.Info("run started",
		zap.Int("nodes", g.Len()),
		zap.Int("max_steps", e.maxSteps),
		zap.Int("parallelism", e.parallelism),
		zap.String("failure_policy", e.policy.String()))

	for _, n := range g.InitialNodes() {
		if err := g.MarkReady(n.ID); err != nil {
			return nil, err
		}
	}

	status, err := r.drive(ctx)
	res := r.result(status, err, time.Since(start))
	r.finish(ctx, span, res)
	return res, res.err
}

func (e *Executor) newRun(g *graph.Graph, input map[string]any) *run {
	id := uuid.NewString()
	vars := make(map[string]any, len(input))
	maps.Copy(vars, input)
	return &run{
		e:        e,
		id:       id,
		workflow: e.workflow,
		g:        g,
		logger:   e.logger.With(zap.String("run_id", id), zap.String("workflow", e.workflow)),
		hist:     history.NewRun(id, e.workflow),
		vars:     vars,
		results:  make(map[string]any),
	}
}

// drive is the driver loop.
func (r *run) drive(ctx context.Context) (Status, error) {
	for {
		if ctx.Err() != nil {
			return r.interrupted(ctx)
		}
		if r.g.IsComplete() {
			return StatusCompleted, nil
		}
		if r.g.IsFailed() && r.e.policy == FailFast {
			return StatusFailed, r.failedError()
		}

		ready := r.g.ReadyNodes()
		r.e.metrics.SetReadyNodes(r.workflow, len(ready))
		if len(ready) == 0 {
			if r.g.IsFailed() {
				return StatusFailed, r.failedError()
			}
			return StatusStalled, types.Errorf(types.ErrStalled,
				"no ready nodes at %.1f%% progress", r.g.Progress())
		}

		if err := r.dispatchBatch(ctx, ready); err != nil {
			return r.abort(ctx, err)
		}
	}
}

// dispatchBatch runs a set of ready nodes, sequentially or on a bounded
// worker pool.
func (r *run) dispatchBatch(ctx context.Context, ready []*graph.Node) error {
	if r.e.parallelism <= 1 || len(ready) == 1 {
		for _, n := range ready {
			if err := r.dispatch(ctx, n, 0); err != nil {
				return err
			}
			if r.e.policy == FailFast && r.g.IsFailed() {
				return nil
			}
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.e.parallelism)
	for _, n := range ready {
		eg.Go(func() error {
			return r.dispatch(egCtx, n, 0)
		})
	}
	return eg.Wait()
}

func (r *run) abort(ctx context.Context, err error) (Status, error) {
	var fe *fatalError
	if errors.As(err, &fe) {
		err = fe.err
	}
	switch {
	case errors.Is(err, ErrStepBudgetExceeded):
		return StatusBudgetExceeded, err
	case ctx.Err() != nil:
		return r.interrupted(ctx)
	default:
		return StatusFailed, err
	}
}

func (r *run) interrupted(ctx context.Context) (Status, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StatusTimeout, types.Errorf(types.ErrTimeout,
			"run exceeded its deadline after %d steps", r.steps.Load()).WithCause(ctx.Err())
	}
	return StatusCanceled, types.Errorf(types.ErrCanceled,
		"run canceled after %d steps", r.steps.Load()).WithCause(ctx.Err())
}

// takeStep charges one dispatch against the step budget.
func (r *run) takeStep(n *graph.Node) error {
	if r.steps.Add(1) > int64(r.e.maxSteps) {
		r.steps.Add(-1)
		return types.Errorf(types.ErrStepBudgetExceeded,
			"step budget of %d exhausted before dispatching %q", r.e.maxSteps, n.ID).WithNode(n.ID)
	}
	return nil
}

// dispatch runs a Ready node. A node failure is recorded in the graph and
// does not return an error; the returned error aborts the run.
func (r *run) dispatch(ctx context.Context, n *graph.Node, iteration int) error {
	if err := r.takeStep(n); err != nil {
		return err
	}
	if err := r.g.MarkRunning(n.ID); err != nil {
		return err
	}

	nodeType := string(n.Type())
	ctx = ctxkeys.WithNodeID(ctx, n.ID)
	ctx, span := r.e.tracer.Start(ctx, spanNode, trace.WithAttributes(
		attrNodeID.String(n.ID),
		attrNodeType.String(nodeType),
		attrIteration.Int(iteration),
	))
	defer span.End()

	rec := r.hist.RecordNodeStart(n.ID, nodeType, iteration)
	start := time.Now()
	r.logger.Debug("dispatching node",
		zap.String("node_id", n.ID),
		zap.String("node_type", nodeType),
		zap.Int("iteration", iteration))

	var (
		result any
		err    error
	)
	switch kind := n.Kind.(type) {
	case graph.Task:
		result, err = r.runTask(ctx, n, kind, iteration)
	case graph.Decision:
		result, err = r.runDecision(n, kind, iteration)
	case graph.Loop:
		result, err = r.runLoop(ctx, n, kind)
	default:
		err = types.Errorf(types.ErrInvalidNode, "node %q has unsupported type %q", n.ID, nodeType).WithNode(n.ID)
	}
	duration := time.Since(start)

	status := string(history.StatusCompleted)
	var fe *fatalError
	switch {
	case errors.As(err, &fe):
		status = "interrupted"
		span.RecordError(fe.err)
		span.SetStatus(codes.Error, fe.err.Error())
		r.hist.RecordNodeEnd(rec, nil, fe.err)
		r.logger.Warn("node interrupted",
			zap.String("node_id", n.ID),
			zap.Duration("duration", duration),
			zap.Error(fe.err))
	case err != nil:
		status = string(history.StatusFailed)
		if ferr := r.g.FailNode(n.ID, err.Error()); ferr != nil {
			return fatal(ferr)
		}
		r.recordFailure(n.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.hist.RecordNodeEnd(rec, nil, err)
		r.logger.Error("node failed",
			zap.String("node_id", n.ID),
			zap.String("node_type", nodeType),
			zap.Duration("duration", duration),
			zap.Error(err))
	default:
		r.hist.RecordNodeEnd(rec, result, nil)
		r.logger.Debug("node completed",
			zap.String("node_id", n.ID),
			zap.Duration("duration", duration))
	}

	r.e.metrics.RecordNode(nodeType, status, duration)
	r.e.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node.type", nodeType),
		attribute.String("status", status)))

	if fe != nil {
		return fe
	}
	return nil
}

// scope builds the variables visible to conditions and delegates: the run
// variables, node results under "results" and the current loop iteration.
func (r *run) scope(iteration int) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vars := make(map[string]any, len(r.vars)+2)
	maps.Copy(vars, r.vars)
	vars["results"] = maps.Clone(r.results)
	vars["loop_iteration"] = iteration
	return vars
}

// publish records a node result and merges the variables it set.
func (r *run) publish(nodeID string, value any, set map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[nodeID] = value
	maps.Copy(r.vars, set)
}

func (r *run) recordFailure(nodeID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, NodeFailure{NodeID: nodeID, Err: err})
}

func (r *run) failedError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	failures := make([]NodeFailure, len(r.failures))
	copy(failures, r.failures)
	return &NodeFailedError{Failures: failures}
}

func (r *run) result(status Status, err error, duration time.Duration) *Result {
	res := &Result{
		RunID:    r.id,
		Workflow: r.workflow,
		Status:   status,
		Steps:    int(r.steps.Load()),
		Outputs:  make(map[string]any),
		Nodes:    r.g.Snapshot(),
		Progress: r.g.Progress(),
		Duration: duration,
		History:  r.hist,
		err:      err,
	}
	if err != nil {
		res.Error = err.Error()
	}

	r.mu.RLock()
	res.Variables = maps.Clone(r.vars)
	r.mu.RUnlock()

	for _, n := range r.g.Nodes() {
		switch {
		case n.State() == graph.StateCompleted:
			res.Outputs[n.ID] = n.Result()
		case n.State() == graph.StateFailed:
			res.FailedNodes = append(res.FailedNodes, n.ID)
		}
	}
	return res
}

// finish records the run outcome in history, metrics, the run span and the
// log.
func (r *run) finish(ctx context.Context, span trace.Span, res *Result) {
	for _, n := range r.g.Nodes() {
		if n.Skipped() {
			r.hist.RecordSkipped(n.ID, string(n.Type()))
		}
	}
	r.hist.Complete(history.Status(res.Status), res.Steps, res.err)

	if r.e.history != nil {
		if err := r.e.history.Save(context.WithoutCancel(ctx), r.hist); err != nil {
			r.logger.Warn("failed to save run history", zap.Error(err))
		}
	}

	r.e.metrics.RecordRun(r.workflow, res.Status, res.Steps, res.Duration)

	span.SetAttributes(
		attrStatus.String(string(res.Status)),
		attrSteps.Int(res.Steps),
	)
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.Error)
		r.logger.Error("run finished",
			zap.String("status", string(res.Status)),
			zap.Int("steps", res.Steps),
			zap.Strings("failed_nodes", res.FailedNodes),
			zap.Duration("duration", res.Duration),
			zap.Error(res.err))
		return
	}
	span.SetStatus(codes.Ok, "")
	r.logger.Info("run finished",
		zap.String("status", string(res.Status)),
		zap.Int("steps", res.Steps),
		zap.Float64("progress", res.Progress),
		zap.Duration("duration", res.Duration))
}
