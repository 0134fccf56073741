package dsl

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/plangraph/delegate"
	"github.com/BaSui01/plangraph/graph"
	"github.com/BaSui01/plangraph/types"
)

// Plan is a parsed, validated plan ready for execution.
type Plan struct {
	Name        string
	Description string
	Version     string
	Graph       *graph.Graph
	// Delegates resolves the plan's own delegates first, then the
	// parser's registry.
	Delegates *delegate.Registry
	Variables map[string]VariableDef
	Metadata  map[string]any
}

// Inputs merges input over the declared variable defaults and checks that
// every required variable is present.
func (p *Plan) Inputs(input map[string]any) (map[string]any, error) {
	vars := make(map[string]any, len(p.Variables)+len(input))
	for name, def := range p.Variables {
		if def.Default != nil {
			vars[name] = def.Default
		}
	}
	maps.Copy(vars, input)

	for _, name := range sortedKeys(p.Variables) {
		if _, ok := vars[name]; !ok && p.Variables[name].Required {
			return nil, types.Errorf(types.ErrMissingVariable, "required variable %q not provided", name)
		}
	}
	return vars, nil
}

// Parser turns plan documents into executable graphs.
type Parser struct {
	registry *delegate.Registry
	logger   *zap.Logger

	onRetry   func(delegateName string, attempt int, err error)
	onBreaker func(delegate.CircuitBreakerEvent)
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRetryHook is called before every retry of a plan delegate.
func WithRetryHook(fn func(delegateName string, attempt int, err error)) ParserOption {
	return func(p *Parser) { p.onRetry = fn }
}

// WithBreakerHook receives the state changes of plan delegate circuit
// breakers.
func WithBreakerHook(fn func(delegate.CircuitBreakerEvent)) ParserOption {
	return func(p *Parser) { p.onBreaker = fn }
}

// NewParser creates a parser that resolves delegates through registry. A
// nil registry gets one holding the builtin delegates.
func NewParser(registry *delegate.Registry, logger *zap.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = delegate.NewRegistry(logger)
		_ = delegate.RegisterBuiltins(registry)
	}
	p := &Parser{
		registry: registry,
		logger:   logger.With(zap.String("component", "dsl_parser")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads and parses a plan file.
func (p *Parser) ParseFile(filename string) (*Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return p.Parse(data)
}

// Parse parses a YAML or JSON plan document.
func (p *Parser) Parse(data []byte) (*Plan, error) {
	var def PlanDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, types.NewError(types.ErrInvalidPlan, "parse plan").WithCause(err)
	}
	return p.Build(&def)
}

// Build validates def and constructs its graph through the graph
// construction API.
func (p *Parser) Build(def *PlanDef) (*Plan, error) {
	if errs := NewValidator(p.registry).Validate(def); len(errs) > 0 {
		return nil, types.Errorf(types.ErrInvalidPlan, "plan %q has %d validation error(s)", def.Name, len(errs)).
			WithCause(errors.Join(errs...))
	}

	delegates, err := p.buildDelegates(def)
	if err != nil {
		return nil, err
	}

	g, err := p.buildGraph(def)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidPlan, "plan %q", def.Name).WithCause(err)
	}
	if err := g.Validate(); err != nil {
		return nil, types.Errorf(types.ErrInvalidPlan, "plan %q", def.Name).WithCause(err)
	}

	version := def.Version
	if version == "" {
		version = "1"
	}
	p.logger.Debug("plan built",
		zap.String("workflow", def.Name),
		zap.Int("nodes", g.Len()),
		zap.Int("delegates", len(def.Delegates)))

	return &Plan{
		Name:        def.Name,
		Description: def.Description,
		Version:     version,
		Graph:       g,
		Delegates:   delegates,
		Variables:   def.Variables,
		Metadata:    def.Metadata,
	}, nil
}

func (p *Parser) buildDelegates(def *PlanDef) (*delegate.Registry, error) {
	scope := p.registry.Scope()
	for _, name := range sortedKeys(def.Delegates) {
		dd := def.Delegates[name]
		base, err := p.registry.Resolve(dd.Type)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidPlan, "delegate %q", name).WithCause(err)
		}

		chain := delegate.NewChain()
		if dd.RateLimit != nil {
			chain.Use(delegate.WithRateLimit(dd.RateLimit.RPS, dd.RateLimit.Burst))
		}
		if dd.CircuitBreaker != nil {
			cb := delegate.NewCircuitBreaker(name, *dd.CircuitBreaker, p.onBreaker, p.logger)
			chain.Use(delegate.WithCircuitBreaker(cb))
		}
		if dd.Retry != nil {
			policy := *dd.Retry
			if p.onRetry != nil {
				policy.OnRetry = func(attempt int, err error, _ time.Duration) {
					p.onRetry(name, attempt, err)
				}
			}
			chain.Use(delegate.WithRetry(policy, p.logger))
		}
		chain.Use(delegate.WithTimeout(dd.Timeout))
		chain.Use(delegate.WithDefaults(dd.Params))

		if err := scope.Register(name, chain.Then(base)); err != nil {
			return nil, types.Errorf(types.ErrInvalidPlan, "delegate %q", name).WithCause(err)
		}
	}
	return scope, nil
}

func (p *Parser) buildGraph(def *PlanDef) (*graph.Graph, error) {
	g := graph.New()

	for _, nd := range def.Nodes {
		opts := []graph.NodeOption{graph.WithDescription(nd.Description)}
		if nd.Name != "" {
			opts = append(opts, graph.WithName(nd.Name))
		}
		for k, v := range nd.Params {
			opts = append(opts, graph.WithMetadata(k, v))
		}

		var n *graph.Node
		switch nd.kind() {
		case NodeDecision:
			n = graph.NewDecision(nd.ID, nd.Condition, maps.Clone(nd.Branches), opts...)
		case NodeLoop:
			n = graph.NewLoop(nd.ID, graph.Loop{
				Body:          nd.Body,
				Condition:     nd.Condition,
				MaxIterations: nd.MaxIterations,
			}, opts...)
		default:
			n = graph.NewTask(nd.ID, nd.Delegate, opts...)
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}

	for _, nd := range def.Nodes {
		var targets []string
		if nd.kind() == NodeLoop && nd.Body != "" {
			targets = append(targets, nd.Body)
		}
		targets = append(targets, nd.Next...)
		if nd.kind() == NodeDecision {
			for _, label := range sortedKeys(nd.Branches) {
				targets = append(targets, nd.Branches[label])
			}
		}
		for _, target := range targets {
			if err := g.AddEdge(nd.ID, target); err != nil {
				return nil, fmt.Errorf("edge %s -> %s: %w", nd.ID, target, err)
			}
		}
	}
	return g, nil
}
