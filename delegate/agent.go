package delegate

import (
	"context"
	"fmt"
)

// AgentExecutor is the slice of an agent the executor needs. It lets a plan
// call agents without this package depending on an agent implementation.
type AgentExecutor interface {
	Execute(ctx context.Context, input any) (any, error)
	ID() string
	Name() string
}

// AgentDelegate runs an agent as a task delegate.
type AgentDelegate struct {
	agent        AgentExecutor
	inputMapper  func(Request) (any, error)
	outputMapper func(any) (any, error)
}

// AgentOption configures an AgentDelegate.
type AgentOption func(*AgentDelegate)

// WithInputMapper replaces the default input mapping.
func WithInputMapper(mapper func(Request) (any, error)) AgentOption {
	return func(a *AgentDelegate) { a.inputMapper = mapper }
}

// WithOutputMapper transforms the agent output before it becomes the node
// result.
func WithOutputMapper(mapper func(any) (any, error)) AgentOption {
	return func(a *AgentDelegate) { a.outputMapper = mapper }
}

// NewAgentDelegate wraps agent. By default the agent receives the node's
// "input" parameter, or the run variables when the node has none.
func NewAgentDelegate(agent AgentExecutor, opts ...AgentOption) *AgentDelegate {
	a := &AgentDelegate{
		agent:       agent,
		inputMapper: defaultAgentInput,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultAgentInput(req Request) (any, error) {
	if in, ok := req.Params["input"]; ok {
		return in, nil
	}
	return req.Vars, nil
}

// Execute implements Delegate.
func (a *AgentDelegate) Execute(ctx context.Context, req Request) (any, error) {
	input, err := a.inputMapper(req)
	if err != nil {
		return nil, fmt.Errorf("agent %s input mapping: %w", a.agent.ID(), err)
	}

	output, err := a.agent.Execute(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.agent.ID(), err)
	}

	if a.outputMapper != nil {
		output, err = a.outputMapper(output)
		if err != nil {
			return nil, fmt.Errorf("agent %s output mapping: %w", a.agent.ID(), err)
		}
	}
	return output, nil
}

// AgentID returns the wrapped agent's ID.
func (a *AgentDelegate) AgentID() string {
	return a.agent.ID()
}

// RegisterAgents registers each agent under its Name.
func (r *Registry) RegisterAgents(agents ...AgentExecutor) error {
	for _, ag := range agents {
		if err := r.Register(ag.Name(), NewAgentDelegate(ag)); err != nil {
			return err
		}
	}
	return nil
}
