package dsl

import (
	"fmt"
	"sort"

	"github.com/BaSui01/plangraph/delegate"
)

// ValidationError reports one problem in a plan document.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// Validator checks a plan document before it is built. Unlike
// graph.Validate it reports every problem it finds.
type Validator struct {
	registry *delegate.Registry
}

// NewValidator creates a validator. When registry is not nil, delegate
// references are checked against it.
func NewValidator(registry *delegate.Registry) *Validator {
	return &Validator{registry: registry}
}

var variableTypes = map[string]bool{
	"": true, "string": true, "int": true, "float": true, "bool": true, "list": true, "map": true,
}

// Validate returns all problems found in def.
func (v *Validator) Validate(def *PlanDef) []error {
	var errs []error
	add := func(path, format string, args ...any) {
		errs = append(errs, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if def.Version != "" && def.Version != "1" {
		add("version", "unsupported version %q", def.Version)
	}
	if def.Name == "" {
		add("name", "is required")
	}
	if len(def.Nodes) == 0 {
		add("nodes", "at least one node is required")
	}

	for _, name := range sortedKeys(def.Variables) {
		vd := def.Variables[name]
		path := "variables." + name
		if !variableTypes[vd.Type] {
			add(path, "invalid type %q", vd.Type)
			continue
		}
		if vd.Default != nil && !matchesType(vd.Type, vd.Default) {
			add(path, "default %v is not a %s", vd.Default, vd.Type)
		}
	}

	for _, name := range sortedKeys(def.Delegates) {
		dd := def.Delegates[name]
		path := "delegates." + name
		switch {
		case dd.Type == "":
			add(path, "type is required")
		case v.registry != nil:
			if _, err := v.registry.Resolve(dd.Type); err != nil {
				add(path, "type %q is not a registered delegate", dd.Type)
			}
		}
		if dd.Timeout < 0 {
			add(path+".timeout", "must not be negative")
		}
		if dd.Retry != nil && dd.Retry.MaxRetries < 0 {
			add(path+".retry.max_retries", "must not be negative")
		}
		if dd.RateLimit != nil && dd.RateLimit.RPS <= 0 {
			add(path+".rate_limit.rps", "must be positive")
		}
		if dd.CircuitBreaker != nil && dd.CircuitBreaker.FailureThreshold < 0 {
			add(path+".circuit_breaker.failure_threshold", "must not be negative")
		}
	}

	ids := make(map[string]bool, len(def.Nodes))
	for i, n := range def.Nodes {
		if n.ID == "" {
			add(fmt.Sprintf("nodes[%d]", i), "id is required")
			continue
		}
		if ids[n.ID] {
			add(fmt.Sprintf("nodes[%d]", i), "duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}

	for i, n := range def.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if n.ID != "" {
			path = "nodes." + n.ID
		}
		v.validateNode(def, n, ids, func(format string, args ...any) { add(path, format, args...) })
	}
	return errs
}

func (v *Validator) validateNode(def *PlanDef, n NodeDef, ids map[string]bool, add func(string, ...any)) {
	for _, next := range n.Next {
		if !ids[next] {
			add("next node %q does not exist", next)
		}
		if next == n.ID {
			add("node cannot be its own successor")
		}
	}

	switch n.kind() {
	case NodeTask:
		name := n.Delegate
		if name == "" {
			name = n.ID
		}
		if _, ok := def.Delegates[name]; ok {
			break
		}
		if v.registry != nil {
			if _, err := v.registry.Resolve(name); err != nil {
				add("delegate %q is not defined", name)
			}
		}

	case NodeDecision:
		if n.Condition == "" {
			add("decision requires a condition")
		} else if _, err := Compile(n.Condition); err != nil {
			add("invalid condition: %v", err)
		}
		if len(n.Branches) == 0 {
			add("decision requires at least one branch")
		}
		for _, label := range sortedKeys(n.Branches) {
			if target := n.Branches[label]; !ids[target] {
				add("branch %q target %q does not exist", label, target)
			}
		}

	case NodeLoop:
		if n.MaxIterations < 1 {
			add("max_iterations must be at least 1")
		}
		if n.Condition != "" {
			if _, err := Compile(n.Condition); err != nil {
				add("invalid condition: %v", err)
			}
		}
		switch {
		case n.Body != "" && !ids[n.Body]:
			add("body %q does not exist", n.Body)
		case n.Body == "" && len(n.Next) == 0:
			add("loop requires a body or at least one successor")
		}

	default:
		add("invalid type %q", n.Type)
	}
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "int":
		switch v.(type) {
		case int, int64, uint64:
			return true
		case float64:
			f := v.(float64)
			return f == float64(int64(f))
		}
		return false
	case "float":
		_, ok := toFloat64(v)
		_, isString := v.(string)
		return ok && !isString
	case "bool":
		_, ok := v.(bool)
		return ok
	case "list":
		_, ok := v.([]any)
		return ok
	case "map":
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
