package dsl

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Evaluator evaluates condition expressions for decision and loop nodes.
// Implementations must be pure: the same expression and variables always
// produce the same outcome, and evaluation never mutates vars.
type Evaluator interface {
	Evaluate(expr string, vars map[string]any) (Outcome, error)
}

// EvaluatorFunc adapts a function to an Evaluator.
type EvaluatorFunc func(expr string, vars map[string]any) (Outcome, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(expr string, vars map[string]any) (Outcome, error) {
	return f(expr, vars)
}

// Outcome is the value an expression produced. Loops read it as a boolean,
// decisions as a branch label.
type Outcome struct {
	value any
}

// NewOutcome wraps a raw value.
func NewOutcome(v any) Outcome {
	return Outcome{value: v}
}

// Value returns the raw value.
func (o Outcome) Value() any {
	return o.value
}

// Bool returns the truthiness of the value: false, nil, 0, "", "false" and
// "0" are false; everything else is true.
func (o Outcome) Bool() bool {
	return truthy(o.value)
}

// Label renders the value as a branch label. Booleans become "true" or
// "false", whole numbers drop their fraction, nil becomes "".
func (o Outcome) Label() string {
	switch v := o.value.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// exprEvaluator is the default Evaluator. Compiled expressions are cached.
type exprEvaluator struct {
	cache sync.Map // string -> *Expr
}

// NewEvaluator returns the default expression evaluator. See Compile for
// the grammar.
func NewEvaluator() Evaluator {
	return &exprEvaluator{}
}

// Evaluate implements Evaluator. An empty expression yields a nil outcome.
func (e *exprEvaluator) Evaluate(expr string, vars map[string]any) (Outcome, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Outcome{}, nil
	}

	var compiled *Expr
	if c, ok := e.cache.Load(expr); ok {
		compiled = c.(*Expr)
	} else {
		var err error
		compiled, err = Compile(expr)
		if err != nil {
			return Outcome{}, err
		}
		e.cache.Store(expr, compiled)
	}
	return compiled.Eval(vars)
}
