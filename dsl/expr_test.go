package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/plangraph/types"
)

// =============================================================================
// Evaluator
// =============================================================================

func TestEvaluator_Bool(t *testing.T) {
	eval := NewEvaluator()

	tests := []struct {
		name     string
		expr     string
		vars     map[string]any
		expected bool
	}{
		// --- comparison ---
		{name: "greater than true", expr: `score > 0.8`, vars: map[string]any{"score": 0.9}, expected: true},
		{name: "greater than false", expr: `score > 0.8`, vars: map[string]any{"score": 0.5}},
		{name: "equal string", expr: `status == "active"`, vars: map[string]any{"status": "active"}, expected: true},
		{name: "single quoted string", expr: `status == 'active'`, vars: map[string]any{"status": "active"}, expected: true},
		{name: "not equal", expr: `count != 0`, vars: map[string]any{"count": 5}, expected: true},
		{name: "greater or equal", expr: `count >= 10`, vars: map[string]any{"count": 10}, expected: true},
		{name: "less or equal false", expr: `count <= 5`, vars: map[string]any{"count": 6}},
		{name: "int against float", expr: `loop_iteration < 3`, vars: map[string]any{"loop_iteration": 2}, expected: true},
		{name: "int64 variable", expr: `n == 7`, vars: map[string]any{"n": int64(7)}, expected: true},
		{name: "numeric string", expr: `n > 9`, vars: map[string]any{"n": "10"}, expected: true},

		// --- logic ---
		{name: "and both true", expr: `a && b`, vars: map[string]any{"a": true, "b": true}, expected: true},
		{name: "and one false", expr: `a && b`, vars: map[string]any{"a": true, "b": false}},
		{name: "or one true", expr: `a || b`, vars: map[string]any{"a": false, "b": true}, expected: true},
		{name: "not", expr: `!done`, vars: map[string]any{"done": false}, expected: true},
		{name: "double not", expr: `!!x`, vars: map[string]any{"x": "yes"}, expected: true},
		{name: "precedence", expr: `a || b && c`, vars: map[string]any{"a": true, "b": false, "c": false}, expected: true},
		{name: "parentheses", expr: `(a || b) && c`, vars: map[string]any{"a": true, "b": false, "c": false}},

		// --- arithmetic ---
		{name: "addition", expr: `loop_iteration + 1 == 3`, vars: map[string]any{"loop_iteration": 2}, expected: true},
		{name: "product before sum", expr: `1 + 2 * 3 == 7`, expected: true},
		{name: "modulo", expr: `n % 2 == 0`, vars: map[string]any{"n": 4}, expected: true},
		{name: "unary minus", expr: `-x < 0`, vars: map[string]any{"x": 3}, expected: true},
		{name: "negative literal", expr: `x > -1`, vars: map[string]any{"x": 0}, expected: true},

		// --- access ---
		{
			name:     "dot access",
			expr:     `result.score >= 0.7`,
			vars:     map[string]any{"result": map[string]any{"score": 0.75}},
			expected: true,
		},
		{
			name:     "bracket access with hyphenated key",
			expr:     `results["fetch-data"] == "ok"`,
			vars:     map[string]any{"results": map[string]any{"fetch-data": "ok"}},
			expected: true,
		},
		{
			name:     "list index",
			expr:     `items[1] == "b"`,
			vars:     map[string]any{"items": []any{"a", "b"}},
			expected: true,
		},
		{
			name: "missing field is null",
			expr: `result.missing.deeper == null`,
			vars: map[string]any{"result": map[string]any{}}, expected: true,
		},
		{name: "out of range index is null", expr: `items[5]`, vars: map[string]any{"items": []any{1}}},

		// --- literals and null ---
		{name: "true literal", expr: `true`, expected: true},
		{name: "zero is false", expr: `0`},
		{name: "undefined variable is false", expr: `missing`},
		{name: "null sorts first", expr: `missing < 1`, expected: true},
		{name: "null equals null", expr: `missing == nil`, expected: true},
		{name: "string zero is false", expr: `flag`, vars: map[string]any{"flag": "0"}},

		// --- short circuit ---
		{name: "and skips division by zero", expr: `false && 1 / 0`},
		{name: "or skips division by zero", expr: `true || 1 / 0`, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := eval.Evaluate(tt.expr, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.Bool())
		})
	}
}

func TestEvaluator_Label(t *testing.T) {
	eval := NewEvaluator()

	tests := []struct {
		expr string
		vars map[string]any
		want string
	}{
		{expr: `score > 0.5`, vars: map[string]any{"score": 0.9}, want: "true"},
		{expr: `score > 0.5`, vars: map[string]any{"score": 0.1}, want: "false"},
		{expr: `category`, vars: map[string]any{"category": "billing"}, want: "billing"},
		{expr: `tier + 1`, vars: map[string]any{"tier": 2}, want: "3"},
		{expr: `ratio`, vars: map[string]any{"ratio": 0.25}, want: "0.25"},
		{expr: `count`, vars: map[string]any{"count": 4}, want: "4"},
		{expr: `"a" + 1`, want: "a1"},
		{expr: `missing`, want: ""},
	}
	for _, tt := range tests {
		out, err := eval.Evaluate(tt.expr, tt.vars)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, out.Label(), tt.expr)
	}
}

func TestEvaluator_EmptyExpression(t *testing.T) {
	out, err := NewEvaluator().Evaluate("   ", nil)
	require.NoError(t, err)
	assert.Nil(t, out.Value())
	assert.False(t, out.Bool())
	assert.Equal(t, "", out.Label())
}

func TestEvaluator_Errors(t *testing.T) {
	eval := NewEvaluator()

	tests := []struct {
		name string
		expr string
		vars map[string]any
	}{
		{name: "unterminated string", expr: `status == "active`},
		{name: "missing closing paren", expr: `(a && b`},
		{name: "missing closing bracket", expr: `items[0`},
		{name: "trailing token", expr: `a b`},
		{name: "dangling operator", expr: `a ==`},
		{name: "bad character", expr: `a # b`},
		{name: "single ampersand", expr: `a & b`},
		{name: "dot without field", expr: `a.`},
		{name: "division by zero", expr: `1 / 0`},
		{name: "arithmetic on bool", expr: `true * 2`},
		{name: "negate string", expr: `-name`, vars: map[string]any{"name": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.Evaluate(tt.expr, tt.vars)
			require.Error(t, err)
			assert.Equal(t, types.ErrEvaluation, types.GetErrorCode(err))
		})
	}
}

func TestEvaluator_IsPure(t *testing.T) {
	eval := NewEvaluator()
	vars := map[string]any{"a": 1, "nested": map[string]any{"b": 2}}

	first, err := eval.Evaluate(`a + nested.b`, vars)
	require.NoError(t, err)
	second, err := eval.Evaluate(`a + nested.b`, vars)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3.0, first.Value())
	assert.Equal(t, map[string]any{"a": 1, "nested": map[string]any{"b": 2}}, vars)
}

func TestEvaluatorFunc(t *testing.T) {
	var gotExpr string
	eval := EvaluatorFunc(func(expr string, _ map[string]any) (Outcome, error) {
		gotExpr = expr
		return NewOutcome(true), nil
	})
	out, err := eval.Evaluate("anything", nil)
	require.NoError(t, err)
	assert.True(t, out.Bool())
	assert.Equal(t, "anything", gotExpr)
}

// =============================================================================
// Compile / tokenize
// =============================================================================

func TestCompile(t *testing.T) {
	e, err := Compile(`results.check == "true"`)
	require.NoError(t, err)
	assert.Equal(t, `results.check == "true"`, e.String())

	_, err = Compile("")
	assert.Error(t, err)
}

func TestTokenize(t *testing.T) {
	tokens, err := tokenize(`a.b[0] >= -1.5 && !c`)
	require.NoError(t, err)

	var kinds []tokenKind
	var values []string
	for _, tk := range tokens {
		kinds = append(kinds, tk.kind)
		values = append(values, tk.value)
	}
	assert.Equal(t, []string{"a", ".", "b", "[", "0", "]", ">=", "-", "1.5", "&&", "!", "c"}, values)
	assert.Equal(t, []tokenKind{
		tkIdent, tkDot, tkIdent, tkLBracket, tkNumber, tkRBracket,
		tkOp, tkOp, tkNumber, tkOp, tkOp, tkIdent,
	}, kinds)

	tokens, err = tokenize(`"say \"hi\""`)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, `say "hi"`, tokens[0].value)
}
