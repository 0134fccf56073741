package dsl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/BaSui01/plangraph/types"
)

// Expr is a compiled condition expression.
//
// Grammar, loosest binding first:
//
//	or      = and { "||" and }
//	and     = cmp { "&&" cmp }
//	cmp     = sum [ ("==" | "!=" | ">" | "<" | ">=" | "<=") sum ]
//	sum     = product { ("+" | "-") product }
//	product = unary { ("*" | "/" | "%") unary }
//	unary   = ("!" | "-") unary | postfix
//	postfix = primary { "." ident | "[" or "]" }
//	primary = number | string | true | false | null | ident | "(" or ")"
//
// Strings use single or double quotes. An unknown identifier or a missing
// key evaluates to null; null sorts before every other value. && and ||
// short-circuit and yield booleans.
type Expr struct {
	src  string
	root exprNode
}

// Compile parses expr.
func Compile(expr string) (*Expr, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, evalError(expr, err)
	}
	if len(tokens) == 0 {
		return nil, evalError(expr, fmt.Errorf("empty expression"))
	}
	p := &exprParser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, evalError(expr, err)
	}
	if p.pos < len(p.tokens) {
		return nil, evalError(expr, fmt.Errorf("unexpected token %q", p.tokens[p.pos].value))
	}
	return &Expr{src: expr, root: root}, nil
}

// String returns the source text.
func (e *Expr) String() string {
	return e.src
}

// Eval evaluates the expression against vars.
func (e *Expr) Eval(vars map[string]any) (Outcome, error) {
	v, err := e.root.eval(vars)
	if err != nil {
		return Outcome{}, evalError(e.src, err)
	}
	return Outcome{value: v}, nil
}

func evalError(expr string, err error) error {
	return types.Errorf(types.ErrEvaluation, "expression %q", expr).WithCause(err)
}

// --- tokens ---

type tokenKind int

const (
	tkNumber tokenKind = iota
	tkString
	tkIdent
	tkOp
	tkLParen
	tkRParen
	tkLBracket
	tkRBracket
	tkDot
)

type token struct {
	kind  tokenKind
	value string
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)

	for i := 0; i < len(runes); {
		ch := runes[i]
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '(':
			tokens = append(tokens, token{tkLParen, "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{tkRParen, ")"})
			i++
		case ch == '[':
			tokens = append(tokens, token{tkLBracket, "["})
			i++
		case ch == ']':
			tokens = append(tokens, token{tkRBracket, "]"})
			i++
		case ch == '.' && !(i+1 < len(runes) && isDigit(runes[i+1])):
			tokens = append(tokens, token{tkDot, "."})
			i++
		case ch == '"' || ch == '\'':
			s, n, err := readString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tkString, s})
			i = n
		case isDigit(ch) || ch == '.':
			num, n := readNumber(runes, i)
			tokens = append(tokens, token{tkNumber, num})
			i = n
		case isIdentStart(ch):
			n := i
			for n < len(runes) && isIdentPart(runes[n]) {
				n++
			}
			tokens = append(tokens, token{tkIdent, string(runes[i:n])})
			i = n
		default:
			if i+1 < len(runes) {
				switch two := string(runes[i : i+2]); two {
				case "==", "!=", ">=", "<=", "&&", "||":
					tokens = append(tokens, token{tkOp, two})
					i += 2
					continue
				}
			}
			if strings.ContainsRune("><!+-*/%", ch) {
				tokens = append(tokens, token{tkOp, string(ch)})
				i++
				continue
			}
			return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), i)
		}
	}
	return tokens, nil
}

func readString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var sb strings.Builder
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
			}
		case quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteRune(runes[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func readNumber(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && isDigit(runes[i]) {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		i++
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
	}
	return string(runes[start:i]), i
}

func isDigit(ch rune) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch rune) bool { return unicode.IsLetter(ch) || ch == '_' }
func isIdentPart(ch rune) bool  { return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' }

// --- parser ---

type exprParser struct {
	tokens []token
	pos    int
}

func (p *exprParser) peek() *token {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return nil
}

func (p *exprParser) peekOp(ops ...string) (string, bool) {
	t := p.peek()
	if t == nil || t.kind != tkOp {
		return "", false
	}
	for _, op := range ops {
		if t.value == op {
			return op, true
		}
	}
	return "", false
}

func (p *exprParser) expect(kind tokenKind, what string) error {
	t := p.peek()
	if t == nil || t.kind != kind {
		return fmt.Errorf("expected %s", what)
	}
	p.pos++
	return nil
}

func (p *exprParser) binaryLevel(next func() (exprNode, error), ops ...string) (exprNode, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp(ops...)
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *exprParser) parseOr() (exprNode, error) {
	return p.binaryLevel(p.parseAnd, "||")
}

func (p *exprParser) parseAnd() (exprNode, error) {
	return p.binaryLevel(p.parseComparison, "&&")
}

func (p *exprParser) parseComparison() (exprNode, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekOp("==", "!=", ">", "<", ">=", "<=")
	if !ok {
		return left, nil
	}
	p.pos++
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: op, left: left, right: right}, nil
}

func (p *exprParser) parseSum() (exprNode, error) {
	return p.binaryLevel(p.parseProduct, "+", "-")
}

func (p *exprParser) parseProduct() (exprNode, error) {
	return p.binaryLevel(p.parseUnary, "*", "/", "%")
}

func (p *exprParser) parseUnary() (exprNode, error) {
	if op, ok := p.peekOp("!", "-"); ok {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (exprNode, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case t != nil && t.kind == tkDot:
			p.pos++
			name := p.peek()
			if name == nil || name.kind != tkIdent {
				return nil, fmt.Errorf("expected field name after '.'")
			}
			p.pos++
			x = &indexNode{target: x, key: &literalNode{value: name.value}}
		case t != nil && t.kind == tkLBracket:
			p.pos++
			key, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tkRBracket, "']'"); err != nil {
				return nil, err
			}
			x = &indexNode{target: x, key: key}
		default:
			return x, nil
		}
	}
}

func (p *exprParser) parsePrimary() (exprNode, error) {
	t := p.peek()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	p.pos++

	switch t.kind {
	case tkNumber:
		f, err := strconv.ParseFloat(t.value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.value)
		}
		return &literalNode{value: f}, nil
	case tkString:
		return &literalNode{value: t.value}, nil
	case tkIdent:
		switch t.value {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null", "nil":
			return &literalNode{value: nil}, nil
		}
		return &identNode{name: t.value}, nil
	case tkLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tkRParen, "closing parenthesis"); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", t.value)
	}
}

// --- evaluation ---

type exprNode interface {
	eval(vars map[string]any) (any, error)
}

type literalNode struct{ value any }

func (n *literalNode) eval(map[string]any) (any, error) { return n.value, nil }

type identNode struct{ name string }

func (n *identNode) eval(vars map[string]any) (any, error) { return vars[n.name], nil }

type indexNode struct {
	target exprNode
	key    exprNode
}

func (n *indexNode) eval(vars map[string]any) (any, error) {
	target, err := n.target.eval(vars)
	if err != nil {
		return nil, err
	}
	key, err := n.key.eval(vars)
	if err != nil {
		return nil, err
	}
	return lookup(target, key), nil
}

// lookup indexes maps by key and slices by position; anything else yields
// nil.
func lookup(target, key any) any {
	switch t := target.(type) {
	case map[string]any:
		return t[fmt.Sprint(key)]
	case map[string]string:
		if v, ok := t[fmt.Sprint(key)]; ok {
			return v
		}
		return nil
	case map[string]int:
		if v, ok := t[fmt.Sprint(key)]; ok {
			return v
		}
		return nil
	case []any:
		if i, ok := index(key, len(t)); ok {
			return t[i]
		}
	case []string:
		if i, ok := index(key, len(t)); ok {
			return t[i]
		}
	}
	return nil
}

func index(key any, n int) (int, bool) {
	f, ok := toFloat64(key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	i := int(f)
	return i, i >= 0 && i < n
}

type unaryNode struct {
	op string
	x  exprNode
}

func (n *unaryNode) eval(vars map[string]any) (any, error) {
	v, err := n.x.eval(vars)
	if err != nil {
		return nil, err
	}
	if n.op == "!" {
		return !truthy(v), nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return nil, fmt.Errorf("cannot negate %T", v)
	}
	return -f, nil
}

type binaryNode struct {
	op          string
	left, right exprNode
}

func (n *binaryNode) eval(vars map[string]any) (any, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "&&":
		if !truthy(left) {
			return false, nil
		}
		right, err := n.right.eval(vars)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "||":
		if truthy(left) {
			return true, nil
		}
		right, err := n.right.eval(vars)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	right, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "==", "!=", ">", "<", ">=", "<=":
		return compare(left, n.op, right), nil
	default:
		return arithmetic(left, n.op, right)
	}
}

func arithmetic(left any, op string, right any) (any, error) {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		if op == "+" {
			ls, lstr := left.(string)
			rs, rstr := right.(string)
			if lstr || rstr {
				return stringify(left, ls, lstr) + stringify(right, rs, rstr), nil
			}
		}
		return nil, fmt.Errorf("operator %s needs numbers, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

func stringify(v any, s string, isString bool) string {
	if isString {
		return s
	}
	return Outcome{value: v}.Label()
}

// compare orders numbers numerically and everything else by its string
// form. null equals only null and sorts first.
func compare(left any, op string, right any) bool {
	if left == nil || right == nil {
		var c int
		switch {
		case left == nil && right == nil:
			c = 0
		case left == nil:
			c = -1
		default:
			c = 1
		}
		return ordered(c, op)
	}

	if lf, ok := toFloat64(left); ok {
		if rf, ok := toFloat64(right); ok {
			switch {
			case lf < rf:
				return ordered(-1, op)
			case lf > rf:
				return ordered(1, op)
			default:
				return ordered(0, op)
			}
		}
	}

	ls := Outcome{value: left}.Label()
	rs := Outcome{value: right}.Label()
	return ordered(strings.Compare(ls, rs), op)
}

func ordered(c int, op string) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case ">":
		return c > 0
	case "<":
		return c < 0
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	}
	return false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	default:
		if f, ok := toFloat64(v); ok {
			return f != 0
		}
		return true
	}
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
