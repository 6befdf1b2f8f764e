package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Calculator evaluates arithmetic expressions.
type Calculator struct{}

// NewCalculator creates a new Calculator tool.
func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Name() string { return "calculator" }
func (c *Calculator) Description() string {
	return "Evaluate a math expression: basic arithmetic, parentheses, sqrt, trig, logarithms, pi and e"
}
func (c *Calculator) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"expression": {"type": "string", "description": "Mathematical expression to evaluate"}
		},
		"required": ["expression"]
	}`)
}

func (c *Calculator) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if strings.TrimSpace(params.Expression) == "" {
		return "", fmt.Errorf("expression is required")
	}

	value, err := Eval(params.Expression)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", params.Expression, strconv.FormatFloat(value, 'g', -1, 64)), nil
}

// Eval evaluates an arithmetic expression with a small recursive-descent
// parser. Supported: + - * / % ^, parentheses, unary minus, the constants
// pi and e, and the functions sqrt, abs, exp, log, log10, sin, cos, tan,
// asin, acos, atan.
func Eval(expr string) (float64, error) {
	p := &parser{input: expr}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("expression %q does not evaluate to a finite number", expr)
	}
	return value, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}
	return 0
}

// parseExpr handles + and -.
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// parseTerm handles *, / and %.
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		value, err := p.parseUnary()
		return -value, err
	}
	if p.peek() == '+' {
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower handles ^, right-associative.
func (p *parser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) parseAtom() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	c := p.input[p.pos]

	if c == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}

	if c >= '0' && c <= '9' || c == '.' {
		return p.parseNumber()
	}

	if isAlpha(c) {
		return p.parseNameExpr()
	}

	return 0, fmt.Errorf("unexpected %q at position %d", c, p.pos)
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		// Exponent sign directly after e/E.
		if (c == '+' || c == '-') && p.pos > start && (p.input[p.pos-1] == 'e' || p.input[p.pos-1] == 'E') {
			p.pos++
			continue
		}
		break
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

var functions = map[string]func(float64) (float64, error){
	"sqrt": func(x float64) (float64, error) {
		if x < 0 {
			return 0, fmt.Errorf("sqrt of negative number")
		}
		return math.Sqrt(x), nil
	},
	"abs": func(x float64) (float64, error) { return math.Abs(x), nil },
	"exp": func(x float64) (float64, error) { return math.Exp(x), nil },
	"log": func(x float64) (float64, error) {
		if x <= 0 {
			return 0, fmt.Errorf("log of non-positive number")
		}
		return math.Log(x), nil
	},
	"log10": func(x float64) (float64, error) {
		if x <= 0 {
			return 0, fmt.Errorf("log10 of non-positive number")
		}
		return math.Log10(x), nil
	},
	"sin":  func(x float64) (float64, error) { return math.Sin(x), nil },
	"cos":  func(x float64) (float64, error) { return math.Cos(x), nil },
	"tan":  func(x float64) (float64, error) { return math.Tan(x), nil },
	"asin": func(x float64) (float64, error) { return math.Asin(x), nil },
	"acos": func(x float64) (float64, error) { return math.Acos(x), nil },
	"atan": func(x float64) (float64, error) { return math.Atan(x), nil },
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func (p *parser) parseNameExpr() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (isAlpha(p.input[p.pos]) || p.input[p.pos] >= '0' && p.input[p.pos] <= '9') {
		p.pos++
	}
	name := strings.ToLower(p.input[start:p.pos])

	if value, ok := constants[name]; ok {
		return value, nil
	}

	fn, ok := functions[name]
	if !ok {
		return 0, fmt.Errorf("unknown function or constant %q", name)
	}

	p.skipSpace()
	if p.peek() != '(' {
		return 0, fmt.Errorf("expected ( after %q", name)
	}
	p.pos++
	arg, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() != ')' {
		return 0, fmt.Errorf("missing closing parenthesis after %q argument", name)
	}
	p.pos++
	return fn(arg)
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
