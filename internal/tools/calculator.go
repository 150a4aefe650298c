package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/expr-lang/expr"
)

// Calculator evaluates arithmetic expressions.
type Calculator struct {
	opts []expr.Option
}

var constants = map[string]any{"pi": math.Pi, "e": math.E}

var unaryMath = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"exp":   math.Exp,
	"log":   math.Log,
	"log10": math.Log10,
	"log2":  math.Log2,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"floor": math.Floor,
	"ceil":  math.Ceil,
}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator {
	opts := []expr.Option{
		expr.Env(constants),
		expr.Function("pow", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("pow takes 2 arguments")
			}
			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}
			y, err := toFloat(params[1])
			if err != nil {
				return nil, err
			}
			return math.Pow(x, y), nil
		}),
	}
	for name, fn := range unaryMath {
		opts = append(opts, expr.Function(name, func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("%s takes 1 argument", name)
			}
			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}
			return fn(x), nil
		}))
	}
	return &Calculator{opts: opts}
}

func (c *Calculator) Name() string { return "calculator" }
func (c *Calculator) Description() string {
	return "Evaluate a math expression, e.g. \"(3 + 4) * 2\", \"2 ** 10\" or \"sqrt(2)\". Use it for any arithmetic."
}
func (c *Calculator) InputSchema() string {
	return `{
	"type": "object",
	"properties": {
		"expression": {"type": "string", "description": "Arithmetic expression to evaluate"}
	},
	"required": ["expression"]
}`
}

func (c *Calculator) Execute(_ context.Context, input string) (string, error) {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if args.Expression == "" {
		return "", fmt.Errorf("expression is required")
	}

	program, err := expr.Compile(args.Expression, c.opts...)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	out, err := expr.Run(program, constants)
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}

	n, err := toFloat(out)
	if err != nil {
		return "", fmt.Errorf("expression is not numeric: %v", out)
	}
	return "Answer: " + formatNumber(n), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
