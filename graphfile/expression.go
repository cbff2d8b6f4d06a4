package graphfile

import (
	"fmt"
	"math"
	"sync"

	"github.com/Knetic/govaluate"
)

// funcRegistry holds the functions available to graph expressions.
var funcRegistry = struct {
	mu    sync.RWMutex
	funcs map[string]govaluate.ExpressionFunction
}{
	funcs: map[string]govaluate.ExpressionFunction{
		"abs":   unaryMath(math.Abs),
		"sqrt":  unaryMath(math.Sqrt),
		"floor": unaryMath(math.Floor),
		"ceil":  unaryMath(math.Ceil),
		"min": func(args ...any) (any, error) {
			return foldFloats("min", math.Min, args...)
		},
		"max": func(args ...any) (any, error) {
			return foldFloats("max", math.Max, args...)
		},
	},
}

// RegisterFunction makes a custom function callable from graph expressions.
// Registering an existing name replaces it.
func RegisterFunction(name string, fn govaluate.ExpressionFunction) {
	funcRegistry.mu.Lock()
	defer funcRegistry.mu.Unlock()
	funcRegistry.funcs[name] = fn
}

func registeredFunctions() map[string]govaluate.ExpressionFunction {
	funcRegistry.mu.RLock()
	defer funcRegistry.mu.RUnlock()
	out := make(map[string]govaluate.ExpressionFunction, len(funcRegistry.funcs))
	for k, v := range funcRegistry.funcs {
		out[k] = v
	}
	return out
}

// compileExpression parses an expression with the registered functions.
func compileExpression(expr string) (*govaluate.EvaluableExpression, error) {
	return govaluate.NewEvaluableExpressionWithFunctions(expr, registeredFunctions())
}

// ValidateExpression reports whether an expression parses.
func ValidateExpression(expr string) error {
	_, err := compileExpression(expr)
	return err
}

func unaryMath(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		v, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("expected a numeric argument, got %T", args[0])
		}
		return fn(v), nil
	}
}

func foldFloats(name string, fn func(float64, float64) float64, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expects at least one argument", name)
	}
	acc, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("%s expects numeric arguments, got %T", name, args[0])
	}
	for _, a := range args[1:] {
		v, ok := toFloat(a)
		if !ok {
			return nil, fmt.Errorf("%s expects numeric arguments, got %T", name, a)
		}
		acc = fn(acc, v)
	}
	return acc, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
