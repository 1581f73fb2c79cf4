package fx

import (
	"errors"
	"fmt"
)

// ErrDivideByZero is returned by the div builtin.
var ErrDivideByZero = errors.New("division by zero")

// Builtins returns a registry of scalar arithmetic targets:
//
//	add(a, b)  sub(a, b)  mul(a, b)  div(a, b)  neg(a)
//	identity(a)  const(value=v)  sum(a, b, ...)
//
// Integers stay integers unless combined with a float. div always yields a
// float64.
func Builtins() Registry {
	return Registry{
		"add":      binary(func(a, b int) int { return a + b }, func(a, b float64) float64 { return a + b }),
		"sub":      binary(func(a, b int) int { return a - b }, func(a, b float64) float64 { return a - b }),
		"mul":      binary(func(a, b int) int { return a * b }, func(a, b float64) float64 { return a * b }),
		"div":      divide,
		"neg":      negate,
		"identity": identity,
		"const":    constant,
		"sum":      sum,
	}
}

// binary applies intOp when both operands are integers, so large values keep
// full precision, and floatOp otherwise.
func binary(intOp func(a, b int) int, floatOp func(a, b float64) float64) Func {
	return func(args []any, _ map[string]any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: want 2 arguments, got %d", ErrInvalidArgument, len(args))
		}
		if a, ok := integer(args[0]); ok {
			if b, ok := integer(args[1]); ok {
				return intOp(a, b), nil
			}
		}
		a, err := number(args[0])
		if err != nil {
			return nil, err
		}
		b, err := number(args[1])
		if err != nil {
			return nil, err
		}
		return floatOp(a, b), nil
	}
}

func divide(args []any, _ map[string]any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: want 2 arguments, got %d", ErrInvalidArgument, len(args))
	}
	a, err := number(args[0])
	if err != nil {
		return nil, err
	}
	b, err := number(args[1])
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, ErrDivideByZero
	}
	return a / b, nil
}

func negate(args []any, _ map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: want 1 argument, got %d", ErrInvalidArgument, len(args))
	}
	if i, ok := integer(args[0]); ok {
		return -i, nil
	}
	v, err := number(args[0])
	if err != nil {
		return nil, err
	}
	return -v, nil
}

func identity(args []any, _ map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: want 1 argument, got %d", ErrInvalidArgument, len(args))
	}
	return args[0], nil
}

func constant(_ []any, kwargs map[string]any) (any, error) {
	v, ok := kwargs["value"]
	if !ok {
		return nil, fmt.Errorf("%w: const needs a value keyword", ErrInvalidArgument)
	}
	return v, nil
}

func sum(args []any, _ map[string]any) (any, error) {
	intTotal := 0
	total := 0.0
	allInt := true
	for _, a := range args {
		if i, ok := integer(a); ok && allInt {
			intTotal += i
			continue
		}
		v, err := number(a)
		if err != nil {
			return nil, err
		}
		if allInt {
			total = float64(intTotal)
			allInt = false
		}
		total += v
	}
	if allInt {
		return intTotal, nil
	}
	return total, nil
}

func integer(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %v (%T) is not a number", ErrInvalidArgument, v, v)
	}
}
