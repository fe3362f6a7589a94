package guard

import (
	"fmt"
	"math"
)

// Vars is the name environment an expression is evaluated against:
// every place label bound to its current token count, every arc label
// bound to its evaluated weight, and the symbol "t" bound to simulated
// time (spec §4.2).
type Vars struct {
	Places map[string]float64
	Arcs   map[string]float64
	Time   float64
}

func evalNode(n node, vars Vars) (interface{}, error) {
	switch v := n.(type) {
	case *numberLit:
		return v.value, nil

	case *identifier:
		if v.name == "t" {
			return vars.Time, nil
		}
		if val, ok := vars.Places[v.name]; ok {
			return val, nil
		}
		if val, ok := vars.Arcs[v.name]; ok {
			return val, nil
		}
		return nil, fmt.Errorf("unknown identifier: %s", v.name)

	case *unaryOp:
		operand, err := evalNode(v.operand, vars)
		if err != nil {
			return nil, err
		}
		switch v.op {
		case "!":
			b, ok := operand.(bool)
			if !ok {
				return nil, fmt.Errorf("operand of ! must be boolean")
			}
			return !b, nil
		case "-":
			n, ok := operand.(float64)
			if !ok {
				return nil, fmt.Errorf("operand of unary - must be numeric")
			}
			return -n, nil
		}
		return nil, fmt.Errorf("unknown unary operator: %s", v.op)

	case *binaryOp:
		return evalBinary(v, vars)

	case *callExpr:
		return evalCall(v, vars)

	default:
		return nil, fmt.Errorf("unknown node type %T", n)
	}
}

func evalBinary(b *binaryOp, vars Vars) (interface{}, error) {
	if b.op == "&&" || b.op == "||" {
		left, err := evalNode(b.left, vars)
		if err != nil {
			return nil, err
		}
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("left operand of %s must be boolean", b.op)
		}
		if b.op == "&&" && !lb {
			return false, nil
		}
		if b.op == "||" && lb {
			return true, nil
		}
		right, err := evalNode(b.right, vars)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("right operand of %s must be boolean", b.op)
		}
		return rb, nil
	}

	left, err := evalNode(b.left, vars)
	if err != nil {
		return nil, err
	}
	right, err := evalNode(b.right, vars)
	if err != nil {
		return nil, err
	}

	switch b.op {
	case "+", "-", "*", "/", "%":
		l, lok := left.(float64)
		r, rok := right.(float64)
		if !lok || !rok {
			return nil, fmt.Errorf("arithmetic operands must be numeric")
		}
		return evalArithmetic(b.op, l, r)
	case ">", "<", ">=", "<=":
		l, lok := left.(float64)
		r, rok := right.(float64)
		if !lok || !rok {
			return nil, fmt.Errorf("relational operands must be numeric")
		}
		return evalRelational(b.op, l, r)
	case "==", "!=":
		eq := left == right
		if b.op == "==" {
			return eq, nil
		}
		return !eq, nil
	}
	return nil, fmt.Errorf("unknown binary operator: %s", b.op)
}

func evalArithmetic(op string, l, r float64) (interface{}, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return math.Mod(l, r), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator: %s", op)
}

func evalRelational(op string, l, r float64) (interface{}, error) {
	switch op {
	case ">":
		return l > r, nil
	case "<":
		return l < r, nil
	case ">=":
		return l >= r, nil
	case "<=":
		return l <= r, nil
	}
	return nil, fmt.Errorf("unknown relational operator: %s", op)
}

// builtins is the fixed, closed set of functions the grammar permits
// (spec §4.2, §6).
var builtins = map[string]func(args []float64) (float64, error){
	"sqrt":  func(a []float64) (float64, error) { return unary(a, math.Sqrt) },
	"log":   func(a []float64) (float64, error) { return unary(a, math.Log) },
	"log10": func(a []float64) (float64, error) { return unary(a, math.Log10) },
	"exp":   func(a []float64) (float64, error) { return unary(a, math.Exp) },
	"sin":   func(a []float64) (float64, error) { return unary(a, math.Sin) },
	"cos":   func(a []float64) (float64, error) { return unary(a, math.Cos) },
	"ceil":  func(a []float64) (float64, error) { return unary(a, math.Ceil) },
	"floor": func(a []float64) (float64, error) { return unary(a, math.Floor) },
	"abs":   func(a []float64) (float64, error) { return unary(a, math.Abs) },
	"min": func(a []float64) (float64, error) {
		if len(a) < 2 {
			return 0, fmt.Errorf("min expects at least 2 arguments")
		}
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	},
	"max": func(a []float64) (float64, error) {
		if len(a) < 2 {
			return 0, fmt.Errorf("max expects at least 2 arguments")
		}
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	},
}

func unary(a []float64, f func(float64) float64) (float64, error) {
	if len(a) != 1 {
		return 0, fmt.Errorf("expects exactly 1 argument, got %d", len(a))
	}
	return f(a[0]), nil
}

func evalCall(c *callExpr, vars Vars) (interface{}, error) {
	fn, ok := builtins[c.fn]
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", c.fn)
	}
	args := make([]float64, len(c.args))
	for i, a := range c.args {
		v, err := evalNode(a, vars)
		if err != nil {
			return nil, err
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("argument %d to %s must be numeric", i, c.fn)
		}
		args[i] = f
	}
	return fn(args)
}
