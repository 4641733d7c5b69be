package expression

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

type environment struct {
	ctx       context.Context
	scope     map[string]any
	functions map[string]Func
}

func (n *literalNode) eval(*environment) (any, error) {
	return n.value, nil
}

func (n *identNode) eval(env *environment) (any, error) {
	value, ok := env.scope[n.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, n.name)
	}

	return value, nil
}

func (n *callNode) eval(env *environment) (any, error) {
	fn, ok := env.functions[n.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, n.name)
	}

	args := make([]any, 0, len(n.args))

	for _, arg := range n.args {
		value, err := arg.eval(env)
		if err != nil {
			return nil, err
		}

		args = append(args, value)
	}

	result, err := fn(env.ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", n.name, err)
	}

	return result, nil
}

func (n *unaryNode) eval(env *environment) (any, error) {
	value, err := n.operand.eval(env)
	if err != nil {
		return nil, err
	}

	b, err := Truthy(value)
	if err != nil {
		return nil, err
	}

	return !b, nil
}

func (n *binaryNode) eval(env *environment) (any, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "&&", "||":
		l, err := Truthy(left)
		if err != nil {
			return nil, err
		}

		if n.op == "&&" && !l {
			return false, nil
		}

		if n.op == "||" && l {
			return true, nil
		}

		right, err := n.right.eval(env)
		if err != nil {
			return nil, err
		}

		return Truthy(right)
	}

	right, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}

	return compare(n.op, left, right)
}

func compare(op string, left, right any) (any, error) {
	l, err := models.NormalizeValue(left)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrType, err)
	}

	r, err := models.NormalizeValue(right)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrType, err)
	}

	switch op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	}

	switch lv := l.(type) {
	case float64:
		rv, ok := r.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: cannot compare number with %T", ErrType, r)
		}

		return order(op, lv, rv), nil
	case string:
		rv, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("%w: cannot compare string with %T", ErrType, r)
		}

		return order(op, lv, rv), nil
	default:
		return nil, fmt.Errorf("%w: operator %s does not apply to %T", ErrType, op, l)
	}
}

func order[T float64 | string](op string, l, r T) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	default:
		return l >= r
	}
}
