// Package expression evaluates assignment and guard expressions against a variable scope.
package expression

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrSyntax indicates an expression could not be parsed.
	ErrSyntax = errors.New("expression syntax error")

	// ErrUnknownVariable indicates an expression referenced a variable missing from the scope.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrUnknownFunction indicates an expression called a function that was not registered.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrType indicates an operator was applied to values it does not support.
	ErrType = errors.New("type mismatch")

	// ErrUnknownLanguage indicates no evaluator exists for the requested language.
	ErrUnknownLanguage = errors.New("unknown expression language")
)

// Expression languages accepted by New.
const (
	LanguageBuiltin  = "builtin"
	LanguageTemplate = "template"
)

// Evaluator resolves an expression to a value using the given variable scope.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, scope map[string]any) (any, error)
}

// Validator is implemented by evaluators that can check an expression without evaluating it.
type Validator interface {
	Validate(expr string) error
}

// New creates the evaluator for language with the given functions callable from
// expressions. An empty language selects the builtin evaluator.
func New(language string, functions map[string]Func) (Evaluator, error) {
	switch language {
	case "", LanguageBuiltin:
		opts := make([]Option, 0, len(functions))
		for name, fn := range functions {
			opts = append(opts, WithFunction(name, fn))
		}

		return NewBuiltin(opts...), nil
	case LanguageTemplate:
		return NewTemplate(functions), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, language)
	}
}

// Truthy converts an evaluation result into a guard decision.
// nil is false, strings must parse as booleans and numbers are true when non-zero.
func Truthy(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return false, nil
		}

		result, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w: cannot convert string %q to boolean", ErrType, v)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("%w: cannot convert %T to boolean", ErrType, value)
	}
}

// Strings flattens an evaluation result into a list of principals.
// Strings are split on commas, lists are flattened, blanks are dropped.
func Strings(value any) ([]string, error) {
	var result []string

	add := func(s string) {
		for part := range strings.SplitSeq(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}

	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		add(v)
	case []string:
		for _, item := range v {
			add(item)
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: list item %T is not a string", ErrType, item)
			}

			add(s)
		}
	default:
		return nil, fmt.Errorf("%w: cannot convert %T to a list of strings", ErrType, value)
	}

	return result, nil
}

// Stringify renders a value the way it appears when interpolated into text.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
