package expression

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Func is a function callable from an expression, e.g. ${assignee()}.
type Func func(ctx context.Context, args ...any) (any, error)

// Option configures a Builtin evaluator.
type Option func(*Builtin)

// WithFunction registers a function callable by name from expressions.
func WithFunction(name string, fn Func) Option {
	return func(b *Builtin) {
		b.functions[name] = fn
	}
}

// Builtin evaluates literal and templated strings.
//
// Text without "${" is returned unchanged. An expression that is a single
// ${...} placeholder yields the typed value of its body. Placeholders embedded
// in surrounding text are interpolated into a string.
type Builtin struct {
	functions map[string]Func
	cache     sync.Map // expression -> *program
}

type segment struct {
	text string
	body node
}

type program struct {
	segments []segment
}

// NewBuiltin creates the builtin evaluator.
func NewBuiltin(opts ...Option) *Builtin {
	b := &Builtin{functions: make(map[string]Func)}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Validate parses the expression without evaluating it.
func (b *Builtin) Validate(expr string) error {
	_, err := b.compile(expr)

	return err
}

func (b *Builtin) Evaluate(ctx context.Context, expr string, scope map[string]any) (any, error) {
	prog, err := b.compile(expr)
	if err != nil {
		return nil, err
	}

	env := &environment{ctx: ctx, scope: scope, functions: b.functions}

	if len(prog.segments) == 1 {
		seg := prog.segments[0]
		if seg.body == nil {
			return seg.text, nil
		}

		value, err := seg.body.eval(env)
		if err != nil {
			return nil, fmt.Errorf("evaluate %q: %w", expr, err)
		}

		return value, nil
	}

	var sb strings.Builder

	for _, seg := range prog.segments {
		if seg.body == nil {
			sb.WriteString(seg.text)

			continue
		}

		value, err := seg.body.eval(env)
		if err != nil {
			return nil, fmt.Errorf("evaluate %q: %w", expr, err)
		}

		sb.WriteString(Stringify(value))
	}

	return sb.String(), nil
}

func (b *Builtin) compile(expr string) (*program, error) {
	if cached, ok := b.cache.Load(expr); ok {
		return cached.(*program), nil
	}

	prog, err := split(expr)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", expr, err)
	}

	b.cache.Store(expr, prog)

	return prog, nil
}

// split cuts the expression into literal text and parsed ${...} bodies.
func split(expr string) (*program, error) {
	prog := &program{}
	rest := expr

	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			if rest != "" || len(prog.segments) == 0 {
				prog.segments = append(prog.segments, segment{text: rest})
			}

			return prog, nil
		}

		if start > 0 {
			prog.segments = append(prog.segments, segment{text: rest[:start]})
		}

		end := closingBrace(rest, start+2)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated placeholder", ErrSyntax)
		}

		body, err := parse(rest[start+2 : end])
		if err != nil {
			return nil, err
		}

		prog.segments = append(prog.segments, segment{body: body})
		rest = rest[end+1:]
	}
}

// closingBrace finds the } that ends a placeholder, skipping quoted text.
func closingBrace(s string, from int) int {
	var quote byte

	for i := from; i < len(s); i++ {
		c := s[i]

		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
		case c == '\'' || c == '"':
			quote = c
		case c == '}':
			return i
		}
	}

	return -1
}
