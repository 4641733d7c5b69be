package expression

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Template evaluates Go text/template expressions such as "{{ .owner }}".
// The rendered output is converted to a number or boolean when it parses as one.
//
// Registered functions are reached through fn: {{ fn "assignee.default" }}.
type Template struct {
	functions map[string]Func
}

// NewTemplate creates a text/template based evaluator calling the given functions.
func NewTemplate(functions map[string]Func) *Template {
	return &Template{functions: maps.Clone(functions)}
}

// Validate parses the template without executing it.
func (t *Template) Validate(expr string) error {
	_, err := t.parse(context.Background(), expr)

	return err
}

func (t *Template) Evaluate(ctx context.Context, expr string, scope map[string]any) (any, error) {
	tmpl, err := t.parse(ctx, expr)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, scope); err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", expr, err)
	}

	result := strings.TrimSpace(buf.String())

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func (t *Template) parse(ctx context.Context, expr string) (*template.Template, error) {
	tmpl, err := template.New("expression").
		Option("missingkey=error").
		Funcs(t.funcMap(ctx)).
		Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse template '%s': %v", ErrSyntax, expr, err)
	}

	return tmpl, nil
}

func (t *Template) funcMap(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},
		"default": func(fallback, value any) any {
			if value == nil || value == "" {
				return fallback
			}

			return value
		},
		"fn": func(name string, args ...any) (any, error) {
			fn, ok := t.functions[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
			}

			return fn(ctx, args...)
		},
	}
}
