package expression

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_Evaluate(t *testing.T) {
	scope := map[string]any{
		"owner":    "demo",
		"amount":   float64(1500),
		"approved": true,
		"region":   "emea",
		"nothing":  nil,
	}

	tests := []struct {
		name string
		expr string
		want any
	}{
		{name: "literal", expr: "demo", want: "demo"},
		{name: "empty literal", expr: "", want: ""},
		{name: "typed string", expr: "${owner}", want: "demo"},
		{name: "typed number", expr: "${amount}", want: float64(1500)},
		{name: "typed bool", expr: "${approved}", want: true},
		{name: "typed nil", expr: "${nothing}", want: nil},
		{name: "interpolated", expr: "group-${region}", want: "group-emea"},
		{name: "interpolated number", expr: "${amount} EUR", want: "1500 EUR"},
		{name: "two placeholders", expr: "${owner}@${region}", want: "demo@emea"},
		{name: "comparison", expr: "${amount > 1000}", want: true},
		{name: "comparison with int literal", expr: "${amount == 1500}", want: true},
		{name: "string equality", expr: "${region == 'emea'}", want: true},
		{name: "double quoted string", expr: `${region != "apac"}`, want: true},
		{name: "and", expr: "${approved && amount <= 1500}", want: true},
		{name: "or short circuit", expr: "${approved || missing}", want: true},
		{name: "and short circuit", expr: "${!approved && missing}", want: false},
		{name: "not", expr: "${!approved}", want: false},
		{name: "keyword operators", expr: "${approved and not (amount lt 10)}", want: true},
		{name: "parentheses", expr: "${(amount > 2000) || (region == 'emea')}", want: true},
		{name: "brace in string", expr: "${owner == '}'}", want: false},
		{name: "null literal", expr: "${nothing == null}", want: true},
		{name: "string ordering", expr: "${'a' < 'b'}", want: true},
	}

	evaluator := NewBuiltin()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluator.Evaluate(context.Background(), tt.expr, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltin_Errors(t *testing.T) {
	evaluator := NewBuiltin()

	tests := []struct {
		name    string
		expr    string
		wantErr error
	}{
		{name: "unknown variable", expr: "${missing}", wantErr: ErrUnknownVariable},
		{name: "unterminated placeholder", expr: "${owner", wantErr: ErrSyntax},
		{name: "empty placeholder", expr: "${}", wantErr: ErrSyntax},
		{name: "dangling operator", expr: "${owner ==}", wantErr: ErrSyntax},
		{name: "unterminated string", expr: "${'abc}", wantErr: ErrSyntax},
		{name: "bad character", expr: "${owner # 1}", wantErr: ErrSyntax},
		{name: "unknown function", expr: "${lookup()}", wantErr: ErrUnknownFunction},
		{name: "ordering mismatch", expr: "${owner > 1}", wantErr: ErrType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluator.Evaluate(context.Background(), tt.expr, map[string]any{"owner": "demo"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuiltin_Validate(t *testing.T) {
	evaluator := NewBuiltin()

	assert.NoError(t, evaluator.Validate("${a && b}"))
	assert.NoError(t, evaluator.Validate("plain text"))
	assert.ErrorIs(t, evaluator.Validate("${a &&}"), ErrSyntax)
}

func TestBuiltin_WithFunction(t *testing.T) {
	failure := errors.New("boom")

	evaluator := NewBuiltin(
		WithFunction("assignee", func(context.Context, ...any) (any, error) {
			return "demo", nil
		}),
		WithFunction("concat", func(_ context.Context, args ...any) (any, error) {
			out := ""
			for _, arg := range args {
				out += Stringify(arg)
			}

			return out, nil
		}),
		WithFunction("fail", func(context.Context, ...any) (any, error) {
			return nil, failure
		}),
	)

	got, err := evaluator.Evaluate(context.Background(), "${assignee()}", nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", got)

	got, err = evaluator.Evaluate(context.Background(), "${concat(owner, '-', 2)}", map[string]any{"owner": "john"})
	require.NoError(t, err)
	assert.Equal(t, "john-2", got)

	_, err = evaluator.Evaluate(context.Background(), "${fail()}", nil)
	assert.ErrorIs(t, err, failure)

	_, err = evaluator.Evaluate(context.Background(), "${missing()}", nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

func TestBuiltin_QualifiedNames(t *testing.T) {
	evaluator := NewBuiltin(WithFunction("assignee.default", func(context.Context, ...any) (any, error) {
		return "demo", nil
	}))

	got, err := evaluator.Evaluate(context.Background(), "${assignee.default()}", nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", got)

	got, err = evaluator.Evaluate(context.Background(), "${order.total > 10}", map[string]any{"order.total": 12})
	require.NoError(t, err)
	assert.Equal(t, true, got)

	assert.ErrorIs(t, evaluator.Validate("${assignee.()}"), ErrSyntax)
}

func TestNew(t *testing.T) {
	functions := map[string]Func{
		"assignee.default": func(context.Context, ...any) (any, error) { return "demo", nil },
	}

	builtin, err := New("", functions)
	require.NoError(t, err)
	assert.IsType(t, &Builtin{}, builtin)

	got, err := builtin.Evaluate(context.Background(), "${assignee.default()}", nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", got)

	tmpl, err := New(LanguageTemplate, functions)
	require.NoError(t, err)
	assert.IsType(t, &Template{}, tmpl)

	got, err = tmpl.Evaluate(context.Background(), `{{ fn "assignee.default" }}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", got)

	_, err = New("juel", functions)
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		input   any
		want    bool
		wantErr bool
	}{
		{input: nil, want: false},
		{input: true, want: true},
		{input: false, want: false},
		{input: "true", want: true},
		{input: "false", want: false},
		{input: "", want: false},
		{input: "yes", wantErr: true},
		{input: float64(0), want: false},
		{input: float64(2), want: true},
		{input: 1, want: true},
		{input: int64(0), want: false},
		{input: []string{}, wantErr: true},
	}

	for _, tt := range tests {
		got, err := Truthy(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrType, "input %v", tt.input)

			continue
		}

		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %v", tt.input)
	}
}

func TestStrings(t *testing.T) {
	got, err := Strings("demo, john ,, mary")
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "john", "mary"}, got)

	got, err = Strings([]any{"sales", "management,accounting"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "management", "accounting"}, got)

	got, err = Strings(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Strings(float64(1))
	assert.ErrorIs(t, err, ErrType)

	_, err = Strings([]any{1})
	assert.ErrorIs(t, err, ErrType)
}

func TestTemplate_Evaluate(t *testing.T) {
	evaluator := NewTemplate(map[string]Func{
		"greet": func(_ context.Context, args ...any) (any, error) {
			return "hello " + Stringify(args[0]), nil
		},
	})
	scope := map[string]any{"owner": "demo", "amount": 12, "approved": true}

	got, err := evaluator.Evaluate(context.Background(), "{{ .owner }}", scope)
	require.NoError(t, err)
	assert.Equal(t, "demo", got)

	got, err = evaluator.Evaluate(context.Background(), "{{ .amount }}", scope)
	require.NoError(t, err)
	assert.Equal(t, float64(12), got)

	got, err = evaluator.Evaluate(context.Background(), "{{ if .approved }}yes{{ else }}no{{ end }}", scope)
	require.NoError(t, err)
	assert.Equal(t, "yes", got)

	got, err = evaluator.Evaluate(context.Background(), `{{ default "nobody" .missing }}`, map[string]any{"missing": nil})
	require.NoError(t, err)
	assert.Equal(t, "nobody", got)

	_, err = evaluator.Evaluate(context.Background(), "{{ .unknown }}", scope)
	assert.Error(t, err)

	got, err = evaluator.Evaluate(context.Background(), `{{ fn "greet" .owner }}`, scope)
	require.NoError(t, err)
	assert.Equal(t, "hello demo", got)

	_, err = evaluator.Evaluate(context.Background(), `{{ fn "missing" }}`, scope)
	assert.ErrorIs(t, err, ErrUnknownFunction)

	assert.ErrorIs(t, evaluator.Validate("{{ .owner "), ErrSyntax)
}
