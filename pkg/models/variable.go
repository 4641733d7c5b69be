package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Variable is the current value of a named variable within a scope.
// A scope is either a process instance ID or a task ID.
type Variable struct {
	ScopeID    string    `json:"scope_id"`
	InstanceID string    `json:"instance_id"`
	Name       string    `json:"name"`
	Value      any       `json:"value"`
	Revision   int       `json:"revision"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the storage key of the variable.
func (v Variable) Key() string {
	return VariableKey(v.ScopeID, v.Name)
}

// VariableKey builds the storage key of a variable.
func VariableKey(scopeID, name string) string {
	return scopeID + "/" + name
}

// HistoricVariableUpdate is an immutable record of one variable write.
type HistoricVariableUpdate struct {
	ID         string    `json:"id"`
	ScopeID    string    `json:"scope_id"`
	InstanceID string    `json:"instance_id"`
	TaskID     string    `json:"task_id,omitempty"`
	Name       string    `json:"name"`
	Value      any       `json:"value"`
	Revision   int       `json:"revision"`
	Sequence   int64     `json:"sequence"`
	Time       time.Time `json:"time"`
}

// NormalizeValue converts a variable value to one of the four supported kinds:
// string, float64, bool or nil.
func NormalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidVariable, v.String())
		}

		return f, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidVariable, value)
	}
}

// NormalizeVariables normalises every value of a mapping into a new mapping.
func NormalizeVariables(variables map[string]any) (map[string]any, error) {
	normalized := make(map[string]any, len(variables))

	for name, value := range variables {
		if name == "" {
			return nil, fmt.Errorf("%w: empty variable name", ErrInvalidVariable)
		}

		v, err := NormalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}

		normalized[name] = v
	}

	return normalized, nil
}

// MergeScopes layers mappings left to right; later mappings win on key collision.
func MergeScopes(scopes ...map[string]any) map[string]any {
	merged := make(map[string]any)

	for _, scope := range scopes {
		maps.Copy(merged, scope)
	}

	return merged
}
