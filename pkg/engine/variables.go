package engine

import (
	"context"
	"maps"
	"slices"

	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// Variables returns the values visible in a scope. For an instance that is its own
// scope; for a task it is the instance scope overlaid by the task's local values.
func (e *Engine) Variables(scopeID string) (map[string]any, error) {
	if task, err := e.Task(scopeID); err == nil {
		return e.taskScope(task), nil
	}

	if _, err := e.Instance(scopeID); err != nil {
		return nil, models.NotFound("Variables", "scope", scopeID)
	}

	return e.variables.GetAll(scopeID), nil
}

// LocalVariables returns only the task's own values.
func (e *Engine) LocalVariables(taskID string) (map[string]any, error) {
	if _, err := e.Task(taskID); err != nil {
		return nil, err
	}

	return e.variables.GetAll(taskID), nil
}

// SetVariables overwrites values in a scope. A task ID writes the task's local scope.
func (e *Engine) SetVariables(ctx context.Context, scopeID string, vars map[string]any) error {
	ctx, span := e.startSpan(ctx, "engine.set_variables", attribute.String(otelhelper.ScopeIDKey, scopeID))
	defer span.End()

	var err error

	if _, lookupErr := e.lookupTask("SetVariables", scopeID); lookupErr == nil {
		err = e.setTaskVariables(ctx, scopeID, vars)
	} else {
		err = e.setInstanceVariables(ctx, scopeID, vars)
	}

	if err != nil {
		return e.fail(ctx, span, "SetVariables", err)
	}

	return nil
}

func (e *Engine) setTaskVariables(ctx context.Context, taskID string, vars map[string]any) error {
	entry, unlock, err := e.lockTask("SetVariables", taskID)
	if err != nil {
		return err
	}
	defer unlock()

	task := entry.current.Load()

	return e.commitVariables(ctx, taskID, task.InstanceID, task.TenantID, vars)
}

func (e *Engine) setInstanceVariables(ctx context.Context, instanceID string, vars map[string]any) error {
	entry, err := e.lookupInstance("SetVariables", instanceID)
	if err != nil {
		return models.NotFound("SetVariables", "scope", instanceID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return e.commitVariables(ctx, instanceID, instanceID, entry.current.Load().TenantID, vars)
}

// commitVariables writes vars to the scope. The caller holds the lock guarding the scope.
func (e *Engine) commitVariables(ctx context.Context, scopeID, instanceID, tenantID string, vars map[string]any) error {
	change := e.variables.Begin()
	if err := change.Set(scopeID, instanceID, "", vars); err != nil {
		return models.NewEngineError("SetVariables", "scope", scopeID, err)
	}

	if change.Empty() {
		return nil
	}

	if err := e.persistence.Commit(ctx, change.Batch()); err != nil {
		return models.NewEngineError("SetVariables", "scope", scopeID, err)
	}

	e.variables.Apply(change)

	e.publish(ctx, instanceID, events.VariablesUpdated{
		BaseEvent: events.NewBaseEvent(events.VariablesUpdatedEvent, instanceID, tenantID),
		ScopeID:   scopeID,
		Names:     slices.Sorted(maps.Keys(vars)),
	})

	return nil
}

// History returns every variable write of the instance, oldest first.
func (e *Engine) History(instanceID string) ([]*models.HistoricVariableUpdate, error) {
	if _, err := e.Instance(instanceID); err != nil {
		return nil, err
	}

	return e.variables.History(instanceID), nil
}
