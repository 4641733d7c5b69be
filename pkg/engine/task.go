package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// Task returns an open task.
func (e *Engine) Task(id string) (*models.Task, error) {
	entry, err := e.lookupTask("Task", id)
	if err != nil {
		return nil, err
	}

	return entry.current.Load(), nil
}

// lockTask looks up and locks an open task. The returned unlock must be called.
func (e *Engine) lockTask(op, id string) (*taskEntry, func(), error) {
	entry, err := e.lookupTask(op, id)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()

	if entry.removed {
		entry.mu.Unlock()

		if entry.current.Load().Status == models.TaskStatusCompleted {
			return nil, nil, models.NewEngineError(op, "task", id, models.ErrAlreadyCompleted)
		}

		return nil, nil, models.NotFound(op, "task", id)
	}

	return entry, entry.mu.Unlock, nil
}

// Claim assigns the task to userID, or returns it to the candidate pool when userID is nil.
// Claiming a task already held by the same user succeeds without change.
func (e *Engine) Claim(ctx context.Context, taskID string, userID *string) (*models.Task, error) {
	ctx, span := e.startSpan(ctx, "engine.claim", attribute.String(otelhelper.TaskIDKey, taskID))
	defer span.End()

	entry, unlock, err := e.lockTask("Claim", taskID)
	if err != nil {
		return nil, e.fail(ctx, span, "Claim", err)
	}
	defer unlock()

	current := entry.current.Load()

	if userID == nil {
		if current.Assignee == "" {
			return current, nil
		}

		return e.updateTask(ctx, entry, "Claim", func(task *models.Task) { task.SetAssignee("") })
	}

	span.SetAttributes(attribute.String(otelhelper.UserIDKey, *userID))

	switch {
	case *userID == "":
		return nil, e.fail(ctx, span, "Claim", models.NewEngineError("Claim", "task", taskID,
			fmt.Errorf("%w: empty user id", models.ErrInvalidIdentity)))
	case current.Assignee == *userID:
		return current, nil
	case current.Assignee != "":
		return nil, e.fail(ctx, span, "Claim", models.NewEngineError("Claim", "task", taskID,
			fmt.Errorf("%w: held by %s", models.ErrAlreadyAssigned, current.Assignee)))
	case !e.isCandidate(current, *userID):
		return nil, e.fail(ctx, span, "Claim", models.NewEngineError("Claim", "task", taskID,
			fmt.Errorf("%w: %s", models.ErrNotCandidate, *userID)))
	}

	return e.updateTask(ctx, entry, "Claim", func(task *models.Task) { task.SetAssignee(*userID) })
}

// SetAssignee assigns the task without candidate checks; an empty user unassigns it.
func (e *Engine) SetAssignee(ctx context.Context, taskID, userID string) (*models.Task, error) {
	ctx, span := e.startSpan(ctx, "engine.set_assignee", attribute.String(otelhelper.TaskIDKey, taskID))
	defer span.End()

	entry, unlock, err := e.lockTask("SetAssignee", taskID)
	if err != nil {
		return nil, e.fail(ctx, span, "SetAssignee", err)
	}
	defer unlock()

	if entry.current.Load().Assignee == userID {
		return entry.current.Load(), nil
	}

	return e.updateTask(ctx, entry, "SetAssignee", func(task *models.Task) { task.SetAssignee(userID) })
}

// AddCandidateUser adds a candidate user link to the task.
func (e *Engine) AddCandidateUser(ctx context.Context, taskID, userID string) (*models.Task, error) {
	return e.changeCandidates(ctx, "AddCandidateUser", taskID, userID, func(task *models.Task) { task.AddCandidateUser(userID) })
}

// AddCandidateGroup adds a candidate group link to the task.
func (e *Engine) AddCandidateGroup(ctx context.Context, taskID, groupID string) (*models.Task, error) {
	return e.changeCandidates(ctx, "AddCandidateGroup", taskID, groupID, func(task *models.Task) { task.AddCandidateGroup(groupID) })
}

// DeleteCandidateUser removes a candidate user link from the task.
func (e *Engine) DeleteCandidateUser(ctx context.Context, taskID, userID string) (*models.Task, error) {
	return e.changeCandidates(ctx, "DeleteCandidateUser", taskID, userID, func(task *models.Task) { task.RemoveCandidateUser(userID) })
}

// DeleteCandidateGroup removes a candidate group link from the task.
func (e *Engine) DeleteCandidateGroup(ctx context.Context, taskID, groupID string) (*models.Task, error) {
	return e.changeCandidates(ctx, "DeleteCandidateGroup", taskID, groupID, func(task *models.Task) { task.RemoveCandidateGroup(groupID) })
}

func (e *Engine) changeCandidates(ctx context.Context, op, taskID, principal string, mutate func(*models.Task)) (*models.Task, error) {
	ctx, span := e.startSpan(ctx, "engine.candidates", attribute.String(otelhelper.TaskIDKey, taskID))
	defer span.End()

	if principal == "" {
		return nil, e.fail(ctx, span, op, models.NewEngineError(op, "task", taskID,
			fmt.Errorf("%w: empty candidate id", models.ErrInvalidIdentity)))
	}

	entry, unlock, err := e.lockTask(op, taskID)
	if err != nil {
		return nil, e.fail(ctx, span, op, err)
	}
	defer unlock()

	return e.updateTask(ctx, entry, op, mutate)
}

// updateTask applies mutate to a copy, commits it and swaps it in. The caller holds entry.mu.
func (e *Engine) updateTask(ctx context.Context, entry *taskEntry, op string, mutate func(*models.Task)) (*models.Task, error) {
	current := entry.current.Load()
	updated := current.Clone()
	mutate(updated)

	batch := persistence.NewBatch()
	batch.SaveTask(updated)

	if err := e.persistence.Commit(ctx, batch); err != nil {
		return nil, models.NewEngineError(op, "task", current.ID, err)
	}

	entry.current.Store(updated)

	e.logger.InfoContext(ctx, "Updated task", "op", op, "task_id", updated.ID, "assignee", updated.Assignee)

	if updated.Assignee != current.Assignee {
		e.publish(ctx, updated.InstanceID, events.TaskAssigned{
			BaseEvent:        events.NewBaseEvent(events.TaskAssignedEvent, updated.InstanceID, updated.TenantID),
			TaskID:           updated.ID,
			Assignee:         updated.Assignee,
			PreviousAssignee: current.Assignee,
		})
	}

	return updated, nil
}

// Complete finishes the task: its local variables and vars are merged into the
// instance scope, the task is removed and the instance advances.
func (e *Engine) Complete(ctx context.Context, taskID string, vars map[string]any) (*models.ProcessInstance, error) {
	ctx, span := e.startSpan(ctx, "engine.complete", attribute.String(otelhelper.TaskIDKey, taskID))
	defer span.End()

	payload, err := models.NormalizeVariables(vars)
	if err != nil {
		return nil, e.fail(ctx, span, "Complete", models.NewEngineError("Complete", "task", taskID, err))
	}

	entry, unlockTask, err := e.lockTask("Complete", taskID)
	if err != nil {
		return nil, e.fail(ctx, span, "Complete", err)
	}
	defer unlockTask()

	task := entry.current.Load()

	owner, err := e.lookupInstance("Complete", task.InstanceID)
	if err != nil {
		return nil, e.fail(ctx, span, "Complete", err)
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()

	instance, err := e.completeLocked(ctx, entry, owner, payload)
	if err != nil {
		return nil, e.fail(ctx, span, "Complete", models.NewEngineError("Complete", "task", taskID, err))
	}

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, instance.ID))

	return instance, nil
}

func (e *Engine) completeLocked(ctx context.Context, entry *taskEntry, owner *instanceEntry, payload map[string]any) (*models.ProcessInstance, error) {
	task := entry.current.Load()

	def, err := e.catalog.ResolveByID(task.DefinitionID)
	if err != nil {
		return nil, err
	}

	node, ok := def.Node(task.NodeID)
	if !ok {
		return nil, fmt.Errorf("%w: node %q does not exist", models.ErrInvalidDefinition, task.NodeID)
	}

	instance := owner.current.Load().Clone()
	instance.RemoveActiveTask(task.ID)

	x := e.newExecution(def, instance, e.variables.GetAll(instance.ID))

	merged := e.variables.GetAll(task.ID)
	maps.Copy(merged, payload)

	if err := x.setInstanceVariables(task.ID, merged); err != nil {
		return nil, err
	}

	x.change.DeleteScope(task.ID)

	completed := task.Clone()
	now := e.now()
	completed.Status = models.TaskStatusCompleted
	completed.CompletedAt = &now

	next, err := x.leave(ctx, node)
	if err != nil {
		return nil, err
	}

	if err := x.run(ctx, next); err != nil {
		return nil, err
	}

	batch := persistence.NewBatch()
	batch.DeleteTask(task.ID)
	batch.Append(x.batch())

	if err := e.persistence.Commit(ctx, batch); err != nil {
		return nil, err
	}

	entry.current.Store(completed)
	e.removeTasks([]*taskEntry{entry})
	x.apply(owner)

	e.logger.InfoContext(ctx, "Completed task",
		"task_id", task.ID, "instance_id", instance.ID, "created_tasks", len(x.created), "instance_status", instance.Status)

	e.publish(ctx, instance.ID, events.TaskCompleted{
		BaseEvent: events.NewBaseEvent(events.TaskCompletedEvent, instance.ID, instance.TenantID),
		TaskID:    task.ID,
		NodeID:    task.NodeID,
		Assignee:  task.Assignee,
		Variables: payload,
	})
	e.publish(ctx, instance.ID, x.variableEvents()...)
	e.publish(ctx, instance.ID, x.events...)

	return instance, nil
}

// IdentityLinks returns the task's assignee link, if any, followed by its candidate links.
func (e *Engine) IdentityLinks(_ context.Context, taskID string) ([]models.IdentityLink, error) {
	task, err := e.Task(taskID)
	if err != nil {
		return nil, err
	}

	return task.IdentityLinks(), nil
}
