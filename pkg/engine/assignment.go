package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/expression"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/google/uuid"
)

// createTask builds the task for a userTask node and resolves its assignment:
// the assignee expression first, otherwise the candidate expressions, then listeners.
func (x *execution) createTask(ctx context.Context, node models.Node) error {
	e := x.engine

	task := &models.Task{
		ID:           uuid.NewString(),
		Name:         node.Name,
		NodeID:       node.ID,
		InstanceID:   x.instance.ID,
		DefinitionID: x.definition.ID,
		TenantID:     x.instance.TenantID,
		Status:       models.TaskStatusCreated,
		Sequence:     e.taskSequence.Add(1),
		CreatedAt:    e.now(),
	}

	if err := x.resolveAssignment(ctx, node, task); err != nil {
		return fmt.Errorf("task %s: %w", node.ID, err)
	}

	listeners, err := e.listenersFor(node)
	if err != nil {
		return err
	}

	delegate := newTaskDelegate(task, x.scope, nil)
	if err := e.runListeners(ctx, delegate, listeners); err != nil {
		return fmt.Errorf("task %s: %w", node.ID, err)
	}

	task = delegate.task

	if err := x.setInstanceVariables(task.ID, delegate.instanceWrites); err != nil {
		return err
	}

	if len(delegate.localWrites) > 0 {
		if err := x.change.Set(task.ID, x.instance.ID, task.ID, delegate.localWrites); err != nil {
			return err
		}
	}

	x.instance.ActiveTaskIDs = append(x.instance.ActiveTaskIDs, task.ID)
	x.created = append(x.created, task)

	x.events = append(x.events, events.TaskCreated{
		BaseEvent:       events.NewBaseEvent(events.TaskCreatedEvent, x.instance.ID, x.instance.TenantID),
		TaskID:          task.ID,
		NodeID:          task.NodeID,
		Name:            task.Name,
		Assignee:        task.Assignee,
		CandidateUsers:  task.CandidateUsers(),
		CandidateGroups: task.CandidateGroups(),
	})

	e.logger.DebugContext(ctx, "Created task",
		"task_id", task.ID, "node_id", node.ID, "instance_id", x.instance.ID, "assignee", task.Assignee)

	return nil
}

func (x *execution) resolveAssignment(ctx context.Context, node models.Node, task *models.Task) error {
	if node.Assignee != "" {
		value, err := x.engine.evaluator.Evaluate(ctx, node.Assignee, x.scope)
		if err != nil {
			return fmt.Errorf("%w: assignee expression: %w", models.ErrInvalidVariable, err)
		}

		task.SetAssignee(expression.Stringify(value))

		return nil
	}

	users, err := x.principals(ctx, node.CandidateUsers)
	if err != nil {
		return fmt.Errorf("%w: candidate users: %w", models.ErrInvalidVariable, err)
	}

	groups, err := x.principals(ctx, node.CandidateGroups)
	if err != nil {
		return fmt.Errorf("%w: candidate groups: %w", models.ErrInvalidVariable, err)
	}

	for _, user := range users {
		task.AddCandidateUser(user)
	}

	for _, group := range groups {
		task.AddCandidateGroup(group)
	}

	return nil
}

// principals evaluates each expression and flattens the results into IDs.
func (x *execution) principals(ctx context.Context, exprs []string) ([]string, error) {
	var ids []string

	for _, expr := range exprs {
		value, err := x.engine.evaluator.Evaluate(ctx, expr, x.scope)
		if err != nil {
			return nil, err
		}

		resolved, err := expression.Strings(value)
		if err != nil {
			return nil, err
		}

		ids = append(ids, resolved...)
	}

	return ids, nil
}

// isCandidate reports whether the user may claim the task. A task without candidates
// is open to everyone.
func (e *Engine) isCandidate(task *models.Task, userID string) bool {
	if len(task.Candidates) == 0 || task.HasCandidateUser(userID) {
		return true
	}

	groups := task.CandidateGroups()

	return slices.ContainsFunc(e.identity.GroupsOfUser(userID), func(group string) bool {
		return slices.Contains(groups, group)
	})
}

// taskScope returns the variables a task sees: its instance's overlaid by its own.
func (e *Engine) taskScope(task *models.Task) map[string]any {
	scope := e.variables.GetAll(task.InstanceID)
	maps.Copy(scope, e.variables.GetAll(task.ID))

	return scope
}
