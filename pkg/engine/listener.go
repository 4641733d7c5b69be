package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

// TaskListener is notified when a task is created, after expression based assignment.
// Changes made through the delegate win over that assignment. Returning an error fails
// the operation that created the task.
type TaskListener interface {
	Notify(ctx context.Context, task *TaskDelegate) error
}

// TaskListenerFunc adapts a function to TaskListener.
type TaskListenerFunc func(ctx context.Context, task *TaskDelegate) error

func (f TaskListenerFunc) Notify(ctx context.Context, task *TaskDelegate) error {
	return f(ctx, task)
}

// TaskDelegate is the mutable view of a task under creation handed to listeners.
type TaskDelegate struct {
	task           *models.Task
	instanceScope  map[string]any
	localScope     map[string]any
	instanceWrites map[string]any
	localWrites    map[string]any
}

func newTaskDelegate(task *models.Task, instanceScope, localScope map[string]any) *TaskDelegate {
	return &TaskDelegate{
		task:           task.Clone(),
		instanceScope:  models.MergeScopes(instanceScope),
		localScope:     models.MergeScopes(localScope),
		instanceWrites: make(map[string]any),
		localWrites:    make(map[string]any),
	}
}

func (d *TaskDelegate) ID() string           { return d.task.ID }
func (d *TaskDelegate) Name() string         { return d.task.Name }
func (d *TaskDelegate) NodeID() string       { return d.task.NodeID }
func (d *TaskDelegate) InstanceID() string   { return d.task.InstanceID }
func (d *TaskDelegate) DefinitionID() string { return d.task.DefinitionID }
func (d *TaskDelegate) TenantID() string     { return d.task.TenantID }
func (d *TaskDelegate) Assignee() string     { return d.task.Assignee }

// SetAssignee assigns the task; an empty user leaves it unassigned.
func (d *TaskDelegate) SetAssignee(userID string) {
	d.task.SetAssignee(userID)
}

func (d *TaskDelegate) CandidateUsers() []string  { return d.task.CandidateUsers() }
func (d *TaskDelegate) CandidateGroups() []string { return d.task.CandidateGroups() }

func (d *TaskDelegate) AddCandidateUser(userID string)    { d.task.AddCandidateUser(userID) }
func (d *TaskDelegate) AddCandidateGroup(groupID string)  { d.task.AddCandidateGroup(groupID) }
func (d *TaskDelegate) DeleteCandidateUser(userID string) { d.task.RemoveCandidateUser(userID) }

func (d *TaskDelegate) DeleteCandidateGroup(groupID string) {
	d.task.RemoveCandidateGroup(groupID)
}

// Variables returns the scope visible to the task: instance values overlaid by local ones.
func (d *TaskDelegate) Variables() map[string]any {
	return models.MergeScopes(d.instanceScope, d.localScope)
}

// Variable returns one visible value.
func (d *TaskDelegate) Variable(name string) (any, bool) {
	if value, ok := d.localScope[name]; ok {
		return value, true
	}

	value, ok := d.instanceScope[name]

	return value, ok
}

// SetVariable writes a variable to the process instance scope.
func (d *TaskDelegate) SetVariable(name string, value any) error {
	normalized, err := normalizeOne(name, value)
	if err != nil {
		return err
	}

	d.instanceScope[name] = normalized
	d.instanceWrites[name] = normalized

	return nil
}

// SetVariableLocal writes a variable to the task's own scope.
func (d *TaskDelegate) SetVariableLocal(name string, value any) error {
	normalized, err := normalizeOne(name, value)
	if err != nil {
		return err
	}

	d.localScope[name] = normalized
	d.localWrites[name] = normalized

	return nil
}

func normalizeOne(name string, value any) (any, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty variable name", models.ErrInvalidVariable)
	}

	normalized, err := models.NormalizeValue(value)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}

	return normalized, nil
}

// listenersFor returns the node's listeners in declared order followed by the global ones.
func (e *Engine) listenersFor(node models.Node) ([]namedListener, error) {
	result := make([]namedListener, 0, len(node.Listeners)+len(e.globalListeners))

	for _, name := range node.Listeners {
		listener, ok := e.listeners[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown listener %q on node %s", models.ErrInvalidDefinition, name, node.ID)
		}

		result = append(result, namedListener{name: name, listener: listener})
	}

	for i, listener := range e.globalListeners {
		result = append(result, namedListener{name: fmt.Sprintf("global-%d", i), listener: listener})
	}

	return result, nil
}

type namedListener struct {
	name     string
	listener TaskListener
}

// runListeners notifies the listeners in order on a private delegate. The chain runs in
// its own goroutine so an expired deadline can abandon it; an abandoned delegate is
// never read again.
func (e *Engine) runListeners(ctx context.Context, delegate *TaskDelegate, listeners []namedListener) error {
	if len(listeners) == 0 {
		return nil
	}

	if e.listenerTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.listenerTimeout)
		defer cancel()
	}

	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("listener panicked: %v", r)
			}
		}()

		for _, l := range listeners {
			if err := l.listener.Notify(ctx, delegate); err != nil {
				done <- fmt.Errorf("listener %s: %w", l.name, err)

				return
			}
		}

		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", models.ErrTimeout, err)
		}

		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: listeners on task %s did not finish", models.ErrTimeout, delegate.task.NodeID)
		}

		return ctx.Err()
	}
}
