package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/expression"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/variables"
)

// token is a thread of control arriving at a node, via a transition unless it is a start token.
type token struct {
	nodeID string
	via    string
}

// execution moves the tokens of one instance forward until every token waits or ends.
// It works on copies; nothing is visible until the caller commits Batch and calls apply.
type execution struct {
	engine     *Engine
	definition *models.ProcessDefinition
	instance   *models.ProcessInstance
	change     *variables.Change
	scope      map[string]any // instance scope including staged writes

	created []*models.Task
	events  []eventbus.Event
}

func (e *Engine) newExecution(definition *models.ProcessDefinition, instance *models.ProcessInstance, scope map[string]any) *execution {
	return &execution{
		engine:     e,
		definition: definition,
		instance:   instance,
		change:     e.variables.Begin(),
		scope:      models.MergeScopes(scope),
	}
}

// setInstanceVariables stages writes to the instance scope.
func (x *execution) setInstanceVariables(taskID string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	if err := x.change.Set(x.instance.ID, x.instance.ID, taskID, values); err != nil {
		return err
	}

	maps.Copy(x.scope, values)

	return nil
}

// run drains the token queue.
func (x *execution) run(ctx context.Context, queue []token) error {
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		next, err := x.arrive(ctx, current)
		if err != nil {
			return err
		}

		queue = append(queue, next...)
	}

	x.finish()

	return nil
}

// arrive handles a token entering a node and returns the tokens it emits.
func (x *execution) arrive(ctx context.Context, t token) ([]token, error) {
	node, ok := x.definition.Node(t.nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: node %q does not exist", models.ErrInvalidDefinition, t.nodeID)
	}

	if x.definition.IsJoin(node) && !x.join(node, t.via) {
		return nil, nil
	}

	switch node.Type {
	case models.NodeTypeUserTask:
		return nil, x.createTask(ctx, node)
	case models.NodeTypeEndEvent:
		return nil, nil
	case models.NodeTypeExclusiveGateway:
		return x.exclusive(ctx, node)
	case models.NodeTypeParallelGateway:
		return follow(x.definition.Outgoing(node.ID)), nil
	default:
		return x.leave(ctx, node)
	}
}

// join records an arrival at an AND-join and reports whether the join fires.
// The first arrival makes the join pending; it fires once every incoming transition
// has arrived, consuming one arrival from each.
func (x *execution) join(node models.Node, via string) bool {
	if x.instance.Joins == nil {
		x.instance.Joins = make(map[string]*models.JoinState)
	}

	state, ok := x.instance.Joins[node.ID]
	if !ok {
		state = &models.JoinState{NodeID: node.ID, Arrivals: make(map[string]int), PendingAt: x.engine.now()}
		x.instance.Joins[node.ID] = state
	}

	state.Arrivals[via]++

	incoming := x.definition.Incoming(node.ID)
	if !state.Ready(incoming) {
		return false
	}

	for _, transition := range incoming {
		state.Arrivals[transition.ID]--
		if state.Arrivals[transition.ID] == 0 {
			delete(state.Arrivals, transition.ID)
		}
	}

	if len(state.Arrivals) == 0 {
		delete(x.instance.Joins, node.ID)
	}

	return true
}

// leave takes every unconditional transition and every conditional one whose guard holds.
func (x *execution) leave(ctx context.Context, node models.Node) ([]token, error) {
	outgoing := x.definition.Outgoing(node.ID)
	if len(outgoing) == 0 {
		return nil, nil
	}

	var selected []models.Transition

	for _, transition := range outgoing {
		ok, err := x.guard(ctx, transition)
		if err != nil {
			return nil, err
		}

		if ok {
			selected = append(selected, transition)
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no transition out of %s applies", models.ErrNoApplicablePath, node.ID)
	}

	return follow(selected), nil
}

// exclusive takes the first transition in document order whose guard holds, then the default.
func (x *execution) exclusive(ctx context.Context, node models.Node) ([]token, error) {
	var fallback *models.Transition

	for _, transition := range x.definition.Outgoing(node.ID) {
		if transition.ID == node.Default {
			fallback = &transition

			continue
		}

		ok, err := x.guard(ctx, transition)
		if err != nil {
			return nil, err
		}

		if ok {
			return follow([]models.Transition{transition}), nil
		}
	}

	if fallback != nil {
		return follow([]models.Transition{*fallback}), nil
	}

	return nil, fmt.Errorf("%w: no transition out of gateway %s applies", models.ErrNoApplicablePath, node.ID)
}

func (x *execution) guard(ctx context.Context, transition models.Transition) (bool, error) {
	if !transition.Conditional() {
		return true, nil
	}

	value, err := x.engine.evaluator.Evaluate(ctx, transition.Condition, x.scope)
	if err != nil {
		return false, fmt.Errorf("%w: condition of transition %s: %w", models.ErrNoApplicablePath, transition.ID, err)
	}

	ok, err := expression.Truthy(value)
	if err != nil {
		return false, fmt.Errorf("%w: condition of transition %s: %w", models.ErrNoApplicablePath, transition.ID, err)
	}

	return ok, nil
}

func follow(transitions []models.Transition) []token {
	tokens := make([]token, 0, len(transitions))
	for _, transition := range transitions {
		tokens = append(tokens, token{nodeID: transition.To, via: transition.ID})
	}

	return tokens
}

// finish completes the instance once no task waits and no join is pending.
func (x *execution) finish() {
	if !x.instance.IsActive() || len(x.instance.ActiveTaskIDs) > 0 || x.instance.PendingJoins() > 0 {
		return
	}

	now := x.engine.now()
	x.instance.Status = models.InstanceStatusCompleted
	x.instance.EndedAt = &now

	x.events = append(x.events, events.ProcessInstanceCompleted{
		BaseEvent:    events.NewBaseEvent(events.ProcessInstanceCompletedEvent, x.instance.ID, x.instance.TenantID),
		DefinitionID: x.instance.DefinitionID,
		Duration:     now.Sub(x.instance.StartedAt),
	})
}

// batch renders everything the execution changed.
func (x *execution) batch() *persistence.Batch {
	batch := persistence.NewBatch()
	batch.SaveInstance(x.instance)

	for _, task := range x.created {
		batch.SaveTask(task)
	}

	batch.Append(x.change.Batch())

	return batch
}

// apply publishes the committed execution to the in-memory registries.
// The caller holds the instance entry lock, if the instance already existed.
func (x *execution) apply(entry *instanceEntry) {
	e := x.engine

	e.variables.Apply(x.change)
	entry.current.Store(x.instance)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.instances[x.instance.ID] = entry

	for _, task := range x.created {
		taskEntry := &taskEntry{}
		taskEntry.current.Store(task)
		e.tasks[task.ID] = taskEntry
	}
}

// variableEvents describes the staged writes grouped by scope.
func (x *execution) variableEvents() []eventbus.Event {
	names := make(map[string][]string)

	var scopes []string

	for _, update := range x.change.Updates() {
		if _, ok := names[update.ScopeID]; !ok {
			scopes = append(scopes, update.ScopeID)
		}

		if !slices.Contains(names[update.ScopeID], update.Name) {
			names[update.ScopeID] = append(names[update.ScopeID], update.Name)
		}
	}

	result := make([]eventbus.Event, 0, len(scopes))
	for _, scope := range scopes {
		result = append(result, events.VariablesUpdated{
			BaseEvent: events.NewBaseEvent(events.VariablesUpdatedEvent, x.instance.ID, x.instance.TenantID),
			ScopeID:   scope,
			Names:     names[scope],
		})
	}

	return result
}
