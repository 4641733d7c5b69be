package engine

import (
	"cmp"
	"context"
	"slices"

	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// InstanceQuery filters process instances. Zero fields do not filter.
type InstanceQuery struct {
	DefinitionID    string                `query:"process_definition_id"`
	DefinitionKey   string                `query:"process_definition_key"`
	Status          models.InstanceStatus `query:"status"`
	TenantIDIn      []string              `query:"tenant_id_in"`
	WithoutTenantID bool                  `query:"without_tenant_id"`
}

// Deploy compiles and stores the resources as one deployment.
func (e *Engine) Deploy(ctx context.Context, resources []definition.Resource, name, tenantID string) (*models.Deployment, error) {
	ctx, span := e.startSpan(ctx, "engine.deploy", attribute.String(otelhelper.TenantIDKey, tenantID))
	defer span.End()

	deployment, err := e.catalog.Deploy(ctx, resources, name, tenantID)
	if err != nil {
		return nil, e.fail(ctx, span, "Deploy", err)
	}

	span.SetAttributes(attribute.String(otelhelper.DeploymentIDKey, deployment.ID))

	e.publish(ctx, deployment.ID, events.DeploymentCreated{
		BaseEvent:     events.NewBaseEvent(events.DeploymentCreatedEvent, "", tenantID),
		DeploymentID:  deployment.ID,
		Name:          deployment.Name,
		DefinitionIDs: deployment.DefinitionIDs,
	})

	return deployment, nil
}

// SuspendDefinition stops new instances from being started from the definition.
func (e *Engine) SuspendDefinition(ctx context.Context, definitionID string) (*models.ProcessDefinition, error) {
	ctx, span := e.startSpan(ctx, "engine.suspend_definition", attribute.String(otelhelper.DefinitionIDKey, definitionID))
	defer span.End()

	def, err := e.catalog.Suspend(ctx, definitionID)
	if err != nil {
		return nil, e.fail(ctx, span, "SuspendDefinition", err)
	}

	return def, nil
}

// ActivateDefinition reverses SuspendDefinition.
func (e *Engine) ActivateDefinition(ctx context.Context, definitionID string) (*models.ProcessDefinition, error) {
	ctx, span := e.startSpan(ctx, "engine.activate_definition", attribute.String(otelhelper.DefinitionIDKey, definitionID))
	defer span.End()

	def, err := e.catalog.Activate(ctx, definitionID)
	if err != nil {
		return nil, e.fail(ctx, span, "ActivateDefinition", err)
	}

	return def, nil
}

// StartByKey starts the latest non-suspended version of key within the tenant.
func (e *Engine) StartByKey(ctx context.Context, key string, vars map[string]any, tenantID string) (*models.ProcessInstance, error) {
	ctx, span := e.startSpan(ctx, "engine.start_by_key",
		attribute.String(otelhelper.DefinitionKeyKey, key),
		attribute.String(otelhelper.TenantIDKey, tenantID))
	defer span.End()

	def, err := e.catalog.ResolveLatest(key, tenantID)
	if err != nil {
		return nil, e.fail(ctx, span, "StartByKey", err)
	}

	instance, err := e.start(ctx, def, vars)
	if err != nil {
		return nil, e.fail(ctx, span, "StartByKey", models.NewEngineError("StartByKey", "process definition", def.ID, err))
	}

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, instance.ID))

	return instance, nil
}

// StartByID starts an exact definition version.
func (e *Engine) StartByID(ctx context.Context, definitionID string, vars map[string]any) (*models.ProcessInstance, error) {
	ctx, span := e.startSpan(ctx, "engine.start_by_id", attribute.String(otelhelper.DefinitionIDKey, definitionID))
	defer span.End()

	def, err := e.catalog.ResolveByID(definitionID)
	if err != nil {
		return nil, e.fail(ctx, span, "StartByID", err)
	}

	if def.Suspended {
		return nil, e.fail(ctx, span, "StartByID",
			models.NewEngineError("StartByID", "process definition", definitionID, models.ErrDefinitionSuspended))
	}

	instance, err := e.start(ctx, def, vars)
	if err != nil {
		return nil, e.fail(ctx, span, "StartByID", models.NewEngineError("StartByID", "process definition", def.ID, err))
	}

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, instance.ID))

	return instance, nil
}

func (e *Engine) start(ctx context.Context, def *models.ProcessDefinition, vars map[string]any) (*models.ProcessInstance, error) {
	normalized, err := models.NormalizeVariables(vars)
	if err != nil {
		return nil, err
	}

	instance := &models.ProcessInstance{
		ID:            uuid.NewString(),
		DefinitionID:  def.ID,
		DefinitionKey: def.Key,
		TenantID:      def.TenantID,
		Status:        models.InstanceStatusActive,
		ActiveTaskIDs: []string{},
		StartedAt:     e.now(),
	}

	x := e.newExecution(def, instance, nil)
	if err := x.setInstanceVariables("", normalized); err != nil {
		return nil, err
	}

	queue := make([]token, 0, 1)
	for _, node := range def.StartNodes() {
		queue = append(queue, token{nodeID: node.ID})
	}

	if err := x.run(ctx, queue); err != nil {
		return nil, err
	}

	if err := e.persistence.Commit(ctx, x.batch()); err != nil {
		return nil, err
	}

	x.apply(&instanceEntry{})

	e.logger.InfoContext(ctx, "Started process instance",
		"instance_id", instance.ID, "definition_id", def.ID, "tasks", len(x.created), "status", instance.Status)

	started := events.ProcessInstanceStarted{
		BaseEvent:     events.NewBaseEvent(events.ProcessInstanceStartedEvent, instance.ID, instance.TenantID),
		DefinitionID:  def.ID,
		DefinitionKey: def.Key,
		Variables:     normalized,
	}

	published := append([]eventbus.Event{started}, x.variableEvents()...)
	e.publish(ctx, instance.ID, append(published, x.events...)...)

	return instance, nil
}

// Instance returns a process instance, including finished ones.
func (e *Engine) Instance(id string) (*models.ProcessInstance, error) {
	entry, err := e.lookupInstance("Instance", id)
	if err != nil {
		return nil, err
	}

	return entry.current.Load(), nil
}

// Instances lists instances matching the query in start order.
func (e *Engine) Instances(query InstanceQuery) []*models.ProcessInstance {
	e.mu.RLock()

	all := make([]*models.ProcessInstance, 0, len(e.instances))
	for _, entry := range e.instances {
		all = append(all, entry.current.Load())
	}

	e.mu.RUnlock()

	result := slices.DeleteFunc(all, func(instance *models.ProcessInstance) bool {
		switch {
		case query.DefinitionID != "" && instance.DefinitionID != query.DefinitionID,
			query.DefinitionKey != "" && instance.DefinitionKey != query.DefinitionKey,
			query.Status != "" && instance.Status != query.Status,
			query.WithoutTenantID && instance.TenantID != "",
			len(query.TenantIDIn) > 0 && !slices.Contains(query.TenantIDIn, instance.TenantID):
			return true
		}

		return false
	})

	slices.SortFunc(result, func(a, b *models.ProcessInstance) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.ID, b.ID))
	})

	return result
}

// Terminate ends an active instance and removes its open tasks.
func (e *Engine) Terminate(ctx context.Context, id, reason string) (*models.ProcessInstance, error) {
	ctx, span := e.startSpan(ctx, "engine.terminate", attribute.String(otelhelper.InstanceIDKey, id))
	defer span.End()

	entry, err := e.lookupInstance("Terminate", id)
	if err != nil {
		return nil, e.fail(ctx, span, "Terminate", err)
	}

	tasks, unlock := e.lockInstanceWithTasks(entry)
	defer unlock()

	current := entry.current.Load()
	if !current.IsActive() {
		return current, nil
	}

	now := e.now()
	updated := current.Clone()
	updated.Status = models.InstanceStatusTerminated
	updated.EndedAt = &now
	updated.EndReason = reason
	updated.ActiveTaskIDs = []string{}
	updated.Joins = nil

	change := e.variables.Begin()
	batch := persistence.NewBatch()
	batch.SaveInstance(updated)

	for _, task := range tasks {
		batch.DeleteTask(task.current.Load().ID)
		change.DeleteScope(task.current.Load().ID)
	}

	batch.Append(change.Batch())

	if err := e.persistence.Commit(ctx, batch); err != nil {
		return nil, e.fail(ctx, span, "Terminate", models.NewEngineError("Terminate", "process instance", id, err))
	}

	e.variables.Apply(change)
	entry.current.Store(updated)
	e.removeTasks(tasks)

	e.logger.InfoContext(ctx, "Terminated process instance", "instance_id", id, "reason", reason, "tasks_removed", len(tasks))

	e.publish(ctx, id, events.ProcessInstanceTerminated{
		BaseEvent:    events.NewBaseEvent(events.ProcessInstanceTerminatedEvent, id, updated.TenantID),
		DefinitionID: updated.DefinitionID,
		Reason:       reason,
	})

	return updated, nil
}

// lockInstanceWithTasks locks the active tasks of the instance and then the instance,
// retrying until the locked task set matches the instance's active set.
func (e *Engine) lockInstanceWithTasks(entry *instanceEntry) ([]*taskEntry, func()) {
	for {
		ids := slices.Clone(entry.current.Load().ActiveTaskIDs)
		slices.Sort(ids)

		e.mu.RLock()

		tasks := make([]*taskEntry, 0, len(ids))
		for _, id := range ids {
			if task, ok := e.tasks[id]; ok {
				tasks = append(tasks, task)
			}
		}

		e.mu.RUnlock()

		for _, task := range tasks {
			task.mu.Lock()
		}

		entry.mu.Lock()

		active := slices.Clone(entry.current.Load().ActiveTaskIDs)
		slices.Sort(active)

		if slices.Equal(active, ids) {
			return tasks, func() {
				entry.mu.Unlock()

				for _, task := range tasks {
					task.mu.Unlock()
				}
			}
		}

		entry.mu.Unlock()

		for _, task := range tasks {
			task.mu.Unlock()
		}
	}
}

// removeTasks drops task entries from the registry. Callers hold each entry's lock.
func (e *Engine) removeTasks(tasks []*taskEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, task := range tasks {
		task.removed = true
		delete(e.tasks, task.current.Load().ID)
	}
}
