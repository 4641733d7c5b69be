package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

// Operation is a single row write or delete.
type Operation struct {
	Table  Table
	ID     string
	Data   []byte // JSON document; nil when Delete is set
	Delete bool
}

// Batch collects row operations committed as one unit.
type Batch struct {
	ops []Operation
	err error
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put encodes value as JSON and stores it under table/id.
func (b *Batch) Put(table Table, id string, value any) {
	if b.err != nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		b.err = fmt.Errorf("failed to encode %s %s: %w", table, id, err)

		return
	}

	b.ops = append(b.ops, Operation{Table: table, ID: id, Data: data})
}

// Delete removes the row table/id.
func (b *Batch) Delete(table Table, id string) {
	b.ops = append(b.ops, Operation{Table: table, ID: id, Delete: true})
}

// Append adds the operations of other to the batch.
func (b *Batch) Append(other *Batch) {
	if other == nil {
		return
	}

	if b.err == nil {
		b.err = other.err
	}

	b.ops = append(b.ops, other.ops...)
}

// Operations returns the collected operations, or the first encoding error.
func (b *Batch) Operations() ([]Operation, error) {
	if b.err != nil {
		return nil, b.err
	}

	return b.ops, nil
}

// Len returns the number of operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Empty reports whether the batch has no operations.
func (b *Batch) Empty() bool {
	return len(b.ops) == 0 && b.err == nil
}

func (b *Batch) SaveDefinition(definition *models.ProcessDefinition) {
	b.Put(TableProcessDefinition, definition.ID, definition)
}

func (b *Batch) SaveDeployment(deployment *models.Deployment) {
	b.Put(TableDeployment, deployment.ID, deployment)
}

func (b *Batch) SaveInstance(instance *models.ProcessInstance) {
	b.Put(TableProcessInstance, instance.ID, instance)
}

func (b *Batch) SaveTask(task *models.Task) {
	b.Put(TableTask, task.ID, task)
}

func (b *Batch) DeleteTask(id string) {
	b.Delete(TableTask, id)
}

func (b *Batch) SaveVariable(variable *models.Variable) {
	b.Put(TableVariable, variable.Key(), variable)
}

func (b *Batch) DeleteVariable(scopeID, name string) {
	b.Delete(TableVariable, models.VariableKey(scopeID, name))
}

func (b *Batch) AppendHistory(update *models.HistoricVariableUpdate) {
	b.Put(TableVariableHistory, update.ID, update)
}

func (b *Batch) DeleteHistory(id string) {
	b.Delete(TableVariableHistory, id)
}

func (b *Batch) SaveUser(user *models.User) {
	b.Put(TableUser, user.ID, user)
}

func (b *Batch) DeleteUser(id string) {
	b.Delete(TableUser, id)
}

func (b *Batch) SaveGroup(group *models.Group) {
	b.Put(TableGroup, group.ID, group)
}

func (b *Batch) DeleteGroup(id string) {
	b.Delete(TableGroup, id)
}

func (b *Batch) SaveTenant(tenant *models.Tenant) {
	b.Put(TableTenant, tenant.ID, tenant)
}

func (b *Batch) DeleteTenant(id string) {
	b.Delete(TableTenant, id)
}

func (b *Batch) SaveMembership(membership models.Membership) {
	b.Put(TableMembership, membership.Key(), membership)
}

func (b *Batch) DeleteMembership(membership models.Membership) {
	b.Delete(TableMembership, membership.Key())
}
