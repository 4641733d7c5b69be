// Package persistence provides the storage abstraction for engine state.
//
// The engine keeps its authoritative state in memory. Every mutation is described
// as a Batch of row writes which a backend must commit atomically before the
// engine applies it. On startup the engine rebuilds its state from Load.
package persistence

import (
	"context"
)

// Persistence is implemented by every storage backend.
type Persistence interface {
	// Commit durably applies every operation of the batch, or none of them.
	Commit(ctx context.Context, batch *Batch) error

	// Load returns every stored row decoded into a snapshot.
	Load(ctx context.Context) (*Snapshot, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// Table is a logical table of the persisted layout.
type Table string

const (
	TableProcessDefinition Table = "process_definition"
	TableDeployment        Table = "deployment"
	TableProcessInstance   Table = "process_instance"
	TableTask              Table = "task"
	TableVariable          Table = "variable"
	TableVariableHistory   Table = "variable_history"
	TableUser              Table = "user"
	TableGroup             Table = "group"
	TableTenant            Table = "tenant"
	TableMembership        Table = "membership"
)

// Tables lists every logical table in dependency order.
var Tables = []Table{
	TableDeployment,
	TableProcessDefinition,
	TableProcessInstance,
	TableTask,
	TableVariable,
	TableVariableHistory,
	TableUser,
	TableGroup,
	TableTenant,
	TableMembership,
}

// Rows holds raw JSON rows per table, keyed by row ID.
type Rows map[Table]map[string][]byte

// Add stores a raw row.
func (r Rows) Add(table Table, id string, data []byte) {
	if r[table] == nil {
		r[table] = make(map[string][]byte)
	}

	r[table][id] = data
}

// Apply applies the batch operations to the rows in order.
func (r Rows) Apply(ops []Operation) {
	for _, op := range ops {
		if op.Delete {
			delete(r[op.Table], op.ID)

			continue
		}

		r.Add(op.Table, op.ID, op.Data)
	}
}
