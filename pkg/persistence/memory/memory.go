// Package memory provides an in-process persistence implementation.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/dukex/taskflow/pkg/persistence"
)

// Persistence keeps committed rows in process memory. Nothing survives a restart.
type Persistence struct {
	mu   sync.Mutex
	rows persistence.Rows
}

// NewPersistence creates an empty in-memory persistence.
func NewPersistence() *Persistence {
	return &Persistence{rows: make(persistence.Rows)}
}

func (p *Persistence) Commit(_ context.Context, batch *persistence.Batch) error {
	ops, err := batch.Operations()
	if err != nil {
		return persistence.NewStorageError("Commit", "memory", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.rows.Apply(ops)

	return nil
}

func (p *Persistence) Load(_ context.Context) (*persistence.Snapshot, error) {
	p.mu.Lock()

	rows := make(persistence.Rows, len(p.rows))
	for table, tableRows := range p.rows {
		rows[table] = maps.Clone(tableRows)
	}

	p.mu.Unlock()

	return persistence.DecodeSnapshot(rows)
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
