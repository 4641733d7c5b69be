// Package boltdb provides embedded BoltDB persistence: one bucket per logical table.
package boltdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/persistence"
	"go.etcd.io/bbolt"
)

const backend = "boltdb"

// Persistence implements the persistence layer over a BoltDB file.
type Persistence struct {
	db *bbolt.DB
}

// NewPersistence opens (creating if needed) the BoltDB file at path.
// A bolt:// prefix is accepted so the path can be given as a database URL.
func NewPersistence(path string) (*Persistence, error) {
	path = strings.TrimPrefix(path, "bolt://")

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB database %s: %w", path, err)
	}

	return &Persistence{db: db}, nil
}

// Commit applies the batch in a single read-write transaction.
func (p *Persistence) Commit(ctx context.Context, batch *persistence.Batch) error {
	ops, err := batch.Operations()
	if err != nil {
		return persistence.NewStorageError("Commit", backend, err)
	}

	if err := ctx.Err(); err != nil {
		return persistence.NewStorageError("Commit", backend, err)
	}

	err = p.db.Update(func(tx *bbolt.Tx) error {
		for _, op := range ops {
			bucket, err := tx.CreateBucketIfNotExists([]byte(op.Table))
			if err != nil {
				return fmt.Errorf("failed to open bucket %s: %w", op.Table, err)
			}

			if op.Delete {
				err = bucket.Delete([]byte(op.ID))
			} else {
				err = bucket.Put([]byte(op.ID), op.Data)
			}

			if err != nil {
				return fmt.Errorf("failed to write %s %s: %w", op.Table, op.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return persistence.NewStorageError("Commit", backend, err)
	}

	return nil
}

// Load reads every bucket inside one read-only transaction.
func (p *Persistence) Load(_ context.Context) (*persistence.Snapshot, error) {
	rows := make(persistence.Rows)

	err := p.db.View(func(tx *bbolt.Tx) error {
		for _, table := range persistence.Tables {
			bucket := tx.Bucket([]byte(table))
			if bucket == nil {
				continue
			}

			err := bucket.ForEach(func(k, v []byte) error {
				// Values are only valid for the life of the transaction.
				rows.Add(table, string(k), append([]byte(nil), v...))

				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", table, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("Load", backend, err)
	}

	snapshot, err := persistence.DecodeSnapshot(rows)
	if err != nil {
		return nil, persistence.NewStorageError("Load", backend, err)
	}

	return snapshot, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return p.db.View(func(*bbolt.Tx) error {
		return nil
	})
}

// Path returns the database file path.
func (p *Persistence) Path() string {
	return p.db.Path()
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close BoltDB database: %w", err)
	}

	return nil
}
