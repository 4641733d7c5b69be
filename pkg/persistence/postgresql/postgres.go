// Package postgresql provides PostgreSQL persistence: one table per logical table,
// each row a JSONB document keyed by id.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/sqlbase"
	"github.com/lib/pq"
)

const backend = "postgresql"

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,
	}, nil
}

func tableName(table persistence.Table) string {
	return pq.QuoteIdentifier(tableNames[string(table)])
}

// Commit applies the batch in a single transaction.
func (p *Persistence) Commit(ctx context.Context, batch *persistence.Batch) error {
	ops, err := batch.Operations()
	if err != nil {
		return persistence.NewStorageError("Commit", backend, err)
	}

	if len(ops) == 0 {
		return nil
	}

	transaction, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to begin transaction: %w", err))
	}

	for _, op := range ops {
		table := tableName(op.Table)

		if op.Delete {
			_, err = transaction.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", op.ID)
		} else {
			_, err = transaction.ExecContext(ctx, `
				INSERT INTO `+table+` (id, data, created_at, updated_at)
				VALUES ($1, $2, NOW(), NOW())
				ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
				op.ID, string(op.Data),
			)
		}

		if err != nil {
			_ = transaction.Rollback()

			return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to write %s %s: %w", op.Table, op.ID, err))
		}
	}

	if err := transaction.Commit(); err != nil {
		return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to commit transaction: %w", err))
	}

	p.logger.DebugContext(ctx, "Committed batch", "operations", len(ops))

	return nil
}

// Load reads every table inside one read-only transaction so the snapshot is consistent.
func (p *Persistence) Load(ctx context.Context) (*persistence.Snapshot, error) {
	transaction, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, persistence.NewStorageError("Load", backend, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	rows := make(persistence.Rows)

	for _, table := range persistence.Tables {
		if err := p.loadTable(ctx, transaction, table, rows); err != nil {
			return nil, persistence.NewStorageError("Load", backend, err)
		}
	}

	snapshot, err := persistence.DecodeSnapshot(rows)
	if err != nil {
		return nil, persistence.NewStorageError("Load", backend, err)
	}

	return snapshot, nil
}

func (p *Persistence) loadTable(ctx context.Context, transaction *sql.Tx, table persistence.Table, rows persistence.Rows) error {
	result, err := transaction.QueryContext(ctx, "SELECT id, data FROM "+tableName(table)+" ORDER BY created_at, id")
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}

	defer func() {
		_ = result.Close()
	}()

	for result.Next() {
		var (
			id   string
			data []byte
		)

		if err := result.Scan(&id, &data); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}

		rows.Add(table, id, data)
	}

	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to iterate %s: %w", table, err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return persistence.NewStorageError("HealthCheck", backend, fmt.Errorf("failed to ping database: %w", err))
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
