// Package redis provides Redis persistence: one hash per logical table,
// each field a JSON document keyed by row id.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	backend       = "redis"
	defaultPrefix = "taskflow"
)

// Persistence implements the persistence layer for Redis.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewPersistence connects to the Redis server addressed by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return NewPersistenceWithClient(client, logger, defaultPrefix), nil
}

// NewPersistenceWithClient wraps an existing client. Keys are namespaced by prefix.
func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	return &Persistence{client: client, logger: logger, prefix: prefix}
}

func (p *Persistence) key(table persistence.Table) string {
	return p.prefix + ":" + string(table)
}

// Commit applies the batch inside MULTI/EXEC.
func (p *Persistence) Commit(ctx context.Context, batch *persistence.Batch) error {
	ops, err := batch.Operations()
	if err != nil {
		return persistence.NewStorageError("Commit", backend, err)
	}

	if len(ops) == 0 {
		return nil
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			if op.Delete {
				pipe.HDel(ctx, p.key(op.Table), op.ID)
			} else {
				pipe.HSet(ctx, p.key(op.Table), op.ID, op.Data)
			}
		}

		return nil
	})
	if err != nil {
		return persistence.NewStorageError("Commit", backend, fmt.Errorf("failed to execute transaction: %w", err))
	}

	p.logger.DebugContext(ctx, "Committed batch", "operations", len(ops))

	return nil
}

// Load reads every table hash in one MULTI/EXEC so the snapshot is consistent.
func (p *Persistence) Load(ctx context.Context) (*persistence.Snapshot, error) {
	results := make(map[persistence.Table]*redis.MapStringStringCmd, len(persistence.Tables))

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, table := range persistence.Tables {
			results[table] = pipe.HGetAll(ctx, p.key(table))
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("Load", backend, fmt.Errorf("failed to read tables: %w", err))
	}

	rows := make(persistence.Rows)

	for table, cmd := range results {
		values, err := cmd.Result()
		if err != nil {
			return nil, persistence.NewStorageError("Load", backend, fmt.Errorf("failed to read %s: %w", table, err))
		}

		for id, data := range values {
			rows.Add(table, id, []byte(data))
		}
	}

	snapshot, err := persistence.DecodeSnapshot(rows)
	if err != nil {
		return nil, persistence.NewStorageError("Load", backend, err)
	}

	return snapshot, nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return persistence.NewStorageError("HealthCheck", backend, err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
