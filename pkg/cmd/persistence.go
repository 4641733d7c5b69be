package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/boltdb"
	"github.com/dukex/taskflow/pkg/persistence/file"
	"github.com/dukex/taskflow/pkg/persistence/memory"
	"github.com/dukex/taskflow/pkg/persistence/postgresql"
	"github.com/dukex/taskflow/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"memory", "file", "postgres", "postgresql", "redis", "rediss", "bolt"}

// NewPersistence opens the backend selected by the scheme of databaseURL.
// A URL without a known scheme is treated as a file directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "memory":
		return memory.NewPersistence(), nil
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger.With("backend", "postgresql"), databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger.With("backend", "redis"), databaseURL)
	case "bolt":
		store, err := boltdb.NewPersistence(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt database: %w", err)
		}

		return store, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
