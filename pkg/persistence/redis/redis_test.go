package redis_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/persistencetest"
	redispersistence "github.com/dukex/taskflow/pkg/persistence/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var redisContainer *testcontainers.DockerContainer

func redisAddr(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	if redisContainer == nil || !redisContainer.IsRunning() {
		var err error

		redisContainer, err = testcontainers.Run(ctx,
			"redis:7-alpine",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections")),
		)
		require.NoError(t, err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)

	return endpoint
}

func TestPersistence(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	newPersistence := func(t *testing.T, prefix string) persistence.Persistence {
		client := redis.NewClient(&redis.Options{Addr: redisAddr(t)})

		t.Cleanup(func() {
			_ = client.Close()
		})

		return redispersistence.NewPersistenceWithClient(client, logger, prefix)
	}

	prefixes := make(map[persistence.Persistence]string)

	persistencetest.Run(t, persistencetest.Factory{
		New: func(t *testing.T) persistence.Persistence {
			prefix := "test-" + uuid.NewString()
			p := newPersistence(t, prefix)
			prefixes[p] = prefix

			return p
		},
		Reopen: func(t *testing.T, previous persistence.Persistence) persistence.Persistence {
			return newPersistence(t, prefixes[previous])
		},
	})
}

func TestNewPersistence_URL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	p, err := redispersistence.NewPersistence(ctx, logger, "redis://"+redisAddr(t)+"/0")
	require.NoError(t, err)
	require.NoError(t, p.HealthCheck(ctx))
	require.NoError(t, p.Close(ctx))

	_, err = redispersistence.NewPersistence(ctx, logger, "not-a-url")
	require.Error(t, err)
}
