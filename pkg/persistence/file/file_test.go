package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence(t *testing.T) {
	persistencetest.Run(t, persistencetest.Factory{
		New: func(t *testing.T) persistence.Persistence {
			return NewPersistence(t.TempDir())
		},
		Reopen: func(_ *testing.T, previous persistence.Persistence) persistence.Persistence {
			return NewPersistence(previous.(*Persistence).root)
		},
	})
}

func TestPersistence_FileLayout(t *testing.T) {
	root := t.TempDir()
	fp := NewPersistence(root)

	batch := persistence.NewBatch()
	batch.SaveDefinition(&models.ProcessDefinition{ID: "invoice:1:abc", Key: "invoice", Version: 1})
	batch.SaveVariable(&models.Variable{ScopeID: "instance-1", Name: "a/b", Value: "x"})
	require.NoError(t, fp.Commit(context.Background(), batch))

	path := filepath.Join(root, "process_definition", fileName("invoice:1:abc"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key": "invoice"`)

	id, err := rowID(fileName("instance-1/a/b"))
	require.NoError(t, err)
	assert.Equal(t, "instance-1/a/b", id)

	entries, err := os.ReadDir(filepath.Join(root, "variable"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staged files are left behind")
}

func TestPersistence_HealthCheck(t *testing.T) {
	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(context.Background()))
	assert.Error(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(context.Background()))
}
