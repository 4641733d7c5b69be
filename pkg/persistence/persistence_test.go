package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_Operations(t *testing.T) {
	batch := NewBatch()
	assert.True(t, batch.Empty())

	batch.SaveTask(&models.Task{ID: "t1", Sequence: 1})
	batch.SaveVariable(&models.Variable{ScopeID: "i1", Name: "a", Value: 1.0})
	batch.DeleteMembership(models.Membership{Kind: models.MembershipUserGroup, LeftID: "u", RightID: "g"})

	ops, err := batch.Operations()
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, TableTask, ops[0].Table)
	assert.Equal(t, "t1", ops[0].ID)
	assert.Equal(t, "i1/a", ops[1].ID)
	assert.True(t, ops[2].Delete)
	assert.Equal(t, "user-group:u:g", ops[2].ID)
	assert.Equal(t, 3, batch.Len())
}

func TestBatch_EncodingErrorIsSticky(t *testing.T) {
	batch := NewBatch()
	batch.Put(TableVariable, "bad", map[string]any{"ch": make(chan int)})
	batch.SaveUser(&models.User{ID: "demo"})

	assert.False(t, batch.Empty())

	_, err := batch.Operations()
	require.Error(t, err)

	other := NewBatch()
	other.Append(batch)

	_, err = other.Operations()
	assert.Error(t, err)
}

func TestRows_ApplyAndDecode(t *testing.T) {
	now := time.Now().UTC()

	batch := NewBatch()
	batch.SaveTask(&models.Task{ID: "t2", Sequence: 2})
	batch.SaveTask(&models.Task{ID: "t1", Sequence: 1})
	batch.SaveDefinition(&models.ProcessDefinition{ID: "p:2:x", Key: "p", Version: 2})
	batch.SaveDefinition(&models.ProcessDefinition{ID: "p:1:y", Key: "p", Version: 1})
	batch.AppendHistory(&models.HistoricVariableUpdate{ID: "h2", Sequence: 2, Time: now})
	batch.AppendHistory(&models.HistoricVariableUpdate{ID: "h1", Sequence: 1, Time: now})
	batch.SaveMembership(models.Membership{Kind: models.MembershipUserTenant, LeftID: "demo", RightID: "acme"})
	batch.SaveUser(&models.User{ID: "demo"})
	batch.DeleteUser("demo")

	ops, err := batch.Operations()
	require.NoError(t, err)

	rows := make(Rows)
	rows.Apply(ops)

	snapshot, err := DecodeSnapshot(rows)
	require.NoError(t, err)

	require.Len(t, snapshot.Tasks, 2)
	assert.Equal(t, "t1", snapshot.Tasks[0].ID)
	assert.Equal(t, 1, snapshot.Definitions[0].Version)
	assert.Equal(t, "h1", snapshot.History[0].ID)
	assert.Empty(t, snapshot.Users)
	assert.Equal(t, []models.Membership{{Kind: models.MembershipUserTenant, LeftID: "demo", RightID: "acme"}}, snapshot.Memberships)
}

func TestDecodeSnapshot_CorruptRow(t *testing.T) {
	rows := make(Rows)
	rows.Add(TableTask, "t1", []byte("{not json"))

	_, err := DecodeSnapshot(rows)
	assert.Error(t, err)
}

func TestStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("Commit", "redis", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Commit operation failed on redis persistence: connection refused", err.Error())
}
