// Package persistencetest holds the behaviour every persistence backend must satisfy.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty backend. Reopen, when non-nil, returns a new backend
// over the same storage so durability can be checked.
type Factory struct {
	New    func(t *testing.T) persistence.Persistence
	Reopen func(t *testing.T, previous persistence.Persistence) persistence.Persistence
}

// Run exercises a backend against the shared contract.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("empty load", func(t *testing.T) {
		p := factory.New(t)

		snapshot, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, snapshot.Definitions)
		assert.Empty(t, snapshot.Tasks)
		assert.NoError(t, p.HealthCheck(context.Background()))
	})

	t.Run("commit and load", func(t *testing.T) {
		ctx := context.Background()
		p := factory.New(t)

		require.NoError(t, p.Commit(ctx, sampleBatch()))

		snapshot, err := p.Load(ctx)
		require.NoError(t, err)
		assertSample(t, snapshot)
	})

	t.Run("overwrite and delete", func(t *testing.T) {
		ctx := context.Background()
		p := factory.New(t)

		require.NoError(t, p.Commit(ctx, sampleBatch()))

		batch := persistence.NewBatch()
		batch.SaveTask(&models.Task{ID: "task-1", Name: "Renamed", Status: models.TaskStatusAssigned, Assignee: "demo", Sequence: 1})
		batch.DeleteUser("demo")
		batch.DeleteMembership(models.Membership{Kind: models.MembershipUserGroup, LeftID: "demo", RightID: "management"})
		batch.DeleteHistory("history-1")
		require.NoError(t, p.Commit(ctx, batch))

		snapshot, err := p.Load(ctx)
		require.NoError(t, err)

		require.Len(t, snapshot.Tasks, 1)
		assert.Equal(t, "Renamed", snapshot.Tasks[0].Name)
		assert.Equal(t, "demo", snapshot.Tasks[0].Assignee)
		assert.Empty(t, snapshot.Users)
		assert.Empty(t, snapshot.Memberships)
		assert.Empty(t, snapshot.History)
	})

	t.Run("delete missing row", func(t *testing.T) {
		p := factory.New(t)

		batch := persistence.NewBatch()
		batch.DeleteTenant("missing")
		assert.NoError(t, p.Commit(context.Background(), batch))
	})

	t.Run("encoding error commits nothing", func(t *testing.T) {
		ctx := context.Background()
		p := factory.New(t)

		batch := sampleBatch()
		batch.Put(persistence.TableVariable, "bad", map[string]any{"ch": make(chan int)})
		require.Error(t, p.Commit(ctx, batch))

		snapshot, err := p.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, snapshot.Tasks)
		assert.Empty(t, snapshot.Definitions)
	})

	if factory.Reopen != nil {
		t.Run("durable across reopen", func(t *testing.T) {
			ctx := context.Background()
			p := factory.New(t)

			require.NoError(t, p.Commit(ctx, sampleBatch()))

			reopened := factory.Reopen(t, p)

			snapshot, err := reopened.Load(ctx)
			require.NoError(t, err)
			assertSample(t, snapshot)
		})
	}
}

func sampleBatch() *persistence.Batch {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	batch := persistence.NewBatch()
	batch.SaveDeployment(&models.Deployment{ID: "dep-1", Name: "invoice", DefinitionIDs: []string{"invoice:1:abc"}, DeployedAt: now})
	batch.SaveDefinition(&models.ProcessDefinition{
		ID:           "invoice:1:abc",
		Key:          "invoice",
		Version:      1,
		DeploymentID: "dep-1",
		Nodes:        []models.Node{{ID: "start", Type: models.NodeTypeStartEvent}, {ID: "approve", Type: models.NodeTypeUserTask}},
		Transitions:  []models.Transition{{ID: "f1", From: "start", To: "approve"}},
		CreatedAt:    now,
	})
	batch.SaveInstance(&models.ProcessInstance{
		ID:            "instance-1",
		DefinitionID:  "invoice:1:abc",
		DefinitionKey: "invoice",
		Status:        models.InstanceStatusActive,
		ActiveTaskIDs: []string{"task-1"},
		StartedAt:     now,
	})
	batch.SaveTask(&models.Task{
		ID:         "task-1",
		Name:       "Approve",
		NodeID:     "approve",
		InstanceID: "instance-1",
		Status:     models.TaskStatusCreated,
		Candidates: []models.IdentityLink{{TaskID: "task-1", Type: models.IdentityLinkCandidate, GroupID: "management"}},
		Sequence:   1,
		CreatedAt:  now,
	})
	batch.SaveVariable(&models.Variable{ScopeID: "instance-1", InstanceID: "instance-1", Name: "amount", Value: 100.5, UpdatedAt: now})
	batch.AppendHistory(&models.HistoricVariableUpdate{
		ID: "history-1", ScopeID: "instance-1", InstanceID: "instance-1", Name: "amount", Value: 100.5, Revision: 1, Sequence: 1, Time: now,
	})
	batch.SaveUser(&models.User{ID: "demo", FirstName: "Demo", Email: "demo@example.com"})
	batch.SaveGroup(&models.Group{ID: "management", Name: "Management", Type: "WORKFLOW"})
	batch.SaveTenant(&models.Tenant{ID: "acme", Name: "Acme"})
	batch.SaveMembership(models.Membership{Kind: models.MembershipUserGroup, LeftID: "demo", RightID: "management"})

	return batch
}

func assertSample(t *testing.T, snapshot *persistence.Snapshot) {
	t.Helper()

	require.Len(t, snapshot.Deployments, 1)
	require.Len(t, snapshot.Definitions, 1)
	assert.Equal(t, "invoice:1:abc", snapshot.Definitions[0].ID)
	assert.Len(t, snapshot.Definitions[0].Nodes, 2)

	require.Len(t, snapshot.Instances, 1)
	assert.Equal(t, []string{"task-1"}, snapshot.Instances[0].ActiveTaskIDs)

	require.Len(t, snapshot.Tasks, 1)
	assert.Equal(t, []string{"management"}, snapshot.Tasks[0].CandidateGroups())

	require.Len(t, snapshot.Variables, 1)
	assert.Equal(t, 100.5, snapshot.Variables[0].Value)

	require.Len(t, snapshot.History, 1)
	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, "demo@example.com", snapshot.Users[0].Email)
	require.Len(t, snapshot.Groups, 1)
	require.Len(t, snapshot.Tenants, 1)
	require.Len(t, snapshot.Memberships, 1)
}
