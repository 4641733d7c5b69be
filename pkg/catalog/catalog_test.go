package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/taskflow/pkg/catalog"
	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewYAML = `
key: review
nodes:
  - {id: start, type: startEvent}
  - {id: review, type: userTask, candidateGroups: management}
  - {id: end, type: endEvent}
transitions:
  - {from: start, to: review}
  - {from: review, to: end}
`

const leaveYAML = `
key: leave
name: Leave Request
nodes:
  - {id: start, type: startEvent}
  - {id: approve, type: userTask, assignee: demo}
transitions:
  - {from: start, to: approve}
`

var errStorageDown = errors.New("storage down")

type failingCommitter struct{}

func (failingCommitter) Commit(context.Context, *persistence.Batch) error {
	return errStorageDown
}

func newCatalog(committer catalog.Committer) *catalog.Catalog {
	return catalog.New(log.Discard(), definition.NewCompiler(), committer)
}

func resource(name, content string) definition.Resource {
	return definition.Resource{Name: name, Content: []byte(content)}
}

func TestDeploy_VersionsIncrease(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(memory.NewPersistence())

	for want := 1; want <= 3; want++ {
		deployment, err := c.Deploy(ctx, []definition.Resource{resource("review.yaml", reviewYAML)}, "review", "")
		require.NoError(t, err)
		require.Len(t, deployment.DefinitionIDs, 1)

		latest, err := c.ResolveLatest("review", "")
		require.NoError(t, err)
		assert.Equal(t, want, latest.Version)
		assert.Equal(t, deployment.DefinitionIDs[0], latest.ID)
		assert.Equal(t, deployment.ID, latest.DeploymentID)
		assert.Regexp(t, `^review:\d+:[0-9a-f-]{36}$`, latest.ID)
	}

	assert.Len(t, c.Definitions(catalog.DefinitionQuery{Key: "review"}), 3)
	assert.Len(t, c.Definitions(catalog.DefinitionQuery{Key: "review", LatestOnly: true}), 1)
	assert.Len(t, c.Deployments(), 3)
}

func TestDeploy_MultipleResourcesAreOneDeployment(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	c := newCatalog(store)

	deployment, err := c.Deploy(ctx, []definition.Resource{
		resource("review.yaml", reviewYAML),
		resource("leave.yaml", leaveYAML),
	}, "bundle", "")
	require.NoError(t, err)
	assert.Len(t, deployment.DefinitionIDs, 2)

	got, err := c.Deployment(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, "bundle", got.Name)

	snapshot, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Deployments, 1)
	assert.Len(t, snapshot.Definitions, 2)
}

func TestDeploy_InvalidResourceLeavesCatalogUnchanged(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(memory.NewPersistence())

	_, err := c.Deploy(ctx, []definition.Resource{
		resource("review.yaml", reviewYAML),
		resource("broken.yaml", "key: broken\nnodes:\n  - {id: task, type: userTask}\n"),
	}, "bundle", "")
	require.ErrorIs(t, err, models.ErrInvalidDefinition)

	assert.Empty(t, c.Deployments())
	assert.Empty(t, c.Definitions(catalog.DefinitionQuery{}))

	_, err = c.Deploy(ctx, nil, "empty", "")
	assert.ErrorIs(t, err, models.ErrInvalidDefinition)

	_, err = c.Deploy(ctx, []definition.Resource{
		resource("a.yaml", reviewYAML),
		resource("b.yaml", reviewYAML),
	}, "duplicate", "")
	assert.ErrorIs(t, err, models.ErrInvalidDefinition)
}

func TestDeploy_CommitFailureLeavesCatalogUnchanged(t *testing.T) {
	c := newCatalog(failingCommitter{})

	_, err := c.Deploy(context.Background(), []definition.Resource{resource("review.yaml", reviewYAML)}, "review", "")
	require.ErrorIs(t, err, errStorageDown)

	assert.Empty(t, c.Deployments())

	_, err = c.ResolveLatest("review", "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResolveLatest_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(memory.NewPersistence())
	resources := []definition.Resource{resource("review.yaml", reviewYAML)}

	_, err := c.Deploy(ctx, resources, "shared", "")
	require.NoError(t, err)
	_, err = c.Deploy(ctx, resources, "acme", "acme")
	require.NoError(t, err)
	_, err = c.Deploy(ctx, resources, "acme", "acme")
	require.NoError(t, err)

	shared, err := c.ResolveLatest("review", "")
	require.NoError(t, err)
	assert.Equal(t, 1, shared.Version)
	assert.Empty(t, shared.TenantID)

	acme, err := c.ResolveLatest("review", "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, acme.Version)
	assert.Equal(t, "acme", acme.TenantID)

	_, err = c.ResolveLatest("review", "globex")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Len(t, c.Definitions(catalog.DefinitionQuery{WithoutTenantID: true}), 1)
	assert.Len(t, c.Definitions(catalog.DefinitionQuery{TenantIDIn: []string{"acme"}}), 2)
	assert.Len(t, c.Definitions(catalog.DefinitionQuery{TenantIDIn: []string{"acme"}, LatestOnly: true}), 1)
}

func TestSuspendAndActivate(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(memory.NewPersistence())
	resources := []definition.Resource{resource("review.yaml", reviewYAML)}

	first, err := c.Deploy(ctx, resources, "v1", "")
	require.NoError(t, err)
	second, err := c.Deploy(ctx, resources, "v2", "")
	require.NoError(t, err)

	suspended, err := c.Suspend(ctx, second.DefinitionIDs[0])
	require.NoError(t, err)
	assert.True(t, suspended.Suspended)

	latest, err := c.ResolveLatest("review", "")
	require.NoError(t, err)
	assert.Equal(t, first.DefinitionIDs[0], latest.ID)

	byID, err := c.ResolveByID(second.DefinitionIDs[0])
	require.NoError(t, err)
	assert.True(t, byID.Suspended)

	_, err = c.Activate(ctx, second.DefinitionIDs[0])
	require.NoError(t, err)

	latest, err = c.ResolveLatest("review", "")
	require.NoError(t, err)
	assert.Equal(t, second.DefinitionIDs[0], latest.ID)

	_, err = c.Suspend(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	_, err := newCatalog(store).Deploy(ctx, []definition.Resource{resource("review.yaml", reviewYAML)}, "review", "")
	require.NoError(t, err)

	snapshot, err := store.Load(ctx)
	require.NoError(t, err)

	restored := newCatalog(store)
	restored.Restore(snapshot)

	latest, err := restored.ResolveLatest("review", "")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)

	_, err = restored.Deploy(ctx, []definition.Resource{resource("review.yaml", reviewYAML)}, "review", "")
	require.NoError(t, err)

	latest, err = restored.ResolveLatest("review", "")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestValidate_DoesNotStore(t *testing.T) {
	c := newCatalog(failingCommitter{})

	defs, err := c.Validate([]definition.Resource{resource("review.yaml", reviewYAML), resource("leave.yaml", leaveYAML)})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "review", defs[0].Key)
	assert.Empty(t, c.Deployments())

	_, err = c.Validate(nil)
	require.ErrorIs(t, err, models.ErrInvalidDefinition)

	_, err = c.Validate([]definition.Resource{resource("a.yaml", reviewYAML), resource("b.yaml", reviewYAML)})
	require.ErrorIs(t, err, models.ErrInvalidDefinition)
}
