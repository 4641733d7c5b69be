// Package catalog holds deployed process definitions, versioned per key and tenant.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/google/uuid"
)

// Committer is the slice of persistence the catalog needs to store deployments.
type Committer interface {
	Commit(ctx context.Context, batch *persistence.Batch) error
}

// DefinitionQuery filters definitions. Zero fields do not filter.
type DefinitionQuery struct {
	Key             string   `query:"key"`
	TenantIDIn      []string `query:"tenant_id_in"`
	WithoutTenantID bool     `query:"without_tenant_id"`
	LatestOnly      bool     `query:"latest_only"`
}

type versionKey struct {
	key, tenantID string
}

// Catalog is the deployment catalog.
type Catalog struct {
	logger    *slog.Logger
	compiler  *definition.Compiler
	committer Committer
	now       func() time.Time

	mu          sync.RWMutex
	definitions map[string]*models.ProcessDefinition
	deployments map[string]*models.Deployment
	versions    map[versionKey][]*models.ProcessDefinition // ascending by version
}

// New creates an empty catalog.
func New(logger *slog.Logger, compiler *definition.Compiler, committer Committer) *Catalog {
	return &Catalog{
		logger:      logger,
		compiler:    compiler,
		committer:   committer,
		now:         func() time.Time { return time.Now().UTC() },
		definitions: make(map[string]*models.ProcessDefinition),
		deployments: make(map[string]*models.Deployment),
		versions:    make(map[versionKey][]*models.ProcessDefinition),
	}
}

// Restore loads previously persisted deployments and definitions.
func (c *Catalog) Restore(snapshot *persistence.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, deployment := range snapshot.Deployments {
		c.deployments[deployment.ID] = deployment
	}

	for _, def := range snapshot.Definitions {
		c.insert(def)
	}
}

// Deploy compiles every resource and stores them as one deployment.
// Any invalid resource fails the whole deployment and leaves the catalog unchanged.
func (c *Catalog) Deploy(ctx context.Context, resources []definition.Resource, name, tenantID string) (*models.Deployment, error) {
	compiled, err := c.compile(resources)
	if err != nil {
		return nil, models.NewEngineError("Deploy", "deployment", "", err)
	}

	// Holding the write lock across commit keeps version numbers unique.
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	deployment := &models.Deployment{
		ID:         uuid.NewString(),
		Name:       name,
		TenantID:   tenantID,
		DeployedAt: now,
	}

	batch := persistence.NewBatch()

	for _, def := range compiled {
		def.Version = c.nextVersion(def.Key, tenantID)
		def.ID = def.Key + ":" + strconv.Itoa(def.Version) + ":" + uuid.NewString()
		def.TenantID = tenantID
		def.DeploymentID = deployment.ID
		def.CreatedAt = now

		deployment.DefinitionIDs = append(deployment.DefinitionIDs, def.ID)
		batch.SaveDefinition(def)
	}

	batch.SaveDeployment(deployment)

	if err := c.committer.Commit(ctx, batch); err != nil {
		return nil, models.NewEngineError("Deploy", "deployment", deployment.ID, err)
	}

	c.deployments[deployment.ID] = deployment
	for _, def := range compiled {
		c.insert(def)
	}

	c.logger.InfoContext(ctx, "Deployed process definitions",
		"deployment_id", deployment.ID, "name", name, "tenant_id", tenantID, "definitions", len(compiled))

	return deployment, nil
}

// Validate compiles the resources as Deploy would, without storing anything.
func (c *Catalog) Validate(resources []definition.Resource) ([]*models.ProcessDefinition, error) {
	compiled, err := c.compile(resources)
	if err != nil {
		return nil, models.NewEngineError("Validate", "deployment", "", err)
	}

	return compiled, nil
}

func (c *Catalog) compile(resources []definition.Resource) ([]*models.ProcessDefinition, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("%w: no resources", models.ErrInvalidDefinition)
	}

	compiled := make([]*models.ProcessDefinition, 0, len(resources))
	keys := make(map[string]string)

	for _, resource := range resources {
		def, err := c.compiler.Compile(resource)
		if err != nil {
			return nil, err
		}

		if other, ok := keys[def.Key]; ok {
			return nil, fmt.Errorf("%w: resources %s and %s share key %q", models.ErrInvalidDefinition, other, resource.Name, def.Key)
		}

		keys[def.Key] = resource.Name
		compiled = append(compiled, def)
	}

	return compiled, nil
}

func (c *Catalog) nextVersion(key, tenantID string) int {
	versions := c.versions[versionKey{key, tenantID}]
	if len(versions) == 0 {
		return 1
	}

	return versions[len(versions)-1].Version + 1
}

func (c *Catalog) insert(def *models.ProcessDefinition) {
	c.definitions[def.ID] = def

	vk := versionKey{def.Key, def.TenantID}
	versions := append(c.versions[vk], def)
	slices.SortFunc(versions, func(a, b *models.ProcessDefinition) int {
		return cmp.Compare(a.Version, b.Version)
	})
	c.versions[vk] = versions
}

// ResolveLatest returns the highest non-suspended version of key.
// Tenant filtering is exclusive: a tenant ID restricts to that tenant, an empty one
// restricts to tenant-less definitions.
func (c *Catalog) ResolveLatest(key, tenantID string) (*models.ProcessDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	versions := c.versions[versionKey{key, tenantID}]
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].Suspended {
			return versions[i], nil
		}
	}

	return nil, models.NotFound("ResolveLatest", "process definition", key)
}

// ResolveByID returns the exact definition version.
func (c *Catalog) ResolveByID(id string) (*models.ProcessDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.definitions[id]
	if !ok {
		return nil, models.NotFound("ResolveByID", "process definition", id)
	}

	return def, nil
}

// Definitions lists definitions matching the query, ordered by key, tenant and version.
func (c *Catalog) Definitions(query DefinitionQuery) []*models.ProcessDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*models.ProcessDefinition

	for vk, versions := range c.versions {
		if query.Key != "" && vk.key != query.Key {
			continue
		}

		if query.WithoutTenantID && vk.tenantID != "" {
			continue
		}

		if len(query.TenantIDIn) > 0 && !slices.Contains(query.TenantIDIn, vk.tenantID) {
			continue
		}

		if query.LatestOnly {
			result = append(result, versions[len(versions)-1])
		} else {
			result = append(result, versions...)
		}
	}

	slices.SortFunc(result, func(a, b *models.ProcessDefinition) int {
		return cmp.Or(cmp.Compare(a.Key, b.Key), cmp.Compare(a.TenantID, b.TenantID), cmp.Compare(a.Version, b.Version))
	})

	return result
}

// Deployments lists every deployment in deployment order.
func (c *Catalog) Deployments() []*models.Deployment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*models.Deployment, 0, len(c.deployments))
	for _, deployment := range c.deployments {
		result = append(result, deployment)
	}

	slices.SortFunc(result, func(a, b *models.Deployment) int {
		return cmp.Or(a.DeployedAt.Compare(b.DeployedAt), cmp.Compare(a.ID, b.ID))
	})

	return result
}

// Deployment returns one deployment.
func (c *Catalog) Deployment(id string) (*models.Deployment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	deployment, ok := c.deployments[id]
	if !ok {
		return nil, models.NotFound("Deployment", "deployment", id)
	}

	return deployment, nil
}

// Suspend stops new instances from being started from the definition.
func (c *Catalog) Suspend(ctx context.Context, id string) (*models.ProcessDefinition, error) {
	return c.setSuspended(ctx, "Suspend", id, true)
}

// Activate reverses Suspend.
func (c *Catalog) Activate(ctx context.Context, id string) (*models.ProcessDefinition, error) {
	return c.setSuspended(ctx, "Activate", id, false)
}

func (c *Catalog) setSuspended(ctx context.Context, op, id string, suspended bool) (*models.ProcessDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.definitions[id]
	if !ok {
		return nil, models.NotFound(op, "process definition", id)
	}

	if current.Suspended == suspended {
		return current, nil
	}

	updated := *current
	updated.Suspended = suspended

	batch := persistence.NewBatch()
	batch.SaveDefinition(&updated)

	if err := c.committer.Commit(ctx, batch); err != nil {
		return nil, models.NewEngineError(op, "process definition", id, err)
	}

	c.definitions[id] = &updated

	vk := versionKey{updated.Key, updated.TenantID}
	for i, def := range c.versions[vk] {
		if def.ID == id {
			c.versions[vk][i] = &updated
		}
	}

	c.logger.InfoContext(ctx, "Changed process definition state", "definition_id", id, "suspended", suspended)

	return &updated, nil
}
