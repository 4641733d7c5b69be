// Package identity is the directory of users, groups, tenants and their memberships.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// Committer is the slice of persistence the directory needs.
type Committer interface {
	Commit(ctx context.Context, batch *persistence.Batch) error
}

// Directory holds identities independently of process data.
type Directory struct {
	logger    *slog.Logger
	committer Committer
	validate  *validator.Validate

	// writeMu serialises mutations so existence checks and commits cannot interleave.
	writeMu sync.Mutex

	mu          sync.RWMutex
	users       map[string]*models.User
	groups      map[string]*models.Group
	tenants     map[string]*models.Tenant
	memberships map[string]models.Membership
}

// New creates an empty directory.
func New(logger *slog.Logger, committer Committer) *Directory {
	return &Directory{
		logger:      logger,
		committer:   committer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		users:       make(map[string]*models.User),
		groups:      make(map[string]*models.Group),
		tenants:     make(map[string]*models.Tenant),
		memberships: make(map[string]models.Membership),
	}
}

// Restore loads persisted identities.
func (d *Directory) Restore(snapshot *persistence.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, user := range snapshot.Users {
		d.users[user.ID] = user
	}

	for _, group := range snapshot.Groups {
		d.groups[group.ID] = group
	}

	for _, tenant := range snapshot.Tenants {
		d.tenants[tenant.ID] = tenant
	}

	for _, membership := range snapshot.Memberships {
		d.memberships[membership.Key()] = membership
	}
}

func (d *Directory) check(entity any) error {
	if err := d.validate.Struct(entity); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("%w: %v", models.ErrInvalidIdentity, validationErrors)
		}

		return fmt.Errorf("%w: %v", models.ErrInvalidIdentity, err)
	}

	return nil
}

func (d *Directory) commit(ctx context.Context, op, kind, id string, batch *persistence.Batch) error {
	if err := d.committer.Commit(ctx, batch); err != nil {
		return models.NewEngineError(op, kind, id, err)
	}

	return nil
}

// SaveUser creates or overwrites a user. A non-empty password replaces the stored
// hash; an empty one keeps the existing hash.
func (d *Directory) SaveUser(ctx context.Context, user models.User, password string) (*models.User, error) {
	user.PasswordHash = ""

	if err := d.check(user); err != nil {
		return nil, models.NewEngineError("SaveUser", "user", user.ID, err)
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, models.NewEngineError("SaveUser", "user", user.ID, fmt.Errorf("failed to hash password: %w", err))
		}

		user.PasswordHash = string(hash)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if existing, ok := d.lookupUser(user.ID); ok && password == "" {
		user.PasswordHash = existing.PasswordHash
	}

	batch := persistence.NewBatch()
	batch.SaveUser(&user)

	if err := d.commit(ctx, "SaveUser", "user", user.ID, batch); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.users[user.ID] = &user
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Saved user", "user_id", user.ID)

	return &user, nil
}

// SaveGroup creates or overwrites a group.
func (d *Directory) SaveGroup(ctx context.Context, group models.Group) (*models.Group, error) {
	if err := d.check(group); err != nil {
		return nil, models.NewEngineError("SaveGroup", "group", group.ID, err)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	batch := persistence.NewBatch()
	batch.SaveGroup(&group)

	if err := d.commit(ctx, "SaveGroup", "group", group.ID, batch); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.groups[group.ID] = &group
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Saved group", "group_id", group.ID)

	return &group, nil
}

// SaveTenant creates or overwrites a tenant.
func (d *Directory) SaveTenant(ctx context.Context, tenant models.Tenant) (*models.Tenant, error) {
	if err := d.check(tenant); err != nil {
		return nil, models.NewEngineError("SaveTenant", "tenant", tenant.ID, err)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	batch := persistence.NewBatch()
	batch.SaveTenant(&tenant)

	if err := d.commit(ctx, "SaveTenant", "tenant", tenant.ID, batch); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.tenants[tenant.ID] = &tenant
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Saved tenant", "tenant_id", tenant.ID)

	return &tenant, nil
}

// DeleteUser removes a user and every membership it takes part in.
func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	return d.deleteEntity(ctx, "DeleteUser", "user", id, func(m models.Membership) bool {
		return (m.Kind == models.MembershipUserGroup || m.Kind == models.MembershipUserTenant) && m.LeftID == id
	}, func(batch *persistence.Batch) {
		batch.DeleteUser(id)
	}, func() bool {
		_, ok := d.users[id]
		delete(d.users, id)

		return ok
	})
}

// DeleteGroup removes a group and every membership it takes part in.
func (d *Directory) DeleteGroup(ctx context.Context, id string) error {
	return d.deleteEntity(ctx, "DeleteGroup", "group", id, func(m models.Membership) bool {
		return (m.Kind == models.MembershipUserGroup && m.RightID == id) ||
			(m.Kind == models.MembershipGroupTenant && m.LeftID == id)
	}, func(batch *persistence.Batch) {
		batch.DeleteGroup(id)
	}, func() bool {
		_, ok := d.groups[id]
		delete(d.groups, id)

		return ok
	})
}

// DeleteTenant removes a tenant and every membership it takes part in.
func (d *Directory) DeleteTenant(ctx context.Context, id string) error {
	return d.deleteEntity(ctx, "DeleteTenant", "tenant", id, func(m models.Membership) bool {
		return (m.Kind == models.MembershipUserTenant || m.Kind == models.MembershipGroupTenant) && m.RightID == id
	}, func(batch *persistence.Batch) {
		batch.DeleteTenant(id)
	}, func() bool {
		_, ok := d.tenants[id]
		delete(d.tenants, id)

		return ok
	})
}

func (d *Directory) deleteEntity(
	ctx context.Context,
	op, kind, id string,
	involved func(models.Membership) bool,
	deleteRow func(*persistence.Batch),
	remove func() bool,
) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if !d.exists(kind, id) {
		return models.NotFound(op, kind, id)
	}

	batch := persistence.NewBatch()

	var cascade []string

	d.mu.RLock()

	for key, membership := range d.memberships {
		if involved(membership) {
			batch.DeleteMembership(membership)
			cascade = append(cascade, key)
		}
	}

	d.mu.RUnlock()

	deleteRow(batch)

	if err := d.commit(ctx, op, kind, id, batch); err != nil {
		return err
	}

	d.mu.Lock()
	remove()

	for _, key := range cascade {
		delete(d.memberships, key)
	}
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Deleted identity", "kind", kind, "id", id, "memberships", len(cascade))

	return nil
}

func (d *Directory) exists(kind, id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ok bool

	switch kind {
	case "user":
		_, ok = d.users[id]
	case "group":
		_, ok = d.groups[id]
	case "tenant":
		_, ok = d.tenants[id]
	}

	return ok
}

func (d *Directory) lookupUser(id string) (*models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]

	return user, ok
}

// User returns one user.
func (d *Directory) User(id string) (*models.User, error) {
	user, ok := d.lookupUser(id)
	if !ok {
		return nil, models.NotFound("User", "user", id)
	}

	return user, nil
}

// Group returns one group.
func (d *Directory) Group(id string) (*models.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	group, ok := d.groups[id]
	if !ok {
		return nil, models.NotFound("Group", "group", id)
	}

	return group, nil
}

// Tenant returns one tenant.
func (d *Directory) Tenant(id string) (*models.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tenant, ok := d.tenants[id]
	if !ok {
		return nil, models.NotFound("Tenant", "tenant", id)
	}

	return tenant, nil
}
