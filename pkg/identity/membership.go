package identity

import (
	"context"
	"slices"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
)

// AddUserToGroup makes the user a member of the group.
func (d *Directory) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	return d.addMembership(ctx, "AddUserToGroup", models.Membership{Kind: models.MembershipUserGroup, LeftID: userID, RightID: groupID})
}

// AddUserToTenant makes the user a member of the tenant.
func (d *Directory) AddUserToTenant(ctx context.Context, userID, tenantID string) error {
	return d.addMembership(ctx, "AddUserToTenant", models.Membership{Kind: models.MembershipUserTenant, LeftID: userID, RightID: tenantID})
}

// AddGroupToTenant makes the group a member of the tenant.
func (d *Directory) AddGroupToTenant(ctx context.Context, groupID, tenantID string) error {
	return d.addMembership(ctx, "AddGroupToTenant", models.Membership{Kind: models.MembershipGroupTenant, LeftID: groupID, RightID: tenantID})
}

// RemoveUserFromGroup deletes the membership if it exists.
func (d *Directory) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	return d.removeMembership(ctx, "RemoveUserFromGroup", models.Membership{Kind: models.MembershipUserGroup, LeftID: userID, RightID: groupID})
}

// RemoveUserFromTenant deletes the membership if it exists.
func (d *Directory) RemoveUserFromTenant(ctx context.Context, userID, tenantID string) error {
	return d.removeMembership(ctx, "RemoveUserFromTenant", models.Membership{Kind: models.MembershipUserTenant, LeftID: userID, RightID: tenantID})
}

// RemoveGroupFromTenant deletes the membership if it exists.
func (d *Directory) RemoveGroupFromTenant(ctx context.Context, groupID, tenantID string) error {
	return d.removeMembership(ctx, "RemoveGroupFromTenant", models.Membership{Kind: models.MembershipGroupTenant, LeftID: groupID, RightID: tenantID})
}

func endpoints(kind models.MembershipKind) (left, right string) {
	switch kind {
	case models.MembershipUserGroup:
		return "user", "group"
	case models.MembershipUserTenant:
		return "user", "tenant"
	default:
		return "group", "tenant"
	}
}

func (d *Directory) addMembership(ctx context.Context, op string, membership models.Membership) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	left, right := endpoints(membership.Kind)

	if !d.exists(left, membership.LeftID) {
		return models.NotFound(op, left, membership.LeftID)
	}

	if !d.exists(right, membership.RightID) {
		return models.NotFound(op, right, membership.RightID)
	}

	d.mu.RLock()
	_, ok := d.memberships[membership.Key()]
	d.mu.RUnlock()

	if ok {
		return nil
	}

	batch := persistence.NewBatch()
	batch.SaveMembership(membership)

	if err := d.commit(ctx, op, "membership", membership.Key(), batch); err != nil {
		return err
	}

	d.mu.Lock()
	d.memberships[membership.Key()] = membership
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Added membership", "kind", membership.Kind, left+"_id", membership.LeftID, right+"_id", membership.RightID)

	return nil
}

func (d *Directory) removeMembership(ctx context.Context, op string, membership models.Membership) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.RLock()
	_, ok := d.memberships[membership.Key()]
	d.mu.RUnlock()

	if !ok {
		return nil
	}

	batch := persistence.NewBatch()
	batch.DeleteMembership(membership)

	if err := d.commit(ctx, op, "membership", membership.Key(), batch); err != nil {
		return err
	}

	d.mu.Lock()
	delete(d.memberships, membership.Key())
	d.mu.Unlock()

	left, right := endpoints(membership.Kind)
	d.logger.InfoContext(ctx, "Removed membership", "kind", membership.Kind, left+"_id", membership.LeftID, right+"_id", membership.RightID)

	return nil
}

func (d *Directory) hasMembership(kind models.MembershipKind, leftID, rightID string) bool {
	_, ok := d.memberships[models.Membership{Kind: kind, LeftID: leftID, RightID: rightID}.Key()]

	return ok
}

// IsMemberOfGroup reports whether the user belongs to the group.
func (d *Directory) IsMemberOfGroup(userID, groupID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.hasMembership(models.MembershipUserGroup, userID, groupID)
}

// GroupsOfUser returns the IDs of every group the user belongs to, sorted.
func (d *Directory) GroupsOfUser(userID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var groups []string

	for _, membership := range d.memberships {
		if membership.Kind == models.MembershipUserGroup && membership.LeftID == userID {
			groups = append(groups, membership.RightID)
		}
	}

	slices.Sort(groups)

	return groups
}
