package identity

import (
	"cmp"
	"slices"

	"github.com/dukex/taskflow/pkg/models"
)

// UserQuery filters users. Zero fields do not filter; *Like fields take SQL LIKE patterns.
type UserQuery struct {
	ID             string   `query:"id"`
	IDIn           []string `query:"id_in"`
	FirstNameLike  string   `query:"first_name_like"`
	LastNameLike   string   `query:"last_name_like"`
	EmailLike      string   `query:"email_like"`
	MemberOfGroup  string   `query:"member_of_group"`
	MemberOfTenant string   `query:"member_of_tenant"`
}

// GroupQuery filters groups.
type GroupQuery struct {
	ID             string   `query:"id"`
	IDIn           []string `query:"id_in"`
	NameLike       string   `query:"name_like"`
	Type           string   `query:"type"`
	UserMember     string   `query:"user_member"`
	MemberOfTenant string   `query:"member_of_tenant"`
}

// TenantQuery filters tenants. IncludingGroupsOfUser widens UserMember to tenants
// the user reaches through one of its groups.
type TenantQuery struct {
	ID                    string   `query:"id"`
	IDIn                  []string `query:"id_in"`
	NameLike              string   `query:"name_like"`
	UserMember            string   `query:"user_member"`
	GroupMember           string   `query:"group_member"`
	IncludingGroupsOfUser bool     `query:"including_groups_of_user"`
}

func matchID(id, want string, in []string) bool {
	if want != "" && id != want {
		return false
	}

	return len(in) == 0 || slices.Contains(in, id)
}

// Users returns the users matching the query, ordered by ID.
func (d *Directory) Users(query UserQuery) []*models.User {
	firstName := likeMatcher(query.FirstNameLike)
	lastName := likeMatcher(query.LastNameLike)
	email := likeMatcher(query.EmailLike)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*models.User

	for _, user := range d.users {
		switch {
		case !matchID(user.ID, query.ID, query.IDIn),
			!firstName(user.FirstName),
			!lastName(user.LastName),
			!email(user.Email),
			query.MemberOfGroup != "" && !d.hasMembership(models.MembershipUserGroup, user.ID, query.MemberOfGroup),
			query.MemberOfTenant != "" && !d.hasMembership(models.MembershipUserTenant, user.ID, query.MemberOfTenant):
			continue
		}

		result = append(result, user)
	}

	slices.SortFunc(result, func(a, b *models.User) int { return cmp.Compare(a.ID, b.ID) })

	return result
}

// Groups returns the groups matching the query, ordered by ID.
func (d *Directory) Groups(query GroupQuery) []*models.Group {
	name := likeMatcher(query.NameLike)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*models.Group

	for _, group := range d.groups {
		switch {
		case !matchID(group.ID, query.ID, query.IDIn),
			!name(group.Name),
			query.Type != "" && group.Type != query.Type,
			query.UserMember != "" && !d.hasMembership(models.MembershipUserGroup, query.UserMember, group.ID),
			query.MemberOfTenant != "" && !d.hasMembership(models.MembershipGroupTenant, group.ID, query.MemberOfTenant):
			continue
		}

		result = append(result, group)
	}

	slices.SortFunc(result, func(a, b *models.Group) int { return cmp.Compare(a.ID, b.ID) })

	return result
}

// Tenants returns the tenants matching the query, ordered by ID.
func (d *Directory) Tenants(query TenantQuery) []*models.Tenant {
	name := likeMatcher(query.NameLike)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*models.Tenant

	for _, tenant := range d.tenants {
		switch {
		case !matchID(tenant.ID, query.ID, query.IDIn),
			!name(tenant.Name),
			query.UserMember != "" && !d.userInTenant(query.UserMember, tenant.ID, query.IncludingGroupsOfUser),
			query.GroupMember != "" && !d.hasMembership(models.MembershipGroupTenant, query.GroupMember, tenant.ID):
			continue
		}

		result = append(result, tenant)
	}

	slices.SortFunc(result, func(a, b *models.Tenant) int { return cmp.Compare(a.ID, b.ID) })

	return result
}

func (d *Directory) userInTenant(userID, tenantID string, viaGroups bool) bool {
	if d.hasMembership(models.MembershipUserTenant, userID, tenantID) {
		return true
	}

	if !viaGroups {
		return false
	}

	for _, membership := range d.memberships {
		if membership.Kind == models.MembershipUserGroup && membership.LeftID == userID &&
			d.hasMembership(models.MembershipGroupTenant, membership.RightID, tenantID) {
			return true
		}
	}

	return false
}
