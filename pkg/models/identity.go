package models

// User is a person who can be assigned tasks.
type User struct {
	ID           string `json:"id"                  validate:"required,alphanum,max=64"`
	FirstName    string `json:"first_name,omitempty" validate:"max=255"`
	LastName     string `json:"last_name,omitempty"  validate:"max=255"`
	Email        string `json:"email,omitempty"     validate:"omitempty,email"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// Group is a named set of users that can be a task candidate.
type Group struct {
	ID   string `json:"id"             validate:"required,alphanum,max=64"`
	Name string `json:"name"           validate:"max=255"`
	Type string `json:"type,omitempty" validate:"max=64"`
}

// Tenant is an isolation boundary for definitions, instances and identities.
type Tenant struct {
	ID   string `json:"id"   validate:"required,alphanum,max=64"`
	Name string `json:"name" validate:"max=255"`
}

// MembershipKind names the two entity kinds a membership edge connects.
type MembershipKind string

const (
	MembershipUserGroup   MembershipKind = "user-group"
	MembershipUserTenant  MembershipKind = "user-tenant"
	MembershipGroupTenant MembershipKind = "group-tenant"
)

// Membership is one edge of the many-to-many identity relations.
// LeftID is the member (user or group), RightID the container (group or tenant).
type Membership struct {
	Kind    MembershipKind `json:"kind"`
	LeftID  string         `json:"left_id"`
	RightID string         `json:"right_id"`
}

// Key returns the unique storage key of the membership.
func (m Membership) Key() string {
	return string(m.Kind) + ":" + m.LeftID + ":" + m.RightID
}
